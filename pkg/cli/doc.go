/*
Package cli provides command-line utilities for relayctl: error types with
exit-code mapping and signal handling helpers.

Exit Codes:

Command failures map onto three exit codes so scripts can tell configuration
problems from process problems:

	0 - success
	2 - configuration error (invalid file, failed validation)
	3 - process error (a managed process failed to start or stop)

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
