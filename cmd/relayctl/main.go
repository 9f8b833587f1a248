// Relayctl orchestrates a TCP proxy stack: an external load balancer
// fronting a pool of proxy worker processes.
//
// Usage:
//
//	# Validate the configuration and the host environment
//	relayctl validate
//
//	# Write the generated load-balancer and worker configs
//	relayctl generate
//
//	# Bring the stack up in the foreground
//	relayctl start
//
//	# Inspect a running (or stopped) stack
//	relayctl status
//
//	# Stop the stack from another terminal
//	relayctl stop
//
//	# Show recent lifecycle events from the journal
//	relayctl events --limit 20
package main

func main() {
	Execute()
}
