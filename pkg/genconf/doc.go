/*
Package genconf turns a validated Topology into the configuration files the
external load-balancer and proxy-worker binaries consume.

Rendering is a pure function of the Topology: identical input always yields
byte-identical output, so `relayctl generate` can run repeatedly without
producing spurious diffs. The load-balancer configuration is strictly TCP
passthrough; no TLS-termination directive is ever emitted, preserving the
client's TLS fingerprint end to end.

WriteAll materializes the rendered files under the configured work directory:
one load-balancer file plus one file per worker instance.
*/
package genconf
