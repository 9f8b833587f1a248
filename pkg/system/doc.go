/*
Package system provides the host-level plumbing the orchestrator depends on:
directory preparation, PID files, process liveness probes, bounded
graceful-then-forced termination, and privilege dropping after a privileged
bootstrap.

Everything here is deliberately small and side-effectful; the interesting
state machines live in pkg/supervisor and pkg/orchestrator.
*/
package system
