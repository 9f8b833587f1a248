/*
Package supervisor owns the OS processes of the proxy stack: one load
balancer plus one process per worker instance, each launched against its
generated configuration file.

Every managed process moves through an explicit state machine:

	NotStarted → Starting → Running → Stopping → Stopped

with Crashed reachable from Running when a process exits without having been
asked to stop. Crashes are detected, recorded and surfaced through Status;
the supervisor never restarts a crashed process on its own; that is an
operator decision.

Start confirms each child through a brief liveness window and reports
per-process failures while leaving successfully started processes running.
Stop signals workers before the load balancer so in-flight connections drain
through a balancer that is still reachable, waits up to the graceful timeout
and then escalates to SIGKILL, always reaping the child.
*/
package supervisor
