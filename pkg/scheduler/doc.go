/*
Package scheduler drives the monitoring loops.

One goroutine per target ticks at the target's own interval, probes, and
feeds the outcome to that target's health state machine. A Down transition
hands the target to the recovery orchestrator asynchronously, so recovery
for one target never delays another target's probes. Per-target
single-flight holds by construction: the loop is the only prober for its
target, ticks that fire while a probe or recovery is outstanding are
dropped rather than queued, and the orchestrator guard backs the recovery
side.

Stop cancels all loops and waits up to a grace period; work that does not
wind down in time is abandoned rather than blocking shutdown.
*/
package scheduler
