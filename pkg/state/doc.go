/*
Package state implements the per-target health state machine.

Each target owns exactly one Machine for the process lifetime. Statuses:

	healthy ──failure──▶ degraded ──threshold reached──▶ down
	   ▲                    │                              │
	   │◀──────success──────┘                              │ BeginRecovery
	   │                                                   ▼
	   └──────FinishRecovery(confirmed)────────────── recovering
	                                                       │
	              down ◀────FinishRecovery(exhausted)──────┘
	              (cool-down before the next attempt)

A failure threshold of one skips degraded: the first failure from healthy
descends straight to down.

Transitions are deterministic functions of (status, outcome, counters,
thresholds) and never fail. While a target is down or recovering, probe
outcomes update the consecutive counters but the orchestrator owns the
next status change. The consecutive-failure count resets on any success
and the success count resets on any failure, unconditionally.
*/
package state
