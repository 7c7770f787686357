/*
Package recovery runs a target's remediation sequence after it goes down.

The Orchestrator executes the target's recovery actions in declared order,
waiting each action's settle delay before the next. Action failures are
logged and the sequence continues; the overall verdict is judged solely by
one confirmation probe after the sequence. A per-target guard makes runs
single-flight: a re-entrant Run for the same target returns
ErrRecoveryInFlight instead of executing.

Concrete remediation steps implement Operation. CommandOperation runs a
shell command with a bounded context; other platforms can provide their
own operations without the orchestrator changing.
*/
package recovery
