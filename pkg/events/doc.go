/*
Package events provides the in-memory broker for monitoring events.

Event types cover the target lifecycle: target.down, recovery.started,
recovery.action.completed, target.recovered and recovery.exhausted.
Publishing is fire-and-forget through a buffered channel and per-subscriber
buffers; a slow or failed subscriber loses events rather than stalling the
monitoring path.
*/
package events
