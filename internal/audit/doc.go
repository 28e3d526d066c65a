// Package audit delivers hash and verify events to a [Sink] off the caller's
// goroutine.
//
// A [Dispatcher] owns one bounded queue and one worker. With DropIfFull the
// hot path never blocks; dropped events are counted and logged with
// exponential backoff. Sink panics are recovered and counted.
//
// Events carry cost parameters and outcome codes only. The package does not
// decide what to emit; the Engine does.
package audit
