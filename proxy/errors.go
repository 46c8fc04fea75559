package proxy

import "errors"

// Sentinel errors for the error kinds enumerated in the design: callers can
// errors.Is/errors.As against these instead of matching strings.
var (
	// ErrBindFailed is returned from Proxy.Start when the downstream listener
	// cannot be bound. Fatal: the loop never starts.
	ErrBindFailed = errors.New("proxy: bind failed")

	// ErrBrokenPipe marks a send that failed because the peer is gone
	// (including a deferred upstream-connect failure surfacing on first
	// write). Closes the opposite side and drops its pending bytes.
	ErrBrokenPipe = errors.New("proxy: broken pipe")

	// ErrHandlerPanic names the HandlerError kind: a Handler callback that
	// panicked. The loop recovers such a panic itself, closes both sides of
	// that session, and continues serving other sessions; it does not return
	// or log this value.
	ErrHandlerPanic = errors.New("proxy: handler panic")

	// ErrLoopStopped names the state of a loop that has already exited. No
	// function in this package returns it: Stop and Wait on a stopped Proxy
	// return nil or the stored fatal loop error.
	ErrLoopStopped = errors.New("proxy: loop stopped")
)
