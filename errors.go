package skmutex

import (
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sentinel errors returned by this package's operations. Callers should
// compare against these with errors.Is, not string matching.
var (
	// ErrNotPermitted is returned by Unlock, CondWait, CondWaitContext,
	// VetoTransfer, and Transfer (for its source Mutex) when called against
	// a Mutex not currently held by any goroutine. Which goroutine holds a
	// Mutex is not recorded, so a call from a non-holder is not detected
	// while some goroutine holds it.
	ErrNotPermitted = errors.New("skmutex: not locked")

	// ErrBusy is returned by Destroy against a Mutex that is held or still
	// has a live control block. TryLock reports a held Mutex by returning
	// false, not with this error.
	ErrBusy = errors.New("skmutex: mutex busy")

	// ErrAgain is returned by Transfer when a concurrent VetoTransfer call
	// on the destination Mutex aborted the in-flight transfer.
	ErrAgain = errors.New("skmutex: transfer vetoed, retry")

	// ErrTimeout is returned by CondWaitContext when its context's deadline
	// passes before the condition variable is signaled; the returned error
	// also wraps context.DeadlineExceeded. A context cancelled for another
	// reason yields ctx.Err() instead.
	ErrTimeout = errors.New("skmutex: condition wait timed out")
)

// fatalLogger is used only for the double-fault diagnostic recoverErr can
// raise; it is a package-level *zap.Logger so production code can swap it
// (via SetFatalLogger) without plumbing a logger through every call.
var fatalLogger = zap.NewNop()

// SetFatalLogger installs the *zap.Logger used to report an unrecoverable
// double-fault (see recoverErr). Passing nil restores the no-op logger.
// Intended to be called once during process startup.
func SetFatalLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
		fatalLogger = l
		return
	}
	fatalLogger = l
}

// recoverErr is the recovery-composition rule from spec.md §4.1: it
// reduces a primary error (the operation the caller asked for) and a
// secondary error (raised while cleaning up after the primary) to one
// result. If either is nil, the other is returned untouched. If both are
// non-nil, the state is considered corrupted beyond safe continuation —
// continuing could leak or double-free a control block — so this logs a
// fatal diagnostic and terminates the process, exactly as spec.md
// mandates. Silently discarding the secondary error is never an option.
func recoverErr(primary, secondary error) error {
	if primary == nil {
		return secondary
	}
	if secondary == nil {
		return primary
	}
	fatalLogger.Fatal("skmutex: unrecoverable double-fault during cleanup",
		zap.Error(primary),
		zap.NamedError("secondary", secondary),
	)
	// zap.Logger.Fatal calls os.Exit(1) after flushing; this line only
	// runs if fatalLogger was somehow replaced with one that doesn't exit
	// (e.g. in a test), in which case we still must not pretend to
	// succeed.
	return multierr.Append(primary, secondary)
}
