package skmutex

import (
	"context"
	"fmt"
)

// CondWait waits on c, an externally supplied condition variable, while
// atomically releasing m for the duration of the wait and re-acquiring it
// before returning — the same contract as pthread_cond_wait against this
// package's own mutex. The caller must hold m when calling CondWait; it
// returns ErrNotPermitted if it doesn't. See spec.md §4.10.
//
// Go has no deferred-cancellation primitive for CondWait to suspend the
// way the source does; ordinary goroutine execution cannot be
// asynchronously cancelled mid-Wait at all, so there is no cancel-observed
// return path to guard here, only the normal one. CondWaitContext is the
// cancellation-aware counterpart.
func (m *Mutex) CondWait(c *Cond) error {
	cb, err := m.acquireAlreadyHeld()
	if err != nil {
		return err
	}

	if cb.waiters > 0 {
		// c.cond.Wait below will drop cb.mu; wake the internal waiters
		// so they notice.
		cb.cond.Signal()
	}
	cb.held = false

	// Rebind c onto cb's own inner mutex, already held at this point, so
	// the release-and-wait is one atomic step: c.cond.Wait unlocks cb.mu
	// as it registers to be woken, and relocks cb.mu before returning —
	// exactly the pthread_cond_wait(cond, mutex) atomicity spec.md §4.10
	// asks for, instead of a separate Unlock racing a differently-locked
	// Wait.
	c.cond.L = &cb.mu
	c.cond.Wait()

	finishCondWaitLocked(cb)
	return nil
}

// CondWaitContext is CondWait with a deadline or cancellation signal
// carried by ctx. If ctx is done before c is signaled, CondWaitContext
// still re-acquires m before returning (mirroring the source's
// cleanup-handler-on-cancellation behavior, per spec.md §9's design note)
// rather than leaving the caller's lock state undecided, and the
// returned error wraps ctx.Err() — ErrTimeout if the context's deadline
// elapsed, ctx.Err() verbatim otherwise.
//
// Because c.cond.Wait cannot be forced to return early, the re-acquire
// on a cancelled wait does not wait for it: it takes cb's inner mutex
// directly, the same way any other contender would. The goroutine
// blocked in c.cond.Wait is left running — it can't be otherwise — and
// once a real Signal/Broadcast eventually wakes it, it simply drops
// cb.mu again without touching held/refcount, since by then this
// goroutine's own re-acquire has already happened.
func (m *Mutex) CondWaitContext(ctx context.Context, c *Cond) error {
	if err := ctx.Err(); err != nil {
		return wrapCtxErr(err)
	}

	cb, err := m.acquireAlreadyHeld()
	if err != nil {
		return err
	}

	if cb.waiters > 0 {
		cb.cond.Signal()
	}
	cb.held = false
	c.cond.L = &cb.mu

	woken := waitOnCond(c)
	var ctxErr error
	select {
	case <-woken:
	case <-ctx.Done():
		ctxErr = ctx.Err()
	}

	cb.mu.Lock()
	finishCondWaitLocked(cb)

	if ctxErr != nil {
		return wrapCtxErr(ctxErr)
	}
	return nil
}

// acquireAlreadyHeld obtains the control block and verifies this goroutine
// is actually the holder, per the "already-held" get mode described in
// spec.md §4.8/§4.10. It releases and returns ErrNotPermitted if the
// Mutex was not, in fact, held.
func (m *Mutex) acquireAlreadyHeld() (*ctrlBlock, error) {
	w := m.wordPtr()
	if isUnlockedWord(w) {
		return nil, ErrNotPermitted
	}
	cb := m.getCtrlBlock()
	if !cb.held {
		m.releaseCtrlBlock(cb)
		return nil, ErrNotPermitted
	}
	return cb, nil
}

// finishCondWaitLocked restores held=true on cb, waiting out any current
// holder with the same wait loop lockSlow uses, then unlocks cb.mu. It
// takes no new reference: the one the suspended waiter already carries
// becomes the holder's pseudo-reference again. The caller must already
// hold cb.mu.
func finishCondWaitLocked(cb *ctrlBlock) {
	for cb.held {
		cb.waiters++
		cb.cond.Wait()
		cb.waiters--
	}
	cb.held = true
	cb.mu.Unlock()
}

// waitOnCond runs c.cond.Wait() (against cb.mu, already rebound as its L)
// on a helper goroutine so CondWaitContext can race it against
// ctx.Done() — the standard idiom for making a sync.Cond interruptible,
// since sync.Cond has no deadline/cancel parameter of its own, unlike a
// POSIX condvar's pthread_cond_timedwait. Once c.cond.Wait returns — it
// has, by then, relocked c.cond.L — this immediately releases it again:
// the real reacquire-for-the-caller bookkeeping always happens
// separately in CondWaitContext itself, whether or not this goroutine's
// wakeup is the one CondWaitContext ends up waiting on.
func waitOnCond(c *Cond) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		c.cond.Wait()
		c.cond.L.Unlock()
		close(done)
	}()
	return done
}

func wrapCtxErr(err error) error {
	if err == context.DeadlineExceeded {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
