package skmutex

// Transfer atomically releases a, which the caller must hold, and
// acquires b, such that no other Lock/TryLock on b can succeed between
// a's release and b's acquisition except another goroutine also inside
// Transfer targeting b. See spec.md §4.11.
//
// Because this primitive does not track lock ownership (spec.md §1's
// non-goals), "a must be held by the caller" can only be enforced to the
// extent the shared held flag allows: Transfer reports ErrNotPermitted
// when a is not held by any goroutine at all. It cannot distinguish the
// caller holding a from some other goroutine holding it, the same limit
// spec.md §4.2 documents for Unlock's fast path.
func Transfer(a, b *Mutex) error {
	// Fast path: b is uncontended and free.
	if bw := b.wordPtr(); isUnlockedWord(bw) {
		if b.casWord(bw, wordLocked) {
			return releaseAForTransfer(a)
		}
	}

	cb := b.getCtrlBlock() // locked
	cb.incref()
	gen := cb.transferGen

	if err := releaseAForTransferLocked(a, cb); err != nil {
		b.releaseCtrlBlock(cb)
		return err
	}

	cb.transfers++
	cb.waiters++
	for {
		if !cb.held {
			cb.transfers--
			cb.waiters--
			cb.held = true
			cb.mu.Unlock()
			return nil
		}
		if cb.transferGen != gen {
			cb.transfers--
			cb.waiters--
			b.releaseCtrlBlock(cb)
			return recoverErr(ErrAgain, reacquireAAfterAbortedTransfer(a))
		}
		cb.cond.Wait()
	}
}

// releaseAForTransfer releases a via its ordinary Unlock path, used when b
// was acquired via Transfer's fast (uncontended) path and so no inner
// mutex on b is held that could deadlock against a's own slow path.
func releaseAForTransfer(a *Mutex) error {
	return a.Unlock()
}

// releaseAForTransferLocked releases a while bcb's inner mutex is held.
// If a's fast CAS doesn't apply, a's slow path may itself need to block
// on a's own control block's inner mutex; bcb's inner mutex is dropped
// for that call and re-acquired immediately after, so two unrelated
// control blocks' inner mutexes are never held by this goroutine at the
// same time (spec.md §4.11 step 3).
func releaseAForTransferLocked(a *Mutex, bcb *ctrlBlock) error {
	if a.casWord(wordLocked, nil) {
		return nil
	}
	bcb.mu.Unlock()
	err := a.unlockSlow()
	bcb.mu.Lock()
	return err
}

// reacquireAAfterAbortedTransfer restores the caller's original ownership
// of a after a veto aborts an in-flight transfer (spec.md §4.11 step 5).
func reacquireAAfterAbortedTransfer(a *Mutex) error {
	a.Lock()
	return nil
}

// VetoTransfer causes any Transfer currently blocked waiting to acquire m
// to give up and return ErrAgain. The caller must already hold m. See
// spec.md §4.12.
func (m *Mutex) VetoTransfer() error {
	for {
		w := m.wordPtr()
		switch {
		case isLockedWord(w):
			// No control block: no transfer could possibly be in flight.
			return nil
		case isUnlockedWord(w):
			return ErrNotPermitted
		}

		cb := m.pegAndAcquire(w)
		if cb == nil {
			continue // chain reclaimed mid-install; retry from a fresh word read
		}
		if !cb.held {
			m.releaseCtrlBlock(cb)
			return ErrNotPermitted
		}

		cb.transferGen++
		if cb.transfers > 0 {
			cb.cond.Broadcast()
		}
		// The caller still holds m, so its pseudo-reference keeps cb
		// alive; no reference was taken here, so none is dropped.
		cb.mu.Unlock()
		return nil
	}
}
