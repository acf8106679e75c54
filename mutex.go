package skmutex

import "unsafe"

// Mutex is a space-optimized mutual exclusion lock. Its zero value is an
// unlocked mutex ready for use; a Mutex must not be copied after first
// use. See the package doc comment for the skinny/fat design this type
// implements.
type Mutex struct {
	word unsafe.Pointer
}

// New returns a ready-to-use, unlocked Mutex. Equivalent to new(Mutex);
// provided because the rest of this package's sibling types (ctrlBlock,
// peg) are constructed with their own New-style helpers, and a
// standalone Mutex{} literal reads oddly next to them.
func New() *Mutex {
	return &Mutex{}
}

// Lock acquires m, blocking until it is available. Uncontended acquisition
// never allocates.
func (m *Mutex) Lock() {
	if m.casWord(nil, wordLocked) {
		return
	}
	m.lockSlow()
}

// lockSlow handles every case Lock's fast path doesn't: the word already
// reads locked-uncontended, or a control block already exists. See
// spec.md §4.7.
func (m *Mutex) lockSlow() {
	for {
		w := m.wordPtr()
		if isUnlockedWord(w) {
			if m.casWord(w, wordLocked) {
				return
			}
			continue
		}

		cb := m.getCtrlBlock()
		cb.incref() // this goroutine's in-flight wait
		for cb.held {
			cb.waiters++
			cb.cond.Wait()
			cb.waiters--
		}
		cb.held = true
		cb.mu.Unlock()
		return
	}
}

// TryLock acquires m without blocking, reporting whether it succeeded. It
// never registers a waiter: if the lock is held, it returns immediately.
// See spec.md §4.9.
func (m *Mutex) TryLock() bool {
	for {
		w := m.wordPtr()
		switch {
		case isUnlockedWord(w):
			if m.casWord(w, wordLocked) {
				return true
			}
		case isLockedWord(w):
			return false
		default:
			cb := m.pegAndAcquire(w)
			if cb == nil {
				continue // control block reclaimed mid-install; retry from a fresh word read
			}
			if cb.held {
				// No reference was taken; the holder's keeps cb alive.
				cb.mu.Unlock()
				return false
			}
			cb.held = true
			cb.incref()
			cb.mu.Unlock()
			return true
		}
	}
}

// Unlock releases m. It returns ErrNotPermitted if called on a Mutex not
// currently held by any goroutine.
func (m *Mutex) Unlock() error {
	if m.casWord(wordLocked, nil) {
		return nil
	}
	return m.unlockSlow()
}

// unlockSlow handles every case Unlock's fast path doesn't. See
// spec.md §4.8.
func (m *Mutex) unlockSlow() error {
	for {
		w := m.wordPtr()
		switch {
		case isUnlockedWord(w):
			return ErrNotPermitted
		case isLockedWord(w):
			if m.casWord(w, nil) {
				return nil
			}
		default:
			cb := m.getCtrlBlock()
			if !cb.held {
				m.releaseCtrlBlock(cb)
				return ErrNotPermitted
			}
			cb.held = false
			if cb.waiters > 0 {
				cb.cond.Signal()
			}
			m.releaseCtrlBlock(cb)
			return nil
		}
	}
}

// Destroy reports whether m may be discarded: it returns nil if the word
// reads unlocked, and ErrBusy otherwise (m is held, or a control block is
// still attached). It does not modify m. See spec.md §6.
func (m *Mutex) Destroy() error {
	if isUnlockedWord(m.wordPtr()) {
		return nil
	}
	return ErrBusy
}

// getCtrlBlock is the unified "get" operation of spec.md §4.5: it
// dispatches on the current word, promoting a bare word into a fresh
// control block or pegging onto an existing chain, retrying internally on
// either path's transient failures. It always returns with the control
// block's inner mutex held.
func (m *Mutex) getCtrlBlock() *ctrlBlock {
	for {
		w := m.wordPtr()
		var cb *ctrlBlock
		if isChainWord(w) {
			cb = m.pegAndAcquire(w)
		} else {
			cb = m.promote(w)
		}
		if cb != nil {
			return cb
		}
	}
}

// promote lazily creates a control block the first time a bare word needs
// one. See spec.md §4.4. Returns nil (signaling retry) if another
// goroutine changed the word first.
func (m *Mutex) promote(old unsafe.Pointer) *ctrlBlock {
	cb := newCtrlBlock(isLockedWord(old))
	if !m.casWord(old, unsafe.Pointer(cb)) {
		cb.mu.Unlock()
		cb.destroy()
		return nil
	}
	return cb
}

// pegAndAcquire implements the chain entry protocol of spec.md §4.3: a
// goroutine installs a peg in front of whatever the word currently holds,
// walks past any intervening pegs to the control block, blocks on its
// inner mutex, then retires its own peg and reconciles the refcounts of
// whatever chain it displaced. p must be the chain word value the caller
// already observed (a pointer, not one of the two uncontended sentinels).
// Returns nil (signaling retry) if the chain was torn down from under the
// caller before its peg could be installed.
func (m *Mutex) pegAndAcquire(p unsafe.Pointer) *ctrlBlock {
	pg := newPeg(p)

	// Phase A — install the peg.
	for !m.casWord(p, unsafe.Pointer(pg)) {
		cur := m.wordPtr()
		if !isChainWord(cur) {
			return nil
		}
		pg.setNext(cur)
		p = cur
	}

	// Phase B — walk to the control block, then block on its inner mutex.
	// The peg keeps the block alive across this call.
	cb := walkToCtrlBlock(unsafe.Pointer(pg))
	cb.mu.Lock()

	// Phase C — retire the peg by exchanging the word for the control
	// block pointer, then reconcile whatever chain that exchange detached.
	prevHead := m.swapWord(unsafe.Pointer(cb))
	cb.incref() // the xchg just created a new primary-chain reference

	m.retireDetachedChain(prevHead, cb)
	retireInstallRef(pg)
	return cb
}

// walkToCtrlBlock follows a chain's next pointers past any pegs until it
// reaches the control block at the tail.
func walkToCtrlBlock(p unsafe.Pointer) *ctrlBlock {
	for chainNodeIsPeg(p) {
		p = asPeg(p).nextPtr()
	}
	return asCtrlBlock(p)
}

// retireDetachedChain walks the chain detached by this goroutine's phase-C
// exchange (spec.md §4.3, cases 1-3), cancelling every node's
// primary-chain reference — the one each peg was given at installation
// for being, at that moment, reachable from the mutex word — before this
// exchange replaced the word with cb. Every peg on the chain, own or
// foreign, gets exactly this one decrement here; the walk always
// continues to the next node regardless of whether that decrement
// reached zero, since a peg's next pointer is frozen at installation and
// safe to follow either way. A peg's remaining "installing goroutine"
// reference — the other half of the 2 it started with — is retired
// separately, by whichever goroutine actually installed it, in
// retireInstallRef; stopping this walk early at a still-referenced
// foreign peg would strand that peg's owner with no way to ever discover
// it again, since a later swapWord by a different goroutine can collapse
// the word straight past it.
func (m *Mutex) retireDetachedChain(root unsafe.Pointer, cb *ctrlBlock) {
	current := root
	for chainNodeIsPeg(current) {
		p := asPeg(current)
		current = p.nextPtr()
		p.decref(1)
	}
	// current is now the control block itself: the detached chain's
	// reachability into it is cancelled exactly once here, regardless of
	// how many pegs (if any) preceded it.
	cb.decref()
}

// retireInstallRef implements the other half of spec.md §4.3's phase
// C/D: it cancels the reference a goroutine's own peg carries on its
// installer's behalf. This happens unconditionally, independent of
// whatever retireDetachedChain found — the installing goroutine always
// holds pg directly from phase A, so it need not (and, per the race
// retireDetachedChain's doc comment describes, cannot reliably) locate
// its own peg via any chain walk rooted at a swap it may not have been
// the one to perform.
func retireInstallRef(pg *peg) {
	pg.decref(1)
	// Whether or not this reaches zero, the control block's share of
	// this chain was already accounted for by whichever walk passed over
	// pg in retireDetachedChain; nothing further to do here.
}

// releaseCtrlBlock implements spec.md §4.6: it decrements the block's
// refcount and, if that was the last real reference and the word still
// points directly at this block, destroys it; otherwise it simply
// unlocks the inner mutex and leaves the block alive for other
// referents.
func (m *Mutex) releaseCtrlBlock(cb *ctrlBlock) {
	if cb.decref() == 0 && m.casWord(unsafe.Pointer(cb), nil) {
		cb.mu.Unlock()
		cb.destroy()
		return
	}
	cb.mu.Unlock()
}
