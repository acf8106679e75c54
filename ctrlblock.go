package skmutex

import (
	"sync"
	"sync/atomic"
)

// ctrlBlock is the "fat mutex": the auxiliary control block a Mutex
// attaches the first time it is actually contended. It is shared by every
// goroutine racing on the Mutex and carries the full blocking apparatus
// the skinny word alone cannot: a conventional mutex, a condition
// variable, the held flag, a waiter count, and the transfer bookkeeping
// used by Transfer/VetoTransfer.
//
// refcount follows the -1 offset convention from spec.md §3: it counts
// every *real* reference to this block (a goroutine blocked on cond
// waiting to acquire, a peg on a secondary chain, a goroutine suspended in
// CondWait, and a pseudo-reference for the lock holder while held is
// true) except the one held by the primary chain itself. refcount == 0
// therefore means "only the primary chain still reaches this block."
type ctrlBlock struct {
	chainTag // isPeg is always false for a control block

	mu   sync.Mutex
	cond sync.Cond // bound to &mu

	held     bool
	waiters  int
	refcount int32 // atomic; -1-offset per spec.md §3

	transferGen int64 // bumped by VetoTransfer
	transfers   int   // goroutines in the blocking phase of a Transfer into this Mutex
}

// newCtrlBlock allocates a freshly promoted control block. held/refcount
// are seeded per spec.md §4.4: held iff the word being promoted away from
// was wordLocked, with a pseudo-reference accounted for the holder in that
// case. The inner mutex is pre-acquired — the promoted block is always
// returned locked (spec.md §9, second open question), mirrored by every
// caller of promote/getCtrlBlock.
func newCtrlBlock(wasLocked bool) *ctrlBlock {
	cb := &ctrlBlock{held: wasLocked}
	cb.chainTag.isPeg = false
	cb.cond.L = &cb.mu
	if wasLocked {
		cb.refcount = 1
	}
	cb.mu.Lock()
	return cb
}

func (cb *ctrlBlock) incref() int32 {
	return atomic.AddInt32(&cb.refcount, 1)
}

func (cb *ctrlBlock) decref() int32 {
	return atomic.AddInt32(&cb.refcount, -1)
}

func (cb *ctrlBlock) refs() int32 {
	return atomic.LoadInt32(&cb.refcount)
}

// destroy tears down the inner sync.Cond/sync.Mutex bookkeeping. Go has no
// explicit free for the block itself (see SPEC_FULL.md's GC note); this
// exists so the release path has a single, obviously-named place that
// marks "this control block's life is over" for anyone reading the code
// next to the C original's explicit pthread_mutex_destroy/
// pthread_cond_destroy calls.
func (cb *ctrlBlock) destroy() {
	cb.cond.L = nil
}
