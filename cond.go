package skmutex

import "sync"

// Cond is the external condition variable CondWait/CondWaitContext wait
// on. Unlike a bare sync.Cond, its L is not fixed at construction: each
// CondWait/CondWaitContext call rebinds it to the control block's own
// inner mutex before waiting, which is already held at that point in the
// call. That makes the release-and-wait step a single atomic
// sync.Cond.Wait() against the real lock instead of an explicit Unlock
// followed by a separately-locked wait, which is what pthread_cond_wait's
// atomicity contract (spec.md §4.10) actually requires: a Signal or
// Broadcast racing the handoff must never be lost.
type Cond struct {
	cond sync.Cond
}

// NewCond returns a ready-to-use Cond. Its L is nil until the first
// CondWait/CondWaitContext call rebinds it.
func NewCond() *Cond {
	return &Cond{}
}

// Signal wakes one goroutine blocked in a CondWait/CondWaitContext call on
// c, if any. Per sync.Cond, the caller need not hold the Mutex associated
// with c to call this.
func (c *Cond) Signal() {
	c.cond.Signal()
}

// Broadcast wakes every goroutine blocked in a CondWait/CondWaitContext
// call on c.
func (c *Cond) Broadcast() {
	c.cond.Broadcast()
}
