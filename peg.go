package skmutex

import (
	"sync/atomic"
	"unsafe"
)

// peg is an ephemeral chain node that pins a ctrlBlock against reclamation
// while some goroutine is in the middle of reaching it. A fresh peg starts
// with refs == 2: one reference for the goroutine that installed it, one
// for the mutex word itself (the peg is, at the moment of installation,
// the head of the primary chain). Both references are retired by
// retireDetachedChain/retireInstallRef as the installing goroutine's
// access completes.
type peg struct {
	chainTag     // isPeg is always true for a peg
	refs     int32 // atomic; never observed outside [0, 2]
	next     unsafe.Pointer
}

func newPeg(next unsafe.Pointer) *peg {
	p := &peg{next: next}
	p.chainTag.isPeg = true
	p.refs = 2
	return p
}

// nextPtr loads the peg's successor in the chain.
func (p *peg) nextPtr() unsafe.Pointer {
	return atomic.LoadPointer(&p.next)
}

// setNext updates next; only the installing goroutine does this, while
// retrying the CAS in phase A of peg-and-acquire (§4.3), before the peg is
// published to the word.
func (p *peg) setNext(next unsafe.Pointer) {
	atomic.StorePointer(&p.next, next)
}

// decref atomically subtracts n from the peg's refcount and reports the
// post-decrement value. A result of zero means the caller just dropped the
// last reference and must retire (drop) the peg.
func (p *peg) decref(n int32) int32 {
	return atomic.AddInt32(&p.refs, -n)
}
