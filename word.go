package skmutex

import (
	"sync/atomic"
	"unsafe"
)

// chainTag is embedded as the first field of both peg and ctrlBlock. Since
// Go struct layout guarantees a struct's address equals its first field's
// address, any unsafe.Pointer taken from the mutex word can be reinterpreted
// as a *chainTag to discover which of the two node kinds it actually is,
// without ever needing to steal spare bits out of the pointer itself (Go
// gives no such guarantee, unlike the source's C pointers).
type chainTag struct {
	isPeg bool
}

// wordLocked is the sentinel stored in Mutex.word when the lock is held
// by exactly one goroutine and has never been contended. It is a non-nil
// pointer value, chosen so it can never collide with a real *peg or
// *ctrlBlock allocation, and it is never dereferenced.
var wordLocked = unsafe.Pointer(&lockedSentinel)

var lockedSentinel int

// wordPtr loads the current value of the word.
func (m *Mutex) wordPtr() unsafe.Pointer {
	return atomic.LoadPointer(&m.word)
}

// casWord attempts to swing the word from old to new, sequentially
// consistent with respect to every other atomic operation on this word.
func (m *Mutex) casWord(old, new unsafe.Pointer) bool {
	return atomic.CompareAndSwapPointer(&m.word, old, new)
}

// swapWord unconditionally replaces the word, returning the previous
// value. Used by peg retirement (phase C of peg-and-acquire, §4.3).
func (m *Mutex) swapWord(new unsafe.Pointer) unsafe.Pointer {
	return atomic.SwapPointer(&m.word, new)
}

// isUnlockedWord reports whether p represents the "unheld, uncontended"
// state (the nil word).
func isUnlockedWord(p unsafe.Pointer) bool {
	return p == nil
}

// isLockedWord reports whether p represents the "held, uncontended" state.
func isLockedWord(p unsafe.Pointer) bool {
	return p == wordLocked
}

// isChainWord reports whether p points at a live chain (a peg or a
// control block) rather than being one of the two uncontended sentinels.
func isChainWord(p unsafe.Pointer) bool {
	return !isUnlockedWord(p) && !isLockedWord(p)
}

// chainNodeIsPeg reports whether the chain node at p is a *peg (true) or a
// *ctrlBlock (false). p must satisfy isChainWord.
func chainNodeIsPeg(p unsafe.Pointer) bool {
	return (*chainTag)(p).isPeg
}

// asPeg reinterprets p as a *peg. Callers must have checked chainNodeIsPeg.
func asPeg(p unsafe.Pointer) *peg {
	return (*peg)(p)
}

// asCtrlBlock reinterprets p as a *ctrlBlock. Callers must have checked
// !chainNodeIsPeg.
func asCtrlBlock(p unsafe.Pointer) *ctrlBlock {
	return (*ctrlBlock)(p)
}
