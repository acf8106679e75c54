package skmutex

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestWordSentinels(t *testing.T) {
	assert.True(t, isUnlockedWord(nil))
	assert.False(t, isLockedWord(nil))
	assert.False(t, isChainWord(nil))

	assert.True(t, isLockedWord(wordLocked))
	assert.False(t, isUnlockedWord(wordLocked))
	assert.False(t, isChainWord(wordLocked))

	var x int
	p := unsafe.Pointer(&x)
	assert.True(t, isChainWord(p))
	assert.False(t, isUnlockedWord(p))
	assert.False(t, isLockedWord(p))
}

func TestMutexWordCAS(t *testing.T) {
	m := New()
	assert.True(t, isUnlockedWord(m.wordPtr()))

	assert.True(t, m.casWord(nil, wordLocked))
	assert.True(t, isLockedWord(m.wordPtr()))

	assert.False(t, m.casWord(nil, wordLocked), "CAS must fail against a stale expected value")

	prev := m.swapWord(nil)
	assert.True(t, isLockedWord(prev))
	assert.True(t, isUnlockedWord(m.wordPtr()))
}

func TestChainNodeTagging(t *testing.T) {
	cb := newCtrlBlock(false)
	cb.mu.Unlock()
	pg := newPeg(unsafe.Pointer(cb))

	assert.True(t, chainNodeIsPeg(unsafe.Pointer(pg)))
	assert.False(t, chainNodeIsPeg(unsafe.Pointer(cb)))
	assert.Same(t, cb, asCtrlBlock(unsafe.Pointer(cb)))
	assert.Same(t, pg, asPeg(unsafe.Pointer(pg)))
}
