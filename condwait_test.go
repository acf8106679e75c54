package skmutex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondWaitWithoutLockIsNotPermitted(t *testing.T) {
	m := New()
	c := NewCond()
	assert.ErrorIs(t, m.CondWait(c), ErrNotPermitted)
}

func TestCondWaitSignalWakesHoldingLock(t *testing.T) {
	m := New()
	c := NewCond()
	m.Lock()

	woke := make(chan error, 1)
	go func() {
		woke <- m.CondWait(c)
	}()

	time.Sleep(5 * time.Millisecond)
	// CondWait released m on the waiter's behalf; take it here before
	// signaling, so the waiter can't re-acquire m until this goroutine
	// releases it.
	m.Lock()
	c.Signal()
	require.NoError(t, m.Unlock())

	err := <-woke
	assert.NoError(t, err)
	assert.NoError(t, m.Unlock())
}

func TestCondWaitBroadcastWakesAllWaiters(t *testing.T) {
	m := New()
	c := NewCond()

	// Each waiter takes m before waiting, since CondWait requires m to be
	// held and releases it for the duration of the wait.
	const n = 4
	woke := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			m.Lock()
			woke <- m.CondWait(c)
		}()
	}

	time.Sleep(5 * time.Millisecond)
	m.Lock()
	c.Broadcast()
	require.NoError(t, m.Unlock())

	for i := 0; i < n; i++ {
		err := <-woke
		assert.NoError(t, err)
		require.NoError(t, m.Unlock())
	}
}

func TestCondWaitContextWithoutLockIsNotPermitted(t *testing.T) {
	m := New()
	c := NewCond()
	assert.ErrorIs(t, m.CondWaitContext(context.Background(), c), ErrNotPermitted)
}

func TestCondWaitContextTimesOut(t *testing.T) {
	m := New()
	c := NewCond()
	m.Lock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := m.CondWaitContext(ctx, c)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NoError(t, m.Unlock())

	// Unblock the still-pending internal Wait goroutine so the test binary
	// doesn't finish with it parked forever.
	c.Broadcast()
}

func TestCondWaitContextAlreadyCancelled(t *testing.T) {
	m := New()
	c := NewCond()
	m.Lock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.CondWaitContext(ctx, c)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, m.Unlock())
}
