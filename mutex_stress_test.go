package skmutex

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/dijkstracula/go-skinnymutex/internal/allocwatch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestMutualExclusionUnderHeavyContention drives many goroutines through
// repeated Lock/TryLock/Unlock cycles against a shared counter and a
// shared mutex, checking that no interleaving ever produces a torn
// update: the counter must land exactly at the number of successful
// critical-section entries.
func TestMutualExclusionUnderHeavyContention(t *testing.T) {
	m := New()
	var counter int64
	var entries int64

	const goroutines = 64
	const iterations = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < iterations; i++ {
				if r.Intn(4) == 0 {
					if !m.TryLock() {
						continue
					}
				} else {
					m.Lock()
				}
				counter++
				atomic.AddInt64(&entries, 1)
				time.Sleep(time.Microsecond)
				_ = m.Unlock()
			}
		}(int64(g))
	}
	wg.Wait()

	assert.Equal(t, atomic.LoadInt64(&entries), counter)
}

// TestContendedBurstReclaimsCtrlBlock drives a burst of goroutines to
// contend on a held mutex, which promotes its word to a control block,
// and confirms that once all goroutines have drained, the final Unlock
// leaves the mutex back in the unlocked-uncontended state.
func TestContendedBurstReclaimsCtrlBlock(t *testing.T) {
	m := New()
	m.Lock()

	const waiters = 32
	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			m.Lock()
			time.Sleep(time.Microsecond)
			_ = m.Unlock()
		}()
	}

	time.Sleep(2 * time.Millisecond)
	_ = m.Unlock()
	wg.Wait()

	assert.True(t, isUnlockedWord(m.wordPtr()), "ctrlBlock must be reclaimed once its refcount quiesces to zero")
}

// TestNoLeakedAllocationsAfterQuiescence is a coarse stand-in for an
// allocation-hook leak check: once every goroutine contending on a mutex
// has finished and the control block's refcount has dropped to zero, the
// ctrlBlock and its peg chain become eligible for collection and the
// word is back to unlocked. The test counts the heap allocations
// (runtime.MemStats.Mallocs) made by one Lock/Unlock pair after 500
// contended rounds; it does not measure the size of the live heap.
func TestNoLeakedAllocationsAfterQuiescence(t *testing.T) {
	m := New()

	const rounds = 500
	for i := 0; i < rounds; i++ {
		m.Lock()
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			_ = m.Unlock()
		}()
		time.Sleep(time.Microsecond)
		_ = m.Unlock()
		wg.Wait()
	}

	before := allocwatch.Take()
	m.Lock()
	_ = m.Unlock()
	after := allocwatch.Delta(before)

	// A single uncontended Lock/Unlock pair should allocate nothing
	// beyond noise; it must not scale with the 500 prior rounds.
	assert.Less(t, after, uint64(50))
}

func TestContextCancelledCondWaitDoesNotLeakGoroutines(t *testing.T) {
	m := New()
	c := NewCond()
	m.Lock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(time.Millisecond)
		cancel()
	}()

	err := m.CondWaitContext(ctx, c)
	assert.Error(t, err)
	_ = m.Unlock()

	// Release the still-parked internal Wait goroutine so goleak's
	// end-of-package check doesn't see it.
	c.Broadcast()
	time.Sleep(time.Millisecond)
}

func TestConcurrentTransfersDrainCleanly(t *testing.T) {
	const chains = 16
	mutexes := make([]*Mutex, chains)
	for i := range mutexes {
		mutexes[i] = New()
		mutexes[i].Lock()
	}

	var wg sync.WaitGroup
	for i := 0; i < chains-1; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := Transfer(mutexes[i], mutexes[i+1]); err != nil {
				t.Errorf("transfer %d->%d: %v", i, i+1, err)
			}
		}(i)
	}

	time.Sleep(2 * time.Millisecond)
	for i := 1; i < chains; i++ {
		_ = mutexes[i].Unlock()
	}
	wg.Wait()

	assert.True(t, mutexes[0].TryLock())
	_ = mutexes[0].Unlock()
}
