package mcs

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainRejectsBadSize(t *testing.T) {
	assert.Nil(t, NewDomain(0))
	assert.Nil(t, NewDomain(-1))
	require.NotNil(t, NewDomain(4))
	assert.Equal(t, 4, NewDomain(4).Count())
}

func TestLockConcurrentAccess(t *testing.T) {
	const numCores = 32
	const iterations = 500
	d := NewDomain(numCores)
	lock := d.NewLock()
	counter := 0
	var wg sync.WaitGroup

	wg.Add(numCores)
	for i := 0; i < numCores; i++ {
		go func(id int) {
			defer wg.Done()
			node := d.Node(id)
			for i := 0; i < iterations; i++ {
				lock.Lock(node)
				counter++
				lock.Unlock(node)
			}
		}(i)
	}
	wg.Wait()

	expected := numCores * iterations
	assert.Equal(t, expected, counter, "Expected counter to be %d, got %d", expected, counter)
}

func TestLockFIFOOrder(t *testing.T) {
	// Core 0 holds the lock while cores 1..n queue up one at a time; the
	// launcher watches the tail word so the link order is known exactly.
	const numWaiters = 8
	d := NewDomain(numWaiters + 1)
	lock := d.NewLock()
	holder := d.Node(0)
	lock.Lock(holder)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 1; i <= numWaiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			node := d.Node(id)
			lock.Lock(node)
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			lock.Unlock(node)
		}(i)

		// Wait until core i has swapped itself into the tail.
		for lock.tail.Load() != uint32(i)+1 {
			runtime.Gosched()
		}
	}

	lock.Unlock(holder)
	wg.Wait()

	require.Len(t, order, numWaiters)
	for i, id := range order {
		assert.Equal(t, i+1, id, "acquisition order diverged from link order: %v", order)
	}
}

func TestTryLock(t *testing.T) {
	d := NewDomain(2)
	lock := d.NewLock()

	assert.True(t, lock.TryLock(d.Node(0)), "TryLock on a free lock must succeed")
	assert.False(t, lock.TryLock(d.Node(1)), "TryLock on a held lock must fail")
	lock.Unlock(d.Node(0))
	assert.True(t, lock.IsFree())
	assert.True(t, lock.TryLock(d.Node(1)))
	lock.Unlock(d.Node(1))
}

func TestUnlockWaitsForUsurperLink(t *testing.T) {
	// Two cores hammer a single lock; every release races the other
	// core's swap into the tail, exercising the retraction-failed path.
	const iterations = 5000
	d := NewDomain(2)
	lock := d.NewLock()
	counter := 0
	var wg sync.WaitGroup

	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(id int) {
			defer wg.Done()
			node := d.Node(id)
			for i := 0; i < iterations; i++ {
				lock.Lock(node)
				counter++
				lock.Unlock(node)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2*iterations, counter)
	assert.True(t, lock.IsFree())
}

func TestMultipleLocksShareDomain(t *testing.T) {
	const numCores = 8
	const iterations = 200
	d := NewDomain(numCores)
	lockA := d.NewLock()
	lockB := d.NewLock()
	counterA, counterB := 0, 0
	var wg sync.WaitGroup

	wg.Add(numCores)
	for i := 0; i < numCores; i++ {
		go func(id int) {
			defer wg.Done()
			node := d.Node(id)
			for j := 0; j < iterations; j++ {
				if (id+j)%2 == 0 {
					lockA.Lock(node)
					counterA++
					lockA.Unlock(node)
				} else {
					lockB.Lock(node)
					counterB++
					lockB.Unlock(node)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, numCores*iterations, counterA+counterB)
	assert.True(t, lockA.IsFree())
	assert.True(t, lockB.IsFree())
}

func TestLockStress(t *testing.T) {
	const numCores = 10
	const iterations = 10000
	d := NewDomain(numCores)
	lock := d.NewLock()
	var wg sync.WaitGroup

	start := time.Now()
	wg.Add(numCores)
	for i := 0; i < numCores; i++ {
		go func(id int) {
			defer wg.Done()
			node := d.Node(id)
			for j := 0; j < iterations; j++ {
				lock.Lock(node)
				lock.Unlock(node)
			}
		}(i)
	}
	wg.Wait()
	duration := time.Since(start)

	assert.Less(t, duration, 30*time.Second, "Lock stress test took too long: %v", duration)
}
