package service_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evetabi/sportsbook/internal/service"
)

// TestKeyedMutex_SerialisesSameKey runs 50 goroutines on one key and checks
// that no two are ever inside the critical section together.
func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	const workers = 50
	k := service.NewKeyedMutex()

	var (
		inside  int64
		maxSeen int64
		wg      sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("alice")
			defer unlock()

			n := atomic.AddInt64(&inside, 1)
			for {
				seen := atomic.LoadInt64(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt64(&maxSeen, seen, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&inside, -1)
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
	if n := service.KeyedMutexSize(k); n != 0 {
		t.Errorf("%d entries left after all unlocks, want 0", n)
	}
}

// TestKeyedMutex_IndependentKeys verifies that different keys do not block
// each other: a held "alice" lock must not stop "bob".
func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := service.NewKeyedMutex()
	unlockAlice := k.Lock("alice")
	defer unlockAlice()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("bob")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bob blocked behind alice")
	}
}
