package chat

import (
	"sync"
	"testing"
)

func TestSessionLocksSerialize(t *testing.T) {
	locks := newSessionLocks()

	const workers = 8
	const iterations = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				release := locks.Acquire("s1")
				counter++
				release()
			}
		}()
	}
	wg.Wait()

	if counter != workers*iterations {
		t.Errorf("Expected %d serialized increments, got %d", workers*iterations, counter)
	}
}

func TestSessionLocksCleanup(t *testing.T) {
	locks := newSessionLocks()

	release := locks.Acquire("s1")
	release()

	locks.mu.Lock()
	remaining := len(locks.locks)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Errorf("Expected released locks removed, got %d entries", remaining)
	}
}

func TestSessionLocksIndependentSessions(t *testing.T) {
	locks := newSessionLocks()

	releaseA := locks.Acquire("a")
	done := make(chan struct{})
	go func() {
		releaseB := locks.Acquire("b")
		releaseB()
		close(done)
	}()

	<-done // must not deadlock while "a" is held
	releaseA()
}
