package lockmgr

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadersDoNotBlockEachOther(t *testing.T) {
	var mu URWMutex

	const readers = 8
	var inside atomic.Int32
	var peak atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			<-start
			mu.RLock()
			defer mu.RUnlock()

			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inside.Add(-1)
		}()
	}
	close(start)
	wg.Wait()

	if peak.Load() < 2 {
		t.Errorf("Expected concurrent readers, peak was %d", peak.Load())
	}
}

func TestWriterExcludesReaders(t *testing.T) {
	var mu URWMutex

	mu.Lock()

	acquired := make(chan struct{})
	go func() {
		mu.RLock()
		defer mu.RUnlock()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("Reader acquired the lock while a writer held it")
	case <-time.After(50 * time.Millisecond):
	}

	mu.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("Reader never acquired the lock after writer release")
	}
}

func TestUpgradableCoexistsWithReaders(t *testing.T) {
	var mu URWMutex

	mu.ULock()
	defer mu.UUnlock()

	acquired := make(chan struct{})
	go func() {
		mu.RLock()
		defer mu.RUnlock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("Reader blocked by an upgradable holder")
	}
}

func TestUpgradableExcludesUpgradable(t *testing.T) {
	var mu URWMutex

	mu.ULock()

	acquired := make(chan struct{})
	go func() {
		mu.ULock()
		defer mu.UUnlock()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("Two upgradable holds were active at once")
	case <-time.After(50 * time.Millisecond):
	}

	mu.UUnlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("Second upgradable hold never acquired")
	}
}

// TestUpgradePreventsWriterInterleaving verifies the check-then-act property:
// between the read phase of an upgradable hold and its escalation, no writer
// may modify the protected state.
func TestUpgradePreventsWriterInterleaving(t *testing.T) {
	var mu URWMutex
	counter := 0

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			mu.ULock()
			observed := counter
			mu.Upgrade()
			if counter != observed {
				t.Errorf("Writer interleaved between check and upgrade: observed %d, found %d", observed, counter)
			}
			counter = observed + 1
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("Expected counter %d, got %d", workers, counter)
	}
}

func TestUpgradeWaitsForPlainReaders(t *testing.T) {
	var mu URWMutex

	mu.RLock()

	mu.ULock()
	upgraded := make(chan struct{})
	go func() {
		mu.Upgrade()
		close(upgraded)
	}()

	select {
	case <-upgraded:
		t.Fatalf("Upgrade completed while a plain reader was active")
	case <-time.After(50 * time.Millisecond):
	}

	mu.RUnlock()

	select {
	case <-upgraded:
	case <-time.After(time.Second):
		t.Fatalf("Upgrade never completed after readers drained")
	}
	mu.Unlock()
}
