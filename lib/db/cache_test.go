package db

import (
	"sync"
	"testing"
	"time"

	"github.com/MatiasNAmendola/Nxdb/lib/store"
)

func TestCacheLengthNeverDecreases(t *testing.T) {
	d := newTestDB(t, "cache-grow", 6)

	handles := make([]*Node, 6)
	for i := range handles {
		handles[i] = mustNode(t, d, i)
	}

	before := d.cache.len()
	if before < 6 {
		t.Fatalf("Expected at least 6 slots, got %d", before)
	}

	for i := 0; i < 3; i++ {
		if err := d.Update([]store.Op{{Type: store.OpDelete, Pos: 0}}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got := d.cache.len(); got < before {
			t.Errorf("Expected slot count to stay >= %d after delete, got %d", before, got)
		}
	}

	// Growth still happens on inserts past the current end.
	batch := make([]store.Op, 8)
	for i := range batch {
		batch[i] = store.Op{Type: store.OpInsert, Pos: 3, Rec: store.Record{Kind: store.KindText}}
	}
	if err := d.Update(batch); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := d.NodeAt(10); err != nil {
		t.Fatalf("NodeAt(10) failed: %v", err)
	}
	if got := d.cache.len(); got < 11 {
		t.Errorf("Expected at least 11 slots after growth, got %d", got)
	}
}

func TestConcurrentLookupsShareHandles(t *testing.T) {
	d := newTestDB(t, "cache-concurrent", 8)

	const workers = 16
	results := make([][]*Node, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			nodes := make([]*Node, 8)
			for i := range nodes {
				n, err := d.NodeAt(i)
				if err != nil {
					t.Errorf("NodeAt(%d) failed: %v", i, err)
					return
				}
				nodes[i] = n
			}
			results[w] = nodes
		}(w)
	}
	wg.Wait()

	for w := 1; w < workers; w++ {
		if results[w] == nil {
			continue
		}
		for i := range results[w] {
			if results[w][i] != results[0][i] {
				t.Fatalf("Expected worker %d to share the handle at position %d", w, i)
			}
		}
	}
}

func TestReadSectionBlocksWriter(t *testing.T) {
	d := newTestDB(t, "cache-rwblock", 4)

	d.RLock()
	n := mustNodeLocked(t, d, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.Update([]store.Op{{Type: store.OpDelete, Pos: 1}}); err != nil {
			t.Errorf("Update failed: %v", err)
		}
	}()

	// The writer must not get through while the read section is open.
	select {
	case <-done:
		t.Fatal("Expected writer to block during a read section")
	case <-time.After(50 * time.Millisecond):
	}
	if !n.Valid() {
		t.Fatal("Expected handle to stay valid inside the read section")
	}
	d.RUnlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected writer to proceed after the read section closed")
	}
	if n.Valid() {
		t.Error("Expected handle to be invalidated by the delete")
	}
}

// mustNodeLocked resolves a position while the caller already holds the
// database's shared lock.
func mustNodeLocked(t *testing.T, d *Database, pos int) *Node {
	t.Helper()
	n, err := d.nodeAtLocked(pos)
	if err != nil {
		t.Fatalf("nodeAtLocked(%d) failed: %v", pos, err)
	}
	return n
}
