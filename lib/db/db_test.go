package db

import (
	"fmt"
	"testing"

	"github.com/MatiasNAmendola/Nxdb/lib/store"
	"github.com/MatiasNAmendola/Nxdb/lib/store/memstore"
)

// newTestDB creates a fresh in-memory database with count text nodes.
func newTestDB(t *testing.T, name string, count int) *Database {
	t.Helper()
	engine := memstore.NewEngine(nil)

	d, err := Create(engine, name, Options{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Dispose() })

	batch := make([]store.Op, count)
	for i := range batch {
		batch[i] = store.Op{
			Type: store.OpInsert,
			Pos:  i,
			Rec:  store.Record{Kind: store.KindText, Value: []byte(fmt.Sprintf("node-%d", i))},
		}
	}
	if err := d.Update(batch); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return d
}

// mustNode resolves a position and fails the test on error.
func mustNode(t *testing.T, d *Database, pos int) *Node {
	t.Helper()
	n, err := d.NodeAt(pos)
	if err != nil {
		t.Fatalf("NodeAt(%d) failed: %v", pos, err)
	}
	return n
}

// --------------------------------------------------------------------------
// Handle coherence across mutations
// --------------------------------------------------------------------------

func TestHandleSurvivesUnrelatedMutation(t *testing.T) {
	d := newTestDB(t, "survive", 4)

	n := mustNode(t, d, 3)
	id := n.ID()

	// Insert a node at the front; position 3 is unrelated to the edit.
	err := d.Update([]store.Op{{Type: store.OpInsert, Pos: 0, Rec: store.Record{Kind: store.KindText}}})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if !n.Valid() {
		t.Errorf("Expected handle to stay valid across unrelated mutation")
	}
	if n.ID() != id {
		t.Errorf("Expected id %d, got %d", id, n.ID())
	}
	pos, err := n.Pos()
	if err != nil {
		t.Fatalf("Pos failed: %v", err)
	}
	if pos != 4 {
		t.Errorf("Expected resynced position 4, got %d", pos)
	}
}

func TestInsertShiftsPositionByK(t *testing.T) {
	d := newTestDB(t, "shift-k", 5)

	const p, k = 2, 3
	n := mustNode(t, d, p)
	id := n.ID()

	// The cached position must not change before the resync ran, so check
	// right after obtaining the handle.
	if pos, _ := n.Pos(); pos != p {
		t.Fatalf("Expected initial position %d, got %d", p, pos)
	}

	batch := make([]store.Op, k)
	for i := range batch {
		batch[i] = store.Op{Type: store.OpInsert, Pos: 0, Rec: store.Record{Kind: store.KindComment}}
	}
	if err := d.Update(batch); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	pos, err := n.Pos()
	if err != nil {
		t.Fatalf("Pos failed: %v", err)
	}
	if pos != p+k {
		t.Errorf("Expected position %d after inserting %d nodes, got %d", p+k, k, pos)
	}
	if n.ID() != id {
		t.Errorf("Expected id unchanged (%d), got %d", id, n.ID())
	}
}

func TestDeleteInvalidatesPermanently(t *testing.T) {
	d := newTestDB(t, "delete-perm", 3)

	n := mustNode(t, d, 1)
	if err := d.Update([]store.Op{{Type: store.OpDelete, Pos: 1}}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if n.Valid() {
		t.Fatalf("Expected handle of deleted node to be invalid")
	}
	if _, err := n.Value(); store.CodeOf(err) != store.RetCInvalidHandle {
		t.Errorf("Expected RetCInvalidHandle, got %v", err)
	}

	// A new node at the old position must not revive the handle.
	err := d.Update([]store.Op{{Type: store.OpInsert, Pos: 1, Rec: store.Record{Kind: store.KindText, Value: []byte("newcomer")}}})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if n.Valid() {
		t.Errorf("Expected handle to stay invalid after its position was reoccupied")
	}
	if _, err := n.Revalidate(); store.CodeOf(err) != store.RetCInvalidHandle {
		t.Errorf("Expected RetCInvalidHandle from Revalidate, got %v", err)
	}
}

// TestDeleteScenario runs the canonical four-node scenario: deleting
// position 1 shifts every follower left by one and invalidates exactly the
// deleted node's handle.
func TestDeleteScenario(t *testing.T) {
	d := newTestDB(t, "scenario", 4)

	handles := make([]*Node, 4)
	ids := make([]uint64, 4)
	for i := range handles {
		handles[i] = mustNode(t, d, i)
		ids[i] = handles[i].ID()
	}

	if err := d.Update([]store.Op{{Type: store.OpDelete, Pos: 1}}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Node 0 stays, node 1 is gone, nodes 2 and 3 shift left.
	wantPos := map[int]int{0: 0, 2: 1, 3: 2}
	for i, want := range wantPos {
		if !handles[i].Valid() {
			t.Errorf("Expected handle %d (id %d) to stay valid", i, ids[i])
			continue
		}
		pos, err := handles[i].Pos()
		if err != nil {
			t.Fatalf("Pos failed: %v", err)
		}
		if pos != want {
			t.Errorf("Expected id %d at position %d, got %d", ids[i], want, pos)
		}
	}
	if handles[1].Valid() {
		t.Errorf("Expected handle of deleted id %d to be invalid", ids[1])
	}

	// The re-slotted handles are found by fresh lookups, not duplicated.
	if n := mustNode(t, d, 1); n != handles[2] {
		t.Errorf("Expected lookup at position 1 to return the moved handle")
	}
}

// --------------------------------------------------------------------------
// Handle identity
// --------------------------------------------------------------------------

func TestLookupYieldsIdenticalHandles(t *testing.T) {
	d := newTestDB(t, "identity", 3)

	first := mustNode(t, d, 2)
	second := mustNode(t, d, 2)
	if first != second {
		t.Errorf("Expected reference-identical handles for repeated lookups")
	}
	if !first.Same(second) {
		t.Errorf("Expected Same to hold for identical handles")
	}

	byID, err := d.NodeByID(first.ID())
	if err != nil {
		t.Fatalf("NodeByID failed: %v", err)
	}
	if byID != first {
		t.Errorf("Expected NodeByID to return the cached handle")
	}

	other := mustNode(t, d, 1)
	if first.Same(other) {
		t.Errorf("Expected Same to be false for different nodes")
	}
}

// --------------------------------------------------------------------------
// Payload reads
// --------------------------------------------------------------------------

func TestPayloadReads(t *testing.T) {
	d := newTestDB(t, "payload", 2)

	n := mustNode(t, d, 1)
	kind, err := n.Kind()
	if err != nil {
		t.Fatalf("Kind failed: %v", err)
	}
	if kind != store.KindText {
		t.Errorf("Expected KindText, got %v", kind)
	}
	value, err := n.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if string(value) != "node-1" {
		t.Errorf("Expected value %q, got %q", "node-1", value)
	}

	// Reads resolve through the id, so a stale cached position still reads
	// the right node.
	if err := d.Update([]store.Op{{Type: store.OpInsert, Pos: 0, Rec: store.Record{Kind: store.KindComment}}}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	value, err = n.Value()
	if err != nil {
		t.Fatalf("Value after shift failed: %v", err)
	}
	if string(value) != "node-1" {
		t.Errorf("Expected value %q after shift, got %q", "node-1", value)
	}
}

// --------------------------------------------------------------------------
// Failed batches
// --------------------------------------------------------------------------

func TestRejectedBatchLeavesCacheUntouched(t *testing.T) {
	d := newTestDB(t, "rejected", 3)

	n := mustNode(t, d, 2)

	err := d.Update([]store.Op{
		{Type: store.OpDelete, Pos: 0},
		{Type: store.OpDelete, Pos: 99},
	})
	if store.CodeOf(err) != store.RetCApplyFailed {
		t.Fatalf("Expected RetCApplyFailed, got %v", err)
	}

	if !n.Valid() {
		t.Errorf("Expected handle untouched by rejected batch")
	}
	pos, err := n.Pos()
	if err != nil {
		t.Fatalf("Pos failed: %v", err)
	}
	if pos != 2 {
		t.Errorf("Expected position 2 after rejected batch, got %d", pos)
	}
	if size, _ := d.Size(); size != 3 {
		t.Errorf("Expected size 3 after rejected batch, got %d", size)
	}
}

// --------------------------------------------------------------------------
// UpdateIf
// --------------------------------------------------------------------------

func TestUpdateIf(t *testing.T) {
	d := newTestDB(t, "update-if", 2)

	// Passing precondition: the batch applies.
	err := d.UpdateIf(func(d *Database) error {
		if d.store.Size() != 2 {
			return store.NewError(store.RetCInvalidOperation, "unexpected size")
		}
		return nil
	}, []store.Op{{Type: store.OpInsert, Pos: 2, Rec: store.Record{Kind: store.KindText}}})
	if err != nil {
		t.Fatalf("UpdateIf failed: %v", err)
	}
	if size, _ := d.Size(); size != 3 {
		t.Errorf("Expected size 3, got %d", size)
	}

	// Failing precondition: the batch is abandoned, the error surfaces.
	err = d.UpdateIf(func(d *Database) error {
		return store.NewError(store.RetCInvalidOperation, "precondition failed")
	}, []store.Op{{Type: store.OpDelete, Pos: 0}})
	if store.CodeOf(err) != store.RetCInvalidOperation {
		t.Fatalf("Expected precondition error, got %v", err)
	}
	if size, _ := d.Size(); size != 3 {
		t.Errorf("Expected size 3 after abandoned batch, got %d", size)
	}
}
