package testing

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/MatiasNAmendola/Nxdb/lib/store"
)

// EngineFactory is a function that creates a new instance of an Engine
// implementation.
type EngineFactory func() store.Engine

// RunEngineTests runs a comprehensive conformance test suite for a
// store.Engine implementation.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("CreateAndClose", func(t *testing.T) {
			testCreateAndClose(t, factory())
		})

		t.Run("Insert", func(t *testing.T) {
			testInsert(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Replace", func(t *testing.T) {
			testReplace(t, factory())
		})

		t.Run("BatchAtomicity", func(t *testing.T) {
			testBatchAtomicity(t, factory())
		})

		t.Run("IDStability", func(t *testing.T) {
			testIDStability(t, factory())
		})

		t.Run("DropPinned", func(t *testing.T) {
			testDropPinned(t, factory())
		})

		t.Run("OpenDedup", func(t *testing.T) {
			testOpenDedup(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// mustCreate creates a named store and fails the test on error.
func mustCreate(t testing.TB, engine store.Engine, name string) store.IStore {
	t.Helper()
	s, err := engine.Create(name)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", name, err)
	}
	return s
}

// appendNodes appends count text nodes and returns their ids.
func appendNodes(t testing.TB, s store.IStore, count int) []uint64 {
	t.Helper()
	batch := make([]store.Op, 0, count)
	for i := 0; i < count; i++ {
		batch = append(batch, store.Op{
			Type: store.OpInsert,
			Pos:  s.Size() + i,
			Rec:  store.Record{Kind: store.KindText, Value: []byte(fmt.Sprintf("text-%d", i))},
		})
	}
	if err := s.Apply(batch); err != nil {
		t.Fatalf("Apply(append %d) failed: %v", count, err)
	}

	ids := make([]uint64, count)
	for i := range ids {
		id, err := s.IDAt(s.Size() - count + i)
		if err != nil {
			t.Fatalf("IDAt failed: %v", err)
		}
		ids[i] = id
	}
	return ids
}

// requireFeature skips the test if the store does not support the feature.
func requireFeature(t testing.TB, s store.IStore, feature store.Feature) {
	if !s.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testCreateAndClose(t *testing.T, engine store.Engine) {
	s := mustCreate(t, engine, "create-close")

	if s.Size() != 0 {
		t.Errorf("Expected empty store, got size %d", s.Size())
	}
	if s.Name() != "create-close" {
		t.Errorf("Expected name %q, got %q", "create-close", s.Name())
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// A second close must be rejected.
	if err := s.Close(); err == nil {
		t.Errorf("Expected error on double Close")
	} else if store.CodeOf(err) != store.RetCDisposed {
		t.Errorf("Expected RetCDisposed on double Close, got %v", err)
	}
}

func testInsert(t *testing.T, engine store.Engine) {
	s := mustCreate(t, engine, "insert")
	defer s.Close()

	ids := appendNodes(t, s, 3)
	if s.Size() != 3 {
		t.Fatalf("Expected size 3, got %d", s.Size())
	}

	// Insert before position 1 shifts the tail right.
	err := s.Apply([]store.Op{{
		Type: store.OpInsert,
		Pos:  1,
		Rec:  store.Record{Kind: store.KindElement, Name: "mid"},
	}})
	if err != nil {
		t.Fatalf("Apply(insert) failed: %v", err)
	}

	if s.Size() != 4 {
		t.Errorf("Expected size 4, got %d", s.Size())
	}

	rec, err := s.RecordAt(1)
	if err != nil {
		t.Fatalf("RecordAt(1) failed: %v", err)
	}
	if rec.Kind != store.KindElement || rec.Name != "mid" {
		t.Errorf("Expected inserted element at position 1, got %+v", rec)
	}

	// The former occupant of position 1 moved to 2, id unchanged.
	movedID, err := s.IDAt(2)
	if err != nil {
		t.Fatalf("IDAt(2) failed: %v", err)
	}
	if movedID != ids[1] {
		t.Errorf("Expected id %d at position 2, got %d", ids[1], movedID)
	}
}

func testDelete(t *testing.T, engine store.Engine) {
	s := mustCreate(t, engine, "delete")
	defer s.Close()

	ids := appendNodes(t, s, 4)

	if err := s.Apply([]store.Op{{Type: store.OpDelete, Pos: 1}}); err != nil {
		t.Fatalf("Apply(delete) failed: %v", err)
	}

	if s.Size() != 3 {
		t.Errorf("Expected size 3, got %d", s.Size())
	}

	// The deleted id no longer resolves.
	if _, found := s.PositionOf(ids[1]); found {
		t.Errorf("Expected deleted id %d to be unresolvable", ids[1])
	}

	// Followers shifted left by one.
	for i, id := range []uint64{ids[0], ids[2], ids[3]} {
		pos, found := s.PositionOf(id)
		if !found {
			t.Fatalf("Expected id %d to resolve", id)
		}
		if pos != i {
			t.Errorf("Expected id %d at position %d, got %d", id, i, pos)
		}
	}
}

func testReplace(t *testing.T, engine store.Engine) {
	s := mustCreate(t, engine, "replace")
	defer s.Close()

	requireFeature(t, s, store.FeatureReplace)
	ids := appendNodes(t, s, 2)

	err := s.Apply([]store.Op{{
		Type: store.OpReplace,
		Pos:  0,
		Rec:  store.Record{Kind: store.KindComment, Value: []byte("swapped")},
	}})
	if err != nil {
		t.Fatalf("Apply(replace) failed: %v", err)
	}

	// Replace keeps identity and position.
	id, err := s.IDAt(0)
	if err != nil {
		t.Fatalf("IDAt(0) failed: %v", err)
	}
	if id != ids[0] {
		t.Errorf("Expected replace to keep id %d, got %d", ids[0], id)
	}

	rec, err := s.RecordAt(0)
	if err != nil {
		t.Fatalf("RecordAt(0) failed: %v", err)
	}
	if rec.Kind != store.KindComment || !bytes.Equal(rec.Value, []byte("swapped")) {
		t.Errorf("Expected replaced payload, got %+v", rec)
	}
}

func testBatchAtomicity(t *testing.T, engine store.Engine) {
	s := mustCreate(t, engine, "atomicity")
	defer s.Close()

	ids := appendNodes(t, s, 2)

	// A batch whose last op is invalid must not be applied at all.
	err := s.Apply([]store.Op{
		{Type: store.OpDelete, Pos: 0},
		{Type: store.OpDelete, Pos: 17},
	})
	if err == nil {
		t.Fatalf("Expected invalid batch to be rejected")
	}
	if store.CodeOf(err) != store.RetCApplyFailed {
		t.Errorf("Expected RetCApplyFailed, got %v", err)
	}

	if s.Size() != 2 {
		t.Errorf("Expected size 2 after rejected batch, got %d", s.Size())
	}
	for i, id := range ids {
		pos, found := s.PositionOf(id)
		if !found || pos != i {
			t.Errorf("Expected id %d untouched at position %d, got (%d,%t)", id, i, pos, found)
		}
	}
}

func testIDStability(t *testing.T, engine store.Engine) {
	s := mustCreate(t, engine, "id-stability")
	defer s.Close()

	ids := appendNodes(t, s, 5)

	// Insert two nodes at the front; every id survives, shifted by two.
	err := s.Apply([]store.Op{
		{Type: store.OpInsert, Pos: 0, Rec: store.Record{Kind: store.KindText}},
		{Type: store.OpInsert, Pos: 0, Rec: store.Record{Kind: store.KindText}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	for i, id := range ids {
		pos, found := s.PositionOf(id)
		if !found {
			t.Fatalf("Expected id %d to survive unrelated inserts", id)
		}
		if pos != i+2 {
			t.Errorf("Expected id %d at position %d, got %d", id, i+2, pos)
		}
	}

	// Ids are never reused, even after deleting every node.
	batch := make([]store.Op, 0, s.Size())
	for s.Size() > len(batch) {
		batch = append(batch, store.Op{Type: store.OpDelete, Pos: 0})
	}
	if err := s.Apply(batch); err != nil {
		t.Fatalf("Apply(delete all) failed: %v", err)
	}
	fresh := appendNodes(t, s, 1)
	for _, old := range ids {
		if fresh[0] == old {
			t.Errorf("Expected fresh id, got reused id %d", old)
		}
	}
}

func testDropPinned(t *testing.T, engine store.Engine) {
	s := mustCreate(t, engine, "drop-pinned")

	err := engine.Drop("drop-pinned")
	if err == nil {
		t.Fatalf("Expected Drop of a pinned store to fail")
	}
	if store.CodeOf(err) != store.RetCPinned {
		t.Errorf("Expected RetCPinned, got %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func testOpenDedup(t *testing.T, engine store.Engine) {
	s1 := mustCreate(t, engine, "dedup")

	// Opening a pinned store yields the same instance.
	s2, err := engine.Open("dedup")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s1 != s2 {
		t.Errorf("Expected Open of a pinned store to return the same instance")
	}

	// The first Close only unpins; the store stays usable.
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	appendNodes(t, s2, 1)
	if err := s2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func testSaveLoad(t *testing.T, engine store.Engine) {
	s := mustCreate(t, engine, "save-load")
	defer s.Close()

	requireFeature(t, s, store.FeatureSave|store.FeatureLoad)

	err := s.Apply([]store.Op{
		{Type: store.OpInsert, Pos: 0, Rec: store.Record{Kind: store.KindDocument, Name: "doc"}},
		{Type: store.OpInsert, Pos: 1, Rec: store.Record{Kind: store.KindElement, Name: "root"}},
		{Type: store.OpInsert, Pos: 2, Rec: store.Record{Kind: store.KindText, Value: []byte("payload")}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := mustCreate(t, engine, "save-load-restored")
	defer restored.Close()
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if restored.Size() != s.Size() {
		t.Fatalf("Expected restored size %d, got %d", s.Size(), restored.Size())
	}
	for pos := 0; pos < s.Size(); pos++ {
		want, _ := s.RecordAt(pos)
		got, err := restored.RecordAt(pos)
		if err != nil {
			t.Fatalf("RecordAt(%d) failed: %v", pos, err)
		}
		if got.Kind != want.Kind || got.Name != want.Name || !bytes.Equal(got.Value, want.Value) {
			t.Errorf("Position %d: expected %+v, got %+v", pos, want, got)
		}

		wantID, _ := s.IDAt(pos)
		gotID, _ := restored.IDAt(pos)
		if gotID != wantID {
			t.Errorf("Position %d: expected id %d, got %d", pos, wantID, gotID)
		}
	}
}

func testEdgeCases(t *testing.T, engine store.Engine) {
	s := mustCreate(t, engine, "edge-cases")
	defer s.Close()

	// Reads on an empty store.
	if _, err := s.IDAt(0); err == nil {
		t.Errorf("Expected IDAt(0) on empty store to fail")
	}
	if _, err := s.RecordAt(-1); err == nil {
		t.Errorf("Expected RecordAt(-1) to fail")
	}
	if _, found := s.PositionOf(42); found {
		t.Errorf("Expected unknown id to be unresolvable")
	}

	// Empty batches are a no-op.
	if err := s.Apply(nil); err != nil {
		t.Errorf("Apply(nil) failed: %v", err)
	}

	// Opening a store that was never created fails.
	if _, err := engine.Open("no-such-store"); err == nil {
		t.Errorf("Expected Open of unknown store to fail")
	} else if store.CodeOf(err) != store.RetCNotFound {
		t.Errorf("Expected RetCNotFound, got %v", err)
	}

	// Creating a name that is currently open fails.
	if _, err := engine.Create("edge-cases"); err == nil {
		t.Errorf("Expected Create of a pinned name to fail")
	} else if store.CodeOf(err) != store.RetCPinned {
		t.Errorf("Expected RetCPinned, got %v", err)
	}
}
