package db

import (
	"sync"
	"testing"
	"time"

	"github.com/MatiasNAmendola/Nxdb/lib/lockmgr"
	"github.com/MatiasNAmendola/Nxdb/lib/store"
	"github.com/MatiasNAmendola/Nxdb/lib/store/memstore"
)

func TestOpenReturnsRegisteredInstance(t *testing.T) {
	d := newTestDB(t, "registry-dedup", 2)

	const workers = 8
	instances := make([]*Database, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			got, err := Open(memstore.NewEngine(nil), "registry-dedup", Options{})
			if err != nil {
				t.Errorf("Open failed: %v", err)
				return
			}
			instances[w] = got
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		if instances[w] != d {
			t.Fatalf("Expected Open to return the registered instance, got a distinct one (worker %d)", w)
		}
	}

	got, ok := Registered("registry-dedup")
	if !ok || got != d {
		t.Errorf("Expected Registered to find the open instance")
	}
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(memstore.NewEngine(nil), "registry-missing", Options{})
	if store.CodeOf(err) != store.RetCNotFound {
		t.Errorf("Expected RetCNotFound, got %v", err)
	}
}

func TestCreateExistingDatabase(t *testing.T) {
	newTestDB(t, "registry-exists", 1)

	_, err := Create(memstore.NewEngine(nil), "registry-exists", Options{})
	if store.CodeOf(err) != store.RetCPinned {
		t.Errorf("Expected RetCPinned, got %v", err)
	}
}

func TestDisposeRejectsLaterOperations(t *testing.T) {
	engine := memstore.NewEngine(nil)
	d, err := Create(engine, "registry-dispose", Options{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := d.Update([]store.Op{{Type: store.OpInsert, Pos: 0, Rec: store.Record{Kind: store.KindText}}}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	n := mustNode(t, d, 0)

	if err := d.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}

	if _, ok := Registered("registry-dispose"); ok {
		t.Errorf("Expected disposed database to be unregistered")
	}
	if _, err := d.NodeAt(0); store.CodeOf(err) != store.RetCDisposed {
		t.Errorf("Expected RetCDisposed from NodeAt, got %v", err)
	}
	if err := d.Update(nil); store.CodeOf(err) != store.RetCDisposed {
		t.Errorf("Expected RetCDisposed from Update, got %v", err)
	}
	if _, err := n.Value(); store.CodeOf(err) != store.RetCDisposed {
		t.Errorf("Expected RetCDisposed from a surviving handle, got %v", err)
	}
	if err := d.Dispose(); store.CodeOf(err) != store.RetCDisposed {
		t.Errorf("Expected RetCDisposed from a second Dispose, got %v", err)
	}
}

func TestReopenAfterDisposeIsANewInstance(t *testing.T) {
	engine := memstore.NewEngine(&memstore.EngineOptions{BaseDir: t.TempDir()})

	d, err := Create(engine, "registry-reopen", Options{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := d.Update([]store.Op{{Type: store.OpInsert, Pos: 0, Rec: store.Record{Kind: store.KindText, Value: []byte("kept")}}}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	first := d.InstanceID()
	if err := d.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}

	reopened, err := Open(engine, "registry-reopen", Options{})
	if err != nil {
		t.Fatalf("Open after dispose failed: %v", err)
	}
	defer reopened.Dispose()

	if reopened == d || reopened.InstanceID() == first {
		t.Errorf("Expected a fresh instance after dispose")
	}
	n := mustNode(t, reopened, 0)
	value, err := n.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if string(value) != "kept" {
		t.Errorf("Expected persisted value %q, got %q", "kept", value)
	}
}

func TestDropRefusesOpenDatabase(t *testing.T) {
	engine := memstore.NewEngine(&memstore.EngineOptions{BaseDir: t.TempDir()})
	d, err := Create(engine, "registry-drop-open", Options{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer d.Dispose()

	if err := Drop(engine, "registry-drop-open"); store.CodeOf(err) != store.RetCPinned {
		t.Errorf("Expected RetCPinned, got %v", err)
	}
}

func TestDropOnDispose(t *testing.T) {
	engine := memstore.NewEngine(&memstore.EngineOptions{BaseDir: t.TempDir()})
	d, err := Create(engine, "registry-drop-dispose", Options{DropOnDispose: true})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := d.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}

	if _, err := Open(engine, "registry-drop-dispose", Options{}); store.CodeOf(err) != store.RetCNotFound {
		t.Errorf("Expected RetCNotFound after drop-on-dispose, got %v", err)
	}
}

func TestGlobalLockBlocksUpdates(t *testing.T) {
	d := newTestDB(t, "registry-global", 2)

	g := AcquireGlobal(lockmgr.ModeWrite)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.Update([]store.Op{{Type: store.OpDelete, Pos: 0}}); err != nil {
			t.Errorf("Update failed: %v", err)
		}
	}()

	select {
	case <-done:
		t.Fatal("Expected update to block while the global write lock is held")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected update to proceed after the global release")
	}
}

func TestGlobalUpgrade(t *testing.T) {
	d := newTestDB(t, "registry-upgrade", 2)

	g := AcquireGlobal(lockmgr.ModeUpgradable)
	if size, err := d.Size(); err != nil || size != 2 {
		t.Fatalf("Expected size 2 under upgradable hold, got %d (%v)", size, err)
	}
	g.Upgrade()
	g.Release()

	// The databases must be usable again after the release.
	if err := d.Update([]store.Op{{Type: store.OpDelete, Pos: 0}}); err != nil {
		t.Fatalf("Update after release failed: %v", err)
	}
}
