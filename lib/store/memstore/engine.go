package memstore

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/MatiasNAmendola/Nxdb/lib/store"
	"github.com/natefinch/atomic"
)

// storeFileExt is the extension of persisted store files.
const storeFileExt = ".nxdb"

// --------------------------------------------------------------------------
// Engine Options
// --------------------------------------------------------------------------

// EngineOptions configures the memstore engine behavior during initialization
type EngineOptions struct {
	// BaseDir is the directory persisted store files live in. When empty,
	// the engine is purely in-memory: stores exist only while they are
	// open and Close discards their state.
	BaseDir string
}

// DefaultOptions returns the default engine options (purely in-memory).
func DefaultOptions() *EngineOptions {
	return &EngineOptions{}
}

// --------------------------------------------------------------------------
// Engine Implementation
// --------------------------------------------------------------------------

// engineImpl implements store.Engine. It deduplicates open stores by name
// and refcounts opens (pinning), so Drop can refuse to remove a store that
// is still open somewhere.
type engineImpl struct {
	opts EngineOptions

	mu   sync.Mutex // guards the open table
	open map[string]*memStore
}

// NewEngine creates a new memstore engine with the specified options
// (optional).
func NewEngine(opts *EngineOptions) store.Engine {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &engineImpl{
		opts: *opts,
		open: make(map[string]*memStore),
	}
}

// path returns the file path of a persisted store, or "" for in-memory mode.
func (e *engineImpl) path(name string) string {
	if e.opts.BaseDir == "" {
		return ""
	}
	return filepath.Join(e.opts.BaseDir, name+storeFileExt)
}

// Open opens an existing named store. Opening the same name twice yields the
// same pinned store instance.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *engineImpl) Open(name string) (store.IStore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.open[name]; ok {
		s.pins.Add(1)
		return s, nil
	}

	path := e.path(name)
	if path == "" {
		return nil, store.NewErrorf(store.RetCNotFound, "store %q does not exist", name)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.NewErrorf(store.RetCNotFound, "store %q does not exist", name)
		}
		return nil, store.NewErrorf(store.RetCInternalError, "open store %q: %v", name, err)
	}
	defer f.Close()

	s := newMemStore(name, e)
	if err := s.Load(f); err != nil {
		return nil, err
	}

	s.pins.Add(1)
	e.open[name] = s
	return s, nil
}

// Create creates a new, empty named store. Creating a name that is currently
// open (pinned) fails; a previously persisted store of the same name is
// replaced on the next flush.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *engineImpl) Create(name string) (store.IStore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.open[name]; ok {
		return nil, store.NewErrorf(store.RetCPinned, "store %q is currently open", name)
	}

	s := newMemStore(name, e)
	s.pins.Add(1)
	e.open[name] = s
	return s, nil
}

// Drop irrevocably removes a named store. Drop fails while the store is open
// (pinned) anywhere.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *engineImpl) Drop(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.open[name]; ok {
		return store.NewErrorf(store.RetCPinned, "store %q is pinned (%d open references)", name, s.pins.Load())
	}

	path := e.path(name)
	if path == "" {
		// In-memory mode: a store that is not open does not exist.
		return store.NewErrorf(store.RetCNotFound, "store %q does not exist", name)
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return store.NewErrorf(store.RetCNotFound, "store %q does not exist", name)
		}
		return store.NewErrorf(store.RetCInternalError, "drop store %q: %v", name, err)
	}
	return nil
}

// release unpins a store after a Close call. The last release removes the
// store from the open table and, in persistent mode, flushes the state to
// its file with an atomic replace.
func (e *engineImpl) release(s *memStore) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.pins.Add(-1) > 0 {
		return nil
	}
	s.closed.Store(true)
	delete(e.open, s.name)

	path := e.path(s.name)
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(e.opts.BaseDir, 0o755); err != nil {
		return store.NewErrorf(store.RetCInternalError, "flush store %q: %v", s.name, err)
	}

	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return store.NewErrorf(store.RetCInternalError, "flush store %q: %v", s.name, err)
	}
	return nil
}
