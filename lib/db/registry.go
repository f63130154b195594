package db

import (
	"sort"
	"sync"

	"github.com/MatiasNAmendola/Nxdb/lib/lockmgr"
	"github.com/MatiasNAmendola/Nxdb/lib/store"
)

// --------------------------------------------------------------------------
// Database Registry
// --------------------------------------------------------------------------

// The registry deduplicates open databases process-wide: exactly one
// Database instance exists per named store at any time. Its mutex is scoped
// to insert/lookup only, never to general database operations.
var (
	registryMu  sync.RWMutex
	registry    = make(map[string]*Database)
	processLock lockmgr.URWMutex
)

// Open returns the open database of the given name, or opens the named store
// through the engine and registers it. Concurrent calls for the same name
// resolve to the identical Database instance; exactly one instance is ever
// constructed.
func Open(engine store.Engine, name string, opts Options) (*Database, error) {
	return getOrCreate(name, opts, func() (store.IStore, error) {
		return engine.Open(name)
	}, engine)
}

// Create creates the named store through the engine and registers it. It
// fails with a RetCPinned error while a database of that name is open.
func Create(engine store.Engine, name string, opts Options) (*Database, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[name]; ok {
		return nil, store.NewErrorf(store.RetCPinned, "database %q is currently open", name)
	}

	st, err := engine.Create(name)
	if err != nil {
		return nil, err
	}
	d := newDatabase(name, engine, st, opts)
	registry[name] = d

	mOpened.Inc()
	Logger.Infof("created database %q (instance %s)", name, d.instanceID)
	return d, nil
}

// getOrCreate implements the dedup contract: the registry lock spans lookup
// and construction, so a second caller blocks until the first finished and
// then finds the registered instance.
func getOrCreate(name string, opts Options, open func() (store.IStore, error), engine store.Engine) (*Database, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if d, ok := registry[name]; ok {
		return d, nil
	}

	st, err := open()
	if err != nil {
		return nil, err
	}
	d := newDatabase(name, engine, st, opts)
	registry[name] = d

	mOpened.Inc()
	Logger.Infof("opened database %q (instance %s)", name, d.instanceID)
	return d, nil
}

// unregister drops the registry entry during Dispose. A later Open has to
// reopen and re-register.
func unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}

// Registered returns the open database of the given name, if any. It never
// opens anything.
func Registered(name string) (*Database, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// snapshot returns every currently open database, sorted by name. The fixed
// order makes concurrent global lock acquisitions deadlock-free.
func snapshot() []*Database {
	registryMu.RLock()
	defer registryMu.RUnlock()

	dbs := make([]*Database, 0, len(registry))
	for _, d := range registry {
		dbs = append(dbs, d)
	}
	sort.Slice(dbs, func(i, j int) bool { return dbs[i].name < dbs[j].name })
	return dbs
}

// --------------------------------------------------------------------------
// Global Lock Coordination
// --------------------------------------------------------------------------

// AcquireGlobal acquires the process-wide lock in the given mode and then
// the lock of every currently open database (snapshot taken under the
// registry's read lock, sorted by name). Per-database operations never touch
// the process-wide lock; the strict process-lock-first ordering is the sole
// rule needed to keep global and single-database operations deadlock-free.
func AcquireGlobal(mode lockmgr.Mode) *lockmgr.GlobalLock {
	return lockmgr.AcquireGlobal(mode, &processLock, func() []*lockmgr.URWMutex {
		dbs := snapshot()
		locks := make([]*lockmgr.URWMutex, len(dbs))
		for i, d := range dbs {
			locks[i] = &d.lock
		}
		return locks
	})
}

// Drop irrevocably removes a named store. It excludes all activity on all
// open databases for the duration and fails with a registry-conflict error
// while a database of that name is open; callers have to dispose first.
func Drop(engine store.Engine, name string) error {
	g := AcquireGlobal(lockmgr.ModeWrite)
	defer g.Release()

	if _, ok := Registered(name); ok {
		return store.NewErrorf(store.RetCPinned, "database %q is currently open", name)
	}
	if err := engine.Drop(name); err != nil {
		return err
	}
	Logger.Infof("dropped database %q", name)
	return nil
}
