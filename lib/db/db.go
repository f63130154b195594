package db

import (
	"sync/atomic"
	"time"

	"github.com/MatiasNAmendola/Nxdb/lib/lockmgr"
	"github.com/MatiasNAmendola/Nxdb/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("db")

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

// Options configures a Database when it is opened or created.
type Options struct {
	// DropOnDispose physically drops the underlying store after Dispose
	// has closed it.
	DropOnDispose bool
}

// Database wraps one open positional store with the node-identity layer: a
// node cache that guarantees at most one live handle per node, a
// reader/writer/upgradable lock that serializes structural mutation, and the
// update protocol that keeps handles coherent across mutations.
//
// Databases are deduplicated process-wide: Open and Create return the
// identical instance for the same name (see registry.go). All methods are
// safe for concurrent use.
type Database struct {
	name       string
	instanceID uuid.UUID
	engine     store.Engine
	opts       Options

	store store.IStore
	lock  lockmgr.URWMutex
	cache *nodeCache

	modTime  atomic.Int64 // unix nanos of the last committed mutation
	disposed atomic.Bool
}

// newDatabase wraps a freshly opened store. Only the registry constructs
// databases.
func newDatabase(name string, engine store.Engine, st store.IStore, opts Options) *Database {
	d := &Database{
		name:       name,
		instanceID: uuid.New(),
		engine:     engine,
		opts:       opts,
		store:      st,
		cache:      newNodeCache(st.Size()),
	}
	d.modTime.Store(time.Now().UnixNano())
	return d
}

// Name returns the name the database was opened under.
func (d *Database) Name() string {
	return d.name
}

// InstanceID returns the unique id of this Database instance. It changes
// every time the same named store is re-opened and exists for diagnostics.
func (d *Database) InstanceID() uuid.UUID {
	return d.instanceID
}

// ModTime returns the time of the last committed mutation (or of opening,
// whichever is later).
func (d *Database) ModTime() time.Time {
	return time.Unix(0, d.modTime.Load())
}

// checkAlive returns a RetCDisposed error once Dispose has run.
func (d *Database) checkAlive() error {
	if d.disposed.Load() {
		return store.NewErrorf(store.RetCDisposed, "database %q is disposed", d.name)
	}
	return nil
}

// --------------------------------------------------------------------------
// Read Path
// --------------------------------------------------------------------------

// Size returns the current node count of the underlying store.
func (d *Database) Size() (int, error) {
	if err := d.checkAlive(); err != nil {
		return 0, err
	}
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.store.Size(), nil
}

// NodeAt returns the handle for the node at the given position. Repeated
// calls for the same position return the identical handle instance while at
// least one external reference to it survives.
//
// Thread-safety: runs under the database's shared lock; concurrent readers
// do not block each other.
func (d *Database) NodeAt(pos int) (*Node, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.nodeAtLocked(pos)
}

// nodeAtLocked resolves a position to a handle. The caller must hold the
// database lock in at least read mode.
func (d *Database) nodeAtLocked(pos int) (*Node, error) {
	if pos < 0 || pos >= d.store.Size() {
		return nil, store.NewErrorf(store.RetCNotFound, "position %d out of range [0,%d)", pos, d.store.Size())
	}
	return d.cache.lookupOrCreate(d, pos)
}

// NodeByID resolves a stable id to its handle, or a RetCNotFound error if
// the id is not (or no longer) present in the store.
func (d *Database) NodeByID(id uint64) (*Node, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	d.lock.RLock()
	defer d.lock.RUnlock()

	pos, found := d.store.PositionOf(id)
	if !found {
		return nil, store.NewErrorf(store.RetCNotFound, "id %d does not resolve", id)
	}
	return d.cache.lookupOrCreate(d, pos)
}

// GetInfo returns metadata about the underlying store.
func (d *Database) GetInfo() (store.StoreInfo, error) {
	if err := d.checkAlive(); err != nil {
		return store.StoreInfo{}, err
	}
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.store.GetInfo(), nil
}

// --------------------------------------------------------------------------
// Write Path
// --------------------------------------------------------------------------

// Update commits a batch of structural edits atomically and resynchronizes
// the node cache exactly once, after the commit and before returning to the
// caller. A rejected batch leaves both the store and the cache untouched and
// surfaces the store's error.
//
// Thread-safety: runs under the database's exclusive write lock. No reader
// ever observes a half-updated cache.
func (d *Database) Update(batch []store.Op) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.applyLocked(batch)
}

// UpdateIf runs check under an upgradable read hold and, only when it
// returns nil, escalates to the write lock without releasing and applies the
// batch. No writer can interleave between the check and the apply.
func (d *Database) UpdateIf(check func(d *Database) error, batch []store.Op) error {
	if err := d.checkAlive(); err != nil {
		return err
	}

	d.lock.ULock()
	if err := check(d); err != nil {
		d.lock.UUnlock()
		return err
	}
	d.lock.Upgrade()
	defer d.lock.Unlock()
	return d.applyLocked(batch)
}

// applyLocked commits a batch and runs the update protocol. The caller must
// hold the write lock.
func (d *Database) applyLocked(batch []store.Op) error {
	if err := d.store.Apply(batch); err != nil {
		return err
	}

	evicted, moved := d.cache.resync(d.store)
	d.modTime.Store(time.Now().UnixNano())

	mResyncRuns.Inc()
	mResyncEvicted.Add(evicted)
	mResyncMoved.Add(moved)
	Logger.Debugf("database %q: committed %d ops (evicted=%d moved=%d size=%d)",
		d.name, len(batch), evicted, moved, d.store.Size())
	return nil
}

// --------------------------------------------------------------------------
// Explicit Locking
// --------------------------------------------------------------------------

// RLock acquires the database's shared lock for a multi-call read section.
// Concurrent shared holders observe a consistent, unchanging snapshot of
// positions and of the node cache until they release.
func (d *Database) RLock() { d.lock.RLock() }

// RUnlock releases a shared hold.
func (d *Database) RUnlock() { d.lock.RUnlock() }

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Dispose unregisters the database and closes its store. It acquires the
// global write composition first, so no other thread can be mid-lookup on
// any database while the store handle closes. Every later operation on this
// Database or on any of its handles fails with a RetCDisposed error.
//
// When the database was opened with DropOnDispose, the underlying store is
// physically dropped after it has been closed.
func (d *Database) Dispose() error {
	if err := d.checkAlive(); err != nil {
		return err
	}

	g := AcquireGlobal(lockmgr.ModeWrite)
	if d.disposed.Swap(true) {
		// Lost the race against a concurrent Dispose.
		g.Release()
		return store.NewErrorf(store.RetCDisposed, "database %q is disposed", d.name)
	}

	unregister(d.name)
	err := d.store.Close()
	g.Release()

	mDisposed.Inc()
	Logger.Infof("disposed database %q (instance %s)", d.name, d.instanceID)

	if err != nil {
		return err
	}
	if d.opts.DropOnDispose {
		return d.engine.Drop(d.name)
	}
	return nil
}
