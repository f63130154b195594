package db

import (
	"fmt"
	"sync/atomic"

	"github.com/MatiasNAmendola/Nxdb/lib/store"
)

// --------------------------------------------------------------------------
// Node Handle
// --------------------------------------------------------------------------

// Node is a lightweight handle for one node of a database. It identifies the
// node by its stable id and caches the last-known position ("pre").
//
// The cached position is advisory: it is accurate immediately after the
// update protocol ran or after Revalidate, but an intervening mutation may
// shift it. The id never changes for the life of the node; once the node is
// deleted the handle becomes permanently invalid.
//
// Handles are deduplicated per database: as long as one live reference to a
// handle survives, every lookup of the same node yields the identical
// instance, so identity comparison (==) and per-handle state are safe.
type Node struct {
	db    *Database
	id    uint64
	pre   atomic.Int64
	valid atomic.Bool
}

// newNode constructs a validated handle. Only the node cache constructs
// handles.
func newNode(d *Database, id uint64, pos int) *Node {
	n := &Node{db: d, id: id}
	n.pre.Store(int64(pos))
	n.valid.Store(true)
	return n
}

// DB returns the owning database.
func (n *Node) DB() *Database {
	return n.db
}

// ID returns the stable identity of the node. It is unaffected by any
// mutation short of the node's own deletion.
func (n *Node) ID() uint64 {
	return n.id
}

// Valid reports whether the node still existed as of the last cache
// resynchronization. It is not re-checked eagerly on every access; use
// Revalidate before an operation that requires currency.
func (n *Node) Valid() bool {
	return n.valid.Load() && !n.db.disposed.Load()
}

// Pos returns the last-known position of the node. The value is advisory
// until revalidated.
func (n *Node) Pos() (int, error) {
	if err := n.check(); err != nil {
		return 0, err
	}
	return int(n.pre.Load()), nil
}

// Same reports whether the other handle refers to the same node: the same
// owning database and the same stable id.
func (n *Node) Same(other *Node) bool {
	return other != nil && n.db == other.db && n.id == other.id
}

// check validates the handle before a read or write operation.
func (n *Node) check() error {
	if err := n.db.checkAlive(); err != nil {
		return err
	}
	if !n.valid.Load() {
		return store.NewErrorf(store.RetCInvalidHandle, "node %d no longer exists", n.id)
	}
	return nil
}

// --------------------------------------------------------------------------
// Revalidation
// --------------------------------------------------------------------------

// Revalidate re-derives the node's position from its stable id and refreshes
// the cached position. It returns the current position, or a
// RetCInvalidHandle error when the node has been deleted.
func (n *Node) Revalidate() (int, error) {
	if err := n.db.checkAlive(); err != nil {
		return 0, err
	}

	n.db.lock.RLock()
	defer n.db.lock.RUnlock()

	pos, found := n.db.store.PositionOf(n.id)
	if !found {
		n.valid.Store(false)
		return 0, store.NewErrorf(store.RetCInvalidHandle, "node %d no longer exists", n.id)
	}
	n.pre.Store(int64(pos))
	return pos, nil
}

// --------------------------------------------------------------------------
// Payload Reads
// --------------------------------------------------------------------------

// record resolves the node's payload under the shared database lock.
func (n *Node) record() (store.Record, error) {
	if err := n.check(); err != nil {
		return store.Record{}, err
	}

	n.db.lock.RLock()
	defer n.db.lock.RUnlock()

	// The cached position can be stale when the handle was obtained before
	// a mutation and not yet revalidated; resolve through the id instead.
	pos, found := n.db.store.PositionOf(n.id)
	if !found {
		n.valid.Store(false)
		return store.Record{}, store.NewErrorf(store.RetCInvalidHandle, "node %d no longer exists", n.id)
	}
	return n.db.store.RecordAt(pos)
}

// Kind returns the node's kind.
func (n *Node) Kind() (store.Kind, error) {
	rec, err := n.record()
	return rec.Kind, err
}

// NodeName returns the node's name (elements, attributes, PIs).
func (n *Node) NodeName() (string, error) {
	rec, err := n.record()
	return rec.Name, err
}

// Value returns a copy of the node's value payload.
func (n *Node) Value() ([]byte, error) {
	rec, err := n.record()
	return rec.Value, err
}

func (n *Node) String() string {
	return fmt.Sprintf("Node{db=%s id=%d pre=%d valid=%t}", n.db.name, n.id, n.pre.Load(), n.valid.Load())
}
