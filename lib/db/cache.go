package db

import (
	"sync"
	"weak"

	"github.com/MatiasNAmendola/Nxdb/lib/store"
)

// --------------------------------------------------------------------------
// Node Cache
// --------------------------------------------------------------------------

// nodeCache holds one weak-owned slot per position. A populated slot i
// references a handle whose cached position is i and whose id resolved to
// position i as of the last resynchronization.
//
// The cache never keeps a handle alive on its own: slots hold weak pointers,
// so a handle is reclaimed once no consumer references it and its slot then
// reads as empty. The slot array only ever grows, never shrinks, even when
// the store shrinks; stale tail slots are simply never populated again.
type nodeCache struct {
	mu    sync.Mutex // serializes slot inserts on the read path
	slots []weak.Pointer[Node]
}

func newNodeCache(size int) *nodeCache {
	return &nodeCache{
		slots: make([]weak.Pointer[Node], size),
	}
}

// lookupOrCreate returns the live handle for the given position, or
// constructs, slots and returns a new one. The caller must hold the database
// lock in at least read mode; the cache's own mutex serializes the
// insert-on-miss so two readers cannot race to create different handles for
// the same position.
func (c *nodeCache) lookupOrCreate(d *Database, pos int) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pos >= len(c.slots) {
		c.grow(pos + 1)
	}

	if n := c.slots[pos].Value(); n != nil {
		mCacheHits.Inc()
		return n, nil
	}

	id, err := d.store.IDAt(pos)
	if err != nil {
		return nil, err
	}
	n := newNode(d, id, pos)
	c.slots[pos] = weak.Make(n)
	mCacheMisses.Inc()
	return n, nil
}

// grow extends the slot array to at least size entries.
func (c *nodeCache) grow(size int) {
	if size <= len(c.slots) {
		return
	}
	slots := make([]weak.Pointer[Node], size)
	copy(slots, c.slots)
	c.slots = slots
}

// --------------------------------------------------------------------------
// Update/Reposition Protocol
// --------------------------------------------------------------------------

// pendingMove is a handle waiting to be written into its new slot during the
// second phase of resync.
type pendingMove struct {
	pos  int
	node *Node
}

// resync re-establishes the slot invariant after a committed mutation batch:
// handles of deleted nodes are evicted and invalidated, handles of moved
// nodes are re-slotted under their new position. It returns how many handles
// were evicted and moved.
//
// The scan phase only classifies and the write phase only re-slots. Writing
// a repositioned handle during the scan could overwrite a not-yet-scanned
// slot or be overwritten by a later scan step; deferring all writes makes
// the resynchronization order-independent and idempotent for a given
// post-mutation state.
//
// Thread-safety: the caller must hold the database's exclusive write lock.
func (c *nodeCache) resync(st store.IStore) (evicted, moved int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Slots beyond the old length cannot hold handles yet; the scan is
	// bounded to it even after the array grew.
	oldLen := len(c.slots)
	if size := st.Size(); size > oldLen {
		c.grow(size)
	}

	// Phase 1: scan and classify.
	var pending []pendingMove
	for i := 0; i < oldLen; i++ {
		n := c.slots[i].Value()
		if n == nil {
			// Empty or reclaimed slot.
			c.slots[i] = weak.Pointer[Node]{}
			continue
		}

		pos, found := st.PositionOf(n.id)
		switch {
		case !found:
			// Node deleted: evict and permanently invalidate.
			c.slots[i] = weak.Pointer[Node]{}
			n.valid.Store(false)
			evicted++
		case pos != i:
			// Node moved: clear now, re-slot in phase 2.
			c.slots[i] = weak.Pointer[Node]{}
			pending = append(pending, pendingMove{pos: pos, node: n})
			moved++
		}
	}

	// Phase 2: apply repositions.
	for _, p := range pending {
		p.node.pre.Store(int64(p.pos))
		c.slots[p.pos] = weak.Make(p.node)
	}

	return evicted, moved
}

// len returns the current slot array length (monotonically non-decreasing).
func (c *nodeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}
