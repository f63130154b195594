package memstore

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/MatiasNAmendola/Nxdb/lib/store"
	"github.com/MatiasNAmendola/Nxdb/lib/store/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Core store structure
// --------------------------------------------------------------------------

// node is one entry of the positional node table.
type node struct {
	id  uint64
	rec store.Record
}

// tableState is one immutable committed state of the store: the node table in
// document order plus the id-to-position index derived from it. Apply swaps
// in a fresh tableState, so readers always observe a fully committed batch.
type tableState struct {
	nodes []node
	index *xsync.MapOf[uint64, int]
}

// newTableState builds the id index for a node table.
func newTableState(nodes []node) *tableState {
	index := xsync.NewMapOf[uint64, int]()
	for pos, n := range nodes {
		index.Store(n.id, pos)
	}
	return &tableState{nodes: nodes, index: index}
}

// memStore implements store.IStore with an in-memory node table.
type memStore struct {
	name   string
	engine *engineImpl

	state   atomic.Pointer[tableState]
	nextID  atomic.Uint64
	applyMu sync.Mutex // serializes Apply and Load

	pins   atomic.Int32
	closed atomic.Bool
}

// newMemStore creates an empty store with the given name.
func newMemStore(name string, engine *engineImpl) *memStore {
	s := &memStore{
		name:   name,
		engine: engine,
	}
	s.state.Store(newTableState(nil))
	return s
}

// --------------------------------------------------------------------------
// IStore Interface - Read Operations
// --------------------------------------------------------------------------

// Name returns the name the store was opened or created under.
func (s *memStore) Name() string {
	return s.name
}

// Size returns the current node count.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *memStore) Size() int {
	return len(s.state.Load().nodes)
}

// IDAt returns the stable id of the node at the given position.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *memStore) IDAt(pos int) (uint64, error) {
	st := s.state.Load()
	if pos < 0 || pos >= len(st.nodes) {
		return 0, store.NewErrorf(store.RetCNotFound, "position %d out of range [0,%d)", pos, len(st.nodes))
	}
	return st.nodes[pos].id, nil
}

// PositionOf resolves a stable id back to its current position.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// The lookup is lock-free via the id index of the committed state.
func (s *memStore) PositionOf(id uint64) (int, bool) {
	return s.state.Load().index.Load(id)
}

// RecordAt returns a copy of the payload of the node at the given position.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *memStore) RecordAt(pos int) (store.Record, error) {
	st := s.state.Load()
	if pos < 0 || pos >= len(st.nodes) {
		return store.Record{}, store.NewErrorf(store.RetCNotFound, "position %d out of range [0,%d)", pos, len(st.nodes))
	}
	return copyRecord(st.nodes[pos].rec), nil
}

// copyRecord deep-copies a record so stored data can not be corrupted by the
// caller (and vice versa).
func copyRecord(rec store.Record) store.Record {
	valueCopy := make([]byte, len(rec.Value))
	copy(valueCopy, rec.Value)
	return store.Record{
		Kind:  rec.Kind,
		Name:  rec.Name,
		Value: valueCopy,
	}
}

// --------------------------------------------------------------------------
// IStore Interface - Mutation
// --------------------------------------------------------------------------

// Apply commits a batch of structural edits atomically. The batch is applied
// to a scratch copy of the node table; only when every op validated does the
// copy replace the committed state. A failed batch leaves the store unchanged
// and returns a RetCApplyFailed error.
//
// Thread-safety: This method is thread-safe. Concurrent Apply calls are
// serialized; readers are never blocked and observe either the old or the
// new state, never an intermediate one.
func (s *memStore) Apply(batch []store.Op) error {
	if s.closed.Load() {
		return store.NewError(store.RetCDisposed, "store is closed")
	}
	if len(batch) == 0 {
		return nil
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	// Scratch copy of the node table. Ops mutate only the copy.
	old := s.state.Load().nodes
	nodes := make([]node, len(old), len(old)+len(batch))
	copy(nodes, old)

	// Ids are drawn tentatively; the allocator is only advanced on commit.
	tentativeID := s.nextID.Load()

	for i, op := range batch {
		switch op.Type {
		case store.OpInsert:
			if op.Pos < 0 || op.Pos > len(nodes) {
				return store.NewErrorf(store.RetCApplyFailed, "op %d: insert position %d out of range [0,%d]", i, op.Pos, len(nodes))
			}
			tentativeID++
			inserted := node{id: tentativeID, rec: copyRecord(op.Rec)}
			nodes = append(nodes, node{})
			copy(nodes[op.Pos+1:], nodes[op.Pos:])
			nodes[op.Pos] = inserted
		case store.OpDelete:
			if op.Pos < 0 || op.Pos >= len(nodes) {
				return store.NewErrorf(store.RetCApplyFailed, "op %d: delete position %d out of range [0,%d)", i, op.Pos, len(nodes))
			}
			nodes = append(nodes[:op.Pos], nodes[op.Pos+1:]...)
		case store.OpReplace:
			if op.Pos < 0 || op.Pos >= len(nodes) {
				return store.NewErrorf(store.RetCApplyFailed, "op %d: replace position %d out of range [0,%d)", i, op.Pos, len(nodes))
			}
			nodes[op.Pos] = node{id: nodes[op.Pos].id, rec: copyRecord(op.Rec)}
		default:
			return store.NewErrorf(store.RetCApplyFailed, "op %d: unknown op type %d", i, op.Type)
		}
	}

	// Commit: advance the id allocator and swap in the new state.
	s.nextID.Store(tentativeID)
	s.state.Store(newTableState(nodes))
	return nil
}

// --------------------------------------------------------------------------
// IStore Interface - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the store.
func (s *memStore) GetInfo() store.StoreInfo {
	st := s.state.Load()

	// Sample payload sizes into a histogram. Small stores are scanned
	// fully, large ones only up to a fixed sample count.
	const maxSamples = 4096
	histogram := util.NewSizeHistogram()
	for i, n := range st.nodes {
		if i >= maxSamples {
			break
		}
		histogram.AddSample(len(n.rec.Value))
	}

	meta := &struct {
		NextID          uint64 `json:"next_id"`
		Pins            int32  `json:"pins"`
		PayloadMedian   int    `json:"payload_median_bytes"`
		PayloadAverage  int    `json:"payload_average_bytes"`
		Payload99thPerc int    `json:"payload_p99_bytes"`
		Info            string `json:"info"`
	}{
		NextID:          s.nextID.Load(),
		Pins:            s.pins.Load(),
		PayloadMedian:   histogram.MedianEstimate(),
		PayloadAverage:  histogram.AverageSize(),
		Payload99thPerc: histogram.PercentileEstimate(99),
		Info:            "Payload sizes are sampled estimates and may vary depending on the store state.",
	}

	return store.StoreInfo{
		Size:      len(st.nodes),
		StoreType: store.ImplMemory,
		SupportedFeatures: []store.Feature{
			store.FeatureApply, store.FeatureReplace,
			store.FeatureSave, store.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific feature
func (s *memStore) SupportsFeature(feature store.Feature) bool {
	supportedFeatures := store.FeatureApply |
		store.FeatureReplace |
		store.FeatureSave |
		store.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close unpins the store. The last Close removes the store from the engine's
// open table and, for persistent engines, flushes the state to disk.
func (s *memStore) Close() error {
	if s.closed.Load() {
		return store.NewError(store.RetCDisposed, "store is already closed")
	}
	return s.engine.release(s)
}

func (s *memStore) String() string {
	return fmt.Sprintf("memstore(%s, size=%d)", s.name, s.Size())
}
