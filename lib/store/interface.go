package store

import (
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemory Implementation = "memory"
)

// Kind identifies the type of a node in the document tree.
type Kind uint8

const (
	KindDocument Kind = iota
	KindElement
	KindAttribute
	KindText
	KindComment
	KindPI
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "Document"
	case KindElement:
		return "Element"
	case KindAttribute:
		return "Attribute"
	case KindText:
		return "Text"
	case KindComment:
		return "Comment"
	case KindPI:
		return "PI"
	default:
		return "Unknown"
	}
}

// Record holds the payload of a single node. Name is set for elements,
// attributes and processing instructions; Value for attributes, texts,
// comments and processing instructions.
type Record struct {
	Kind  Kind
	Name  string
	Value []byte
}

// Feature represents store features as bit flags
type Feature uint64

const (
	FeatureApply   Feature = 1 << iota // Support for atomic mutation batches
	FeatureReplace                     // Support for in-place payload replacement
	FeatureSave                        // Support for Save operations
	FeatureLoad                        // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureApply:
		return "Apply"
	case FeatureReplace:
		return "Replace"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type StoreInfo struct {
	Size              int            `json:"size"`
	StoreType         Implementation `json:"store_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Mutation Operations
// --------------------------------------------------------------------------

// OpType identifies a structural edit.
type OpType uint8

const (
	// OpInsert inserts a new node before the node at Pos. Pos may equal the
	// store size, which appends at the end of the document order.
	OpInsert OpType = iota
	// OpDelete removes the node at Pos. All following nodes shift left.
	OpDelete
	// OpReplace swaps the payload of the node at Pos. The node keeps its
	// identity and position.
	OpReplace
)

func (t OpType) String() string {
	switch t {
	case OpInsert:
		return "Insert"
	case OpDelete:
		return "Delete"
	case OpReplace:
		return "Replace"
	default:
		return "Unknown"
	}
}

// Op is a single structural edit. A batch of ops is applied atomically by
// IStore.Apply. Rec is ignored for OpDelete.
type Op struct {
	Type OpType
	Pos  int
	Rec  Record
}

func (o Op) String() string {
	return fmt.Sprintf("Op{%s @%d}", o.Type, o.Pos)
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the contract for a positional document store. Every node is
// addressed by a dense, zero-based position ("pre") that shifts whenever
// nodes are inserted or removed earlier in document order, and additionally
// carries a stable numeric identity ("id") that never changes for the life
// of the node.
//
// Implementations must apply mutation batches atomically: either every op of
// a batch is committed or none is. Size only ever changes through committed
// batches.
type IStore interface {
	// Name returns the name the store was opened or created under.
	Name() string

	// Size returns the current node count.
	Size() int

	// IDAt returns the stable id of the node at the given position.
	// Positions outside [0, Size()) yield a RetCNotFound error.
	IDAt(pos int) (id uint64, err error)

	// PositionOf resolves a stable id back to its current position. The
	// boolean return value indicates whether the id is still present in
	// the store.
	PositionOf(id uint64) (pos int, found bool)

	// RecordAt returns the payload of the node at the given position.
	// The returned record is a copy and safe to retain.
	RecordAt(pos int) (rec Record, err error)

	// Apply commits a batch of structural edits atomically. If any op of
	// the batch is invalid, nothing is applied and a RetCApplyFailed error
	// is returned. Prior committed state is unaffected by a failed batch.
	Apply(batch []Op) (err error)

	// Save persists the current state of the store to the provided
	// io.Writer. Engines without FeatureSave return a
	// RetCUnsupportedOperation error.
	Save(w io.Writer) (err error)

	// Load restores the store state from the data provided by an
	// io.Reader. Engines without FeatureLoad return a
	// RetCUnsupportedOperation error.
	Load(r io.Reader) (err error)

	// GetInfo returns metadata about the store. It is not guaranteed that
	// all fields are filled in or that the information is up-to-date!
	GetInfo() (info StoreInfo)

	// SupportsFeature checks if the store implementation supports the
	// specified feature. Multiple features can be checked at once using
	// the bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// Close releases the store. For persistent engines this flushes the
	// current state. After Close the store must not be used.
	Close() (err error)
}

// Engine provides the lifecycle primitives for named stores.
type Engine interface {
	// Open opens an existing named store. Opening the same name twice
	// yields the same pinned store instance.
	Open(name string) (IStore, error)

	// Create creates a new named store. Creating a name that is currently
	// open (pinned) fails with a RetCPinned error.
	Create(name string) (IStore, error)

	// Drop irrevocably removes a named store. Drop fails with a RetCPinned
	// error while the store is open anywhere.
	Drop(name string) (err error)
}
