// Package store defines the contract between the node-identity layer and a
// positional document store. It specifies the adapter interface (IStore), the
// lifecycle primitives for named stores (Engine), the mutation batch model
// and a unified error reporting scheme.
//
// The package focuses on:
//   - A positional addressing model: every node has a dense, zero-based
//     position ("pre") that shifts under structural edits, plus a stable
//     numeric identity ("id") that never changes for the life of the node
//   - Atomic mutation batches (Apply) as the only way store state changes
//   - Pluggable storage backend architecture through the Engine interface
//
// Key Components:
//
//   - IStore Interface: The core abstraction for reading a positional store
//     (Size, IDAt, PositionOf, RecordAt) and for committing structural edits
//     (Apply). All implementations share this common interface, allowing the
//     database layer to switch between storage backends without code changes.
//
//   - Engine Interface: Lifecycle primitives (Open, Create, Drop) for named
//     stores. Engines deduplicate open stores by name and track pinning, so
//     Drop can refuse to remove a store that is still open somewhere.
//
//   - Mutation Model: A batch of Op values (insert, delete, replace) applied
//     atomically. A failed batch leaves the prior committed state untouched.
//
//   - Error System: A structured error reporting mechanism using typed error
//     codes (RetCode) and descriptive messages. The codes cover the error
//     taxonomy of the whole module: disposed resources, invalid handles,
//     pinned stores and rejected mutation batches.
//
// Implementations:
//
//	The memstore package (github.com/MatiasNAmendola/Nxdb/lib/store/memstore)
//	provides an in-memory reference engine with optional binary persistence.
//
//	The testing package (github.com/MatiasNAmendola/Nxdb/lib/store/testing)
//	provides a standardized conformance test suite for IStore engines.
package store
