// Package memstore provides the in-memory reference implementation of the
// positional store contract (store.IStore and store.Engine).
//
// Architecture:
//
//   - Node Table: nodes live in a flat slice in document order; a node's
//     position is its slice index, its stable id comes from a monotonically
//     increasing allocator that is never reused.
//
//   - Committed States: every Apply builds a fresh node table plus an
//     id-to-position index (an xsync.MapOf for lock-free concurrent lookups)
//     and swaps them in atomically. Readers never block and never observe a
//     partially applied batch; a rejected batch leaves the committed state
//     untouched.
//
//   - Pinning: the engine deduplicates open stores by name and counts opens.
//     Drop refuses to remove a store while its pin count is nonzero.
//
//   - Persistence: stores serialize to a versioned binary snapshot format
//     (Save/Load). When the engine is configured with a base directory, the
//     last Close flushes the snapshot with an atomic file replace and Open
//     restores it.
//
// The engine is intended for embedding and testing; it trades memory for
// simplicity by keeping the whole node table resident.
package memstore
