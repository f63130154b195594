// Package db implements the node-identity and cache-coherence layer over a
// positional document store: deduplicated Database instances, weak-owned
// node handles, and the update protocol that keeps handles coherent while
// the store's positional addressing shifts under structural edits.
//
// Addressing Model:
//
//	The underlying store (see the store package) addresses every node by a
//	dense, zero-based position that shifts whenever nodes are inserted or
//	removed earlier in document order, and by a stable numeric id that never
//	changes for the life of the node. Handles identify nodes by id and cache
//	the last-known position; the cached position is advisory until the next
//	resynchronization or an explicit Revalidate.
//
// Key Components:
//
//   - Database: wraps one open store with a reader/writer/upgradable lock
//     and a node cache. Reads run under the shared lock, mutations under the
//     exclusive lock, and check-then-mutate sequences under an upgradable
//     hold that escalates without releasing (UpdateIf).
//
//   - Registry: process-wide deduplication of open databases. Open and
//     Create return the identical Database instance for the same name,
//     including under concurrency; exactly one instance is ever constructed.
//     Dispose unregisters; Drop refuses to remove a store that is open.
//
//   - Node Cache: one weak-owned slot per position guarantees at most one
//     live handle per node without keeping handles alive. After every
//     committed mutation batch the update protocol rescans the cache in two
//     phases: classify every occupied slot (unchanged, moved, deleted),
//     then re-slot the moved handles. Handles of deleted nodes become
//     permanently invalid.
//
//   - Global Lock Coordination: cross-database administrative operations
//     (Drop, Dispose) compose the process-wide lock with the lock of every
//     open database, process-wide lock strictly first, per-database locks in
//     sorted order. Single-database operations never touch the process-wide
//     lock, so no deadlock cycle exists between the two kinds.
//
// Error Handling:
//
//	Every operation on a disposed database (or on its handles) fails with a
//	RetCDisposed error; operations on a handle whose node was deleted fail
//	with RetCInvalidHandle; dropping an open database fails with RetCPinned.
//	Errors surface synchronously, there are no internal retries.
package db
