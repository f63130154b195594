// Package lockmgr implements the locking primitives of the database layer:
// an upgradable reader/writer mutex and a composition of such mutexes for
// cross-database (global) operations.
//
// Core Functionality:
//   - URWMutex: a reader/writer mutex with a third, upgradable read mode
//   - GlobalLock: a held composition of the process-wide lock with every
//     open database's lock
//
// Implementation Approach:
//
//	Go's sync.RWMutex has no upgradable mode, so URWMutex composes it with a
//	secondary exclusive "upgrade" mutex that serializes the upgrade attempts
//	themselves. Writers acquire the upgrade mutex before the write lock, so
//	an upgradable holder - which already owns the upgrade mutex - can
//	escalate to a write hold without releasing anything: it only waits for
//	plain readers to drain, and no writer can interleave between its read
//	phase and the escalation.
//
//	Global operations must see and exclude all databases at once. They take
//	the process-wide lock strictly first and then every per-database lock in
//	a fixed, deterministic order (sorted by a stable identifier), and release
//	in reverse order. Single-database operations use only their own
//	database's lock and never the process-wide one; because the process-wide
//	lock is always acquired before any per-database lock, no deadlock cycle
//	between the two kinds of operations exists.
//
// Blocking Behavior:
//
//	All acquisitions block unconditionally; there are no timeouts or
//	cancellation. The package assumes cooperative, non-adversarial callers.
package lockmgr
