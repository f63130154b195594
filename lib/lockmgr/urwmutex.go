package lockmgr

import (
	"sync"
)

// --------------------------------------------------------------------------
// Upgradable Reader/Writer Mutex
// --------------------------------------------------------------------------

// URWMutex is a reader/writer mutex with an additional upgradable read mode.
//
// It is composed of a standard sync.RWMutex plus a secondary exclusive
// "upgrade" mutex that serializes writers and upgradable holders among each
// other. Because every writer must pass through the upgrade mutex, an
// upgradable holder can escalate to a full write lock without ever releasing
// its hold: no other writer can interleave between the read phase and the
// escalation.
//
// Lock modes:
//   - RLock/RUnlock: shared. Any number of readers may hold it concurrently.
//   - Lock/Unlock: exclusive write.
//   - ULock/UUnlock: upgradable read. Coexists with plain readers, excludes
//     writers and other upgradable holders.
//   - Upgrade: escalates an upgradable hold to a write hold. After Upgrade
//     the hold is released with Unlock, not UUnlock.
//
// The zero value is an unlocked mutex. A URWMutex must not be copied after
// first use.
type URWMutex struct {
	rw      sync.RWMutex
	upgrade sync.Mutex
}

// RLock acquires a shared read hold.
//
// Thread-safety: blocks until no writer holds or is acquiring the lock.
func (m *URWMutex) RLock() {
	m.rw.RLock()
}

// RUnlock releases a shared read hold.
func (m *URWMutex) RUnlock() {
	m.rw.RUnlock()
}

// Lock acquires an exclusive write hold.
//
// Thread-safety: blocks until all readers and upgradable holders release.
func (m *URWMutex) Lock() {
	m.upgrade.Lock()
	m.rw.Lock()
}

// Unlock releases an exclusive write hold (also the one reached via Upgrade).
func (m *URWMutex) Unlock() {
	m.rw.Unlock()
	m.upgrade.Unlock()
}

// ULock acquires an upgradable read hold. The holder may read concurrently
// with plain readers and later call Upgrade to escalate to a write hold.
//
// Thread-safety: blocks while a writer or another upgradable holder is
// active.
func (m *URWMutex) ULock() {
	m.upgrade.Lock()
	m.rw.RLock()
}

// UUnlock releases an upgradable read hold that was not upgraded.
func (m *URWMutex) UUnlock() {
	m.rw.RUnlock()
	m.upgrade.Unlock()
}

// Upgrade escalates an upgradable read hold to an exclusive write hold
// without releasing the upgrade mutex in between. Because writers serialize
// on the upgrade mutex, no write can interleave between the read phase and
// the escalation; Upgrade only waits for plain readers to drain.
//
// After Upgrade the hold must be released with Unlock.
func (m *URWMutex) Upgrade() {
	m.rw.RUnlock()
	m.rw.Lock()
}
