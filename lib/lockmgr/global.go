package lockmgr

// --------------------------------------------------------------------------
// Lock Modes
// --------------------------------------------------------------------------

// Mode selects how a lock (or a lock composition) is acquired.
type Mode int

const (
	ModeRead       Mode = iota // shared
	ModeWrite                  // exclusive
	ModeUpgradable             // shared with the option to escalate
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "Read"
	case ModeWrite:
		return "Write"
	case ModeUpgradable:
		return "Upgradable"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Global Lock Composition
// --------------------------------------------------------------------------

// GlobalLock is a held composition of a process-wide lock with the locks of
// every database that was open at acquisition time. It is returned by
// AcquireGlobal and released exactly once via Release.
type GlobalLock struct {
	mode     Mode
	process  *URWMutex
	held     []*URWMutex
	upgraded bool
	released bool
}

// AcquireGlobal acquires the given mode on the process-wide lock first, then
// calls snapshot and acquires the same mode, in the order returned, on every
// lock of the snapshot. The snapshot callback must return the locks in a
// fixed, deterministic order (the registry sorts them by database name) so
// that concurrent global acquisitions cannot deadlock against each other.
//
// The process-wide lock is always taken strictly before any per-database
// lock. Single-database code takes only its own database lock and never the
// process-wide one, so no deadlock cycle exists between single-database and
// global operations.
//
// Thread-safety: blocks until all composed locks are acquired.
func AcquireGlobal(mode Mode, process *URWMutex, snapshot func() []*URWMutex) *GlobalLock {
	lockMode(mode, process)
	locks := snapshot()
	for _, l := range locks {
		lockMode(mode, l)
	}
	return &GlobalLock{
		mode:    mode,
		process: process,
		held:    locks,
	}
}

// Upgrade escalates a ModeUpgradable global hold to write mode, process-wide
// lock first, then every composed lock in acquisition order. It panics when
// called on a hold of any other mode.
func (g *GlobalLock) Upgrade() {
	if g.mode != ModeUpgradable || g.upgraded {
		panic("lockmgr: Upgrade on a non-upgradable global hold")
	}
	g.process.Upgrade()
	for _, l := range g.held {
		l.Upgrade()
	}
	g.upgraded = true
}

// Release releases the composition: every composed lock in reverse
// acquisition order first, then the process-wide lock. This keeps the coarse
// process-wide lock held no longer than necessary.
func (g *GlobalLock) Release() {
	if g.released {
		return
	}
	g.released = true

	mode := g.mode
	if g.upgraded {
		mode = ModeWrite
	}
	for i := len(g.held) - 1; i >= 0; i-- {
		unlockMode(mode, g.held[i])
	}
	unlockMode(mode, g.process)
}

// lockMode acquires a single lock in the given mode.
func lockMode(mode Mode, l *URWMutex) {
	switch mode {
	case ModeRead:
		l.RLock()
	case ModeWrite:
		l.Lock()
	case ModeUpgradable:
		l.ULock()
	}
}

// unlockMode releases a single lock held in the given mode.
func unlockMode(mode Mode, l *URWMutex) {
	switch mode {
	case ModeRead:
		l.RUnlock()
	case ModeWrite:
		l.Unlock()
	case ModeUpgradable:
		l.UUnlock()
	}
}
