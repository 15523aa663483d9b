package store

import (
	"errors"
	"sync"
)

// Gate errors returned when an operation cannot start.
var (
	// ErrBackupInProgress is returned when a backup is requested while
	// another backup already holds the gate.
	ErrBackupInProgress = errors.New("a backup is already in progress")
	// ErrRestoreInProgress is returned when any operation is requested while
	// a restore holds the gate. The store may be in a transactional
	// half-state, so nothing else is allowed to start.
	ErrRestoreInProgress = errors.New("a restore is in progress")
)

// OperationGate serializes bulk operations against the live store: at most
// one backup and at most one restore may run at any time, and they never
// overlap. A restore requested during a backup waits for the backup to
// finish; a backup requested during a restore is rejected outright.
type OperationGate struct {
	mu        sync.Mutex
	cond      *sync.Cond
	backing   bool
	restoring bool
}

// NewOperationGate creates a gate with no operations in flight.
func NewOperationGate() *OperationGate {
	g := &OperationGate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// BeginBackup acquires the gate for a backup run. It never waits: a backup
// arriving while a restore or another backup is active is rejected.
func (g *OperationGate) BeginBackup() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.restoring {
		return ErrRestoreInProgress
	}
	if g.backing {
		return ErrBackupInProgress
	}
	g.backing = true
	return nil
}

// EndBackup releases the gate after a backup run.
func (g *OperationGate) EndBackup() {
	g.mu.Lock()
	g.backing = false
	g.mu.Unlock()
	g.cond.Broadcast()
}

// BeginRestore acquires the gate for a restore run. It waits for an in-flight
// backup to finish, but rejects immediately if another restore is active.
func (g *OperationGate) BeginRestore() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.restoring {
		return ErrRestoreInProgress
	}
	for g.backing {
		g.cond.Wait()
		if g.restoring {
			return ErrRestoreInProgress
		}
	}
	g.restoring = true
	return nil
}

// EndRestore releases the gate after a restore run.
func (g *OperationGate) EndRestore() {
	g.mu.Lock()
	g.restoring = false
	g.mu.Unlock()
	g.cond.Broadcast()
}
