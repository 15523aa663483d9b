package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationGate_BackupExcludesBackup(t *testing.T) {
	gate := NewOperationGate()

	require.NoError(t, gate.BeginBackup())
	assert.ErrorIs(t, gate.BeginBackup(), ErrBackupInProgress)

	gate.EndBackup()
	assert.NoError(t, gate.BeginBackup())
	gate.EndBackup()
}

func TestOperationGate_BackupDuringRestoreRejected(t *testing.T) {
	gate := NewOperationGate()

	require.NoError(t, gate.BeginRestore())
	assert.ErrorIs(t, gate.BeginBackup(), ErrRestoreInProgress)

	gate.EndRestore()
	assert.NoError(t, gate.BeginBackup())
	gate.EndBackup()
}

func TestOperationGate_ConcurrentRestoreRejected(t *testing.T) {
	gate := NewOperationGate()

	require.NoError(t, gate.BeginRestore())
	assert.ErrorIs(t, gate.BeginRestore(), ErrRestoreInProgress)
	gate.EndRestore()
}

func TestOperationGate_RestoreWaitsForBackup(t *testing.T) {
	gate := NewOperationGate()
	require.NoError(t, gate.BeginBackup())

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, gate.BeginRestore())
		close(acquired)
		gate.EndRestore()
	}()

	select {
	case <-acquired:
		t.Fatal("restore must wait while a backup holds the gate")
	case <-time.After(50 * time.Millisecond):
	}

	gate.EndBackup()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("restore did not proceed after the backup finished")
	}
	wg.Wait()
}
