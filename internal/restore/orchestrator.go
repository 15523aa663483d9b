package restore

import (
	"context"
	"crypto/subtle"
	"fmt"

	"sales-data-guard/internal/integrity"
	"sales-data-guard/internal/logging"
	"sales-data-guard/internal/snapshot"
	"sales-data-guard/internal/store"
)

// Orchestrator drives the restore and rollback state machine:
//
//	Requested → PreValidating → SafetySnapshotting → Loading →
//	PostValidating → {Succeeded | Aborted*}
//
// It is the only component allowed to mutate the live tables en masse.
// Authorization and artifact validation happen before any mutation; once
// the load transaction begins, the only acceptable results are full success
// or full reversion.
type Orchestrator struct {
	engine *snapshot.Engine
	tables store.TableStore
	gate   *store.OperationGate
	logger *logging.Logger
}

// NewOrchestrator creates an orchestrator sharing the engine's gate so a
// restore and a backup can never run concurrently.
func NewOrchestrator(engine *snapshot.Engine, tables store.TableStore) (*Orchestrator, error) {
	if engine == nil {
		return nil, snapshot.NewConfigurationError("snapshot engine is required", nil)
	}
	if tables == nil {
		return nil, snapshot.NewConfigurationError("table store is required", nil)
	}
	return &Orchestrator{
		engine: engine,
		tables: tables,
		gate:   engine.Gate(),
		logger: logging.NewDefaultLogger(),
	}, nil
}

// SetLogger replaces the orchestrator's logger.
func (o *Orchestrator) SetLogger(logger *logging.Logger) {
	if logger != nil {
		o.logger = logger
	}
}

// Restore replaces the live tables with the contents of the target snapshot.
// The returned Operation is always non-nil once authorization passes, so
// aborted attempts are auditable too.
func (o *Orchestrator) Restore(ctx context.Context, snapshotID, confirmationToken string, actor Actor) (*Operation, error) {
	return o.run(ctx, KindRestore, snapshotID, confirmationToken, actor)
}

// Rollback reverts the live tables to an earlier snapshot. Same protocol as
// Restore with a distinct confirmation phrase.
func (o *Orchestrator) Rollback(ctx context.Context, snapshotID, confirmationToken string, actor Actor) (*Operation, error) {
	return o.run(ctx, KindRollback, snapshotID, confirmationToken, actor)
}

func (o *Orchestrator) run(ctx context.Context, kind Kind, snapshotID, confirmationToken string, actor Actor) (*Operation, error) {
	// Token gate first: fail closed before any store read or write.
	if err := authorize(kind, confirmationToken, actor); err != nil {
		return nil, err
	}

	op := newOperation(kind, snapshotID, confirmationToken, actor)

	// One bulk operation at a time. A running backup is waited out; a
	// second restore is rejected outright.
	if err := o.gate.BeginRestore(); err != nil {
		op.finalize(OutcomeAbortedPreValidation, err.Error())
		return op, snapshot.NewConflictError("cannot start restore", err)
	}
	defer o.gate.EndRestore()

	target, err := o.preValidate(ctx, op)
	if err != nil {
		return op, err
	}

	safety, err := o.safetySnapshot(ctx, op, actor)
	if err != nil {
		return op, err
	}

	if err := o.load(ctx, op, target); err != nil {
		return op, err
	}

	if err := o.postValidate(ctx, op, target, safety); err != nil {
		return op, err
	}

	op.finalize(OutcomeSucceeded, "")
	o.logger.LogRestorePhase(op.ID, string(OutcomeSucceeded), op.TargetSnapshotID)
	return op, nil
}

// authorize checks the confirmation phrase and actor privilege. It performs
// no I/O of any kind.
func authorize(kind Kind, confirmationToken string, actor Actor) error {
	phrase := requiredPhrase(kind)
	if subtle.ConstantTimeCompare([]byte(confirmationToken), []byte(phrase)) != 1 {
		return snapshot.NewUnauthorizedError(
			fmt.Sprintf("confirmation phrase does not match the required %s phrase", kind), nil)
	}
	if !actor.Elevated() {
		return snapshot.NewUnauthorizedError(
			fmt.Sprintf("actor %q with role %q lacks the privilege for destructive operations", actor.Name, actor.Role), nil)
	}
	return nil
}

// preValidate loads the target snapshot. The engine re-verifies the artifact
// wholesale: format version, checksum and every embedded table fingerprint.
// A snapshot that fails self-verification is never restored from.
func (o *Orchestrator) preValidate(ctx context.Context, op *Operation) (*snapshot.Snapshot, error) {
	o.transitionPhase(op, PhasePreValidating)

	target, err := o.engine.GetSnapshot(ctx, op.TargetSnapshotID)
	if err != nil {
		op.finalize(OutcomeAbortedPreValidation, err.Error())
		return nil, err
	}
	return target, nil
}

// safetySnapshot captures the live state before anything is touched. Without
// a reversion point the restore does not proceed.
func (o *Orchestrator) safetySnapshot(ctx context.Context, op *Operation, actor Actor) (*snapshot.Snapshot, error) {
	o.transitionPhase(op, PhaseSafetySnapshotting)

	result, err := o.engine.CreateSafetySnapshot(ctx, actor.Name, "pre-restore safety backup")
	if err != nil {
		op.finalize(OutcomeAbortedPreValidation, err.Error())
		return nil, snapshot.NewStorageError("failed to take pre-restore safety snapshot", err)
	}
	op.SafetySnapshotID = result.Snapshot.ID
	return result.Snapshot, nil
}

// load clears and reloads every table in one transaction. The store contract
// guarantees reverse-dependency-order clearing, forward-order insertion, and
// full rollback on any failure, so an aborted load leaves live data exactly
// as it was.
func (o *Orchestrator) load(ctx context.Context, op *Operation, target *snapshot.Snapshot) error {
	o.transitionPhase(op, PhaseLoading)

	if err := o.tables.ReplaceAll(ctx, target.Tables); err != nil {
		wrapped := snapshot.NewLoadTransactionError("bulk reload transaction failed; live data untouched", err)
		op.finalize(OutcomeAbortedDuringLoad, wrapped.Error())
		return wrapped
	}
	return nil
}

// postValidate re-reads the live store and compares its fingerprints to the
// target's. On mismatch it immediately re-loads the safety snapshot so the
// store returns to its pre-restore state, then reports the original failure.
func (o *Orchestrator) postValidate(ctx context.Context, op *Operation, target, safety *snapshot.Snapshot) error {
	o.transitionPhase(op, PhasePostValidating)

	live, err := o.tables.ReadAll(ctx)
	if err == nil {
		var fingerprints map[string]string
		fingerprints, err = integrity.FingerprintTables(live)
		if err == nil {
			if mismatch := firstMismatch(fingerprints, target.Fingerprints); mismatch != "" {
				err = snapshot.NewPostRestoreMismatchError(
					fmt.Sprintf("live table %s does not match the restored snapshot", mismatch), nil)
			}
		}
	}
	if err == nil {
		return nil
	}

	detail := err.Error()
	if revertErr := o.tables.ReplaceAll(ctx, safety.Tables); revertErr != nil {
		detail = fmt.Sprintf("%s; reversion to safety snapshot %s also failed: %s", detail, safety.ID, revertErr)
	} else {
		op.Reverted = true
	}
	op.finalize(OutcomeAbortedPostValidation, detail)
	return err
}

func (o *Orchestrator) transitionPhase(op *Operation, phase Phase) {
	op.Phase = phase
	o.logger.LogRestorePhase(op.ID, string(phase), op.TargetSnapshotID)
}

// firstMismatch returns the name of the first table whose fingerprint
// differs, or "" when every table matches.
func firstMismatch(live, want map[string]string) string {
	for _, spec := range store.Tables {
		if live[spec.Name] != want[spec.Name] {
			return spec.Name
		}
	}
	return ""
}
