package restore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two faces of the same protocol. Restores recover
// from accidental loss; rollbacks deliberately revert recent changes. The
// protocols are identical, only the confirmation phrase differs, so an
// operator under stress cannot trigger one while intending the other.
type Kind string

const (
	KindRestore  Kind = "RESTORE"
	KindRollback Kind = "ROLLBACK"
)

// Confirmation phrases. Exact match required, communicated to operators
// out of band.
const (
	RestoreConfirmationPhrase  = "RESTORE CUSTOMER DATA"
	RollbackConfirmationPhrase = "ROLLBACK RECENT CHANGES"
)

// Phase is one step of the restore state machine.
type Phase string

const (
	PhaseRequested          Phase = "REQUESTED"
	PhasePreValidating      Phase = "PRE_VALIDATING"
	PhaseSafetySnapshotting Phase = "SAFETY_SNAPSHOTTING"
	PhaseLoading            Phase = "LOADING"
	PhasePostValidating     Phase = "POST_VALIDATING"
)

// Outcome is the terminal result of one restore or rollback attempt.
type Outcome string

const (
	OutcomeSucceeded             Outcome = "SUCCEEDED"
	OutcomeAbortedPreValidation  Outcome = "ABORTED_PRE_VALIDATION"
	OutcomeAbortedDuringLoad     Outcome = "ABORTED_DURING_LOAD"
	OutcomeAbortedPostValidation Outcome = "ABORTED_POST_VALIDATION"
)

// Actor identifies the operator requesting a restore or rollback.
type Actor struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Elevated roles permitted to run destructive operations.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Elevated reports whether the actor may request destructive operations.
func (a Actor) Elevated() bool {
	switch a.Role {
	case RoleAdmin, RoleOperator:
		return true
	default:
		return false
	}
}

// Operation is the audit record of one restore or rollback attempt. It is
// created when a confirmed request begins, finalized exactly once with a
// terminal outcome, and never re-opened.
type Operation struct {
	ID               string    `json:"id"`
	Kind             Kind      `json:"kind"`
	TargetSnapshotID string    `json:"target_snapshot_id"`
	SafetySnapshotID string    `json:"safety_snapshot_id,omitempty"`
	Actor            Actor     `json:"actor"`
	Phase            Phase     `json:"phase"`
	Outcome          Outcome   `json:"outcome,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at,omitempty"`
	FailureDetail    string    `json:"failure_detail,omitempty"`
	// Reverted is set when a post-restore mismatch forced an automatic
	// re-load from the safety snapshot.
	Reverted bool `json:"reverted,omitempty"`

	// confirmationToken is never serialized; the phrase must not leak into
	// logs or audit records.
	confirmationToken string
}

// Succeeded reports whether the operation reached its goal.
func (op *Operation) Succeeded() bool {
	return op.Outcome == OutcomeSucceeded
}

// Finalized reports whether a terminal outcome has been recorded.
func (op *Operation) Finalized() bool {
	return op.Outcome != ""
}

func newOperation(kind Kind, targetSnapshotID, token string, actor Actor) *Operation {
	return &Operation{
		ID:                generateOperationID(kind),
		Kind:              kind,
		TargetSnapshotID:  targetSnapshotID,
		Actor:             actor,
		Phase:             PhaseRequested,
		StartedAt:         time.Now().UTC(),
		confirmationToken: token,
	}
}

func (op *Operation) finalize(outcome Outcome, detail string) {
	if op.Finalized() {
		return
	}
	op.Outcome = outcome
	op.FailureDetail = detail
	op.CompletedAt = time.Now().UTC()
}

func generateOperationID(kind Kind) string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	shortUUID := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", strings.ToLower(string(kind)), timestamp, shortUUID)
}

// requiredPhrase returns the confirmation phrase for a kind.
func requiredPhrase(kind Kind) string {
	if kind == KindRollback {
		return RollbackConfirmationPhrase
	}
	return RestoreConfirmationPhrase
}
