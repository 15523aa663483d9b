package cmd

import (
	"github.com/spf13/cobra"

	"sales-data-guard/internal/restore"
)

var (
	confirmPhrase string
	actorName     string
	actorRole     string
)

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Replace the live tables with the contents of a snapshot",
	Long: `Restore replaces every protected table with the contents of the target
snapshot. This is destructive: it requires the exact confirmation phrase

    RESTORE CUSTOMER DATA

and an elevated actor role (admin or operator). Before anything is touched a
safety snapshot of the current state is taken automatically; the reload runs
in one transaction and the result is verified fingerprint by fingerprint.
On verification failure the store is automatically reverted to the safety
snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGuardedOperation(cmd, args[0], restore.KindRestore)
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <snapshot-id>",
	Short: "Revert the live tables to an earlier snapshot",
	Long: `Rollback deliberately reverts recent changes by restoring an earlier
snapshot. The protocol is identical to restore but requires the distinct
confirmation phrase

    ROLLBACK RECENT CHANGES

so an operator under stress cannot trigger the wrong operation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGuardedOperation(cmd, args[0], restore.KindRollback)
	},
}

func init() {
	for _, c := range []*cobra.Command{restoreCmd, rollbackCmd} {
		c.Flags().StringVar(&confirmPhrase, "confirm", "", "exact confirmation phrase (required)")
		c.Flags().StringVar(&actorName, "actor", "", "name of the requesting operator (required)")
		c.Flags().StringVar(&actorRole, "role", "", "role of the requesting operator (admin or operator)")
		c.MarkFlagRequired("confirm")
		c.MarkFlagRequired("actor")
	}
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(rollbackCmd)
}

func runGuardedOperation(cmd *cobra.Command, snapshotID string, kind restore.Kind) error {
	ctx := cmd.Context()
	gc, err := newGuardContext(ctx)
	if err != nil {
		return err
	}
	defer gc.Close()

	actor := restore.Actor{Name: actorName, Role: actorRole}

	var op *restore.Operation
	if kind == restore.KindRollback {
		op, err = gc.orchestrator.Rollback(ctx, snapshotID, confirmPhrase, actor)
	} else {
		op, err = gc.orchestrator.Restore(ctx, snapshotID, confirmPhrase, actor)
	}

	if op != nil {
		if op.SafetySnapshotID != "" {
			gc.display.Info("Safety snapshot: %s", op.SafetySnapshotID)
		}
		if op.Reverted {
			gc.display.Warning("Store reverted to safety snapshot %s", op.SafetySnapshotID)
		}
	}
	if err != nil {
		gc.display.Error("%s of %s failed: %v", kind, snapshotID, err)
		return err
	}

	gc.display.Success("%s of %s succeeded (operation %s)", kind, snapshotID, op.ID)
	return nil
}
