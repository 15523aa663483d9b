package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sales-data-guard/internal/snapshot"
)

var (
	backupReason       string
	backupActor        string
	backupListLimit    int
	backupExportFormat string
	backupExportDest   string
)

// backupCmd groups the snapshot management subcommands.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create and manage snapshots of the protected tables",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Validate the store and create a new snapshot",
	Long: `Read all protected tables, validate every record against the integrity
rules, and write a fingerprinted snapshot artifact to the configured storage.

The snapshot is refused outright when any record fails validation; nothing
is written in that case and each violation is reported.`,
	RunE: runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	RunE:  runBackupList,
}

var backupInspectCmd = &cobra.Command{
	Use:   "inspect <snapshot-id>",
	Short: "Show the metadata and fingerprints of one snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupInspect,
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a snapshot artifact from storage",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupDelete,
}

var backupExportCmd = &cobra.Command{
	Use:   "export <snapshot-id>",
	Short: "Export a verified snapshot as JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupExport,
}

func init() {
	backupCreateCmd.Flags().StringVar(&backupReason, "reason", "manual backup", "reason recorded in the snapshot")
	backupCreateCmd.Flags().StringVar(&backupActor, "actor", "operator", "identity recorded as the snapshot creator")

	backupListCmd.Flags().IntVar(&backupListLimit, "limit", 0, "maximum number of snapshots to list (0 = all)")

	backupExportCmd.Flags().StringVar(&backupExportFormat, "format", "json", "export format (json, yaml)")
	backupExportCmd.Flags().StringVar(&backupExportDest, "destination", "", "write to this file instead of stdout")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupInspectCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	backupCmd.AddCommand(backupExportCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gc, err := newGuardContext(ctx)
	if err != nil {
		return err
	}
	defer gc.Close()

	result, err := gc.engine.CreateSnapshot(ctx, backupActor, backupReason)
	if err != nil {
		if result != nil && !result.Report.IsClean {
			gc.display.Error("Snapshot refused: %d integrity violations", len(result.Report.Violations))
			for _, v := range result.Report.Violations {
				gc.display.Warning("%s/%s: %s (%s)", v.Table, v.RecordID, v.Detail, v.Rule)
			}
		}
		return err
	}

	snap := result.Snapshot
	gc.display.Success("Snapshot %s created (%d records across %d tables)",
		snap.ID, snap.Summary.TotalRecords, len(snap.Tables))
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gc, err := newGuardContext(ctx)
	if err != nil {
		return err
	}
	defer gc.Close()

	descriptors, err := gc.engine.ListSnapshots(ctx, snapshot.StorageFilter{MaxItems: backupListLimit})
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		gc.display.Info("No snapshots stored")
		return nil
	}

	rows := make([][]string, 0, len(descriptors))
	for _, d := range descriptors {
		rows = append(rows, []string{
			d.ID,
			d.CreatedAt.Format("2006-01-02 15:04:05"),
			d.CreatedBy,
			fmt.Sprintf("%d", d.Summary.TotalRecords),
			string(d.Compression),
			d.Reason,
		})
	}
	gc.display.PrintTable([]string{"ID", "CREATED", "BY", "RECORDS", "COMPRESSION", "REASON"}, rows)
	return nil
}

func runBackupInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gc, err := newGuardContext(ctx)
	if err != nil {
		return err
	}
	defer gc.Close()

	descriptor, err := gc.engine.GetDescriptor(ctx, args[0])
	if err != nil {
		return err
	}

	gc.display.Header(fmt.Sprintf("Snapshot %s", descriptor.ID))
	gc.display.Info("Created:     %s by %s", descriptor.CreatedAt.Format("2006-01-02 15:04:05 MST"), descriptor.CreatedBy)
	gc.display.Info("Reason:      %s", descriptor.Reason)
	gc.display.Info("Format:      v%d, %s compressed, encrypted=%t", descriptor.FormatVersion, descriptor.Compression, descriptor.Encrypted)
	gc.display.Info("Size:        %d bytes raw, %d bytes stored", descriptor.Size, descriptor.EncodedSize)
	gc.display.Info("Checksum:    %s", descriptor.Checksum)
	gc.display.Info("Location:    %s", descriptor.StorageLocation)
	gc.display.Info("Records:     %d total, %d communication logs (%.0f%% delivered)",
		descriptor.Summary.TotalRecords, descriptor.Summary.CommunicationCount,
		descriptor.Summary.DeliverySuccessRate*100)

	rows := make([][]string, 0, len(descriptor.Fingerprints))
	for table, fingerprint := range descriptor.Fingerprints {
		rows = append(rows, []string{table, fmt.Sprintf("%d", descriptor.Summary.RecordCounts[table]), fingerprint})
	}
	gc.display.PrintTable([]string{"TABLE", "RECORDS", "FINGERPRINT"}, rows)
	return nil
}

func runBackupDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gc, err := newGuardContext(ctx)
	if err != nil {
		return err
	}
	defer gc.Close()

	if err := gc.engine.DeleteSnapshot(ctx, args[0]); err != nil {
		return err
	}
	gc.display.Success("Snapshot %s deleted", args[0])
	return nil
}

func runBackupExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gc, err := newGuardContext(ctx)
	if err != nil {
		return err
	}
	defer gc.Close()

	format := snapshot.ExportFormat(strings.ToLower(backupExportFormat))
	data, err := gc.engine.ExportSnapshot(ctx, args[0], format)
	if err != nil {
		return err
	}

	if backupExportDest == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(backupExportDest, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	gc.display.Success("Snapshot %s exported to %s", args[0], backupExportDest)
	return nil
}
