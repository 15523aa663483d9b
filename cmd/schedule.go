package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sales-data-guard/internal/scheduler"
)

var scheduleOnce bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Recurring backup scheduling",
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the recurring backup scheduler in the foreground",
	Long: `Run the backup scheduler until interrupted. A snapshot is created on the
configured interval; a tick that fires while the previous run is still in
flight is skipped, and every run outcome is appended to the persistent run
log.`,
	RunE: runSchedule,
}

func init() {
	scheduleRunCmd.Flags().BoolVar(&scheduleOnce, "once", false, "perform a single run and exit")
	scheduleCmd.AddCommand(scheduleRunCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gc, err := newGuardContext(ctx)
	if err != nil {
		return err
	}
	defer gc.Close()

	runLog, err := scheduler.NewRunLog(gc.config.Schedule.RunLogPath)
	if err != nil {
		return err
	}

	sched, err := scheduler.NewScheduler(gc.engine, gc.config.Schedule.Interval, runLog)
	if err != nil {
		return err
	}
	sched.SetLogger(gc.logger)

	if scheduleOnce {
		record := sched.RunOnce(ctx, scheduler.TriggerManual)
		if record.Outcome != scheduler.RunOutcomeSucceeded {
			gc.display.Error("Run %s: %s", record.Outcome, record.Error)
			return nil
		}
		gc.display.Success("Snapshot %s created", record.SnapshotID)
		return nil
	}

	sched.Start(ctx)
	gc.display.Info("Scheduler running every %s, run log at %s (Ctrl-C to stop)",
		gc.config.Schedule.Interval, gc.config.Schedule.RunLogPath)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	select {
	case <-signals:
	case <-ctx.Done():
	}

	sched.Stop()
	gc.display.Info("Scheduler stopped")
	return nil
}
