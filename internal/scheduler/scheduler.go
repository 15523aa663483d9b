package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sales-data-guard/internal/logging"
	"sales-data-guard/internal/snapshot"
)

// SnapshotCreator is the slice of the snapshot engine the scheduler needs.
type SnapshotCreator interface {
	CreateSnapshot(ctx context.Context, createdBy, reason string) (*snapshot.CreateResult, error)
}

// Run outcomes recorded in the run log.
const (
	RunOutcomeSucceeded = "SUCCEEDED"
	RunOutcomeFailed    = "FAILED"
	RunOutcomeSkipped   = "SKIPPED"
)

// Run triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// RunRecord is one line of the persistent run log.
type RunRecord struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	Violations int       `json:"violations,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Scheduler drives recurring snapshot creation on a fixed interval. A tick
// that fires while the previous run is still in flight is skipped, never
// queued; a failed run is logged and the next tick is the retry. On-demand
// runs go through the same code path as scheduled ones.
type Scheduler struct {
	creator  SnapshotCreator
	interval time.Duration
	runLog   *RunLog
	logger   *logging.Logger

	running atomic.Bool

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// NewScheduler creates a scheduler. The run log may be nil, in which case
// outcomes are only logged, not persisted.
func NewScheduler(creator SnapshotCreator, interval time.Duration, runLog *RunLog) (*Scheduler, error) {
	if creator == nil {
		return nil, snapshot.NewConfigurationError("snapshot creator is required", nil)
	}
	if interval < time.Minute {
		return nil, snapshot.NewConfigurationError("schedule interval must be at least one minute", nil)
	}
	return &Scheduler{
		creator:  creator,
		interval: interval,
		runLog:   runLog,
		logger:   logging.NewDefaultLogger(),
	}, nil
}

// SetLogger replaces the scheduler's logger.
func (s *Scheduler) SetLogger(logger *logging.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Start launches the background timer goroutine. Calling Start on a started
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.loop(ctx, s.stop, s.stopped)
}

// Stop halts the timer goroutine and waits for it to exit. A run already in
// flight finishes normally.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infof("Scheduler started with interval %s", s.interval)
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx, TriggerScheduled)
		case <-stop:
			s.logger.Info("Scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled")
			return
		}
	}
}

// RunOnce performs a single snapshot run and records its outcome. It returns
// the run record; overlapping calls are skipped rather than serialized.
func (s *Scheduler) RunOnce(ctx context.Context, trigger string) RunRecord {
	record := RunRecord{
		StartedAt: time.Now().UTC(),
		Trigger:   trigger,
	}

	if !s.running.CompareAndSwap(false, true) {
		record.Outcome = RunOutcomeSkipped
		record.FinishedAt = time.Now().UTC()
		record.Error = "previous run still in flight"
		s.record(record)
		return record
	}
	defer s.running.Store(false)

	result, err := s.creator.CreateSnapshot(ctx, "scheduler", "scheduled backup")
	record.FinishedAt = time.Now().UTC()
	if result != nil {
		record.Violations = len(result.Report.Violations)
		if result.Snapshot != nil {
			record.SnapshotID = result.Snapshot.ID
		}
	}
	if err != nil {
		record.Outcome = RunOutcomeFailed
		record.Error = err.Error()
	} else {
		record.Outcome = RunOutcomeSucceeded
	}

	s.record(record)
	return record
}

func (s *Scheduler) record(record RunRecord) {
	duration := record.FinishedAt.Sub(record.StartedAt)
	var err error
	if record.Error != "" {
		err = &runError{record.Error}
	}
	s.logger.LogScheduledRun(record.Outcome, record.SnapshotID, duration, err)

	if s.runLog == nil {
		return
	}
	if appendErr := s.runLog.Append(record); appendErr != nil {
		s.logger.Errorf("Failed to append run record: %v", appendErr)
	}
}

type runError struct{ msg string }

func (e *runError) Error() string { return e.msg }
