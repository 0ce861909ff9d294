package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/metrics"
	"github.com/MCIKIDS/mci.kids/pkg/store"
)

const (
	leaseTTL        = 5 * time.Minute
	nextTickBackoff = 30 * time.Second
)

// Options configures a Scheduler.
type Options struct {
	Slot    store.Slot
	SlotKey string
	Cron    string
	Keep    int
	// AuditPath holds the lease file.
	AuditPath string
	// Flush writes pending state before the copy is taken.
	Flush func(ctx context.Context) error
	Clock func() time.Time
}

// Scheduler copies the state slot on a cron schedule.
type Scheduler struct {
	opts  Options
	lease *FileLease

	mu      sync.Mutex
	running bool
}

func NewScheduler(opts Options) (*Scheduler, error) {
	if !gronx.IsValid(opts.Cron) {
		return nil, fmt.Errorf("invalid backup cron expression: %s", opts.Cron)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Scheduler{opts: opts, lease: NewFileLease(opts.AuditPath)}, nil
}

// Start runs the schedule loop until ctx is done or the returned cancel is called.
func (s *Scheduler) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	logger.Info("backup_enabled", "cron", s.opts.Cron, "keep", s.opts.Keep)
	go s.loop(ctx)
	return cancel
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(s.opts.Cron, s.opts.Clock(), false)
		if err != nil {
			logger.Error("backup_nexttick_failed", "cron", s.opts.Cron, "error", err)
			select {
			case <-time.After(nextTickBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case <-time.After(time.Until(next)):
			if _, err := s.RunOnce(ctx); err != nil {
				logger.Error("backup_run_error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce takes one backup now. Overlapping runs in this process are
// skipped, and the file lease keeps other processes out.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Result{Skipped: true}, nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	runID := uuid.NewString()
	ok, err := s.lease.Acquire(runID, leaseTTL)
	if err != nil {
		metrics.BackupRuns.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("lease acquire failed: %w", err)
	}
	if !ok {
		metrics.BackupRuns.WithLabelValues("skipped").Inc()
		return Result{Skipped: true}, nil
	}
	defer func() {
		if err := s.lease.Release(runID); err != nil {
			logger.Error("backup_lease_release_error", "error", err)
		}
	}()

	logger.AuditEvent("backup_run_start", "run_id", runID, "started_at", s.opts.Clock().UTC().Format(time.RFC3339))
	if s.opts.Flush != nil {
		if err := s.opts.Flush(ctx); err != nil {
			metrics.BackupRuns.WithLabelValues("error").Inc()
			return Result{}, fmt.Errorf("flush before backup: %w", err)
		}
	}
	res, err := Copy(ctx, s.opts.Slot, s.opts.SlotKey, s.opts.Keep, s.opts.Clock())
	if err != nil {
		metrics.BackupRuns.WithLabelValues("error").Inc()
		logger.AuditEvent("backup_run_failed", "run_id", runID, "error", err.Error())
		return res, err
	}
	result := "ok"
	if res.Skipped {
		result = "skipped"
	}
	metrics.BackupRuns.WithLabelValues(result).Inc()
	logger.AuditEvent("backup_run_done", "run_id", runID, "key", res.Key, "bytes", res.Bytes, "pruned", len(res.Pruned), "skipped", res.Skipped)
	return res, nil
}
