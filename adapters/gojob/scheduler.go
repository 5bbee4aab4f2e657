package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-banking/core"
	bankingsync "github.com/goliatone/go-banking/sync"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/robfig/cron/v3"
)

// DefaultSyncSchedule runs incremental syncs every six hours.
const DefaultSyncSchedule = "0 */6 * * *"

// ConnectionLister is satisfied by the sqlstore connection store.
type ConnectionLister interface {
	List(ctx context.Context, provider core.ProviderName) ([]bankingsync.Connection, error)
}

type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, msg SyncMessage) error
}

// Scheduler enqueues an incremental sync for every connected connection on
// a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	lister   ConnectionLister
	enqueuer SyncEnqueuer
	logger   core.Logger
	timeout  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entryID cron.EntryID
}

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(logger core.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTickTimeout bounds a single enqueue pass.
func WithTickTimeout(timeout time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScheduler(spec string, lister ConnectionLister, enqueuer SyncEnqueuer, opts ...SchedulerOption) (*Scheduler, error) {
	if lister == nil || enqueuer == nil {
		return nil, fmt.Errorf("gojob: scheduler requires a connection lister and an enqueuer")
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultSyncSchedule
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("gojob: invalid sync schedule %q: %w", spec, err)
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		spec:     spec,
		lister:   lister,
		enqueuer: enqueuer,
		timeout:  time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = glog.Ensure(s.logger)
	return s, nil
}

// Start registers the tick and starts the cron loop. It is safe to call
// once; later calls are no-ops.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID != 0 {
		return nil
	}
	id, err := s.cron.AddFunc(s.spec, s.tick)
	if err != nil {
		return fmt.Errorf("gojob: schedule sync: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.logger.Info("sync scheduler started", "schedule", s.spec)
	return nil
}

// Stop halts the cron loop and returns a context that is done once any
// running tick has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next reports when the next tick fires. Zero before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// EnqueueDue enqueues one incremental sync per connected connection and
// returns how many were enqueued. Enqueue failures are logged and the pass
// continues.
func (s *Scheduler) EnqueueDue(ctx context.Context) (int, error) {
	connections, err := s.lister.List(ctx, "")
	if err != nil {
		return 0, err
	}
	bucket := s.now().UTC().Truncate(time.Hour).Format("2006010215")
	enqueued := 0
	for _, conn := range connections {
		if conn.Status != core.ConnectionConnected {
			continue
		}
		msg := SyncMessage{
			ConnectionID:   conn.ID,
			Mode:           bankingsync.JobModeIncremental,
			IdempotencyKey: "banking.sync:" + conn.ID + ":" + bucket,
		}
		if err := s.enqueuer.EnqueueSync(ctx, msg); err != nil {
			s.logger.Warn("sync enqueue failed", "connection_id", conn.ID, "provider", string(conn.Provider), "error", err.Error())
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	count, err := s.EnqueueDue(ctx)
	if err != nil {
		s.logger.Error("scheduled sync pass failed", "error", err.Error())
		return
	}
	s.logger.Info("scheduled sync pass completed", "enqueued", count)
}
