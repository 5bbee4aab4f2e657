package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	bankingsync "github.com/goliatone/go-banking/sync"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDSyncConnection = "banking.sync.connection"
	JobIDResumeSync     = "banking.sync.resume"

	scriptPathSync = "banking/sync"
)

// SyncMessage is the queue payload for one connection sync. A JobID means
// resume that job instead of starting a new one.
type SyncMessage struct {
	ConnectionID   string
	Mode           bankingsync.JobMode
	JobID          string
	IdempotencyKey string
}

func (m SyncMessage) Validate() error {
	if strings.TrimSpace(m.JobID) == "" && strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("gojob: connection id or job id is required")
	}
	return nil
}

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation. A
// missing disposition means retry; a retry at or past MaxAttempts becomes a
// dead letter when DeadLetterOnMax is set and a plain failure otherwise.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition == queue.NackDispositionRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		} else {
			out.Disposition = queue.NackDispositionFailed
		}
	}
	if out.Disposition != queue.NackDispositionRetry {
		out.Delay = 0
	}
	return out
}

// DelayForAttempt doubles BaseDelay per attempt, capped by MaxDelay.
func (p RetryPolicy) DelayForAttempt(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 1 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// ToExecutionMessage maps a sync request to go-job.
func ToExecutionMessage(msg SyncMessage) *job.ExecutionMessage {
	jobID := JobIDSyncConnection
	if strings.TrimSpace(msg.JobID) != "" {
		jobID = JobIDResumeSync
	}
	params := map[string]any{}
	if connectionID := strings.TrimSpace(msg.ConnectionID); connectionID != "" {
		params["connection_id"] = connectionID
	}
	if msg.Mode != "" {
		params["mode"] = string(msg.Mode)
	}
	if syncJobID := strings.TrimSpace(msg.JobID); syncJobID != "" {
		params["job_id"] = syncJobID
	}
	return &job.ExecutionMessage{
		JobID:          jobID,
		ScriptPath:     scriptPathSync,
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
	}
}

// FromExecutionMessage maps a go-job message back into a sync request.
func FromExecutionMessage(msg *job.ExecutionMessage) (SyncMessage, error) {
	if msg == nil {
		return SyncMessage{}, fmt.Errorf("gojob: execution message is required")
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDSyncConnection, JobIDResumeSync:
	default:
		return SyncMessage{}, fmt.Errorf("gojob: unsupported job id %q", msg.JobID)
	}
	out := SyncMessage{
		ConnectionID:   stringParam(msg.Parameters, "connection_id"),
		Mode:           bankingsync.JobMode(stringParam(msg.Parameters, "mode")),
		JobID:          stringParam(msg.Parameters, "job_id"),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
	}
	if err := out.Validate(); err != nil {
		return SyncMessage{}, err
	}
	return out, nil
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) EnqueueSync(ctx context.Context, msg SyncMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	_, err := a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
	return err
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() (SyncMessage, error) {
	if d == nil || d.delivery == nil {
		return SyncMessage{}, fmt.Errorf("gojob: delivery is not configured")
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts queue.NackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	if err := queue.ValidateNackOptions(normalized); err != nil {
		return fmt.Errorf("gojob: %w", err)
	}
	return d.delivery.Nack(ctx, normalized)
}

// SyncRunner is satisfied by *bankingsync.Orchestrator.
type SyncRunner interface {
	Sync(ctx context.Context, req bankingsync.Request) (bankingsync.Job, error)
	Resume(ctx context.Context, jobID string) (bankingsync.Job, error)
}

// SyncWorker pulls sync messages from a dequeuer and runs them. Failed runs
// are nacked: failures core.IsRetryable accepts are retried with backoff,
// everything else dead-letters.
type SyncWorker struct {
	dequeuer queue.Dequeuer
	runner   SyncRunner
	policy   RetryPolicy
	logger   core.Logger
}

func NewSyncWorker(dequeuer queue.Dequeuer, runner SyncRunner, policy RetryPolicy, logger core.Logger) *SyncWorker {
	return &SyncWorker{
		dequeuer: dequeuer,
		runner:   runner,
		policy:   policy,
		logger:   glog.Ensure(logger),
	}
}

// ProcessNext handles one delivery. attempt is the delivery attempt as
// tracked by the queue backend.
func (w *SyncWorker) ProcessNext(ctx context.Context, attempt int) (bankingsync.Job, error) {
	if w == nil || w.dequeuer == nil || w.runner == nil {
		return bankingsync.Job{}, fmt.Errorf("gojob: sync worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return bankingsync.Job{}, err
	}
	adapter := NewDeliveryAdapter(delivery, w.policy)
	msg, err := adapter.Message()
	if err != nil {
		w.logger.Warn("dropping malformed sync message", "error", err.Error())
		return bankingsync.Job{}, adapter.NackForAttempt(ctx, queue.NackOptions{
			Disposition: queue.NackDispositionDeadLetter,
			Reason:      err.Error(),
		}, attempt)
	}

	var out bankingsync.Job
	if msg.JobID != "" {
		out, err = w.runner.Resume(ctx, msg.JobID)
	} else {
		out, err = w.runner.Sync(ctx, bankingsync.Request{ConnectionID: msg.ConnectionID, Mode: msg.Mode})
	}
	if err == nil {
		return out, adapter.Ack(ctx)
	}

	reason := core.RedactSecrets(err.Error())
	opts := queue.NackOptions{Disposition: queue.NackDispositionDeadLetter, Reason: reason}
	if core.IsRetryable(err) {
		opts.Disposition = queue.NackDispositionRetry
		opts.Delay = w.policy.DelayForAttempt(attempt)
	}
	w.logger.Warn("sync delivery failed",
		"connection_id", msg.ConnectionID,
		"job_id", out.ID,
		"attempt", attempt,
		"disposition", string(opts.Disposition),
		"error", reason,
	)
	if nackErr := adapter.NackForAttempt(ctx, opts, attempt); nackErr != nil {
		return out, nackErr
	}
	return out, err
}

// LoggingHook reports go-job worker lifecycle events through the go-job
// logger contract. Use gologger.ResolveForJob to bridge a glog provider.
type LoggingHook struct {
	logger job.Logger
}

func NewLoggingHook(logger job.Logger) *LoggingHook {
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx).Debug("sync job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx).Info("sync job succeeded", eventFields(event)...)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.log(ctx).Error("sync job failed", eventFields(event)...)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx).Warn("sync job retry scheduled", eventFields(event)...)
}

func (h *LoggingHook) log(ctx context.Context) job.Logger {
	var logger job.Logger
	if h != nil {
		logger = h.logger
	}
	if logger == nil {
		logger = job.NewStdLoggerProvider().GetLogger(JobIDSyncConnection)
	}
	if ctx == nil {
		return logger
	}
	return logger.WithContext(ctx)
}

func eventFields(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fields := []any{
		"attempt", event.Attempt,
		"delay_ms", event.Delay.Milliseconds(),
		"duration_ms", event.Duration.Milliseconds(),
	}
	if message != nil {
		fields = append(fields, "job_id", message.JobID, "connection_id", stringParam(message.Parameters, "connection_id"))
	}
	if event.Err != nil {
		fields = append(fields, "error", core.RedactSecrets(event.Err.Error()))
	}
	return fields
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return strings.TrimSpace(value)
}

var (
	_ worker.Hook = (*LoggingHook)(nil)
	_ SyncRunner  = (*bankingsync.Orchestrator)(nil)
)
