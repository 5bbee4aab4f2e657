package core

import (
	"context"
	"sort"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// ObservedProvider decorates a Provider with one log record and a pair of
// metrics per operation. Access tokens and account ids never reach the log.
type ObservedProvider struct {
	next    Provider
	logger  Logger
	metrics MetricsRecorder
	now     func() time.Time
}

func NewObservedProvider(next Provider, logger Logger, metrics MetricsRecorder) *ObservedProvider {
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return &ObservedProvider{
		next:    next,
		logger:  glog.Ensure(logger),
		metrics: metrics,
		now:     time.Now,
	}
}

// Unwrap exposes the decorated adapter for provider-specific extensions.
func (p *ObservedProvider) Unwrap() Provider {
	return p.next
}

func (p *ObservedProvider) Name() ProviderName {
	return p.next.Name()
}

func (p *ObservedProvider) ExchangeToken(ctx context.Context, code string, redirectURI string) (TokenResponse, error) {
	startedAt := p.now()
	out, err := p.next.ExchangeToken(ctx, code, redirectURI)
	p.observe(ctx, startedAt, "exchange_token", err, nil)
	return out, err
}

func (p *ObservedProvider) RefreshToken(ctx context.Context, refreshToken string) (TokenResponse, error) {
	startedAt := p.now()
	out, err := p.next.RefreshToken(ctx, refreshToken)
	p.observe(ctx, startedAt, "refresh_token", err, nil)
	return out, err
}

func (p *ObservedProvider) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	startedAt := p.now()
	out, err := p.next.GetAccounts(ctx, accessToken)
	p.observe(ctx, startedAt, "get_accounts", err, map[string]any{"count": len(out)})
	return out, err
}

func (p *ObservedProvider) GetAccountBalance(ctx context.Context, accessToken string, accountID string) (Balance, error) {
	startedAt := p.now()
	out, err := p.next.GetAccountBalance(ctx, accessToken, accountID)
	p.observe(ctx, startedAt, "get_account_balance", err, nil)
	return out, err
}

func (p *ObservedProvider) GetTransactions(
	ctx context.Context,
	accessToken string,
	accountID string,
	window DateRange,
) ([]Transaction, error) {
	startedAt := p.now()
	out, err := p.next.GetTransactions(ctx, accessToken, accountID, window)
	p.observe(ctx, startedAt, "get_transactions", err, map[string]any{"count": len(out)})
	return out, err
}

func (p *ObservedProvider) GetInstitutions(ctx context.Context, filter InstitutionFilter) ([]Institution, error) {
	startedAt := p.now()
	out, err := p.next.GetInstitutions(ctx, filter)
	p.observe(ctx, startedAt, "get_institutions", err, map[string]any{"count": len(out), "country": filter.Country})
	return out, err
}

func (p *ObservedProvider) GetConnectionStatus(ctx context.Context, accessToken string) (ConnectionStatus, error) {
	startedAt := p.now()
	out, err := p.next.GetConnectionStatus(ctx, accessToken)
	p.observe(ctx, startedAt, "get_connection_status", err, map[string]any{"connection_status": string(out)})
	return out, err
}

func (p *ObservedProvider) DeleteConnection(ctx context.Context, accessToken string) error {
	startedAt := p.now()
	err := p.next.DeleteConnection(ctx, accessToken)
	p.observe(ctx, startedAt, "delete_connection", err, nil)
	return err
}

func (p *ObservedProvider) HealthCheck(ctx context.Context) error {
	startedAt := p.now()
	err := p.next.HealthCheck(ctx)
	p.observe(ctx, startedAt, "health_check", err, nil)
	return err
}

func (p *ObservedProvider) observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	extra map[string]any,
) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	duration := p.now().Sub(startedAt)

	fields := map[string]any{
		"provider":    string(p.next.Name()),
		"operation":   operation,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}
	for key, value := range extra {
		fields[key] = value
	}
	if err != nil {
		fields["error"] = RedactSecrets(err.Error())
		if kind, ok := KindOf(err); ok {
			fields["error_kind"] = string(kind)
		}
		var coreErr *Error
		if asCoreError(err, &coreErr) {
			fields["correlation_id"] = coreErr.CorrelationID
		}
	}

	tags := map[string]string{
		"provider":  string(p.next.Name()),
		"operation": operation,
		"status":    status,
	}
	p.metrics.IncCounter(ctx, "banking."+operation+".total", 1, tags)
	p.metrics.ObserveHistogram(ctx, "banking."+operation+".duration_ms", float64(duration.Milliseconds()), tags)

	logger := p.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(RedactSensitiveMap(fields))
	}
	args := flattenFields(fields)
	if err != nil {
		logger.Error(operation+" failed", args...)
		return
	}
	logger.Info(operation+" succeeded", args...)
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

var (
	_ Provider        = (*ObservedProvider)(nil)
	_ MetricsRecorder = NopMetricsRecorder{}
)
