package core

import (
	"context"
	"sync"
	"time"
)

type stubProvider struct {
	name     ProviderName
	accounts []Account
	err      error
}

func (p stubProvider) Name() ProviderName { return p.name }

func (p stubProvider) ExchangeToken(context.Context, string, string) (TokenResponse, error) {
	if p.err != nil {
		return TokenResponse{}, p.err
	}
	return NewTokenResponse(time.Unix(0, 0), "access", "refresh", 3600), nil
}

func (p stubProvider) RefreshToken(context.Context, string) (TokenResponse, error) {
	if p.err != nil {
		return TokenResponse{}, p.err
	}
	return NewTokenResponse(time.Unix(0, 0), "access", "refresh", 3600), nil
}

func (p stubProvider) GetAccounts(context.Context, string) ([]Account, error) {
	if p.err != nil {
		return nil, p.err
	}
	return append([]Account(nil), p.accounts...), nil
}

func (p stubProvider) GetAccountBalance(context.Context, string, string) (Balance, error) {
	return Balance{Current: 1, Currency: "USD"}, p.err
}

func (p stubProvider) GetTransactions(context.Context, string, string, DateRange) ([]Transaction, error) {
	return nil, p.err
}

func (p stubProvider) GetInstitutions(context.Context, InstitutionFilter) ([]Institution, error) {
	return nil, p.err
}

func (p stubProvider) GetConnectionStatus(context.Context, string) (ConnectionStatus, error) {
	if p.err != nil {
		return ConnectionError, p.err
	}
	return ConnectionConnected, nil
}

func (p stubProvider) DeleteConnection(context.Context, string) error { return p.err }

func (p stubProvider) HealthCheck(context.Context) error { return p.err }

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: tags})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: tags})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]capturedLog, len(*l.records))
	copy(out, *l.records)
	return out
}

func (l *captureLogger) countLevel(level string) int {
	count := 0
	for _, record := range l.snapshot() {
		if record.level == level {
			count++
		}
	}
	return count
}

func cloneFieldMap(input map[string]any) map[string]any {
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger { return p.logger }

// recordingSleep captures requested delays without blocking.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) sleep(_ context.Context, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, delay)
	return nil
}
