package core

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestObservedProvider_RecordsSuccess(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	provider := NewObservedProvider(stubProvider{
		name:     ProviderPlaid,
		accounts: []Account{{ID: "pl_1"}, {ID: "pl_2"}},
	}, logger, metrics)

	accounts, err := provider.GetAccounts(context.Background(), "access-token")
	if err != nil {
		t.Fatalf("get accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if len(metrics.counters) != 1 || metrics.counters[0].name != "banking.get_accounts.total" {
		t.Fatalf("expected get_accounts counter, got %+v", metrics.counters)
	}
	if metrics.counters[0].tags["status"] != "success" {
		t.Fatalf("expected success tag, got %v", metrics.counters[0].tags)
	}
	if len(metrics.histograms) != 1 {
		t.Fatalf("expected duration histogram")
	}
	records := logger.snapshot()
	if len(records) != 1 || records[0].msg != "get_accounts succeeded" {
		t.Fatalf("unexpected log records %+v", records)
	}
	if records[0].fields["count"] != 2 {
		t.Fatalf("expected count field, got %v", records[0].fields)
	}
}

func TestObservedProvider_RecordsFailureWithKind(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	provider := NewObservedProvider(stubProvider{
		name: ProviderTeller,
		err:  ProviderError(ProviderTeller, http.StatusUnauthorized, "token expired"),
	}, logger, metrics)

	if err := provider.HealthCheck(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if metrics.counters[0].tags["status"] != "failure" {
		t.Fatalf("expected failure tag, got %v", metrics.counters[0].tags)
	}
	records := logger.snapshot()
	if len(records) != 1 || records[0].level != "error" {
		t.Fatalf("expected one error log, got %+v", records)
	}
	if records[0].fields["error_kind"] != "provider" {
		t.Fatalf("expected error_kind field, got %v", records[0].fields)
	}
	if records[0].fields["correlation_id"] == nil {
		t.Fatalf("expected correlation_id field")
	}
}

func TestObservedProvider_UnwrapAndForeignErrors(t *testing.T) {
	inner := stubProvider{name: ProviderWise, err: errors.New("boom")}
	provider := NewObservedProvider(inner, nil, nil)
	if provider.Unwrap().Name() != ProviderWise {
		t.Fatalf("expected unwrap to return inner provider")
	}
	if err := provider.DeleteConnection(context.Background(), "tok"); err == nil {
		t.Fatalf("expected error")
	}
}
