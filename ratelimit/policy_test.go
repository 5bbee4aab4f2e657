package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-banking/core"
)

func fixedPolicy(now time.Time) (*AdaptivePolicy, *MemoryStateStore) {
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)
	policy.Now = func() time.Time { return now }
	return policy, store
}

func TestAdaptivePolicy_BeforeCallAllowsWhenNoState(t *testing.T) {
	policy := NewAdaptivePolicy(nil)

	if err := policy.BeforeCall(context.Background(), core.ProviderPlaid); err != nil {
		t.Fatalf("expected no error when no state exists, got %v", err)
	}
}

func TestAdaptivePolicy_AfterCallParsesHeadersAndPersistsState(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := fixedPolicy(now)

	headers := http.Header{}
	headers.Set("X-RateLimit-Limit", "5000")
	headers.Set("X-RateLimit-Remaining", "4999")
	headers.Set("X-RateLimit-Reset", "1700000045")
	if err := policy.AfterCall(context.Background(), "Plaid", http.StatusOK, headers); err != nil {
		t.Fatalf("after call: %v", err)
	}

	state, err := store.Get(context.Background(), core.ProviderPlaid)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Limit != 5000 || state.Remaining != 4999 {
		t.Fatalf("unexpected limit/remaining: %d/%d", state.Limit, state.Remaining)
	}
	resetAt := now.Add(45 * time.Second)
	if state.ResetAt == nil || !state.ResetAt.Equal(resetAt) {
		t.Fatalf("expected reset at %s, got %+v", resetAt, state.ResetAt)
	}
	if state.ThrottledUntil != nil {
		t.Fatalf("expected no throttle window")
	}
	if err := policy.BeforeCall(context.Background(), core.ProviderPlaid); err != nil {
		t.Fatalf("expected call to be allowed: %v", err)
	}
}

func TestAdaptivePolicy_BlocksWhenThrottleWindowIsActive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := fixedPolicy(now)

	until := now.Add(20 * time.Second)
	if err := store.Upsert(context.Background(), State{Provider: core.ProviderTeller, ThrottledUntil: &until}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	err := policy.BeforeCall(context.Background(), core.ProviderTeller)
	if err == nil {
		t.Fatalf("expected throttle error")
	}
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 provider error, got %v", err)
	}
	if !core.IsRetryable(err) {
		t.Fatalf("expected throttle error to be retryable")
	}
	if !strings.Contains(err.Error(), "retry in 20s") {
		t.Fatalf("expected wait hint in error, got %q", err.Error())
	}

	policy.Now = func() time.Time { return until.Add(time.Second) }
	if err := policy.BeforeCall(context.Background(), core.ProviderTeller); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestAdaptivePolicy_AfterCall429UsesRetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := fixedPolicy(now)

	headers := http.Header{}
	headers.Set("Retry-After", "30")
	if err := policy.AfterCall(context.Background(), core.ProviderWise, http.StatusTooManyRequests, headers); err != nil {
		t.Fatalf("after call: %v", err)
	}

	state, err := store.Get(context.Background(), core.ProviderWise)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Attempts != 1 {
		t.Fatalf("expected attempts 1, got %d", state.Attempts)
	}
	if state.ThrottledUntil == nil || !state.ThrottledUntil.Equal(now.Add(30*time.Second)) {
		t.Fatalf("expected throttle until +30s, got %+v", state.ThrottledUntil)
	}
}

func TestAdaptivePolicy_AfterCall429WithoutHintBacksOffExponentially(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := fixedPolicy(now)
	policy.InitialBackoff = 2 * time.Second
	policy.MaxBackoff = 5 * time.Second

	expected := []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, want := range expected {
		if err := policy.AfterCall(context.Background(), core.ProviderGoCardless, http.StatusTooManyRequests, http.Header{}); err != nil {
			t.Fatalf("after call %d: %v", i, err)
		}
		state, err := store.Get(context.Background(), core.ProviderGoCardless)
		if err != nil {
			t.Fatalf("get state: %v", err)
		}
		if got := state.ThrottledUntil.Sub(now); got != want {
			t.Fatalf("attempt %d: expected %s backoff, got %s", i+1, want, got)
		}
	}

	if err := policy.AfterCall(context.Background(), core.ProviderGoCardless, http.StatusOK, http.Header{}); err != nil {
		t.Fatalf("after success: %v", err)
	}
	state, _ := store.Get(context.Background(), core.ProviderGoCardless)
	if state.Attempts != 0 || state.ThrottledUntil != nil {
		t.Fatalf("expected success to clear throttle state, got %+v", state)
	}
}

func TestAdaptivePolicy_ExhaustedQuotaBlocksUntilReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, _ := fixedPolicy(now)

	headers := http.Header{}
	headers.Set("X-RateLimit-Remaining", "0")
	headers.Set("X-RateLimit-Reset", "1700000010")
	if err := policy.AfterCall(context.Background(), core.ProviderTrueLayer, http.StatusOK, headers); err != nil {
		t.Fatalf("after call: %v", err)
	}
	err := policy.BeforeCall(context.Background(), core.ProviderTrueLayer)
	if err == nil {
		t.Fatalf("expected exhausted quota to block")
	}
	if !strings.Contains(err.Error(), "retry in 10s") {
		t.Fatalf("expected pause until reset, got %q", err.Error())
	}
}

func TestAdaptivePolicy_ServerErrorsDoNotThrottle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := fixedPolicy(now)

	headers := http.Header{}
	headers.Set("X-RateLimit-Remaining", "0")
	if err := policy.AfterCall(context.Background(), core.ProviderPlaid, http.StatusServiceUnavailable, headers); err != nil {
		t.Fatalf("after call: %v", err)
	}
	state, _ := store.Get(context.Background(), core.ProviderPlaid)
	if state.ThrottledUntil != nil {
		t.Fatalf("expected 5xx not to open a throttle window")
	}
}
