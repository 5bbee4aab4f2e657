package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-banking/core"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State is the last throttling picture a provider reported.
type State struct {
	Provider       core.ProviderName
	Limit          int
	Remaining      int
	ResetAt        *time.Time
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
}

type StateStore interface {
	Get(ctx context.Context, provider core.ProviderName) (State, error)
	Upsert(ctx context.Context, state State) error
}

// AdaptivePolicy short-circuits calls to a provider that told us to back
// off. The pause follows Retry-After, then X-RateLimit-Reset; without
// either it grows exponentially up to MaxBackoff. Any non-throttled
// response clears it.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	if store == nil {
		store = NewMemoryStateStore()
	}
	return &AdaptivePolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

// BeforeCall returns a 429 provider error while the provider is paused.
func (p *AdaptivePolicy) BeforeCall(ctx context.Context, provider core.ProviderName) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, err := p.Store.Get(ctx, normalizeProvider(provider))
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return throttledError(provider, until.Sub(now))
	}
	if state.Remaining == 0 && state.ResetAt != nil && now.Before(*state.ResetAt) {
		return throttledError(provider, state.ResetAt.Sub(now))
	}
	return nil
}

func (p *AdaptivePolicy) AfterCall(ctx context.Context, provider core.ProviderName, status int, headers http.Header) error {
	if p == nil || p.Store == nil {
		return nil
	}
	provider = normalizeProvider(provider)
	now := p.now()
	state, err := p.Store.Get(ctx, provider)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) {
		state = State{Provider: provider}
	}

	state.LastStatus = status
	state.UpdatedAt = now

	limit, hasLimit := parseHeaderInt(headers, "X-RateLimit-Limit")
	if hasLimit {
		state.Limit = limit
	}
	remaining, hasRemaining := parseHeaderInt(headers, "X-RateLimit-Remaining")
	if hasRemaining {
		state.Remaining = remaining
	}
	resetAt, hasResetAt := parseHeaderResetAt(headers)
	if hasResetAt {
		state.ResetAt = &resetAt
	}

	retryAfter, hasRetryAfter := parseRetryAfter(headers, now)
	if hasRetryAfter {
		state.RetryAfter = &retryAfter
	} else {
		state.RetryAfter = nil
	}

	signalled := hasRemaining || hasResetAt || hasLimit || hasRetryAfter
	if isThrottledResponse(status, state.Remaining, signalled) {
		state.Attempts++
		var delay time.Duration
		switch {
		case hasRetryAfter:
			delay = retryAfter
		case hasResetAt && resetAt.After(now):
			delay = resetAt.Sub(now)
		default:
			delay = p.nextBackoff(state.Attempts)
		}
		until := now.Add(delay)
		state.ThrottledUntil = &until
		return p.Store.Upsert(ctx, state)
	}

	state.Attempts = 0
	state.ThrottledUntil = nil
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	return min(delay, maximum)
}

func throttledError(provider core.ProviderName, wait time.Duration) error {
	seconds := int(wait.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return core.ProviderError(provider, http.StatusTooManyRequests,
		fmt.Sprintf("rate limited, retry in %ds", seconds))
}

func isThrottledResponse(status int, remaining int, signalled bool) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= http.StatusInternalServerError {
		return false
	}
	return signalled && remaining == 0
}

func parseRetryAfter(headers http.Header, now time.Time) (time.Duration, bool) {
	raw := strings.TrimSpace(headers.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := http.ParseTime(raw); err == nil && retryAt.After(now) {
		return retryAt.Sub(now), true
	}
	return 0, false
}

func parseHeaderInt(headers http.Header, key string) (int, bool) {
	value := strings.TrimSpace(headers.Get(key))
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func parseHeaderResetAt(headers http.Header) (time.Time, bool) {
	unix, ok := parseHeaderInt(headers, "X-RateLimit-Reset")
	if !ok || unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(unix), 0).UTC(), true
}

func normalizeProvider(provider core.ProviderName) core.ProviderName {
	return core.ProviderName(strings.ToLower(strings.TrimSpace(string(provider))))
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[core.ProviderName]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[core.ProviderName]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, provider core.ProviderName) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[normalizeProvider(provider)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Provider = normalizeProvider(state.Provider)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.Provider] = state
	return nil
}

var _ core.RateLimiter = (*AdaptivePolicy)(nil)
