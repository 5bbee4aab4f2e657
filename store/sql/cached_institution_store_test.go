package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-banking/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubInstitutionCatalog struct {
	mu          sync.Mutex
	items       map[string]core.Institution
	getCalls    int
	listCalls   int
	upsertCalls int
	getErr      error
	upsertErr   error
}

func newStubInstitutionCatalog(items ...core.Institution) *stubInstitutionCatalog {
	catalog := &stubInstitutionCatalog{items: map[string]core.Institution{}}
	for _, item := range items {
		catalog.items[item.ID] = cloneInstitution(item)
	}
	return catalog
}

func (s *stubInstitutionCatalog) GetInstitution(_ context.Context, id string) (core.Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.Institution{}, s.getErr
	}
	item, ok := s.items[id]
	if !ok {
		return core.Institution{}, ErrNotFound
	}
	return cloneInstitution(item), nil
}

func (s *stubInstitutionCatalog) ListInstitutions(_ context.Context, provider core.ProviderName, country string) ([]core.Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := make([]core.Institution, 0, len(s.items))
	for _, item := range s.items {
		if provider != "" && item.Provider != provider {
			continue
		}
		if country != "" && item.Country != country {
			continue
		}
		out = append(out, cloneInstitution(item))
	}
	return out, nil
}

func (s *stubInstitutionCatalog) UpsertInstitutions(_ context.Context, institutions []core.Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for _, item := range institutions {
		s.items[item.ID] = cloneInstitution(item)
	}
	return nil
}

func TestCachedInstitutionStore_Get_MissFetchThenHit(t *testing.T) {
	base := newStubInstitutionCatalog(core.Institution{
		ID:       "gc_REVOLUT",
		Name:     "Revolut",
		Country:  "GB",
		Provider: core.ProviderGoCardless,
		Products: []string{"accounts"},
	})
	store, err := NewCachedInstitutionStore(base, newTestInstitutionCacheService(t))
	if err != nil {
		t.Fatalf("new cached institution store: %v", err)
	}

	first, err := store.GetInstitution(context.Background(), "gc_REVOLUT")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected first get to fetch base once, got %d", base.getCalls)
	}
	first.Products[0] = "mutated"

	second, err := store.GetInstitution(context.Background(), "gc_REVOLUT")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}
	if second.Products[0] != "accounts" {
		t.Fatalf("expected cached value to be isolated from caller mutation, got %v", second.Products)
	}
}

func TestCachedInstitutionStore_UpsertInvalidatesReadKeys(t *testing.T) {
	base := newStubInstitutionCatalog(core.Institution{ID: "tel_chase", Name: "Chase", Country: "US", Provider: core.ProviderTeller})
	store, err := NewCachedInstitutionStore(base, newTestInstitutionCacheService(t))
	if err != nil {
		t.Fatalf("new cached institution store: %v", err)
	}
	ctx := context.Background()

	if _, err := store.GetInstitution(ctx, "tel_chase"); err != nil {
		t.Fatalf("prime get: %v", err)
	}
	listed, err := store.ListInstitutions(ctx, core.ProviderTeller, "US")
	if err != nil {
		t.Fatalf("prime list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one listed institution, got %d", len(listed))
	}

	if err := store.UpsertInstitutions(ctx, []core.Institution{
		{ID: "tel_chase", Name: "JPMorgan Chase", Country: "US", Provider: core.ProviderTeller},
		{ID: "tel_citi", Name: "Citi", Country: "US", Provider: core.ProviderTeller},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	updated, err := store.GetInstitution(ctx, "tel_chase")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if updated.Name != "JPMorgan Chase" || base.getCalls != 2 {
		t.Fatalf("expected refetch after upsert, got name=%q calls=%d", updated.Name, base.getCalls)
	}
	listed, err = store.ListInstitutions(ctx, core.ProviderTeller, "US")
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(listed) != 2 || base.listCalls != 2 {
		t.Fatalf("expected list refetch with 2 items, got %d items calls=%d", len(listed), base.listCalls)
	}
}

func TestCachedInstitutionStore_ErrorsAreNotCached(t *testing.T) {
	base := newStubInstitutionCatalog()
	base.getErr = errors.New("database unavailable")
	store, err := NewCachedInstitutionStore(base, newTestInstitutionCacheService(t))
	if err != nil {
		t.Fatalf("new cached institution store: %v", err)
	}

	if _, err := store.GetInstitution(context.Background(), "gc_X"); err == nil {
		t.Fatalf("expected get error")
	}
	base.getErr = nil
	if _, err := store.GetInstitution(context.Background(), "gc_X"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found from base on retry, got %v", err)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected both calls to reach base, got %d", base.getCalls)
	}

	base.upsertErr = errors.New("write failed")
	if err := store.UpsertInstitutions(context.Background(), []core.Institution{{ID: "gc_X"}}); err == nil {
		t.Fatalf("expected upsert error")
	}
}

func TestInstitutionCacheKeys(t *testing.T) {
	key, err := InstitutionCacheKey(" gc_REVOLUT/GB ")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "go-banking::institution::v1::gc_REVOLUT%2FGB" {
		t.Fatalf("unexpected institution key %q", key)
	}
	if _, err := InstitutionCacheKey(" "); err == nil {
		t.Fatalf("expected blank id error")
	}
	if got := InstitutionListCacheKey(core.ProviderPlaid, "gb"); got != "go-banking::institutions::v1::plaid::GB" {
		t.Fatalf("unexpected list key %q", got)
	}
	if got := InstitutionListCacheKey("", ""); got != "go-banking::institutions::v1::*::*" {
		t.Fatalf("unexpected wildcard list key %q", got)
	}
}

func TestNewCachedInstitutionStore_RequiresDependencies(t *testing.T) {
	if _, err := NewCachedInstitutionStore(nil, newTestInstitutionCacheService(t)); err == nil {
		t.Fatalf("expected missing base error")
	}
	if _, err := NewCachedInstitutionStore(newStubInstitutionCatalog(), nil); err == nil {
		t.Fatalf("expected missing cache error")
	}
}

func newTestInstitutionCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
