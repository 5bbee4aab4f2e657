package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const (
	institutionCacheKeyPrefix     = "go-banking::institution::v1"
	institutionListCacheKeyPrefix = "go-banking::institutions::v1"
)

// CachedInstitutionStore serves institution reads from a cache in front of
// base. Upserts write through and evict the affected keys.
type CachedInstitutionStore struct {
	base  InstitutionCatalog
	cache repositorycache.CacheService
}

func NewCachedInstitutionStore(base InstitutionCatalog, cacheService repositorycache.CacheService) (*CachedInstitutionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base institution store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: institution cache service is required")
	}
	return &CachedInstitutionStore{base: base, cache: cacheService}, nil
}

// InstitutionCacheKey returns go-banking::institution::v1::<id> with the id
// URL-path escaped.
func InstitutionCacheKey(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: institution id is required")
	}
	return institutionCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

// InstitutionListCacheKey returns
// go-banking::institutions::v1::<provider>::<country>. Blank segments stand
// for "all".
func InstitutionListCacheKey(provider core.ProviderName, country string) string {
	segments := []string{
		strings.ToLower(strings.TrimSpace(string(provider))),
		normalize.CountryCode(country),
	}
	for i, segment := range segments {
		if segment == "" {
			segment = "*"
		}
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{institutionListCacheKeyPrefix}, segments...), "::")
}

func (s *CachedInstitutionStore) GetInstitution(ctx context.Context, id string) (core.Institution, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Institution{}, fmt.Errorf("sqlstore: cached institution store is not configured")
	}
	cacheKey, err := InstitutionCacheKey(id)
	if err != nil {
		return core.Institution{}, err
	}
	institution, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Institution, error) {
		return s.base.GetInstitution(ctx, strings.TrimSpace(id))
	})
	if err != nil {
		return core.Institution{}, err
	}
	return cloneInstitution(institution), nil
}

func (s *CachedInstitutionStore) ListInstitutions(ctx context.Context, provider core.ProviderName, country string) ([]core.Institution, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached institution store is not configured")
	}
	cacheKey := InstitutionListCacheKey(provider, country)
	institutions, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.Institution, error) {
		return s.base.ListInstitutions(ctx, provider, country)
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.Institution, 0, len(institutions))
	for _, institution := range institutions {
		out = append(out, cloneInstitution(institution))
	}
	return out, nil
}

func (s *CachedInstitutionStore) UpsertInstitutions(ctx context.Context, institutions []core.Institution) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached institution store is not configured")
	}
	if err := s.base.UpsertInstitutions(ctx, institutions); err != nil {
		return err
	}

	keys := map[string]struct{}{InstitutionListCacheKey("", ""): {}}
	for _, institution := range institutions {
		if key, err := InstitutionCacheKey(institution.ID); err == nil {
			keys[key] = struct{}{}
		}
		keys[InstitutionListCacheKey(institution.Provider, "")] = struct{}{}
		keys[InstitutionListCacheKey(institution.Provider, institution.Country)] = struct{}{}
		keys[InstitutionListCacheKey("", institution.Country)] = struct{}{}
	}
	for key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func cloneInstitution(in core.Institution) core.Institution {
	out := in
	out.LogoURL = cloneStringPointer(in.LogoURL)
	out.PrimaryColor = cloneStringPointer(in.PrimaryColor)
	out.URL = cloneStringPointer(in.URL)
	out.Products = append([]string{}, in.Products...)
	return out
}

var (
	_ InstitutionCatalog = (*InstitutionStore)(nil)
	_ InstitutionCatalog = (*CachedInstitutionStore)(nil)
)
