package providers

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
	"github.com/goliatone/go-banking/transport"
)

func RequireAccessToken(provider core.ProviderName, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return core.ValidationError(provider, "access token is required")
	}
	return nil
}

func RequireCode(provider core.ProviderName, code string) error {
	if strings.TrimSpace(code) == "" {
		return core.ValidationError(provider, "authorization code is required")
	}
	return nil
}

// RequireAccountID validates accountID and returns its native form. Both
// canonical (prefixed) and native ids are accepted.
func RequireAccountID(provider core.ProviderName, accountID string) (string, error) {
	native := strings.TrimSpace(core.StripPrefix(provider, strings.TrimSpace(accountID)))
	if native == "" {
		return "", core.ValidationError(provider, "account id is required")
	}
	return native, nil
}

// ConnectionStatusFromError maps the outcome of a token check. Provider
// rejections become a status; transport failures are returned.
func ConnectionStatusFromError(err error) (core.ConnectionStatus, error) {
	if err == nil {
		return core.ConnectionConnected, nil
	}
	var coreErr *core.Error
	if !asCoreError(err, &coreErr) || coreErr.Kind != core.KindProvider {
		return core.ConnectionError, err
	}
	switch coreErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.ConnectionDisconnected, nil
	default:
		return core.ConnectionError, nil
	}
}

// HealthCheck pings path and treats any HTTP response as healthy.
func HealthCheck(ctx context.Context, client *transport.Client, req transport.Request) error {
	_, err := client.Ping(ctx, req)
	return err
}

// CountryFilter validates and upper-cases an institution country filter.
// Blank means no filter.
func CountryFilter(provider core.ProviderName, filter core.InstitutionFilter) (string, error) {
	country := normalize.CountryCode(filter.Country)
	if country == "" {
		return "", nil
	}
	if !normalize.IsSupportedCountry(country) {
		return "", core.ValidationError(provider, "country %q is not supported", country)
	}
	return country, nil
}
