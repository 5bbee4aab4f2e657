package core

import (
	"strings"
	"time"
)

// SyntheticTokenWindow is the expiry reported for providers whose access
// tokens never expire.
const SyntheticTokenWindow = 2 * time.Hour

// NewTokenResponse stamps expires_at as issuedAt + expiresIn seconds.
func NewTokenResponse(issuedAt time.Time, accessToken string, refreshToken string, expiresIn int64) TokenResponse {
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenResponse{
		AccessToken:  strings.TrimSpace(accessToken),
		RefreshToken: StringPtr(refreshToken),
		ExpiresIn:    expiresIn,
		ExpiresAt:    issuedAt.UTC().Add(time.Duration(expiresIn) * time.Second),
	}
}

// NewSyntheticTokenResponse reissues a non-expiring token with a fixed window.
// The refresh token equals the access token so callers can keep refreshing.
func NewSyntheticTokenResponse(issuedAt time.Time, accessToken string) TokenResponse {
	return NewTokenResponse(issuedAt, accessToken, accessToken, int64(SyntheticTokenWindow/time.Second))
}

// Expired reports whether the token is past expires_at at now.
func (t TokenResponse) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}
