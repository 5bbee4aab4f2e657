package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/transport"
)

// TokenGrant runs the OAuth2 authorization_code and refresh_token grants
// against a form-encoded token endpoint.
type TokenGrant struct {
	Client       *transport.Client
	AuthBaseURL  string
	TokenPath    string
	ClientID     string
	ClientSecret string
	// SecretInBody sends client credentials as form fields instead of
	// HTTP Basic.
	SecretInBody bool
	Now          func() time.Time
}

type tokenPayload struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func (g *TokenGrant) Exchange(ctx context.Context, code string, redirectURI string) (core.TokenResponse, error) {
	if err := RequireCode(g.Client.Provider, code); err != nil {
		return core.TokenResponse{}, err
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(code))
	if strings.TrimSpace(redirectURI) != "" {
		form.Set("redirect_uri", strings.TrimSpace(redirectURI))
	}
	return g.fetch(ctx, form)
}

func (g *TokenGrant) Refresh(ctx context.Context, refreshToken string) (core.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return core.TokenResponse{}, core.ValidationError(g.Client.Provider, "refresh token is required")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", strings.TrimSpace(refreshToken))
	return g.fetch(ctx, form)
}

func (g *TokenGrant) fetch(ctx context.Context, form url.Values) (core.TokenResponse, error) {
	var auth transport.Auth = transport.BasicAuth{Username: g.ClientID, Password: g.ClientSecret}
	if g.SecretInBody {
		form.Set("client_id", g.ClientID)
		form.Set("client_secret", g.ClientSecret)
		auth = transport.NoAuth{}
	}

	res, err := g.Client.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		BaseURL: g.AuthBaseURL,
		Path:    g.TokenPath,
		Form:    form,
		Auth:    auth,
	})
	if err != nil {
		return core.TokenResponse{}, err
	}

	payload, err := parseTokenPayload(res.Body, res.Headers.Get("Content-Type"))
	if err != nil {
		return core.TokenResponse{}, core.DecodeError(g.Client.Provider, err, "token response")
	}
	if payload.ErrorCode != "" {
		message := payload.ErrorCode
		if payload.ErrorDescription != "" {
			message += ": " + payload.ErrorDescription
		}
		return core.TokenResponse{}, core.ProviderError(g.Client.Provider, http.StatusBadRequest, g.Client.Redactor.Redact(message))
	}
	if payload.AccessToken == "" {
		return core.TokenResponse{}, core.DecodeError(g.Client.Provider, nil, "token response without access_token")
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return core.NewTokenResponse(now(), payload.AccessToken, payload.RefreshToken, payload.ExpiresIn), nil
}

func parseTokenPayload(body []byte, contentType string) (tokenPayload, error) {
	contentType = strings.ToLower(contentType)
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	} else if strings.Contains(contentType, "json") {
		return tokenPayload{}, err
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenPayload, error) {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenPayload{}, err
	}
	return tokenPayload{
		AccessToken:      readString(decoded["access_token"]),
		RefreshToken:     readString(decoded["refresh_token"]),
		TokenType:        readString(decoded["token_type"]),
		ExpiresIn:        readInt64(decoded["expires_in"]),
		ErrorCode:        readString(decoded["error"]),
		ErrorDescription: readString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenPayload, error) {
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return tokenPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case nil:
		return ""
	default:
		return ""
	}
}

func readInt64(value any) int64 {
	switch typed := value.(type) {
	case float64:
		return int64(typed)
	case string:
		parsed, _ := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return parsed
	default:
		return 0
	}
}
