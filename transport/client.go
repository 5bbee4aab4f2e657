package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Request describes one provider call relative to the client's BaseURL.
// JSON and Form are mutually exclusive; JSON wins when both are set.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	JSON    any
	Form    url.Values
	Auth    Auth
	// BaseURL overrides the client base for hosts such as a separate auth
	// server.
	BaseURL string
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is the shared outbound executor every adapter uses: it builds the
// request, applies auth, bounds the body read, maps failures into the core
// taxonomy and runs everything under the retrier.
type Client struct {
	Provider         core.ProviderName
	BaseURL          string
	Doer             core.HTTPDoer
	Retrier          *core.Retrier
	Redactor         core.Redactor
	DecodeError      ErrorDecoder
	DefaultHeaders   map[string]string
	MaxResponseBytes int64
	Logger           core.Logger
	RateLimiter      core.RateLimiter
}

type Option func(*Client)

func WithRetrier(retrier *core.Retrier) Option {
	return func(c *Client) { c.Retrier = retrier }
}

func WithRedactor(redactor core.Redactor) Option {
	return func(c *Client) { c.Redactor = redactor }
}

func WithErrorDecoder(decoder ErrorDecoder) Option {
	return func(c *Client) { c.DecodeError = decoder }
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) { c.Logger = logger }
}

func WithRateLimiter(limiter core.RateLimiter) Option {
	return func(c *Client) { c.RateLimiter = limiter }
}

func WithDefaultHeader(name string, value string) Option {
	return func(c *Client) { c.DefaultHeaders[name] = value }
}

func WithMaxResponseBytes(limit int64) Option {
	return func(c *Client) { c.MaxResponseBytes = limit }
}

func NewClient(provider core.ProviderName, baseURL string, doer core.HTTPDoer, options ...Option) *Client {
	if doer == nil {
		doer = core.NewHTTPClient(core.HTTPConfig{})
	}
	client := &Client{
		Provider:         provider,
		BaseURL:          strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Doer:             doer,
		DefaultHeaders:   map[string]string{"Accept": "application/json"},
		MaxResponseBytes: core.DefaultMaxResponseBytes,
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	client.Logger = glog.Ensure(client.Logger)
	if client.Retrier == nil {
		client.Retrier = core.NewRetrier(core.DefaultRetryPolicy(), client.Logger)
	}
	return client
}

// Do executes req under the retrier. Non-2xx responses become provider
// errors carrying the decoded envelope message.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	return core.Do(ctx, c.Retrier, func(ctx context.Context) (Response, error) {
		res, err := c.roundTrip(ctx, req)
		if err != nil {
			return Response{}, err
		}
		if !res.OK() {
			return Response{}, c.providerError(res)
		}
		return res, nil
	})
}

// Ping executes req under the retrier but returns any HTTP response as
// success. Only transport failures are errors.
func (c *Client) Ping(ctx context.Context, req Request) (Response, error) {
	return core.Do(ctx, c.Retrier, func(ctx context.Context) (Response, error) {
		return c.roundTrip(ctx, req)
	})
}

// JSON executes req and decodes a 2xx body into out.
func (c *Client) JSON(ctx context.Context, req Request, out any, what string) error {
	res, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return c.Decode(res, out, what)
}

func (c *Client) Decode(res Response, out any, what string) error {
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(res.Body)) == 0 {
		return core.DecodeError(c.Provider, io.ErrUnexpectedEOF, what)
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return c.Redactor.RedactError(core.DecodeError(c.Provider, err, what))
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	if c == nil || c.Doer == nil {
		return Response{}, core.ConfigurationError("transport: client requires an http doer")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return Response{}, err
	}

	if c.RateLimiter != nil {
		if err := c.RateLimiter.BeforeCall(ctx, c.Provider); err != nil {
			return Response{}, err
		}
	}

	startedAt := time.Now()
	httpRes, err := c.Doer.Do(httpReq)
	if err != nil {
		return Response{}, c.transportError(err)
	}
	defer httpRes.Body.Close()

	if c.RateLimiter != nil {
		if err := c.RateLimiter.AfterCall(ctx, c.Provider, httpRes.StatusCode, httpRes.Header); err != nil {
			c.Logger.Warn("rate limit state update failed",
				"provider", string(c.Provider),
				"error", c.Redactor.Redact(err.Error()),
			)
		}
	}

	limit := c.MaxResponseBytes
	if limit <= 0 {
		limit = core.DefaultMaxResponseBytes
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return Response{}, c.transportError(fmt.Errorf("read response body: %w", err))
	}
	if int64(len(body)) > limit {
		return Response{}, core.DecodeError(c.Provider, nil, fmt.Sprintf("response body exceeding %d bytes", limit))
	}

	c.Logger.Debug("provider request completed",
		"provider", string(c.Provider),
		"method", httpReq.Method,
		"path", httpReq.URL.Path,
		"status", httpRes.StatusCode,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	return Response{StatusCode: httpRes.StatusCode, Headers: httpRes.Header, Body: body}, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	base := c.BaseURL
	if strings.TrimSpace(req.BaseURL) != "" {
		base = strings.TrimRight(strings.TrimSpace(req.BaseURL), "/")
	}
	target, err := url.Parse(base + "/" + strings.TrimLeft(req.Path, "/"))
	if err != nil || target.Host == "" {
		return nil, core.ConfigurationError("transport: invalid %s request url", c.Provider)
	}
	if len(req.Query) > 0 {
		query := target.Query()
		for key, values := range req.Query {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.JSON != nil:
		encoded, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, core.ValidationError(c.Provider, "encode request body: %v", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, core.ValidationError(c.Provider, "create request: %v", c.Redactor.Redact(err.Error()))
	}
	for key, value := range c.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(key, value)
	}
	if req.Auth != nil {
		req.Auth.Apply(httpReq)
	}
	return httpReq, nil
}

func (c *Client) providerError(res Response) error {
	message := ""
	if c.DecodeError != nil {
		message = c.DecodeError(res.StatusCode, res.Body)
	}
	if message == "" {
		message = plainMessage(res.Body)
	}
	return core.ProviderError(c.Provider, res.StatusCode, c.Redactor.Redact(message))
}

func (c *Client) transportError(err error) error {
	return core.TransportError(c.Provider, redactedError{
		message: c.Redactor.Redact(err.Error()),
		cause:   err,
	})
}

// redactedError keeps the original chain for errors.Is while presenting a
// scrubbed message.
type redactedError struct {
	message string
	cause   error
}

func (e redactedError) Error() string { return e.message }

func (e redactedError) Unwrap() error { return e.cause }
