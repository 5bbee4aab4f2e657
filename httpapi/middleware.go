package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the id assigned to the request by the server.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = s.requestID()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"request_id", RequestID(r.Context()),
		}
		switch {
		case rec.status >= http.StatusInternalServerError:
			s.logger.Error("http request failed", fields...)
		case rec.status >= http.StatusBadRequest:
			s.logger.Warn("http request rejected", fields...)
		default:
			s.logger.Debug("http request served", fields...)
		}
	})
}

// apiKeyMiddleware accepts the key as X-API-Key or as a bearer token. A
// server built without a key rejects every protected request.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.logger.Warn("rejecting request: api key is not configured", "path", r.URL.Path)
			s.respondError(w, r, goerrors.New("api key is not configured", goerrors.CategoryAuth).
				WithCode(http.StatusUnauthorized).
				WithTextCode(ErrorCodeUnauthorized))
			return
		}
		presented := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
		if presented == "" {
			if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
				presented = strings.TrimSpace(auth[7:])
			}
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.apiKey)) != 1 {
			s.respondError(w, r, goerrors.New("invalid api key", goerrors.CategoryAuth).
				WithCode(http.StatusUnauthorized).
				WithTextCode(ErrorCodeUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}
