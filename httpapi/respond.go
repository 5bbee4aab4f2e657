package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/goliatone/go-banking/core"
)

const (
	ErrorCodeUnauthorized = "BANKING_UNAUTHORIZED"

	maxBodyBytes = 1 << 20
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	rich := core.ToServiceError(err)
	status := rich.Code
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	message := core.RedactSecrets(rich.Message)
	if status >= http.StatusInternalServerError && rich.TextCode == core.ErrorCodeInternal {
		s.logger.Error("internal error", "error", message, "request_id", RequestID(r.Context()))
		message = http.StatusText(status)
	}
	respondJSON(w, status, ErrorBody{
		Code:      rich.TextCode,
		Message:   message,
		RequestID: RequestID(r.Context()),
	})
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return core.ValidationError("", "request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.ValidationError("", "invalid request payload")
	}
	return nil
}
