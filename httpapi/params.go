package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	bankingsync "github.com/goliatone/go-banking/sync"
	"github.com/gorilla/mux"
)

func pathProvider(r *http.Request) core.ProviderName {
	return core.ParseProviderName(mux.Vars(r)["provider"])
}

// accessRequest reads the provider access token from X-Access-Token. Tokens
// are never accepted in the query string.
func accessRequest(r *http.Request) core.AccessRequest {
	return core.AccessRequest{
		Provider:    pathProvider(r),
		AccessToken: strings.TrimSpace(r.Header.Get(HeaderAccessToken)),
	}
}

func pageRequest(r *http.Request) (core.PageRequest, error) {
	query := r.URL.Query()
	page, err := optionalInt(query.Get("page"), "page")
	if err != nil {
		return core.PageRequest{}, err
	}
	limit, err := optionalInt(query.Get("limit"), "limit")
	if err != nil {
		return core.PageRequest{}, err
	}
	req := core.PageRequest{Page: page, Limit: limit}.WithDefaults()
	if err := req.Validate(); err != nil {
		return core.PageRequest{}, err
	}
	return req, nil
}

// paginate slices an in-memory result set into the requested page.
func paginate[T any](items []T, req core.PageRequest) core.Page[T] {
	total := len(items)
	start := min(req.Offset(), total)
	end := min(start+req.Limit, total)
	return core.NewPage(items[start:end], req, total)
}

func optionalInt(raw string, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.ValidationError("", "%s must be an integer", field)
	}
	return value, nil
}

func optionalFloat(raw string, field string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, core.ValidationError("", "%s must be a number", field)
	}
	return &value, nil
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (UTC).
func parseDate(raw string, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		ts = ts.UTC()
		return &ts, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, core.ValidationError("", "%s must be RFC 3339 or YYYY-MM-DD", field)
	}
	return &day, nil
}

func dateRange(from string, to string) (core.DateRange, error) {
	start, err := parseDate(from, "from_date")
	if err != nil {
		return core.DateRange{}, err
	}
	end, err := parseDate(to, "to_date")
	if err != nil {
		return core.DateRange{}, err
	}
	if start != nil && end != nil && start.After(*end) {
		return core.DateRange{}, core.ValidationError("", "from_date must not be after to_date")
	}
	return core.DateRange{From: start, To: end}, nil
}

type syncJobResponse struct {
	ID           string                `json:"id"`
	ConnectionID string                `json:"connection_id"`
	Provider     core.ProviderName     `json:"provider,omitempty"`
	Mode         bankingsync.JobMode   `json:"mode"`
	Status       bankingsync.JobStatus `json:"status"`
	Attempts     int                   `json:"attempts"`
	Accounts     int                   `json:"accounts"`
	Transactions int                   `json:"transactions"`
	Error        string                `json:"error,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	FinishedAt   *time.Time            `json:"finished_at,omitempty"`
}

func newSyncJobResponse(job bankingsync.Job) syncJobResponse {
	return syncJobResponse{
		ID:           job.ID,
		ConnectionID: job.ConnectionID,
		Provider:     job.Provider,
		Mode:         job.Mode,
		Status:       job.Status,
		Attempts:     job.Attempts,
		Accounts:     job.Accounts,
		Transactions: job.Transactions,
		Error:        core.RedactSecrets(job.Error),
		CreatedAt:    job.CreatedAt,
		FinishedAt:   job.FinishedAt,
	}
}
