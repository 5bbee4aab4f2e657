package httpapi

import (
	"context"
	"net/http"
	"slices"
	"strings"

	bankingcommand "github.com/goliatone/go-banking/command"
	"github.com/goliatone/go-banking/core"
	bankingquery "github.com/goliatone/go-banking/query"
	bankingsync "github.com/goliatone/go-banking/sync"
	gocmd "github.com/goliatone/go-command"
	"github.com/gorilla/mux"
)

type healthResponse struct {
	Status    string                      `json:"status"`
	Providers []bankingquery.HealthStatus `json:"providers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.facade.Queries().CheckHealth.Query(r.Context(), bankingquery.CheckHealthMessage{})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp := healthResponse{Status: "ok", Providers: statuses}
	for _, status := range statuses {
		if !status.Healthy {
			resp.Status = "degraded"
			break
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListInstitutions(w http.ResponseWriter, r *http.Request) {
	institutions, err := s.facade.Queries().ListInstitutions.Query(r.Context(), bankingquery.ListInstitutionsMessage{
		Request: core.InstitutionsRequest{
			Provider: pathProvider(r),
			Filter:   core.InstitutionFilter{Country: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("country")))},
		},
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, paginate(institutions, page))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	accounts, err := s.facade.Queries().ListAccounts.Query(r.Context(), bankingquery.ListAccountsMessage{
		Request: accessRequest(r),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	query := r.URL.Query()
	accountType := core.AccountType(strings.ToLower(strings.TrimSpace(query.Get("account_type"))))
	currency := strings.ToUpper(strings.TrimSpace(query.Get("currency")))
	filtered := accounts[:0:0]
	for _, account := range accounts {
		if accountType != "" && account.Type != accountType {
			continue
		}
		if currency != "" && !strings.EqualFold(account.Currency, currency) {
			continue
		}
		filtered = append(filtered, account)
	}
	respondJSON(w, http.StatusOK, paginate(filtered, page))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.facade.Queries().GetBalance.Query(r.Context(), bankingquery.GetBalanceMessage{
		Request: core.BalanceRequest{AccessRequest: accessRequest(r), AccountID: mux.Vars(r)["id"]},
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, balance)
}

// transactionFilter holds the optional post-fetch filters of the
// transactions listing.
type transactionFilter struct {
	minAmount *float64
	maxAmount *float64
	category  string
	merchant  string
}

func (f transactionFilter) match(tx core.Transaction) bool {
	if f.minAmount != nil && tx.Amount < *f.minAmount {
		return false
	}
	if f.maxAmount != nil && tx.Amount > *f.maxAmount {
		return false
	}
	if f.category != "" && (tx.Category == nil || !strings.EqualFold(*tx.Category, f.category)) {
		return false
	}
	if f.merchant != "" && (tx.Merchant == nil || !strings.Contains(strings.ToLower(*tx.Merchant), f.merchant)) {
		return false
	}
	return true
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	query := r.URL.Query()
	window, err := dateRange(query.Get("from_date"), query.Get("to_date"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	filter := transactionFilter{
		category: strings.TrimSpace(query.Get("category")),
		merchant: strings.ToLower(strings.TrimSpace(query.Get("merchant"))),
	}
	if filter.minAmount, err = optionalFloat(query.Get("min_amount"), "min_amount"); err != nil {
		s.respondError(w, r, err)
		return
	}
	if filter.maxAmount, err = optionalFloat(query.Get("max_amount"), "max_amount"); err != nil {
		s.respondError(w, r, err)
		return
	}

	transactions, err := s.facade.Queries().ListTransactions.Query(r.Context(), bankingquery.ListTransactionsMessage{
		Request: core.TransactionsRequest{
			AccessRequest: accessRequest(r),
			AccountID:     mux.Vars(r)["id"],
			Window:        window,
		},
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filtered := transactions[:0:0]
	for _, tx := range transactions {
		if filter.match(tx) {
			filtered = append(filtered, tx)
		}
	}
	slices.SortStableFunc(filtered, func(a, b core.Transaction) int {
		return b.Date.Compare(a.Date)
	})
	respondJSON(w, http.StatusOK, paginate(filtered, page))
}

type connectionStatusResponse struct {
	Provider core.ProviderName     `json:"provider"`
	Status   core.ConnectionStatus `json:"status"`
}

func (s *Server) handleConnectionStatus(w http.ResponseWriter, r *http.Request) {
	req := accessRequest(r)
	status, err := s.facade.Queries().GetConnectionStatus.Query(r.Context(), bankingquery.GetConnectionStatusMessage{Request: req})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, connectionStatusResponse{Provider: req.Provider, Status: status})
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	err := s.facade.Commands().DeleteConnection.Execute(r.Context(), bankingcommand.DeleteConnectionMessage{
		Request: accessRequest(r),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type exchangeBody struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

func (s *Server) handleExchangeToken(w http.ResponseWriter, r *http.Request) {
	var body exchangeBody
	if err := decodeBody(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}
	collector := gocmd.NewResult[core.TokenResponse]()
	ctx := gocmd.ContextWithResult(r.Context(), collector)
	err := s.facade.Commands().ExchangeToken.Execute(ctx, bankingcommand.ExchangeTokenMessage{
		Request: core.ExchangeTokenRequest{
			Provider:    pathProvider(r),
			Code:        body.Code,
			RedirectURI: body.RedirectURI,
		},
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	token, _ := collector.Load()
	respondJSON(w, http.StatusOK, token)
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if err := decodeBody(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}
	collector := gocmd.NewResult[core.TokenResponse]()
	ctx := gocmd.ContextWithResult(r.Context(), collector)
	err := s.facade.Commands().RefreshToken.Execute(ctx, bankingcommand.RefreshTokenMessage{
		Request: core.RefreshTokenRequest{Provider: pathProvider(r), RefreshToken: body.RefreshToken},
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	token, _ := collector.Load()
	respondJSON(w, http.StatusOK, token)
}

type syncBody struct {
	Mode     string `json:"mode"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

func (s *Server) handleSyncConnection(w http.ResponseWriter, r *http.Request) {
	var body syncBody
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	window, err := dateRange(body.FromDate, body.ToDate)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.runSync(w, r, func(ctx context.Context) error {
		return s.facade.Commands().SyncConnection.Execute(ctx, bankingcommand.SyncConnectionMessage{
			Request: bankingsync.Request{
				ConnectionID: mux.Vars(r)["id"],
				Mode:         bankingsync.JobMode(strings.ToLower(strings.TrimSpace(body.Mode))),
				Window:       window,
			},
		})
	})
}

func (s *Server) handleResumeSyncJob(w http.ResponseWriter, r *http.Request) {
	s.runSync(w, r, func(ctx context.Context) error {
		return s.facade.Commands().ResumeSyncJob.Execute(ctx, bankingcommand.ResumeSyncJobMessage{
			JobID: mux.Vars(r)["id"],
		})
	})
}

func (s *Server) handleGetSyncJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.facade.Queries().GetSyncJob.Query(r.Context(), bankingquery.GetSyncJobMessage{JobID: mux.Vars(r)["id"]})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newSyncJobResponse(job))
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request, execute func(ctx context.Context) error) {
	collector := gocmd.NewResult[bankingsync.Job]()
	if err := execute(gocmd.ContextWithResult(r.Context(), collector)); err != nil {
		s.respondError(w, r, err)
		return
	}
	job, _ := collector.Load()
	respondJSON(w, http.StatusOK, newSyncJobResponse(job))
}
