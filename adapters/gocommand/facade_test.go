package gocommand

import (
	"context"
	"testing"

	banking "github.com/goliatone/go-banking"
	bankingcommand "github.com/goliatone/go-banking/command"
	"github.com/goliatone/go-banking/core"
	bankingquery "github.com/goliatone/go-banking/query"
	bankingsync "github.com/goliatone/go-banking/sync"
	goerrors "github.com/goliatone/go-errors"
)

func TestRegisterFacade_DispatchesBankingMessages(t *testing.T) {
	service := &stubBankingService{}
	facade, err := banking.NewFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	bus := NewBus(nil)
	t.Cleanup(bus.Close)
	if err := RegisterFacade(bus, facade); err != nil {
		t.Fatalf("register facade: %v", err)
	}
	if bus.Subscriptions() != 12 {
		t.Fatalf("expected 12 subscriptions, got %d", bus.Subscriptions())
	}

	ctx := context.Background()
	token, err := DispatchWithResult[bankingcommand.ExchangeTokenMessage, core.TokenResponse](ctx, bankingcommand.ExchangeTokenMessage{
		Request: core.ExchangeTokenRequest{Provider: core.ProviderPlaid, Code: "public-sandbox"},
	})
	if err != nil {
		t.Fatalf("dispatch exchange: %v", err)
	}
	if token.AccessToken != "access-sandbox" || service.exchanged != "public-sandbox" {
		t.Fatalf("unexpected exchange: token=%#v code=%q", token, service.exchanged)
	}

	accounts, err := Query[bankingquery.ListAccountsMessage, []core.Account](ctx, bankingquery.ListAccountsMessage{
		Request: core.AccessRequest{Provider: core.ProviderPlaid, AccessToken: "access-sandbox"},
	})
	if err != nil {
		t.Fatalf("query accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != "plaid_acc_1" {
		t.Fatalf("unexpected accounts: %#v", accounts)
	}

	job, err := Query[bankingquery.GetSyncJobMessage, bankingsync.Job](ctx, bankingquery.GetSyncJobMessage{JobID: "job_1"})
	if err != nil {
		t.Fatalf("query sync job: %v", err)
	}
	if job.Status != bankingsync.JobStatusSucceeded {
		t.Fatalf("unexpected job: %#v", job)
	}
}

func TestRegisterFacade_RejectsInvalidInput(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(bus.Close)
	if err := RegisterFacade(bus, nil); err == nil {
		t.Fatalf("expected nil facade error")
	}

	facade, err := banking.NewFacade(&stubBankingService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if err := RegisterFacade(bus, facade); err != nil {
		t.Fatalf("register facade: %v", err)
	}
	_, err = DispatchWithResult[bankingcommand.ExchangeTokenMessage, core.TokenResponse](context.Background(), bankingcommand.ExchangeTokenMessage{
		Request: core.ExchangeTokenRequest{Provider: core.ProviderPlaid},
	})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type stubBankingService struct {
	exchanged string
}

func (s *stubBankingService) ExchangeToken(_ context.Context, req core.ExchangeTokenRequest) (core.TokenResponse, error) {
	s.exchanged = req.Code
	return core.TokenResponse{AccessToken: "access-sandbox"}, nil
}

func (s *stubBankingService) RefreshToken(context.Context, core.RefreshTokenRequest) (core.TokenResponse, error) {
	return core.TokenResponse{AccessToken: "access-refreshed"}, nil
}

func (s *stubBankingService) DeleteConnection(context.Context, core.AccessRequest) error {
	return nil
}

func (s *stubBankingService) SyncConnection(_ context.Context, req bankingsync.Request) (bankingsync.Job, error) {
	return bankingsync.Job{ID: "job_1", ConnectionID: req.ConnectionID, Status: bankingsync.JobStatusSucceeded}, nil
}

func (s *stubBankingService) ResumeSyncJob(_ context.Context, jobID string) (bankingsync.Job, error) {
	return bankingsync.Job{ID: jobID, Status: bankingsync.JobStatusSucceeded}, nil
}

func (s *stubBankingService) GetSyncJob(_ context.Context, jobID string) (bankingsync.Job, error) {
	return bankingsync.Job{ID: jobID, Status: bankingsync.JobStatusSucceeded}, nil
}

func (s *stubBankingService) GetAccounts(context.Context, core.AccessRequest) ([]core.Account, error) {
	return []core.Account{{ID: "plaid_acc_1", Provider: core.ProviderPlaid}}, nil
}

func (s *stubBankingService) GetAccountBalance(context.Context, core.BalanceRequest) (core.Balance, error) {
	return core.Balance{Currency: "USD"}, nil
}

func (s *stubBankingService) GetTransactions(context.Context, core.TransactionsRequest) ([]core.Transaction, error) {
	return nil, nil
}

func (s *stubBankingService) GetInstitutions(context.Context, core.InstitutionsRequest) ([]core.Institution, error) {
	return nil, nil
}

func (s *stubBankingService) GetConnectionStatus(context.Context, core.AccessRequest) (core.ConnectionStatus, error) {
	return core.ConnectionConnected, nil
}

func (s *stubBankingService) Providers() []core.ProviderName {
	return []core.ProviderName{core.ProviderPlaid}
}

func (s *stubBankingService) HealthCheck(context.Context, core.ProviderName) error {
	return nil
}
