package devkit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-banking/core"
)

func TestFakeDoer_RoutesAndCapturesRequests(t *testing.T) {
	doer := NewFakeDoer(Raw(http.StatusTeapot, "")).
		Route(http.MethodGet, "/accounts",
			Raw(http.StatusTooManyRequests, ""),
			JSON(http.StatusOK, map[string]string{"ok": "yes"}),
		)

	first, err := doer.Do(mustRequest(t, http.MethodGet, "https://api.example.test/accounts", ""))
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", first.StatusCode)
	}
	second, _ := doer.Do(mustRequest(t, http.MethodGet, "https://api.example.test/accounts", ""))
	body, _ := io.ReadAll(second.Body)
	if second.StatusCode != http.StatusOK || !strings.Contains(string(body), "yes") {
		t.Fatalf("unexpected second reply %d %s", second.StatusCode, body)
	}
	third, _ := doer.Do(mustRequest(t, http.MethodGet, "https://api.example.test/accounts", ""))
	if third.StatusCode != http.StatusOK {
		t.Fatalf("expected last script to repeat, got %d", third.StatusCode)
	}
	fallback, _ := doer.Do(mustRequest(t, http.MethodPost, "https://api.example.test/other", `{"a":1}`))
	if fallback.StatusCode != http.StatusTeapot {
		t.Fatalf("expected default script, got %d", fallback.StatusCode)
	}

	if len(doer.Requests()) != 4 {
		t.Fatalf("expected four captured requests, got %d", len(doer.Requests()))
	}
	other := doer.RequestsTo("/other")
	if len(other) != 1 || string(other[0].Body) != `{"a":1}` {
		t.Fatalf("expected captured body, got %+v", other)
	}
}

func TestFakeDoer_ScriptedTransportFailure(t *testing.T) {
	doer := NewFakeDoer(Fail(errors.New("connection reset")))
	if _, err := doer.Do(mustRequest(t, http.MethodGet, "https://api.example.test/", "")); err == nil {
		t.Fatalf("expected scripted failure")
	}
}

func TestValidators_RejectUnprefixedIDs(t *testing.T) {
	if err := ValidateAccounts(core.ProviderPlaid, []core.Account{{ID: "acc", Provider: core.ProviderPlaid, Currency: "USD"}}); err == nil {
		t.Fatalf("expected missing prefix to fail")
	}
	empty := ""
	if err := ValidateTransactions(core.ProviderTeller, []core.Transaction{{
		ID: "tel_1", AccountID: "tel_a", Category: &empty, Date: time.Now(),
	}}); err == nil {
		t.Fatalf("expected empty category to fail")
	}
	if err := ValidateInstitutions(core.ProviderWise, []core.Institution{{ID: "wi_wise", Provider: core.ProviderWise}}); err != nil {
		t.Fatalf("validate institutions: %v", err)
	}
}

func TestValidateProviderConformance_RequiresProvider(t *testing.T) {
	if err := ValidateProviderConformance(context.Background(), nil, "tok", nil); err == nil {
		t.Fatalf("expected nil provider to fail")
	}
}

func mustRequest(t *testing.T, method string, target string, body string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}
