package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestProviderError_NotFoundFlag(t *testing.T) {
	err := ProviderError(ProviderGoCardless, http.StatusNotFound, "")
	if !err.NotFound || !IsNotFound(err) {
		t.Fatalf("expected not found flag for 404")
	}
	if err.Message != "Not Found" {
		t.Fatalf("expected status text fallback, got %q", err.Message)
	}
	if IsNotFound(ProviderError(ProviderGoCardless, http.StatusBadRequest, "bad")) {
		t.Fatalf("expected 400 not to be not-found")
	}
}

func TestKindOf_WrappedCoreError(t *testing.T) {
	err := fmt.Errorf("outer: %w", DecodeError(ProviderTeller, errors.New("eof"), "balances"))
	kind, ok := KindOf(err)
	if !ok || kind != KindDecode {
		t.Fatalf("expected decode kind, got %q ok=%v", kind, ok)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("expected foreign error to have no kind")
	}
}

func TestNewError_AssignsCorrelationID(t *testing.T) {
	first := ValidationError(ProviderPlaid, "account id is required")
	second := ValidationError(ProviderPlaid, "account id is required")
	if first.CorrelationID == "" || first.CorrelationID == second.CorrelationID {
		t.Fatalf("expected unique correlation ids, got %q and %q", first.CorrelationID, second.CorrelationID)
	}
}

func TestNewError_RedactsCredentialShapes(t *testing.T) {
	err := ProviderError(ProviderPlaid, http.StatusBadRequest, `invalid body {"secret":"abc123","client_id":"cid"}`)
	if strings.Contains(err.Error(), "abc123") {
		t.Fatalf("secret leaked into error: %q", err.Error())
	}
}

func TestToServiceError_MapsKinds(t *testing.T) {
	cases := []struct {
		err      error
		category goerrors.Category
		code     int
		textCode string
	}{
		{ConfigurationError("missing"), goerrors.CategoryInternal, http.StatusInternalServerError, ErrorCodeConfiguration},
		{ValidationError("", "bad"), goerrors.CategoryValidation, http.StatusBadRequest, ErrorCodeValidation},
		{TransportError(ProviderPlaid, errors.New("reset")), goerrors.CategoryExternal, http.StatusBadGateway, ErrorCodeTransport},
		{NotFoundError(ProviderPlaid, "account not found"), goerrors.CategoryNotFound, http.StatusNotFound, ErrorCodeNotFound},
		{ProviderError(ProviderPlaid, http.StatusUnauthorized, "expired"), goerrors.CategoryAuth, http.StatusUnauthorized, ErrorCodeProvider},
		{errors.New("boom"), goerrors.CategoryInternal, http.StatusInternalServerError, ErrorCodeInternal},
	}
	for _, tc := range cases {
		mapped := ToServiceError(tc.err)
		if mapped.Category != tc.category || mapped.Code != tc.code || mapped.TextCode != tc.textCode {
			t.Fatalf("%v: unexpected mapping category=%s code=%d text=%s", tc.err, mapped.Category, mapped.Code, mapped.TextCode)
		}
		if mapped.Metadata["correlation_id"] == "" || mapped.Metadata["correlation_id"] == nil {
			t.Fatalf("%v: expected correlation id metadata", tc.err)
		}
	}
}

func TestToServiceError_CarriesProviderMetadata(t *testing.T) {
	mapped := ToServiceError(ProviderError(ProviderTeller, http.StatusServiceUnavailable, "maintenance"))
	if mapped.Metadata["provider"] != "teller" {
		t.Fatalf("expected provider metadata, got %v", mapped.Metadata)
	}
	if mapped.Metadata["provider_status"] != http.StatusServiceUnavailable {
		t.Fatalf("expected provider_status metadata, got %v", mapped.Metadata)
	}
	if mapped.Metadata["kind"] != "provider" {
		t.Fatalf("expected kind metadata, got %v", mapped.Metadata)
	}
}
