package normalize

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-banking/core"
)

func TestParseTimestamp_Layouts(t *testing.T) {
	fallback := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"2024-03-05T10:11:12Z":      time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC),
		"2024-03-05T10:11:12+02:00": time.Date(2024, 3, 5, 8, 11, 12, 0, time.UTC),
		"2024-03-05":                time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"2024-03-05 10:11:12":       time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC),
	}
	for raw, want := range cases {
		if got := ParseTimestamp(raw, fallback); !got.Equal(want) {
			t.Fatalf("%q: expected %s, got %s", raw, want, got)
		}
	}
}

func TestParseTimestamp_FallbackOnGarbage(t *testing.T) {
	fallback := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"", "yesterday", "05/03/2024"} {
		if got := ParseTimestamp(raw, fallback); !got.Equal(fallback) {
			t.Fatalf("%q: expected fallback, got %s", raw, got)
		}
	}
}

func TestJoinCategory(t *testing.T) {
	got := JoinCategory([]string{"Food and Drink", "Restaurants"})
	if got == nil || *got != "Food and Drink/Restaurants" {
		t.Fatalf("unexpected join %v", got)
	}
	if JoinCategory(nil) != nil || JoinCategory([]string{"", "  "}) != nil {
		t.Fatalf("expected nil for empty categories")
	}
}

func TestIsPending_CaseSensitive(t *testing.T) {
	if !IsPending("pending") || IsPending("Pending") || IsPending("posted") {
		t.Fatalf("unexpected pending detection")
	}
}

func TestAccountTypeTables_Total(t *testing.T) {
	cases := []struct {
		table  AccountTypeTable
		native string
		want   core.AccountType
	}{
		{GoCardlessAccountTypes, "current", core.AccountTypeChecking},
		{GoCardlessAccountTypes, "credit_card", core.AccountTypeCredit},
		{GoCardlessAccountTypes, "pension", core.AccountTypeOther},
		{PlaidAccountTypes, "investment", core.AccountTypeInvestment},
		{PlaidAccountTypes, "brokerage", core.AccountTypeOther},
		{TellerAccountTypes, "depository", core.AccountTypeChecking},
		{TellerAccountTypes, "loan", core.AccountTypeOther},
		{TrueLayerAccountTypes, "BUSINESS_SAVINGS", core.AccountTypeSavings},
		{TrueLayerAccountTypes, "", core.AccountTypeOther},
	}
	for _, tc := range cases {
		if got := tc.table.Map(tc.native); got != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.native, tc.want, got)
		}
	}
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount(" -12.34 ")
	if err != nil || got != -12.34 {
		t.Fatalf("unexpected amount %v err=%v", got, err)
	}
	if _, err := ParseAmount("twelve"); err == nil {
		t.Fatalf("expected parse error")
	}
	blank := ""
	optional, err := ParseOptionalAmount(&blank)
	if err != nil || optional != nil {
		t.Fatalf("expected nil optional amount, got %v err=%v", optional, err)
	}
}

func TestEnricher_FillsMissingValuesOnly(t *testing.T) {
	enricher := DefaultEnricher()
	tx := enricher.Enrich(core.Transaction{Description: "TRADER JOE'S #123"})
	if tx.Merchant == nil || *tx.Merchant != "Trader Joe's" {
		t.Fatalf("expected merchant, got %v", tx.Merchant)
	}
	if tx.Category == nil || *tx.Category != "groceries" {
		t.Fatalf("expected groceries, got %v", tx.Category)
	}

	existing := "travel"
	kept := enricher.Enrich(core.Transaction{Description: "UBER TRIP", Category: &existing})
	if *kept.Category != "travel" {
		t.Fatalf("expected provider category kept, got %q", *kept.Category)
	}
	if kept.Merchant == nil || *kept.Merchant != "Uber" {
		t.Fatalf("expected Uber merchant, got %v", kept.Merchant)
	}

	unknown := enricher.Enrich(core.Transaction{Description: "ACME HARDWARE"})
	if unknown.Merchant != nil || unknown.Category != nil {
		t.Fatalf("expected no enrichment, got %+v", unknown)
	}
}

func TestEnricher_ConcurrentUse(t *testing.T) {
	enricher := DefaultEnricher()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := enricher.EnrichAll([]core.Transaction{{Description: "NETFLIX.COM"}, {Description: "STARBUCKS 42"}})
			if *out[0].Category != "entertainment" || *out[1].Category != "dining" {
				t.Errorf("unexpected categories %v %v", *out[0].Category, *out[1].Category)
			}
		}()
	}
	wg.Wait()
}

func TestLogoAndCountries(t *testing.T) {
	if logo, ok := LogoURL("chase"); !ok || logo != "https://logo.clearbit.com/chase.com" {
		t.Fatalf("unexpected chase logo %q", logo)
	}
	if _, ok := LogoURL("unknown"); ok {
		t.Fatalf("expected unknown logo miss")
	}
	provided := "https://cdn.example/logo.png"
	if got := LogoFallback(&provided, "chase"); *got != provided {
		t.Fatalf("expected provider logo to win")
	}
	if name, ok := CountryName("gb"); !ok || name != "United Kingdom" {
		t.Fatalf("unexpected country %q", name)
	}
	if IsSupportedCountry("XX") {
		t.Fatalf("expected XX unsupported")
	}
	if countries := Countries(); len(countries) != 10 || !slices.IsSorted(countries) {
		t.Fatalf("unexpected countries %v", countries)
	}
}
