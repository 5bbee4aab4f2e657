package normalize

import (
	"regexp"
	"strings"

	"github.com/goliatone/go-banking/core"
)

type merchantPattern struct {
	name    string
	pattern *regexp.Regexp
}

type categoryPattern struct {
	category string
	patterns []*regexp.Regexp
}

// Enricher fills missing merchant and category values from the transaction
// description. Patterns are compiled once; an Enricher is safe for
// concurrent use.
type Enricher struct {
	merchants  []merchantPattern
	categories []categoryPattern
}

var defaultEnricher = newDefaultEnricher()

// DefaultEnricher returns the shared enricher built at init.
func DefaultEnricher() *Enricher {
	return defaultEnricher
}

func newDefaultEnricher() *Enricher {
	return &Enricher{
		merchants: []merchantPattern{
			{"Trader Joe's", regexp.MustCompile(`(?i)TRADER.*JOE`)},
			{"Whole Foods", regexp.MustCompile(`(?i)WHOLE.*FOODS`)},
			{"Uber", regexp.MustCompile(`(?i)\bUBER\b`)},
			{"Lyft", regexp.MustCompile(`(?i)\bLYFT\b`)},
			{"Starbucks", regexp.MustCompile(`(?i)STARBUCKS`)},
			{"Amazon", regexp.MustCompile(`(?i)AMAZON|AMZN`)},
			{"Netflix", regexp.MustCompile(`(?i)NETFLIX`)},
			{"Spotify", regexp.MustCompile(`(?i)SPOTIFY`)},
		},
		// ordered: first match wins
		categories: []categoryPattern{
			{"groceries", compileAll(`(?i)TRADER.*JOE`, `(?i)WHOLE.*FOODS`, `(?i)SAFEWAY`, `(?i)KROGER`, `(?i)ALBERTSONS`)},
			{"transportation", compileAll(`(?i)\bUBER\b`, `(?i)\bLYFT\b`, `(?i)TAXI`, `(?i)TRANSIT`, `(?i)METRO`)},
			{"dining", compileAll(`(?i)RESTAURANT`, `(?i)CAFE`, `(?i)COFFEE`, `(?i)STARBUCKS`, `(?i)MCDONALD`)},
			{"shopping", compileAll(`(?i)AMAZON|AMZN`, `(?i)TARGET`, `(?i)WALMART`)},
			{"entertainment", compileAll(`(?i)NETFLIX`, `(?i)SPOTIFY`, `(?i)CINEMA`, `(?i)HULU`)},
		},
	}
}

func compileAll(expressions ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(expressions))
	for _, expression := range expressions {
		out = append(out, regexp.MustCompile(expression))
	}
	return out
}

// DetectMerchant returns the canonical merchant name matched in description.
func (e *Enricher) DetectMerchant(description string) (string, bool) {
	for _, merchant := range e.merchants {
		if merchant.pattern.MatchString(description) {
			return merchant.name, true
		}
	}
	return "", false
}

func (e *Enricher) DetectCategory(description string) (string, bool) {
	for _, category := range e.categories {
		for _, pattern := range category.patterns {
			if pattern.MatchString(description) {
				return category.category, true
			}
		}
	}
	return "", false
}

// Enrich returns a copy of tx with merchant and category filled when the
// provider left them empty. Provider values are never overwritten.
func (e *Enricher) Enrich(tx core.Transaction) core.Transaction {
	if e == nil {
		return tx
	}
	description := strings.TrimSpace(tx.Description)
	if description == "" {
		return tx
	}
	if tx.Merchant == nil {
		if merchant, ok := e.DetectMerchant(description); ok {
			tx.Merchant = core.StringPtr(merchant)
		}
	}
	if tx.Category == nil {
		if category, ok := e.DetectCategory(description); ok {
			tx.Category = core.StringPtr(category)
		}
	}
	return tx
}

func (e *Enricher) EnrichAll(transactions []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(transactions))
	for idx, tx := range transactions {
		out[idx] = e.Enrich(tx)
	}
	return out
}
