package normalize

import (
	"slices"
	"strings"
)

var institutionLogos = map[string]string{
	"chase":           "https://logo.clearbit.com/chase.com",
	"bank_of_america": "https://logo.clearbit.com/bankofamerica.com",
	"wells_fargo":     "https://logo.clearbit.com/wellsfargo.com",
	"citi":            "https://logo.clearbit.com/citi.com",
	"capital_one":     "https://logo.clearbit.com/capitalone.com",
}

// LogoURL resolves a well-known institution key to a logo. Provider-supplied
// logos take precedence; callers only consult this when none was given.
func LogoURL(institutionKey string) (string, bool) {
	logo, ok := institutionLogos[strings.ToLower(strings.TrimSpace(institutionKey))]
	return logo, ok
}

// LogoFallback keeps current when set and otherwise looks up institutionKey.
func LogoFallback(current *string, institutionKey string) *string {
	if current != nil && strings.TrimSpace(*current) != "" {
		return current
	}
	if logo, ok := LogoURL(institutionKey); ok {
		return &logo
	}
	return nil
}

var supportedCountries = map[string]string{
	"US": "United States",
	"GB": "United Kingdom",
	"CA": "Canada",
	"AU": "Australia",
	"NZ": "New Zealand",
	"IE": "Ireland",
	"FR": "France",
	"DE": "Germany",
	"ES": "Spain",
	"IT": "Italy",
}

func CountryName(code string) (string, bool) {
	name, ok := supportedCountries[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

func IsSupportedCountry(code string) bool {
	_, ok := CountryName(code)
	return ok
}

// Countries lists supported ISO codes in sorted order.
func Countries() []string {
	out := make([]string, 0, len(supportedCountries))
	for code := range supportedCountries {
		out = append(out, code)
	}
	slices.Sort(out)
	return out
}

// CountryCode upper-cases a filter value, returning "" for blank input.
func CountryCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
