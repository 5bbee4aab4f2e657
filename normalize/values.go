package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-banking/core"
)

const DefaultCurrency = "USD"

// JoinCategory flattens a category hierarchy with "/". Blank segments are
// dropped and an empty result is nil.
func JoinCategory(parts []string) *string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	joined := strings.Join(kept, "/")
	return &joined
}

// IsPending compares against the native "pending" status, case-sensitively.
func IsPending(status string) bool {
	return status == "pending"
}

// Currency upper-cases code, defaulting blanks to fallback.
func Currency(code string, fallback string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fallback
	}
	return code
}

// ParseAmount reads decimal strings such as Teller's "-12.34".
func ParseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("normalize: parse amount %q: %w", raw, err)
	}
	return amount, nil
}

// ParseOptionalAmount is ParseAmount for nullable fields.
func ParseOptionalAmount(raw *string) (*float64, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	amount, err := ParseAmount(*raw)
	if err != nil {
		return nil, err
	}
	return core.Float64Ptr(amount), nil
}
