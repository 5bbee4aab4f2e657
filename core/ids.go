package core

import "strings"

const idSeparator = "_"

var providerPrefixes = map[ProviderName]string{
	ProviderGoCardless: "gc",
	ProviderPlaid:      "pl",
	ProviderTeller:     "tel",
	ProviderWise:       "wi",
	ProviderTrueLayer:  "tl",
}

// Prefix returns the fixed id prefix for a provider, or "" when unknown.
func Prefix(provider ProviderName) string {
	return providerPrefixes[provider]
}

// PrefixID rewrites a native id as <prefix>_<native_id>.
func PrefixID(provider ProviderName, nativeID string) string {
	prefix := Prefix(provider)
	if prefix == "" {
		return nativeID
	}
	return prefix + idSeparator + nativeID
}

// StripPrefix is the inverse of PrefixID. Ids that do not carry the provider
// prefix are returned unchanged so callers may pass native ids directly.
func StripPrefix(provider ProviderName, id string) string {
	prefix := Prefix(provider)
	if prefix == "" {
		return id
	}
	native, ok := strings.CutPrefix(id, prefix+idSeparator)
	if !ok {
		return id
	}
	return native
}

// HasPrefix reports whether id was produced by PrefixID for provider.
func HasPrefix(provider ProviderName, id string) bool {
	prefix := Prefix(provider)
	return prefix != "" && strings.HasPrefix(id, prefix+idSeparator)
}

// ProviderForID resolves the provider that issued a canonical id.
func ProviderForID(id string) (ProviderName, bool) {
	for _, provider := range KnownProviders() {
		if HasPrefix(provider, id) {
			return provider, true
		}
	}
	return "", false
}
