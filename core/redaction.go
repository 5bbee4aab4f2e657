package core

import (
	"regexp"
	"strings"
)

const RedactedValue = "[REDACTED]"

// credentialPatterns catch credential material embedded in free text such as
// echoed request bodies, query strings and auth headers.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)("(?:secret|client_secret|secret_key|secret_id|api_key|access_token|refresh_token|password)"\s*:\s*")[^"]*(")`),
	regexp.MustCompile(`(?i)((?:secret|client_secret|secret_key|api_key|access_token|refresh_token|password)=)[^&\s"]+`),
	regexp.MustCompile(`(?i)(\b(?:basic|bearer)\s+)[A-Za-z0-9._~+/=-]+`),
}

// RedactSecrets scrubs well-known credential shapes from a message.
func RedactSecrets(message string) string {
	if message == "" {
		return message
	}
	out := message
	for _, pattern := range credentialPatterns {
		switch pattern.NumSubexp() {
		case 2:
			out = pattern.ReplaceAllString(out, "${1}"+RedactedValue+"${2}")
		default:
			out = pattern.ReplaceAllString(out, "${1}"+RedactedValue)
		}
	}
	return out
}

// Redactor removes a fixed set of secret values from text. Each adapter
// builds one from its own credentials at construction time.
type Redactor struct {
	secrets []string
}

func NewRedactor(secrets ...string) Redactor {
	kept := make([]string, 0, len(secrets))
	for _, secret := range secrets {
		secret = strings.TrimSpace(secret)
		// very short values would shred ordinary words
		if len(secret) < 4 {
			continue
		}
		kept = append(kept, secret)
	}
	return Redactor{secrets: kept}
}

func (r Redactor) Redact(message string) string {
	out := message
	for _, secret := range r.secrets {
		out = strings.ReplaceAll(out, secret, RedactedValue)
	}
	return RedactSecrets(out)
}

// RedactError rebuilds err's message through the redactor when it is a core
// error; other errors are wrapped as transport failures by callers.
func (r Redactor) RedactError(err error) error {
	coreErr, ok := err.(*Error)
	if !ok || coreErr == nil {
		return err
	}
	redacted := *coreErr
	redacted.Message = r.Redact(coreErr.Message)
	return &redacted
}

func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	target := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			target[key] = RedactSensitiveMap(nested)
			continue
		}
		target[key] = value
	}
	return target
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	switch key {
	case "", "provider", "correlation_id", "request_id", "account_id", "connection_id":
		return false
	}
	for _, token := range []string{"password", "secret", "token", "authorization", "api_key", "apikey", "credential"} {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}
