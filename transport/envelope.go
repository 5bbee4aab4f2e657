package transport

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ErrorDecoder extracts the human-readable message from a provider's error
// body. It returns "" when the body does not match the envelope.
type ErrorDecoder func(status int, body []byte) string

// JSONMessage builds an ErrorDecoder that tries each dotted path in order,
// e.g. "error.message" or "errors.0.message". The first non-empty string
// wins.
func JSONMessage(paths ...string) ErrorDecoder {
	return func(_ int, body []byte) string {
		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return ""
		}
		for _, path := range paths {
			if message := lookupString(payload, strings.Split(path, ".")); message != "" {
				return message
			}
		}
		return ""
	}
}

func lookupString(node any, path []string) string {
	for _, segment := range path {
		switch typed := node.(type) {
		case map[string]any:
			node = typed[segment]
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(typed) {
				return ""
			}
			node = typed[index]
		default:
			return ""
		}
	}
	value, _ := node.(string)
	return strings.TrimSpace(value)
}

// plainMessage is used when no decoder matched: short text bodies are kept,
// anything else collapses to the status text.
func plainMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" || len(text) > 256 || strings.HasPrefix(text, "<") || strings.HasPrefix(text, "{") {
		return ""
	}
	return text
}
