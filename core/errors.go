package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrorKind is the closed set of failure classes surfaced by the core.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindValidation    ErrorKind = "validation"
	KindTransport     ErrorKind = "transport"
	KindProvider      ErrorKind = "provider"
	KindDecode        ErrorKind = "decode"
)

const (
	ErrorCodeConfiguration = "BANKING_CONFIGURATION"
	ErrorCodeValidation    = "BANKING_VALIDATION"
	ErrorCodeTransport     = "BANKING_TRANSPORT"
	ErrorCodeProvider      = "BANKING_PROVIDER"
	ErrorCodeDecode        = "BANKING_DECODE"
	ErrorCodeNotFound      = "BANKING_NOT_FOUND"
	ErrorCodeInternal      = "BANKING_INTERNAL"
)

// Error is the only error type adapters and the registry return.
type Error struct {
	Kind          ErrorKind
	Message       string
	Provider      ProviderName
	StatusCode    int
	NotFound      bool
	CorrelationID string
	cause         error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s error (%s): %s", e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func newError(kind ErrorKind, provider ProviderName, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:          kind,
		Message:       RedactSecrets(fmt.Sprintf(format, args...)),
		Provider:      provider,
		CorrelationID: uuid.NewString(),
		cause:         cause,
	}
}

func ConfigurationError(format string, args ...any) *Error {
	return newError(KindConfiguration, "", nil, format, args...)
}

func ValidationError(provider ProviderName, format string, args ...any) *Error {
	return newError(KindValidation, provider, nil, format, args...)
}

// TransportError reports a failure before any provider response was received.
func TransportError(provider ProviderName, cause error) *Error {
	message := "request failed"
	if cause != nil {
		message = cause.Error()
	}
	return newError(KindTransport, provider, cause, "%s", message)
}

// ProviderError reports a non-success response carrying the provider's message.
func ProviderError(provider ProviderName, status int, message string) *Error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = "unexpected provider response"
	}
	err := newError(KindProvider, provider, nil, "%s", message)
	err.StatusCode = status
	err.NotFound = status == http.StatusNotFound
	return err
}

// NotFoundError is a provider error for a resource the provider does not know.
func NotFoundError(provider ProviderName, format string, args ...any) *Error {
	err := newError(KindProvider, provider, nil, format, args...)
	err.StatusCode = http.StatusNotFound
	err.NotFound = true
	return err
}

func DecodeError(provider ProviderName, cause error, what string) *Error {
	if cause == nil {
		return newError(KindDecode, provider, nil, "decode %s", what)
	}
	return newError(KindDecode, provider, cause, "decode %s: %v", what, cause)
}

// KindOf returns the taxonomy kind of err. Errors produced outside the core
// report ("", false).
func KindOf(err error) (ErrorKind, bool) {
	var coreErr *Error
	if errors.As(err, &coreErr) && coreErr != nil {
		return coreErr.Kind, true
	}
	return "", false
}

func IsKind(err error, kind ErrorKind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}

func IsNotFound(err error) bool {
	var coreErr *Error
	return errors.As(err, &coreErr) && coreErr != nil && coreErr.NotFound
}

// IsRetryable is an opt-in classifier for Retrier.Classifier or
// WithRetryClassifier; the default retries everything. Transport errors,
// provider 5xx/408/429 responses and foreign errors are retried. Validation,
// configuration, decode and other provider 4xx failures are terminal, and
// context cancellation always stops the loop.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if isContextDone(err) {
		return false
	}
	var coreErr *Error
	if !errors.As(err, &coreErr) || coreErr == nil {
		return true
	}
	switch coreErr.Kind {
	case KindTransport:
		return true
	case KindProvider:
		switch {
		case coreErr.StatusCode == 0:
			return true
		case coreErr.StatusCode == http.StatusRequestTimeout,
			coreErr.StatusCode == http.StatusTooManyRequests:
			return true
		case coreErr.StatusCode == http.StatusNotImplemented:
			return false
		case coreErr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// ToServiceError maps any error into the user-visible go-errors envelope. The
// envelope always carries kind, message and correlation id metadata.
func ToServiceError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var coreErr *Error
	if !errors.As(err, &coreErr) || coreErr == nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			return rich
		}
		return goerrors.New(RedactSecrets(err.Error()), goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(ErrorCodeInternal).
			WithMetadata(map[string]any{"correlation_id": uuid.NewString()})
	}

	category, status, textCode := classify(coreErr)
	metadata := map[string]any{
		"kind":           string(coreErr.Kind),
		"correlation_id": coreErr.CorrelationID,
	}
	if coreErr.Provider != "" {
		metadata["provider"] = string(coreErr.Provider)
	}
	if coreErr.StatusCode > 0 {
		metadata["provider_status"] = coreErr.StatusCode
	}
	return goerrors.New(coreErr.Message, category).
		WithCode(status).
		WithTextCode(textCode).
		WithMetadata(metadata)
}

func classify(err *Error) (goerrors.Category, int, string) {
	switch err.Kind {
	case KindConfiguration:
		return goerrors.CategoryInternal, http.StatusInternalServerError, ErrorCodeConfiguration
	case KindValidation:
		return goerrors.CategoryValidation, http.StatusBadRequest, ErrorCodeValidation
	case KindTransport:
		return goerrors.CategoryExternal, http.StatusBadGateway, ErrorCodeTransport
	case KindDecode:
		return goerrors.CategoryExternal, http.StatusBadGateway, ErrorCodeDecode
	case KindProvider:
		switch {
		case err.NotFound:
			return goerrors.CategoryNotFound, http.StatusNotFound, ErrorCodeNotFound
		case err.StatusCode == http.StatusUnauthorized:
			return goerrors.CategoryAuth, http.StatusUnauthorized, ErrorCodeProvider
		case err.StatusCode == http.StatusForbidden:
			return goerrors.CategoryAuthz, http.StatusForbidden, ErrorCodeProvider
		case err.StatusCode == http.StatusTooManyRequests:
			return goerrors.CategoryRateLimit, http.StatusTooManyRequests, ErrorCodeProvider
		default:
			return goerrors.CategoryExternal, http.StatusBadGateway, ErrorCodeProvider
		}
	default:
		return goerrors.CategoryInternal, http.StatusInternalServerError, ErrorCodeInternal
	}
}

func asCoreError(err error, target **Error) bool {
	return errors.As(err, target) && *target != nil
}
