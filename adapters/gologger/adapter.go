package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// DefaultLoggerName is the root logger name; components log under
// "banking.<component>".
const DefaultLoggerName = "banking"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	if strings.TrimSpace(name) == "" {
		name = DefaultLoggerName
	}
	return glog.Resolve(name, provider, logger)
}

// Component returns the logger for one banking component such as "sync" or
// "http". A nil provider yields a nop logger.
func Component(provider glog.LoggerProvider, component string) glog.Logger {
	name := DefaultLoggerName
	if component = strings.Trim(strings.TrimSpace(component), "."); component != "" {
		name += "." + component
	}
	if provider == nil {
		return glog.Nop()
	}
	return glog.Ensure(provider.GetLogger(name))
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the glog pair like Resolve and returns the go-job
// bridges used by the sync worker hooks.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
