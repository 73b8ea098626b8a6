package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// LoggerName is the root logger name every carrier component resolves under.
const LoggerName = "carriers"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ResolveCarrier resolves under the carriers root name. Session factories use
// it when no explicit logger was supplied so every component logs under a
// common prefix.
func ResolveCarrier(provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return Resolve(LoggerName, provider, logger)
}

// ForCarrier returns a logger named "carriers.<id>" so per-carrier log lines
// stay filterable by name. Carrier IDs are normalized the same way profile
// registration normalizes them; a blank ID falls back to the root name.
func ForCarrier(provider glog.LoggerProvider, fallback glog.Logger, carrierID string) glog.Logger {
	name := LoggerName
	if id := strings.TrimSpace(strings.ToLower(carrierID)); id != "" {
		name = LoggerName + "." + id
	}
	_, logger := Resolve(name, provider, fallback)
	return logger
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

// ResolveForJob resolves glog logger/provider then returns equivalent go-job
// adapters so download runners scheduled through go-job log to the same sink.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
