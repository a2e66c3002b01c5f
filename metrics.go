package campusauth

import (
	"github.com/campuskit/campusauth/internal/metrics"
)

// MetricID indexes one engine counter or histogram. The concrete registry
// lives in internal/metrics; these aliases keep the public surface in the
// root package.
type MetricID = metrics.MetricID

const (
	MetricSigninRequest        = metrics.MetricSigninRequest
	MetricSigninSuccess        = metrics.MetricSigninSuccess
	MetricSigninFailure        = metrics.MetricSigninFailure
	MetricSigninRateLimited    = metrics.MetricSigninRateLimited
	MetricSignupRequest        = metrics.MetricSignupRequest
	MetricSignupSuccess        = metrics.MetricSignupSuccess
	MetricSignupDuplicate      = metrics.MetricSignupDuplicate
	MetricProfileSetupSuccess  = metrics.MetricProfileSetupSuccess
	MetricOTPIssued            = metrics.MetricOTPIssued
	MetricOTPDeliveryFailure   = metrics.MetricOTPDeliveryFailure
	MetricOTPVerified          = metrics.MetricOTPVerified
	MetricOTPInvalid           = metrics.MetricOTPInvalid
	MetricOTPAttemptsExceeded  = metrics.MetricOTPAttemptsExceeded
	MetricRefreshSuccess       = metrics.MetricRefreshSuccess
	MetricRefreshFailure       = metrics.MetricRefreshFailure
	MetricRefreshReuseDetected = metrics.MetricRefreshReuseDetected
	MetricSessionCreated       = metrics.MetricSessionCreated
	MetricSessionInvalidated   = metrics.MetricSessionInvalidated
	MetricLogout               = metrics.MetricLogout
	MetricLogoutAll            = metrics.MetricLogoutAll
	MetricPasswordResetRequest = metrics.MetricPasswordResetRequest
	MetricPasswordResetSuccess = metrics.MetricPasswordResetSuccess
	MetricSubjectBlacklisted   = metrics.MetricSubjectBlacklisted
	MetricSubjectRestored      = metrics.MetricSubjectRestored
	MetricTokenRevokedHit      = metrics.MetricTokenRevokedHit
	MetricRevocationFailOpen   = metrics.MetricRevocationFailOpen
	MetricValidateLatency      = metrics.MetricValidateLatency
)

// MetricsSnapshot is a consistent point-in-time copy of all counters and
// histograms, suitable for export without pausing the engine.
type MetricsSnapshot = metrics.Snapshot

// MetricsHistogram is one exported latency histogram.
type MetricsHistogram = metrics.HistogramSnapshot

// MetricsHistogramBounds are the histogram bucket upper bounds in
// microseconds; the final bucket is +Inf.
var MetricsHistogramBounds = metrics.HistogramBounds

// Metric returns the current value of one counter.
func (e *Engine) Metric(id MetricID) uint64 {
	return e.metrics.Get(id)
}

// MetricsSnapshot copies every counter and histogram. Exporters in
// metrics/export render this in Prometheus and OpenTelemetry form.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports events shed by the audit dispatcher under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}
