package audit

import "github.com/prometheus/client_golang/prometheus"

const (
	kindActivity     = "activity"
	kindLoginAttempt = "login_attempt"
)

// Metrics counts what the audit pipeline wrote, dropped and failed on.
type Metrics struct {
	RecordsWritten    *prometheus.CounterVec
	RecordsDropped    *prometheus.CounterVec
	WriteFailures     *prometheus.CounterVec
	InterceptorErrors prometheus.Counter
	LoginAttempts     *prometheus.CounterVec
}

// NewMetrics creates the audit metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_audit_records_written_total",
				Help: "Audit records persisted, by record kind",
			},
			[]string{"kind"},
		),
		RecordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_audit_records_dropped_total",
				Help: "Audit records dropped because the write queue was full or closed",
			},
			[]string{"kind"},
		),
		WriteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_audit_write_failures_total",
				Help: "Audit records that failed to persist",
			},
			[]string{"kind"},
		),
		InterceptorErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "admin_audit_interceptor_errors_total",
				Help: "Errors swallowed while building activity records",
			},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"status"}, // success / failure
		),
	}
	if reg != nil {
		reg.MustRegister(m.RecordsWritten, m.RecordsDropped, m.WriteFailures, m.InterceptorErrors, m.LoginAttempts)
	}
	return m
}
