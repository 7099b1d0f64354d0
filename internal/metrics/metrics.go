package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics interface the services depend on. A prometheus
// implementation and a zero-overhead noop implementation exist; services
// never know which one they hold.
type Recorder interface {
	// Credential gate
	RecordGateDecision(result string) // success, missing_credentials, invalid_credentials, plan_inactive

	// Authentication
	RecordLogin(domain, method string, success bool)
	RecordRegistration(domain string, success bool)
	RecordAccountLockout()

	// Token issuance
	RecordTokenIssued(domain, category string, duration time.Duration)
	RecordVerificationToken(purpose string, consumed bool)

	// SSO tickets
	RecordTicketIssued(success bool)
	RecordTicketRedeemed(result string) // success, gone, rejected
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	GateDecisionsTotal      *prometheus.CounterVec
	LoginsTotal             *prometheus.CounterVec
	RegistrationsTotal      *prometheus.CounterVec
	AccountLockoutsTotal    prometheus.Counter
	TokensIssuedTotal       *prometheus.CounterVec
	TokenGenerationDuration *prometheus.HistogramVec
	VerificationTokensTotal *prometheus.CounterVec
	TicketsIssuedTotal      *prometheus.CounterVec
	TicketRedemptionsTotal  *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag.
// If enabled=true, returns Prometheus-based Metrics.
// If enabled=false, returns NoopMetrics (zero overhead).
// Uses sync.Once to ensure Prometheus metrics are only registered once.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		GateDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_gate_decisions_total",
				Help: "API credential gate outcomes",
			},
			[]string{"result"},
		),
		LoginsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Login attempts by domain and method",
			},
			[]string{"domain", "method", "result"},
		),
		RegistrationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_registrations_total",
				Help: "Registration attempts by domain",
			},
			[]string{"domain", "result"},
		),
		AccountLockoutsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_account_lockouts_total",
				Help: "Developer accounts locked after repeated failures",
			},
		),
		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_tokens_issued_total",
				Help: "JWTs issued by signing domain and category",
			},
			[]string{"domain", "category"},
		),
		TokenGenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_token_generation_duration_seconds",
				Help:    "Time taken to generate tokens",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"domain"},
		),
		VerificationTokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_verification_tokens_total",
				Help: "Single-use tokens created and consumed by purpose",
			},
			[]string{"purpose", "event"},
		),
		TicketsIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_tickets_issued_total",
				Help: "SSO tickets issued",
			},
			[]string{"result"},
		),
		TicketRedemptionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_ticket_redemptions_total",
				Help: "SSO ticket redemption outcomes",
			},
			[]string{"result"},
		),
	}
}

func boolResult(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *Metrics) RecordGateDecision(result string) {
	m.GateDecisionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordLogin(domain, method string, success bool) {
	m.LoginsTotal.WithLabelValues(domain, method, boolResult(success)).Inc()
}

func (m *Metrics) RecordRegistration(domain string, success bool) {
	m.RegistrationsTotal.WithLabelValues(domain, boolResult(success)).Inc()
}

func (m *Metrics) RecordAccountLockout() {
	m.AccountLockoutsTotal.Inc()
}

func (m *Metrics) RecordTokenIssued(domain, category string, duration time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(domain, category).Inc()
	m.TokenGenerationDuration.WithLabelValues(domain).Observe(duration.Seconds())
}

func (m *Metrics) RecordVerificationToken(purpose string, consumed bool) {
	event := "created"
	if consumed {
		event = "consumed"
	}
	m.VerificationTokensTotal.WithLabelValues(purpose, event).Inc()
}

func (m *Metrics) RecordTicketIssued(success bool) {
	m.TicketsIssuedTotal.WithLabelValues(boolResult(success)).Inc()
}

func (m *Metrics) RecordTicketRedeemed(result string) {
	m.TicketRedemptionsTotal.WithLabelValues(result).Inc()
}
