package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los contadores Prometheus del servicio. Un *Metrics nil es
// valido: todos los metodos son no-op.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LoginAttemptsTotal       *prometheus.CounterVec
	LockoutsTotal            prometheus.Counter
	RefreshRotationsTotal    *prometheus.CounterVec
	RefreshReuseDetected     prometheus.Counter
	VerificationRedeemsTotal *prometheus.CounterVec
	SocialLoginsTotal        *prometheus.CounterVec
}

// New crea y registra las metricas en registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_attempts_total",
				Help: "Password login attempts by result",
			},
			[]string{"result"},
		),
		LockoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_lockouts_total",
			Help: "Credentials locked after repeated failures",
		}),
		RefreshRotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_refresh_rotations_total",
				Help: "Refresh token rotations by result",
			},
			[]string{"result"},
		),
		RefreshReuseDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_reuse_detected_total",
			Help: "Rotation attempts on an already revoked refresh token",
		}),
		VerificationRedeemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_verification_redeems_total",
				Help: "Verification token redemptions by type and result",
			},
			[]string{"type", "result"},
		),
		SocialLoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_social_logins_total",
				Help: "Social logins by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttemptsTotal,
		m.LockoutsTotal,
		m.RefreshRotationsTotal,
		m.RefreshReuseDetected,
		m.VerificationRedeemsTotal,
		m.SocialLoginsTotal,
	)
	return m
}

// Handler expone el registry en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.LockoutsTotal.Inc()
}

func (m *Metrics) RefreshRotation(result string) {
	if m == nil {
		return
	}
	m.RefreshRotationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RefreshReuse() {
	if m == nil {
		return
	}
	m.RefreshReuseDetected.Inc()
}

func (m *Metrics) VerificationRedeem(tokenType, result string) {
	if m == nil {
		return
	}
	m.VerificationRedeemsTotal.WithLabelValues(tokenType, result).Inc()
}

func (m *Metrics) SocialLogin(provider, outcome string) {
	if m == nil {
		return
	}
	m.SocialLoginsTotal.WithLabelValues(provider, outcome).Inc()
}

// Result traduce un error a la etiqueta "result" de los contadores.
func Result(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}
