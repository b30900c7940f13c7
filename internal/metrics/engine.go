package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine-level Prometheus metrics. Defined in a standalone package to avoid
// import cycles between the oauth/token/ciba services and HTTP packages.

var (
	AuthorizationsResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authorization_requests_resolved_total",
		Help: "Authorization requests resueltos, por pattern y profile",
	}, []string{"pattern", "profile"})

	AuthorizationsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authorization_requests_rejected_total",
		Help: "Authorization requests rechazados, por pattern y error code",
	}, []string{"pattern", "error"})

	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokens_issued_total",
		Help: "Token responses emitidos, por grant_type",
	}, []string{"grant_type"})

	TokenRequestsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_requests_rejected_total",
		Help: "Token requests rechazados, por grant_type y error code",
	}, []string{"grant_type", "error"})

	CibaTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ciba_transitions_total",
		Help: "Transiciones de estado de transacciones CIBA",
	}, []string{"to"})

	IssueLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "token_issue_latency_ms",
		Help:    "Latencia de emisión de tokens en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// AuthorizationResolved cuenta un request resuelto.
func AuthorizationResolved(pattern, profile string) {
	AuthorizationsResolved.WithLabelValues(pattern, profile).Inc()
}

// AuthorizationRejected cuenta un request rechazado.
func AuthorizationRejected(pattern, errCode string) {
	AuthorizationsRejected.WithLabelValues(pattern, errCode).Inc()
}

// TokenIssued cuenta una emisión exitosa.
func TokenIssued(grantType string) {
	TokensIssued.WithLabelValues(grantType).Inc()
}

// TokenRejected cuenta un token request rechazado.
func TokenRejected(grantType, errCode string) {
	TokenRequestsRejected.WithLabelValues(grantType, errCode).Inc()
}

// ObserveIssueLatency registra la latencia de una emisión, en milisegundos.
func ObserveIssueLatency(start time.Time) {
	IssueLatency.Observe(float64(time.Since(start)) / float64(time.Millisecond))
}

// CibaTransition cuenta una transición de estado CIBA.
func CibaTransition(to string) {
	CibaTransitions.WithLabelValues(to).Inc()
}

// Register registers the engine metrics on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		AuthorizationsResolved,
		AuthorizationsRejected,
		TokensIssued,
		TokenRequestsRejected,
		CibaTransitions,
		IssueLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
