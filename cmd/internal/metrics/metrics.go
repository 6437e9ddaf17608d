// Package metrics exposes Agrimitra's Prometheus instrumentation.
//
// Counters are registered on the default registry at package init and
// served via Handler on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SignupsTotal counts signup attempts by outcome
	// (ok, validation_error, conflict, internal_error).
	SignupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrimitra_auth_signups_total",
		Help: "Signup attempts by outcome.",
	}, []string{"outcome"})

	// SigninsTotal counts signin attempts by outcome
	// (ok, validation_error, invalid_credentials, internal_error).
	SigninsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrimitra_auth_signins_total",
		Help: "Signin attempts by outcome.",
	}, []string{"outcome"})

	// GateRejectionsTotal counts bearer-token gate rejections by reason
	// (missing, malformed, invalid).
	GateRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrimitra_gate_rejections_total",
		Help: "Request authentication gate rejections by reason.",
	}, []string{"reason"})

	// UpstreamRequestsTotal counts outbound proxy calls by upstream and outcome
	// (ok, error).
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrimitra_upstream_requests_total",
		Help: "Outbound upstream proxy requests by outcome.",
	}, []string{"upstream", "outcome"})
)

// Handler serves the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
