// Package metrics exposes Prometheus counters for verification attempts,
// ballots and the embedding oracle.  Labels carry reason codes only; no
// household or candidate identifiers are ever recorded.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voting",
		Name:      "verifications_total",
		Help:      "Verification attempts by method and outcome.",
	}, []string{"method", "outcome"})

	ballots = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voting",
		Name:      "ballots_total",
		Help:      "Ballot submissions by outcome.",
	}, []string{"outcome"})

	oracleLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "voting",
		Name:      "oracle_embed_seconds",
		Help:      "Latency of embedding oracle calls.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	Registry.MustRegister(
		verifications,
		ballots,
		oracleLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveVerification counts one verification attempt.  outcome is "ok" or
// a rejection code.
func ObserveVerification(method, outcome string) {
	verifications.WithLabelValues(method, outcome).Inc()
}

// ObserveBallot counts one ballot submission.
func ObserveBallot(outcome string) {
	ballots.WithLabelValues(outcome).Inc()
}

// ObserveOracle records the duration of an oracle call started at start.
func ObserveOracle(start time.Time) {
	oracleLatency.Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
