package automation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Invocation outcomes used as metric labels.
const (
	outcomeSuccess   = "success"
	outcomeUpstream  = "upstream_error"
	outcomeRejected  = "rejected"
	outcomeNotConfig = "not_configured"
)

// Metrics instruments agent invocations.
type Metrics struct {
	invocations   *prometheus.CounterVec
	upstream      *prometheus.HistogramVec
	logWriteFails *prometheus.CounterVec
}

// NewMetrics registers the agent collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	invocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stellarc_agent_invocations_total",
		Help: "Agent invocations partitioned by outcome.",
	}, []string{"outcome"})
	upstream := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stellarc_agent_upstream_duration_seconds",
		Help:    "Latency of completion provider calls.",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"outcome"})
	logWriteFails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stellarc_agent_log_write_failures_total",
		Help: "Automation log writes that failed and were skipped.",
	}, []string{"op"})
	registerer.MustRegister(invocations, upstream, logWriteFails)
	return &Metrics{invocations: invocations, upstream: upstream, logWriteFails: logWriteFails}
}

func (m *Metrics) invocation(outcome string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) upstreamCall(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) logWriteFailed(op string) {
	if m == nil {
		return
	}
	m.logWriteFails.WithLabelValues(op).Inc()
}
