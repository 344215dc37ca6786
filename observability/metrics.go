package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the Prometheus collectors exposed by the daemon.
type Metrics struct {
	EngineOps       *prometheus.CounterVec
	Finalizations   *prometheus.CounterVec
	RewardsAssigned prometheus.Counter
	RewardsClaimed  prometheus.Counter
	RPCRequests     *prometheus.CounterVec
	RPCDuration     prometheus.Histogram
}

// NewMetrics builds and registers the collector set against the supplied
// registry. Passing nil registers against the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		EngineOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitvault_engine_ops_total",
			Help: "Engine operations processed, labelled by operation and outcome.",
		}, []string{"op", "outcome"}),
		Finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitvault_finalizations_total",
			Help: "Finalized challenges by resulting status.",
		}, []string{"status"}),
		RewardsAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitvault_rewards_assigned_units_total",
			Help: "Token units assigned to claimable balances across epochs.",
		}),
		RewardsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitvault_rewards_claimed_units_total",
			Help: "Token units paid out of the reward vault to participants.",
		}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitvault_rpc_requests_total",
			Help: "JSON-RPC requests by method and outcome.",
		}, []string{"method", "outcome"}),
		RPCDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "habitvault_rpc_request_seconds",
			Help:    "JSON-RPC request handling latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.EngineOps,
		m.Finalizations,
		m.RewardsAssigned,
		m.RewardsClaimed,
		m.RPCRequests,
		m.RPCDuration,
	)
	return m
}

// ObserveOp records a completed engine operation.
func (m *Metrics) ObserveOp(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EngineOps.WithLabelValues(op, outcome).Inc()
}
