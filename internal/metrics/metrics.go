package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aa_keyring"

// Metrics 服务指标
type Metrics struct {
	Registry *prometheus.Registry

	RequestsSubmitted *prometheus.CounterVec
	RequestsResolved  *prometheus.CounterVec
	Signatures        *prometheus.CounterVec
	UserOpsSubmitted  *prometheus.CounterVec
	UserOpsConfirmed  *prometheus.CounterVec
	ReconcileTicks    *prometheus.CounterVec
	PendingUserOps    prometheus.Gauge
	RPCDuration       *prometheus.HistogramVec
}

// New 创建并注册所有指标（独立 registry，避免测试间重复注册）
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RequestsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_submitted_total",
			Help:      "Keyring signing requests submitted, by method.",
		}, []string{"method"}),
		RequestsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_resolved_total",
			Help:      "Keyring signing requests resolved, by outcome (approved, rejected, failed).",
		}, []string{"outcome"}),
		Signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_total",
			Help:      "Signatures produced, by method.",
		}, []string{"method"}),
		UserOpsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_operations_submitted_total",
			Help:      "User operations handed to a bundler, by chain and result.",
		}, []string{"chain_id", "result"}),
		UserOpsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_operations_confirmed_total",
			Help:      "User operations moved from pending to confirmed, by chain.",
		}, []string{"chain_id"}),
		ReconcileTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_ticks_total",
			Help:      "Reconciliation ticks, by outcome.",
		}, []string{"outcome"}),
		PendingUserOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "user_operations_pending",
			Help:      "User operations waiting for a receipt.",
		}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "JSON-RPC handler latency, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		m.RequestsSubmitted,
		m.RequestsResolved,
		m.Signatures,
		m.UserOpsSubmitted,
		m.UserOpsConfirmed,
		m.ReconcileTicks,
		m.PendingUserOps,
		m.RPCDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}
