package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Probe metrics
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netguard_probes_total",
			Help: "Total number of probes by target and result",
		},
		[]string{"target", "result"},
	)

	ProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netguard_probe_duration_seconds",
			Help:    "Probe round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	ProbeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netguard_probe_failures_total",
			Help: "Total number of failed probes by target and reason",
		},
		[]string{"target", "reason"},
	)

	TicksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netguard_ticks_dropped_total",
			Help: "Ticks skipped because a probe or recovery was still in flight",
		},
		[]string{"target"},
	)

	// Target state metrics
	TargetUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netguard_target_up",
			Help: "Whether the target is currently considered healthy (1) or not (0)",
		},
		[]string{"target"},
	)

	// Recovery metrics
	RecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netguard_recoveries_total",
			Help: "Total number of recovery sequences by target and outcome",
		},
		[]string{"target", "outcome"},
	)

	RecoveryActionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netguard_recovery_action_failures_total",
			Help: "Total number of recovery action step failures by target",
		},
		[]string{"target"},
	)

	RecoveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netguard_recovery_duration_seconds",
			Help:    "Duration of full recovery sequences in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(ProbeFailures)
	prometheus.MustRegister(TicksDropped)
	prometheus.MustRegister(TargetUp)
	prometheus.MustRegister(RecoveriesTotal)
	prometheus.MustRegister(RecoveryActionFailures)
	prometheus.MustRegister(RecoveryDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
