package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status check outcomes used as the "outcome" label.
const (
	OutcomeActive           = "active"
	OutcomeDisabled         = "disabled"
	OutcomePermissionDenied = "permission_denied"
	OutcomeError            = "error"
)

var (
	ServiceStatusChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dp_gcp_service_status_checks_total",
		Help: "Service usage status checks by service and outcome.",
	}, []string{"service", "outcome"})

	FanoutCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dp_gcp_fanout_calls_total",
		Help: "Calls made through the bounded fan-out, by result.",
	}, []string{"result"})

	FanoutCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dp_gcp_fanout_call_duration_seconds",
		Help:    "Duration of individual fan-out calls.",
		Buckets: prometheus.DefBuckets,
	})
)

// ObserveFanoutCall records one completed fan-out call.
func ObserveFanoutCall(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	FanoutCalls.WithLabelValues(result).Inc()
	FanoutCallDuration.Observe(elapsed.Seconds())
}

// ObserveStatusCheck records the outcome of one service usage status check.
func ObserveStatusCheck(service, outcome string) {
	ServiceStatusChecks.WithLabelValues(service, outcome).Inc()
}

// WriteMetrics writes the default registry to path in the Prometheus text
// format, for pickup by a node_exporter textfile collector.
func WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile %q: %w", path, err)
	}
	return nil
}
