package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Action label values
const (
	ActionResume    = "resume"
	ActionCreate    = "create"
	ActionStop      = "stop"
	ActionTerminate = "terminate"
)

// Registry holds every collector of this package. It is pushed as a whole.
var Registry = prometheus.NewRegistry()

var (
	// podActionsTotal counts mutating API calls by action and outcome.
	podActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podkeeper",
			Name:      "pod_actions_total",
			Help:      "Mutating pod API calls by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// createAttemptsTotal counts validated creation attempts per GPU type.
	createAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podkeeper",
			Name:      "create_attempts_total",
			Help:      "Pod creation attempts by GPU type and outcome, after validation",
		},
		[]string{"gpu_type", "outcome"},
	)

	// pods reports the last observed pod counts for the configured name.
	pods = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "podkeeper",
			Name:      "pods",
			Help:      "Pods matching the configured name, by state",
		},
		[]string{"state"},
	)

	reconcileSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "podkeeper",
			Name:      "reconcile_success",
			Help:      "1 if the last reconciliation left the pod running, 0 otherwise",
		},
	)

	reconcileDurationSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "podkeeper",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of the last reconciliation in seconds",
		},
	)
)

func init() {
	Registry.MustRegister(
		podActionsTotal,
		createAttemptsTotal,
		pods,
		reconcileSuccess,
		reconcileDurationSeconds,
	)
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// RecordAction counts one mutating API call.
func RecordAction(action string, ok bool) {
	podActionsTotal.WithLabelValues(action, outcome(ok)).Inc()
}

// RecordCreateAttempt counts one create-and-validate attempt for gpuType.
func RecordCreateAttempt(gpuType string, ok bool) {
	createAttemptsTotal.WithLabelValues(gpuType, outcome(ok)).Inc()
}

// SetPodCounts records the total and running counts.
func SetPodCounts(total, running int) {
	pods.WithLabelValues("total").Set(float64(total))
	pods.WithLabelValues("running").Set(float64(running))
}

// RecordReconcile records the result and duration of a reconciliation.
func RecordReconcile(ok bool, seconds float64) {
	if ok {
		reconcileSuccess.Set(1)
	} else {
		reconcileSuccess.Set(0)
	}
	reconcileDurationSeconds.Set(seconds)
}

// Push sends the registry to a Prometheus Pushgateway, replacing the
// metrics previously pushed under the same job and grouping.
func Push(ctx context.Context, url, job string, grouping map[string]string) error {
	pusher := push.New(url, job).Gatherer(Registry)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
