package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/webspec-dev/webspec/types"
)

const (
	MetricsNamespace = "webspec"
)

var (
	validStatuses        = []types.SpecStatus{types.SpecStatusPass, types.SpecStatusFail, types.SpecStatusSkip}
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	specsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "specs_total",
		Help:      "Count of executed specs",
	}, []string{
		"target",
		"run_id",
		"spec",
		"status",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Overall status of harness runs",
	}, []string{
		"target",
		"run_id",
		"status",
	})

	runSpecTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_spec_total",
		Help:      "Total number of specs in a run",
	}, []string{
		"target",
		"run_id",
	})

	runSpecPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_spec_passed",
		Help:      "Number of passed specs in a run",
	}, []string{
		"target",
		"run_id",
	})

	runSpecFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_spec_failed",
		Help:      "Number of failed specs in a run",
	}, []string{
		"target",
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of harness runs",
	}, []string{
		"target",
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordSpec counts one finished spec by status.
func RecordSpec(target string, runID string, specID string, status types.SpecStatus) {
	if !isValidStatus(status) {
		return
	}
	specsTotal.WithLabelValues(target, runID, specID, string(status)).Inc()
}

// RecordRun publishes the aggregate outcome of one run.
func RecordRun(
	target string,
	runID string,
	status string,
	total int,
	passed int,
	failed int,
	duration time.Duration,
) {
	runResults.WithLabelValues(target, runID, status).Set(1)
	runSpecTotal.WithLabelValues(target, runID).Add(float64(total))
	runSpecPassed.WithLabelValues(target, runID).Add(float64(passed))
	runSpecFailed.WithLabelValues(target, runID).Add(float64(failed))
	runDuration.WithLabelValues(target, runID).Set(duration.Seconds())
}

func isValidStatus(status types.SpecStatus) bool {
	return slices.Contains(validStatuses, status)
}
