package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// timePeriodsTotal counts finished time periods by termination
	// Labels: "converged", "max_iterations_reached", "error"
	timePeriodsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_time_periods_total",
		Help: "Assigned time periods by termination reason",
	}, []string{"termination"})

	iterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assignment_iteration_duration_seconds",
		Help:    "Duration of one equilibrium iteration over all modes",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 60},
	})

	iterationsPerPeriod = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assignment_iterations",
		Help:    "Iterations per time period",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 500},
	})

	lastGap = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "assignment_relative_duality_gap",
		Help: "Relative duality gap of the latest iteration per time period",
	}, []string{"time_period"})

	unreachablePairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_unreachable_od_pairs_total",
		Help: "Od pairs dropped because the destination is unreachable, counted at the final iteration",
	}, []string{"mode"})

	runsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assignment_runs_in_flight",
		Help: "Assignment runs currently executing",
	})
)

func ObserveIteration(timePeriod string, gap float64, d time.Duration) {
	iterationDuration.Observe(d.Seconds())
	lastGap.WithLabelValues(timePeriod).Set(gap)
}

func ObserveTimePeriod(termination string, iterations int) {
	timePeriodsTotal.WithLabelValues(termination).Inc()
	if iterations > 0 {
		iterationsPerPeriod.Observe(float64(iterations))
	}
}

func AddUnreachablePairs(mode string, n int) {
	if n > 0 {
		unreachablePairs.WithLabelValues(mode).Add(float64(n))
	}
}

func RunStarted() {
	runsInFlight.Inc()
}

func RunFinished() {
	runsInFlight.Dec()
}
