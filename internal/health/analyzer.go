package health

import (
	"strings"

	"kv-migrator/internal/logs"
	"kv-migrator/internal/metrics"
)

// EndpointStates reports which stores currently fail their heartbeat.
type EndpointStates interface {
	Unhealthy() []string
}

// Analyzer converts metrics + logs into a health report.
type Analyzer struct {
	metrics   *metrics.Registry
	logger    *logs.Logger
	endpoints EndpointStates
	rules     []Rule
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(
	reg *metrics.Registry,
	logger *logs.Logger,
) *Analyzer {
	return &Analyzer{
		metrics: reg,
		logger:  logger,
		rules: []Rule{
			EnumerationFailureRule,
			KeyFailureRule,
			RetryRule,
			ReporterRule,
		},
	}
}

// WithEndpoints adds endpoint heartbeat state to the report.
func (a *Analyzer) WithEndpoints(e EndpointStates) *Analyzer {
	a.endpoints = e
	return a
}

// Analyze evaluates metrics and logs and returns a health report.
func (a *Analyzer) Analyze() Report {
	snapshot := a.metrics.Snapshot()

	var (
		signals         = []string{}
		recommendations = []string{}
		status          = StatusOK
	)

	/* ---------- METRICS-BASED RULES ---------- */

	for _, rule := range a.rules {
		result := rule(snapshot)
		if !result.Triggered {
			continue
		}

		signals = append(signals, result.Signal)
		recommendations = append(recommendations, result.Recommendation)
		status = escalate(status, result.Severity)
	}

	/* ---------- ENDPOINTS ---------- */

	if a.endpoints != nil {
		if down := a.endpoints.Unhealthy(); len(down) > 0 {
			signals = append(signals,
				"Unreachable endpoints: "+strings.Join(down, ", "),
			)
			recommendations = append(recommendations,
				"Check the network path and server state of the listed stores",
			)
			status = StatusCritical
		}
	}

	/* ---------- LOG-BASED SIGNALS ---------- */

	panicCount := 0

	for _, entry := range a.logger.GetLast(100) {
		if entry.Level == logs.ERROR &&
			strings.Contains(entry.Message, "panic") {
			panicCount++
		}
	}

	if panicCount > 0 {
		signals = append(signals,
			"Application panics detected in logs",
		)
		recommendations = append(recommendations,
			"Inspect stack traces and stabilize error handling",
		)
		status = StatusCritical
	}

	/* ---------- SUMMARY ---------- */

	summary := "Migration is healthy"
	if status != StatusOK {
		summary = "Migration health issues detected"
	}

	return Report{
		OverallStatus:   status,
		Summary:         summary,
		Signals:         signals,
		Recommendations: recommendations,
	}
}

func escalate(current, next Status) Status {
	switch {
	case next == StatusCritical:
		return StatusCritical
	case next == StatusDegraded && current == StatusOK:
		return StatusDegraded
	default:
		return current
	}
}
