package health

import "kv-migrator/internal/metrics"

// RuleResult represents the outcome of a single rule.
type RuleResult struct {
	Triggered      bool
	Signal         string
	Recommendation string
	Severity       Status
}

// Rule evaluates a metrics snapshot.
type Rule func(snapshot map[string]int64) RuleResult

// ---------- RULES ----------

// An enumeration failure means the keyspace was not (fully) listed.
func EnumerationFailureRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.EnumerationErrorsTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Source key enumeration failed",
			Recommendation: "Check source connectivity and that SCAN/KEYS are permitted for the user",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}

// Failed keys leave the target incomplete. Past half of the processed
// keys the run is considered critical.
func KeyFailureRule(snapshot map[string]int64) RuleResult {
	failed := snapshot[string(metrics.KeysFailedTotal)]
	if failed == 0 {
		return RuleResult{}
	}

	processed := failed +
		snapshot[string(metrics.KeysCopiedTotal)] +
		snapshot[string(metrics.KeysSkippedTotal)]

	severity := StatusDegraded
	if failed*2 > processed {
		severity = StatusCritical
	}
	return RuleResult{
		Triggered:      true,
		Signal:         "Keys failed to migrate",
		Recommendation: "Inspect failed keys: target memory limits, read-only replicas or non-string types",
		Severity:       severity,
	}
}

// Retries indicate an unstable link to one of the stores.
func RetryRule(snapshot map[string]int64) RuleResult {
	retries := snapshot[string(metrics.ReadRetriesTotal)] + snapshot[string(metrics.WriteRetriesTotal)]
	if retries > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Store call retries detected",
			Recommendation: "Check network connectivity or store call timeouts",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// Reporter failures do not affect the copy but hide its progress.
func ReporterRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.ReporterErrorsTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Progress output is failing",
			Recommendation: "Check the console or log sink; the migration itself is unaffected",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}
