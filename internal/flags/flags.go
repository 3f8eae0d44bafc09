// Package flags evaluates the performance flag rules against a candidate's
// window aggregates. Each rule is an independent pure function that decides
// whether to fire and, when it can, estimates its share of the pattern's
// total phase time or data volume.
package flags

import (
	"fmt"
	"sort"

	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

// TableContext is optional catalog metadata used to enrich finding text.
// It never changes whether a rule fires or its impact estimate.
type TableContext struct {
	Name           string
	SizeBytes      int64
	Partitioned    bool
	ClusteringKeys []string
}

// ruleFunc evaluates one rule. A nil return means the rule did not fire.
type ruleFunc func(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding

// Rule evaluation order is fixed so output is reproducible run to run.
var rules = []ruleFunc{
	checkLongRunning,
	checkHighSpill,
	checkHighShuffle,
	checkLowCacheHit,
	checkLowPruning,
	checkHighQueueTime,
	checkHighCompileTime,
	checkFrequentPattern,
	checkCacheMiss,
	checkLargeWrite,
	checkExplodingJoin,
	checkFilteringJoin,
	checkHighQueueRatio,
	checkColdQuery,
	checkCompilationHeavy,
	checkMaterializedViewFit,
}

// Compute runs every rule against the candidate and returns the findings in
// rule order. tables, when non-nil, enriches finding text with catalog
// context for the tables the sample query touches.
func Compute(c *models.Candidate, th config.FlagThresholds, tables map[string]TableContext) []models.PerformanceFlagFinding {
	if c == nil {
		return nil
	}

	var findings []models.PerformanceFlagFinding
	for _, rule := range rules {
		if f := rule(c, th); f != nil {
			findings = append(findings, *f)
		}
	}

	if len(tables) > 0 {
		enrich(findings, c, tables)
	}

	return findings
}

// FilterAndRank drops estimated findings below minImpactPct and sorts the
// rest by descending impact. Findings without an estimate are never dropped
// and are appended after the estimated ones, preserving their order.
func FilterAndRank(findings []models.PerformanceFlagFinding, minImpactPct float64) ([]models.PerformanceFlagFinding, error) {
	if minImpactPct < 0 {
		return nil, fmt.Errorf("minImpactPct must not be negative, got %v", minImpactPct)
	}

	estimated := make([]models.PerformanceFlagFinding, 0, len(findings))
	unestimated := make([]models.PerformanceFlagFinding, 0, len(findings))
	for _, f := range findings {
		if !f.Estimated {
			unestimated = append(unestimated, f)
			continue
		}
		if f.ImpactPct < minImpactPct {
			continue
		}
		estimated = append(estimated, f)
	}

	sort.SliceStable(estimated, func(i, j int) bool {
		return estimated[i].ImpactPct > estimated[j].ImpactPct
	})

	return append(estimated, unestimated...), nil
}

// phaseTotalMs is the denominator for time-share impact estimates.
func phaseTotalMs(s models.WindowStats) float64 {
	return s.AvgCompileMs + s.AvgQueueMs + s.AvgComputeWaitMs + s.AvgExecuteMs + s.AvgFetchMs
}

// timeShare guards the division: a zero phase total yields zero impact.
func timeShare(partMs float64, s models.WindowStats) float64 {
	total := phaseTotalMs(s)
	if total <= 0 || partMs <= 0 {
		return 0
	}
	return partMs / total * 100
}

// byteShare guards the division the same way.
func byteShare(part, total int64) float64 {
	if part <= 0 || total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func severityAt(value, threshold int64, multiple int64) string {
	if threshold > 0 && value > threshold*multiple {
		return models.SeverityCritical
	}
	return models.SeverityWarning
}

// enrich appends catalog-derived recommendation text to findings whose fix
// depends on table layout. Impact numbers and severities are left untouched.
func enrich(findings []models.PerformanceFlagFinding, c *models.Candidate, tables map[string]TableContext) {
	referenced := referencedContexts(c, tables)
	if len(referenced) == 0 {
		return
	}

	for i := range findings {
		switch findings[i].Kind {
		case models.FlagLowPruning:
			for _, tc := range referenced {
				if !tc.Partitioned && len(tc.ClusteringKeys) == 0 {
					findings[i].Detail += fmt.Sprintf(" Consider partitioning or clustering %s (%s).", tc.Name, humanBytes(tc.SizeBytes))
				}
			}
		case models.FlagFilteringJoin, models.FlagExplodingJoin:
			for _, tc := range referenced {
				if len(tc.ClusteringKeys) > 0 {
					findings[i].Detail += fmt.Sprintf(" %s is clustered by %v; filter on those keys before joining.", tc.Name, tc.ClusteringKeys)
				}
			}
		case models.FlagMaterializedViewFit:
			for _, tc := range referenced {
				findings[i].Detail += fmt.Sprintf(" Source %s is %s per scan.", tc.Name, humanBytes(tc.SizeBytes))
			}
		}
	}
}

func referencedContexts(c *models.Candidate, tables map[string]TableContext) []TableContext {
	var out []TableContext
	for _, name := range extractSampleTables(c) {
		if tc, ok := tables[name]; ok {
			out = append(out, tc)
		}
	}
	return out
}

func humanBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func humanMs(ms float64) string {
	switch {
	case ms >= 60_000:
		return fmt.Sprintf("%.1fm", ms/60_000)
	case ms >= 1_000:
		return fmt.Sprintf("%.1fs", ms/1_000)
	default:
		return fmt.Sprintf("%.0fms", ms)
	}
}
