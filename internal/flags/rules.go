package flags

import (
	"fmt"
	"strings"

	"github.com/warelens/warelens/internal/fingerprint"
	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

func checkLongRunning(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.P95Ms <= th.LongRunningP95Ms {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagLongRunning,
		Label:     "Long-running pattern",
		Severity:  severityAt(s.P95Ms, th.LongRunningP95Ms, 3),
		Detail:    fmt.Sprintf("p95 latency is %s (threshold %s); execution dominates the runtime.", humanMs(float64(s.P95Ms)), humanMs(float64(th.LongRunningP95Ms))),
		ImpactPct: timeShare(s.AvgExecuteMs, s),
		Estimated: true,
	}
}

func checkHighSpill(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.TotalSpilledBytes <= th.HighSpillBytes {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagHighSpill,
		Label:     "High disk spill",
		Severity:  severityAt(s.TotalSpilledBytes, th.HighSpillBytes, 5),
		Detail:    fmt.Sprintf("%s spilled to local disk over the window; joins or sorts exceed memory.", humanBytes(s.TotalSpilledBytes)),
		ImpactPct: byteShare(s.TotalSpilledBytes, s.TotalReadBytes+s.TotalSpilledBytes),
		Estimated: true,
	}
}

func checkHighShuffle(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.TotalShuffledBytes <= th.HighShuffleBytes {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagHighShuffle,
		Label:     "Heavy shuffle",
		Severity:  severityAt(s.TotalShuffledBytes, th.HighShuffleBytes, 5),
		Detail:    fmt.Sprintf("%s exchanged between nodes; wide joins or repartitioning dominate.", humanBytes(s.TotalShuffledBytes)),
		ImpactPct: byteShare(s.TotalShuffledBytes, s.TotalReadBytes+s.TotalShuffledBytes),
		Estimated: true,
	}
}

func checkLowCacheHit(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.Count < th.LowCacheHitMinCount || s.CacheHitRate >= th.LowCacheHitRate {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagLowCacheHit,
		Label:     "Low cache hit rate",
		Severity:  models.SeverityWarning,
		Detail:    fmt.Sprintf("Cache hit rate is %.0f%% across %d runs of the same pattern.", s.CacheHitRate*100, s.Count),
		ImpactPct: (1 - s.CacheHitRate) * 100,
		Estimated: true,
	}
}

func checkLowPruning(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.TotalReadFiles <= 0 || s.PruningEfficiency >= th.LowPruningEfficiency {
		return nil
	}
	severity := models.SeverityWarning
	if s.PruningEfficiency < th.LowPruningEfficiency/5 {
		severity = models.SeverityCritical
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagLowPruning,
		Label:     "Poor file pruning",
		Severity:  severity,
		Detail:    fmt.Sprintf("Only %.0f%% of candidate files are skipped; scans read %d files per window.", s.PruningEfficiency*100, s.TotalReadFiles),
		ImpactPct: (1 - s.PruningEfficiency) * 100,
		Estimated: true,
	}
}

func checkHighQueueTime(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.AvgQueueMs <= float64(th.HighQueueMs) {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagHighQueueTime,
		Label:     "High queue time",
		Severity:  severityAt(int64(s.AvgQueueMs), th.HighQueueMs, 3),
		Detail:    fmt.Sprintf("Average capacity queue wait is %s; the warehouse is saturated when this pattern runs.", humanMs(s.AvgQueueMs)),
		ImpactPct: timeShare(s.AvgQueueMs, s),
		Estimated: true,
	}
}

func checkHighCompileTime(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.AvgCompileMs <= float64(th.HighCompileMs) {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagHighCompileTime,
		Label:     "High compile time",
		Severity:  severityAt(int64(s.AvgCompileMs), th.HighCompileMs, 3),
		Detail:    fmt.Sprintf("Average planning time is %s; very wide or deeply nested SQL.", humanMs(s.AvgCompileMs)),
		ImpactPct: timeShare(s.AvgCompileMs, s),
		Estimated: true,
	}
}

func checkFrequentPattern(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.Count < th.FrequentCount {
		return nil
	}
	severity := models.SeverityWarning
	if th.FrequentCount > 0 && s.Count >= th.FrequentCount*10 {
		severity = models.SeverityCritical
	}
	return &models.PerformanceFlagFinding{
		Kind:     models.FlagFrequentPattern,
		Label:    "Very frequent pattern",
		Severity: severity,
		Detail:   fmt.Sprintf("Pattern ran %d times in the window; small per-run savings multiply.", s.Count),
	}
}

func checkCacheMiss(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.CacheHitRate != 0 || s.Count < th.CacheMissMinCount || s.TotalReadBytes <= 0 {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:     models.FlagCacheMiss,
		Label:    "Never cached",
		Severity: models.SeverityWarning,
		Detail:   fmt.Sprintf("%d runs and not one cache hit; non-deterministic functions or volatile inputs defeat caching.", s.Count),
	}
}

func checkLargeWrite(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.TotalWrittenBytes <= th.LargeWriteBytes {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagLargeWrite,
		Label:     "Large write volume",
		Severity:  severityAt(s.TotalWrittenBytes, th.LargeWriteBytes, 5),
		Detail:    fmt.Sprintf("%s written over the window; consider incremental processing.", humanBytes(s.TotalWrittenBytes)),
		ImpactPct: byteShare(s.TotalWrittenBytes, s.TotalReadBytes+s.TotalWrittenBytes),
		Estimated: true,
	}
}

func checkExplodingJoin(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.TotalReadRows <= 0 || s.TotalRowsProduced <= 0 {
		return nil
	}
	ratio := float64(s.TotalRowsProduced) / float64(s.TotalReadRows)
	if ratio <= th.JoinExplosionRatio {
		return nil
	}
	severity := models.SeverityWarning
	if ratio > th.JoinExplosionRatio*5 {
		severity = models.SeverityCritical
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagExplodingJoin,
		Label:     "Row-exploding join",
		Severity:  severity,
		Detail:    fmt.Sprintf("Output is %.1fx the rows read; a join is multiplying rows.", ratio),
		ImpactPct: byteShare(s.TotalRowsProduced-s.TotalReadRows, s.TotalRowsProduced),
		Estimated: true,
	}
}

func checkFilteringJoin(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.TotalReadRows < th.FilteringJoinMinRows {
		return nil
	}
	if float64(s.TotalRowsProduced) >= float64(s.TotalReadRows)*th.FilteringJoinRatio {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagFilteringJoin,
		Label:     "Late filtering",
		Severity:  models.SeverityWarning,
		Detail:    fmt.Sprintf("Reads %d rows to return %d; push filters below the join.", s.TotalReadRows, s.TotalRowsProduced),
		ImpactPct: byteShare(s.TotalReadRows-s.TotalRowsProduced, s.TotalReadRows),
		Estimated: true,
	}
}

func checkHighQueueRatio(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.AvgExecuteMs <= 0 {
		return nil
	}
	ratio := s.AvgQueueMs / s.AvgExecuteMs
	if ratio <= th.QueueExecuteRatio {
		return nil
	}
	severity := models.SeverityWarning
	if ratio > th.QueueExecuteRatio*3 {
		severity = models.SeverityCritical
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagHighQueueRatio,
		Label:     "Queuing exceeds work",
		Severity:  severity,
		Detail:    fmt.Sprintf("Queue wait is %.0f%% of execution time; concurrency, not the query, is the bottleneck.", ratio*100),
		ImpactPct: timeShare(s.AvgQueueMs, s),
		Estimated: true,
	}
}

func checkColdQuery(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.AvgComputeWaitMs <= float64(th.ColdQueryWaitMs) {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagColdQuery,
		Label:     "Cold warehouse starts",
		Severity:  severityAt(int64(s.AvgComputeWaitMs), th.ColdQueryWaitMs, 3),
		Detail:    fmt.Sprintf("Average %s spent waiting for compute to start; runs land on a stopped warehouse.", humanMs(s.AvgComputeWaitMs)),
		ImpactPct: timeShare(s.AvgComputeWaitMs, s),
		Estimated: true,
	}
}

func checkCompilationHeavy(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if s.AvgCompileMs <= s.AvgExecuteMs || s.AvgCompileMs <= float64(th.CompilationHeavyMinMs) {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:      models.FlagCompilationHeavy,
		Label:     "Compilation-dominated",
		Severity:  models.SeverityWarning,
		Detail:    fmt.Sprintf("Planning (%s) outweighs execution (%s); simplify the statement or reuse prepared plans.", humanMs(s.AvgCompileMs), humanMs(s.AvgExecuteMs)),
		ImpactPct: timeShare(s.AvgCompileMs, s),
		Estimated: true,
	}
}

func checkMaterializedViewFit(c *models.Candidate, th config.FlagThresholds) *models.PerformanceFlagFinding {
	s := c.Stats
	if !strings.EqualFold(c.StatementType, "SELECT") {
		return nil
	}
	if s.Count < th.MVCandidateMinCount || s.CacheHitRate >= th.MVCandidateMaxCache || s.TotalReadBytes <= 0 {
		return nil
	}
	return &models.PerformanceFlagFinding{
		Kind:     models.FlagMaterializedViewFit,
		Label:    "Materialized view candidate",
		Severity: models.SeverityWarning,
		Detail:   fmt.Sprintf("Read-heavy SELECT repeated %d times with a %.0f%% cache hit rate; precomputing it would serve all runs.", s.Count, s.CacheHitRate*100),
	}
}

func extractSampleTables(c *models.Candidate) []string {
	if c.SampleQuery == "" {
		return nil
	}
	return fingerprint.ExtractTables(c.SampleQuery)
}
