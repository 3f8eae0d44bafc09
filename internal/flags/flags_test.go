package flags

import (
	"strings"
	"testing"

	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

func quietCandidate() *models.Candidate {
	return &models.Candidate{
		StatementType: "SELECT",
		SampleQuery:   "SELECT * FROM sales.orders",
		Stats: models.WindowStats{
			Count:             5,
			P50Ms:             800,
			P95Ms:             2_000,
			AvgCompileMs:      50,
			AvgQueueMs:        10,
			AvgExecuteMs:      1_500,
			AvgFetchMs:        40,
			TotalReadBytes:    1 << 20,
			TotalReadRows:     1_000,
			TotalRowsProduced: 900,
			CacheHitRate:      0.9,
			PruningEfficiency: 0.9,
			TotalReadFiles:    10,
			TotalPrunedFiles:  90,
		},
	}
}

func findKind(findings []models.PerformanceFlagFinding, kind models.FlagKind) *models.PerformanceFlagFinding {
	for i := range findings {
		if findings[i].Kind == kind {
			return &findings[i]
		}
	}
	return nil
}

func TestComputeQuietCandidateHasNoFindings(t *testing.T) {
	findings := Compute(quietCandidate(), config.DefaultFlagThresholds(), nil)
	if len(findings) != 0 {
		t.Fatalf("expected no findings for a quiet candidate, got %v", findings)
	}
}

func TestRuleFiring(t *testing.T) {
	th := config.DefaultFlagThresholds()

	cases := []struct {
		name         string
		mutate       func(*models.Candidate)
		kind         models.FlagKind
		wantSeverity string
		estimated    bool
	}{
		{
			name:         "long_running_warning",
			mutate:       func(c *models.Candidate) { c.Stats.P95Ms = th.LongRunningP95Ms + 1 },
			kind:         models.FlagLongRunning,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name:         "long_running_critical_at_3x",
			mutate:       func(c *models.Candidate) { c.Stats.P95Ms = th.LongRunningP95Ms*3 + 1 },
			kind:         models.FlagLongRunning,
			wantSeverity: models.SeverityCritical,
			estimated:    true,
		},
		{
			name:         "high_spill_critical_at_5x",
			mutate:       func(c *models.Candidate) { c.Stats.TotalSpilledBytes = th.HighSpillBytes*5 + 1 },
			kind:         models.FlagHighSpill,
			wantSeverity: models.SeverityCritical,
			estimated:    true,
		},
		{
			name:         "high_shuffle",
			mutate:       func(c *models.Candidate) { c.Stats.TotalShuffledBytes = th.HighShuffleBytes + 1 },
			kind:         models.FlagHighShuffle,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name: "low_cache_hit",
			mutate: func(c *models.Candidate) {
				c.Stats.Count = 20
				c.Stats.CacheHitRate = 0.1
			},
			kind:         models.FlagLowCacheHit,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name:         "low_pruning",
			mutate:       func(c *models.Candidate) { c.Stats.PruningEfficiency = 0.2 },
			kind:         models.FlagLowPruning,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name:         "low_pruning_critical_below_fifth",
			mutate:       func(c *models.Candidate) { c.Stats.PruningEfficiency = 0.05 },
			kind:         models.FlagLowPruning,
			wantSeverity: models.SeverityCritical,
			estimated:    true,
		},
		{
			name:         "high_queue_time",
			mutate:       func(c *models.Candidate) { c.Stats.AvgQueueMs = float64(th.HighQueueMs + 1) },
			kind:         models.FlagHighQueueTime,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name:         "high_compile_time",
			mutate:       func(c *models.Candidate) { c.Stats.AvgCompileMs = float64(th.HighCompileMs + 1) },
			kind:         models.FlagHighCompileTime,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name:         "frequent_pattern_unestimated",
			mutate:       func(c *models.Candidate) { c.Stats.Count = th.FrequentCount },
			kind:         models.FlagFrequentPattern,
			wantSeverity: models.SeverityWarning,
			estimated:    false,
		},
		{
			name:         "frequent_pattern_critical_at_10x",
			mutate:       func(c *models.Candidate) { c.Stats.Count = th.FrequentCount * 10 },
			kind:         models.FlagFrequentPattern,
			wantSeverity: models.SeverityCritical,
			estimated:    false,
		},
		{
			name: "cache_miss",
			mutate: func(c *models.Candidate) {
				c.Stats.Count = 20
				c.Stats.CacheHitRate = 0
			},
			kind:         models.FlagCacheMiss,
			wantSeverity: models.SeverityWarning,
			estimated:    false,
		},
		{
			name:         "large_write",
			mutate:       func(c *models.Candidate) { c.Stats.TotalWrittenBytes = th.LargeWriteBytes + 1 },
			kind:         models.FlagLargeWrite,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name: "exploding_join",
			mutate: func(c *models.Candidate) {
				c.Stats.TotalReadRows = 1_000
				c.Stats.TotalRowsProduced = 5_000
			},
			kind:         models.FlagExplodingJoin,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name: "filtering_join",
			mutate: func(c *models.Candidate) {
				c.Stats.TotalReadRows = 10_000_000
				c.Stats.TotalRowsProduced = 100
			},
			kind:         models.FlagFilteringJoin,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name: "high_queue_ratio_below_absolute_threshold",
			mutate: func(c *models.Candidate) {
				c.Stats.AvgQueueMs = 1_200
				c.Stats.AvgExecuteMs = 1_000
			},
			kind:         models.FlagHighQueueRatio,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name:         "cold_query",
			mutate:       func(c *models.Candidate) { c.Stats.AvgComputeWaitMs = float64(th.ColdQueryWaitMs + 1) },
			kind:         models.FlagColdQuery,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name: "compilation_heavy",
			mutate: func(c *models.Candidate) {
				c.Stats.AvgCompileMs = 8_000
				c.Stats.AvgExecuteMs = 500
			},
			kind:         models.FlagCompilationHeavy,
			wantSeverity: models.SeverityWarning,
			estimated:    true,
		},
		{
			name: "materialized_view_candidate",
			mutate: func(c *models.Candidate) {
				c.Stats.Count = 80
				c.Stats.CacheHitRate = 0.1
			},
			kind:         models.FlagMaterializedViewFit,
			wantSeverity: models.SeverityWarning,
			estimated:    false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := quietCandidate()
			tc.mutate(c)
			findings := Compute(c, th, nil)
			f := findKind(findings, tc.kind)
			if f == nil {
				t.Fatalf("expected %s to fire, got %v", tc.kind, findings)
			}
			if f.Severity != tc.wantSeverity {
				t.Fatalf("severity = %s, want %s", f.Severity, tc.wantSeverity)
			}
			if f.Estimated != tc.estimated {
				t.Fatalf("estimated = %v, want %v", f.Estimated, tc.estimated)
			}
			if f.Estimated && (f.ImpactPct < 0 || f.ImpactPct > 100) {
				t.Fatalf("impact out of range: %f", f.ImpactPct)
			}
		})
	}
}

func TestHighSpillImpactFormula(t *testing.T) {
	c := quietCandidate()
	c.Stats.TotalReadBytes = 3 << 30
	c.Stats.TotalSpilledBytes = 1 << 30
	findings := Compute(c, config.DefaultFlagThresholds(), nil)
	f := findKind(findings, models.FlagHighSpill)
	if f == nil {
		t.Fatalf("expected high_spill to fire")
	}
	// spilled / (read + spilled) = 1/4
	if f.ImpactPct < 24.9 || f.ImpactPct > 25.1 {
		t.Fatalf("impact = %f, want 25", f.ImpactPct)
	}
}

func TestMVCandidateRequiresSelect(t *testing.T) {
	c := quietCandidate()
	c.StatementType = "INSERT"
	c.Stats.Count = 80
	c.Stats.CacheHitRate = 0.1
	findings := Compute(c, config.DefaultFlagThresholds(), nil)
	if f := findKind(findings, models.FlagMaterializedViewFit); f != nil {
		t.Fatalf("materialized view rule should not fire for INSERT")
	}
}

func TestFilterAndRank(t *testing.T) {
	findings := []models.PerformanceFlagFinding{
		{Kind: models.FlagLongRunning, ImpactPct: 12, Estimated: true},
		{Kind: models.FlagFrequentPattern},
		{Kind: models.FlagHighSpill, ImpactPct: 60, Estimated: true},
		{Kind: models.FlagLowCacheHit, ImpactPct: 5, Estimated: true},
		{Kind: models.FlagCacheMiss},
	}

	ranked, err := FilterAndRank(findings, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantKinds := []models.FlagKind{
		models.FlagHighSpill,
		models.FlagLongRunning,
		models.FlagFrequentPattern,
		models.FlagCacheMiss,
	}
	if len(ranked) != len(wantKinds) {
		t.Fatalf("ranked = %v, want kinds %v", ranked, wantKinds)
	}
	for i, k := range wantKinds {
		if ranked[i].Kind != k {
			t.Fatalf("position %d = %s, want %s", i, ranked[i].Kind, k)
		}
	}

	// Estimated findings below the floor are never returned.
	for _, f := range ranked {
		if f.Estimated && f.ImpactPct < 10 {
			t.Fatalf("finding below floor survived: %+v", f)
		}
	}
}

func TestFilterAndRankRejectsNegativeFloor(t *testing.T) {
	if _, err := FilterAndRank(nil, -1); err == nil {
		t.Fatalf("expected error for negative minImpactPct")
	} else if !strings.Contains(err.Error(), "minImpactPct") {
		t.Fatalf("error should identify the field, got %v", err)
	}
}

func TestTableContextEnrichment(t *testing.T) {
	th := config.DefaultFlagThresholds()
	c := quietCandidate()
	c.Stats.PruningEfficiency = 0.2

	bare := Compute(c, th, nil)
	enriched := Compute(c, th, map[string]TableContext{
		"sales.orders": {Name: "sales.orders", SizeBytes: 10 << 30},
	})

	bareFinding := findKind(bare, models.FlagLowPruning)
	enrichedFinding := findKind(enriched, models.FlagLowPruning)
	if bareFinding == nil || enrichedFinding == nil {
		t.Fatalf("low_pruning should fire with and without context")
	}
	if enrichedFinding.ImpactPct != bareFinding.ImpactPct {
		t.Fatalf("enrichment changed impact: %f != %f", enrichedFinding.ImpactPct, bareFinding.ImpactPct)
	}
	if enrichedFinding.Severity != bareFinding.Severity {
		t.Fatalf("enrichment changed severity")
	}
	if !strings.Contains(enrichedFinding.Detail, "sales.orders") {
		t.Fatalf("expected enriched detail to mention the table, got %q", enrichedFinding.Detail)
	}
	if len(enrichedFinding.Detail) <= len(bareFinding.Detail) {
		t.Fatalf("enrichment should append text")
	}
}
