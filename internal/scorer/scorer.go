// Package scorer computes the 0-100 composite impact score that ranks
// query-pattern candidates, together with an explainable factor breakdown.
package scorer

import (
	"math"
	"sort"

	"github.com/warelens/warelens/internal/models"
)

// Factor weights. Empirically tuned, fixed, sum to 1.0.
const (
	weightRuntime   = 0.30
	weightFrequency = 0.25
	weightWaste     = 0.20
	weightCapacity  = 0.15
	weightQuickWin  = 0.10

	logMultiplier = 20.0
)

// Tag thresholds on the individual factors.
const (
	tagSlowRuntime      = 70.0
	tagFrequentScore    = 60.0
	tagHighSpillScore   = 50.0
	tagCapacityScore    = 50.0
	tagMostlyCachedRate = 0.8
	tagQuickWinScore    = 60.0
	tagQuickWinMinCount = 10
)

// Input carries the aggregates the score is computed from.
type Input struct {
	P95Seconds             float64
	Count                  int
	SpilledBytes           int64
	ReadBytes              int64
	AvgCapacityWaitSeconds float64
	CacheHitRate           float64 // 0..1
}

// Result is the score with its decomposition and derived tags.
type Result struct {
	ImpactScore int
	Breakdown   models.ScoreBreakdown
	Tags        []string
}

// Score computes the composite impact score for one candidate. Every factor
// is clamped to [0,100] before weighting, so the composite is also in
// [0,100] for all valid inputs.
func Score(in Input) Result {
	breakdown := models.ScoreBreakdown{
		Runtime:   runtimeFactor(in.P95Seconds),
		Frequency: frequencyFactor(in.Count),
		Waste:     wasteFactor(in.SpilledBytes, in.ReadBytes),
		Capacity:  capacityFactor(in.AvgCapacityWaitSeconds),
		QuickWin:  quickWinFactor(in.CacheHitRate),
	}

	composite := weightRuntime*breakdown.Runtime +
		weightFrequency*breakdown.Frequency +
		weightWaste*breakdown.Waste +
		weightCapacity*breakdown.Capacity +
		weightQuickWin*breakdown.QuickWin

	return Result{
		ImpactScore: int(clamp(math.Round(composite))),
		Breakdown:   breakdown,
		Tags:        tags(breakdown, in),
	}
}

// runtimeFactor grows logarithmically with the p95 latency: the difference
// between 1s and 10s matters more than between 100s and 110s.
func runtimeFactor(p95Seconds float64) float64 {
	if p95Seconds <= 0 {
		return 0
	}
	return clamp(logMultiplier * math.Log(p95Seconds+1))
}

func frequencyFactor(count int) float64 {
	if count <= 0 {
		return 0
	}
	return clamp(logMultiplier * math.Log(float64(count)))
}

// wasteFactor is the spill-to-read ratio: how much of the scanned data
// overflowed to local disk.
func wasteFactor(spilledBytes, readBytes int64) float64 {
	if spilledBytes <= 0 || readBytes <= 0 {
		return 0
	}
	return clamp(100 * float64(spilledBytes) / float64(readBytes))
}

func capacityFactor(avgWaitSeconds float64) float64 {
	if avgWaitSeconds <= 0 {
		return 0
	}
	return clamp(logMultiplier * math.Log(avgWaitSeconds+1))
}

// quickWinFactor rewards patterns that never hit the cache: enabling result
// caching is usually the cheapest fix available.
func quickWinFactor(cacheHitRate float64) float64 {
	return clamp(80 * (1 - cacheHitRate))
}

func tags(b models.ScoreBreakdown, in Input) []string {
	var out []string
	if b.Runtime >= tagSlowRuntime {
		out = append(out, "slow")
	}
	if b.Frequency >= tagFrequentScore {
		out = append(out, "frequent")
	}
	if b.Waste >= tagHighSpillScore {
		out = append(out, "high-spill")
	}
	if b.Capacity >= tagCapacityScore {
		out = append(out, "capacity-bound")
	}
	if in.CacheHitRate > tagMostlyCachedRate {
		out = append(out, "mostly-cached")
	}
	if b.QuickWin >= tagQuickWinScore && in.Count >= tagQuickWinMinCount {
		out = append(out, "quick-win")
	}
	return out
}

// ExplainScore returns up to three factor labels with a factor score of 30
// or more, highest first. It is computed from the breakdown alone so the UI
// can re-derive it without rescoring.
func ExplainScore(b models.ScoreBreakdown) []string {
	type factor struct {
		label string
		score float64
	}
	factors := []factor{
		{"runtime", b.Runtime},
		{"frequency", b.Frequency},
		{"waste", b.Waste},
		{"capacity", b.Capacity},
		{"quick-win", b.QuickWin},
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].score > factors[j].score
	})

	var out []string
	for _, f := range factors {
		if f.score < 30 {
			continue
		}
		out = append(out, f.label)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
