package warehouse

import (
	"fmt"
	"sort"

	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

// Recommend evaluates the sizing rule chain for every metrics record and
// returns exactly one recommendation per warehouse. serverlessUnitPrice is
// the dollar price per serverless DBU; nil means unknown, which omits the
// serverless cost comparison but never suppresses the action itself. The
// result is ordered by severity, then by wasted cost.
func Recommend(metrics []models.WarehouseHealthMetrics, serverlessUnitPrice *float64, th config.SizingThresholds) ([]models.WarehouseRecommendation, error) {
	out := make([]models.WarehouseRecommendation, 0, len(metrics))
	for i := range metrics {
		m := &metrics[i]
		if m.WarehouseID == "" {
			return nil, fmt.Errorf("metrics record %d has empty warehouse id", i)
		}
		out = append(out, recommendOne(m, serverlessUnitPrice, th))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if severityRank(out[i].Severity) != severityRank(out[j].Severity) {
			return severityRank(out[i].Severity) < severityRank(out[j].Severity)
		}
		return out[i].WastedCost > out[j].WastedCost
	})
	return out, nil
}

func severityRank(severity string) int {
	switch severity {
	case models.SeverityCritical:
		return 0
	case models.SeverityWarning:
		return 1
	default:
		return 2
	}
}

// recommendOne walks the priority chain; the first matching rule wins. The
// chain is total: a record that matches nothing reaches the healthy verdict.
func recommendOne(m *models.WarehouseHealthMetrics, serverlessUnitPrice *float64, th config.SizingThresholds) models.WarehouseRecommendation {
	rec := models.WarehouseRecommendation{
		WarehouseID:       m.WarehouseID,
		Name:              m.Name,
		CurrentWeeklyCost: m.WeeklyCost,
		NewWeeklyCost:     m.WeeklyCost,
	}
	rec.Confidence, rec.ConfidenceReason = confidence(m, th)
	rec.WastedMinutes = m.QueueMinutes + m.ColdStartMinutes
	rec.WastedCost = wastedCost(rec.WastedMinutes, m.ExecuteMinutes, m.WeeklyCost)

	sustainedSpill := m.SpillBadDays >= th.SustainedDays
	sustainedQueue := m.QueueBadDays >= th.SustainedDays
	sustainedCold := m.ColdStartBadDays >= th.SustainedDays
	lowPressure := m.SpilledBytes <= th.LowPressureSpillBytes &&
		m.QueueMinutes <= th.LowPressureQueueMin &&
		rec.WastedMinutes <= th.LowPressureTotalMin

	switch {
	// 1. Sustained cold starts on classic compute: serverless removes the
	// start latency entirely.
	case sustainedCold && !m.Serverless:
		applyServerless(&rec, m, serverlessUnitPrice)

	// 2. Both spill and capacity-queue pressure: grow in both dimensions,
	// falling back to whichever one still has headroom.
	case sustainedSpill && sustainedQueue:
		applyUpsizeAndScale(&rec, m, th)

	// 3. Spill pressure alone: memory per node is short, go one tier up.
	case sustainedSpill:
		applyUpsize(&rec, m)

	// 4. Capacity-queue pressure alone: concurrency is short, add clusters.
	case sustainedQueue:
		applyAddClusters(&rec, m, th)

	// 4b. Queueing dominates execution even though no single day crossed the
	// absolute threshold.
	case queueRatio(m) > th.QueueExecuteRatio && m.TotalQueries >= th.QueueRatioMinQueries && !sustainedSpill:
		applyAddClusters(&rec, m, th)
		rec.Rationale = fmt.Sprintf(
			"Queue time is %.0f%% of execution time across %d queries; the warehouse is undersized for its concurrency even though no single day crossed the sustained threshold.",
			queueRatio(m)*100, m.TotalQueries)

	// 5. Consistently low pressure with real traffic: pay for one tier less.
	case lowPressure && m.ActiveDays >= th.DownsizeMinActiveDays && m.TotalQueries >= th.DownsizeMinQueries && canDownsize(m):
		applyDownsize(&rec, m)

	// 6. Cold-start time with an aggressive auto-stop: keep the warehouse
	// warm a little longer.
	case m.ColdStartMinutes > th.ColdStartTotalMin && m.AutoStopMinutes > 0 && m.AutoStopMinutes < th.AutoStopLowMinutes:
		applyIncreaseAutoStop(&rec, m, th)

	// 7. Low pressure with a lazy auto-stop: stop paying for idle time.
	case lowPressure && m.AutoStopMinutes > th.AutoStopHighMinutes:
		applyDecreaseAutoStop(&rec, m, th)

	// 8. Nothing to do.
	default:
		rec.Action = models.ActionNoChange
		rec.Severity = models.SeverityInfo
		rec.Headline = fmt.Sprintf("%s is healthy", m.Name)
		rec.Rationale = fmt.Sprintf(
			"No sustained spill, queue or cold-start pressure over the last 7 days (%d queries).",
			m.TotalQueries)
	}

	rec.CostDelta = rec.NewWeeklyCost - rec.CurrentWeeklyCost
	return rec
}

// confidence derives trust from pressure persistence and traffic volume.
func confidence(m *models.WarehouseHealthMetrics, th config.SizingThresholds) (string, string) {
	maxBadDays := m.SpillBadDays
	if m.QueueBadDays > maxBadDays {
		maxBadDays = m.QueueBadDays
	}
	if m.ColdStartBadDays > maxBadDays {
		maxBadDays = m.ColdStartBadDays
	}

	switch {
	case maxBadDays >= th.HighConfidenceDays && m.TotalQueries >= th.HighConfidenceQueries:
		return models.ConfidenceHigh, fmt.Sprintf("pressure on %d of 7 days with %d queries", maxBadDays, m.TotalQueries)
	case maxBadDays >= th.SustainedDays:
		return models.ConfidenceMedium, fmt.Sprintf("pressure on %d of 7 days", maxBadDays)
	case maxBadDays >= 1:
		return models.ConfidenceLow, fmt.Sprintf("pressure on only %d of 7 days", maxBadDays)
	default:
		return models.ConfidenceLow, "no sustained pressure pattern"
	}
}

// wastedCost prices the minutes queries spent waiting rather than working.
// Zero waste or zero spend resolves to zero, never a division fault.
func wastedCost(wastedMinutes, activeMinutes, weeklyCost float64) float64 {
	if wastedMinutes <= 0 || weeklyCost <= 0 {
		return 0
	}
	return wastedMinutes * (weeklyCost / (activeMinutes + wastedMinutes))
}

func queueRatio(m *models.WarehouseHealthMetrics) float64 {
	if m.ExecuteMinutes <= 0 {
		return 0
	}
	return m.QueueMinutes / m.ExecuteMinutes
}

func canDownsize(m *models.WarehouseHealthMetrics) bool {
	_, ok := PreviousSize(m.Size)
	return ok
}

func applyServerless(rec *models.WarehouseRecommendation, m *models.WarehouseHealthMetrics, unitPrice *float64) {
	rec.Action = models.ActionGoServerless
	rec.Severity = models.SeverityWarning
	rec.Headline = fmt.Sprintf("Move %s to serverless compute", m.Name)
	rec.Rationale = fmt.Sprintf(
		"Cold starts exceeded the daily threshold on %d of 7 days (%.1f min total); serverless compute starts in seconds.",
		m.ColdStartBadDays, m.ColdStartMinutes)

	if unitPrice != nil {
		serverlessCost := m.WeeklyDBUs * *unitPrice
		rec.Serverless = &models.ServerlessComparison{
			WeeklyCost: serverlessCost,
			Delta:      serverlessCost - m.WeeklyCost,
		}
		rec.NewWeeklyCost = serverlessCost
	}
}

func applyUpsizeAndScale(rec *models.WarehouseRecommendation, m *models.WarehouseHealthMetrics, th config.SizingThresholds) {
	nextSize, canUpsize := NextSize(m.Size)
	targetClusters, canScale := scaledClusters(m.MaxClusters, th)

	switch {
	case canUpsize && canScale:
		rec.Action = models.ActionUpsizeAndScale
		rec.Severity = models.SeverityCritical
		rec.Headline = fmt.Sprintf("Upsize %s to %s and raise max clusters to %d", m.Name, nextSize, targetClusters)
		rec.Rationale = fmt.Sprintf(
			"Spill exceeded the daily threshold on %d of 7 days and capacity queueing on %d; the warehouse is short on both memory and concurrency.",
			m.SpillBadDays, m.QueueBadDays)
		rec.Target = &models.TargetConfig{Size: nextSize, MinClusters: m.MinClusters, MaxClusters: targetClusters, AutoStopMinutes: m.AutoStopMinutes}
		rec.NewWeeklyCost = m.WeeklyCost * costRatio(m.Size, nextSize) * clusterRatio(m.MaxClusters, targetClusters)
	case canUpsize:
		applyUpsize(rec, m)
		rec.Rationale += fmt.Sprintf(" Max clusters is already at %d, so only the size can grow.", m.MaxClusters)
	case canScale:
		applyAddClusters(rec, m, th)
		rec.Rationale += fmt.Sprintf(" %s is already the largest size, so only the cluster count can grow.", m.Size)
	default:
		rec.Action = models.ActionNoChange
		rec.Severity = models.SeverityCritical
		rec.Headline = fmt.Sprintf("%s is at maximum size and cluster count", m.Name)
		rec.Rationale = fmt.Sprintf(
			"Sustained spill (%d of 7 days) and queueing (%d of 7 days) but no larger configuration exists; optimize the heaviest query patterns instead.",
			m.SpillBadDays, m.QueueBadDays)
	}
}

func applyUpsize(rec *models.WarehouseRecommendation, m *models.WarehouseHealthMetrics) {
	nextSize, ok := NextSize(m.Size)
	if !ok {
		rec.Action = models.ActionNoChange
		rec.Severity = models.SeverityWarning
		rec.Headline = fmt.Sprintf("%s is already the largest size", m.Name)
		rec.Rationale = fmt.Sprintf(
			"Spill exceeded the daily threshold on %d of 7 days (%.1f GiB total) but no larger size exists; optimize the spilling patterns instead.",
			m.SpillBadDays, gib(m.SpilledBytes))
		return
	}

	rec.Action = models.ActionUpsize
	rec.Severity = models.SeverityWarning
	rec.Headline = fmt.Sprintf("Upsize %s from %s to %s", m.Name, m.Size, nextSize)
	rec.Rationale = fmt.Sprintf(
		"Spill exceeded the daily threshold on %d of 7 days (%.1f GiB total); more memory per node removes the spill.",
		m.SpillBadDays, gib(m.SpilledBytes))
	rec.Target = &models.TargetConfig{Size: nextSize, MinClusters: m.MinClusters, MaxClusters: m.MaxClusters, AutoStopMinutes: m.AutoStopMinutes}
	rec.NewWeeklyCost = m.WeeklyCost * costRatio(m.Size, nextSize)
}

func applyAddClusters(rec *models.WarehouseRecommendation, m *models.WarehouseHealthMetrics, th config.SizingThresholds) {
	targetClusters, ok := scaledClusters(m.MaxClusters, th)
	if !ok {
		rec.Action = models.ActionNoChange
		rec.Severity = models.SeverityWarning
		rec.Headline = fmt.Sprintf("%s is already at the cluster cap", m.Name)
		rec.Rationale = fmt.Sprintf(
			"Capacity queueing on %d of 7 days (%.1f min total) but max clusters is already %d; spread the load or optimize the heaviest patterns.",
			m.QueueBadDays, m.QueueMinutes, m.MaxClusters)
		return
	}

	rec.Action = models.ActionAddClusters
	rec.Severity = models.SeverityWarning
	rec.Headline = fmt.Sprintf("Raise %s max clusters from %d to %d", m.Name, m.MaxClusters, targetClusters)
	rec.Rationale = fmt.Sprintf(
		"Capacity queueing on %d of 7 days (%.1f min total); additional clusters absorb the concurrent load.",
		m.QueueBadDays, m.QueueMinutes)
	rec.Target = &models.TargetConfig{Size: m.Size, MinClusters: m.MinClusters, MaxClusters: targetClusters, AutoStopMinutes: m.AutoStopMinutes}
	rec.NewWeeklyCost = m.WeeklyCost * clusterRatio(m.MaxClusters, targetClusters)
}

func applyDownsize(rec *models.WarehouseRecommendation, m *models.WarehouseHealthMetrics) {
	prevSize, _ := PreviousSize(m.Size)
	rec.Action = models.ActionDownsize
	rec.Severity = models.SeverityInfo
	rec.Headline = fmt.Sprintf("Downsize %s from %s to %s", m.Name, m.Size, prevSize)
	rec.Rationale = fmt.Sprintf(
		"No spill, queue or cold-start pressure across %d active days and %d queries; a smaller size serves this load.",
		m.ActiveDays, m.TotalQueries)
	rec.Target = &models.TargetConfig{Size: prevSize, MinClusters: m.MinClusters, MaxClusters: m.MaxClusters, AutoStopMinutes: m.AutoStopMinutes}
	rec.NewWeeklyCost = m.WeeklyCost * costRatio(m.Size, prevSize)
}

func applyIncreaseAutoStop(rec *models.WarehouseRecommendation, m *models.WarehouseHealthMetrics, th config.SizingThresholds) {
	target := m.AutoStopMinutes + th.AutoStopStepUp
	if target > th.AutoStopCapMinutes {
		target = th.AutoStopCapMinutes
	}
	rec.Action = models.ActionIncreaseAutoStop
	rec.Severity = models.SeverityInfo
	rec.Headline = fmt.Sprintf("Raise %s auto-stop from %d to %d minutes", m.Name, m.AutoStopMinutes, target)
	rec.Rationale = fmt.Sprintf(
		"%.1f minutes of cold starts this week with auto-stop at %d minutes; the warehouse stops between closely spaced runs.",
		m.ColdStartMinutes, m.AutoStopMinutes)
	rec.Target = &models.TargetConfig{Size: m.Size, MinClusters: m.MinClusters, MaxClusters: m.MaxClusters, AutoStopMinutes: target}
}

func applyDecreaseAutoStop(rec *models.WarehouseRecommendation, m *models.WarehouseHealthMetrics, th config.SizingThresholds) {
	target := m.AutoStopMinutes - th.AutoStopStepDown
	if target < th.AutoStopFloorMinutes {
		target = th.AutoStopFloorMinutes
	}
	rec.Action = models.ActionDecreaseAutoStop
	rec.Severity = models.SeverityInfo
	rec.Headline = fmt.Sprintf("Lower %s auto-stop from %d to %d minutes", m.Name, m.AutoStopMinutes, target)
	rec.Rationale = fmt.Sprintf(
		"Light load with auto-stop at %d minutes; the warehouse idles warm far longer than its traffic needs.",
		m.AutoStopMinutes)
	rec.Target = &models.TargetConfig{Size: m.Size, MinClusters: m.MinClusters, MaxClusters: m.MaxClusters, AutoStopMinutes: target}
}

// scaledClusters returns the max-cluster target after adding up to
// ClusterStep clusters under the cap. ok is false when already at or above
// the cap.
func scaledClusters(current int, th config.SizingThresholds) (int, bool) {
	if current >= th.MaxClusterCap {
		return current, false
	}
	target := current + th.ClusterStep
	if target > th.MaxClusterCap {
		target = th.MaxClusterCap
	}
	return target, true
}

// clusterRatio scales cost linearly with the max cluster count.
func clusterRatio(current, target int) float64 {
	if current <= 0 {
		return 1
	}
	return float64(target) / float64(current)
}

func gib(bytes int64) float64 {
	return float64(bytes) / float64(1<<30)
}
