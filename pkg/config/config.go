package config

import "time"

// Config holds all runtime configuration
type Config struct {
	// Telemetry store settings
	TelemetryDSN   string
	QueryTimeout   time.Duration
	BatchSize      int
	MaxRows        int
	LookbackPeriod time.Duration
	RateLimit      int // collector queries per second

	// Exclusions
	ExcludeWarehouses []string
	ExcludeUsers      []string

	// Output settings
	OutputDir string
	Format    string

	// Analysis settings
	MinImpactPct       float64 // filterAndRank floor for estimated findings
	ScoreGate          int     // analyze exits with findings code at/above this score, 0 disables
	TopUsers           int
	ServerlessUnitCost float64 // dollars per DBU for serverless comparison, 0 = unknown
	Flags              FlagThresholds
	Sizing             SizingThresholds

	// Baseline settings
	BaselinePath   string
	UpdateBaseline bool

	// Server settings
	ServerPort int

	// Operational flags
	Verbose bool
	DryRun  bool
}

// FlagThresholds are the firing thresholds for the performance flag rules.
// Zero values are replaced by defaults at load time, so callers can override
// any subset without restating the rest.
type FlagThresholds struct {
	LongRunningP95Ms      int64   `yaml:"long_running_p95_ms"`      // default 5m
	HighSpillBytes        int64   `yaml:"high_spill_bytes"`         // default 1 GiB
	HighShuffleBytes      int64   `yaml:"high_shuffle_bytes"`       // default 10 GiB
	LowCacheHitRate       float64 `yaml:"low_cache_hit_rate"`       // default 0.3
	LowCacheHitMinCount   int     `yaml:"low_cache_hit_min_count"`  // default 10
	LowPruningEfficiency  float64 `yaml:"low_pruning_efficiency"`   // default 0.5
	HighQueueMs           int64   `yaml:"high_queue_ms"`            // default 60s
	HighCompileMs         int64   `yaml:"high_compile_ms"`          // default 10s
	FrequentCount         int     `yaml:"frequent_count"`           // default 100
	CacheMissMinCount     int     `yaml:"cache_miss_min_count"`     // default 10
	LargeWriteBytes       int64   `yaml:"large_write_bytes"`        // default 10 GiB
	JoinExplosionRatio    float64 `yaml:"join_explosion_ratio"`     // default 2.0 (produced vs read rows)
	FilteringJoinRatio    float64 `yaml:"filtering_join_ratio"`     // default 0.01
	FilteringJoinMinRows  int64   `yaml:"filtering_join_min_rows"`  // default 1M read rows
	QueueExecuteRatio     float64 `yaml:"queue_execute_ratio"`      // default 0.5
	ColdQueryWaitMs       int64   `yaml:"cold_query_wait_ms"`       // default 30s
	CompilationHeavyMinMs int64   `yaml:"compilation_heavy_min_ms"` // default 5s
	MVCandidateMinCount   int     `yaml:"mv_candidate_min_count"`   // default 50
	MVCandidateMaxCache   float64 `yaml:"mv_candidate_max_cache"`   // default 0.5
}

// SizingThresholds are the knobs for the warehouse recommendation engine.
// Day-level thresholds classify "bad days"; sustained pressure means bad
// days at or above SustainedDays within the 7-day window.
type SizingThresholds struct {
	SpillBadDayBytes     int64   `yaml:"spill_bad_day_bytes"`     // default 0.5 GiB/day
	QueueBadDayMinutes   float64 `yaml:"queue_bad_day_minutes"`   // default 2 min/day
	ColdBadDayMinutes    float64 `yaml:"cold_bad_day_minutes"`    // default 1 min/day
	SustainedDays        int     `yaml:"sustained_days"`          // default 3
	HighConfidenceDays   int     `yaml:"high_confidence_days"`    // default 5
	HighConfidenceQueries int64  `yaml:"high_confidence_queries"` // default 100
	QueueExecuteRatio    float64 `yaml:"queue_execute_ratio"`     // default 0.5
	QueueRatioMinQueries int64   `yaml:"queue_ratio_min_queries"` // default 50
	LowPressureSpillBytes int64  `yaml:"low_pressure_spill_bytes"` // default 0.1 GiB
	LowPressureQueueMin  float64 `yaml:"low_pressure_queue_min"`  // default 1 min
	LowPressureTotalMin  float64 `yaml:"low_pressure_total_min"`  // default 1 min combined
	DownsizeMinActiveDays int    `yaml:"downsize_min_active_days"` // default 3
	DownsizeMinQueries   int64   `yaml:"downsize_min_queries"`    // default 50
	ColdStartTotalMin    float64 `yaml:"cold_start_total_min"`    // default 1 min
	AutoStopLowMinutes   int     `yaml:"auto_stop_low_minutes"`   // default 5
	AutoStopStepUp       int     `yaml:"auto_stop_step_up"`       // default 10
	AutoStopCapMinutes   int     `yaml:"auto_stop_cap_minutes"`   // default 30
	AutoStopHighMinutes  int     `yaml:"auto_stop_high_minutes"`  // default 30
	AutoStopStepDown     int     `yaml:"auto_stop_step_down"`     // default 15
	AutoStopFloorMinutes int     `yaml:"auto_stop_floor_minutes"` // default 10
	MaxClusterCap        int     `yaml:"max_cluster_cap"`         // default 10
	ClusterStep          int     `yaml:"cluster_step"`            // default 2
}

const (
	gib = int64(1) << 30
	mib = int64(1) << 20
)

// DefaultFlagThresholds returns the documented rule defaults.
func DefaultFlagThresholds() FlagThresholds {
	return FlagThresholds{
		LongRunningP95Ms:      5 * 60 * 1000,
		HighSpillBytes:        1 * gib,
		HighShuffleBytes:      10 * gib,
		LowCacheHitRate:       0.3,
		LowCacheHitMinCount:   10,
		LowPruningEfficiency:  0.5,
		HighQueueMs:           60 * 1000,
		HighCompileMs:         10 * 1000,
		FrequentCount:         100,
		CacheMissMinCount:     10,
		LargeWriteBytes:       10 * gib,
		JoinExplosionRatio:    2.0,
		FilteringJoinRatio:    0.01,
		FilteringJoinMinRows:  1_000_000,
		QueueExecuteRatio:     0.5,
		ColdQueryWaitMs:       30 * 1000,
		CompilationHeavyMinMs: 5 * 1000,
		MVCandidateMinCount:   50,
		MVCandidateMaxCache:   0.5,
	}
}

// DefaultSizingThresholds returns the documented recommendation defaults.
func DefaultSizingThresholds() SizingThresholds {
	return SizingThresholds{
		SpillBadDayBytes:      gib / 2,
		QueueBadDayMinutes:    2,
		ColdBadDayMinutes:     1,
		SustainedDays:         3,
		HighConfidenceDays:    5,
		HighConfidenceQueries: 100,
		QueueExecuteRatio:     0.5,
		QueueRatioMinQueries:  50,
		LowPressureSpillBytes: gib / 10,
		LowPressureQueueMin:   1,
		LowPressureTotalMin:   1,
		DownsizeMinActiveDays: 3,
		DownsizeMinQueries:    50,
		ColdStartTotalMin:     1,
		AutoStopLowMinutes:    5,
		AutoStopStepUp:        10,
		AutoStopCapMinutes:    30,
		AutoStopHighMinutes:   30,
		AutoStopStepDown:      15,
		AutoStopFloorMinutes:  10,
		MaxClusterCap:         10,
		ClusterStep:           2,
	}
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		QueryTimeout:   5 * time.Minute,
		BatchSize:      100000,
		MaxRows:        1000000,
		LookbackPeriod: 7 * 24 * time.Hour,
		RateLimit:      10,
		OutputDir:      "./report",
		Format:         "json",
		MinImpactPct:   10,
		ScoreGate:      0,
		TopUsers:       5,
		Flags:          DefaultFlagThresholds(),
		Sizing:         DefaultSizingThresholds(),
		BaselinePath:   "",
		UpdateBaseline: false,
		ServerPort:     8080,
		Verbose:        false,
		DryRun:         false,
	}
}
