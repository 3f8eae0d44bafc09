package models

import "time"

// QuerySource identifies which platform surface issued a statement.
// At most one of the fields is populated per execution.
type QuerySource struct {
	DashboardID string `json:"dashboard_id,omitempty"`
	NotebookID  string `json:"notebook_id,omitempty"`
	JobID       string `json:"job_id,omitempty"`
	AlertID     string `json:"alert_id,omitempty"`
	GenieSpace  string `json:"genie_space,omitempty"`
}

// Origin returns a short label for the populated source, or "adhoc".
func (s QuerySource) Origin() string {
	switch {
	case s.DashboardID != "":
		return "dashboard"
	case s.NotebookID != "":
		return "notebook"
	case s.JobID != "":
		return "job"
	case s.AlertID != "":
		return "alert"
	case s.GenieSpace != "":
		return "genie"
	default:
		return "adhoc"
	}
}

// QueryExecution is one finished, failed or canceled statement from the
// platform's query history export. Immutable input, lifetime of one window.
type QueryExecution struct {
	StatementID       string
	WarehouseID       string
	WorkspaceID       string
	User              string
	Query             string
	StatementType     string // 'SELECT', 'INSERT', 'MERGE', ...
	ClientApplication string
	Status            string // 'finished', 'failed', 'canceled'
	ErrorMessage      string
	Source            QuerySource
	StartTime         time.Time
	EndTime           time.Time

	// Phase durations in milliseconds.
	DurationMs    int64 // wall clock, start to end
	CompileMs     int64
	QueueMs       int64 // waiting at capacity
	ComputeWaitMs int64 // waiting for compute provisioning
	ExecuteMs     int64
	FetchMs       int64
	TaskTotalMs   int64 // sum of task time across all cores

	// IO counters.
	ReadBytes     int64
	ReadRows      int64
	RowsProduced  int64
	SpilledBytes  int64
	ShuffledBytes int64
	WrittenBytes  int64
	ReadFiles     int64
	PrunedFiles   int64

	FromResultCache bool
	CacheHitPct     float64 // IO cache read fraction, 0..1
}

// WindowStats holds the per-pattern aggregates for one analysis window.
type WindowStats struct {
	Count              int     `json:"count"`
	P50Ms              int64   `json:"p50_ms"`
	P95Ms              int64   `json:"p95_ms"`
	MaxMs              int64   `json:"max_ms"`
	TotalDurationMs    int64   `json:"total_duration_ms"`
	TotalReadBytes     int64   `json:"total_read_bytes"`
	TotalReadRows      int64   `json:"total_read_rows"`
	TotalRowsProduced  int64   `json:"total_rows_produced"`
	TotalSpilledBytes  int64   `json:"total_spilled_bytes"`
	TotalShuffledBytes int64   `json:"total_shuffled_bytes"`
	TotalWrittenBytes  int64   `json:"total_written_bytes"`
	TotalReadFiles     int64   `json:"total_read_files"`
	TotalPrunedFiles   int64   `json:"total_pruned_files"`
	AvgCompileMs       float64 `json:"avg_compile_ms"`
	AvgQueueMs         float64 `json:"avg_queue_ms"`
	AvgComputeWaitMs   float64 `json:"avg_compute_wait_ms"`
	AvgExecuteMs       float64 `json:"avg_execute_ms"`
	AvgFetchMs         float64 `json:"avg_fetch_ms"`
	PruningEfficiency  float64 `json:"pruning_efficiency"` // averaged over executions that touched files
	Parallelism        float64 `json:"parallelism"`        // avg task-time / wall-time ratio
	CacheHitRate       float64 `json:"cache_hit_rate"`     // 0..1
}

// UserCount is a user (or source) with its execution count.
type UserCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ScoreBreakdown is the per-factor decomposition of an impact score.
// Every factor is clamped to [0,100].
type ScoreBreakdown struct {
	Runtime   float64 `json:"runtime"`
	Frequency float64 `json:"frequency"`
	Waste     float64 `json:"waste"`
	Capacity  float64 `json:"capacity"`
	QuickWin  float64 `json:"quick_win"`
}

// FlagKind names a performance flag rule.
type FlagKind string

const (
	FlagLongRunning         FlagKind = "long_running"
	FlagHighSpill           FlagKind = "high_spill"
	FlagHighShuffle         FlagKind = "high_shuffle"
	FlagLowCacheHit         FlagKind = "low_cache_hit"
	FlagLowPruning          FlagKind = "low_pruning"
	FlagHighQueueTime       FlagKind = "high_queue_time"
	FlagHighCompileTime     FlagKind = "high_compile_time"
	FlagFrequentPattern     FlagKind = "frequent_pattern"
	FlagCacheMiss           FlagKind = "cache_miss"
	FlagLargeWrite          FlagKind = "large_write"
	FlagExplodingJoin       FlagKind = "exploding_join"
	FlagFilteringJoin       FlagKind = "filtering_join"
	FlagHighQueueRatio      FlagKind = "high_queue_ratio"
	FlagColdQuery           FlagKind = "cold_query"
	FlagCompilationHeavy    FlagKind = "compilation_heavy"
	FlagMaterializedViewFit FlagKind = "materialized_view_candidate"
)

// Severity levels for findings and recommendations.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// PerformanceFlagFinding is one threshold-triggered issue on a candidate.
type PerformanceFlagFinding struct {
	Kind      FlagKind `json:"kind"`
	Label     string   `json:"label"`
	Severity  string   `json:"severity"`
	Detail    string   `json:"detail"`
	ImpactPct float64  `json:"impact_pct"` // meaningful only when Estimated
	Estimated bool     `json:"estimated"`
}

// DBTInfo is metadata extracted from dbt-generated query headers.
type DBTInfo struct {
	NodeID      string `json:"node_id,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
	Target      string `json:"target,omitempty"`
}

// Candidate is an aggregated query pattern: one per fingerprint per window.
type Candidate struct {
	Fingerprint       string                   `json:"fingerprint"`
	NormalizedQuery   string                   `json:"normalized_query"`
	Sample            QueryExecution           `json:"-"`
	SampleStatementID string                   `json:"sample_statement_id"`
	SampleQuery       string                   `json:"sample_query"`
	WarehouseID       string                   `json:"warehouse_id"`
	WorkspaceID       string                   `json:"workspace_id"`
	Origin            string                   `json:"origin"`
	StatementType     string                   `json:"statement_type"`
	ClientApplication string                   `json:"client_application"`
	TopUsers          []UserCount              `json:"top_users"`
	Stats             WindowStats              `json:"stats"`
	CostDollars       float64                  `json:"cost_dollars"`
	CostDBUs          float64                  `json:"cost_dbus"`
	Failures          int                      `json:"failures"`
	Cancels           int                      `json:"cancels"`
	ImpactScore       int                      `json:"impact_score"`
	Breakdown         ScoreBreakdown           `json:"score_breakdown"`
	Flags             []PerformanceFlagFinding `json:"flags"`
	DBT               *DBTInfo                 `json:"dbt,omitempty"`
	Tags              []string                 `json:"tags"`
	Status            string                   `json:"status"` // workflow status, owned by the UI layer
}

// WarehouseCostRow is the reported spend for one warehouse over the window.
type WarehouseCostRow struct {
	WarehouseID string
	Dollars     float64
	DBUs        float64
}

// WarehouseConfigRow is the current configuration of one warehouse.
type WarehouseConfigRow struct {
	WarehouseID     string
	Name            string
	Size            string
	MinClusters     int
	MaxClusters     int
	AutoStopMinutes int
	Serverless      bool
}

// WarehouseDayRow is one warehouse-day of pre-aggregated telemetry.
type WarehouseDayRow struct {
	WarehouseID  string
	Date         time.Time
	Queries      int64
	SpilledBytes int64
	QueueMs      int64 // waiting at capacity
	ColdStartMs  int64 // waiting for compute provisioning
	ExecuteMs    int64
	AvgRuntimeMs float64
	P95RuntimeMs float64
}

// WarehouseUserRow is one warehouse/user/source traffic row.
type WarehouseUserRow struct {
	WarehouseID string
	User        string
	Source      string
	Queries     int64
}

// WarehouseHourRow is one warehouse hour-of-day traffic row.
type WarehouseHourRow struct {
	WarehouseID string
	Hour        int // 0..23
	Queries     int64
	QueueMs     int64
}

// HourUsage is one slot of the dense 24-hour usage table.
type HourUsage struct {
	Queries int64 `json:"queries"`
	QueueMs int64 `json:"queue_ms"`
}

// WarehouseHealthMetrics is the 7-day health aggregate for one warehouse.
type WarehouseHealthMetrics struct {
	WarehouseID      string            `json:"warehouse_id"`
	Name             string            `json:"name"`
	Size             string            `json:"size"`
	MinClusters      int               `json:"min_clusters"`
	MaxClusters      int               `json:"max_clusters"`
	AutoStopMinutes  int               `json:"auto_stop_minutes"`
	Serverless       bool              `json:"serverless"`
	TotalQueries     int64             `json:"total_queries"`
	TotalUsers       int               `json:"total_users"`
	SpilledBytes     int64             `json:"spilled_bytes"`
	QueueMinutes     float64           `json:"queue_minutes"`
	ColdStartMinutes float64           `json:"cold_start_minutes"`
	ExecuteMinutes   float64           `json:"execute_minutes"`
	AvgRuntimeMs     float64           `json:"avg_runtime_ms"`
	P95RuntimeMs     float64           `json:"p95_runtime_ms"`
	WeeklyCost       float64           `json:"weekly_cost"`
	WeeklyDBUs       float64           `json:"weekly_dbus"`
	ActiveDays       int               `json:"active_days"`
	SpillBadDays     int               `json:"spill_bad_days"`
	QueueBadDays     int               `json:"queue_bad_days"`
	ColdStartBadDays int               `json:"cold_start_bad_days"`
	Days             []WarehouseDayRow `json:"-"`
	Hours            [24]HourUsage     `json:"hours"`
	TopUsers         []UserCount       `json:"top_users"`
	TopSources       []UserCount       `json:"top_sources"`
}

// RecommendationAction names a sizing recommendation.
type RecommendationAction string

const (
	ActionUpsize           RecommendationAction = "upsize"
	ActionDownsize         RecommendationAction = "downsize"
	ActionAddClusters      RecommendationAction = "add_clusters"
	ActionUpsizeAndScale   RecommendationAction = "upsize_and_scale"
	ActionGoServerless     RecommendationAction = "go_serverless"
	ActionIncreaseAutoStop RecommendationAction = "increase_auto_stop"
	ActionDecreaseAutoStop RecommendationAction = "decrease_auto_stop"
	ActionNoChange         RecommendationAction = "no_change"
)

// Confidence levels for recommendations.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// TargetConfig is the recommended warehouse configuration.
type TargetConfig struct {
	Size            string `json:"size"`
	MinClusters     int    `json:"min_clusters"`
	MaxClusters     int    `json:"max_clusters"`
	AutoStopMinutes int    `json:"auto_stop_minutes"`
}

// ServerlessComparison quantifies a switch to serverless compute.
type ServerlessComparison struct {
	WeeklyCost float64 `json:"weekly_cost"`
	Delta      float64 `json:"delta"` // serverless minus current, negative means savings
}

// WarehouseRecommendation is the single sizing verdict for one warehouse.
type WarehouseRecommendation struct {
	WarehouseID       string                `json:"warehouse_id"`
	Name              string                `json:"name"`
	Action            RecommendationAction  `json:"action"`
	Severity          string                `json:"severity"`
	Confidence        string                `json:"confidence"`
	ConfidenceReason  string                `json:"confidence_reason"`
	Headline          string                `json:"headline"`
	Rationale         string                `json:"rationale"`
	CurrentWeeklyCost float64               `json:"current_weekly_cost"`
	NewWeeklyCost     float64               `json:"new_weekly_cost"`
	CostDelta         float64               `json:"cost_delta"` // new minus current
	WastedMinutes     float64               `json:"wasted_minutes"`
	WastedCost        float64               `json:"wasted_cost"`
	Target            *TargetConfig         `json:"target,omitempty"`
	Serverless        *ServerlessComparison `json:"serverless,omitempty"`
}
