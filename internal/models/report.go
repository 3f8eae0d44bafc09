package models

import "time"

// Report is the complete output structure
type Report struct {
	Tool       string                    `json:"tool"`
	Version    string                    `json:"version"`
	Timestamp  string                    `json:"timestamp"`
	Metadata   Metadata                  `json:"metadata"`
	Candidates []Candidate               `json:"candidates"`
	Warehouses []WarehouseRecommendation `json:"warehouse_recommendations"`
}

// Metadata contains report generation info
type Metadata struct {
	GeneratedAt        time.Time `json:"generated_at"`
	WindowDays         int       `json:"window_days"`
	TelemetryHost      string    `json:"telemetry_host"`
	ExecutionsAnalyzed uint64    `json:"executions_analyzed"`
	AnalysisDuration   string    `json:"analysis_duration"`
	Version            string    `json:"version"`
	BaselineApplied    bool      `json:"baseline_applied"`
}
