package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".warelens.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".warelens.yml"
)

// FileConfig represents values loaded from a .warelens.yaml file.
// Threshold sections override individual fields; unset fields keep defaults.
type FileConfig struct {
	TelemetryDSN      string            `yaml:"telemetry_dsn"`
	Lookback          string            `yaml:"lookback"`
	QueryTimeout      string            `yaml:"query_timeout"`
	Format            string            `yaml:"format"`
	ExcludeWarehouses []string          `yaml:"exclude_warehouses"`
	ExcludeUsers      []string          `yaml:"exclude_users"`
	MinImpactPct      *float64          `yaml:"min_impact_pct"`
	ScoreGate         *int              `yaml:"score_gate"`
	ServerlessUnitCost *float64         `yaml:"serverless_unit_cost"`
	Flags             *FlagThresholds   `yaml:"flags"`
	Sizing            *SizingThresholds `yaml:"sizing"`
}

// Normalize trims and removes empty items from list fields.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.ExcludeWarehouses = normalizeList(fc.ExcludeWarehouses)
	fc.ExcludeUsers = normalizeList(fc.ExcludeUsers)
	fc.TelemetryDSN = strings.TrimSpace(fc.TelemetryDSN)
	fc.Lookback = strings.TrimSpace(fc.Lookback)
	fc.QueryTimeout = strings.TrimSpace(fc.QueryTimeout)
	fc.Format = strings.TrimSpace(fc.Format)
}

// Apply overlays the file values onto cfg. Threshold structs replace the
// whole section when present; zero fields inside them fall back to defaults.
func (fc *FileConfig) Apply(cfg *Config) error {
	if fc == nil || cfg == nil {
		return nil
	}

	if fc.TelemetryDSN != "" {
		cfg.TelemetryDSN = fc.TelemetryDSN
	}
	if fc.Lookback != "" {
		d, err := ParseDuration(fc.Lookback)
		if err != nil {
			return fmt.Errorf("invalid lookback in config file: %w", err)
		}
		cfg.LookbackPeriod = d
	}
	if fc.QueryTimeout != "" {
		d, err := ParseDuration(fc.QueryTimeout)
		if err != nil {
			return fmt.Errorf("invalid query_timeout in config file: %w", err)
		}
		cfg.QueryTimeout = d
	}
	if fc.Format != "" {
		cfg.Format = fc.Format
	}
	if len(fc.ExcludeWarehouses) > 0 {
		cfg.ExcludeWarehouses = fc.ExcludeWarehouses
	}
	if len(fc.ExcludeUsers) > 0 {
		cfg.ExcludeUsers = fc.ExcludeUsers
	}
	if fc.MinImpactPct != nil {
		cfg.MinImpactPct = *fc.MinImpactPct
	}
	if fc.ScoreGate != nil {
		cfg.ScoreGate = *fc.ScoreGate
	}
	if fc.ServerlessUnitCost != nil {
		cfg.ServerlessUnitCost = *fc.ServerlessUnitCost
	}
	if fc.Flags != nil {
		cfg.Flags = fillFlagDefaults(*fc.Flags)
	}
	if fc.Sizing != nil {
		cfg.Sizing = fillSizingDefaults(*fc.Sizing)
	}

	return nil
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}

	cfg.Normalize()
	return cfg, nil
}

func fillFlagDefaults(ft FlagThresholds) FlagThresholds {
	def := DefaultFlagThresholds()
	if ft.LongRunningP95Ms == 0 {
		ft.LongRunningP95Ms = def.LongRunningP95Ms
	}
	if ft.HighSpillBytes == 0 {
		ft.HighSpillBytes = def.HighSpillBytes
	}
	if ft.HighShuffleBytes == 0 {
		ft.HighShuffleBytes = def.HighShuffleBytes
	}
	if ft.LowCacheHitRate == 0 {
		ft.LowCacheHitRate = def.LowCacheHitRate
	}
	if ft.LowCacheHitMinCount == 0 {
		ft.LowCacheHitMinCount = def.LowCacheHitMinCount
	}
	if ft.LowPruningEfficiency == 0 {
		ft.LowPruningEfficiency = def.LowPruningEfficiency
	}
	if ft.HighQueueMs == 0 {
		ft.HighQueueMs = def.HighQueueMs
	}
	if ft.HighCompileMs == 0 {
		ft.HighCompileMs = def.HighCompileMs
	}
	if ft.FrequentCount == 0 {
		ft.FrequentCount = def.FrequentCount
	}
	if ft.CacheMissMinCount == 0 {
		ft.CacheMissMinCount = def.CacheMissMinCount
	}
	if ft.LargeWriteBytes == 0 {
		ft.LargeWriteBytes = def.LargeWriteBytes
	}
	if ft.JoinExplosionRatio == 0 {
		ft.JoinExplosionRatio = def.JoinExplosionRatio
	}
	if ft.FilteringJoinRatio == 0 {
		ft.FilteringJoinRatio = def.FilteringJoinRatio
	}
	if ft.FilteringJoinMinRows == 0 {
		ft.FilteringJoinMinRows = def.FilteringJoinMinRows
	}
	if ft.QueueExecuteRatio == 0 {
		ft.QueueExecuteRatio = def.QueueExecuteRatio
	}
	if ft.ColdQueryWaitMs == 0 {
		ft.ColdQueryWaitMs = def.ColdQueryWaitMs
	}
	if ft.CompilationHeavyMinMs == 0 {
		ft.CompilationHeavyMinMs = def.CompilationHeavyMinMs
	}
	if ft.MVCandidateMinCount == 0 {
		ft.MVCandidateMinCount = def.MVCandidateMinCount
	}
	if ft.MVCandidateMaxCache == 0 {
		ft.MVCandidateMaxCache = def.MVCandidateMaxCache
	}
	return ft
}

func fillSizingDefaults(st SizingThresholds) SizingThresholds {
	def := DefaultSizingThresholds()
	if st.SpillBadDayBytes == 0 {
		st.SpillBadDayBytes = def.SpillBadDayBytes
	}
	if st.QueueBadDayMinutes == 0 {
		st.QueueBadDayMinutes = def.QueueBadDayMinutes
	}
	if st.ColdBadDayMinutes == 0 {
		st.ColdBadDayMinutes = def.ColdBadDayMinutes
	}
	if st.SustainedDays == 0 {
		st.SustainedDays = def.SustainedDays
	}
	if st.HighConfidenceDays == 0 {
		st.HighConfidenceDays = def.HighConfidenceDays
	}
	if st.HighConfidenceQueries == 0 {
		st.HighConfidenceQueries = def.HighConfidenceQueries
	}
	if st.QueueExecuteRatio == 0 {
		st.QueueExecuteRatio = def.QueueExecuteRatio
	}
	if st.QueueRatioMinQueries == 0 {
		st.QueueRatioMinQueries = def.QueueRatioMinQueries
	}
	if st.LowPressureSpillBytes == 0 {
		st.LowPressureSpillBytes = def.LowPressureSpillBytes
	}
	if st.LowPressureQueueMin == 0 {
		st.LowPressureQueueMin = def.LowPressureQueueMin
	}
	if st.LowPressureTotalMin == 0 {
		st.LowPressureTotalMin = def.LowPressureTotalMin
	}
	if st.DownsizeMinActiveDays == 0 {
		st.DownsizeMinActiveDays = def.DownsizeMinActiveDays
	}
	if st.DownsizeMinQueries == 0 {
		st.DownsizeMinQueries = def.DownsizeMinQueries
	}
	if st.ColdStartTotalMin == 0 {
		st.ColdStartTotalMin = def.ColdStartTotalMin
	}
	if st.AutoStopLowMinutes == 0 {
		st.AutoStopLowMinutes = def.AutoStopLowMinutes
	}
	if st.AutoStopStepUp == 0 {
		st.AutoStopStepUp = def.AutoStopStepUp
	}
	if st.AutoStopCapMinutes == 0 {
		st.AutoStopCapMinutes = def.AutoStopCapMinutes
	}
	if st.AutoStopHighMinutes == 0 {
		st.AutoStopHighMinutes = def.AutoStopHighMinutes
	}
	if st.AutoStopStepDown == 0 {
		st.AutoStopStepDown = def.AutoStopStepDown
	}
	if st.AutoStopFloorMinutes == 0 {
		st.AutoStopFloorMinutes = def.AutoStopFloorMinutes
	}
	if st.MaxClusterCap == 0 {
		st.MaxClusterCap = def.MaxClusterCap
	}
	if st.ClusterStep == 0 {
		st.ClusterStep = def.ClusterStep
	}
	return st
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
