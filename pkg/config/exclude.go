package config

import (
	"path"
	"strings"
)

// Normalize trims config patterns and removes empty values.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.ExcludeWarehouses = normalizePatterns(c.ExcludeWarehouses)
	c.ExcludeUsers = normalizePatterns(c.ExcludeUsers)
}

// IsWarehouseExcluded reports whether a warehouse id or name matches the
// exclude patterns.
func (c *Config) IsWarehouseExcluded(warehouse string) bool {
	if c == nil || len(c.ExcludeWarehouses) == 0 {
		return false
	}

	value := normalizePattern(warehouse)
	if value == "" {
		return false
	}

	for _, pattern := range c.ExcludeWarehouses {
		if patternMatches(pattern, value) {
			return true
		}
	}

	return false
}

// IsUserExcluded reports whether user matches the exclude patterns. Service
// principals that only run health probes are the usual entries here.
func (c *Config) IsUserExcluded(user string) bool {
	if c == nil || len(c.ExcludeUsers) == 0 {
		return false
	}

	value := normalizePattern(user)
	if value == "" {
		return false
	}

	for _, pattern := range c.ExcludeUsers {
		if patternMatches(pattern, value) {
			return true
		}
	}

	return false
}

func normalizePatterns(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, pattern := range values {
		p := normalizePattern(pattern)
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	return normalized
}

func normalizePattern(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func patternMatches(pattern, value string) bool {
	normalizedPattern := normalizePattern(pattern)
	normalizedValue := normalizePattern(value)
	if normalizedPattern == "" || normalizedValue == "" {
		return false
	}

	// Invalid glob patterns are treated as exact matches.
	matched, err := path.Match(normalizedPattern, normalizedValue)
	if err == nil {
		return matched
	}
	return normalizedPattern == normalizedValue
}
