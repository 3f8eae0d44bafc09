// Package baseline persists acknowledged query-pattern fingerprints so that
// repeat runs only surface new patterns.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/warelens/warelens/internal/models"
)

const (
	// DefaultPath is used when --update-baseline is enabled without an
	// explicit --baseline path.
	DefaultPath = ".warelens-baseline.json"
	fileVersion = 1
)

// Set stores acknowledged pattern fingerprints.
type Set map[string]struct{}

// File is the persisted baseline JSON payload.
type File struct {
	Version      int      `json:"version"`
	Fingerprints []string `json:"fingerprints"`
}

// Load reads a baseline file. Missing files return an empty set.
func Load(path string) (Set, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("baseline path is empty")
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("read baseline file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse baseline file: %w", err)
	}
	if file.Version != 0 && file.Version != fileVersion {
		return nil, fmt.Errorf("unsupported baseline version: %d", file.Version)
	}

	set := Set{}
	for _, fingerprint := range file.Fingerprints {
		if fingerprint == "" {
			continue
		}
		set[fingerprint] = struct{}{}
	}

	return set, nil
}

// Save writes a baseline file with sorted, unique fingerprints.
func Save(path string, set Set) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return errors.New("baseline path is empty")
	}

	dir := filepath.Dir(trimmed)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create baseline directory: %w", err)
		}
	}

	payload := File{
		Version:      fileVersion,
		Fingerprints: Sorted(set),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline file: %w", err)
	}

	if err := os.WriteFile(trimmed, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}

	return nil
}

// AddAll inserts fingerprints into the target set.
func AddAll(target Set, fingerprints []string) {
	for _, fingerprint := range fingerprints {
		if fingerprint == "" {
			continue
		}
		target[fingerprint] = struct{}{}
	}
}

// Sorted returns sorted fingerprints from a set.
func Sorted(set Set) []string {
	fingerprints := make([]string, 0, len(set))
	for fingerprint := range set {
		fingerprints = append(fingerprints, fingerprint)
	}
	sort.Strings(fingerprints)
	return fingerprints
}

// CollectFingerprints extracts the fingerprints of all candidates.
func CollectFingerprints(candidates []models.Candidate) []string {
	set := Set{}
	for _, c := range candidates {
		if c.Fingerprint != "" {
			set[c.Fingerprint] = struct{}{}
		}
	}
	return Sorted(set)
}

// SuppressKnown removes candidates whose fingerprint is already in the
// baseline set. Ranking order of the remaining candidates is preserved.
func SuppressKnown(candidates []models.Candidate, known Set) (remaining []models.Candidate, suppressed int) {
	if len(known) == 0 {
		return candidates, 0
	}

	remaining = make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, exists := known[c.Fingerprint]; exists {
			suppressed++
			continue
		}
		remaining = append(remaining, c)
	}
	return remaining, suppressed
}
