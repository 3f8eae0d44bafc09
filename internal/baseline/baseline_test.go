package baseline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/warelens/warelens/internal/models"
)

func TestCollectFingerprintsSortedAndUnique(t *testing.T) {
	candidates := []models.Candidate{
		{Fingerprint: "ffffffffffffffff"},
		{Fingerprint: "0000000000000001"},
		{Fingerprint: "ffffffffffffffff"},
		{Fingerprint: ""},
	}

	got := CollectFingerprints(candidates)
	want := []string{"0000000000000001", "ffffffffffffffff"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CollectFingerprints = %v, want %v", got, want)
	}
}

func TestSuppressKnownFiltersCandidates(t *testing.T) {
	candidates := []models.Candidate{
		{Fingerprint: "aaaa000000000001", ImpactScore: 90},
		{Fingerprint: "bbbb000000000002", ImpactScore: 70},
		{Fingerprint: "cccc000000000003", ImpactScore: 50},
	}
	known := Set{"bbbb000000000002": {}}

	remaining, suppressed := SuppressKnown(candidates, known)
	if suppressed != 1 {
		t.Fatalf("suppressed = %d, want 1", suppressed)
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d candidates, want 2", len(remaining))
	}
	// Ranking order survives suppression.
	if remaining[0].Fingerprint != "aaaa000000000001" || remaining[1].Fingerprint != "cccc000000000003" {
		t.Fatalf("unexpected remaining order: %+v", remaining)
	}
}

func TestSuppressKnownEmptySetIsNoop(t *testing.T) {
	candidates := []models.Candidate{{Fingerprint: "aaaa000000000001"}}
	remaining, suppressed := SuppressKnown(candidates, Set{})
	if suppressed != 0 || len(remaining) != 1 {
		t.Fatalf("empty baseline must suppress nothing, got %d suppressed", suppressed)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "baseline.json")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("expected missing baseline file to be allowed, got %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty set for missing baseline, got %d", len(loaded))
	}

	set := Set{
		"b": {},
		"a": {},
	}
	if err := Save(path, set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 fingerprints, got %d", len(loaded))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read baseline file: %v", err)
	}
	var file File
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("failed to unmarshal baseline file: %v", err)
	}
	if file.Version != fileVersion {
		t.Fatalf("expected version %d, got %d", fileVersion, file.Version)
	}
	if !reflect.DeepEqual(file.Fingerprints, []string{"a", "b"}) {
		t.Fatalf("expected sorted fingerprints [a b], got %+v", file.Fingerprints)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	payload := `{"version":999,"fingerprints":[]}`
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatalf("failed to write baseline file: %v", err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported baseline version") {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
}

func TestAddAllSkipsEmpty(t *testing.T) {
	set := Set{}
	AddAll(set, []string{"x", "", "y", "x"})
	if !reflect.DeepEqual(Sorted(set), []string{"x", "y"}) {
		t.Fatalf("AddAll result = %v, want [x y]", Sorted(set))
	}
}
