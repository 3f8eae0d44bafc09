package warehouse

import "testing"

func TestSizeLadderSteps(t *testing.T) {
	if next, ok := NextSize("Small"); !ok || next != "Medium" {
		t.Fatalf("NextSize(Small) = %q/%v, want Medium/true", next, ok)
	}
	if _, ok := NextSize("4X-Large"); ok {
		t.Fatalf("NextSize at the top of the ladder must return false")
	}
	if prev, ok := PreviousSize("Medium"); !ok || prev != "Small" {
		t.Fatalf("PreviousSize(Medium) = %q/%v, want Small/true", prev, ok)
	}
	if _, ok := PreviousSize("2X-Small"); ok {
		t.Fatalf("PreviousSize at the bottom of the ladder must return false")
	}
	if _, ok := NextSize("Gigantic"); ok {
		t.Fatalf("unknown size must return false")
	}
}

func TestSizeLookupsIgnoreCase(t *testing.T) {
	if next, ok := NextSize("small"); !ok || next != "Medium" {
		t.Fatalf("NextSize(small) = %q/%v, want Medium/true", next, ok)
	}
	if mult, ok := SizeMultiplier("x-large"); !ok || mult != 32 {
		t.Fatalf("SizeMultiplier(x-large) = %d/%v, want 32/true", mult, ok)
	}
}

func TestCostRatio(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
		want float64
	}{
		{name: "one_step_up_doubles", from: "Small", to: "Medium", want: 2},
		{name: "one_step_down_halves", from: "Medium", to: "Small", want: 0.5},
		{name: "unknown_size_unchanged", from: "Small", to: "Mystery", want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := costRatio(tc.from, tc.to); got != tc.want {
				t.Fatalf("costRatio(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}
