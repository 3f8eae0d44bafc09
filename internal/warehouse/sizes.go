package warehouse

import "strings"

// sizeTier is one rung of the fixed warehouse size ladder. The multiplier is
// the relative DBU burn rate of the tier.
type sizeTier struct {
	name       string
	multiplier int
}

// The ladder is ordered smallest to largest. Lookups past either end return
// false: a warehouse at the edge is treated as already extreme.
var sizeLadder = []sizeTier{
	{"2X-Small", 1},
	{"X-Small", 2},
	{"Small", 4},
	{"Medium", 8},
	{"Large", 16},
	{"X-Large", 32},
	{"2X-Large", 64},
	{"3X-Large", 128},
	{"4X-Large", 256},
}

func sizeIndex(name string) int {
	for i, tier := range sizeLadder {
		if strings.EqualFold(tier.name, name) {
			return i
		}
	}
	return -1
}

// NextSize returns the tier one step up, or false at the top of the ladder
// or for an unknown size.
func NextSize(name string) (string, bool) {
	i := sizeIndex(name)
	if i < 0 || i+1 >= len(sizeLadder) {
		return "", false
	}
	return sizeLadder[i+1].name, true
}

// PreviousSize returns the tier one step down, or false at the bottom of the
// ladder or for an unknown size.
func PreviousSize(name string) (string, bool) {
	i := sizeIndex(name)
	if i <= 0 {
		return "", false
	}
	return sizeLadder[i-1].name, true
}

// SizeMultiplier returns the DBU multiplier for a size, or false for an
// unknown size.
func SizeMultiplier(name string) (int, bool) {
	i := sizeIndex(name)
	if i < 0 {
		return 0, false
	}
	return sizeLadder[i].multiplier, true
}

// costRatio estimates the weekly cost after changing size, scaling linearly
// with the DBU multiplier ratio. Unknown sizes leave the cost unchanged.
func costRatio(fromSize, toSize string) float64 {
	from, okFrom := SizeMultiplier(fromSize)
	to, okTo := SizeMultiplier(toSize)
	if !okFrom || !okTo || from == 0 {
		return 1
	}
	return float64(to) / float64(from)
}
