package content

import (
	"fmt"
	"strings"
)

// Tier is a texture quality level. Tiers are ordered by declaration, so the
// usual integer comparisons give the quality ordering (Low < Ultra).
type Tier int

// Known tiers.
const (
	Low Tier = iota
	Medium
	High
	VeryHigh
	Ultra
)

// TierCount is the number of quality tiers.
const TierCount = 5

// AllTiers returns every tier from Low to Ultra.
func AllTiers() []Tier {
	return []Tier{Low, Medium, High, VeryHigh, Ultra}
}

// TierFromInt converts a digit in [0,4] to a Tier. ok is false for any other value.
func TierFromInt(n int) (t Tier, ok bool) {
	if n < int(Low) || n > int(Ultra) {
		return 0, false
	}
	return Tier(n), true
}

// Int returns the tier's rank.
func (t Tier) Int() int {
	return int(t)
}

// Valid reports whether t is one of the declared tiers.
func (t Tier) Valid() bool {
	_, ok := TierFromInt(int(t))
	return ok
}

func (t Tier) String() string {
	switch t {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case VeryHigh:
		return "Very High"
	case Ultra:
		return "Ultra"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier parses a tier name as typed on the command line.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "0":
		return Low, nil
	case "medium", "1":
		return Medium, nil
	case "high", "2":
		return High, nil
	case "veryhigh", "very-high", "very high", "3":
		return VeryHigh, nil
	case "ultra", "4":
		return Ultra, nil
	}
	return 0, fmt.Errorf("unknown quality tier %q", s)
}
