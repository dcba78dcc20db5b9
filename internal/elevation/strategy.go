package elevation

import (
	"fmt"
	"strings"
)

// Strategy selects how the posts around a sample point are combined.
type Strategy int

const (
	Nearest Strategy = iota
	Linear
	// Planar and TIN are accepted but sampled like Linear.
	Planar
	TIN
	Bilinear
)

var strategyNames = [...]string{
	Nearest:  "nearest",
	Linear:   "linear",
	Planar:   "planar",
	TIN:      "tin",
	Bilinear: "bilinear",
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy parses a strategy name, ignoring case.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range strategyNames {
		if n == name {
			return Strategy(s), nil
		}
	}
	return 0, fmt.Errorf("unknown interpolation strategy %q (want nearest, linear, planar, tin or bilinear)", name)
}

// desired is the number of posts a single source must supply to be used on
// its own.
func (s Strategy) desired() int {
	switch s {
	case Linear:
		return 2
	case Planar, TIN:
		return 3
	case Bilinear:
		return 4
	default:
		return 1
	}
}

// required is the number of posts the interpolation itself needs before it
// degrades to nearest.
func (s Strategy) required() int {
	switch s {
	case Linear, Planar, TIN:
		return 2
	case Bilinear:
		return 4
	default:
		return 1
	}
}
