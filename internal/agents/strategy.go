// Strategy profiles: the closed set of forwarder behaviours and the parameter row each one
// uses for pricing, resale and capacity decisions.
package agents

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStrategy is returned for a strategy tag outside the closed set.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy tags a forwarder's behaviour. The zero value is invalid.
type Strategy uint8

const (
	StrategyAggressive Strategy = iota + 1
	StrategyConservative
	StrategyRational
)

// Strategies lists every valid strategy in reporting order.
var Strategies = []Strategy{StrategyAggressive, StrategyConservative, StrategyRational}

// String returns the lower-case tag.
func (s Strategy) String() string {
	switch s {
	case StrategyAggressive:
		return "aggressive"
	case StrategyConservative:
		return "conservative"
	case StrategyRational:
		return "rational"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the defined strategies.
func (s Strategy) Valid() bool {
	_, ok := profiles[s]
	return ok
}

// ParseStrategy converts a tag into a Strategy.
func ParseStrategy(tag string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "aggressive":
		return StrategyAggressive, nil
	case "conservative":
		return StrategyConservative, nil
	case "rational":
		return StrategyRational, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, tag)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Range is a closed-open interval for uniform draws.
type Range struct {
	Lo, Hi float64
}

// Profile is the parameter row behind a strategy.
type Profile struct {
	// TargetMargin is the internal margin priced in when a secondary market exists.
	TargetMargin float64

	// PrimaryMarkup multiplies the base cost of a primary bid without a secondary market.
	PrimaryMarkup Range

	// SellTrigger is the load, as a multiple of capacity, above which surplus is listed.
	SellTrigger float64

	// ReserveRatio is the fraction of the original revenue asked as reserve on resale.
	ReserveRatio float64

	// ResaleBid scales willingness-to-pay when bidding on the secondary market.
	ResaleBid Range

	// FreeCapacityOnly restricts secondary purchases to ones with zero marginal cost.
	FreeCapacityOnly bool
}

var profiles = map[Strategy]Profile{
	StrategyAggressive: {
		TargetMargin:  0.10,
		PrimaryMarkup: Range{1.05, 1.15},
		SellTrigger:   1.1,
		ReserveRatio:  0.85,
		ResaleBid:     Range{0.90, 1.0},
	},
	StrategyConservative: {
		TargetMargin:     0.30,
		PrimaryMarkup:    Range{1.25, 1.40},
		SellTrigger:      1.0,
		ReserveRatio:     0.75,
		ResaleBid:        Range{0.70, 0.85},
		FreeCapacityOnly: true,
	},
	StrategyRational: {
		TargetMargin:  0.20,
		PrimaryMarkup: Range{1.10, 1.30},
		SellTrigger:   1.0,
		ReserveRatio:  0.85,
		ResaleBid:     Range{0.80, 0.95},
	},
}

// ProfileOf returns the parameter row for s. Unknown strategies fall back to rational.
func ProfileOf(s Strategy) Profile {
	if p, ok := profiles[s]; ok {
		return p
	}
	return profiles[StrategyRational]
}
