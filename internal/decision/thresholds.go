package decision

import (
	"fmt"

	"github.com/ayltai/espartan/internal/model"
)

// Threshold steps applied by Increment and Decrement. Both bounds move
// together and are derived from ThresholdOff alone.
const (
	IncrementOffStep = 0.5
	DecrementOnStep  = 1.0
	DecrementOffStep = 0.5
)

// Limits bounds the heating band. A zero Limits disables the check.
type Limits struct {
	Min float64
	Max float64
}

func (l Limits) check(cfg model.Configuration) error {
	if l.Max <= l.Min {
		return nil
	}
	if cfg.ThresholdOn < l.Min || cfg.ThresholdOff > l.Max {
		return fmt.Errorf("%w: [%.1f, %.1f] outside [%.1f, %.1f]",
			ErrThresholdOutOfRange, cfg.ThresholdOn, cfg.ThresholdOff, l.Min, l.Max)
	}
	return nil
}

func Increment(cfg model.Configuration, limits Limits) (model.Configuration, error) {
	next := cfg
	next.ThresholdOn = cfg.ThresholdOff
	next.ThresholdOff = cfg.ThresholdOff + IncrementOffStep

	if err := limits.check(next); err != nil {
		return cfg, err
	}
	return next, nil
}

func Decrement(cfg model.Configuration, limits Limits) (model.Configuration, error) {
	next := cfg
	next.ThresholdOn = cfg.ThresholdOff - DecrementOnStep
	next.ThresholdOff = cfg.ThresholdOff - DecrementOffStep

	if err := limits.check(next); err != nil {
		return cfg, err
	}
	return next, nil
}

func WithStrategy(cfg model.Configuration, strategy string) (model.Configuration, error) {
	s, err := ParseStrategy(strategy)
	if err != nil {
		return cfg, err
	}

	next := cfg
	next.DecisionStrategy = string(s)
	return next, nil
}
