// Package decision classifies a temperature against the heating band.
//
// The band is [ThresholdOn, ThresholdOff]. Classification is stateless; the
// gap between the two thresholds is the only hysteresis, so callers must not
// debounce band changes on top of it.
package decision

import (
	"errors"
	"fmt"

	"github.com/ayltai/espartan/internal/aggregate"
	"github.com/ayltai/espartan/internal/model"
)

var (
	ErrInvalidStrategy     = errors.New("invalid decision strategy")
	ErrThresholdOutOfRange = errors.New("threshold out of range")
)

type Band int

const (
	BandNoData Band = iota
	BandBelow
	BandWithin
	BandAbove
)

func (b Band) String() string {
	switch b {
	case BandBelow:
		return "below"
	case BandWithin:
		return "within"
	case BandAbove:
		return "above"
	default:
		return "no_data"
	}
}

func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Classify compares in fixed point so that thresholds and readings round the
// same way.
func Classify(value model.Fixed, thresholdOn, thresholdOff float64) Band {
	switch {
	case value < model.FixedFromFloat(thresholdOn):
		return BandBelow
	case value > model.FixedFromFloat(thresholdOff):
		return BandAbove
	default:
		return BandWithin
	}
}

func ClassifyValue(v aggregate.Value, thresholdOn, thresholdOff float64) Band {
	if !v.OK {
		return BandNoData
	}
	return Classify(v.Fixed, thresholdOn, thresholdOff)
}

func ParseStrategy(s string) (model.Strategy, error) {
	strategy := model.Strategy(s)
	if !strategy.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
	}
	return strategy, nil
}

// SelectTemperature picks the aggregate the strategy names. Unknown
// strategies are rejected, never defaulted.
func SelectTemperature(strategy string, r aggregate.Result) (aggregate.Value, error) {
	s, err := ParseStrategy(strategy)
	if err != nil {
		return aggregate.NoData, err
	}

	switch s {
	case model.StrategyAvg:
		return r.Avg, nil
	default:
		return r.Min, nil
	}
}

type Assessment struct {
	Temperature  aggregate.Value `json:"-"`
	Strategy     model.Strategy  `json:"strategy"`
	ThresholdOn  float64         `json:"thresholdOn"`
	ThresholdOff float64         `json:"thresholdOff"`
	Band         Band            `json:"band"`
}

func Evaluate(cfg model.Configuration, r aggregate.Result) (Assessment, error) {
	value, err := SelectTemperature(cfg.DecisionStrategy, r)
	if err != nil {
		return Assessment{Band: BandNoData}, err
	}

	return Assessment{
		Temperature:  value,
		Strategy:     model.Strategy(cfg.DecisionStrategy),
		ThresholdOn:  cfg.ThresholdOn,
		ThresholdOff: cfg.ThresholdOff,
		Band:         ClassifyValue(value, cfg.ThresholdOn, cfg.ThresholdOff),
	}, nil
}
