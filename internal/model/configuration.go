package model

type Strategy string

const (
	StrategyMin Strategy = "min"
	StrategyAvg Strategy = "avg"
)

func (s Strategy) Valid() bool {
	return s == StrategyMin || s == StrategyAvg
}

// Configuration is the server-owned heating configuration. The client only
// ever replaces it as a whole.
type Configuration struct {
	ThresholdOn      float64 `json:"thresholdOn"`
	ThresholdOff     float64 `json:"thresholdOff"`
	DecisionStrategy string  `json:"decisionStrategy"`
}
