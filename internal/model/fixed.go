package model

import (
	"math"
	"strconv"
)

// Fixed is a fixed-point quantity in hundredths, the unit telemetry values
// are reported in (21.37°C is Fixed(2137)). Aggregation and threshold
// comparisons stay in Fixed; Float is only for presentation.
type Fixed int64

func FixedFromFloat(f float64) Fixed {
	return Fixed(math.Round(f * 100))
}

func (f Fixed) Float() float64 {
	return float64(f) / 100
}

func (f Fixed) String() string {
	return strconv.FormatFloat(f.Float(), 'f', 2, 64)
}
