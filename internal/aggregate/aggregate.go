// Package aggregate reduces telemetry windows to the scalar values the
// thermostat decision works on. Everything here is pure: no I/O, no state
// between calls, and the caller supplies the clock.
package aggregate

import (
	"time"

	"github.com/ayltai/espartan/internal/model"
)

// Value is an aggregate that may be missing. The zero Value is NoData.
type Value struct {
	Fixed model.Fixed
	OK    bool
}

var NoData = Value{}

func Some(v model.Fixed) Value {
	return Value{Fixed: v, OK: true}
}

func (v Value) String() string {
	if !v.OK {
		return "no data"
	}
	return v.Fixed.String()
}

type Result struct {
	Min   Value
	Avg   Value
	Max   Value
	Count int
}

// Aggregate filters samples to dataType and to timestamps at or after
// now-window, then reduces them. A non-positive window disables the time
// filter. An empty selection yields NoData for every field.
func Aggregate(samples []model.Sample, dataType model.DataType, window time.Duration, now time.Time) Result {
	var (
		sum      int64
		count    int
		min, max model.Fixed
	)

	cutoff := now.Add(-window)
	for _, s := range samples {
		if s.DataType != dataType {
			continue
		}
		if window > 0 && s.Timestamp.Before(cutoff) {
			continue
		}

		if count == 0 || s.Value < min {
			min = s.Value
		}
		if count == 0 || s.Value > max {
			max = s.Value
		}
		sum += int64(s.Value)
		count++
	}

	if count == 0 {
		return Result{}
	}

	return Result{
		Min:   Some(min),
		Avg:   Some(model.Fixed(divRound(sum, int64(count)))),
		Max:   Some(max),
		Count: count,
	}
}

// divRound divides rounding half away from zero. n must be positive.
func divRound(sum, n int64) int64 {
	q, r := sum/n, sum%n
	if r < 0 {
		r = -r
	}
	if 2*r >= n {
		if sum >= 0 {
			q++
		} else {
			q--
		}
	}
	return q
}

// Latest returns the value of the most recent sample for the device and
// data type, regardless of any window. Equal timestamps resolve to the one
// seen last.
func Latest(samples []model.Sample, deviceID string, dataType model.DataType) Value {
	s, ok := latest(samples, func(s model.Sample) bool {
		return s.DeviceID == deviceID && s.DataType == dataType
	})
	if !ok {
		return NoData
	}
	return Some(s.Value)
}

// LatestWithValue finds the most recent sample carrying an exact value,
// e.g. the last time a mailbox inbox was opened.
func LatestWithValue(samples []model.Sample, deviceID string, dataType model.DataType, value model.Fixed) (model.Sample, bool) {
	return latest(samples, func(s model.Sample) bool {
		return s.DeviceID == deviceID && s.DataType == dataType && s.Value == value
	})
}

// LatestPerDevice returns the most recent value of dataType for every
// device that reported one.
func LatestPerDevice(samples []model.Sample, dataType model.DataType) map[string]model.Fixed {
	newest := make(map[string]model.Sample)
	for _, s := range samples {
		if s.DataType != dataType {
			continue
		}
		if cur, ok := newest[s.DeviceID]; !ok || !s.Timestamp.Before(cur.Timestamp) {
			newest[s.DeviceID] = s
		}
	}

	out := make(map[string]model.Fixed, len(newest))
	for id, s := range newest {
		out[id] = s.Value
	}
	return out
}

func latest(samples []model.Sample, match func(model.Sample) bool) (model.Sample, bool) {
	var (
		found model.Sample
		ok    bool
	)
	for _, s := range samples {
		if !match(s) {
			continue
		}
		if !ok || !s.Timestamp.Before(found.Timestamp) {
			found, ok = s, true
		}
	}
	return found, ok
}
