// Package series reshapes telemetry into rows for a multi-series chart.
package series

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/ayltai/espartan/internal/model"
)

// Point is one chart row: every device that reported at exactly Timestamp
// contributes one value. Timestamps are not bucketed or resampled.
type Point struct {
	Timestamp time.Time
	Values    map[string]model.Fixed
}

func (p Point) MarshalJSON() ([]byte, error) {
	row := make(map[string]any, len(p.Values)+1)
	for id, v := range p.Values {
		row[id] = v.Float()
	}
	row["timestamp"] = p.Timestamp.UnixMilli()
	return json.Marshal(row)
}

type Domain struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Build returns rows in ascending timestamp order for samples of dataType
// within [now-window, now]. deviceIDs restricts the devices charted; nil
// charts every device. When a device reports twice at one timestamp the
// later sample in input order wins.
func Build(samples []model.Sample, dataType model.DataType, deviceIDs []string, window time.Duration, now time.Time) []Point {
	selected := selectSamples(samples, dataType, deviceIDs, window, now)

	points := make([]Point, 0, len(selected))
	index := make(map[int64]int, len(selected))

	for _, s := range selected {
		ts := s.Timestamp.UnixNano()
		i, ok := index[ts]
		if !ok {
			i = len(points)
			index[ts] = i
			points = append(points, Point{
				Timestamp: s.Timestamp,
				Values:    make(map[string]model.Fixed, 1),
			})
		}
		points[i].Values[s.DeviceID] = s.Value
	}

	return points
}

// XDomain spans from the window start to the newest matching sample inside
// the window. It reports false when the window holds no matching sample, so
// callers never scale an empty or inverted axis.
func XDomain(samples []model.Sample, dataType model.DataType, window time.Duration, now time.Time) (Domain, bool) {
	selected := selectSamples(samples, dataType, nil, window, now)
	if len(selected) == 0 {
		return Domain{}, false
	}
	return Domain{Start: now.Add(-window), End: selected[len(selected)-1].Timestamp}, true
}

// selectSamples filters and stably sorts, so the fold in Build sees samples
// in chronological order with ties kept in input order.
func selectSamples(samples []model.Sample, dataType model.DataType, deviceIDs []string, window time.Duration, now time.Time) []model.Sample {
	var allowed map[string]struct{}
	if deviceIDs != nil {
		allowed = make(map[string]struct{}, len(deviceIDs))
		for _, id := range deviceIDs {
			allowed[id] = struct{}{}
		}
	}

	start := now.Add(-window)
	out := make([]model.Sample, 0, len(samples))
	for _, s := range samples {
		if s.DataType != dataType {
			continue
		}
		if s.Timestamp.Before(start) || s.Timestamp.After(now) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[s.DeviceID]; !ok {
				continue
			}
		}
		out = append(out, s)
	}

	slices.SortStableFunc(out, func(a, b model.Sample) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}
