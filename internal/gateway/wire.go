package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ayltai/espartan/internal/model"
)

// Wire records use the server's snake_case names. They never leave this
// package.

type wireConfiguration struct {
	ThresholdOn      float64 `json:"threshold_on"`
	ThresholdOff     float64 `json:"threshold_off"`
	DecisionStrategy string  `json:"decision_strategy"`
}

func (w wireConfiguration) toModel() model.Configuration {
	return model.Configuration{
		ThresholdOn:      w.ThresholdOn,
		ThresholdOff:     w.ThresholdOff,
		DecisionStrategy: w.DecisionStrategy,
	}
}

func configurationToWire(c model.Configuration) wireConfiguration {
	return wireConfiguration{
		ThresholdOn:      c.ThresholdOn,
		ThresholdOff:     c.ThresholdOff,
		DecisionStrategy: c.DecisionStrategy,
	}
}

type wireDevice struct {
	ID           string         `json:"id"`
	Name         string         `json:"display_name"`
	Capabilities []string       `json:"capabilities"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

func (w wireDevice) toModel() model.Device {
	caps := make([]model.Capability, 0, len(w.Capabilities))
	for _, c := range w.Capabilities {
		caps = append(caps, model.Capability(c))
	}
	return model.Device{
		ID:           w.ID,
		Name:         w.Name,
		Capabilities: caps,
		Parameters:   w.Parameters,
	}
}

func deviceToWire(d model.Device) wireDevice {
	caps := make([]string, 0, len(d.Capabilities))
	for _, c := range d.Capabilities {
		caps = append(caps, string(c))
	}
	return wireDevice{
		ID:           d.ID,
		Name:         d.Name,
		Capabilities: caps,
		Parameters:   d.Parameters,
	}
}

type wireTelemetry struct {
	ID        int64    `json:"id"`
	DeviceID  string   `json:"device_id"`
	DataType  string   `json:"data_type"`
	Value     int64    `json:"value"`
	Timestamp wireTime `json:"timestamp"`
}

func (w wireTelemetry) toModel() model.Sample {
	return model.Sample{
		ID:        w.ID,
		DeviceID:  w.DeviceID,
		DataType:  model.DataType(w.DataType),
		Value:     model.Fixed(w.Value),
		Timestamp: time.Time(w.Timestamp),
	}
}

func samplesFromWire(records []wireTelemetry) []model.Sample {
	samples := make([]model.Sample, 0, len(records))
	for _, r := range records {
		samples = append(samples, r.toModel())
	}
	return samples
}

// wireTime accepts RFC 3339 timestamps with or without a zone; zoneless
// values are UTC.
type wireTime time.Time

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode timestamp: %w", err)
	}
	s = strings.TrimSpace(s)

	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = wireTime(parsed.UTC())
		return nil
	}
	for _, layout := range zonelessLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*t = wireTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp %q", s)
}
