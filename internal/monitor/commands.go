package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ayltai/espartan/internal/cache"
	"github.com/ayltai/espartan/internal/decision"
	"github.com/ayltai/espartan/internal/model"
)

// Configuration writes replace the whole record: the cached copy is taken,
// one field is changed and the result is sent back.

func (m *Monitor) IncrementThreshold(ctx context.Context) (model.Configuration, error) {
	return m.updateConfiguration(ctx, "increment threshold", func(cfg model.Configuration) (model.Configuration, error) {
		return decision.Increment(cfg, m.limits())
	})
}

func (m *Monitor) DecrementThreshold(ctx context.Context) (model.Configuration, error) {
	return m.updateConfiguration(ctx, "decrement threshold", func(cfg model.Configuration) (model.Configuration, error) {
		return decision.Decrement(cfg, m.limits())
	})
}

func (m *Monitor) SetStrategy(ctx context.Context, strategy string) (model.Configuration, error) {
	return m.updateConfiguration(ctx, "set strategy", func(cfg model.Configuration) (model.Configuration, error) {
		return decision.WithStrategy(cfg, strategy)
	})
}

// ToggleDetection flips detection on the front door sensor.
func (m *Monitor) ToggleDetection(ctx context.Context) (model.Device, error) {
	s, ok := m.snapshot(func() *cache.Handle { return m.door })
	if !ok {
		return model.Device{}, ErrNotConfigured
	}
	device, loaded := cache.ValueOf[model.Device](s)
	if !loaded {
		return model.Device{}, ErrNotLoaded
	}

	next := device.WithDetectionEnabled(!device.DetectionEnabled())
	err := m.cache.Mutate(ctx, func(ctx context.Context) error {
		return m.gateway.SetDevice(ctx, next)
	}, TagDevice)
	if err != nil {
		return model.Device{}, fmt.Errorf("failed to toggle detection: %w", err)
	}

	m.log.Info("detection toggled",
		slog.String("device_id", next.ID),
		slog.Bool("enabled", next.DetectionEnabled()),
	)
	return next, nil
}

func (m *Monitor) updateConfiguration(ctx context.Context, op string, change func(model.Configuration) (model.Configuration, error)) (model.Configuration, error) {
	s, ok := m.snapshot(func() *cache.Handle { return m.configuration })
	if !ok {
		return model.Configuration{}, ErrNotStarted
	}
	current, loaded := cache.ValueOf[model.Configuration](s)
	if !loaded {
		return model.Configuration{}, ErrNotLoaded
	}

	next, err := change(current)
	if err != nil {
		return current, err
	}

	err = m.cache.Mutate(ctx, func(ctx context.Context) error {
		return m.gateway.SetConfiguration(ctx, next)
	}, TagConfig)
	if err != nil {
		return current, fmt.Errorf("failed to %s: %w", op, err)
	}

	m.log.Info("configuration updated",
		slog.String("op", op),
		slog.Float64("threshold_on", next.ThresholdOn),
		slog.Float64("threshold_off", next.ThresholdOff),
		slog.String("strategy", next.DecisionStrategy),
	)
	return next, nil
}

func (m *Monitor) limits() decision.Limits {
	return decision.Limits{
		Min: m.cfg.Heating.MinTemperature,
		Max: m.cfg.Heating.MaxTemperature,
	}
}
