package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayltai/espartan/internal/model"
)

// Gateway is the remote home-automation API. Implementations return values
// already normalised to the model types.
type Gateway interface {
	GetConfiguration(ctx context.Context) (model.Configuration, error)
	SetConfiguration(ctx context.Context, cfg model.Configuration) error
	GetDevice(ctx context.Context, id string) (model.Device, error)
	SetDevice(ctx context.Context, device model.Device) error
	ListDevices(ctx context.Context) ([]model.Device, error)
	GetCurrentRelayState(ctx context.Context, deviceID string) (int, error)
	GetAllTelemetry(ctx context.Context) ([]model.Sample, error)
	GetRecentTelemetry(ctx context.Context, window time.Duration) ([]model.Sample, error)
	GetTelemetryHistory(ctx context.Context, deviceID string, window time.Duration) ([]model.Sample, error)
}

// NetworkError is returned once a request has used up its retry budget.
type NetworkError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
