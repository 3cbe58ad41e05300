package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"

	"github.com/ayltai/espartan/internal/config"
	"github.com/ayltai/espartan/internal/lib/logger/sl"
	"github.com/ayltai/espartan/internal/model"
)

const (
	settingsPath   = "/settings/1"
	telemetryLimit = 2300
)

type HTTPGateway struct {
	log     *slog.Logger
	baseURL string
	client  *http.Client
	retry   config.RetryConfig
}

func NewHTTPGateway(log *slog.Logger, cfg *config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		log:     log.With(slog.String("component", "gateway")),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry: cfg.Retry,
	}
}

func (g *HTTPGateway) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

func (g *HTTPGateway) GetConfiguration(ctx context.Context) (model.Configuration, error) {
	var w wireConfiguration
	if err := g.get(ctx, "get configuration", settingsPath, nil, &w); err != nil {
		return model.Configuration{}, err
	}
	return w.toModel(), nil
}

func (g *HTTPGateway) SetConfiguration(ctx context.Context, cfg model.Configuration) error {
	return g.put(ctx, "set configuration", settingsPath, configurationToWire(cfg))
}

func (g *HTTPGateway) GetDevice(ctx context.Context, id string) (model.Device, error) {
	var w wireDevice
	if err := g.get(ctx, "get device", "/devices/"+url.PathEscape(id), nil, &w); err != nil {
		return model.Device{}, err
	}
	return w.toModel(), nil
}

func (g *HTTPGateway) SetDevice(ctx context.Context, device model.Device) error {
	return g.put(ctx, "set device", "/devices/"+url.PathEscape(device.ID), deviceToWire(device))
}

func (g *HTTPGateway) ListDevices(ctx context.Context) ([]model.Device, error) {
	var records []wireDevice
	if err := g.get(ctx, "list devices", "/devices", nil, &records); err != nil {
		return nil, err
	}

	devices := make([]model.Device, 0, len(records))
	for _, r := range records {
		devices = append(devices, r.toModel())
	}
	return devices, nil
}

func (g *HTTPGateway) GetCurrentRelayState(ctx context.Context, deviceID string) (int, error) {
	var state int
	if err := g.get(ctx, "get relay state", "/relays/current/"+url.PathEscape(deviceID), nil, &state); err != nil {
		return 0, err
	}
	return state, nil
}

func (g *HTTPGateway) GetAllTelemetry(ctx context.Context) ([]model.Sample, error) {
	query := url.Values{}
	query.Set("order_by", "timestamp desc")
	query.Set("limit", strconv.Itoa(telemetryLimit))

	var records []wireTelemetry
	if err := g.get(ctx, "get telemetry", "/telemetry", query, &records); err != nil {
		return nil, err
	}
	return samplesFromWire(records), nil
}

func (g *HTTPGateway) GetRecentTelemetry(ctx context.Context, window time.Duration) ([]model.Sample, error) {
	query := url.Values{}
	query.Set("offset", seconds(window))

	var records []wireTelemetry
	if err := g.get(ctx, "get recent telemetry", "/telemetry/recent", query, &records); err != nil {
		return nil, err
	}
	return samplesFromWire(records), nil
}

func (g *HTTPGateway) GetTelemetryHistory(ctx context.Context, deviceID string, window time.Duration) ([]model.Sample, error) {
	query := url.Values{}
	query.Set("device_id", deviceID)
	query.Set("offset", seconds(window))

	var records []wireTelemetry
	if err := g.get(ctx, "get telemetry history", "/telemetry/history", query, &records); err != nil {
		return nil, err
	}
	return samplesFromWire(records), nil
}

// Health performs a single configuration read without retries.
func (g *HTTPGateway) Health(ctx context.Context) error {
	body, err := g.do(ctx, http.MethodGet, g.baseURL+settingsPath, nil)
	if err != nil {
		return fmt.Errorf("gateway health check failed: %w", err)
	}
	body.Close()
	return nil
}

func (g *HTTPGateway) get(ctx context.Context, op, path string, query url.Values, out any) error {
	target := g.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return g.withRetry(ctx, op, func() error {
		body, err := g.do(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		defer body.Close()

		if err := json.NewDecoder(body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

func (g *HTTPGateway) put(ctx context.Context, op, path string, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	return g.withRetry(ctx, op, func() error {
		body, err := g.do(ctx, http.MethodPut, g.baseURL+path, data)
		if err != nil {
			return err
		}
		return body.Close()
	})
}

// withRetry runs fn until it succeeds, the context ends, or MaxRetries
// retries have been spent.
func (g *HTTPGateway) withRetry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.retry.InitialDelay
	policy.MaxInterval = g.retry.MaxDelay
	policy.MaxElapsedTime = 0

	attempts := 0
	var lastErr error
	err := backoff.Retry(func() error {
		attempts++
		err := fn()
		if err != nil {
			lastErr = err
			if attempts <= g.retry.MaxRetries {
				g.log.Warn("request attempt failed",
					slog.String("op", op),
					slog.Int("attempt", attempts),
					slog.Int("max_retries", g.retry.MaxRetries),
					sl.Err(err),
				)
			}
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.retry.MaxRetries)), ctx))
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(lastErr, ctxErr) {
		lastErr = fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
	}
	return &NetworkError{Op: op, Attempts: attempts, Err: lastErr}
}

func (g *HTTPGateway) do(ctx context.Context, method, target string, data []byte) (io.ReadCloser, error) {
	var reader io.Reader
	if data != nil {
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return resp.Body, nil
}

func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}
