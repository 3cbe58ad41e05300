package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayltai/espartan/internal/decision"
	"github.com/ayltai/espartan/internal/gateway"
	"github.com/ayltai/espartan/internal/model"
	"github.com/ayltai/espartan/internal/monitor"
)

type fakeService struct {
	cfg      model.Configuration
	err      error
	strategy string
}

func (s *fakeService) Thermostat() monitor.ThermostatView {
	temp := 18.5
	return monitor.ThermostatView{Temperature: &temp, Band: decision.BandWithin, Devices: []monitor.DeviceReading{}}
}

func (s *fakeService) FrontDoor() monitor.FrontDoorView {
	return monitor.FrontDoorView{DoorStatus: model.DoorOpen, History: []monitor.DoorEvent{}}
}

func (s *fakeService) Mailbox() monitor.MailboxView {
	return monitor.MailboxView{MailStatus: model.MailNew, HasMail: true, History: []monitor.MailEntry{}}
}

func (s *fakeService) Chart() monitor.ChartView {
	return monitor.ChartView{Status: monitor.Status{Loading: true}}
}

func (s *fakeService) IncrementThreshold(context.Context) (model.Configuration, error) {
	return s.cfg, s.err
}

func (s *fakeService) DecrementThreshold(context.Context) (model.Configuration, error) {
	return s.cfg, s.err
}

func (s *fakeService) SetStrategy(_ context.Context, strategy string) (model.Configuration, error) {
	s.strategy = strategy
	return s.cfg, s.err
}

func (s *fakeService) ToggleDetection(context.Context) (model.Device, error) {
	return model.Device{ID: "door"}, s.err
}

func serve(t *testing.T, svc Service, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	h := Routes(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestReadModels(t *testing.T) {
	svc := &fakeService{}

	rec, body := serve(t, svc, http.MethodGet, "/thermostat", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 18.5, body["temperature"])
	assert.Equal(t, "within", body["band"])

	_, body = serve(t, svc, http.MethodGet, "/front-door", "")
	assert.Equal(t, "open", body["doorStatus"])

	_, body = serve(t, svc, http.MethodGet, "/mailbox", "")
	assert.Equal(t, true, body["hasMail"])
	assert.Equal(t, "new_mail", body["mailStatus"])

	_, body = serve(t, svc, http.MethodGet, "/chart", "")
	assert.Equal(t, true, body["loading"])
}

func TestCommands(t *testing.T) {
	svc := &fakeService{cfg: model.Configuration{ThresholdOn: 19, ThresholdOff: 19.5, DecisionStrategy: "min"}}

	rec, body := serve(t, svc, http.MethodPost, "/thermostat/increment", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 19.5, body["thresholdOff"])

	rec, _ = serve(t, svc, http.MethodPost, "/thermostat/decrement", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = serve(t, svc, http.MethodPut, "/thermostat/strategy", `{"strategy":"avg"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "avg", svc.strategy)

	rec, body = serve(t, svc, http.MethodPost, "/front-door/detection", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "door", body["id"])
}

func TestSetStrategyRejectsMalformedBody(t *testing.T) {
	rec, body := serve(t, &fakeService{}, http.MethodPut, "/thermostat/strategy", "{")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", body["error"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid strategy", fmt.Errorf("%w: %q", decision.ErrInvalidStrategy, "max"), http.StatusBadRequest},
		{"out of range", decision.ErrThresholdOutOfRange, http.StatusUnprocessableEntity},
		{"not loaded", monitor.ErrNotLoaded, http.StatusServiceUnavailable},
		{"not configured", monitor.ErrNotConfigured, http.StatusServiceUnavailable},
		{"not started", monitor.ErrNotStarted, http.StatusServiceUnavailable},
		{"network", fmt.Errorf("failed to set strategy: %w", &gateway.NetworkError{Op: "PUT /settings/1", Attempts: 6, Err: errors.New("refused")}), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(t, &fakeService{err: tt.err}, http.MethodPost, "/thermostat/increment", "")
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	h := Routes(slog.New(slog.NewTextHandler(io.Discard, nil)), &fakeService{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/thermostat/increment", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
