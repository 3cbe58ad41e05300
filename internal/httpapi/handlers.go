package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayltai/espartan/internal/decision"
	"github.com/ayltai/espartan/internal/gateway"
	"github.com/ayltai/espartan/internal/lib/logger/sl"
	"github.com/ayltai/espartan/internal/monitor"
)

type Handler struct {
	log *slog.Logger
	svc Service
}

type errorResponse struct {
	Error string `json:"error"`
}

type strategyRequest struct {
	Strategy string `json:"strategy"`
}

func (h *Handler) getThermostat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Thermostat())
}

func (h *Handler) getFrontDoor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.FrontDoor())
}

func (h *Handler) getMailbox(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Mailbox())
}

func (h *Handler) getChart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Chart())
}

func (h *Handler) incrementThreshold(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.IncrementThreshold(r.Context())
	if err != nil {
		h.fail(w, r, "increment threshold", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) decrementThreshold(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.DecrementThreshold(r.Context())
	if err != nil {
		h.fail(w, r, "decrement threshold", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) setStrategy(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	cfg, err := h.svc.SetStrategy(r.Context(), req.Strategy)
	if err != nil {
		h.fail(w, r, "set strategy", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) toggleDetection(w http.ResponseWriter, r *http.Request) {
	device, err := h.svc.ToggleDetection(r.Context())
	if err != nil {
		h.fail(w, r, "toggle detection", err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, decision.ErrInvalidStrategy):
		return http.StatusBadRequest
	case errors.Is(err, decision.ErrThresholdOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, monitor.ErrNotLoaded),
		errors.Is(err, monitor.ErrNotConfigured),
		errors.Is(err, monitor.ErrNotStarted):
		return http.StatusServiceUnavailable
	case gateway.IsNetworkError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
