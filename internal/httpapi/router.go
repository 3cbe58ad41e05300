// Package httpapi exposes the dashboard read models and commands over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayltai/espartan/internal/model"
	"github.com/ayltai/espartan/internal/monitor"
)

// Service is the part of the monitor the API drives.
type Service interface {
	Thermostat() monitor.ThermostatView
	FrontDoor() monitor.FrontDoorView
	Mailbox() monitor.MailboxView
	Chart() monitor.ChartView

	IncrementThreshold(ctx context.Context) (model.Configuration, error)
	DecrementThreshold(ctx context.Context) (model.Configuration, error)
	SetStrategy(ctx context.Context, strategy string) (model.Configuration, error)
	ToggleDetection(ctx context.Context) (model.Device, error)
}

func Routes(log *slog.Logger, svc Service) http.Handler {
	h := &Handler{log: log.With(slog.String("component", "httpapi")), svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/thermostat", func(r chi.Router) {
		r.Get("/", h.getThermostat)
		r.Post("/increment", h.incrementThreshold)
		r.Post("/decrement", h.decrementThreshold)
		r.Put("/strategy", h.setStrategy)
	})

	r.Get("/front-door", h.getFrontDoor)
	r.Post("/front-door/detection", h.toggleDetection)
	r.Get("/mailbox", h.getMailbox)
	r.Get("/chart", h.getChart)

	return r
}
