// Package monitor keeps the dashboard's subscriptions alive and turns cached
// snapshots into read models and commands.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ayltai/espartan/internal/cache"
	"github.com/ayltai/espartan/internal/config"
	"github.com/ayltai/espartan/internal/gateway"
	"github.com/ayltai/espartan/internal/lib/logger/sl"
	"github.com/ayltai/espartan/internal/model"
)

var (
	ErrNotLoaded     = errors.New("data not loaded yet")
	ErrNotConfigured = errors.New("device not configured")
	ErrNotStarted    = errors.New("monitor not started")
)

type Monitor struct {
	log     *slog.Logger
	cfg     *config.Config
	gateway gateway.Gateway
	cache   *cache.Cache
	now     func() time.Time

	mu      sync.Mutex
	started bool
	handles []*cache.Handle

	configuration *cache.Handle
	devices       *cache.Handle
	recent        *cache.Handle
	telemetry     *cache.Handle
	door          *cache.Handle
	doorRecent    *cache.Handle
	doorHistory   *cache.Handle
	mailbox       *cache.Handle
	mailHistory   *cache.Handle

	relay       *cache.Handle
	relayDevice string
}

func New(log *slog.Logger, cfg *config.Config, gw gateway.Gateway, c *cache.Cache) *Monitor {
	return &Monitor{
		log:     log.With(slog.String("component", "monitor")),
		cfg:     cfg,
		gateway: gw,
		cache:   c,
		now:     time.Now,
	}
}

// Start subscribes every screen. Thermostat data polls on the slow tier;
// relay state, door and mailbox data on the fast tier.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	fast, slow := m.cfg.Polling.Fast, m.cfg.Polling.Slow
	recent := m.cfg.Telemetry.RecentWindow
	history := m.cfg.Telemetry.HistoryWindow

	m.log.Info("starting monitor",
		slog.Duration("fast_interval", fast),
		slog.Duration("slow_interval", slow),
		slog.String("front_door", m.cfg.Devices.FrontDoor),
		slog.String("mailbox", m.cfg.Devices.Mailbox),
	)

	subscriptions := []struct {
		target   **cache.Handle
		query    cache.Query
		interval time.Duration
		enabled  bool
	}{
		{&m.configuration, configurationQuery(m.gateway), slow, true},
		{&m.devices, devicesQuery(m.gateway), slow, true},
		{&m.recent, recentTelemetryQuery(m.gateway, recent), slow, true},
		{&m.telemetry, telemetryQuery(m.gateway), slow, true},
		{&m.door, deviceQuery(m.gateway, m.cfg.Devices.FrontDoor), fast, m.cfg.Devices.FrontDoor != ""},
		{&m.doorRecent, recentTelemetryQuery(m.gateway, recent), fast, m.cfg.Devices.FrontDoor != ""},
		{&m.doorHistory, historyQuery(m.gateway, m.cfg.Devices.FrontDoor, history), fast, m.cfg.Devices.FrontDoor != ""},
		{&m.mailbox, deviceQuery(m.gateway, m.cfg.Devices.Mailbox), fast, m.cfg.Devices.Mailbox != ""},
		{&m.mailHistory, historyQuery(m.gateway, m.cfg.Devices.Mailbox, history), fast, m.cfg.Devices.Mailbox != ""},
	}

	for _, s := range subscriptions {
		if !s.enabled {
			continue
		}
		h, err := m.cache.Subscribe(s.query, s.interval)
		if err != nil {
			m.unsubscribeLocked()
			return err
		}
		m.reportErrors(h)
		m.handles = append(m.handles, h)
		*s.target = h
	}

	m.devices.OnChange(func(s cache.Snapshot) {
		if devices, ok := cache.ValueOf[[]model.Device](s); ok {
			m.trackActuator(devices)
		}
	})
	if devices, ok := cache.ValueOf[[]model.Device](m.devices.Snapshot()); ok {
		m.trackActuatorLocked(devices)
	}

	m.started = true
	return nil
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unsubscribeLocked()
	m.started = false
	m.log.Info("monitor stopped")
}

func (m *Monitor) unsubscribeLocked() {
	for _, h := range m.handles {
		if err := m.cache.Unsubscribe(h); err != nil {
			m.log.Error("failed to unsubscribe", slog.String("key", h.Key().String()), sl.Err(err))
		}
	}
	if m.relay != nil {
		if err := m.cache.Unsubscribe(m.relay); err != nil {
			m.log.Error("failed to unsubscribe", slog.String("key", m.relay.Key().String()), sl.Err(err))
		}
	}
	m.handles = nil
	m.relay, m.relayDevice = nil, ""
	m.configuration, m.devices, m.recent, m.telemetry = nil, nil, nil, nil
	m.door, m.doorRecent, m.doorHistory = nil, nil, nil
	m.mailbox, m.mailHistory = nil, nil
}

func (m *Monitor) trackActuator(devices []model.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.devices == nil {
		return
	}
	m.trackActuatorLocked(devices)
}

// trackActuatorLocked follows the first action_relay device in gateway
// order, moving the relay subscription when that device changes.
func (m *Monitor) trackActuatorLocked(devices []model.Device) {
	actuator, ok := model.FindByCapability(devices, model.CapabilityActionRelay)
	if ok && actuator.ID == m.relayDevice {
		return
	}

	if m.relay != nil {
		if err := m.cache.Unsubscribe(m.relay); err != nil {
			m.log.Error("failed to unsubscribe relay state", sl.Err(err))
		}
		m.relay, m.relayDevice = nil, ""
	}
	if !ok {
		return
	}

	h, err := m.cache.Subscribe(relayStateQuery(m.gateway, actuator.ID), m.cfg.Polling.Fast)
	if err != nil {
		m.log.Error("failed to subscribe relay state", slog.String("device_id", actuator.ID), sl.Err(err))
		return
	}
	m.reportErrors(h)
	m.relay, m.relayDevice = h, actuator.ID
	m.log.Info("tracking actuator", slog.String("device_id", actuator.ID))
}

// reportErrors logs each failed fetch once it completes. The cache keeps
// serving the previous value, so this is the only signal a failure leaves.
func (m *Monitor) reportErrors(h *cache.Handle) {
	key := h.Key().String()
	h.OnChange(func(s cache.Snapshot) {
		if s.Err == nil || s.IsFetching {
			return
		}
		m.log.Error("failed to fetch",
			slog.String("key", key),
			slog.Bool("stale", s.Loaded),
			sl.Err(s.Err),
		)
	})
}

// snapshot reads the handle pick returns while holding m.mu, so a
// concurrent Stop cannot swap it out underneath.
func (m *Monitor) snapshot(pick func() *cache.Handle) (cache.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := pick()
	if h == nil {
		return cache.Snapshot{}, false
	}
	return h.Snapshot(), true
}
