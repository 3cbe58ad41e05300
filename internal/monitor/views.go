package monitor

import (
	"time"

	"github.com/ayltai/espartan/internal/aggregate"
	"github.com/ayltai/espartan/internal/cache"
	"github.com/ayltai/espartan/internal/decision"
	"github.com/ayltai/espartan/internal/model"
	"github.com/ayltai/espartan/internal/series"
)

// Status describes the freshness of the data behind a read model.
type Status struct {
	Loading bool     `json:"loading"`
	Errors  []string `json:"errors,omitempty"`
}

func (st *Status) track(s cache.Snapshot, ok bool) {
	if !ok {
		return
	}
	if !s.Loaded {
		st.Loading = true
	}
	if s.Err != nil {
		st.Errors = append(st.Errors, s.Err.Error())
	}
}

type DeviceReading struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

type ThermostatView struct {
	Status
	Configuration *model.Configuration `json:"configuration,omitempty"`
	Temperature   *float64             `json:"temperature"`
	Minimum       *float64             `json:"minimum"`
	Average       *float64             `json:"average"`
	Samples       int                  `json:"samples"`
	Band          decision.Band        `json:"band"`
	ActuatorID    string               `json:"actuatorId,omitempty"`
	RelayState    *int                 `json:"relayState,omitempty"`
	Devices       []DeviceReading      `json:"devices"`
}

type DoorEvent struct {
	ID        int64            `json:"id"`
	Status    model.DoorStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
}

type FrontDoorView struct {
	Status
	Device           *model.Device    `json:"device,omitempty"`
	DoorStatus       model.DoorStatus `json:"doorStatus,omitempty"`
	DetectionEnabled bool             `json:"detectionEnabled"`
	History          []DoorEvent      `json:"history"`
}

type MailEntry struct {
	ID        int64           `json:"id"`
	Event     model.MailEvent `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
}

type MailboxView struct {
	Status
	Device           *model.Device    `json:"device,omitempty"`
	LastInboxOpened  *time.Time       `json:"lastInboxOpened,omitempty"`
	LastOutboxOpened *time.Time       `json:"lastOutboxOpened,omitempty"`
	MailStatus       model.MailStatus `json:"mailStatus"`
	HasMail          bool             `json:"hasMail"`
	History          []MailEntry      `json:"history"`
}

type ChartSeries struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ChartView struct {
	Status
	Series []ChartSeries  `json:"series"`
	Points []series.Point `json:"points"`
	Domain *series.Domain `json:"domain,omitempty"`
}

func (m *Monitor) Thermostat() ThermostatView {
	var v ThermostatView
	v.Devices = []DeviceReading{}

	cfgSnap, cfgOK := m.snapshot(func() *cache.Handle { return m.configuration })
	devSnap, devOK := m.snapshot(func() *cache.Handle { return m.devices })
	recentSnap, recentOK := m.snapshot(func() *cache.Handle { return m.recent })
	relaySnap, relayOK := m.snapshot(func() *cache.Handle { return m.relay })
	v.track(cfgSnap, cfgOK)
	v.track(devSnap, devOK)
	v.track(recentSnap, recentOK)
	v.track(relaySnap, relayOK)

	samples, _ := cache.ValueOf[[]model.Sample](recentSnap)
	result := aggregate.Aggregate(samples, model.DataTypeTemperature, m.cfg.Telemetry.RecentWindow, m.now())
	v.Minimum = degrees(result.Min)
	v.Average = degrees(result.Avg)
	v.Samples = result.Count

	if cfg, ok := cache.ValueOf[model.Configuration](cfgSnap); ok {
		v.Configuration = &cfg
		assessment, err := decision.Evaluate(cfg, result)
		if err != nil {
			v.Errors = append(v.Errors, err.Error())
		}
		v.Temperature = degrees(assessment.Temperature)
		v.Band = assessment.Band
	}

	if devices, ok := cache.ValueOf[[]model.Device](devSnap); ok {
		if actuator, found := model.FindByCapability(devices, model.CapabilityActionRelay); found {
			v.ActuatorID = actuator.ID
		}
		for _, d := range model.FilterByCapability(devices, model.CapabilityTemperature) {
			v.Devices = append(v.Devices, DeviceReading{
				ID:          d.ID,
				Name:        d.Name,
				Temperature: degrees(aggregate.Latest(samples, d.ID, model.DataTypeTemperature)),
				Humidity:    degrees(aggregate.Latest(samples, d.ID, model.DataTypeHumidity)),
			})
		}
	}

	if state, ok := cache.ValueOf[int](relaySnap); ok {
		v.RelayState = &state
	}

	return v
}

func (m *Monitor) FrontDoor() FrontDoorView {
	var v FrontDoorView
	v.History = []DoorEvent{}

	devSnap, devOK := m.snapshot(func() *cache.Handle { return m.door })
	recentSnap, recentOK := m.snapshot(func() *cache.Handle { return m.doorRecent })
	histSnap, histOK := m.snapshot(func() *cache.Handle { return m.doorHistory })
	if !devOK {
		v.Errors = append(v.Errors, ErrNotConfigured.Error())
		return v
	}
	v.track(devSnap, devOK)
	v.track(recentSnap, recentOK)
	v.track(histSnap, histOK)

	if device, ok := cache.ValueOf[model.Device](devSnap); ok {
		v.Device = &device
		v.DetectionEnabled = device.DetectionEnabled()
	}

	id := m.cfg.Devices.FrontDoor
	if samples, ok := cache.ValueOf[[]model.Sample](recentSnap); ok {
		if latest := aggregate.Latest(samples, id, model.DataTypeDoorOpen); latest.OK {
			v.DoorStatus = model.DoorStatusOf(latest.Fixed)
		}
	}

	if history, ok := cache.ValueOf[[]model.Sample](histSnap); ok {
		for _, s := range history {
			if s.DataType != model.DataTypeDoorOpen {
				continue
			}
			v.History = append(v.History, DoorEvent{
				ID:        s.ID,
				Status:    model.DoorStatusOf(s.Value),
				Timestamp: s.Timestamp,
			})
		}
	}

	return v
}

func (m *Monitor) Mailbox() MailboxView {
	var v MailboxView
	v.History = []MailEntry{}
	v.MailStatus = model.MailStatusUnknown

	devSnap, devOK := m.snapshot(func() *cache.Handle { return m.mailbox })
	histSnap, histOK := m.snapshot(func() *cache.Handle { return m.mailHistory })
	if !devOK {
		v.Errors = append(v.Errors, ErrNotConfigured.Error())
		return v
	}
	v.track(devSnap, devOK)
	v.track(histSnap, histOK)

	if device, ok := cache.ValueOf[model.Device](devSnap); ok {
		v.Device = &device
	}

	history, loaded := cache.ValueOf[[]model.Sample](histSnap)
	if !loaded {
		return v
	}

	id := m.cfg.Devices.Mailbox
	var inbox, outbox time.Time
	if s, ok := aggregate.LatestWithValue(history, id, model.DataTypeMail, model.MailInboxValue); ok {
		inbox = s.Timestamp
		v.LastInboxOpened = &inbox
	}
	if s, ok := aggregate.LatestWithValue(history, id, model.DataTypeMail, model.MailOutboxValue); ok {
		outbox = s.Timestamp
		v.LastOutboxOpened = &outbox
	}
	v.MailStatus = model.MailStatusOf(inbox, outbox)
	v.HasMail = v.MailStatus == model.MailNew

	for _, s := range history {
		if s.DataType != model.DataTypeMail {
			continue
		}
		v.History = append(v.History, MailEntry{
			ID:        s.ID,
			Event:     model.MailEventOf(s.Value),
			Timestamp: s.Timestamp,
		})
	}

	return v
}

func (m *Monitor) Chart() ChartView {
	var v ChartView
	v.Series = []ChartSeries{}

	devSnap, devOK := m.snapshot(func() *cache.Handle { return m.devices })
	telSnap, telOK := m.snapshot(func() *cache.Handle { return m.telemetry })
	v.track(devSnap, devOK)
	v.track(telSnap, telOK)

	devices, _ := cache.ValueOf[[]model.Device](devSnap)
	charted := model.FilterByCapability(devices, model.CapabilityTemperature)
	for _, d := range charted {
		v.Series = append(v.Series, ChartSeries{ID: d.ID, Name: d.Name})
	}

	samples, _ := cache.ValueOf[[]model.Sample](telSnap)
	now := m.now()
	window := m.cfg.Chart.Window
	v.Points = series.Build(samples, model.DataTypeTemperature, model.DeviceIDs(charted), window, now)
	if domain, ok := series.XDomain(samples, model.DataTypeTemperature, window, now); ok {
		v.Domain = &domain
	}

	return v
}

func degrees(v aggregate.Value) *float64 {
	if !v.OK {
		return nil
	}
	f := v.Fixed.Float()
	return &f
}
