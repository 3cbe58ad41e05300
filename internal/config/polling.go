package config

import "time"

// PollingConfig holds the two refresh tiers. Door, mailbox and relay state
// use the fast tier; configuration, device lists and temperatures the slow one.
type PollingConfig struct {
	Fast time.Duration `yaml:"fast" env:"POLLING_FAST" env-default:"10s"`
	Slow time.Duration `yaml:"slow" env:"POLLING_SLOW" env-default:"60s"`
}

type DevicesConfig struct {
	FrontDoor string `yaml:"front_door" env:"DEVICE_FRONT_DOOR" env-default:"1cdbd4e10fc4"`
	Mailbox   string `yaml:"mailbox" env:"DEVICE_MAILBOX"`
}

type HeatingConfig struct {
	MinTemperature float64 `yaml:"min_temperature" env-default:"5"`
	MaxTemperature float64 `yaml:"max_temperature" env-default:"30"`
}

type TelemetryConfig struct {
	RecentWindow  time.Duration `yaml:"recent_window" env-default:"24h"`
	HistoryWindow time.Duration `yaml:"history_window" env-default:"168h"`
}

type ChartConfig struct {
	Window time.Duration `yaml:"window" env-default:"24h"`
}
