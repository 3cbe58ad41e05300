package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"prod"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Polling   PollingConfig   `yaml:"polling"`
	Devices   DevicesConfig   `yaml:"devices"`
	Heating   HeatingConfig   `yaml:"heating"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Chart     ChartConfig     `yaml:"chart"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
}

type GatewayConfig struct {
	BaseURL string        `yaml:"base_url" env:"BASE_URL" env-required:"true"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
	Retry   RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" env-default:"5"`
	InitialDelay time.Duration `yaml:"initial_delay" env-default:"500ms"`
	MaxDelay     time.Duration `yaml:"max_delay" env-default:"10s"`
}

type HTTPConfig struct {
	Address string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

func MustLoad(configPath string) *Config {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		panic("failed to read config: " + err.Error())
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Polling.Fast <= 0 || c.Polling.Slow <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	if c.Heating.MinTemperature >= c.Heating.MaxTemperature {
		return fmt.Errorf("heating min_temperature %.1f must be below max_temperature %.1f",
			c.Heating.MinTemperature, c.Heating.MaxTemperature)
	}
	if c.Gateway.Retry.MaxRetries < 0 {
		return fmt.Errorf("gateway max_retries must not be negative")
	}
	return nil
}
