// Package config loads daemon settings from defaults, an optional YAML file
// and ACTUATOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/actuator-control/internal/cycle"
	"github.com/sweeney/actuator-control/internal/gpio"
	"github.com/sweeney/actuator-control/internal/status"
)

// EnvPrefix is prepended to every environment variable name in Config.
const EnvPrefix = "ACTUATOR_"

// Config holds the daemon settings.
type Config struct {
	Chip      string `yaml:"chip" env:"CHIP"`
	PinA      int    `yaml:"pin_a" env:"PIN_A"`
	PinB      int    `yaml:"pin_b" env:"PIN_B"`
	ActiveLow bool   `yaml:"active_low" env:"ACTIVE_LOW"`

	InitialRetract time.Duration `yaml:"initial_retract" env:"INITIAL_RETRACT"`
	Extend         time.Duration `yaml:"extend" env:"EXTEND"`
	Retract        time.Duration `yaml:"retract" env:"RETRACT"`
	Pause          time.Duration `yaml:"pause" env:"PAUSE"`
	Wait           time.Duration `yaml:"wait" env:"WAIT"`

	Broker    string        `yaml:"broker" env:"MQTT_BROKER"`
	ClientID  string        `yaml:"client_id" env:"MQTT_CLIENT_ID"`
	Heartbeat time.Duration `yaml:"heartbeat" env:"HEARTBEAT"` // 0 disables
	HTTPAddr  string        `yaml:"http_addr" env:"HTTP_ADDR"` // empty disables

	AutoStart bool `yaml:"auto_start" env:"AUTO_START"`
}

// Default returns the stock settings: relays on BCM 18/23 with a
// low-level trigger and the standard cycle timing.
func Default() Config {
	t := cycle.DefaultTiming()
	return Config{
		Chip:           gpio.DefaultChip,
		PinA:           gpio.DefaultPinA,
		PinB:           gpio.DefaultPinB,
		ActiveLow:      true,
		InitialRetract: t.InitialRetract,
		Extend:         t.Extend,
		Retract:        t.Retract,
		Pause:          t.Pause,
		Wait:           t.Wait,
		Broker:         "tcp://localhost:1883",
		ClientID:       "actuator-control",
		Heartbeat:      15 * time.Minute,
		HTTPAddr:       ":5000",
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped when
// path is empty or the file does not exist) and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any ACTUATOR_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// Validate checks pins, timing and intervals.
func (c Config) Validate() error {
	var errs []error
	if c.PinA < 0 || c.PinB < 0 {
		errs = append(errs, fmt.Errorf("pins must be non-negative, got %d/%d", c.PinA, c.PinB))
	}
	if c.PinA == c.PinB {
		errs = append(errs, fmt.Errorf("channel A and B must use different pins, both are %d", c.PinA))
	}
	if c.Chip == "" {
		errs = append(errs, errors.New("chip must be set"))
	}
	if err := c.Timing().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must be non-negative, got %v", c.Heartbeat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Timing returns the cycle durations.
func (c Config) Timing() cycle.Timing {
	return cycle.Timing{
		InitialRetract: c.InitialRetract,
		Extend:         c.Extend,
		Retract:        c.Retract,
		Pause:          c.Pause,
		Wait:           c.Wait,
	}
}

// Display returns the subset of settings shown on the status page.
func (c Config) Display() status.Config {
	return status.Config{
		PinA:             c.PinA,
		PinB:             c.PinB,
		ActiveLow:        c.ActiveLow,
		InitialRetractMs: c.InitialRetract.Milliseconds(),
		ExtendMs:         c.Extend.Milliseconds(),
		RetractMs:        c.Retract.Milliseconds(),
		PauseMs:          c.Pause.Milliseconds(),
		HeartbeatMs:      c.Heartbeat.Milliseconds(),
		Broker:           c.Broker,
		HTTPAddr:         c.HTTPAddr,
	}
}

// pi-helper network state (written to /run/pi-helper.env).
type network struct {
	Type       string `env:"NETWORK_TYPE"`
	IP         string `env:"NETWORK_IP"`
	Status     string `env:"NETWORK_STATUS"`
	Gateway    string `env:"NETWORK_GATEWAY"`
	WifiStatus string `env:"NETWORK_WIFI_STATUS"`
	SSID       string `env:"NETWORK_WIFI_SSID"`
}

// ReadNetwork returns the pi-helper network info, or nil when
// NETWORK_STATUS is not set.
func ReadNetwork() *status.NetworkInfo {
	var n network
	if err := env.Parse(&n); err != nil || n.Status == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       n.Type,
		IP:         n.IP,
		Status:     n.Status,
		Gateway:    n.Gateway,
		WifiStatus: n.WifiStatus,
		SSID:       n.SSID,
	}
}
