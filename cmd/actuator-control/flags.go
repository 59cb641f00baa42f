package main

import (
	"flag"
	"fmt"

	"github.com/sweeney/actuator-control/internal/config"
)

// parseFlags builds the daemon config. Precedence, lowest first: built-in
// defaults, the -config YAML file, ACTUATOR_* environment variables, then
// flags given explicitly on the command line.
func parseFlags(fs *flag.FlagSet, args []string) (config.Config, error) {
	def := config.Default()

	configPath := fs.String("config", "", "YAML config file (optional)")
	chip := fs.String("chip", def.Chip, "GPIO chip device name")
	pinA := fs.Int("pin-a", def.PinA, "BCM pin number for relay channel A")
	pinB := fs.Int("pin-b", def.PinB, "BCM pin number for relay channel B")
	activeLow := fs.Bool("active-low", def.ActiveLow, "Relays trigger on a low level")
	initialRetract := fs.Duration("initial-retract", def.InitialRetract, "Homing retract when cycling starts")
	extend := fs.Duration("extend", def.Extend, "Extend duration per cycle")
	retract := fs.Duration("retract", def.Retract, "Retract duration per cycle")
	pause := fs.Duration("pause", def.Pause, "Pause between extend and retract")
	wait := fs.Duration("wait", def.Wait, "Initial wait between cycles")
	broker := fs.String("broker", def.Broker, "MQTT broker address")
	clientID := fs.String("client-id", def.ClientID, "MQTT client ID")
	heartbeat := fs.Duration("heartbeat", def.Heartbeat, "Heartbeat interval (0 to disable)")
	httpAddr := fs.String("http", def.HTTPAddr, "HTTP address (empty to disable)")
	autoStart := fs.Bool("auto-start", def.AutoStart, "Start cycling immediately")

	if err := fs.Parse(args); err != nil {
		return def, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "chip":
			cfg.Chip = *chip
		case "pin-a":
			cfg.PinA = *pinA
		case "pin-b":
			cfg.PinB = *pinB
		case "active-low":
			cfg.ActiveLow = *activeLow
		case "initial-retract":
			cfg.InitialRetract = *initialRetract
		case "extend":
			cfg.Extend = *extend
		case "retract":
			cfg.Retract = *retract
		case "pause":
			cfg.Pause = *pause
		case "wait":
			cfg.Wait = *wait
		case "broker":
			cfg.Broker = *broker
		case "client-id":
			cfg.ClientID = *clientID
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "auto-start":
			cfg.AutoStart = *autoStart
		}
	})

	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
