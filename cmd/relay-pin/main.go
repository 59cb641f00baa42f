// Command relay-pin drives a single GPIO pin on or off.
//
//	relay-pin 18 on               # pin 18 high
//	relay-pin -low-level 23 on    # pin 23 low, for a low-level trigger relay
//	relay-pin -cleanup 23 off     # set, then release the pin as an input
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sweeney/actuator-control/internal/gpio"
)

// Common BCM GPIO range on the Raspberry Pi header.
const (
	minPin = 2
	maxPin = 27
)

type request struct {
	chip     string
	pin      int
	on       bool
	lowLevel bool
	cleanup  bool
}

// pin is the part of gpio.RealPin used here.
type pin interface {
	Close() error
	Release() error
}

type opener func(chip string, offset int, active, activeLow bool) (pin, error)

func main() {
	fs := flag.NewFlagSet("relay-pin", flag.ExitOnError)
	req, err := parseArgs(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fs.Usage()
		os.Exit(2)
	}

	open := func(chip string, offset int, active, activeLow bool) (pin, error) {
		return gpio.NewRealPin(chip, offset, active, activeLow)
	}
	if err := run(req, open, os.Stdout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func parseArgs(fs *flag.FlagSet, args []string) (request, error) {
	var req request
	fs.StringVar(&req.chip, "chip", gpio.DefaultChip, "GPIO chip device name")
	fs.BoolVar(&req.lowLevel, "low-level", false, "Low-level trigger logic (on drives the pin low)")
	fs.BoolVar(&req.cleanup, "cleanup", false, "Release the pin as an input after setting it")
	force := fs.Bool("force", false, fmt.Sprintf("Allow pins outside BCM %d-%d", minPin, maxPin))
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: relay-pin [flags] <pin> <on|off>\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return req, err
	}
	if fs.NArg() != 2 {
		return req, fmt.Errorf("expected <pin> <on|off>, got %d arguments", fs.NArg())
	}

	n, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return req, fmt.Errorf("invalid pin %q: %w", fs.Arg(0), err)
	}
	if n < 0 {
		return req, fmt.Errorf("invalid pin %d", n)
	}
	if (n < minPin || n > maxPin) && !*force {
		return req, fmt.Errorf("pin %d is outside BCM %d-%d (use -force to override)", n, minPin, maxPin)
	}
	req.pin = n

	switch strings.ToLower(fs.Arg(1)) {
	case "on":
		req.on = true
	case "off":
		req.on = false
	default:
		return req, fmt.Errorf("status must be 'on' or 'off', got %q", fs.Arg(1))
	}
	return req, nil
}

// level describes the electrical level the request produces.
func (r request) level() string {
	high := r.on != r.lowLevel
	s := "LOW"
	if high {
		s = "HIGH"
	}
	if r.lowLevel {
		s += " - for low-level trigger device"
	}
	return s
}

func run(req request, open opener, w io.Writer) error {
	p, err := open(req.chip, req.pin, req.on, req.lowLevel)
	if err != nil {
		return err
	}

	state := "OFF"
	if req.on {
		state = "ON"
	}
	fmt.Fprintf(w, "GPIO %d set to %s (%s)\n", req.pin, state, req.level())

	if req.cleanup {
		if err := p.Release(); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		fmt.Fprintln(w, "GPIO cleaned up")
		return nil
	}

	if err := p.Close(); err != nil {
		return fmt.Errorf("close pin %d: %w", req.pin, err)
	}
	fmt.Fprintf(w, "GPIO %d is now set. Use -cleanup to release it.\n", req.pin)
	return nil
}
