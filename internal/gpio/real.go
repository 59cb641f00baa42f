//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPin is a single GPIO line requested as an output.
type RealPin struct {
	chip   *gpiocdev.Chip // set only when the pin owns its chip
	line   *gpiocdev.Line
	offset int
}

// NewRealPin requests a single output line on the named chip.
// With activeLow set, an active level drives the pin low (low-level trigger relay).
func NewRealPin(chipName string, offset int, active, activeLow bool) (*RealPin, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	p, err := requestPin(chip, offset, active, activeLow)
	if err != nil {
		chip.Close()
		return nil, err
	}
	p.chip = chip
	return p, nil
}

func requestPin(chip *gpiocdev.Chip, offset int, active, activeLow bool) (*RealPin, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsOutput(boolToValue(active)),
		gpiocdev.WithConsumer("actuator-control"),
	}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request pin %d: %w", offset, err)
	}
	return &RealPin{line: line, offset: offset}, nil
}

// Set drives the pin to its active or inactive level.
func (p *RealPin) Set(active bool) error {
	if err := p.line.SetValue(boolToValue(active)); err != nil {
		return fmt.Errorf("set pin %d: %w", p.offset, err)
	}
	return nil
}

// Close releases the line, leaving the pin at its last level.
func (p *RealPin) Close() error {
	return p.close(false)
}

// Release reverts the pin to an input and releases it.
func (p *RealPin) Release() error {
	return p.close(true)
}

func (p *RealPin) close(revert bool) error {
	var errs []error
	if revert {
		if err := p.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", p.offset, err))
		}
	}
	if err := p.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", p.offset, err))
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutput drives both relay channels on actual hardware.
type RealOutput struct {
	chip *gpiocdev.Chip
	a    *RealPin
	b    *RealPin
}

// NewRealOutput requests both relay lines as outputs, initialised to the given levels.
// Pass the Stop encoding so the actuator is idle from the first instant.
func NewRealOutput(chipName string, pinA, pinB int, initialA, initialB, activeLow bool) (*RealOutput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	a, err := requestPin(chip, pinA, initialA, activeLow)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("channel A: %w", err)
	}

	b, err := requestPin(chip, pinB, initialB, activeLow)
	if err != nil {
		a.Close()
		chip.Close()
		return nil, fmt.Errorf("channel B: %w", err)
	}

	return &RealOutput{chip: chip, a: a, b: b}, nil
}

// Set drives a relay channel.
func (o *RealOutput) Set(ch Channel, active bool) error {
	if ch == ChannelB {
		return o.b.Set(active)
	}
	return o.a.Set(active)
}

// Close reverts both lines to inputs (matching the boot default) and closes the chip.
func (o *RealOutput) Close() error {
	var errs []error
	if o.a != nil {
		if err := o.a.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.b != nil {
		if err := o.b.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func boolToValue(b bool) int {
	if b {
		return 1
	}
	return 0
}
