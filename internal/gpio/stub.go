//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPin is not available on non-Linux platforms.
type RealPin struct{}

// NewRealPin returns an error on non-Linux platforms.
func NewRealPin(chipName string, offset int, active, activeLow bool) (*RealPin, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (p *RealPin) Set(active bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (p *RealPin) Close() error { return nil }

// Release is not implemented on non-Linux platforms.
func (p *RealPin) Release() error { return nil }

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(chipName string, pinA, pinB int, initialA, initialB, activeLow bool) (*RealOutput, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (o *RealOutput) Set(ch Channel, active bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error { return nil }
