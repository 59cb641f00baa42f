// Package gpio provides relay output control with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Channel identifies one of the two relay channels.
type Channel int

const (
	ChannelA Channel = iota
	ChannelB
)

func (c Channel) String() string {
	if c == ChannelB {
		return "B"
	}
	return "A"
}

// Output sets relay channel levels.
type Output interface {
	// Set drives a channel to its active (relay energized) or inactive level.
	// Polarity is handled by the implementation. Set is idempotent.
	Set(ch Channel, active bool) error

	// Close releases GPIO resources.
	Close() error
}

// Pin defaults (BCM numbering)
const (
	DefaultPinA = 18 // Relay channel 1
	DefaultPinB = 23 // Relay channel 2
)

// DefaultChip is the GPIO character device carrying the Raspberry Pi header.
const DefaultChip = "gpiochip0"
