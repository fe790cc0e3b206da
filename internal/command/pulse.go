package command

import (
	"fmt"
	"math"
)

const (
	MaxSupportedChannels = 16
	MicrosPerSecond      = 1_000_000.0
	MaxResolutionBits    = 16
)

// Addr is where a joint is physically wired.
type Addr struct {
	Driver  int
	Channel int
}

func (a Addr) String() string {
	return fmt.Sprintf("driver %d channel %d", a.Driver, a.Channel)
}

// ToDutyCycle converts a pulse width in microseconds into PWM ticks at the given
// frequency and bit resolution. Out of range pulses are clamped to
// [0, 2^bits-1]. Resolutions above 16 bits are treated as 16, zero or
// negative resolutions always give 0.
func ToDutyCycle(pulseUs, frequencyHz float64, resolutionBits int) uint16 {
	if resolutionBits <= 0 {
		return 0
	}
	if resolutionBits > MaxResolutionBits {
		resolutionBits = MaxResolutionBits
	}
	steps := float64(uint32(1) << uint(resolutionBits))
	maxTicks := steps - 1

	if frequencyHz <= 0 || math.IsNaN(pulseUs) {
		return 0
	}

	tickUs := MicrosPerSecond / (frequencyHz * steps)
	ticks := math.Floor(pulseUs / tickUs)

	if ticks < 0 {
		return 0
	} else if ticks > maxTicks {
		return uint16(maxTicks)
	} else {
		return uint16(ticks)
	}
}

// ToPulse is the inverse of ToDutyCycle, rounded down to the tick boundary.
func ToPulse(ticks uint16, frequencyHz float64, resolutionBits int) float64 {
	steps := float64(uint32(1) << uint(resolutionBits))
	return float64(ticks) * MicrosPerSecond / (frequencyHz * steps)
}

// MapToRange linearly maps value from [min, max] onto [minReturn, maxReturn],
// clamping the result.
func MapToRange(value, min, max, minReturn, maxReturn float64) float64 {
	mappedValue := (maxReturn-minReturn)*(value-min)/(max-min) + minReturn

	if mappedValue > maxReturn {
		return maxReturn
	} else if mappedValue < minReturn {
		return minReturn
	} else {
		return mappedValue
	}
}
