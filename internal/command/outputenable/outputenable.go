// Package outputenable toggles the active low /OE line shared by the PCA9685 boards.
package outputenable

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "outputenable",
})

type Pin struct {
	number int
	pin    rpio.Pin
	opened bool
}

func New(number int) *Pin {
	return &Pin{
		number: number,
		pin:    rpio.Pin(number),
	}
}

// Open maps the gpio memory and starts with outputs disabled.
func (p *Pin) Open() error {
	err := rpio.Open()
	if err != nil {
		return fmt.Errorf("failed opening rpio: %w", err)
	}
	p.opened = true
	p.pin.Output()
	p.pin.High()
	log.Infof("output enable on gpio %d", p.number)
	return nil
}

func (p *Pin) Enable() error {
	if !p.opened {
		return fmt.Errorf("gpio %d not opened", p.number)
	}
	p.pin.Low()
	return nil
}

func (p *Pin) Disable() error {
	if !p.opened {
		return fmt.Errorf("gpio %d not opened", p.number)
	}
	p.pin.High()
	return nil
}

func (p *Pin) Close() error {
	if !p.opened {
		return nil
	}
	p.pin.High()
	p.opened = false
	err := rpio.Close()
	if err != nil {
		return fmt.Errorf("failed closing rpio: %w", err)
	}
	return nil
}
