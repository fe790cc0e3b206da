// Package periph drives a PCA9685 through the periph.io host drivers.
package periph

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "periph",
})

type Command struct {
	address uint16
	busName string

	bus i2c.BusCloser
	dev *pca9685.Dev
}

// NewCommand takes a periph bus name such as "I2C1" or a device path.
func NewCommand(address byte, busName string) *Command {
	return &Command{
		address: uint16(address),
		busName: busName,
	}
}

func (c *Command) Init(frequencyHz float64) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed initializing periph host - %w", err)
	}

	bus, err := i2creg.Open(c.busName)
	if err != nil {
		return fmt.Errorf("failed opening i2c bus %s - %w", c.busName, err)
	}

	dev, err := pca9685.NewI2C(bus, c.address)
	if err != nil {
		bus.Close()
		return fmt.Errorf("failed opening pca9685 at 0x%x - %w", c.address, err)
	}

	err = dev.SetPwmFreq(physic.Frequency(frequencyHz * float64(physic.Hertz)))
	if err != nil {
		bus.Close()
		return fmt.Errorf("failed setting frequency %.1fhz - %w", frequencyHz, err)
	}

	c.bus = bus
	c.dev = dev
	log.Infof("pca9685 at 0x%x on %s ready", c.address, c.busName)
	return nil
}

func (c *Command) SetDuty(channel int, ticks uint16) error {
	if c.dev == nil {
		return fmt.Errorf("pca9685 at 0x%x not initialized", c.address)
	}
	return c.dev.SetPwm(channel, 0, gpio.Duty(ticks))
}

// SetAllDuty writes the ALL_LED registers so every channel changes in one transaction.
func (c *Command) SetAllDuty(ticks uint16) error {
	if c.dev == nil {
		return fmt.Errorf("pca9685 at 0x%x not initialized", c.address)
	}
	return c.dev.SetAllPwm(0, gpio.Duty(ticks))
}

func (c *Command) Stop() error {
	if c.bus == nil {
		return nil
	}
	log.Infof("closing i2c bus %s", c.busName)
	err := c.bus.Close()
	c.bus = nil
	c.dev = nil
	return err
}
