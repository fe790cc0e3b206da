package pca9685

import (
	"fmt"

	"github.com/Speshl/gorrc_hexapod/internal/command"
	"github.com/googolgl/go-i2c"
	"github.com/googolgl/go-pca9685"
	"github.com/sirupsen/logrus"
)

const ResolutionBits = 12

var log = logrus.WithFields(logrus.Fields{
	"pkg": "pca9685",
})

// Command drives one PCA9685 board with raw 12 bit off counts, every pulse
// starts at tick 0.
type Command struct {
	address   byte
	i2cDevice string
	driver    *pca9685.PCA9685
}

func NewCommand(address byte, i2cDevice string) *Command {
	return &Command{
		address:   address,
		i2cDevice: i2cDevice,
	}
}

func (c *Command) Init(frequencyHz float64) error {
	i2c, err := i2c.New(c.address, c.i2cDevice)
	if err != nil {
		return fmt.Errorf("error starting i2c with address 0x%x - %w", c.address, err)
	}

	c.driver, err = pca9685.New(i2c, nil)
	if err != nil {
		return fmt.Errorf("error getting servo driver - %w", err)
	}

	err = c.driver.SetFreq(float32(frequencyHz))
	if err != nil {
		return fmt.Errorf("error setting frequency %.1fhz - %w", frequencyHz, err)
	}

	log.Infof("pca9685 at 0x%x ready at %.1fhz", c.address, frequencyHz)
	return nil
}

func (c *Command) SetDuty(channel int, ticks uint16) error {
	if c.driver == nil {
		return fmt.Errorf("pca9685 at 0x%x not initialized", c.address)
	}
	if channel < 0 || channel >= command.MaxSupportedChannels {
		return fmt.Errorf("channel %d not on 0x%x", channel, c.address)
	}
	if ticks >= 1<<ResolutionBits {
		ticks = 1<<ResolutionBits - 1
	}

	err := c.driver.SetChannel(channel, 0, int(ticks))
	if err != nil {
		return fmt.Errorf("failed setting channel %d to %d ticks - %w", channel, ticks, err)
	}
	return nil
}

func (c *Command) Stop() error {
	log.Infof("stopping pca9685 at 0x%x", c.address)
	return nil
}
