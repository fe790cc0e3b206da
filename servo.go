package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Speshl/gorrc_hexapod/internal/app"
	"github.com/Speshl/gorrc_hexapod/internal/command"
	log "github.com/sirupsen/logrus"
)

type ServoCommand struct {
	Driver   string  `long:"driver" description:"Servo driver override (pca9685, periph, fake)"`
	Board    int     `long:"board" default:"0" description:"Driver id the servo is wired to"`
	Channel  int     `long:"channel" required:"true" description:"Channel on the driver"`
	Pulse    float64 `long:"pulse" description:"Pulse width in microseconds"`
	Position float64 `long:"position" default:"0" description:"Position in -1..1 across min-pulse..max-pulse, used when --pulse is not set"`
	MinPulse float64 `long:"min-pulse" default:"500" description:"Pulse width at position -1"`
	MaxPulse float64 `long:"max-pulse" default:"2500" description:"Pulse width at position 1"`
}

func (c *ServoCommand) pulse() (float64, error) {
	if c.Pulse != 0 {
		return c.Pulse, nil
	}
	if c.MinPulse >= c.MaxPulse {
		return 0, fmt.Errorf("min pulse %.0f must be below max pulse %.0f", c.MinPulse, c.MaxPulse)
	}
	return command.MapToRange(c.Position, -1, 1, c.MinPulse, c.MaxPulse), nil
}

// Execute holds the pulse until interrupted, then zeroes every channel.
func (c *ServoCommand) Execute(args []string) error {
	pulse, err := c.pulse()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c.Driver)
	if err != nil {
		return err
	}

	hardware, err := app.NewHardware(cfg.CommandCfg)
	if err != nil {
		return fmt.Errorf("failed initializing hardware: %w", err)
	}
	defer func() {
		err := hardware.Close()
		if err != nil {
			log.Errorf("failed closing hardware: %s", err)
		}
	}()

	registry := hardware.Registry
	duty := command.ToDutyCycle(pulse, registry.Frequency(), registry.ResolutionBits())
	err = registry.Write(c.Board, c.Channel, duty)
	if err != nil {
		return err
	}

	actual := command.ToPulse(duty, registry.Frequency(), registry.ResolutionBits())
	log.Infof("board %d channel %d holding %.0fus (duty %d, %.1fus after rounding), ctrl+c to release", c.Board, c.Channel, pulse, duty, actual)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("releasing servo")
	return nil
}
