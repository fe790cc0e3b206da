package main

import (
	"fmt"

	"github.com/Speshl/gorrc_hexapod/internal/app"
	log "github.com/sirupsen/logrus"
)

type ZeroCommand struct {
	Driver string `long:"driver" description:"Servo driver override (pca9685, periph, fake)"`
}

func (c *ZeroCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.Driver)
	if err != nil {
		return err
	}

	hardware, err := app.NewHardware(cfg.CommandCfg)
	if err != nil {
		return fmt.Errorf("failed initializing hardware: %w", err)
	}

	err = hardware.Close()
	if err != nil {
		return fmt.Errorf("failed zeroing outputs: %w", err)
	}
	log.Info("all outputs zeroed")
	return nil
}
