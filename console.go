package main

import (
	"context"
	"fmt"

	"github.com/Speshl/gorrc_hexapod/internal/app"
	"github.com/Speshl/gorrc_hexapod/internal/console"
	log "github.com/sirupsen/logrus"
)

type ConsoleCommand struct {
	Driver string `long:"driver" description:"Servo driver override (pca9685, periph, fake)"`
}

func (c *ConsoleCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.Driver)
	if err != nil {
		return err
	}
	// the tui owns the terminal
	if log.GetLevel() > log.WarnLevel {
		log.SetLevel(log.WarnLevel)
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

	hexapod, err := app.NewApp(cfg, hardware, nil)
	if err != nil {
		return err
	}
	controller := hexapod.Controller()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = controller.Start(ctx)
	}()

	err = console.Run(ctx, controller)
	cancel()
	<-done
	return err
}
