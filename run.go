package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Speshl/gorrc_hexapod/internal/app"
	"github.com/Speshl/gorrc_hexapod/internal/config"
	socketio "github.com/googollee/go-socket.io"
	log "github.com/sirupsen/logrus"
)

type RunCommand struct {
	Driver string `long:"driver" description:"Servo driver override (pca9685, periph, fake)"`
	Server string `long:"server" description:"Signaling server host:port override"`
	Broker string `long:"broker" description:"MQTT broker override"`
}

func loadConfig(driver string) (config.Config, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return cfg, err
	}
	if driver != "" {
		cfg.CommandCfg.CommandDriver = driver
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	return cfg, nil
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.Driver)
	if err != nil {
		return err
	}
	if c.Server != "" {
		cfg.ServerCfg.Server = c.Server
	}
	if c.Broker != "" {
		cfg.MQTTCfg.Broker = c.Broker
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

	var client *socketio.Client
	if cfg.ServerCfg.Server != "" {
		socketURI := fmt.Sprintf("http://%s", cfg.ServerCfg.Server)
		client, err = socketio.NewClient(socketURI, nil)
		if err != nil {
			return fmt.Errorf("error creating client - %w", err)
		}
	}

	hexapod, err := app.NewApp(cfg, hardware, client)
	if err != nil {
		return err
	}

	err = hexapod.RegisterHandlers()
	if err != nil {
		return err
	}

	err = hexapod.Start(context.Background())
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("hexapod shutdown with error: %s", err)
		return err
	}
	log.Info("hexapod shutdown successfully")
	return nil
}
