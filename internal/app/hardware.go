package app

import (
	"fmt"

	"github.com/Speshl/gorrc_hexapod/internal/command"
	"github.com/Speshl/gorrc_hexapod/internal/command/fake"
	"github.com/Speshl/gorrc_hexapod/internal/command/outputenable"
	"github.com/Speshl/gorrc_hexapod/internal/command/pca9685"
	"github.com/Speshl/gorrc_hexapod/internal/command/periph"
	"github.com/Speshl/gorrc_hexapod/internal/config"
)

const pca9685ResolutionBits = 12

// Hardware is the initialized driver registry and the /OE line if one is wired.
type Hardware struct {
	Registry     *command.Registry
	OutputEnable *outputenable.Pin
}

// NewHardware builds and initializes every driver named in the command config.
func NewHardware(cfg config.CommandConfig) (*Hardware, error) {
	if cfg.CommandDriver != "fake" && cfg.ResolutionBits != pca9685ResolutionBits {
		return nil, fmt.Errorf("%w: %s drivers are %d bit, got %d", config.ErrConfig, cfg.CommandDriver, pca9685ResolutionBits, cfg.ResolutionBits)
	}

	hardware := &Hardware{
		Registry: command.NewRegistry(cfg.Frequency, cfg.ResolutionBits),
	}

	for _, driverCfg := range cfg.DriverCfgs {
		var driver command.Driver
		switch cfg.CommandDriver {
		case "pca9685":
			driver = pca9685.NewCommand(driverCfg.Address, cfg.I2CDevice)
		case "periph":
			driver = periph.NewCommand(driverCfg.Address, cfg.I2CDevice)
		case "fake":
			driver = fake.NewDriver(fmt.Sprintf("fake@0x%x", driverCfg.Address))
		default:
			return nil, fmt.Errorf("%w: unknown servo driver %q", config.ErrConfig, cfg.CommandDriver)
		}

		err := hardware.Registry.AddDriver(driverCfg.ID, driver)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
		}
	}

	if cfg.OutputEnablePin >= 0 {
		hardware.OutputEnable = outputenable.New(cfg.OutputEnablePin)
		err := hardware.OutputEnable.Open()
		if err != nil {
			return nil, err
		}
		hardware.Registry.SetOutputEnable(hardware.OutputEnable)
	}

	err := hardware.Registry.Init()
	if err != nil {
		hardware.Close()
		return nil, err
	}
	return hardware, nil
}

// Close zeroes every channel and releases the drivers and the /OE line.
func (h *Hardware) Close() error {
	err := h.Registry.Stop()
	if h.OutputEnable != nil {
		closeErr := h.OutputEnable.Close()
		if closeErr != nil {
			log.Errorf("failed closing output enable: %s", closeErr)
		}
	}
	return err
}
