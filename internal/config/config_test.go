package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	cfg, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultCommandDriver, cfg.CommandCfg.CommandDriver)
	assert.Equal(t, DefaultFrequency, cfg.CommandCfg.Frequency)
	require.Len(t, cfg.CommandCfg.DriverCfgs, 2)
	assert.Equal(t, byte(0x40), cfg.CommandCfg.DriverCfgs[0].Address)
	assert.Equal(t, byte(0x41), cfg.CommandCfg.DriverCfgs[1].Address)

	require.Len(t, cfg.LegCfgs, NumLegs)
	assert.Equal(t, 0, cfg.LegCfgs[0].Driver)
	assert.Equal(t, 0, cfg.LegCfgs[0].Coxa.Channel)
	assert.Equal(t, 8, cfg.LegCfgs[2].Tibia.Channel)
	assert.Equal(t, 1, cfg.LegCfgs[3].Driver)
	assert.Equal(t, 0, cfg.LegCfgs[3].Coxa.Channel)
	assert.Equal(t, 8, cfg.LegCfgs[5].Tibia.Channel)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(AppEnvBase+"DRIVER1_ADDRESS", "0x44")
	t.Setenv(AppEnvBase+"PHASEHOLD_MS", "120")
	t.Setenv(AppEnvBase+"WALKGAIT", "WAVE")
	t.Setenv(AppEnvBase+"LEG2_FEMUR_INVERTED", "true")
	t.Setenv(AppEnvBase+"PULSE_FEMUR_UP", "not-a-number")

	cfg, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, byte(0x44), cfg.CommandCfg.DriverCfgs[1].Address)
	assert.Equal(t, 120, cfg.GaitCfg.PhaseHoldMs)
	assert.Equal(t, "wave", cfg.GaitCfg.WalkGait)
	assert.True(t, cfg.LegCfgs[1].Femur.Inverted)
	assert.Equal(t, DefaultFemurUp, cfg.PulseCfg.FemurUp, "unparseable values fall back to the default")
}

func TestNegativeDriverCountIsConfigError(t *testing.T) {
	t.Setenv(AppEnvBase+"DRIVERCOUNT", "-1")

	cmdCfg := GetCommandConfig()
	assert.Empty(t, cmdCfg.DriverCfgs)

	_, err := GetConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNonPositiveHoldIsConfigError(t *testing.T) {
	t.Setenv(AppEnvBase+"PHASEHOLD_MS", "0")

	_, err := GetConfig()
	assert.ErrorIs(t, err, ErrConfig)
}

func TestValidateRejectsBadWiring(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"shared channel", func(c *Config) { c.LegCfgs[1].Coxa.Channel = c.LegCfgs[0].Coxa.Channel }},
		{"unknown driver", func(c *Config) { c.LegCfgs[4].Driver = 7 }},
		{"channel out of range", func(c *Config) { c.LegCfgs[0].Tibia.Channel = 16 }},
		{"inverted bounds", func(c *Config) { c.LegCfgs[0].Femur.MinPulse = 2600 }},
		{"leg id out of range", func(c *Config) { c.LegCfgs[5].ID = 9 }},
		{"duplicate leg", func(c *Config) { c.LegCfgs[5].ID = 1 }},
		{"missing leg", func(c *Config) { c.LegCfgs = c.LegCfgs[:5] }},
		{"zero frequency", func(c *Config) { c.CommandCfg.Frequency = 0 }},
		{"no drivers", func(c *Config) { c.CommandCfg.DriverCfgs = nil }},
		{"zero phase hold", func(c *Config) { c.GaitCfg.PhaseHoldMs = 0 }},
		{"negative stand hold", func(c *Config) { c.GaitCfg.StandHoldMs = -5 }},
		{"zero sit hold", func(c *Config) { c.GaitCfg.SitHoldMs = 0 }},
		{"center below min", func(c *Config) { c.LegCfgs[2].Femur.Center = 400 }},
		{"center above max", func(c *Config) { c.LegCfgs[3].Tibia.Center = 2600 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				CommandCfg: GetCommandConfig(),
				LegCfgs:    GetLegConfigs(),
				GaitCfg:    GetGaitConfig(),
			}
			require.NoError(t, cfg.Validate())

			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
		})
	}
}

func TestApplyCalibration(t *testing.T) {
	cfg := Config{
		CommandCfg: GetCommandConfig(),
		LegCfgs:    GetLegConfigs(),
		PulseCfg:   GetPulseConfig(),
		GaitCfg:    GetGaitConfig(),
	}

	data := []byte(`
pulses:
  neutral: 1504
  femur_up: 1380
legs:
  - id: 3
    femur:
      inverted: true
      center_us: 1510
  - id: 5
    driver: 1
    tibia:
      max_us: 2000
`)
	require.NoError(t, cfg.ApplyCalibration(data))

	assert.Equal(t, 1504, cfg.PulseCfg.Neutral)
	assert.Equal(t, 1380, cfg.PulseCfg.FemurUp)
	assert.Equal(t, DefaultFemurDown, cfg.PulseCfg.FemurDown)

	leg3 := cfg.LegCfgs[2]
	assert.True(t, leg3.Femur.Inverted)
	assert.Equal(t, 1510, leg3.Femur.Center)
	assert.Equal(t, 7, leg3.Femur.Channel, "keys missing from the file keep their env values")

	leg5 := cfg.LegCfgs[4]
	assert.Equal(t, 2000, leg5.Tibia.MaxPulse)
	assert.Equal(t, DefaultMinPulse, leg5.Tibia.MinPulse)
	assert.NoError(t, cfg.Validate())
}

func TestApplyCalibrationUnknownLeg(t *testing.T) {
	cfg := Config{LegCfgs: GetLegConfigs()}

	err := cfg.ApplyCalibration([]byte("legs:\n  - id: 12\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}
