package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "config",
})

func GetConfig() (Config, error) {
	cfg := Config{
		LogLevel:   GetStringEnv("LOGLEVEL", DefaultLogLevel),
		CommandCfg: GetCommandConfig(),
		LegCfgs:    GetLegConfigs(),
		PulseCfg:   GetPulseConfig(),
		GaitCfg:    GetGaitConfig(),
		ServerCfg:  GetServerConfig(),
		MQTTCfg:    GetMQTTConfig(),
	}

	calibrationPath := GetRawStringEnv("CALIBRATION", DefaultCalibrationPath)
	if calibrationPath != "" {
		err := cfg.LoadCalibration(calibrationPath)
		if err != nil {
			return cfg, err
		}
	}

	err := cfg.Validate()
	if err != nil {
		return cfg, err
	}

	log.Debugf("app config: %+v", cfg)
	return cfg, nil
}

func GetCommandConfig() CommandConfig {
	commandCfg := CommandConfig{
		CommandDriver:   GetStringEnv("SERVODRIVER", DefaultCommandDriver),
		I2CDevice:       GetRawStringEnv("I2CDEVICE", DefaultI2CDevice),
		Frequency:       GetFloatEnv("PWMFREQUENCY", DefaultFrequency),
		ResolutionBits:  GetIntEnv("RESOLUTIONBITS", DefaultResolutionBits),
		OutputEnablePin: GetIntEnv("OUTPUTENABLEPIN", DefaultOutputEnablePin),
	}

	driverCount := GetIntEnv("DRIVERCOUNT", DefaultDriverCount)
	if driverCount > MaxSupportedDrivers {
		log.Warnf("driver count %d above max %d, clamping", driverCount, MaxSupportedDrivers)
		driverCount = MaxSupportedDrivers
	} else if driverCount < 0 {
		log.Warnf("driver count %d below zero, using none", driverCount)
		driverCount = 0
	}

	commandCfg.DriverCfgs = make([]DriverConfig, 0, driverCount)
	for i := 0; i < driverCount; i++ {
		envPrefix := fmt.Sprintf("DRIVER%d_", i)
		commandCfg.DriverCfgs = append(commandCfg.DriverCfgs, DriverConfig{
			ID:      i,
			Address: byte(GetIntEnv(envPrefix+"ADDRESS", DefaultDriverAddresses[i])),
		})
	}
	return commandCfg
}

// GetLegConfigs builds the wiring table. Legs 1-3 default to driver 0 and
// legs 4-6 to driver 1, three consecutive channels per leg.
func GetLegConfigs() []LegConfig {
	legCfgs := make([]LegConfig, 0, NumLegs)
	for i := 1; i <= NumLegs; i++ {
		envPrefix := fmt.Sprintf("LEG%d_", i)
		defaultDriver := (i - 1) / 3
		baseChannel := ((i - 1) % 3) * 3

		legCfgs = append(legCfgs, LegConfig{
			ID:     i,
			Driver: GetIntEnv(envPrefix+"DRIVER", defaultDriver),
			Coxa:   GetJointConfig(envPrefix+"COXA", baseChannel),
			Femur:  GetJointConfig(envPrefix+"FEMUR", baseChannel+1),
			Tibia:  GetJointConfig(envPrefix+"TIBIA", baseChannel+2),
		})
	}
	return legCfgs
}

func GetJointConfig(envPrefix string, defaultChannel int) JointConfig {
	return JointConfig{
		Channel:  GetIntEnv(envPrefix, defaultChannel),
		MinPulse: GetIntEnv(envPrefix+"_MINPULSE", DefaultMinPulse),
		MaxPulse: GetIntEnv(envPrefix+"_MAXPULSE", DefaultMaxPulse),
		Center:   GetIntEnv(envPrefix+"_CENTER", DefaultCenterPulse),
		Inverted: GetBoolEnv(envPrefix+"_INVERTED", DefaultInverted),
	}
}

func GetPulseConfig() PulseConfig {
	envPrefix := "PULSE_"
	return PulseConfig{
		Neutral:      GetIntEnv(envPrefix+"NEUTRAL", DefaultNeutral),
		CoxaForward:  GetIntEnv(envPrefix+"COXA_FORWARD", DefaultCoxaForward),
		CoxaBackward: GetIntEnv(envPrefix+"COXA_BACKWARD", DefaultCoxaBackward),
		FemurUp:      GetIntEnv(envPrefix+"FEMUR_UP", DefaultFemurUp),
		FemurDown:    GetIntEnv(envPrefix+"FEMUR_DOWN", DefaultFemurDown),
		FemurStand:   GetIntEnv(envPrefix+"FEMUR_STAND", DefaultFemurStand),
		FemurSit:     GetIntEnv(envPrefix+"FEMUR_SIT", DefaultFemurSit),
		TibiaExtend:  GetIntEnv(envPrefix+"TIBIA_EXTEND", DefaultTibiaExtend),
		TibiaStand:   GetIntEnv(envPrefix+"TIBIA_STAND", DefaultTibiaStand),
		TibiaTuck:    GetIntEnv(envPrefix+"TIBIA_TUCK", DefaultTibiaTuck),
	}
}

func GetGaitConfig() GaitConfig {
	return GaitConfig{
		WalkGait:    GetStringEnv("WALKGAIT", DefaultWalkGait),
		PhaseHoldMs: GetIntEnv("PHASEHOLD_MS", DefaultPhaseHoldMs),
		StandHoldMs: GetIntEnv("STANDHOLD_MS", DefaultStandHoldMs),
		SitHoldMs:   GetIntEnv("SITHOLD_MS", DefaultSitHoldMs),
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Server:       GetRawStringEnv("SERVER", DefaultServer),
		Key:          GetRawStringEnv("KEY", DefaultKey),
		Password:     GetRawStringEnv("PASSWORD", DefaultPassword),
		NetInterface: GetRawStringEnv("NETINTERFACE", DefaultNetInterface),
	}
}

func GetMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:       GetRawStringEnv("MQTTBROKER", DefaultMQTTBroker),
		ClientID:     GetRawStringEnv("MQTTCLIENTID", DefaultMQTTClientID),
		CommandTopic: GetRawStringEnv("MQTTCOMMANDTOPIC", DefaultMQTTCommandTopic),
		StatusTopic:  GetRawStringEnv("MQTTSTATUSTOPIC", DefaultMQTTStatusTopic),
	}
}

// LoadCalibration overlays the YAML calibration file on top of the env config.
// Only the keys present in the file are changed.
func (c *Config) LoadCalibration(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed reading calibration file %s: %w", ErrConfig, path, err)
	}
	return c.ApplyCalibration(data)
}

func (c *Config) ApplyCalibration(data []byte) error {
	file := struct {
		Pulses yaml.Node   `yaml:"pulses"`
		Legs   []yaml.Node `yaml:"legs"`
	}{}
	err := yaml.Unmarshal(data, &file)
	if err != nil {
		return fmt.Errorf("%w: failed parsing calibration: %w", ErrConfig, err)
	}

	if !file.Pulses.IsZero() {
		err = file.Pulses.Decode(&c.PulseCfg)
		if err != nil {
			return fmt.Errorf("%w: failed parsing calibration pulses: %w", ErrConfig, err)
		}
	}

	for i := range file.Legs {
		legID := struct {
			ID int `yaml:"id"`
		}{}
		err = file.Legs[i].Decode(&legID)
		if err != nil {
			return fmt.Errorf("%w: failed parsing calibration leg %d: %w", ErrConfig, i, err)
		}

		index := -1
		for j := range c.LegCfgs {
			if c.LegCfgs[j].ID == legID.ID {
				index = j
				break
			}
		}
		if index < 0 {
			return fmt.Errorf("%w: calibration references unknown leg %d", ErrConfig, legID.ID)
		}

		err = file.Legs[i].Decode(&c.LegCfgs[index])
		if err != nil {
			return fmt.Errorf("%w: failed parsing calibration leg %d: %w", ErrConfig, legID.ID, err)
		}
	}
	log.Infof("calibration applied: %d legs overridden", len(file.Legs))
	return nil
}

// Validate rejects wiring tables that could drive the wrong servo and timing
// that leaves no settle time.
func (c *Config) Validate() error {
	if c.CommandCfg.Frequency <= 0 {
		return fmt.Errorf("%w: pwm frequency must be positive, got %.2f", ErrConfig, c.CommandCfg.Frequency)
	}
	if c.CommandCfg.ResolutionBits <= 0 || c.CommandCfg.ResolutionBits > 16 {
		return fmt.Errorf("%w: resolution bits must be in 1..16, got %d", ErrConfig, c.CommandCfg.ResolutionBits)
	}

	if len(c.CommandCfg.DriverCfgs) == 0 {
		return fmt.Errorf("%w: no servo drivers configured", ErrConfig)
	}

	holds := map[string]int{
		"phase": c.GaitCfg.PhaseHoldMs,
		"stand": c.GaitCfg.StandHoldMs,
		"sit":   c.GaitCfg.SitHoldMs,
	}
	for name, holdMs := range holds {
		if holdMs <= 0 {
			return fmt.Errorf("%w: %s hold must be positive, got %dms", ErrConfig, name, holdMs)
		}
	}

	drivers := make(map[int]bool, len(c.CommandCfg.DriverCfgs))
	for _, driverCfg := range c.CommandCfg.DriverCfgs {
		drivers[driverCfg.ID] = true
	}

	if len(c.LegCfgs) != NumLegs {
		return fmt.Errorf("%w: expected %d legs, got %d", ErrConfig, NumLegs, len(c.LegCfgs))
	}

	type wire struct {
		driver  int
		channel int
	}
	used := make(map[wire]string, NumLegs*3)
	seenLegs := make(map[int]bool, NumLegs)
	for _, legCfg := range c.LegCfgs {
		if legCfg.ID < 1 || legCfg.ID > NumLegs {
			return fmt.Errorf("%w: leg id %d out of range 1..%d", ErrConfig, legCfg.ID, NumLegs)
		}
		if seenLegs[legCfg.ID] {
			return fmt.Errorf("%w: leg %d configured twice", ErrConfig, legCfg.ID)
		}
		seenLegs[legCfg.ID] = true

		if !drivers[legCfg.Driver] {
			return fmt.Errorf("%w: leg %d references unknown driver %d", ErrConfig, legCfg.ID, legCfg.Driver)
		}

		joints := map[string]JointConfig{"coxa": legCfg.Coxa, "femur": legCfg.Femur, "tibia": legCfg.Tibia}
		for name, jointCfg := range joints {
			if jointCfg.Channel < 0 || jointCfg.Channel >= MaxSupportedChannels {
				return fmt.Errorf("%w: leg %d %s channel %d out of range", ErrConfig, legCfg.ID, name, jointCfg.Channel)
			}
			if jointCfg.MinPulse >= jointCfg.MaxPulse {
				return fmt.Errorf("%w: leg %d %s min pulse %d not below max pulse %d", ErrConfig, legCfg.ID, name, jointCfg.MinPulse, jointCfg.MaxPulse)
			}
			if jointCfg.Center < jointCfg.MinPulse || jointCfg.Center > jointCfg.MaxPulse {
				return fmt.Errorf("%w: leg %d %s center %d outside %d..%d", ErrConfig, legCfg.ID, name, jointCfg.Center, jointCfg.MinPulse, jointCfg.MaxPulse)
			}

			key := wire{driver: legCfg.Driver, channel: jointCfg.Channel}
			if owner, ok := used[key]; ok {
				return fmt.Errorf("%w: leg %d %s shares driver %d channel %d with %s", ErrConfig, legCfg.ID, name, key.driver, key.channel, owner)
			}
			used[key] = fmt.Sprintf("leg %d %s", legCfg.ID, name)
		}
	}
	return nil
}

func GetIntEnv(env string, defaultValue int) int {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}

	value, err := strconv.ParseInt(strings.Trim(envValue, "\r"), 0, 32)
	if err != nil {
		log.Warnf("%s not parsed - error: %s", env, err)
		return defaultValue
	}
	return int(value)
}

func GetBoolEnv(env string, defaultValue bool) bool {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}

	value, err := strconv.ParseBool(strings.Trim(envValue, "\r"))
	if err != nil {
		log.Warnf("%s not parsed - error: %s", env, err)
		return defaultValue
	}
	return value
}

func GetStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	return strings.ToLower(strings.Trim(envValue, "\r"))
}

// GetRawStringEnv is GetStringEnv without lower casing, for paths and urls.
func GetRawStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	return strings.Trim(envValue, "\r")
}

func GetFloatEnv(env string, defaultValue float64) float64 {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}

	value, err := strconv.ParseFloat(strings.Trim(envValue, "\r"), 64)
	if err != nil {
		log.Warnf("%s not parsed - error: %s", env, err)
		return defaultValue
	}
	return value
}
