package config

import "errors"

// ErrConfig marks a wiring/calibration problem that can never succeed at runtime.
var ErrConfig = errors.New("config error")

const (
	MaxSupportedDrivers  = 4
	MaxSupportedChannels = 16
	NumLegs              = 6
	AppEnvBase           = "HEXAPOD_"

	DefaultLogLevel = "info"

	// Default Command Options
	DefaultCommandDriver    = "pca9685"
	DefaultI2CDevice        = "/dev/i2c-1"
	DefaultDriverCount      = 2
	DefaultFrequency        = 50.0
	DefaultResolutionBits   = 12
	DefaultOutputEnablePin  = -1
	DefaultMinPulse         = 500
	DefaultMaxPulse         = 2500
	DefaultCenterPulse      = 1500
	DefaultInverted         = false
	DefaultCalibrationPath  = ""
	DefaultDriverAddressOne = 0x40
	DefaultDriverAddressTwo = 0x41

	// Default Gait Options
	DefaultWalkGait    = "tripod"
	DefaultPhaseHoldMs = 250
	DefaultStandHoldMs = 800
	DefaultSitHoldMs   = 600

	// Default pulse widths in microseconds, body frame.
	DefaultNeutral      = 1500
	DefaultCoxaForward  = 1600
	DefaultCoxaBackward = 1400
	DefaultFemurUp      = 1400
	DefaultFemurDown    = 1600
	DefaultFemurStand   = 1450
	DefaultFemurSit     = 1600
	DefaultTibiaExtend  = 1400
	DefaultTibiaStand   = 1550
	DefaultTibiaTuck    = 1600

	// Default Transport Options
	DefaultServer           = ""
	DefaultKey              = ""
	DefaultPassword         = ""
	DefaultNetInterface     = "wlan0"
	DefaultMQTTBroker       = ""
	DefaultMQTTClientID     = "hexapod"
	DefaultMQTTCommandTopic = "hexapod/command"
	DefaultMQTTStatusTopic  = "hexapod/status"
)

var DefaultDriverAddresses = []int{DefaultDriverAddressOne, DefaultDriverAddressTwo, 0x42, 0x43}

type Config struct {
	LogLevel   string
	CommandCfg CommandConfig
	LegCfgs    []LegConfig
	PulseCfg   PulseConfig
	GaitCfg    GaitConfig
	ServerCfg  ServerConfig
	MQTTCfg    MQTTConfig
}

type CommandConfig struct {
	CommandDriver   string
	I2CDevice       string
	Frequency       float64
	ResolutionBits  int
	OutputEnablePin int
	DriverCfgs      []DriverConfig
}

type DriverConfig struct {
	ID      int
	Address byte
}

type LegConfig struct {
	ID     int         `yaml:"id"`
	Driver int         `yaml:"driver"`
	Coxa   JointConfig `yaml:"coxa"`
	Femur  JointConfig `yaml:"femur"`
	Tibia  JointConfig `yaml:"tibia"`
}

type JointConfig struct {
	Channel  int  `yaml:"channel"`
	MinPulse int  `yaml:"min_us"`
	MaxPulse int  `yaml:"max_us"`
	Center   int  `yaml:"center_us"`
	Inverted bool `yaml:"inverted"`
}

// PulseConfig holds the named pose constants in microseconds, calibrated per robot.
type PulseConfig struct {
	Neutral      int `yaml:"neutral"`
	CoxaForward  int `yaml:"coxa_forward"`
	CoxaBackward int `yaml:"coxa_backward"`
	FemurUp      int `yaml:"femur_up"`
	FemurDown    int `yaml:"femur_down"`
	FemurStand   int `yaml:"femur_stand"`
	FemurSit     int `yaml:"femur_sit"`
	TibiaExtend  int `yaml:"tibia_extend"`
	TibiaStand   int `yaml:"tibia_stand"`
	TibiaTuck    int `yaml:"tibia_tuck"`
}

type GaitConfig struct {
	WalkGait    string
	PhaseHoldMs int
	StandHoldMs int
	SitHoldMs   int
}

type ServerConfig struct {
	Server       string
	Key          string
	Password     string
	NetInterface string
}

type MQTTConfig struct {
	Broker       string
	ClientID     string
	CommandTopic string
	StatusTopic  string
}
