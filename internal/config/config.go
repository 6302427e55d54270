package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration values.
type Config struct {
	MQTT    MQTTConfig    `toml:"mqtt"`
	Topics  TopicsConfig  `toml:"topics"`
	Wheel   WheelConfig   `toml:"wheel"`
	Input   InputConfig   `toml:"input"`
	Arbiter ArbiterConfig `toml:"arbiter"`
	Vehicle VehicleConfig `toml:"vehicle"`
	CAN     CANConfig     `toml:"can"`
	GPS     GPSConfig     `toml:"gps"`
	Lights  LightsConfig  `toml:"lights"`
	Web     WebConfig     `toml:"web"`
}

type MQTTConfig struct {
	Broker             string `toml:"broker"`
	ClientIDController string `toml:"client_id_controller"`
	ClientIDConsole    string `toml:"client_id_console"`
	ClientIDWeb        string `toml:"client_id_web"`
	ClientIDDebug      string `toml:"client_id_debug"`
	ClientIDOracle     string `toml:"client_id_oracle"` // mock oracle
}

type TopicsConfig struct {
	Envelope  string `toml:"envelope"`  // safety oracle output
	Telemetry string `toml:"telemetry"` // controller status, retained
	Command   string `toml:"command"`   // lifecycle commands to the controller
}

type WheelConfig struct {
	// Transport: "hidraw", "hidapi" or "serial"
	Transport string `toml:"transport"`
	Path      string `toml:"path"`
	VendorID  uint16 `toml:"vendor_id"`
	ProductID uint16 `toml:"product_id"`
	BaudRate  uint   `toml:"baud_rate"`
	Range     uint16 `toml:"range"` // degrees
	Hotplug   bool   `toml:"hotplug"`
}

type InputConfig struct {
	Joystick string `toml:"joystick"` // evdev node of the wheel, empty to disable
	Keyboard string `toml:"keyboard"`
	Mouse    string `toml:"mouse"`

	SteerAxis       int     `toml:"steer_axis"`
	ThrottleAxis    int     `toml:"throttle_axis"`
	BrakeAxis       int     `toml:"brake_axis"`
	HandbrakeButton int     `toml:"handbrake_button"`
	SteerGain       float64 `toml:"steer_gain"`
	MouseRadius     float64 `toml:"mouse_radius"`
}

type ArbiterConfig struct {
	TickRate       int           `toml:"tick_rate"` // Hz
	SpeedLimitKmh  float64       `toml:"speed_limit_kmh"`
	FadeIn         time.Duration `toml:"fade_in"`
	ResponseTime   time.Duration `toml:"response_time"`
	BrakeMax       float64       `toml:"brake_max"` // m/s²
	Evasive        bool          `toml:"evasive"`
	EnvelopeMaxAge time.Duration `toml:"envelope_max_age"`
}

type VehicleConfig struct {
	// Actuator: "mock" or "can"
	Actuator string `toml:"actuator"`
	// SpeedSource: "actuator" or "gps"
	SpeedSource string `toml:"speed_source"`
}

type CANConfig struct {
	Interface   string `toml:"interface"`
	CommandID   uint32 `toml:"command_id"`
	SpeedID     uint32 `toml:"speed_id"`
	AutopilotID uint32 `toml:"autopilot_id"`
}

type GPSConfig struct {
	SerialPort string `toml:"serial_port"`
	BaudRate   uint   `toml:"baud_rate"`
}

type LightsConfig struct {
	// Driver: "log" or "gpio"
	Driver   string `toml:"driver"`
	BrakePin string `toml:"brake_pin"`
}

type WebConfig struct {
	Port      int    `toml:"port"`
	StaticDir string `toml:"static_dir"`
}

// Package-level unexported variables for the singleton:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: InitGlobal runs once even if called several times.
//   - configMu: write lock for initialization, read lock for Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker:             "tcp://localhost:1883",
			ClientIDController: "wheel-controller",
			ClientIDConsole:    "wheel-console-subscriber",
			ClientIDWeb:        "wheel-web",
			ClientIDDebug:      "wheel-debug",
			ClientIDOracle:     "wheel-oracle-mock",
		},
		Topics: TopicsConfig{
			Envelope:  "wheel/envelope",
			Telemetry: "wheel/telemetry",
			Command:   "wheel/command",
		},
		Wheel: WheelConfig{
			Transport: "hidraw",
			Path:      "/dev/hidraw0",
			VendorID:  0x046d,
			ProductID: 0xc24f,
			BaudRate:  115200,
			Range:     360,
			Hotplug:   true,
		},
		Input: InputConfig{
			SteerAxis:       0,
			ThrottleAxis:    2,
			BrakeAxis:       3,
			HandbrakeButton: 4,
			SteerGain:       0.4,
			MouseRadius:     200,
		},
		Arbiter: ArbiterConfig{
			TickRate:       60,
			SpeedLimitKmh:  30,
			FadeIn:         500 * time.Millisecond,
			ResponseTime:   300 * time.Millisecond,
			BrakeMax:       8,
			EnvelopeMaxAge: 200 * time.Millisecond,
		},
		Vehicle: VehicleConfig{
			Actuator:    "mock",
			SpeedSource: "actuator",
		},
		CAN: CANConfig{
			Interface:   "can0",
			CommandID:   0x200,
			SpeedID:     0x300,
			AutopilotID: 0x301,
		},
		GPS: GPSConfig{
			SerialPort: "/dev/serial0",
			BaudRate:   9600,
		},
		Lights: LightsConfig{
			Driver:   "log",
			BrakePin: "GPIO17",
		},
		Web: WebConfig{
			Port:      8080,
			StaticDir: "web",
		},
	}
}

// Load reads the configuration file over the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks required fields and enumerations.
func (c *Config) validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.Topics.Envelope == "" || c.Topics.Telemetry == "" || c.Topics.Command == "" {
		return fmt.Errorf("topics.envelope, topics.telemetry and topics.command are required")
	}
	switch c.Wheel.Transport {
	case "hidraw", "hidapi", "serial":
	default:
		return fmt.Errorf("wheel.transport must be hidraw, hidapi or serial, got %q", c.Wheel.Transport)
	}
	if c.Wheel.Transport != "hidapi" && c.Wheel.Path == "" {
		return fmt.Errorf("wheel.path is required for transport %q", c.Wheel.Transport)
	}
	if c.Wheel.Range == 0 || c.Wheel.Range > 900 {
		return fmt.Errorf("wheel.range must be 1-900, got %d", c.Wheel.Range)
	}
	if c.Input.SteerAxis < 0 || c.Input.ThrottleAxis < 0 || c.Input.BrakeAxis < 0 || c.Input.HandbrakeButton < 0 {
		return fmt.Errorf("input axis and button indices must not be negative")
	}
	if c.Input.MouseRadius <= 0 {
		return fmt.Errorf("input.mouse_radius must be positive")
	}
	if c.Arbiter.TickRate <= 0 || c.Arbiter.TickRate > 1000 {
		return fmt.Errorf("arbiter.tick_rate must be 1-1000, got %d", c.Arbiter.TickRate)
	}
	if c.Arbiter.SpeedLimitKmh <= 0 {
		return fmt.Errorf("arbiter.speed_limit_kmh must be positive")
	}
	if c.Arbiter.EnvelopeMaxAge <= 0 {
		return fmt.Errorf("arbiter.envelope_max_age must be positive")
	}
	switch c.Vehicle.Actuator {
	case "mock", "can":
	default:
		return fmt.Errorf("vehicle.actuator must be mock or can, got %q", c.Vehicle.Actuator)
	}
	switch c.Vehicle.SpeedSource {
	case "actuator":
	case "gps":
		if c.GPS.SerialPort == "" || c.GPS.BaudRate == 0 {
			return fmt.Errorf("gps.serial_port and gps.baud_rate are required for speed_source gps")
		}
	default:
		return fmt.Errorf("vehicle.speed_source must be actuator or gps, got %q", c.Vehicle.SpeedSource)
	}
	if c.Vehicle.Actuator == "can" && c.CAN.Interface == "" {
		return fmt.Errorf("can.interface is required for the can actuator")
	}
	switch c.Lights.Driver {
	case "log":
	case "gpio":
		if c.Lights.BrakePin == "" {
			return fmt.Errorf("lights.brake_pin is required for the gpio driver")
		}
	default:
		return fmt.Errorf("lights.driver must be log or gpio, got %q", c.Lights.Driver)
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be 1-65535, got %d", c.Web.Port)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
