package onboard

import (
	"fmt"
	"os"
	"time"

	"github.com/CodedInternet/rcremote/calcs"
	"github.com/Masterminds/semver"
	"github.com/caarlos0/env/v6"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v2"
)

const (
	// ConfigVersion is written into generated configs; files must satisfy
	// configConstraint.
	ConfigVersion    = "1.0.0"
	configConstraint = "~1.0"

	EnvPrefix = "RCREMOTE_"
)

type Config struct {
	Version    string           `yaml:"version"`
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat" envPrefix:"HEARTBEAT_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Control    ControlConfig    `yaml:"control" envPrefix:"CONTROL_"`
	Simulation SimulationConfig `yaml:"simulation" envPrefix:"SIM_"`
	Auth       AuthConfig       `yaml:"auth" envPrefix:"AUTH_"`
	Storage    StorageConfig    `yaml:"storage" envPrefix:"STORAGE_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen" env:"LISTEN"`
	Path            string        `yaml:"path" env:"PATH"`
	TCPListen       string        `yaml:"tcpListen" env:"TCP_LISTEN"` // newline framed, disabled when empty
	Exclusive       bool          `yaml:"exclusive" env:"EXCLUSIVE"`
	ReadBufferSize  int           `yaml:"readBufferSize" env:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"writeBufferSize" env:"WRITE_BUFFER_SIZE"`
	StatusInterval  time.Duration `yaml:"statusInterval" env:"STATUS_INTERVAL"`
}

type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

type TelemetryConfig struct {
	StrictKeys bool `yaml:"strictKeys" env:"STRICT_KEYS"`
}

type ControlConfig struct {
	Gains            calcs.Gains `yaml:"gains" envPrefix:"GAIN_"`
	GripperThreshold float64     `yaml:"gripperThreshold" env:"GRIPPER_THRESHOLD"`
	MoveDuration     float64     `yaml:"moveDuration" env:"MOVE_DURATION"`
	SpeedBased       bool        `yaml:"speedBased" env:"SPEED_BASED"`
}

type SimulationConfig struct {
	TimeStep time.Duration `yaml:"timeStep" env:"TIME_STEP"`
	Home     []float64     `yaml:"home,flow" env:"HOME" envSeparator:","`
}

type AuthConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Secret   string        `yaml:"secret" env:"SECRET"`
	Issuer   string        `yaml:"issuer" env:"ISSUER"`
	Lifespan time.Duration `yaml:"lifespan" env:"LIFESPAN"`
}

type StorageConfig struct {
	Path string `yaml:"path" env:"PATH"` // session history and users, disabled when empty
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"maxSizeMb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"maxBackups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"maxAgeDays" env:"MAX_AGE_DAYS"`
}

// DefaultConfig matches what the handheld client expects: port 1145, a 10s heartbeat
// and a 5ms simulation step with the arm starting at (0, 0.5, 0.5).
func DefaultConfig() *Config {
	return &Config{
		Version: ConfigVersion,
		Server: ServerConfig{
			Listen:          "0.0.0.0:1145",
			Path:            "/",
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			StatusInterval:  5 * time.Second,
		},
		Heartbeat: HeartbeatConfig{
			Interval: 10 * time.Second,
		},
		Control: ControlConfig{
			Gains:            calcs.DefaultGains,
			GripperThreshold: calcs.DefaultGripperThreshold,
		},
		Simulation: SimulationConfig{
			TimeStep: 5 * time.Millisecond,
			Home:     []float64{0, 0.5, 0.5},
		},
		Auth: AuthConfig{
			Issuer:   "rcremote",
			Lifespan: time.Hour,
		},
		Storage: StorageConfig{
			Path: "./tmp/rcremote.db",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig layers the YAML file at path (optional) and RCREMOTE_*
// environment variables over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := ParseConfig(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig unmarshals YAML over cfg and checks the schema version.
func ParseConfig(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unable to unmarshal yaml: %w", err)
	}
	return checkVersion(cfg.Version)
}

func checkVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("config version %q: %w", version, err)
	}

	constraint, err := semver.NewConstraint(configConstraint)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("unable to use config version %s - require %s", version, configConstraint)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must be set")
	}
	if c.Server.Path == "" || c.Server.Path[0] != '/' {
		return fmt.Errorf("server.path %q must start with '/'", c.Server.Path)
	}
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat.interval must be positive, got %s", c.Heartbeat.Interval)
	}
	if c.Server.StatusInterval <= 0 {
		return fmt.Errorf("server.statusInterval must be positive, got %s", c.Server.StatusInterval)
	}
	if c.Simulation.TimeStep < 0 {
		return fmt.Errorf("simulation.timeStep must not be negative")
	}
	if _, err := c.HomePosition(); err != nil {
		return err
	}
	if c.Auth.Enabled {
		if c.Auth.Secret == "" {
			return fmt.Errorf("auth.secret is required when auth is enabled")
		}
		if c.Storage.Path == "" {
			return fmt.Errorf("auth needs storage.path for its users")
		}
	}
	return nil
}

// HomePosition is the simulated arm's starting pose.
func (c *Config) HomePosition() (mgl64.Vec3, error) {
	home := c.Simulation.Home
	if len(home) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("simulation.home needs 3 coordinates, got %d", len(home))
	}
	return mgl64.Vec3{home[0], home[1], home[2]}, nil
}
