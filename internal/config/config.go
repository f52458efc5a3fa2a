// Package config holds the facade's settings, loaded from YAML and
// overridable from command-line flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"drone-facade/internal/diaglog"
	"drone-facade/internal/link/mavlink"
	"drone-facade/internal/logger"
	"drone-facade/internal/movement"
)

type Config struct {
	// Logging mirrors diagnostic entries to the console.
	Logging bool   `yaml:"logging"`
	LogPath string `yaml:"log_path"`

	// LogLevel is the operational log level: none, error, warn, info, debug.
	LogLevel string `yaml:"log_level"`

	// AutoConnect dials the vehicle when the facade is built.
	AutoConnect bool `yaml:"auto_connect"`

	PollIntervalMs int `yaml:"poll_interval_ms"`
	DiagQueueSize  int `yaml:"diag_queue_size"`

	Link  LinkConfig  `yaml:"link"`
	Redis RedisConfig `yaml:"redis"`
}

type LinkConfig struct {
	Address            string `yaml:"address"`
	CameraAddress      string `yaml:"camera_address"`
	HeartbeatTimeoutMs int    `yaml:"heartbeat_timeout_ms"`
	SystemID           uint8  `yaml:"system_id"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Logging:        false,
		LogPath:        diaglog.DefaultPath,
		LogLevel:       "info",
		PollIntervalMs: int(movement.DefaultPollInterval / time.Millisecond),
		DiagQueueSize:  diaglog.DefaultQueueSize,
		Link: LinkConfig{
			Address:            mavlink.DefaultAddress,
			CameraAddress:      mavlink.DefaultCameraAddress,
			HeartbeatTimeoutMs: int(mavlink.DefaultHeartbeatTimeout / time.Millisecond),
			SystemID:           mavlink.DefaultSystemID,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// Load reads path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration without changing it.
func (c *Config) Validate() []error {
	var errs []error
	if c.LogPath == "" {
		errs = append(errs, fmt.Errorf("log_path must not be empty"))
	}
	switch c.LogLevel {
	case "none", "off", "error", "warn", "warning", "info", "debug":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if c.PollIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMs))
	}
	if c.DiagQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("diag_queue_size must be positive, got %d", c.DiagQueueSize))
	}
	if c.Link.Address == "" {
		errs = append(errs, fmt.Errorf("link.address must not be empty"))
	}
	if c.Link.HeartbeatTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("link.heartbeat_timeout_ms must be positive, got %d", c.Link.HeartbeatTimeoutMs))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("redis.addr is required when redis is enabled"))
	}
	return errs
}

// AddFlags binds command-line flags to the Config fields.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&c.Logging, "logging", c.Logging, "Mirror diagnostic entries to the console.")
	fs.StringVar(&c.LogPath, "log-path", c.LogPath, "Diagnostic log file.")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Operational log level ('none', 'error', 'warn', 'info', 'debug').")
	fs.BoolVar(&c.AutoConnect, "auto-connect", c.AutoConnect, "Connect to the drone on startup.")
	fs.IntVar(&c.PollIntervalMs, "poll-interval-ms", c.PollIntervalMs, "Movement poll interval in milliseconds.")
	fs.IntVar(&c.DiagQueueSize, "diag-queue-size", c.DiagQueueSize, "Pending diagnostic entries before new ones are dropped.")

	fs.StringVar(&c.Link.Address, "link.address", c.Link.Address, "MAVLink UDP address of the drone.")
	fs.StringVar(&c.Link.CameraAddress, "link.camera-address", c.Link.CameraAddress, "TCP address of the camera stream.")
	fs.IntVar(&c.Link.HeartbeatTimeoutMs, "link.heartbeat-timeout-ms", c.Link.HeartbeatTimeoutMs, "Wait for the first heartbeat, in milliseconds.")
	fs.Uint8Var(&c.Link.SystemID, "link.system-id", c.Link.SystemID, "MAVLink system id used by this side.")

	fs.BoolVar(&c.Redis.Enabled, "redis.enabled", c.Redis.Enabled, "Publish state to and take commands from Redis.")
	fs.StringVar(&c.Redis.Addr, "redis.addr", c.Redis.Addr, "Redis server address.")
}

func (c *Config) Level() logger.LogLevel {
	return logger.ParseLevel(c.LogLevel)
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// MavlinkConfig maps the link section onto the MAVLink adapter's settings.
func (c *Config) MavlinkConfig() mavlink.Config {
	return mavlink.Config{
		Address:          c.Link.Address,
		CameraAddress:    c.Link.CameraAddress,
		HeartbeatTimeout: time.Duration(c.Link.HeartbeatTimeoutMs) * time.Millisecond,
		SystemID:         c.Link.SystemID,
	}
}
