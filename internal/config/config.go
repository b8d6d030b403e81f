package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr               string          `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration   `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string          `mapstructure:"log_level" yaml:"log_level"`
	MaxMessageBytes    int64           `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	ClientBuffer       int             `mapstructure:"client_buffer" yaml:"client_buffer"`
	CommandBuffer      int             `mapstructure:"command_buffer" yaml:"command_buffer"`
	RateLimitPerMinute int             `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	Tap                TapConfig       `mapstructure:"tap" yaml:"tap"`
	Discovery          DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
}

// TapConfig controls mirroring of broadcast events to Redis pub/sub.
// An empty RedisAddr disables the tap.
type TapConfig struct {
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
	Channel   string `mapstructure:"channel" yaml:"channel"`
	Buffer    int    `mapstructure:"buffer" yaml:"buffer"`
}

// DiscoveryConfig controls mDNS advertisement on the local network.
type DiscoveryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Instance string `mapstructure:"instance" yaml:"instance"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":3001",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		MaxMessageBytes:    1 << 20,
		ClientBuffer:       256,
		CommandBuffer:      1024,
		RateLimitPerMinute: 0,
		Tap: TapConfig{
			Channel: "wireboard:events",
			Buffer:  1024,
		},
		Discovery: DiscoveryConfig{
			Instance: "wireboard",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.ClientBuffer != 0 {
		c.ClientBuffer = other.ClientBuffer
	}
	if other.CommandBuffer != 0 {
		c.CommandBuffer = other.CommandBuffer
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.Tap.RedisAddr != "" {
		c.Tap.RedisAddr = other.Tap.RedisAddr
	}
	if other.Tap.Channel != "" {
		c.Tap.Channel = other.Tap.Channel
	}
	if other.Tap.Buffer != 0 {
		c.Tap.Buffer = other.Tap.Buffer
	}
	if other.Discovery.Enabled {
		c.Discovery.Enabled = true
	}
	if other.Discovery.Instance != "" {
		c.Discovery.Instance = other.Discovery.Instance
	}
}
