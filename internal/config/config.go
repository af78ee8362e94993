package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Hub      HubConfig      `yaml:"hub"`
	TURN     TURNConfig     `yaml:"turn"`
}

type ServerConfig struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
	// MessageRetention prunes chat history older than this. Zero keeps
	// everything.
	MessageRetention time.Duration `yaml:"message_retention"`
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
}

type HubConfig struct {
	// RelayRawFrames controls whether frames that fail JSON decoding are
	// still fanned out to other clients as plain text.
	RelayRawFrames *bool `yaml:"relay_raw_frames"`
}

type TURNConfig struct {
	Host   string        `yaml:"host"`   // coturn hostname/IP (e.g., "turn.myserver.com")
	Port   int           `yaml:"port"`   // coturn listening port (default 3478)
	Secret string        `yaml:"secret"` // coturn static-auth-secret
	TTL    time.Duration `yaml:"ttl"`    // credential lifetime (default 24h)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HUDDLE_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("HUDDLE_TURN_SECRET"); v != "" {
		c.TURN.Secret = v
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.TURN.Host != "" && c.TURN.Secret == "" {
		return fmt.Errorf("turn.secret is required when turn.host is set")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Name == "" {
		c.Server.Name = "Huddle Server"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/huddle.db"
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 24 * time.Hour
	}
	if c.Hub.RelayRawFrames == nil {
		relay := true
		c.Hub.RelayRawFrames = &relay
	}
	if c.TURN.Port == 0 {
		c.TURN.Port = 3478
	}
	if c.TURN.TTL == 0 {
		c.TURN.TTL = 24 * time.Hour
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
