// Package config loads the server's JSON configuration file and applies
// defaults for anything the file omits.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "bancho.json"

	// DefaultPort is the default listen port.
	DefaultPort = 8080

	// DefaultHost is the default listen host.
	DefaultHost = "0.0.0.0"
)

// Config is the complete bancho.json configuration.
type Config struct {
	// Host is the listen address.
	Host string `json:"host,omitempty"`

	// Port is the listen port.
	Port int `json:"port,omitempty"`

	// DatabaseURL is the postgres DSN. Empty runs the server on the
	// in-memory store (development and tests).
	DatabaseURL string `json:"database_url,omitempty"`

	// ProtocolVersion is the bancho protocol version sent at login.
	ProtocolVersion int32 `json:"protocol_version,omitempty"`

	// MinClientYear rejects client builds older than this year.
	MinClientYear int `json:"min_client_year,omitempty"`

	// LivenessWindowSeconds is how long a session may stay silent
	// before the sweep logs it out.
	LivenessWindowSeconds int `json:"liveness_window_seconds,omitempty"`

	// LoginGraceSeconds is how long an existing quiet session blocks a
	// new login for the same name before being evicted instead.
	LoginGraceSeconds int `json:"login_grace_seconds,omitempty"`

	// MenuIconURL and MenuClickURL configure the main menu banner.
	MenuIconURL  string `json:"menu_icon_url,omitempty"`
	MenuClickURL string `json:"menu_click_url,omitempty"`

	// Channels are the permanent chat channels created at startup.
	Channels []ChannelConfig `json:"channels,omitempty"`
}

// ChannelConfig describes one permanent channel.
type ChannelConfig struct {
	Name      string `json:"name"`
	Topic     string `json:"topic,omitempty"`
	AutoJoin  bool   `json:"auto_join,omitempty"`
	ReadPriv  uint32 `json:"read_priv,omitempty"`
	WritePriv uint32 `json:"write_priv,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the config file at path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ProtocolVersion == 0 {
		c.ProtocolVersion = 19
	}
	if c.MinClientYear == 0 {
		c.MinClientYear = 2010
	}
	if c.LivenessWindowSeconds == 0 {
		c.LivenessWindowSeconds = 300
	}
	if c.LoginGraceSeconds == 0 {
		c.LoginGraceSeconds = 10
	}
	if c.Channels == nil {
		c.Channels = []ChannelConfig{
			{Name: "#osu", Topic: "General discussion.", AutoJoin: true},
			{Name: "#announce", Topic: "Announcements.", AutoJoin: true},
			{Name: "#lobby", Topic: "Multiplayer lobby."},
		}
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	for _, ch := range c.Channels {
		if len(ch.Name) < 2 || ch.Name[0] != '#' {
			return fmt.Errorf("config: channel name %q must start with '#'", ch.Name)
		}
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LivenessWindow returns the session timeout as a duration.
func (c *Config) LivenessWindow() time.Duration {
	return time.Duration(c.LivenessWindowSeconds) * time.Second
}

// LoginGrace returns the stale-session eviction grace as a duration.
func (c *Config) LoginGrace() time.Duration {
	return time.Duration(c.LoginGraceSeconds) * time.Second
}
