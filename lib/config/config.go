// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment identifies the deployment the client talks to.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete chat client configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Portal configures the REST API.
	Portal PortalConfig `yaml:"portal"`

	// Channel configures the real-time event channel.
	Channel ChannelConfig `yaml:"channel"`

	// Conversation tunes the reconciliation engine.
	Conversation ConversationConfig `yaml:"conversation"`

	// Cache configures the on-disk transcript cache.
	Cache CacheConfig `yaml:"cache"`

	// UI configures the terminal chat surface.
	UI UIConfig `yaml:"ui"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the keys an environment section may replace.
type Overrides struct {
	Portal  *PortalConfig  `yaml:"portal,omitempty"`
	Channel *ChannelConfig `yaml:"channel,omitempty"`
	Cache   *CacheConfig   `yaml:"cache,omitempty"`
}

// PortalConfig configures the REST API client.
type PortalConfig struct {
	// BaseURL is the API root, e.g. "https://alumni.example.edu/api".
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds each REST call.
	RequestTimeout Duration `yaml:"request_timeout"`
}

// ChannelConfig configures the event channel.
type ChannelConfig struct {
	// URL is the websocket endpoint. Empty derives it from
	// portal.base_url: the scheme becomes ws/wss and the path "/ws".
	URL string `yaml:"url"`

	// Codec is the frame format: "json" or "cbor".
	Codec string `yaml:"codec"`

	// HandshakeTimeout bounds dial plus the server's connect frame.
	HandshakeTimeout Duration `yaml:"handshake_timeout"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig bounds automatic reconnection after transport drops.
type ReconnectConfig struct {
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Multiplier   float64  `yaml:"multiplier"`

	// MaxAttempts is the number of consecutive failed attempts after
	// which the manager gives up and reports Disconnected.
	MaxAttempts int `yaml:"max_attempts"`
}

// ConversationConfig tunes reconciliation.
type ConversationConfig struct {
	// EchoTolerance is the maximum distance between a pending message's
	// provisional timestamp and the server timestamp of its echo.
	EchoTolerance Duration `yaml:"echo_tolerance"`
}

// CacheConfig configures the transcript cache.
type CacheConfig struct {
	// Directory holds one database per account. Empty disables the cache.
	Directory string `yaml:"directory"`

	// Compression is "none", "lz4", or "zstd".
	Compression string `yaml:"compression"`
}

// UIConfig configures the terminal chat surface.
type UIConfig struct {
	// TimestampFormat is a Go time layout for message times.
	TimestampFormat string `yaml:"timestamp_format"`

	// RenderMarkdown renders message bodies as inline markdown.
	RenderMarkdown bool `yaml:"render_markdown"`
}

// Default returns the base values a config file is merged onto.
func Default() *Config {
	homeDirectory, _ := os.UserHomeDir()
	return &Config{
		Environment: Development,
		Portal: PortalConfig{
			BaseURL:        "http://127.0.0.1:3000/api",
			RequestTimeout: Duration(15 * time.Second),
		},
		Channel: ChannelConfig{
			Codec:            "json",
			HandshakeTimeout: Duration(10 * time.Second),
			Reconnect: ReconnectConfig{
				InitialDelay: Duration(time.Second),
				MaxDelay:     Duration(30 * time.Second),
				Multiplier:   2,
				MaxAttempts:  10,
			},
		},
		Conversation: ConversationConfig{
			EchoTolerance: Duration(5 * time.Second),
		},
		Cache: CacheConfig{
			Directory:   filepath.Join(homeDirectory, ".cache", "alumnet-chat"),
			Compression: "zstd",
		},
		UI: UIConfig{
			TimestampFormat: "15:04",
			RenderMarkdown:  true,
		},
	}
}

// Load reads the file named by ALUMNET_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv("ALUMNET_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("ALUMNET_CONFIG environment variable not set; " +
			"set it to the path of your chat config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile reads one configuration file, applies the matching
// environment section, and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.parse(path, data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) parse(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			// Production never keeps a plaintext transcript copy unless
			// the file asks for one explicitly.
			overrides = &Overrides{Cache: &CacheConfig{Directory: "-"}}
		}
	}
	if overrides == nil {
		return
	}

	if overrides.Portal != nil {
		if overrides.Portal.BaseURL != "" {
			c.Portal.BaseURL = overrides.Portal.BaseURL
		}
		if overrides.Portal.RequestTimeout != 0 {
			c.Portal.RequestTimeout = overrides.Portal.RequestTimeout
		}
	}

	if overrides.Channel != nil {
		if overrides.Channel.URL != "" {
			c.Channel.URL = overrides.Channel.URL
		}
		if overrides.Channel.Codec != "" {
			c.Channel.Codec = overrides.Channel.Codec
		}
		if overrides.Channel.HandshakeTimeout != 0 {
			c.Channel.HandshakeTimeout = overrides.Channel.HandshakeTimeout
		}
		reconnect := overrides.Channel.Reconnect
		if reconnect.InitialDelay != 0 {
			c.Channel.Reconnect.InitialDelay = reconnect.InitialDelay
		}
		if reconnect.MaxDelay != 0 {
			c.Channel.Reconnect.MaxDelay = reconnect.MaxDelay
		}
		if reconnect.Multiplier != 0 {
			c.Channel.Reconnect.Multiplier = reconnect.Multiplier
		}
		if reconnect.MaxAttempts != 0 {
			c.Channel.Reconnect.MaxAttempts = reconnect.MaxAttempts
		}
	}

	if overrides.Cache != nil {
		if overrides.Cache.Directory != "" {
			c.Cache.Directory = overrides.Cache.Directory
		}
		if overrides.Cache.Compression != "" {
			c.Cache.Compression = overrides.Cache.Compression
		}
	}

	// "-" is the explicit "disabled" marker usable from overrides,
	// where an empty string means "not overridden".
	if c.Cache.Directory == "-" {
		c.Cache.Directory = ""
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func (c *Config) expandVariables() {
	c.Cache.Directory = expandVars(c.Cache.Directory)
}

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// ChannelURL returns the configured websocket URL, or derives one from
// the portal base URL when none is set.
func (c *Config) ChannelURL() (string, error) {
	if c.Channel.URL != "" {
		return c.Channel.URL, nil
	}
	base, err := url.Parse(c.Portal.BaseURL)
	if err != nil {
		return "", fmt.Errorf("portal.base_url: %w", err)
	}
	switch base.Scheme {
	case "https":
		base.Scheme = "wss"
	default:
		base.Scheme = "ws"
	}
	base.Path = "/ws"
	base.RawQuery = ""
	return base.String(), nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Portal.BaseURL == "" {
		errs = append(errs, fmt.Errorf("portal.base_url is required"))
	} else if parsed, err := url.Parse(c.Portal.BaseURL); err != nil || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("portal.base_url must be an absolute URL: %q", c.Portal.BaseURL))
	}
	if c.Portal.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("portal.request_timeout must be positive"))
	}

	if !contains([]string{"json", "cbor"}, c.Channel.Codec) {
		errs = append(errs, fmt.Errorf("channel.codec must be one of: json, cbor"))
	}
	if c.Channel.HandshakeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("channel.handshake_timeout must be positive"))
	}
	reconnect := c.Channel.Reconnect
	if reconnect.InitialDelay <= 0 {
		errs = append(errs, fmt.Errorf("channel.reconnect.initial_delay must be positive"))
	}
	if reconnect.MaxDelay < reconnect.InitialDelay {
		errs = append(errs, fmt.Errorf("channel.reconnect.max_delay must be at least initial_delay"))
	}
	if reconnect.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("channel.reconnect.multiplier must be >= 1"))
	}
	if reconnect.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("channel.reconnect.max_attempts must be positive"))
	}

	if c.Conversation.EchoTolerance <= 0 {
		errs = append(errs, fmt.Errorf("conversation.echo_tolerance must be positive"))
	}

	if !contains([]string{"none", "lz4", "zstd"}, c.Cache.Compression) {
		errs = append(errs, fmt.Errorf("cache.compression must be one of: none, lz4, zstd"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(values []string, s string) bool {
	for _, value := range values {
		if value == s {
			return true
		}
	}
	return false
}
