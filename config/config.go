// Package config provides typed configuration, validation, and YAML loading
// for the geyser subscription engine.
//
// A Config is immutable once constructed by [Load] or built by hand: the
// transport factory derives a fresh gRPC channel from it on every connection
// attempt, so nothing in this package mutates a Config's exported fields
// after construction.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HardReconnectCap is the absolute ceiling on reconnect attempts: no matter
// what a caller configures, the effective cap never exceeds this value.
const HardReconnectCap = 240

// Compression names the wire compression codec used for outbound or
// accepted inbound traffic.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

var validCompressions = map[Compression]struct{}{
	CompressionNone: {},
	CompressionGzip: {},
	CompressionZstd: {},
}

// UnmarshalYAML normalises and validates a compression value at parse time,
// mirroring how enum-like config fields are handled throughout this module's
// teacher lineage (case-insensitive, trimmed, rejected if unrecognised).
func (c *Compression) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	normalised := Compression(strings.ToLower(strings.TrimSpace(raw)))
	if normalised == "" {
		normalised = CompressionNone
	}
	if _, ok := validCompressions[normalised]; !ok {
		return fmt.Errorf("invalid compression %q: must be one of none, gzip, zstd", raw)
	}
	*c = normalised
	return nil
}

// ChannelOptions tunes the underlying gRPC channel. Zero values mean "use
// the documented default"; see [ChannelOptions.withDefaults].
type ChannelOptions struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout_secs"`
	Timeout        time.Duration `yaml:"timeout_secs"`

	MaxDecodingMessageSize int `yaml:"max_decoding_message_size"`
	MaxEncodingMessageSize int `yaml:"max_encoding_message_size"`

	HTTP2KeepAliveInterval time.Duration `yaml:"http2_keep_alive_interval_secs"`
	KeepAliveTimeout       time.Duration `yaml:"keep_alive_timeout_secs"`
	KeepAliveWhileIdle     *bool         `yaml:"keep_alive_while_idle"`

	InitialStreamWindowSize     int32 `yaml:"initial_stream_window_size"`
	InitialConnectionWindowSize int32 `yaml:"initial_connection_window_size"`
	HTTP2AdaptiveWindow         *bool `yaml:"http2_adaptive_window"`

	TCPNodelay      *bool         `yaml:"tcp_nodelay"`
	TCPKeepAlive    time.Duration `yaml:"tcp_keepalive_secs"`
	BufferSize      int           `yaml:"buffer_size"`

	SendCompression   Compression   `yaml:"send_compression"`
	AcceptCompression []Compression `yaml:"accept_compression"`
}

// Effective defaults applied by withDefaults when a knob is left zero.
const (
	defaultConnectTimeout  = 10 * time.Second
	defaultTimeout         = 30 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultKeepAliveTO     = 5 * time.Second
	defaultStreamWindow    = 4 * 1024 * 1024
	defaultConnWindow      = 8 * 1024 * 1024
	defaultMaxRecvMsgSize  = 1 << 30 // 1 GiB
	defaultMaxSendMsgSize  = 32 * 1024 * 1024
)

func boolPtr(b bool) *bool { return &b }

// withDefaults returns a copy of o with every zero-valued knob replaced by
// its documented default.
func (o ChannelOptions) withDefaults() ChannelOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.HTTP2KeepAliveInterval <= 0 {
		o.HTTP2KeepAliveInterval = defaultKeepAlive
	}
	if o.KeepAliveTimeout <= 0 {
		o.KeepAliveTimeout = defaultKeepAliveTO
	}
	if o.KeepAliveWhileIdle == nil {
		o.KeepAliveWhileIdle = boolPtr(true)
	}
	if o.InitialStreamWindowSize <= 0 {
		o.InitialStreamWindowSize = defaultStreamWindow
	}
	if o.InitialConnectionWindowSize <= 0 {
		o.InitialConnectionWindowSize = defaultConnWindow
	}
	if o.HTTP2AdaptiveWindow == nil {
		o.HTTP2AdaptiveWindow = boolPtr(true)
	}
	if o.TCPNodelay == nil {
		o.TCPNodelay = boolPtr(true)
	}
	if o.MaxDecodingMessageSize <= 0 {
		o.MaxDecodingMessageSize = defaultMaxRecvMsgSize
	}
	if o.MaxEncodingMessageSize <= 0 {
		o.MaxEncodingMessageSize = defaultMaxSendMsgSize
	}
	if o.SendCompression == "" {
		o.SendCompression = CompressionNone
	}
	if len(o.AcceptCompression) == 0 {
		o.AcceptCompression = []Compression{CompressionGzip, CompressionZstd}
	}
	return o
}

// Config is the immutable configuration for a single subscription engine.
type Config struct {
	// Endpoint is the gRPC server URI, e.g. "https://geyser.example.com:443"
	// or "grpc://127.0.0.1:10000". Required.
	Endpoint string `yaml:"endpoint"`

	// APIKey is sent as the x-token metadata header on every request when
	// non-empty.
	APIKey string `yaml:"api_key"`

	// MaxReconnectAttempts, when nil, defaults to the hard cap (240). A
	// configured value is clamped to the hard cap; a configured value <= 0
	// disables retries entirely (the first failure is terminal).
	MaxReconnectAttempts *int `yaml:"max_reconnect_attempts"`

	// Replay controls whether the engine injects the internal slot tracker
	// and computes a resume point on reconnect. Defaults to true.
	Replay *bool `yaml:"replay"`

	// Channel tunes the underlying gRPC channel.
	Channel ChannelOptions `yaml:"channel"`
}

// ReplayEnabled reports the effective value of Replay, defaulting to true.
func (c *Config) ReplayEnabled() bool {
	if c.Replay == nil {
		return true
	}
	return *c.Replay
}

// EffectiveMaxReconnectAttempts computes the effective cap as
// min(configured, HardReconnectCap); an unset value uses HardReconnectCap; a
// configured value <= 0 disables retries (cap 0).
func (c *Config) EffectiveMaxReconnectAttempts() int {
	if c.MaxReconnectAttempts == nil {
		return HardReconnectCap
	}
	v := *c.MaxReconnectAttempts
	if v <= 0 {
		return 0
	}
	if v > HardReconnectCap {
		return HardReconnectCap
	}
	return v
}

// ChannelOptionsWithDefaults returns c.Channel with every unset knob resolved
// to its documented default. Call this once per connection attempt rather
// than caching the result, so a future Config could (in principle) be
// re-resolved without a second type.
func (c *Config) ChannelOptionsWithDefaults() ChannelOptions {
	return c.Channel.withDefaults()
}

// TLSEnabled reports whether the endpoint scheme requires TLS ("https" or
// "grpcs"); any other scheme (including "grpc" or "http") is plaintext.
func (c *Config) TLSEnabled() (bool, error) {
	if !strings.Contains(c.Endpoint, "://") {
		// No scheme was supplied; a bare host:port is plaintext.
		return false, nil
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return false, fmt.Errorf("config: parse endpoint %q: %w", c.Endpoint, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "grpcs":
		return true, nil
	case "http", "grpc", "":
		return false, nil
	default:
		return false, fmt.Errorf("config: unrecognised endpoint scheme %q", u.Scheme)
	}
}

// Authority returns the host:port portion of Endpoint, the form
// grpc.NewClient expects as its target.
func (c *Config) Authority() (string, error) {
	if !strings.Contains(c.Endpoint, "://") {
		// No scheme was supplied; treat the whole string as host:port.
		return c.Endpoint, nil
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", fmt.Errorf("config: parse endpoint %q: %w", c.Endpoint, err)
	}
	return u.Host, nil
}

// Validate checks the invariants Load and programmatic construction both
// rely on. It does not touch the network.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("config: endpoint is required")
	}
	if _, err := c.TLSEnabled(); err != nil {
		return err
	}
	for _, cc := range c.Channel.AcceptCompression {
		if cc == CompressionNone {
			continue
		}
		if _, ok := validCompressions[cc]; !ok {
			return fmt.Errorf("config: invalid accept_compression entry %q", cc)
		}
	}
	return nil
}

// Load reads and validates a Config from a YAML file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
