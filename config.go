package broadcast

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/outofforest/broadcast/wire"
)

// Config is the configuration of the node.
type Config struct {
	// Port is the UDP port messages are received on and broadcast to.
	Port int

	// BroadcastAddress is the address messages are sent to.
	BroadcastAddress string

	// DatagramBufferSize is the maximum size of the frame, including its header.
	DatagramBufferSize uint64

	// PayloadExpiration is the time incomplete message may wait for the missing fragments.
	PayloadExpiration time.Duration

	// CleanupInterval is the period of sweeping expired messages.
	CleanupInterval time.Duration

	// HeartbeatInterval is the period of sending heartbeats. Zero disables them.
	HeartbeatInterval time.Duration

	// InstanceID is sent in heartbeats. Command heartbeats are sent if it is empty.
	InstanceID string

	// Loopback enables delivery of messages sent from this host.
	Loopback bool

	// ResolveHostnames enables reverse lookup of sender hostnames.
	ResolveHostnames bool

	// ObjectCodec encodes and decodes object messages. Object messages are disabled if it is nil.
	ObjectCodec ObjectCodec
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Port:               4445,
		BroadcastAddress:   "255.255.255.255",
		DatagramBufferSize: 1024,
		PayloadExpiration:  3 * time.Second,
		CleanupInterval:    6 * time.Second,
		ResolveHostnames:   true,
	}
}

// Validate verifies the configuration.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if net.ParseIP(c.BroadcastAddress) == nil {
		return errors.Errorf("invalid broadcast address %q", c.BroadcastAddress)
	}
	if c.DatagramBufferSize <= wire.HeaderSize {
		return errors.Wrapf(wire.ErrFrameTooSmall, "datagram buffer size %d", c.DatagramBufferSize)
	}
	if c.DatagramBufferSize > 65507 {
		return errors.Errorf("datagram buffer size %d exceeds maximum UDP payload", c.DatagramBufferSize)
	}
	if c.PayloadExpiration <= 0 {
		return errors.Errorf("payload expiration must be positive, got %s", c.PayloadExpiration)
	}
	if c.CleanupInterval <= 0 {
		return errors.Errorf("cleanup interval must be positive, got %s", c.CleanupInterval)
	}
	if c.HeartbeatInterval < 0 {
		return errors.Errorf("heartbeat interval must not be negative, got %s", c.HeartbeatInterval)
	}
	return nil
}

// TargetAddress returns the address frames are sent to.
func (c Config) TargetAddress() string {
	return net.JoinHostPort(c.BroadcastAddress, strconv.Itoa(c.Port))
}

type fileConfig struct {
	Port               int    `toml:"port"`
	BroadcastAddress   string `toml:"broadcast_address"`
	DatagramBufferSize uint64 `toml:"datagram_buffer_size"`
	PayloadExpiration  string `toml:"payload_expiration"`
	CleanupInterval    string `toml:"cleanup_interval"`
	HeartbeatInterval  string `toml:"heartbeat_interval"`
	InstanceID         string `toml:"instance_id"`
	Loopback           bool   `toml:"loopback"`
	ResolveHostnames   bool   `toml:"resolve_hostnames"`
}

// LoadConfig reads TOML file and applies values defined there on top of the default configuration.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrapf(err, "loading config %q", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Errorf("unknown config keys in %q: %v", path, undecoded)
	}

	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("broadcast_address") {
		cfg.BroadcastAddress = strings.TrimSpace(raw.BroadcastAddress)
	}
	if meta.IsDefined("datagram_buffer_size") {
		cfg.DatagramBufferSize = raw.DatagramBufferSize
	}
	for key, dst := range map[string]struct {
		value string
		out   *time.Duration
	}{
		"payload_expiration": {value: raw.PayloadExpiration, out: &cfg.PayloadExpiration},
		"cleanup_interval":   {value: raw.CleanupInterval, out: &cfg.CleanupInterval},
		"heartbeat_interval": {value: raw.HeartbeatInterval, out: &cfg.HeartbeatInterval},
	} {
		if !meta.IsDefined(key) {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(dst.value))
		if err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", key)
		}
		*dst.out = d
	}
	if meta.IsDefined("instance_id") {
		cfg.InstanceID = strings.TrimSpace(raw.InstanceID)
	}
	if meta.IsDefined("loopback") {
		cfg.Loopback = raw.Loopback
	}
	if meta.IsDefined("resolve_hostnames") {
		cfg.ResolveHostnames = raw.ResolveHostnames
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
