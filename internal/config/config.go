// If you are AI: This file defines the configuration structure for
// videopipe. It uses strict YAML decoding and explicit defaults, carried
// over unchanged from the teacher's config layer.

package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the complete process configuration: the preview/health
// server, the channels this process publishes or subscribes to, the RTP
// sources it ingests, and the fan-out persistence settings.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Channels []ChannelConfig `yaml:"channels,omitempty"`
	Sources  []SourceConfig  `yaml:"sources,omitempty"`
	Output   *OutputConfig   `yaml:"output,omitempty"`
	Relays   []RelayConfig   `yaml:"relays,omitempty"`
}

// ServerConfig defines the process's HTTP surfaces.
type ServerConfig struct {
	HealthPort  int `yaml:"health_port"`  // Port for the health endpoint
	PreviewPort int `yaml:"preview_port"` // Port for the HTTP/WS frame-preview service
}

// ChannelConfig names a pub/sub channel (C1-C4) this process either
// publishes frames onto or subscribes to.
type ChannelConfig struct {
	Name        string `yaml:"name"`                   // channel name, per spec.md §6 naming grammar
	Role        string `yaml:"role"`                    // "publish" or "subscribe"
	SocketDir   string `yaml:"socket_dir,omitempty"`    // accepted but not read: subscriber sockets are always bound under os.TempDir()
	PublishInfo string `yaml:"publish_info,omitempty"`  // bounded publisher-info blob, publish role only
}

// SourceConfig describes one RTP ingest source feeding a channel.
type SourceConfig struct {
	Name      string `yaml:"name"`       // logical source name, used as fan-out <name>
	Channel   string `yaml:"channel"`    // destination channel name
	ListenUDP string `yaml:"listen_udp"` // UDP listen address, e.g. "0.0.0.0:5004"
	Codec     string `yaml:"codec"`      // "jpeg" or "h264"
}

// OutputConfig configures the filesystem persistence leg of the fan-out
// (C7), shared by every source; there is no per-source override.
type OutputConfig struct {
	BaseDir string `yaml:"base_dir"`
	Fast    bool   `yaml:"fast,omitempty"`
	Test    bool   `yaml:"test,omitempty"`
}

// RelayConfig describes one cross-host channel relay (A7): a push task
// subscribes to a local channel and forwards it to a remote relay peer; a
// pull task connects to a remote peer and republishes what it receives
// onto a local channel. Both modes dial out; videopipe itself opens no
// listener that accepts relay connections.
type RelayConfig struct {
	Channel    string `yaml:"channel"`    // local channel name
	Mode       string `yaml:"mode"`       // "push" or "pull"
	RemoteAddr string `yaml:"remote_addr"` // host:port of the peer relay
	Reconnect  bool   `yaml:"reconnect,omitempty"`
}

// Load reads configuration from a YAML file.
// Returns an error if the file cannot be read or decoded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields

	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// setDefaults applies explicit default values to unset fields.
func (c *Config) setDefaults() {
	if c.Server.HealthPort == 0 {
		c.Server.HealthPort = 8080
	}
	if c.Server.PreviewPort == 0 {
		c.Server.PreviewPort = 8081
	}
}
