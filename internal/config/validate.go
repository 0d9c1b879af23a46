// If you are AI: This file validates configuration values and returns descriptive errors.

package config

import (
	"fmt"

	"videopipe/internal/shmem"
)

// Validate checks that all configuration values are within acceptable
// ranges and that channel/source references are internally consistent.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	names := make(map[string]bool, len(c.Channels))
	for i := range c.Channels {
		if err := c.Channels[i].Validate(); err != nil {
			return fmt.Errorf("channels[%d]: %w", i, err)
		}
		names[c.Channels[i].Name] = true
	}

	for i := range c.Sources {
		if err := c.Sources[i].Validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if !names[c.Sources[i].Channel] {
			return fmt.Errorf("sources[%d]: channel %q is not declared in channels", i, c.Sources[i].Channel)
		}
	}

	for i := range c.Relays {
		if err := c.Relays[i].Validate(); err != nil {
			return fmt.Errorf("relays[%d]: %w", i, err)
		}
		if !names[c.Relays[i].Channel] {
			return fmt.Errorf("relays[%d]: channel %q is not declared in channels", i, c.Relays[i].Channel)
		}
	}

	return nil
}

// Validate checks server configuration values.
func (s *ServerConfig) Validate() error {
	if s.HealthPort <= 0 || s.HealthPort > 65535 {
		return fmt.Errorf("health_port must be between 1 and 65535, got %d", s.HealthPort)
	}
	if s.PreviewPort <= 0 || s.PreviewPort > 65535 {
		return fmt.Errorf("preview_port must be between 1 and 65535, got %d", s.PreviewPort)
	}
	if s.HealthPort == s.PreviewPort {
		return fmt.Errorf("health_port and preview_port must be different, both are %d", s.HealthPort)
	}
	return nil
}

// Validate checks a channel declaration: the name must satisfy the
// shared-memory naming grammar (spec.md §6), and role must be one of the
// two recognized values.
func (c *ChannelConfig) Validate() error {
	if err := shmem.ValidateName(c.Name); err != nil {
		return fmt.Errorf("invalid channel name %q: %w", c.Name, err)
	}
	switch c.Role {
	case "publish", "subscribe":
	default:
		return fmt.Errorf("role must be \"publish\" or \"subscribe\", got %q", c.Role)
	}
	return nil
}

// Validate checks an RTP source declaration.
func (s *SourceConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if s.Channel == "" {
		return fmt.Errorf("channel must not be empty")
	}
	if s.ListenUDP == "" {
		return fmt.Errorf("listen_udp must not be empty")
	}
	switch s.Codec {
	case "jpeg", "h264":
	default:
		return fmt.Errorf("codec must be \"jpeg\" or \"h264\", got %q", s.Codec)
	}
	return nil
}

// Validate checks a relay declaration.
func (r *RelayConfig) Validate() error {
	if r.Channel == "" {
		return fmt.Errorf("channel must not be empty")
	}
	switch r.Mode {
	case "push", "pull":
	default:
		return fmt.Errorf("mode must be \"push\" or \"pull\", got %q", r.Mode)
	}
	if r.RemoteAddr == "" {
		return fmt.Errorf("remote_addr must not be empty")
	}
	return nil
}
