// Package config loads sandbox profiles: YAML documents declaring the
// capability grants and resource limits one guest runs under. Profiles are
// schema-validated and checked against the host API version before anything
// is built from them.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/aayushadhikari7/aegis/internal/capability"
	"github.com/aayushadhikari7/aegis/internal/resource"
	"github.com/aayushadhikari7/aegis/internal/version"
)

// Profile is one parsed sandbox profile.
type Profile struct {
	Metadata     Metadata         `yaml:"profile"`
	Capabilities CapabilityConfig `yaml:"capabilities"`
	Limits       LimitsConfig     `yaml:"limits"`
}

// Metadata identifies a profile and its host-API requirement.
type Metadata struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// HostAPI is a semver constraint the runtime's host API must satisfy,
	// e.g. ">= 1.0.0 < 2.0.0". Empty means any.
	HostAPI string `yaml:"host_api"`
}

// CapabilityConfig declares grants per kind. Absent sections grant nothing.
type CapabilityConfig struct {
	Filesystem []FilesystemConfig `yaml:"filesystem"`
	Network    []NetworkConfig    `yaml:"network"`
	Logging    *LoggingConfig     `yaml:"logging"`
	Clock      *ClockConfig       `yaml:"clock"`
}

type FilesystemConfig struct {
	Path   string `yaml:"path"`
	Access string `yaml:"access"` // read | write | read-write
}

type NetworkConfig struct {
	Host      string   `yaml:"host"`
	Protocols []string `yaml:"protocols"`
	Ports     []uint16 `yaml:"ports"`
}

type LoggingConfig struct {
	MinLevel          string  `yaml:"min_level"`
	MaxMessageBytes   int     `yaml:"max_message_bytes"`
	MessagesPerSecond float64 `yaml:"messages_per_second"`
}

type ClockConfig struct {
	Monotonic bool `yaml:"monotonic"`
	Realtime  bool `yaml:"realtime"`
}

// LimitsConfig overrides resource defaults. Zero fields keep the default.
type LimitsConfig struct {
	MemoryBytesMax   uint64        `yaml:"memory_bytes_max"`
	TableElementsMax uint64        `yaml:"table_elements_max"`
	FuelMax          uint64        `yaml:"fuel_max"`
	Timeout          time.Duration `yaml:"timeout"`
	StackDepthMax    uint64        `yaml:"stack_depth_max"`
}

// Validate checks metadata and the host-API constraint against the running
// host API version.
func (p *Profile) Validate() error {
	if p.Metadata.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.Metadata.HostAPI == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(p.Metadata.HostAPI)
	if err != nil {
		return fmt.Errorf("invalid host_api constraint %q: %w", p.Metadata.HostAPI, err)
	}
	if !constraint.Check(semver.MustParse(version.HostAPI)) {
		return fmt.Errorf("profile %s requires host API %q, runtime provides %s",
			p.Metadata.Name, p.Metadata.HostAPI, version.HostAPI)
	}
	return nil
}

// BuildCapabilities constructs the frozen grant set the profile declares.
func (p *Profile) BuildCapabilities() (*capability.Set, error) {
	builder := capability.NewBuilder()

	for _, fs := range p.Capabilities.Filesystem {
		read, write, err := parseAccess(fs.Access)
		if err != nil {
			return nil, fmt.Errorf("filesystem grant %q: %w", fs.Path, err)
		}
		grant, err := capability.NewFilesystemGrant(fs.Path, read, write)
		if err != nil {
			return nil, err
		}
		builder.Grant(grant)
	}

	for _, net := range p.Capabilities.Network {
		protocols := make([]capability.Protocol, 0, len(net.Protocols))
		for _, proto := range net.Protocols {
			protocols = append(protocols, capability.Protocol(proto))
		}
		grant, err := capability.NewNetworkGrant(net.Host, protocols, net.Ports)
		if err != nil {
			return nil, err
		}
		builder.Grant(grant)
	}

	if logCfg := p.Capabilities.Logging; logCfg != nil {
		level := slog.LevelInfo
		if logCfg.MinLevel != "" {
			if err := level.UnmarshalText([]byte(logCfg.MinLevel)); err != nil {
				return nil, fmt.Errorf("invalid log level %q: %w", logCfg.MinLevel, err)
			}
		}
		builder.Grant(capability.NewLoggingGrant(level, logCfg.MaxMessageBytes, logCfg.MessagesPerSecond))
	}

	if clk := p.Capabilities.Clock; clk != nil {
		grant, err := capability.NewClockGrant(clk.Monotonic, clk.Realtime)
		if err != nil {
			return nil, err
		}
		builder.Grant(grant)
	}

	return builder.Build(), nil
}

// BuildLimits merges the profile's overrides onto DefaultLimits.
func (p *Profile) BuildLimits() (resource.Limits, error) {
	limits := resource.DefaultLimits()
	if v := p.Limits.MemoryBytesMax; v > 0 {
		limits.MemoryBytesMax = v
	}
	if v := p.Limits.TableElementsMax; v > 0 {
		limits.TableElementsMax = v
	}
	if v := p.Limits.FuelMax; v > 0 {
		limits.FuelMax = v
	}
	if v := p.Limits.Timeout; v > 0 {
		limits.Timeout = v
	}
	if v := p.Limits.StackDepthMax; v > 0 {
		limits.StackDepthMax = v
	}
	if err := limits.Validate(); err != nil {
		return resource.Limits{}, err
	}
	return limits, nil
}

func parseAccess(access string) (read, write bool, err error) {
	switch access {
	case "read":
		return true, false, nil
	case "write":
		return false, true, nil
	case "read-write":
		return true, true, nil
	default:
		return false, false, fmt.Errorf("invalid access %q (want read, write or read-write)", access)
	}
}
