// Package config describes the streams a process runs and how it logs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Name is used for default log file names and window titles.
const Name = "streamvideo"

// Role selects which loop a stream runs.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// Transport kinds accepted in Stream.Transport.
const (
	TransportUDP    = "udp"
	TransportWebRTC = "webrtc"
)

// Defaults of the reference deployment.
const (
	DefaultQuality = 60
	DefaultScale   = 0.6
	DefaultFPS     = 30
	DefaultTimeout = time.Second
)

// DefaultPorts are the ports of the three default camera streams.
var DefaultPorts = []int{4000, 5000, 6000}

// Config is the top-level configuration loaded from a TOML or YAML file.
type Config struct {
	Log     LogConfig `toml:"log" yaml:"log"`
	Streams []Stream  `toml:"stream" yaml:"streams"`
}

// Stream configures one session. It is immutable once the session starts.
type Stream struct {
	Name string `toml:"name" yaml:"name"`
	Role Role   `toml:"role" yaml:"role"`

	// LocalPort is where a receiver listens; senders normally leave it 0.
	LocalPort  int    `toml:"local_port" yaml:"local_port"`
	RemoteHost string `toml:"remote_host" yaml:"remote_host"`
	RemotePort int    `toml:"remote_port" yaml:"remote_port"`

	Quality int     `toml:"quality" yaml:"quality"`
	Scale   float64 `toml:"scale" yaml:"scale"`
	// Display names the surface the stream draws on (receiver, or sender preview).
	Display string `toml:"display" yaml:"display"`

	// Source is pattern, file:<path> or camera:<index>.
	Source string `toml:"source" yaml:"source"`
	FPS    int    `toml:"fps" yaml:"fps"`
	MaxFPS int    `toml:"max_fps" yaml:"max_fps"`

	Timeout     time.Duration `toml:"timeout" yaml:"timeout"`
	Fallback    string        `toml:"fallback" yaml:"fallback"`
	Overlay     bool          `toml:"overlay" yaml:"overlay"`
	Preview     bool          `toml:"preview" yaml:"preview"`
	ClockOffset time.Duration `toml:"clock_offset" yaml:"clock_offset"`

	Transport  string   `toml:"transport" yaml:"transport"`
	ICEServers []string `toml:"ice_servers" yaml:"ice_servers"`
	// ICELoopback offers 127.0.0.1 candidates. Senders aimed at a loopback
	// host enable it on their own.
	ICELoopback bool `toml:"ice_loopback" yaml:"ice_loopback"`
}

// Load reads path (.toml, .yaml or .yml), applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg.Log.ApplyEnv()
	cfg.Log.applyDefaults()
	for i := range cfg.Streams {
		cfg.Streams[i].ApplyDefaults(i)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultStreams returns the three-camera layout for role: ports 4000, 5000
// and 6000 fed by cameras 0, 1 and 2.
func DefaultStreams(role Role, remoteHost string) []Stream {
	streams := make([]Stream, 0, len(DefaultPorts))
	for i, port := range DefaultPorts {
		s := Stream{Role: role}
		switch role {
		case RoleSender:
			s.RemoteHost = remoteHost
			s.RemotePort = port
			s.Source = fmt.Sprintf("camera:%d", i)
		case RoleReceiver:
			s.LocalPort = port
		}
		s.ApplyDefaults(i)
		streams = append(streams, s)
	}
	return streams
}

// ApplyDefaults fills unset fields; index numbers unnamed streams.
func (s *Stream) ApplyDefaults(index int) {
	if s.Name == "" {
		s.Name = fmt.Sprintf("%s-%d", s.Role, index)
	}
	if s.Quality == 0 {
		s.Quality = DefaultQuality
	}
	if s.Scale == 0 {
		s.Scale = DefaultScale
	}
	if s.Display == "" {
		s.Display = s.Name
	}
	if s.Source == "" {
		s.Source = "pattern"
	}
	if s.FPS == 0 {
		s.FPS = DefaultFPS
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Transport == "" {
		s.Transport = TransportUDP
	}
}

// Validate checks every stream and the constraints between them.
func (c *Config) Validate() error {
	if len(c.Streams) == 0 {
		return errors.New("no streams configured")
	}
	return ValidateStreams(c.Streams)
}

// ValidateStreams checks each stream, then rejects duplicate names, local
// ports and display IDs.
func ValidateStreams(streams []Stream) error {
	var errs []error
	names := make(map[string]bool)
	ports := make(map[int]string)
	displays := make(map[string]string)
	for _, s := range streams {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate stream name %q", s.Name))
		}
		names[s.Name] = true
		if s.LocalPort != 0 {
			if other, ok := ports[s.LocalPort]; ok {
				errs = append(errs, fmt.Errorf("stream %q: local_port %d already used by %q", s.Name, s.LocalPort, other))
			}
			ports[s.LocalPort] = s.Name
		}
		if s.Shows() {
			if other, ok := displays[s.Display]; ok {
				errs = append(errs, fmt.Errorf("stream %q: display %q already used by %q", s.Name, s.Display, other))
			}
			displays[s.Display] = s.Name
		}
	}
	return errors.Join(errs...)
}

// Shows reports whether the stream draws on a display surface.
func (s *Stream) Shows() bool {
	return s.Role == RoleReceiver || s.Preview
}

// Validate checks one stream's fields.
func (s *Stream) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("stream %q: %s", s.Name, fmt.Sprintf(format, args...))
	}
	switch s.Role {
	case RoleSender:
		if s.RemoteHost == "" {
			return fail("remote_host is required for a sender")
		}
		if s.RemotePort < 1 || s.RemotePort > 65535 {
			return fail("remote_port %d out of range", s.RemotePort)
		}
		if s.LocalPort < 0 || s.LocalPort > 65535 {
			return fail("local_port %d out of range", s.LocalPort)
		}
	case RoleReceiver:
		if s.LocalPort < 1 || s.LocalPort > 65535 {
			return fail("local_port %d out of range", s.LocalPort)
		}
	default:
		return fail("unknown role %q", s.Role)
	}
	if s.Quality < 1 || s.Quality > 100 {
		return fail("quality %d not in 1..100", s.Quality)
	}
	if s.Scale <= 0 || s.Scale > 1 {
		return fail("scale %g not in (0,1]", s.Scale)
	}
	if s.FPS <= 0 {
		return fail("fps must be positive")
	}
	if s.MaxFPS < 0 {
		return fail("max_fps must not be negative")
	}
	if s.Timeout <= 0 {
		return fail("timeout must be positive")
	}
	if s.Transport != TransportUDP && s.Transport != TransportWebRTC {
		return fail("unknown transport %q", s.Transport)
	}
	return nil
}
