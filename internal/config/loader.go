package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pion/stun/v3"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	// Pipeline is pre-warmed at startup when set.
	Pipeline       string            `json:"pipeline" yaml:"pipeline" toml:"pipeline"`
	PipelineParams map[string]string `json:"pipeline_params" yaml:"pipeline_params" toml:"pipeline_params"`

	LoadTimeout   Duration `json:"load_timeout" yaml:"load_timeout" toml:"load_timeout"`
	FrameTimeout  Duration `json:"frame_timeout" yaml:"frame_timeout" toml:"frame_timeout"`
	QueueCapacity int      `json:"queue_capacity" yaml:"queue_capacity" toml:"queue_capacity"`
	ShutdownGrace Duration `json:"shutdown_grace" yaml:"shutdown_grace" toml:"shutdown_grace"`
	GatherTimeout Duration `json:"gather_timeout" yaml:"gather_timeout" toml:"gather_timeout"`

	ICEServers []ICEServer `json:"ice_servers" yaml:"ice_servers" toml:"ice_servers"`
	UDPPortMin uint16      `json:"udp_port_min" yaml:"udp_port_min" toml:"udp_port_min"`
	UDPPortMax uint16      `json:"udp_port_max" yaml:"udp_port_max" toml:"udp_port_max"`

	LogLevel     string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat    string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// ICEServer is a STUN or TURN server offered to peers.
type ICEServer struct {
	URLs       []string `json:"urls" yaml:"urls" toml:"urls"`
	Username   string   `json:"username,omitempty" yaml:"username,omitempty" toml:"username,omitempty"`
	Credential string   `json:"credential,omitempty" yaml:"credential,omitempty" toml:"credential,omitempty"`
}

// Duration is a time.Duration read from strings such as "300s" or "1m30s".
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Addr:          ":8000",
		ModelsDir:     "~/.scope/models",
		LoadTimeout:   Duration(300 * time.Second),
		FrameTimeout:  Duration(2 * time.Second),
		QueueCapacity: 2,
		ShutdownGrace: Duration(5 * time.Second),
		GatherTimeout: Duration(5 * time.Second),
		ICEServers:    []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
		LogLevel:      "info",
		LogFormat:     "json",
		CORSOrigins:   []string{"*"},
		MaxBodyBytes:  1 << 20,
	}
}

// WithDefaults fills every unspecified field from Defaults.
func (c Config) WithDefaults() Config {
	d := Defaults()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = d.ModelsDir
	}
	if c.LoadTimeout == 0 {
		c.LoadTimeout = d.LoadTimeout
	}
	if c.FrameTimeout == 0 {
		c.FrameTimeout = d.FrameTimeout
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = d.ShutdownGrace
	}
	if c.GatherTimeout == 0 {
		c.GatherTimeout = d.GatherTimeout
	}
	if c.ICEServers == nil {
		c.ICEServers = d.ICEServers
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = d.CORSOrigins
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	for name, d := range map[string]Duration{
		"load_timeout":   c.LoadTimeout,
		"frame_timeout":  c.FrameTimeout,
		"shutdown_grace": c.ShutdownGrace,
		"gather_timeout": c.GatherTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must not be negative")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must not be negative")
	}
	if (c.UDPPortMin == 0) != (c.UDPPortMax == 0) || c.UDPPortMax < c.UDPPortMin {
		return fmt.Errorf("udp port range %d-%d is invalid", c.UDPPortMin, c.UDPPortMax)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "console":
	default:
		return fmt.Errorf("unsupported log_format %q (json, console)", c.LogFormat)
	}
	for i, s := range c.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("ice_servers[%d]: no urls", i)
		}
		for _, raw := range s.URLs {
			u, err := stun.ParseURI(raw)
			if err != nil {
				return fmt.Errorf("ice_servers[%d]: %q: %w", i, raw, err)
			}
			if (u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS) && s.Username == "" {
				return fmt.Errorf("ice_servers[%d]: turn server %q requires username", i, raw)
			}
		}
	}
	return nil
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
