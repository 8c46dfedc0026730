// Package config loads the daemon configuration: the static tool table, the
// environment checks, and server settings. The registry is built once from
// this file at startup; there is no runtime mutation.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/anandukch/localtoolbox/pkg/setup"
	"github.com/anandukch/localtoolbox/pkg/tool"
)

// DefaultHistoryURL keeps invocation history for the lifetime of the daemon
// process only.
const DefaultHistoryURL = "sqlite:file:toolbox?mode=memory&cache=shared&_pragma=busy_timeout(5000)"

// ToolSpec is the YAML shape of one registry entry.
type ToolSpec struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description,omitempty"`
	Path        string            `yaml:"path"`
	Interpreter string            `yaml:"interpreter,omitempty"`
	Convention  string            `yaml:"convention"`
	InputSchema map[string]any    `yaml:"input_schema,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	ScrubEnv    []string          `yaml:"scrub_env,omitempty"`
	WorkDir     string            `yaml:"work_dir,omitempty"`
}

// Config is the daemon configuration.
type Config struct {
	Addr       string        `yaml:"addr,omitempty"`
	HistoryURL string        `yaml:"history_url,omitempty"`
	Tools      []ToolSpec    `yaml:"tools"`
	Checks     []setup.Check `yaml:"checks,omitempty"`
}

// Load reads and parses a YAML config file, applying defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse parses YAML config bytes, applying defaults.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.HistoryURL == "" {
		cfg.HistoryURL = DefaultHistoryURL
	}
	return &cfg, nil
}

// Descriptor converts the YAML spec into a registry descriptor. The inline
// YAML input_schema is re-encoded as JSON Schema bytes.
func (ts ToolSpec) Descriptor() (tool.Descriptor, error) {
	d := tool.Descriptor{
		ID:          ts.ID,
		Description: ts.Description,
		Path:        ts.Path,
		Interpreter: ts.Interpreter,
		Convention:  tool.Convention(ts.Convention),
		Env:         ts.Env,
		ScrubEnv:    ts.ScrubEnv,
		WorkDir:     ts.WorkDir,
	}
	if len(ts.InputSchema) > 0 {
		b, err := json.Marshal(ts.InputSchema)
		if err != nil {
			return tool.Descriptor{}, fmt.Errorf("tool %s: encode input_schema: %w", ts.ID, err)
		}
		d.InputSchema = b
	}
	return d, nil
}

// BuildRegistry registers every configured tool. Duplicate ids, unknown
// conventions and broken schemas fail here, at startup, not at invoke time.
func BuildRegistry(cfg *Config) (*tool.Registry, error) {
	reg := tool.NewRegistry()
	for _, ts := range cfg.Tools {
		d, err := ts.Descriptor()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(d); err != nil {
			return nil, fmt.Errorf("tool %s: %w", ts.ID, err)
		}
	}
	return reg, nil
}
