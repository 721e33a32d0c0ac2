package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds initialization parameters for the engine and its subsystems.
// Routes declared here are registered without screen factories, which suits
// headless deployments; applications with real screens register descriptors
// through RegisterRoutes instead.
type Config struct {
	Routes      []string          `yaml:"routes,omitempty"`
	Prefixes    []string          `yaml:"prefixes,omitempty"`
	Links       []LinkConfig      `yaml:"links,omitempty"`
	Observer    string            `yaml:"observer,omitempty"`
	Persistence PersistenceConfig `yaml:"persistence"`
}

// LinkConfig declares one redirect binding's templates. Bindings declared in
// configuration carry no callback and fall back to the engine's default
// redirect, which navigates to the matched template.
type LinkConfig struct {
	Templates []string `yaml:"templates"`
}

// PersistenceConfig selects the snapshot store and schedule. DSN names a
// SQLite database and wins over Path, which names a snapshot file; with
// neither set an enabled configuration keeps snapshots in memory.
type PersistenceConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Immediate bool          `yaml:"immediate"`
	Interval  time.Duration `yaml:"interval,omitempty"`
	Path      string        `yaml:"path,omitempty"`
	DSN       string        `yaml:"dsn,omitempty"`
}

// DefaultConfig returns a Config with persistence disabled and no routes,
// prefixes, or links.
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if len(source.Routes) > 0 {
		c.Routes = source.Routes
	}
	if len(source.Prefixes) > 0 {
		c.Prefixes = source.Prefixes
	}
	if len(source.Links) > 0 {
		c.Links = source.Links
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	c.Persistence.Merge(&source.Persistence)
}

// Merge applies non-zero values from source into p. Boolean fields merge
// additively: a source can enable persistence or immediate mode but not
// disable them.
func (p *PersistenceConfig) Merge(source *PersistenceConfig) {
	if source.Enabled {
		p.Enabled = true
	}
	if source.Immediate {
		p.Immediate = true
	}
	if source.Interval > 0 {
		p.Interval = source.Interval
	}
	if source.Path != "" {
		p.Path = source.Path
	}
	if source.DSN != "" {
		p.DSN = source.DSN
	}
}

// LoadConfig reads a YAML config file, merges it with defaults, and returns
// the resulting Config. Duration fields accept Go duration strings such as
// "30s".
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
