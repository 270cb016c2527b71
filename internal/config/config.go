// Package config loads the .c3complete.toml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/phobologic/c3complete/internal/discover"
	"github.com/phobologic/c3complete/internal/project"
)

// FileName is the configuration file looked up at the project root.
const FileName = ".c3complete.toml"

// Config is the complete configuration of a c3complete project.
type Config struct {
	RootSymbol     string       `toml:"root_symbol"`
	RootClass      string       `toml:"root_class"`
	MaxDepth       int          `toml:"max_depth"`
	CyclicSegments []string     `toml:"cyclic_segments"`
	Declarations   Declarations `toml:"declarations"`
	Registry       Registry     `toml:"registry"`
	Project        Project      `toml:"project"`
	Server         Server       `toml:"server"`
	Watch          Watch        `toml:"watch"`
	Complete       Complete     `toml:"complete"`
}

// Declarations selects the declaration files. Primary files describe the
// live project; ambient files are the fallback host library types.
type Declarations struct {
	Primary []string `toml:"primary"`
	Ambient []string `toml:"ambient"`
	Exclude []string `toml:"exclude"`
}

// Registry locates the object registry node in the index.
type Registry struct {
	Path       []string `toml:"path"`
	Namespaces []string `toml:"namespaces"`
}

// Project controls ingestion of authoring files.
type Project struct {
	Enabled       bool   `toml:"enabled"`
	RegistryClass string `toml:"registry_class"`
	GlobalsClass  string `toml:"globals_class"`
}

// Server configures the HTTP query server.
type Server struct {
	Addr string `toml:"addr"`
}

// Watch configures rebuild-on-change.
type Watch struct {
	Enabled    bool     `toml:"enabled"`
	DebounceMs int      `toml:"debounce_ms"`
	Patterns   []string `toml:"patterns"`
}

// Debounce returns the debounce interval.
func (w Watch) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Complete configures query answers.
type Complete struct {
	MaxResults int `toml:"max_results"`
}

// Default returns the configuration for a Construct project with its
// declarations under scripts/.
func Default() *Config {
	return &Config{
		RootSymbol:     "runtime",
		RootClass:      "IRuntime",
		MaxDepth:       10,
		CyclicSegments: []string{"layout", "layer"},
		Declarations: Declarations{
			Primary: []string{"**/c3.d.ts", "scripts/ts-defs/**/*.d.ts"},
			Ambient: []string{"**/lib.dom.d.ts", "**/typescript.d.ts"},
		},
		Registry: Registry{
			Path:       []string{"runtime", "objects"},
			Namespaces: []string{"instVars", "behaviors"},
		},
		Project: Project{
			Enabled:       true,
			RegistryClass: "IRuntime.objects",
			GlobalsClass:  "IGlobalVars",
		},
		Server: Server{Addr: "127.0.0.1:7717"},
		Watch: Watch{
			Enabled:    true,
			DebounceMs: 250,
			Patterns:   append([]string{"**/*.d.ts"}, project.Patterns()...),
		},
		Complete: Complete{MaxResults: 0},
	}
}

// Load reads FileName from root. A missing file yields the defaults. Keys
// absent from the file keep their default values.
func Load(root string) (*Config, error) {
	return LoadFile(filepath.Join(root, FileName))
}

// LoadFile reads a configuration file at an explicit path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the build cannot use.
func (c *Config) Validate() error {
	if c.RootSymbol == "" {
		return errors.New("root_symbol must not be empty")
	}
	if c.RootClass == "" {
		return errors.New("root_class must not be empty")
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if len(c.Declarations.Primary) == 0 {
		return errors.New("declarations.primary must list at least one pattern")
	}
	if c.Complete.MaxResults < 0 {
		return fmt.Errorf("complete.max_results must not be negative, got %d", c.Complete.MaxResults)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMs)
	}
	for _, m := range []discover.Matcher{c.PrimaryMatcher(), c.AmbientMatcher(), c.WatchMatcher()} {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PrimaryMatcher selects the primary declaration files.
func (c *Config) PrimaryMatcher() discover.Matcher {
	return discover.Matcher{Include: c.Declarations.Primary, Exclude: c.Declarations.Exclude}
}

// AmbientMatcher selects the ambient declaration files.
func (c *Config) AmbientMatcher() discover.Matcher {
	return discover.Matcher{Include: c.Declarations.Ambient, Exclude: c.Declarations.Exclude}
}

// WatchMatcher selects the files whose changes trigger a rebuild.
func (c *Config) WatchMatcher() discover.Matcher {
	return discover.Matcher{Include: c.Watch.Patterns, Exclude: c.Declarations.Exclude}
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
