package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/codelens/internal/diagram"
	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/rules"
	"github.com/dusk-indust/codelens/internal/scan"
	"github.com/dusk-indust/codelens/internal/syntax"
)

// FileNames are the config file names looked up in a project root, in order.
var FileNames = []string{"codelens.yml", "codelens.yaml"}

// DefaultExcludeDirs are never walked when collecting project files.
var DefaultExcludeDirs = []string{".git", "node_modules", "vendor", "target", "dist", "build", "__pycache__"}

// Duration decodes from YAML strings such as "5s" or "2m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", value.Line, err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// RulesConfig is the rules block of codelens.yml.
type RulesConfig struct {
	Disabled         []string `yaml:"disabled,omitempty"`
	MaxFunctionLines int      `yaml:"maxFunctionLines,omitempty"`
	MaxParameters    int      `yaml:"maxParameters,omitempty"`
	MaxClassMembers  int      `yaml:"maxClassMembers,omitempty"`
	MaxLoopNesting   int      `yaml:"maxLoopNesting,omitempty"`
}

// Config holds project-level settings loaded from codelens.yml.
type Config struct {
	MaxFileBytes int      `yaml:"maxFileBytes,omitempty"`
	FileTimeout  Duration `yaml:"fileTimeout,omitempty"`
	ScanTimeout  Duration `yaml:"scanTimeout,omitempty"`
	Workers      int      `yaml:"workers,omitempty"`
	MaxCallDepth int      `yaml:"maxCallDepth,omitempty"`
	MaxTreeDepth int      `yaml:"maxTreeDepth,omitempty"`
	Languages    []string `yaml:"languages,omitempty"`
	ExcludeDirs  []string `yaml:"excludeDirs,omitempty"`
	EntryPoints  []string `yaml:"entryPoints,omitempty"`

	Rules RulesConfig `yaml:"rules,omitempty"`

	// Path is the file the config was read from; empty for defaults.
	Path string `yaml:"-"`
}

// Load attempts to read codelens.yml or codelens.yaml from the given
// directory. Returns a default config (not an error) if no config file
// exists.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		cfg, err := LoadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	cfg := &Config{}
	cfg.Apply()
	return cfg, nil
}

// LoadFile reads one config file. Unknown keys are rejected so typos
// surface instead of silently falling back to defaults.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	cfg.Apply()
	return &cfg, nil
}

// Apply fills zero values with defaults.
func (c *Config) Apply() {
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = syntax.DefaultMaxBytes
	}
	if c.FileTimeout <= 0 {
		c.FileTimeout = Duration(scan.DefaultFileTimeout)
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = Duration(scan.DefaultScanTimeout)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = diagram.DefaultMaxDepth
	}
	if c.MaxTreeDepth <= 0 {
		c.MaxTreeDepth = syntax.DefaultMaxDepth
	}
	if len(c.ExcludeDirs) == 0 {
		c.ExcludeDirs = append([]string(nil), DefaultExcludeDirs...)
	}
	def := rules.DefaultConfig()
	if c.Rules.MaxFunctionLines <= 0 {
		c.Rules.MaxFunctionLines = def.MaxFunctionLines
	}
	if c.Rules.MaxParameters <= 0 {
		c.Rules.MaxParameters = def.MaxParameters
	}
	if c.Rules.MaxClassMembers <= 0 {
		c.Rules.MaxClassMembers = def.MaxClassMembers
	}
	if c.Rules.MaxLoopNesting <= 0 {
		c.Rules.MaxLoopNesting = def.MaxLoopNesting
	}
}

// Validate rejects negative limits and languages that are not registered.
func (c *Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    int
	}{
		{"maxFileBytes", c.MaxFileBytes},
		{"workers", c.Workers},
		{"maxCallDepth", c.MaxCallDepth},
		{"maxTreeDepth", c.MaxTreeDepth},
		{"rules.maxFunctionLines", c.Rules.MaxFunctionLines},
		{"rules.maxParameters", c.Rules.MaxParameters},
		{"rules.maxClassMembers", c.Rules.MaxClassMembers},
		{"rules.maxLoopNesting", c.Rules.MaxLoopNesting},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", f.name, f.v))
		}
	}
	if c.FileTimeout < 0 || c.ScanTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	known := make(map[lang.Language]bool)
	for _, s := range lang.BuiltinSpecs() {
		known[s.ID] = true
	}
	for _, l := range c.Languages {
		if !known[lang.Language(l)] {
			errs = append(errs, fmt.Errorf("unknown language %q", l))
		}
	}
	return errors.Join(errs...)
}

// Scan converts the config into scanner settings.
func (c *Config) Scan() scan.Config {
	langs := make([]lang.Language, 0, len(c.Languages))
	for _, l := range c.Languages {
		langs = append(langs, lang.Language(l))
	}
	return scan.Config{
		Workers:      c.Workers,
		FileTimeout:  time.Duration(c.FileTimeout),
		ScanTimeout:  time.Duration(c.ScanTimeout),
		MaxFileBytes: c.MaxFileBytes,
		MaxTreeDepth: c.MaxTreeDepth,
		MaxCallDepth: c.MaxCallDepth,
		Languages:    langs,
		EntryPoints:  c.EntryPoints,
		Rules: rules.Config{
			MaxFunctionLines: c.Rules.MaxFunctionLines,
			MaxParameters:    c.Rules.MaxParameters,
			MaxClassMembers:  c.Rules.MaxClassMembers,
			MaxLoopNesting:   c.Rules.MaxLoopNesting,
		},
		DisabledRules: c.Rules.Disabled,
	}
}

// Excluded reports whether a directory base name is excluded from walks.
func (c *Config) Excluded(dir string) bool {
	for _, d := range c.ExcludeDirs {
		if d == dir {
			return true
		}
	}
	return false
}
