// Package config handles plfli.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/plfli/engine"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "plfli.toml"

// Config represents a plfli.toml file.
type Config struct {
	Stacks Stacks      `toml:"stacks"`
	Engine EngineFlags `toml:"engine"`
	Log    Log         `toml:"log"`
	Store  Store       `toml:"store"`

	// Dir is the directory containing the plfli.toml file (set at load time).
	// It is empty for the defaults.
	Dir string `toml:"-"`
}

// Stacks sizes the engine stacks, in cells. Zero selects the engine default.
type Stacks struct {
	GlobalSize  int `toml:"global-size"`
	LocalSize   int `toml:"local-size"`
	TrailSize   int `toml:"trail-size"`
	GlobalLimit int `toml:"global-limit"`
	LocalLimit  int `toml:"local-limit"`
	TrailLimit  int `toml:"trail-limit"`
	Spare       int `toml:"spare"`
}

// EngineFlags toggles engine behavior.
type EngineFlags struct {
	ValidateAPI     bool `toml:"validate-api"`
	BoundedIntegers bool `toml:"bounded-integers"`
}

// Log configures commonlog.
type Log struct {
	// Verbosity follows commonlog: 0 is errors only, higher is chattier.
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Store configures the recorded database.
type Store struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no plfli.toml exists.
func Default() *Config {
	o := engine.DefaultOptions()
	return &Config{
		Stacks: Stacks{
			GlobalSize:  o.GlobalSize,
			LocalSize:   o.LocalSize,
			TrailSize:   o.TrailSize,
			GlobalLimit: o.GlobalLimit,
			LocalLimit:  o.LocalLimit,
			TrailLimit:  o.TrailLimit,
			Spare:       o.Spare,
		},
		Engine: EngineFlags{ValidateAPI: o.ValidateAPI},
		Log:    Log{Verbosity: 1},
		Store:  Store{Path: filepath.Join(".plfli", "records.db")},
	}
}

// Load parses a plfli.toml file from the given directory. Keys missing from
// the file keep their default values.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undec[0])
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a plfli.toml file, then loads
// and returns it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	s := c.Stacks
	for _, v := range []struct {
		name string
		n    int
	}{
		{"global-size", s.GlobalSize}, {"local-size", s.LocalSize}, {"trail-size", s.TrailSize},
		{"global-limit", s.GlobalLimit}, {"local-limit", s.LocalLimit}, {"trail-limit", s.TrailLimit},
		{"spare", s.Spare},
	} {
		if v.n < 0 {
			return fmt.Errorf("stacks.%s must not be negative, got %d", v.name, v.n)
		}
	}
	if s.GlobalLimit > 0 && s.GlobalSize > s.GlobalLimit {
		return fmt.Errorf("stacks.global-size %d exceeds global-limit %d", s.GlobalSize, s.GlobalLimit)
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity must not be negative, got %d", c.Log.Verbosity)
	}
	return nil
}

// EngineOptions converts the configuration to engine options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		GlobalSize:      c.Stacks.GlobalSize,
		LocalSize:       c.Stacks.LocalSize,
		TrailSize:       c.Stacks.TrailSize,
		GlobalLimit:     c.Stacks.GlobalLimit,
		LocalLimit:      c.Stacks.LocalLimit,
		TrailLimit:      c.Stacks.TrailLimit,
		Spare:           c.Stacks.Spare,
		ValidateAPI:     c.Engine.ValidateAPI,
		BoundedIntegers: c.Engine.BoundedIntegers,
	}
}

// StorePath returns the database path, resolved against Dir when relative.
func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Store.Path) || c.Dir == "" {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, c.Store.Path)
}

// LogPath returns the log file path, resolved against Dir when relative.
// Empty means stderr.
func (c *Config) LogPath() string {
	if c.Log.Path == "" || filepath.IsAbs(c.Log.Path) || c.Dir == "" {
		return c.Log.Path
	}
	return filepath.Join(c.Dir, c.Log.Path)
}
