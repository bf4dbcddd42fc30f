// Package config handles loading and saving triagemap configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/tm/config.yaml
//   - State:   ~/.local/state/tm/ (recent bundles, view state cache)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/triagemap/pkg/model"
)

// Dataset represents a registered data bundle in the config.
type Dataset struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	DefaultView  string `yaml:"default_view,omitempty"`   // map, cells, history
	ShowAutoTags bool   `yaml:"show_auto_tags,omitempty"` // Render classifier tags in the map
	Headless     bool   `yaml:"headless,omitempty"`       // Compact header mode
}

// GridConfig holds grid construction overrides.
type GridConfig struct {
	// Threshold overrides the automatic merge threshold when positive.
	Threshold int `yaml:"threshold,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Config is the top-level configuration for tm.
type Config struct {
	Datasets []Dataset    `yaml:"datasets,omitempty"`
	Stage    model.Stage  `yaml:"stage,omitempty"` // Stage to open on launch
	UI       UIConfig     `yaml:"ui,omitempty"`
	Grid     GridConfig   `yaml:"grid,omitempty"`
	Server   ServerConfig `yaml:"server,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Stage: model.StageSplit,
		UI: UIConfig{
			DefaultView:  "map",
			ShowAutoTags: true,
		},
		Server: ServerConfig{
			Addr: ":8719",
		},
	}
}

// ConfigDir returns the XDG config directory for tm.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tm")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tm")
}

// StateDir returns the XDG state directory for tm.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "tm")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "tm")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if !cfg.Stage.Valid() {
		cfg.Stage = model.StageSplit
	}
	for i := range cfg.Datasets {
		cfg.Datasets[i].Path = expandHome(cfg.Datasets[i].Path)
	}

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindDataset returns the dataset with the given name, or nil.
func (c Config) FindDataset(name string) *Dataset {
	for i := range c.Datasets {
		if strings.EqualFold(c.Datasets[i].Name, name) {
			return &c.Datasets[i]
		}
	}
	return nil
}

// ResolvedPath returns the dataset path with ~ expanded.
func (d Dataset) ResolvedPath() string {
	return expandHome(d.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
