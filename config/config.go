// Package config handles the wizard's settings file.
//
// Settings are stored at $SETUPWIZ_CONFIG, else
// $XDG_CONFIG_HOME/setupwiz/config.yaml (defaults to
// ~/.config/setupwiz/config.yaml). A missing file means defaults. Registry
// secrets are never stored here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/distribution/reference"
	"gopkg.in/yaml.v3"
)

const (
	EnvPath = "SETUPWIZ_CONFIG"

	DefaultImage            = "registry.example.com/acme/app:stable"
	DefaultContainerName    = "setupwiz-app"
	DefaultOperationTimeout = 10 * time.Minute
)

// Profile is a named container shape the config step can generate.
type Profile struct {
	Ports       []string          `yaml:"ports,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	Restart     string            `yaml:"restart,omitempty"`
}

// Settings is the resolved wizard configuration.
type Settings struct {
	Registry         string             `yaml:"registry,omitempty"`
	Username         string             `yaml:"username,omitempty"`
	Image            string             `yaml:"image"`
	Channels         []string           `yaml:"channels,omitempty"`
	ContainerName    string             `yaml:"container-name"`
	DataDir          string             `yaml:"data-dir"`
	EnvFile          string             `yaml:"env-file,omitempty"`
	ComposeFile      string             `yaml:"compose-file,omitempty"`
	HistoryDB        string             `yaml:"history-db"`
	OperationTimeout Duration           `yaml:"operation-timeout"`
	Profiles         map[string]Profile `yaml:"profiles"`
}

// Duration is a time.Duration written as "90s" or "10m" in yaml.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", raw)
	}
	*d = Duration(parsed)
	return nil
}

// Path returns the settings file location.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p
	}
	return filepath.Join(configHome(), "setupwiz", "config.yaml")
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config"
	}
	return filepath.Join(home, ".config")
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".local", "share")
	}
	return filepath.Join(home, ".local", "share")
}

// Defaults returns the settings used when no file exists.
func Defaults() *Settings {
	base := filepath.Join(dataHome(), "setupwiz")
	return &Settings{
		Image:            DefaultImage,
		Channels:         []string{"stable", "beta"},
		ContainerName:    DefaultContainerName,
		DataDir:          filepath.Join(base, "data"),
		HistoryDB:        filepath.Join(base, "history.db"),
		OperationTimeout: Duration(DefaultOperationTimeout),
		Profiles: map[string]Profile{
			"small": {
				Ports:       []string{"127.0.0.1:8080:8080"},
				Environment: map[string]string{"APP_WORKERS": "2"},
				Restart:     "unless-stopped",
			},
			"large": {
				Ports:       []string{"8080:8080", "8443:8443"},
				Environment: map[string]string{"APP_WORKERS": "8"},
				Restart:     "always",
			},
		},
	}
}

// Load reads the settings file at path, or at Path() when path is empty.
// Fields the file leaves out keep their defaults.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = Path()
	}
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Profiles from the file replace the defaults rather than merge.
	defaultProfiles := cfg.Profiles
	cfg.Profiles = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = defaultProfiles
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the settings to path (or Path()), creating directories as
// needed.
func (s *Settings) Save(path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Image) == "" {
		return fmt.Errorf("image is required")
	}
	named, err := reference.ParseNormalizedNamed(strings.TrimSpace(s.Image))
	if err != nil {
		return fmt.Errorf("invalid image %q: %w", s.Image, err)
	}
	// Updates are found by tag, so a bare digest needs channels to follow.
	if _, pinned := named.(reference.Canonical); pinned && len(s.Channels) == 0 {
		if _, tagged := named.(reference.Tagged); !tagged {
			return fmt.Errorf("image %q is pinned by digest: set channels to check for updates", s.Image)
		}
	}
	if strings.TrimSpace(s.ContainerName) == "" {
		return fmt.Errorf("container-name is required")
	}
	for name := range s.Profiles {
		if !validProfileName(name) {
			return fmt.Errorf("invalid profile name %q: use lowercase letters, digits, '-' and '_'", name)
		}
	}
	return nil
}

func validProfileName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case (r == '-' || r == '_') && i > 0:
		default:
			return false
		}
	}
	return true
}

// Timeout returns the per-operation timeout.
func (s *Settings) Timeout() time.Duration {
	if s.OperationTimeout <= 0 {
		return DefaultOperationTimeout
	}
	return time.Duration(s.OperationTimeout)
}
