package config

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestPathPrefersExplicitEnv(t *testing.T) {
	t.Setenv(EnvPath, "/etc/setupwiz.yaml")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := Path(); got != "/etc/setupwiz.yaml" {
		t.Fatalf("Path() = %q", got)
	}

	t.Setenv(EnvPath, "")
	if got := Path(); got != filepath.Join("/xdg", "setupwiz", "config.yaml") {
		t.Fatalf("Path() = %q", got)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data-home")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Image != DefaultImage || cfg.ContainerName != DefaultContainerName {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.HistoryDB != filepath.Join("/data-home", "setupwiz", "history.db") {
		t.Fatalf("HistoryDB = %q", cfg.HistoryDB)
	}
	if got := slices.Sorted(maps.Keys(cfg.Profiles)); !slices.Equal(got, []string{"large", "small"}) {
		t.Fatalf("profiles = %v", got)
	}
	if cfg.Timeout() != DefaultOperationTimeout {
		t.Fatalf("Timeout() = %s", cfg.Timeout())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
registry: registry.example.com
username: deploy
image: registry.example.com/acme/api:stable
channels: [stable]
operation-timeout: 90s
profiles:
  edge:
    ports: ["80:8080"]
    restart: always
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Registry != "registry.example.com" || cfg.Username != "deploy" {
		t.Fatalf("registry settings = %+v", cfg)
	}
	if len(cfg.Channels) != 1 || cfg.Channels[0] != "stable" {
		t.Fatalf("Channels = %v", cfg.Channels)
	}
	if cfg.Timeout() != 90*time.Second {
		t.Fatalf("Timeout() = %s", cfg.Timeout())
	}
	if names := slices.Sorted(maps.Keys(cfg.Profiles)); !slices.Equal(names, []string{"edge"}) {
		t.Fatalf("profiles = %v, want only edge", names)
	}
	if cfg.ContainerName != DefaultContainerName {
		t.Fatalf("ContainerName = %q, want default", cfg.ContainerName)
	}
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
	}{
		{name: "bad duration", content: "operation-timeout: soon\n"},
		{name: "negative duration", content: "operation-timeout: -1m\n"},
		{name: "empty image", content: "image: \"\"\n"},
		{name: "bad profile name", content: "profiles:\n  \"a b\": {}\n"},
		{name: "not yaml", content: "image: [unterminated\n"},
		{name: "bad image", content: "image: Not A Ref\n"},
		{
			name:    "digest image without channels",
			content: "image: nginx@sha256:" + strings.Repeat("a", 64) + "\nchannels: []\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("Load() error = nil, want error")
			}
		})
	}
}

func TestLoadAcceptsDigestImageWithChannels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "image: nginx@sha256:" + strings.Repeat("a", 64) + "\nchannels: [stable]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.Registry = "registry.example.com"
	cfg.OperationTimeout = Duration(2 * time.Minute)
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Registry != cfg.Registry || loaded.Timeout() != 2*time.Minute {
		t.Fatalf("loaded = %+v", loaded)
	}
	if len(loaded.Profiles) != len(cfg.Profiles) {
		t.Fatalf("profiles = %v", loaded.Profiles)
	}
}
