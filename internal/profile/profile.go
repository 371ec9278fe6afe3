// Package profile turns a named configuration profile into a compose file
// describing the application container, and loads such files back.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"setupwiz/config"
	"setupwiz/pkg/sdk/setup"

	"github.com/compose-spec/compose-go/v2/loader"
	compose "github.com/compose-spec/compose-go/v2/types"
	"github.com/moby/sys/atomicwriter"
	"gopkg.in/yaml.v3"
)

const (
	// ServiceName is the compose service that describes the application.
	ServiceName = "app"

	projectPrefix   = "setupwiz-"
	dataMountTarget = "/data"
)

var _ setup.ConfigGenerator = (*Generator)(nil)

// Generator writes compose files for the profiles in Definitions.
type Generator struct {
	Definitions map[string]config.Profile
	// Dir receives <profile>.compose.yaml unless Path is set.
	Dir  string
	Path string
	// DataDir is bind-mounted at /data in every generated profile.
	DataDir string
}

// Profiles lists the profiles Generate accepts, sorted.
func (g *Generator) Profiles() []string {
	return slices.Sorted(maps.Keys(g.Definitions))
}

func (g *Generator) Generate(ctx context.Context, req setup.ConfigRequest) (string, error) {
	name := strings.TrimSpace(req.Profile)
	prof, ok := g.Definitions[name]
	if !ok {
		return "", fmt.Errorf("unknown profile %q", req.Profile)
	}
	if strings.TrimSpace(req.Image) == "" {
		return "", fmt.Errorf("profile %s: no image configured", name)
	}

	path, err := g.path(name)
	if err != nil {
		return "", err
	}
	content, err := render(name, prof, req, g.DataDir)
	if err != nil {
		return "", err
	}
	if _, err := parse(ctx, path, content); err != nil {
		return "", fmt.Errorf("profile %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create compose dir: %w", err)
	}
	if err := atomicwriter.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write compose file: %w", err)
	}
	slog.Debug("compose file written", "component", "profile", "profile", name, "path", path)
	return path, nil
}

func (g *Generator) path(name string) (string, error) {
	if p := strings.TrimSpace(g.Path); p != "" {
		return filepath.Abs(p)
	}
	if strings.TrimSpace(g.Dir) == "" {
		return "", fmt.Errorf("compose file: output directory is not configured")
	}
	return filepath.Abs(filepath.Join(g.Dir, name+".compose.yaml"))
}

// Load parses a compose file written by Generate.
func Load(ctx context.Context, path string) (*compose.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}
	return parse(ctx, path, data)
}

// AppService returns the service describing the application container.
func AppService(project *compose.Project) (compose.ServiceConfig, error) {
	if svc, ok := project.Services[ServiceName]; ok {
		return svc, nil
	}
	if len(project.Services) == 1 {
		for _, svc := range project.Services {
			return svc, nil
		}
	}
	return compose.ServiceConfig{}, fmt.Errorf("compose project %s has no %q service", project.Name, ServiceName)
}

func parse(ctx context.Context, path string, data []byte) (*compose.Project, error) {
	details := compose.ConfigDetails{
		WorkingDir:  filepath.Dir(path),
		ConfigFiles: []compose.ConfigFile{{Filename: path, Content: data}},
		Environment: map[string]string{},
	}
	project, err := loader.LoadWithContext(ctx, details)
	if err != nil {
		return nil, fmt.Errorf("parse compose file: %w", err)
	}
	if len(project.Services) == 0 {
		return nil, fmt.Errorf("compose file has no services")
	}
	return project, nil
}

type composeFile struct {
	Name     string                    `yaml:"name"`
	Services map[string]composeService `yaml:"services"`
	Volumes  map[string]struct{}       `yaml:"volumes,omitempty"`
}

type composeService struct {
	Image       string            `yaml:"image"`
	EnvFile     []string          `yaml:"env_file,omitempty"`
	Ports       []string          `yaml:"ports,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	Restart     string            `yaml:"restart,omitempty"`
}

// render builds the compose document. Values are literal: "$" is escaped
// so compose interpolation leaves them alone.
func render(name string, prof config.Profile, req setup.ConfigRequest, dataDir string) ([]byte, error) {
	svc := composeService{
		Image:   escape(req.Image),
		Ports:   prof.Ports,
		Restart: prof.Restart,
	}
	if req.EnvPath != "" {
		svc.EnvFile = []string{req.EnvPath}
	}
	if len(prof.Environment) > 0 {
		svc.Environment = make(map[string]string, len(prof.Environment))
		for k, v := range prof.Environment {
			svc.Environment[k] = escape(v)
		}
	}
	if dataDir != "" {
		svc.Volumes = append(svc.Volumes, escape(dataDir)+":"+dataMountTarget)
	}
	named := map[string]struct{}{}
	for _, v := range prof.Volumes {
		svc.Volumes = append(svc.Volumes, escape(v))
		if source, _, ok := strings.Cut(v, ":"); ok && !isPath(source) {
			named[escape(source)] = struct{}{}
		}
	}

	file := composeFile{
		Name:     projectPrefix + name,
		Services: map[string]composeService{ServiceName: svc},
	}
	if len(named) > 0 {
		file.Volumes = named
	}
	out, err := yaml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("marshal compose file: %w", err)
	}
	return out, nil
}

// isPath reports whether a volume source is a host path rather than a
// named volume.
func isPath(source string) bool {
	return strings.HasPrefix(source, "/") || strings.HasPrefix(source, ".") || strings.HasPrefix(source, "~")
}

func escape(v string) string {
	return strings.ReplaceAll(v, "$", "$$")
}
