package docker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"setupwiz/pkg/sdk/setup"

	"github.com/docker/docker/api/types/registry"
)

var _ setup.Authenticator = (*Registry)(nil)

// Registry verifies credentials against a registry through the daemon.
type Registry struct {
	api API
	log *slog.Logger
}

func NewRegistry(api API) *Registry {
	return &Registry{api: api, log: slog.With("component", "docker-registry")}
}

func (r *Registry) Login(ctx context.Context, creds setup.Credentials) (setup.Auth, error) {
	server := strings.TrimSpace(creds.Registry)
	if server == "" {
		return setup.Auth{}, fmt.Errorf("registry login: registry address is required")
	}
	if strings.TrimSpace(creds.Username) == "" || creds.Secret == "" {
		return setup.Auth{}, fmt.Errorf("registry login: username and token are required")
	}

	resp, err := r.api.RegistryLogin(ctx, registry.AuthConfig{
		Username:      creds.Username,
		Password:      creds.Secret,
		ServerAddress: server,
	})
	if err != nil {
		return setup.Auth{}, fmt.Errorf("registry login %s: %w", server, err)
	}
	r.log.Debug("logged in", "registry", server, "user", creds.Username, "token", resp.IdentityToken != "")

	return setup.Auth{
		Registry:      server,
		Username:      creds.Username,
		Secret:        creds.Secret,
		IdentityToken: resp.IdentityToken,
		Status:        resp.Status,
	}, nil
}
