// Package docker implements the wizard's registry, update and install
// collaborators on top of the Docker Engine API.
package docker

import (
	"context"
	"fmt"
	"io"

	"setupwiz/pkg/sdk/setup"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// API is the part of the Engine client the adapters use. *client.Client
// satisfies it.
type API interface {
	Ping(ctx context.Context) (types.Ping, error)
	RegistryLogin(ctx context.Context, auth registry.AuthConfig) (registry.AuthenticateOKBody, error)
	DistributionInspect(ctx context.Context, imageRef, encodedRegistryAuth string) (registry.DistributionInspect, error)
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, name string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, id string, opts container.StartOptions) error
	ContainerStop(ctx context.Context, id string, opts container.StopOptions) error
	ContainerRename(ctx context.Context, id, newName string) error
	ContainerRemove(ctx context.Context, id string, opts container.RemoveOptions) error
	Close() error
}

var _ API = (*client.Client)(nil)

// NewClient creates an Engine client from the environment.
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return cli, nil
}

// authConfig converts a wizard login into the Engine's credential form.
func authConfig(auth setup.Auth) registry.AuthConfig {
	cfg := registry.AuthConfig{
		Username:      auth.Username,
		ServerAddress: auth.Registry,
		IdentityToken: auth.IdentityToken,
	}
	if auth.IdentityToken == "" {
		cfg.Password = auth.Secret
	}
	return cfg
}

// encodeAuth returns the X-Registry-Auth header value for auth. A zero
// Auth encodes to "" so anonymous pulls still work.
func encodeAuth(auth setup.Auth) (string, error) {
	if !auth.Valid() {
		return "", nil
	}
	encoded, err := registry.EncodeAuthConfig(authConfig(auth))
	if err != nil {
		return "", fmt.Errorf("encode registry auth: %w", err)
	}
	return encoded, nil
}
