package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"setupwiz/internal/envfile"
	"setupwiz/internal/profile"
	"setupwiz/pkg/sdk/setup"

	"github.com/compose-spec/compose-go/v2/types"
	"github.com/containerd/errdefs"
	"github.com/distribution/reference"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
)

var _ setup.Installer = (*Installer)(nil)

const (
	DefaultContainerName = "setupwiz-app"
	defaultRestart       = "unless-stopped"
	dataMountTarget      = "/data"
	previousSuffix       = "-previous"

	managedLabel = "io.setupwiz.managed"
	profileLabel = "io.setupwiz.profile"
)

type InstallerConfig struct {
	ContainerName string
	// DataDir is bind-mounted at /data when no compose profile describes
	// the container's volumes.
	DataDir string
}

// Installer replaces the application container with one running the
// requested image.
type Installer struct {
	api      API
	cfg      InstallerConfig
	progress io.Writer
	log      *slog.Logger
}

func NewInstaller(api API, cfg InstallerConfig) *Installer {
	if strings.TrimSpace(cfg.ContainerName) == "" {
		cfg.ContainerName = DefaultContainerName
	}
	return &Installer{
		api:      api,
		cfg:      cfg,
		progress: io.Discard,
		log:      slog.With("component", "docker-installer"),
	}
}

// SetProgress directs pull progress messages to w.
func (i *Installer) SetProgress(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	i.progress = w
}

// containerSpec is the resolved shape of the container to create.
type containerSpec struct {
	image   string
	env     map[string]string
	ports   []string
	mounts  []mount.Mount
	restart string
	profile string
}

func (i *Installer) Install(ctx context.Context, req setup.InstallRequest) (setup.InstallResult, error) {
	named, err := reference.ParseNormalizedNamed(strings.TrimSpace(req.Image))
	if err != nil {
		return setup.InstallResult{}, fmt.Errorf("parse image %q: %w", req.Image, err)
	}
	named = reference.TagNameOnly(named)

	digest, err := i.ensureImage(ctx, named, req.Auth)
	if err != nil {
		return setup.InstallResult{}, err
	}

	spec, err := i.resolve(ctx, named.String(), req)
	if err != nil {
		return setup.InstallResult{}, err
	}
	config, hostConfig, err := spec.build()
	if err != nil {
		return setup.InstallResult{}, err
	}

	name := i.cfg.ContainerName
	id, err := i.replace(ctx, name, config, hostConfig)
	if err != nil {
		return setup.InstallResult{}, err
	}
	i.log.Info("container started", "container", name, "id", id, "image", named.String())

	return setup.InstallResult{
		ContainerID:   id,
		ContainerName: name,
		Image:         named.String(),
		Digest:        digest,
	}, nil
}

// replace starts a new container under name. The running one is stopped and
// kept as <name>-previous until the new container has started; if create or
// start fails it is renamed back and restarted.
func (i *Installer) replace(ctx context.Context, name string, config *container.Config, hostConfig *container.HostConfig) (string, error) {
	previous := name + previousSuffix
	if err := i.remove(ctx, previous); err != nil {
		return "", err
	}
	hadPrevious, err := i.setAside(ctx, name, previous)
	if err != nil {
		return "", err
	}

	created, err := i.api.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		err = fmt.Errorf("create container %q: %w", name, err)
		return "", errors.Join(err, i.restore(ctx, name, "", previous, hadPrevious))
	}
	for _, warning := range created.Warnings {
		i.log.Warn("container create", "container", name, "warning", warning)
	}
	if err := i.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		err = fmt.Errorf("start container %q: %w", name, err)
		return "", errors.Join(err, i.restore(ctx, name, created.ID, previous, hadPrevious))
	}

	if hadPrevious {
		if err := i.remove(ctx, previous); err != nil {
			i.log.Warn("previous container left behind", "container", previous, "err", err)
		}
	}
	return created.ID, nil
}

// setAside renames the current container to previous and stops it. It
// reports false when there is no current container.
func (i *Installer) setAside(ctx context.Context, name, previous string) (bool, error) {
	if err := i.api.ContainerRename(ctx, name, previous); err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("rename container %q: %w", name, err)
	}
	if err := i.api.ContainerStop(ctx, previous, container.StopOptions{}); err != nil {
		err = fmt.Errorf("stop container %q: %w", name, err)
		if renameErr := i.api.ContainerRename(ctx, previous, name); renameErr != nil {
			err = errors.Join(err, fmt.Errorf("rename container %q back: %w", previous, renameErr))
		}
		return false, err
	}
	return true, nil
}

// restore removes the failed container and brings the previous one back.
// The context may already be done, so cleanup runs without its deadline.
func (i *Installer) restore(ctx context.Context, name, failedID, previous string, hadPrevious bool) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if failedID != "" {
		if err := i.remove(ctx, failedID); err != nil {
			errs = append(errs, err)
		}
	}
	if !hadPrevious {
		return errors.Join(errs...)
	}
	if err := i.api.ContainerRename(ctx, previous, name); err != nil {
		errs = append(errs, fmt.Errorf("restore container %q: %w", name, err))
		return errors.Join(errs...)
	}
	if err := i.api.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		errs = append(errs, fmt.Errorf("restart previous container %q: %w", name, err))
	} else {
		i.log.Warn("install failed, previous container restored", "container", name)
	}
	return errors.Join(errs...)
}

func (i *Installer) remove(ctx context.Context, id string) error {
	err := i.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %q: %w", id, err)
	}
	return nil
}

// ensureImage pulls ref when it is not present locally and returns its
// digest.
func (i *Installer) ensureImage(ctx context.Context, ref reference.Named, auth setup.Auth) (string, error) {
	info, err := i.api.ImageInspect(ctx, ref.String())
	if err == nil {
		if digest := repoDigest(info, ref); digest != "" {
			return digest, nil
		}
		return info.ID, nil
	}
	if !errdefs.IsNotFound(err) {
		return "", fmt.Errorf("inspect local image %s: %w", ref, err)
	}

	i.log.Info("image not present, pulling", "image", ref.String())
	if err := pull(ctx, i.api, ref.String(), auth, i.progress); err != nil {
		return "", err
	}
	info, err = i.api.ImageInspect(ctx, ref.String())
	if err != nil {
		return "", fmt.Errorf("inspect pulled image %s: %w", ref, err)
	}
	if digest := repoDigest(info, ref); digest != "" {
		return digest, nil
	}
	return info.ID, nil
}

func (i *Installer) resolve(ctx context.Context, image string, req setup.InstallRequest) (containerSpec, error) {
	spec := containerSpec{image: image, env: map[string]string{}, restart: defaultRestart}

	if req.EnvPath != "" {
		env, err := envfile.Read(req.EnvPath)
		if err != nil {
			return containerSpec{}, err
		}
		spec.env = env
	}

	if req.ComposePath == "" {
		if i.cfg.DataDir != "" {
			spec.mounts = append(spec.mounts, mount.Mount{
				Type:   mount.TypeBind,
				Source: i.cfg.DataDir,
				Target: dataMountTarget,
			})
		}
		return spec, nil
	}

	project, err := profile.Load(ctx, req.ComposePath)
	if err != nil {
		return containerSpec{}, err
	}
	service, err := profile.AppService(project)
	if err != nil {
		return containerSpec{}, err
	}
	if err := spec.apply(service); err != nil {
		return containerSpec{}, fmt.Errorf("profile %s: %w", project.Name, err)
	}
	spec.profile = project.Name
	return spec, nil
}

// apply overlays a compose service onto the container spec. The installed image
// always wins over the one named in the service.
func (s *containerSpec) apply(service types.ServiceConfig) error {
	for key, value := range service.Environment {
		if value == nil {
			continue
		}
		s.env[key] = *value
	}
	for _, port := range service.Ports {
		s.ports = append(s.ports, portSpec(port))
	}
	for _, volume := range service.Volumes {
		m, err := volumeMount(volume)
		if err != nil {
			return err
		}
		s.mounts = append(s.mounts, m)
	}
	if service.Restart != "" {
		s.restart = service.Restart
	}
	return nil
}

func (s containerSpec) build() (*container.Config, *container.HostConfig, error) {
	exposed, bindings, err := nat.ParsePortSpecs(s.ports)
	if err != nil {
		return nil, nil, fmt.Errorf("parse ports: %w", err)
	}
	restart, err := restartPolicy(s.restart)
	if err != nil {
		return nil, nil, err
	}

	labels := map[string]string{managedLabel: "true"}
	if s.profile != "" {
		labels[profileLabel] = s.profile
	}

	config := &container.Config{
		Image:        s.image,
		Env:          envList(s.env),
		ExposedPorts: exposed,
		Labels:       labels,
	}
	hostConfig := &container.HostConfig{
		PortBindings:  bindings,
		Mounts:        s.mounts,
		RestartPolicy: restart,
	}
	return config, hostConfig, nil
}

func portSpec(port types.ServicePortConfig) string {
	proto := port.Protocol
	if proto == "" {
		proto = "tcp"
	}
	target := strconv.FormatUint(uint64(port.Target), 10)
	switch {
	case port.Published == "":
		return target + "/" + proto
	case port.HostIP != "":
		return port.HostIP + ":" + port.Published + ":" + target + "/" + proto
	default:
		return port.Published + ":" + target + "/" + proto
	}
}

func volumeMount(volume types.ServiceVolumeConfig) (mount.Mount, error) {
	m := mount.Mount{
		Source:   volume.Source,
		Target:   volume.Target,
		ReadOnly: volume.ReadOnly,
	}
	switch volume.Type {
	case types.VolumeTypeBind:
		m.Type = mount.TypeBind
	case types.VolumeTypeVolume, "":
		m.Type = mount.TypeVolume
	default:
		return mount.Mount{}, fmt.Errorf("volume %s: unsupported type %q", volume.Target, volume.Type)
	}
	if m.Target == "" {
		return mount.Mount{}, fmt.Errorf("volume %s: target is required", volume.Source)
	}
	return m, nil
}

func restartPolicy(raw string) (container.RestartPolicy, error) {
	name, count, hasCount := strings.Cut(strings.TrimSpace(raw), ":")
	policy := container.RestartPolicy{Name: container.RestartPolicyMode(name)}
	if hasCount {
		n, err := strconv.Atoi(count)
		if err != nil {
			return container.RestartPolicy{}, fmt.Errorf("restart policy %q: invalid retry count", raw)
		}
		policy.MaximumRetryCount = n
	}
	if err := container.ValidateRestartPolicy(policy); err != nil {
		return container.RestartPolicy{}, fmt.Errorf("restart policy %q: %w", raw, err)
	}
	return policy, nil
}

func envList(env map[string]string) []string {
	keys := slices.Sorted(maps.Keys(env))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+env[key])
	}
	return out
}
