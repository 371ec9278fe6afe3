package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"setupwiz/pkg/sdk/setup"

	"github.com/containerd/errdefs"
	"github.com/distribution/reference"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/jsonmessage"
)

var (
	_ setup.UpdateLister = (*Updates)(nil)
	_ setup.Puller       = (*Updates)(nil)
)

// Updates offers the configured release channels of an image as update
// candidates and pulls the chosen one.
type Updates struct {
	api      API
	image    string
	channels []string
	progress io.Writer
	log      *slog.Logger
}

// NewUpdates returns an Updates for img. Each channel is a tag of img's
// repository; with no channels the tag of img itself is the only candidate.
func NewUpdates(api API, img string, channels []string) *Updates {
	return &Updates{
		api:      api,
		image:    img,
		channels: channels,
		progress: io.Discard,
		log:      slog.With("component", "docker-updates"),
	}
}

// SetProgress directs pull progress messages to w.
func (u *Updates) SetProgress(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	u.progress = w
}

func (u *Updates) List(ctx context.Context, auth setup.Auth) ([]setup.Candidate, error) {
	refs, err := channelRefs(u.image, u.channels)
	if err != nil {
		return nil, err
	}
	encoded, err := encodeAuth(auth)
	if err != nil {
		return nil, err
	}

	candidates := make([]setup.Candidate, 0, len(refs))
	for _, ref := range refs {
		dist, err := u.api.DistributionInspect(ctx, ref.String(), encoded)
		if err != nil {
			if errdefs.IsNotFound(err) {
				u.log.Debug("channel not published", "ref", ref)
				continue
			}
			return nil, fmt.Errorf("inspect %s: %w", ref, err)
		}
		local, err := u.localDigest(ctx, ref)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, setup.Candidate{
			Channel:      ref.Tag(),
			Ref:          ref.String(),
			RemoteDigest: dist.Descriptor.Digest.String(),
			LocalDigest:  local,
		})
	}
	return candidates, nil
}

func (u *Updates) Pull(ctx context.Context, candidate setup.Candidate, auth setup.Auth) (setup.Artifact, error) {
	if strings.TrimSpace(candidate.Ref) == "" {
		return setup.Artifact{}, fmt.Errorf("pull: candidate has no image reference")
	}
	if err := pull(ctx, u.api, candidate.Ref, auth, u.progress); err != nil {
		return setup.Artifact{}, err
	}

	named, err := reference.ParseNormalizedNamed(candidate.Ref)
	if err != nil {
		return setup.Artifact{}, fmt.Errorf("parse image %q: %w", candidate.Ref, err)
	}
	digest, err := u.localDigest(ctx, named)
	if err != nil {
		return setup.Artifact{}, err
	}
	if digest == "" {
		digest = candidate.RemoteDigest
	}
	return setup.Artifact{Ref: candidate.Ref, Digest: digest}, nil
}

// localDigest returns the registry digest of the local copy of ref, or ""
// when the image is not present locally.
func (u *Updates) localDigest(ctx context.Context, ref reference.Named) (string, error) {
	return localDigest(ctx, u.api, ref)
}

func localDigest(ctx context.Context, api API, ref reference.Named) (string, error) {
	info, err := api.ImageInspect(ctx, ref.String())
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("inspect local image %s: %w", ref, err)
	}
	return repoDigest(info, ref), nil
}

// repoDigest picks the digest recorded for ref's repository.
func repoDigest(info image.InspectResponse, ref reference.Named) string {
	for _, raw := range info.RepoDigests {
		named, err := reference.ParseNormalizedNamed(raw)
		if err != nil {
			continue
		}
		canonical, ok := named.(reference.Canonical)
		if !ok || named.Name() != ref.Name() {
			continue
		}
		return canonical.Digest().String()
	}
	return ""
}

func pull(ctx context.Context, api API, ref string, auth setup.Auth, progress io.Writer) error {
	encoded, err := encodeAuth(auth)
	if err != nil {
		return err
	}
	stream, err := api.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: encoded})
	if err != nil {
		return fmt.Errorf("pull image %q: %w", ref, err)
	}
	defer stream.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(stream, progress, 0, false, nil); err != nil {
		return fmt.Errorf("pull image %q: %w", ref, err)
	}
	return nil
}

// channelRefs expands img into one tagged reference per channel.
func channelRefs(img string, channels []string) ([]reference.NamedTagged, error) {
	named, err := reference.ParseNormalizedNamed(strings.TrimSpace(img))
	if err != nil {
		return nil, fmt.Errorf("parse image %q: %w", img, err)
	}
	named = reference.TagNameOnly(named)

	if len(channels) == 0 {
		tagged, ok := named.(reference.NamedTagged)
		if !ok {
			return nil, fmt.Errorf("image %q is pinned by digest and no channels are configured", img)
		}
		return []reference.NamedTagged{tagged}, nil
	}

	repo := reference.TrimNamed(named)
	seen := make(map[string]struct{}, len(channels))
	refs := make([]reference.NamedTagged, 0, len(channels))
	for _, channel := range channels {
		channel = strings.TrimSpace(channel)
		if channel == "" {
			continue
		}
		if _, dup := seen[channel]; dup {
			continue
		}
		seen[channel] = struct{}{}
		tagged, err := reference.WithTag(repo, channel)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", channel, err)
		}
		refs = append(refs, tagged)
	}
	return refs, nil
}
