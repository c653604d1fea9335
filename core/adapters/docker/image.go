package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/netresearch/testenv/core/domain"
)

// ImageServiceAdapter implements ports.ImageService using Docker SDK.
type ImageServiceAdapter struct {
	client *client.Client
}

// PullAndWait pulls an image and blocks until the daemon has finished.
// Errors reported inside the progress stream (unknown tag, denied) fail the
// pull even though the request itself succeeded.
func (s *ImageServiceAdapter) PullAndWait(ctx context.Context, opts domain.PullOptions) error {
	ref := opts.Repository
	if opts.Tag != "" {
		ref = ref + ":" + opts.Tag
	}

	stream, err := s.client.ImagePull(ctx, ref, image.PullOptions{
		RegistryAuth: opts.RegistryAuth,
		Platform:     opts.Platform,
	})
	if err != nil {
		return imageError(ref, convertError(err))
	}
	defer stream.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(stream, io.Discard, 0, false, nil); err != nil {
		var streamErr *jsonmessage.JSONError
		if errors.As(err, &streamErr) && strings.Contains(streamErr.Message, "not found") {
			return &domain.ImageNotFoundError{Image: ref}
		}
		return fmt.Errorf("pulling %s: %w", ref, err)
	}
	return nil
}

func imageError(ref string, err error) error {
	if domain.IsNotFound(err) {
		return &domain.ImageNotFoundError{Image: ref}
	}
	return err
}

// Inspect returns image information.
func (s *ImageServiceAdapter) Inspect(ctx context.Context, imageRef string) (*domain.Image, error) {
	img, err := s.client.ImageInspect(ctx, imageRef)
	if err != nil {
		return nil, imageError(imageRef, convertError(err))
	}

	out := &domain.Image{
		ID:          img.ID,
		RepoTags:    img.RepoTags,
		RepoDigests: img.RepoDigests,
		Created:     parseTime(img.Created),
		Size:        img.Size,
	}
	if img.Config != nil {
		out.Labels = img.Config.Labels
	}
	return out, nil
}

// Exists checks if an image exists locally.
func (s *ImageServiceAdapter) Exists(ctx context.Context, imageRef string) (bool, error) {
	switch _, err := s.Inspect(ctx, imageRef); {
	case err == nil:
		return true, nil
	case domain.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// EncodeAuthConfig encodes an auth config for use in API calls.
func EncodeAuthConfig(auth domain.AuthConfig) (string, error) {
	authConfig := registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		Auth:          auth.Auth,
		ServerAddress: auth.ServerAddress,
		IdentityToken: auth.IdentityToken,
		RegistryToken: auth.RegistryToken,
	}

	encoded, err := json.Marshal(authConfig)
	if err != nil {
		return "", fmt.Errorf("encoding auth config: %w", err)
	}

	return base64.URLEncoding.EncodeToString(encoded), nil
}
