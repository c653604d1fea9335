package domain

import "time"

// Image represents a locally available image.
type Image struct {
	ID          string
	RepoTags    []string
	RepoDigests []string
	Created     time.Time
	Size        int64
	Labels      map[string]string
}

// PullOptions represents options for pulling an image.
type PullOptions struct {
	// Repository to pull (e.g., "postgres", "quay.io/keycloak/keycloak")
	Repository string

	// Tag to pull (if not included in repository)
	Tag string

	// Platform to pull (e.g., "linux/amd64")
	Platform string

	// RegistryAuth is base64 encoded auth config
	RegistryAuth string
}

// AuthConfig contains authorization information for connecting to a registry.
type AuthConfig struct {
	Username      string
	Password      string
	Auth          string // Base64 encoded "username:password"
	ServerAddress string
	IdentityToken string
	RegistryToken string
}

// Empty reports whether the config carries no credentials at all.
func (a AuthConfig) Empty() bool {
	return a.Username == "" && a.Password == "" && a.IdentityToken == "" && a.Auth == ""
}
