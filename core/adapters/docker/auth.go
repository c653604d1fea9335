package docker

import (
	"fmt"

	"github.com/distribution/reference"
	"github.com/docker/cli/cli/config"
	"github.com/docker/cli/cli/config/configfile"
	"github.com/docker/cli/cli/config/types"

	"github.com/netresearch/testenv/core/domain"
)

const dockerHubAuthKey = "https://index.docker.io/v1/"

// Logger is the subset of logging used by the adapter.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warningf(format string, args ...interface{})
}

// ConfigAuthProvider implements ports.AuthProvider using the Docker CLI
// config.json, including credential helpers. The file is read on every call
// so rotated short-lived registry tokens are picked up.
type ConfigAuthProvider struct {
	configDir string
	logger    Logger
}

// NewConfigAuthProvider creates an auth provider reading the default config dir.
func NewConfigAuthProvider(logger Logger) *ConfigAuthProvider {
	return &ConfigAuthProvider{logger: logger}
}

// NewConfigAuthProviderWithDir creates an auth provider reading configDir.
func NewConfigAuthProviderWithDir(configDir string, logger Logger) *ConfigAuthProvider {
	return &ConfigAuthProvider{configDir: configDir, logger: logger}
}

// GetAuthConfig returns auth configuration for a registry. A missing or
// unreadable config yields empty credentials so public images still pull.
func (p *ConfigAuthProvider) GetAuthConfig(registry string) (domain.AuthConfig, error) {
	cfg, err := p.loadConfig()
	if err != nil {
		p.warnf("registry credentials unavailable: %v", err)
		return domain.AuthConfig{}, nil
	}

	key := registryAuthKey(registry)
	authConfig, err := cfg.GetAuthConfig(key)
	if err != nil {
		p.warnf("no credentials for registry %q: %v", key, err)
		return domain.AuthConfig{}, nil
	}

	if authConfig.Username != "" || authConfig.IdentityToken != "" {
		p.debugf("using stored credentials for registry %q", key)
	}

	return toDomainAuth(authConfig), nil
}

// GetEncodedAuth returns base64-encoded auth for a registry, or "" for
// anonymous pulls.
func (p *ConfigAuthProvider) GetEncodedAuth(registry string) (string, error) {
	auth, err := p.GetAuthConfig(registry)
	if err != nil {
		return "", err
	}
	if auth.Empty() {
		return "", nil
	}
	return EncodeAuthConfig(auth)
}

func (p *ConfigAuthProvider) loadConfig() (*configfile.ConfigFile, error) {
	dir := p.configDir
	if dir == "" {
		dir = config.Dir()
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading docker config from %s: %w", dir, err)
	}
	return cfg, nil
}

func (p *ConfigAuthProvider) debugf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debugf(format, args...)
	}
}

func (p *ConfigAuthProvider) warnf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warningf(format, args...)
	}
}

// registryAuthKey maps a registry domain to the key used in config.json.
func registryAuthKey(registry string) string {
	switch registry {
	case "", "docker.io", "index.docker.io", "registry-1.docker.io":
		return dockerHubAuthKey
	}
	return registry
}

func toDomainAuth(src types.AuthConfig) domain.AuthConfig {
	return domain.AuthConfig{
		Username:      src.Username,
		Password:      src.Password,
		Auth:          src.Auth,
		ServerAddress: src.ServerAddress,
		IdentityToken: src.IdentityToken,
		RegistryToken: src.RegistryToken,
	}
}

// ExtractRegistry returns the registry domain of an image reference,
// "docker.io" for short names and unparseable input.
func ExtractRegistry(image string) string {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "docker.io"
	}
	return reference.Domain(named)
}
