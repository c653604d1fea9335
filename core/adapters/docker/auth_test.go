package docker

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRegistry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		image    string
		expected string
	}{
		{"simple image", "postgres", "docker.io"},
		{"image with tag", "redis:7-alpine", "docker.io"},
		{"library image", "library/postgres", "docker.io"},
		{"user/repo", "myuser/myimage:v1.0", "docker.io"},
		{"quay.io", "quay.io/keycloak/keycloak:26.5.2", "quay.io"},
		{"ghcr.io", "ghcr.io/owner/image:latest", "ghcr.io"},
		{"localhost with port", "localhost:5000/myimage", "localhost:5000"},
		{"custom registry with port", "registry.example.com:8080/org/image:tag", "registry.example.com:8080"},
		{"unparseable", "UPPER/Case", "docker.io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ExtractRegistry(tt.image))
		})
	}
}

func TestRegistryAuthKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, dockerHubAuthKey, registryAuthKey(""))
	assert.Equal(t, dockerHubAuthKey, registryAuthKey("docker.io"))
	assert.Equal(t, dockerHubAuthKey, registryAuthKey("index.docker.io"))
	assert.Equal(t, dockerHubAuthKey, registryAuthKey("registry-1.docker.io"))
	assert.Equal(t, "quay.io", registryAuthKey("quay.io"))
	assert.Equal(t, "localhost:5000", registryAuthKey("localhost:5000"))
}

func TestConfigAuthProviderMissingConfig(t *testing.T) {
	t.Parallel()

	provider := NewConfigAuthProviderWithDir(filepath.Join(t.TempDir(), "missing"), nil)

	auth, err := provider.GetAuthConfig("quay.io")
	require.NoError(t, err)
	assert.True(t, auth.Empty())

	encoded, err := provider.GetEncodedAuth("docker.io")
	require.NoError(t, err)
	assert.Empty(t, encoded)
}

func writeDockerConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o600))
	return dir
}

func TestConfigAuthProviderStoredCredentials(t *testing.T) {
	t.Parallel()

	dir := writeDockerConfig(t, `{
		"auths": {
			"https://index.docker.io/v1/": {"auth": "dXNlcm5hbWU6cGFzc3dvcmQ="},
			"quay.io": {"username": "robot", "password": "s3cret"},
			"ghcr.io": {"identitytoken": "refresh-token"}
		}
	}`)
	provider := NewConfigAuthProviderWithDir(dir, nil)

	hub, err := provider.GetAuthConfig("docker.io")
	require.NoError(t, err)
	assert.Equal(t, "username", hub.Username)
	assert.Equal(t, "password", hub.Password)

	quay, err := provider.GetAuthConfig("quay.io")
	require.NoError(t, err)
	assert.Equal(t, "robot", quay.Username)
	assert.Equal(t, "s3cret", quay.Password)

	ghcr, err := provider.GetAuthConfig("ghcr.io")
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", ghcr.IdentityToken)
	assert.False(t, ghcr.Empty())

	unknown, err := provider.GetAuthConfig("unknown.registry.io")
	require.NoError(t, err)
	assert.True(t, unknown.Empty())
}

func TestConfigAuthProviderEncodedAuth(t *testing.T) {
	t.Parallel()

	dir := writeDockerConfig(t, `{"auths": {"quay.io": {"username": "robot", "password": "s3cret"}}}`)
	provider := NewConfigAuthProviderWithDir(dir, nil)

	encoded, err := provider.GetEncodedAuth("quay.io")
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	raw, err := base64.URLEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "robot", decoded["username"])
}

type recordingLogger struct {
	debug   []string
	warning []string
}

func (l *recordingLogger) Debugf(format string, args ...interface{}) {
	l.debug = append(l.debug, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Warningf(format string, args ...interface{}) {
	l.warning = append(l.warning, fmt.Sprintf(format, args...))
}

func TestConfigAuthProviderLogging(t *testing.T) {
	t.Parallel()

	dir := writeDockerConfig(t, `{"auths": {"quay.io": {"username": "robot", "password": "s3cret"}}}`)
	logger := &recordingLogger{}
	provider := NewConfigAuthProviderWithDir(dir, logger)

	_, err := provider.GetAuthConfig("quay.io")
	require.NoError(t, err)
	require.Len(t, logger.debug, 1)
	assert.Contains(t, logger.debug[0], "quay.io")

	broken := writeDockerConfig(t, `{not json`)
	provider = NewConfigAuthProviderWithDir(broken, logger)
	_, err = provider.GetAuthConfig("quay.io")
	require.NoError(t, err)
	assert.NotEmpty(t, logger.warning)
}
