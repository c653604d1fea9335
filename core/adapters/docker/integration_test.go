//go:build integration

package docker_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dockeradapter "github.com/netresearch/testenv/core/adapters/docker"
	"github.com/netresearch/testenv/core/domain"
)

const integrationImage = "alpine:3.20"

func newIntegrationClient(t *testing.T) *dockeradapter.Client {
	t.Helper()

	client, err := dockeradapter.NewClient()
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.System().Ping(ctx); err != nil {
		skipOrFailDockerUnavailable(t, err)
	}
	return client
}

func TestContainerLifecycleIntegration(t *testing.T) {
	client := newIntegrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	exists, err := client.Images().Exists(ctx, integrationImage)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.Images().PullAndWait(ctx, domain.PullOptions{Repository: integrationImage}))
	}

	id, err := client.Containers().Create(ctx, &domain.ContainerConfig{
		Image:        integrationImage,
		Cmd:          []string{"sh", "-c", "echo ready; sleep 30"},
		Labels:       map[string]string{"io.testenv.session": "integration"},
		ExposedPorts: []domain.Port{"8080/tcp"},
		HostConfig: &domain.HostConfig{
			PortBindings: domain.PortMap{"8080/tcp": {{HostIP: "127.0.0.1"}}},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Containers().Remove(context.Background(), id, domain.RemoveOptions{Force: true, RemoveVolumes: true})
	})

	var archive bytes.Buffer
	tw := tar.NewWriter(&archive)
	payload := []byte(`{"realm":"test"}`)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "realm.json", Mode: 0o644, Size: int64(len(payload))}))
	_, err = tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, client.Containers().CopyTo(ctx, id, "/tmp", &archive, domain.CopyOptions{}))

	require.NoError(t, client.Containers().Start(ctx, id))

	info, err := client.Containers().Inspect(ctx, id)
	require.NoError(t, err)
	assert.True(t, info.State.Running)
	require.NotEmpty(t, info.Ports["8080/tcp"])
	assert.NotEmpty(t, info.Ports["8080/tcp"][0].HostPort)

	require.Eventually(t, func() bool {
		logs, err := client.Containers().Logs(ctx, id, domain.LogOptions{ShowStdout: true, ShowStderr: true})
		if err != nil {
			return false
		}
		defer logs.Close()
		out, _ := io.ReadAll(logs)
		return strings.Contains(string(out), "ready")
	}, 10*time.Second, 200*time.Millisecond)

	listed, err := client.Containers().List(ctx, domain.ListOptions{
		Filters: map[string][]string{"label": {"io.testenv.session=integration"}},
	})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	timeout := time.Second
	require.NoError(t, client.Containers().Stop(ctx, id, &timeout))
	require.NoError(t, client.Containers().Remove(ctx, id, domain.RemoveOptions{Force: true, RemoveVolumes: true}))

	_, err = client.Containers().Inspect(ctx, id)
	assert.True(t, domain.IsNotFound(err))
}

func TestNetworkLifecycleIntegration(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()

	name := "testenv_integration_net"
	id, err := client.Networks().Create(ctx, name, domain.NetworkCreateOptions{
		Driver: "bridge",
		Labels: map[string]string{"io.testenv.session": "integration"},
	})
	require.NoError(t, err)

	n, err := client.Networks().Inspect(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, name, n.Name)

	require.NoError(t, client.Networks().Remove(ctx, id))

	_, err = client.Networks().Inspect(ctx, id)
	assert.True(t, domain.IsNotFound(err))
}
