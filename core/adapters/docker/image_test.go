package docker_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dockeradapter "github.com/netresearch/testenv/core/adapters/docker"
	"github.com/netresearch/testenv/core/domain"
)

// fakePullDaemon answers image pulls with the given progress stream.
func fakePullDaemon(t *testing.T, stream string) *dockeradapter.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/images/create") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, stream)
	}))
	t.Cleanup(srv.Close)

	config := dockeradapter.DefaultConfig()
	config.Host = "tcp://" + strings.TrimPrefix(srv.URL, "http://")
	config.Version = "1.45"

	client, err := dockeradapter.NewClientWithConfig(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPullAndWaitStreamErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stream   string
		wantErr  bool
		notFound bool
	}{
		{
			name:   "completed",
			stream: `{"status":"Pulling from library/redis"}` + "\n" + `{"status":"Status: Downloaded newer image for redis:7"}` + "\n",
		},
		{
			name:     "unknown tag",
			stream:   `{"status":"Pulling from library/redis"}` + "\n" + `{"errorDetail":{"message":"manifest for redis:nope not found"},"error":"manifest for redis:nope not found"}` + "\n",
			wantErr:  true,
			notFound: true,
		},
		{
			name:    "denied",
			stream:  `{"errorDetail":{"message":"pull access denied"},"error":"pull access denied"}` + "\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := fakePullDaemon(t, tt.stream)
			err := client.Images().PullAndWait(context.Background(), domain.PullOptions{Repository: "redis", Tag: "7"})
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.notFound, domain.IsNotFound(err))
		})
	}
}
