package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/testenv/config"
)

func TestRegistryReadsFailBeforeSeal(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Set(KeyToken, "abc"))

	_, err := r.Token()
	require.ErrorIs(t, err, ErrRegistryUsage)

	var usage *RegistryUsageError
	require.ErrorAs(t, err, &usage)
	assert.Equal(t, "get", usage.Op)
	assert.Equal(t, "token", usage.Key)
	assert.Equal(t, "initializing", usage.State)
}

func TestRegistrySealedIsReadOnly(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Set(KeyToken, "abc"))
	require.NoError(t, r.Seal())
	require.NoError(t, r.Seal())
	assert.True(t, r.Sealed())

	token, err := r.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	err = r.Set(KeyToken, "other")
	require.ErrorIs(t, err, ErrRegistryUsage)

	_, err = r.Get("missing")
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestRegistryClearFailsLaterReads(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	h := &ContainerHandle{Kind: ServicePostgres, URI: "postgres://u:p@localhost:5432/db"}
	require.NoError(t, r.Set(ContainerKey(ServicePostgres), h))
	require.NoError(t, r.Seal())

	uri, err := r.ContainerURI(ServicePostgres)
	require.NoError(t, err)
	assert.Equal(t, h.URI, uri)

	r.Clear()
	assert.False(t, r.Sealed())

	_, err = r.ContainerURI(ServicePostgres)
	var usage *RegistryUsageError
	require.ErrorAs(t, err, &usage)
	assert.Equal(t, "torn down", usage.State)

	require.ErrorIs(t, r.Set(KeyToken, ""), ErrRegistryUsage)
	require.ErrorIs(t, r.Seal(), ErrRegistryUsage)
}

func TestRegistryTypedReadsRejectWrongTypes(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Set(KeyToken, 12))
	require.NoError(t, r.Set(ContainerKey(ServiceRedis), "not a handle"))
	require.NoError(t, r.Set(KeySettings, "not settings"))
	require.NoError(t, r.Seal())

	_, err := r.Token()
	require.Error(t, err)
	_, err = r.Handle(ServiceRedis)
	require.Error(t, err)
	_, err = r.Settings()
	require.Error(t, err)
}

func TestRegistrySettingsReturnsCopy(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	s := config.NewSettings()
	require.NoError(t, r.Set(KeySettings, s))
	require.NoError(t, r.Seal())

	got, err := r.Settings()
	require.NoError(t, err)
	got.Postgres.Database = "changed"

	again, err := r.Settings()
	require.NoError(t, err)
	assert.Equal(t, "app", again.Postgres.Database)
}

func TestRegistryWaitReady(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.WaitReady(ctx), context.DeadlineExceeded)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = r.Seal()
	}()
	require.NoError(t, r.WaitReady(context.Background()))
}

func TestGlobalRegistryIsSingleton(t *testing.T) {
	t.Parallel()

	assert.Same(t, Global(), Global())
}

func TestContainerKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key("container/keycloak"), ContainerKey(ServiceKeycloak))
}

func TestPublishedWritesThroughToRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	s := config.NewSettings()
	h := &ContainerHandle{Kind: ServiceRedis}
	p := &Published{settings: s, handles: map[ServiceKind]*ContainerHandle{ServiceRedis: h}, registry: r}

	got, ok := p.Handle(ServiceRedis)
	require.True(t, ok)
	assert.Same(t, h, got)
	_, ok = p.Handle(ServiceKeycloak)
	assert.False(t, ok)

	copied := p.Settings()
	copied.Redis.Tag = "changed"
	assert.Equal(t, "7-alpine", s.Redis.Tag)

	require.NoError(t, p.SetToken("jwt"))
	require.NoError(t, p.Set("extra", 1))
	require.NoError(t, r.Seal())

	token, err := r.Token()
	require.NoError(t, err)
	assert.Equal(t, "jwt", token)
	require.ErrorIs(t, p.SetToken("late"), ErrRegistryUsage)
}
