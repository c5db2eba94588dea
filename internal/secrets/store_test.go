package secrets

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supamon-backend/internal/database"
	apperrors "supamon-backend/internal/errors"
)

func exerciseBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	store, err := NewStore(backend, "test-key")
	require.NoError(t, err)

	_, err = store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Set(ctx, "supamon:projects", []byte(`[{"id":"p1"}]`)))
	got, err := store.Get(ctx, "supamon:projects")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"p1"}]`, string(got))

	raw, err := backend.Get(ctx, "supamon:projects")
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte("p1")), "backend must only see ciphertext")

	require.NoError(t, store.Set(ctx, "supamon:projects", []byte(`[]`)))
	got, err = store.Get(ctx, "supamon:projects")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, store.Delete(ctx, "supamon:projects"))
	require.NoError(t, store.Delete(ctx, "supamon:projects"))
	_, err = store.Get(ctx, "supamon:projects")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, store.Ping(ctx))
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestBadgerBackendInMemory(t *testing.T) {
	backend, err := NewBadgerBackend(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer backend.Close()

	exerciseBackend(t, backend)
}

func TestGormBackendSQLite(t *testing.T) {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)

	backend, err := NewGormBackend(db)
	require.NoError(t, err)
	defer backend.Close()

	exerciseBackend(t, backend)
}

func TestRedisBackendUnreachable(t *testing.T) {
	_, err := NewRedisBackend(RedisConfig{Addr: "127.0.0.1:1", OperationTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}

func TestStoreRejectsTamperedBlob(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store, err := NewStore(backend, "test-key")
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "k", []byte("value")))
	raw, _ := backend.Get(ctx, "k")
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, backend.Put(ctx, "k", raw))

	_, err = store.Get(ctx, "k")
	assert.True(t, errors.Is(err, apperrors.ErrStorageCorrupt))
}

func TestStoreBindsBlobToKey(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store, err := NewStore(backend, "test-key")
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "a", []byte("value")))
	raw, _ := backend.Get(ctx, "a")
	require.NoError(t, backend.Put(ctx, "b", raw))

	_, err = store.Get(ctx, "b")
	assert.True(t, errors.Is(err, apperrors.ErrStorageCorrupt))
}

func TestStoreWrongKeyCannotOpen(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	first, err := NewStore(backend, "key-one")
	require.NoError(t, err)
	second, err := NewStore(backend, "key-two")
	require.NoError(t, err)

	require.NoError(t, first.Set(ctx, "k", []byte("value")))
	_, err = second.Get(ctx, "k")
	assert.Error(t, err)
}

func TestNewSealerRequiresSecret(t *testing.T) {
	_, err := NewSealer("")
	assert.Error(t, err)
}
