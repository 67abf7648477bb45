package blobstore_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"MiniPOS/internal/blobstore"
)

func exerciseStore(t *testing.T, s blobstore.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	_, ok, err := s.Get(ctx, "products")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, "products", []byte(`[{"id":"p1"}]`)))
	got, ok, err := s.Get(ctx, "products")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `[{"id":"p1"}]`, string(got))

	require.NoError(t, s.Put(ctx, "products", []byte(`[]`)))
	got, _, err = s.Get(ctx, "products")
	require.NoError(t, err)
	require.Equal(t, "[]", string(got))

	_, ok, err = s.Get(ctx, "sales")
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, s.Put(ctx, "../escape", []byte("x")), blobstore.ErrInvalidKey)
	_, _, err = s.Get(ctx, "")
	require.ErrorIs(t, err, blobstore.ErrInvalidKey)
}

func TestMemStore(t *testing.T) {
	exerciseStore(t, blobstore.NewMemStore())
}

func TestMemStore_SimulatedFailure(t *testing.T) {
	s := blobstore.NewMemStore()
	boom := errors.New("disk full")

	s.SetFailPut(boom)
	require.ErrorIs(t, s.Put(context.Background(), "sales", []byte("[]")), boom)

	s.SetFailPut(nil)
	require.NoError(t, s.Put(context.Background(), "sales", []byte("[]")))
}

func TestFileStore(t *testing.T) {
	s, err := blobstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s, err := blobstore.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "sales", []byte("[]")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "sales.json", entries[0].Name())
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("POS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("POS_TEST_DATABASE_URL not set")
	}

	s, err := blobstore.OpenPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
}
