package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageReadWrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "tasks/a.yaml", []byte("task_id: a")))

	data, err := s.Read(ctx, "tasks/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "task_id: a", string(data))

	exists, err := s.Exists(ctx, "tasks/a.yaml")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStorageReadMissing(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Read(ctx, "tasks/missing.yaml")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorageList(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "tasks/a.yaml", []byte("a")))
	require.NoError(t, s.Write(ctx, "tasks/b.yaml", []byte("b")))
	require.NoError(t, s.Write(ctx, "requests/c.yaml", []byte("c")))

	paths, err := s.List(ctx, "tasks")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tasks/a.yaml", "tasks/b.yaml"}, paths)
}

func TestLocalStorageMove(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "tasks/a.yaml", []byte("a")))
	require.NoError(t, s.Move(ctx, "tasks/a.yaml", "tasks_archive/a.yaml"))

	_, err = s.Read(ctx, "tasks/a.yaml")
	assert.ErrorIs(t, err, ErrNotFound)

	data, err := s.Read(ctx, "tasks_archive/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestLocalStorageDeleteMissing(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = s.Delete(ctx, "tasks/missing.yaml")
	assert.ErrorIs(t, err, ErrNotFound)
}
