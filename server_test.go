package binc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreCreateGetAppendFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewStore(dir)

	require.NoError(t, store.CreateFile(ctx, "project.binc"))
	require.ErrorIs(t, store.CreateFile(ctx, "project.binc"), ErrFileExists)

	files, err := store.ListFiles()
	require.NoError(t, err)
	require.Contains(t, files, "project.binc")

	to, data, err := store.GetFileData(ctx, "project.binc", 0)
	require.NoError(t, err)
	require.Equal(t, 0, to)
	require.Empty(t, data)

	rev := NewRevision(nil, "alice", "first revision", nil,
		[]Operation{AddNode(1, 0, RootNode, 0), SetName(1, "hello")})
	var revBuf fileBuffer
	require.NoError(t, rev.Write(&revBuf))

	require.NoError(t, store.AppendFile(ctx, "project.binc", 0, 1, revBuf.Bytes()))

	to, data, err = store.GetFileData(ctx, "project.binc", 0)
	require.NoError(t, err)
	require.Equal(t, 1, to)
	require.NotEmpty(t, data)

	err = store.AppendFile(ctx, "project.binc", 0, 1, revBuf.Bytes())
	require.ErrorIs(t, err, ErrRevisionMismatch, "stale fromRevision must be rejected")
}

func TestStoreGetFileDataMissingFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewStore(dir)
	_, _, err := store.GetFileData(ctx, "missing.binc", 0)
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestStoreCreateGetAppendFileWithFakeFS(t *testing.T) {
	ctx := context.Background()
	fs := newMemFileSystem()
	store := NewStoreWithFS("/store", fs)

	require.NoError(t, store.CreateFile(ctx, "project.binc"))
	require.ErrorIs(t, store.CreateFile(ctx, "project.binc"), ErrFileExists)
	require.True(t, fs.touched, "CreateFile must go through the FileSystemInterface, not the real disk")

	rev := NewRevision(nil, "alice", "first revision", nil,
		[]Operation{AddNode(1, 0, RootNode, 0), SetName(1, "hello")})
	var revBuf fileBuffer
	require.NoError(t, rev.Write(&revBuf))
	require.NoError(t, store.AppendFile(ctx, "project.binc", 0, 1, revBuf.Bytes()))

	to, data, err := store.GetFileData(ctx, "project.binc", 0)
	require.NoError(t, err)
	require.Equal(t, 1, to)
	require.NotEmpty(t, data)
}

func TestStoreCreateFileHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewStoreWithFS("/store", newMemFileSystem())
	err := store.CreateFile(ctx, "project.binc")
	require.ErrorIs(t, err, context.Canceled)
}
