package binc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRevisionRoundTripVerifiesHash(t *testing.T) {
	rev := NewRevision(nil, "alice", "initial commit", []string{"v1"},
		[]Operation{AddNode(1, 0, RootNode, 0), SetName(1, "root item")})

	var buf bytes.Buffer
	require.NoError(t, rev.Write(&buf))

	got, err := ReadRevision(&buf, ReadRevisionOptions{})
	require.NoError(t, err)
	require.Equal(t, rev.ID, got.ID)
	require.Equal(t, rev.ContentHash, got.ContentHash)
	require.Equal(t, rev.Operations, got.Operations)
}

func TestRevisionHashMismatchRejectedByDefault(t *testing.T) {
	rev := NewRevision(nil, "alice", "commit", nil, []Operation{AddNode(1, 0, RootNode, 0)})
	var buf bytes.Buffer
	require.NoError(t, rev.Write(&buf))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := ReadRevision(bytes.NewReader(corrupted), ReadRevisionOptions{})
	require.ErrorIs(t, err, ErrHashMismatch)

	_, err = ReadRevision(bytes.NewReader(corrupted), ReadRevisionOptions{AllowHashMismatch: true})
	require.NoError(t, err)
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := NewRepository()
	rev1 := NewRevision(nil, "alice", "first", nil, []Operation{AddNode(1, 0, RootNode, 0)})
	repo.Append(rev1)
	rev2 := NewRevision(rev1, "bob", "second", nil, []Operation{SetName(1, "item")})
	repo.Append(rev2)

	var buf bytes.Buffer
	require.NoError(t, repo.Write(&buf))

	got, err := ReadRepository(&buf, ReadRevisionOptions{})
	require.NoError(t, err)
	require.Len(t, got.Revisions, 2)
	require.Equal(t, rev1.ID, got.Revisions[0].ID)
	require.Equal(t, rev2.ID, got.Revisions[1].ID)
}

func TestRepositoryWriteRangeAndReadRevisions(t *testing.T) {
	repo := NewRepository()
	rev1 := NewRevision(nil, "alice", "first", nil, []Operation{AddNode(1, 0, RootNode, 0)})
	repo.Append(rev1)
	rev2 := NewRevision(rev1, "bob", "second", nil, []Operation{SetName(1, "item")})
	repo.Append(rev2)
	rev3 := NewRevision(rev2, "carol", "third", nil, []Operation{SetType(1, 2)})
	repo.Append(rev3)

	var buf bytes.Buffer
	require.NoError(t, repo.WriteRange(&buf, 1, 3))

	revs, err := ReadRevisions(&buf, ReadRevisionOptions{})
	require.NoError(t, err)
	require.Len(t, revs, 2)
	require.Equal(t, rev2.ID, revs[0].ID)
	require.Equal(t, rev3.ID, revs[1].ID)
}

func TestRepositoryWriteRangeOutOfBounds(t *testing.T) {
	repo := NewRepository()
	repo.Append(NewRevision(nil, "alice", "first", nil, nil))

	var buf bytes.Buffer
	err := repo.WriteRange(&buf, 0, 5)
	require.ErrorIs(t, err, ErrRevisionRange)
}

func TestReadRepositoryBadMagic(t *testing.T) {
	_, err := ReadRepository(bytes.NewReader([]byte("XXXX")), ReadRevisionOptions{})
	require.ErrorIs(t, err, ErrBadMagic)
}
