package binc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeStoreAddAndChildren(t *testing.T) {
	s := NewNodeStore()
	require.NoError(t, s.Add(1, 0, RootNode, 0))
	require.NoError(t, s.Add(2, 0, RootNode, 0))
	require.NoError(t, s.Add(3, 0, 1, 0))

	root := s.Get(RootNode)
	require.Equal(t, []NodeID{2, 1}, root.Children(), "node 2 inserted before node 1 at index 0")

	child := s.Get(3)
	require.Equal(t, NodeID(1), child.Parent())
}

func TestNodeStoreAddMissingParentFails(t *testing.T) {
	s := NewNodeStore()
	err := s.Add(1, 0, 99, 0)
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNodeStoreDeleteRecursive(t *testing.T) {
	s := NewNodeStore()
	require.NoError(t, s.Add(1, 0, RootNode, 0))
	require.NoError(t, s.Add(2, 0, 1, 0))
	require.NoError(t, s.Add(3, 0, 1, 1))

	require.NoError(t, s.DeleteRecursive(1))
	require.False(t, s.Exists(1))
	require.False(t, s.Exists(2))
	require.False(t, s.Exists(3))
	require.Empty(t, s.Get(RootNode).Children())
}

func TestMoveNodeDetectsCycle(t *testing.T) {
	s := NewNodeStore()
	require.NoError(t, s.Add(1, 0, RootNode, 0))
	require.NoError(t, s.Add(2, 0, 1, 0))

	err := s.MoveNode(1, 2, 0)
	require.ErrorIs(t, err, ErrCycle)
}

func TestMoveNodeSameParentStability(t *testing.T) {
	s := NewNodeStore()
	require.NoError(t, s.Add(1, 0, RootNode, 0))
	require.NoError(t, s.Add(2, 0, RootNode, 1))
	require.NoError(t, s.Add(3, 0, RootNode, 2))
	// order is now [1, 2, 3]

	require.NoError(t, s.MoveNode(1, RootNode, 2))
	require.Equal(t, []NodeID{2, 1, 3}, s.Get(RootNode).Children())
}

func TestMoveNodeToDifferentParent(t *testing.T) {
	s := NewNodeStore()
	require.NoError(t, s.Add(1, 0, RootNode, 0))
	require.NoError(t, s.Add(2, 0, RootNode, 1))

	require.NoError(t, s.MoveNode(2, 1, 0))
	require.Equal(t, []NodeID{1}, s.Get(RootNode).Children())
	require.Equal(t, []NodeID{2}, s.Get(1).Children())
	require.Equal(t, NodeID(1), s.Get(2).Parent())
}

func TestNameDictionaryReservesIndexZero(t *testing.T) {
	d := NewNameDictionary()
	idx, existed := d.GetOrCreateIndex("folder")
	require.False(t, existed)
	require.Equal(t, 1, idx)

	idx2, existed2 := d.GetOrCreateIndex("folder")
	require.True(t, existed2)
	require.Equal(t, idx, idx2)
}

func TestAttributeU24NoSignExtension(t *testing.T) {
	v := AttrValueU24([3]byte{0xFF, 0xFF, 0xFF})
	require.Equal(t, [3]byte{0xFF, 0xFF, 0xFF}, v.U24)
}
