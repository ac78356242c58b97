package binc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDocument(t *testing.T) *Document {
	t.Helper()
	return NewDocument(DocumentOptions{UserName: "tester"})
}

func TestBuilderAddChildAndCommit(t *testing.T) {
	doc := newTestDocument(t)

	id, err := doc.AddChild(RootNode, "folder", "Documents")
	require.NoError(t, err)
	require.NotZero(t, id)

	name, ok := doc.Nodes().Get(id).Name()
	require.True(t, ok)
	require.Equal(t, "Documents", name)

	rev, err := doc.Commit("create Documents folder", nil)
	require.NoError(t, err)
	require.NotNil(t, rev)
	require.Len(t, doc.Repository().Revisions, 1)
	require.Empty(t, doc.Pending())
}

func TestCommitWithNoPendingOpsReturnsNil(t *testing.T) {
	doc := newTestDocument(t)
	rev, err := doc.Commit("nothing to commit", nil)
	require.NoError(t, err)
	require.Nil(t, rev)
}

func TestUndoRestoresRemovedSubtree(t *testing.T) {
	doc := newTestDocument(t)

	parent, err := doc.AddChild(RootNode, "folder", "Project")
	require.NoError(t, err)
	child, err := doc.AddChild(parent, "file", "main.go")
	require.NoError(t, err)
	require.NoError(t, doc.SetNodeAttribute(child, "size", AttrValueU32(1024)))
	_, err = doc.Commit("build project tree", nil)
	require.NoError(t, err)

	require.NoError(t, doc.RemoveNodeRecursive(parent))
	_, err = doc.Commit("remove project", nil)
	require.NoError(t, err)
	require.False(t, doc.Nodes().Exists(parent))
	require.False(t, doc.Nodes().Exists(child))

	require.NoError(t, doc.Undo())
	require.True(t, doc.Nodes().Exists(parent))
	require.True(t, doc.Nodes().Exists(child))

	name, ok := doc.Nodes().Get(child).Name()
	require.True(t, ok)
	require.Equal(t, "main.go", name)

	attr, ok := doc.Nodes().Get(child).Attribute(doc.Attributes.mustIndex(t, "size"))
	require.True(t, ok)
	require.Equal(t, uint32(1024), attr.U32)
}

func TestRedoReappliesUndoneRevision(t *testing.T) {
	doc := newTestDocument(t)
	id, err := doc.AddChild(RootNode, "folder", "A")
	require.NoError(t, err)
	_, err = doc.Commit("create A", nil)
	require.NoError(t, err)

	require.NoError(t, doc.Undo())
	require.False(t, doc.Nodes().Exists(id))

	require.NoError(t, doc.Redo())
	require.True(t, doc.Nodes().Exists(id))
}

func TestSetNodeNameCoalescesBeforeCommit(t *testing.T) {
	doc := newTestDocument(t)
	id, err := doc.AddChild(RootNode, "folder", "A")
	require.NoError(t, err)
	require.NoError(t, doc.SetNodeName(id, "B"))
	require.NoError(t, doc.SetNodeName(id, "C"))

	// AddNode + DefineTypeName + one coalesced SetName (A -> C directly), since
	// "B" was never committed.
	var setNameCount int
	for _, op := range doc.Pending() {
		if op.Kind == OpSetName {
			setNameCount++
			require.Equal(t, "C", op.Name)
		}
	}
	require.Equal(t, 1, setNameCount)
}

func TestUndoAfterCoalescedSetNameRestoresPreCoalesceValue(t *testing.T) {
	doc := newTestDocument(t)
	id, err := doc.AddChild(RootNode, "folder", "original")
	require.NoError(t, err)
	_, err = doc.Commit("create node", nil)
	require.NoError(t, err)

	require.NoError(t, doc.SetNodeName(id, "first-rename"))
	require.NoError(t, doc.SetNodeName(id, "second-rename"))
	_, err = doc.Commit("rename twice", nil)
	require.NoError(t, err)

	name, _ := doc.Nodes().Get(id).Name()
	require.Equal(t, "second-rename", name)

	require.NoError(t, doc.Undo())
	name, _ = doc.Nodes().Get(id).Name()
	require.Equal(t, "original", name, "undo must restore the name from before either rename, not just the last one")
}

func TestOpenDocumentReplaysRevisions(t *testing.T) {
	doc := newTestDocument(t)
	_, err := doc.AddChild(RootNode, "folder", "root item")
	require.NoError(t, err)
	_, err = doc.Commit("seed", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doc.Repository().Write(&buf))

	reopened, err := OpenDocument(&buf, DocumentOptions{})
	require.NoError(t, err)
	require.Len(t, reopened.Nodes().FindRoots(), 1)

	// The id generator must not reissue an id already present in the replayed repository.
	next := reopened.NextNodeID()
	require.NotEqual(t, RootNode, next)
	for _, id := range reopened.Nodes().FindRoots() {
		require.NotEqual(t, id, next)
	}
}

func TestAppendAndApplySyncsRemoteRevisions(t *testing.T) {
	source := newTestDocument(t)
	_, err := source.AddChild(RootNode, "folder", "synced item")
	require.NoError(t, err)
	_, err = source.Commit("seed", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, source.Repository().WriteRange(&buf, 0, len(source.Repository().Revisions)))

	dest := newTestDocument(t)
	require.NoError(t, dest.AppendAndApply(buf.Bytes()))
	require.Len(t, dest.Repository().Revisions, 1)
	require.Len(t, dest.Nodes().FindRoots(), 1)
}

// mustIndex is a test-only helper resolving an attribute name to its dictionary index.
func (d *NameDictionary) mustIndex(t *testing.T, name string) int {
	t.Helper()
	idx, ok := d.GetIndex(name)
	require.True(t, ok, "attribute %q not defined", name)
	return idx
}
