package binc

import (
	"bytes"
	"fmt"
	"os"
	"os/user"

	"go.uber.org/zap"
)

// undoEntry pairs a committed revision's forward operations with the inverse
// operations needed to undo them. Each inverse is captured just before its
// operation is applied; Commit assembles them in reverse order.
type undoEntry struct {
	forward []Operation
	inverse []Operation
}

// DocumentOptions configures a new or loaded Document, following the
// functional-options-free, plain-struct-literal convention used by the
// library this package's construction pattern is adapted from.
type DocumentOptions struct {
	// UserName overrides the OS user lookup used to stamp new revisions.
	// If empty, the BINC_USER environment variable is consulted, then the
	// current OS user, then "unknown".
	UserName string

	// Logger receives structured diagnostics. If nil, a no-op logger is used.
	Logger *zap.SugaredLogger

	// AllowHashMismatch tolerates revisions whose stored content hash does
	// not match what is recomputed on load.
	AllowHashMismatch bool
}

// Document is the live composite of a Repository plus the in-memory node
// store and dictionaries that its revisions replay into. It is not safe for
// concurrent mutation; callers serialize access externally.
type Document struct {
	repo *Repository
	nodes *NodeStore

	Types      *NameDictionary
	Attributes *NameDictionary
	Tags       *NameDictionary

	pending        []Operation
	pendingInverse [][]Operation
	undo           []undoEntry
	redo           []undoEntry

	nextNodeID NodeID
	userName   string
	log        *zap.SugaredLogger
	allowHashMismatch bool
}

func resolveUserName(opts DocumentOptions) string {
	if opts.UserName != "" {
		return opts.UserName
	}
	if env := os.Getenv("BINC_USER"); env != "" {
		return env
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// NewDocument returns an empty Document: an empty Repository and a node
// store containing only the root.
func NewDocument(opts DocumentOptions) *Document {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Document{
		repo:              NewRepository(),
		nodes:             NewNodeStore(),
		Types:             NewNameDictionary(),
		Attributes:        NewNameDictionary(),
		Tags:              NewNameDictionary(),
		nextNodeID:        RootNode + 1,
		userName:          resolveUserName(opts),
		log:               log,
		allowHashMismatch: opts.AllowHashMismatch,
	}
}

// OpenDocument loads a Document by replaying every revision in a Repository
// read from r. The full journal is replayed on open; partial loading is not
// supported.
func OpenDocument(r reader, opts DocumentOptions) (*Document, error) {
	doc := NewDocument(opts)
	repo, err := ReadRepository(r, ReadRevisionOptions{AllowHashMismatch: opts.AllowHashMismatch})
	if err != nil {
		return nil, err
	}
	doc.repo = repo
	for _, rev := range repo.Revisions {
		for _, op := range rev.Operations {
			if err := op.apply(doc); err != nil {
				return nil, fmt.Errorf("replaying revision %s: %w", rev.ID, err)
			}
			doc.observeID(op)
		}
	}
	doc.log.Infow("document opened", "revisions", len(repo.Revisions))
	return doc, nil
}

// observeID advances the node id generator past any id an operation introduced,
// so that loading a repository never reissues an id already present in it.
func (doc *Document) observeID(op Operation) {
	if op.Kind == OpAddNode && op.Node >= doc.nextNodeID {
		doc.nextNodeID = op.Node + 1
	}
}

// NextNodeID allocates and returns a fresh NodeID.
func (doc *Document) NextNodeID() NodeID {
	id := doc.nextNodeID
	doc.nextNodeID++
	return id
}

// Nodes exposes the underlying node store for read-only traversal.
func (doc *Document) Nodes() *NodeStore { return doc.nodes }

// Repository exposes the underlying repository for read-only inspection.
func (doc *Document) Repository() *Repository { return doc.repo }

// Pending returns the operations applied but not yet committed.
func (doc *Document) Pending() []Operation { return doc.pending }

// captureInverse computes, from the node store's state immediately *before*
// op is applied, the operations that would undo it. It must run before
// op.apply so that pre-state (a node's current name, its subtree about to be
// removed, ...) is still observable.
func (doc *Document) captureInverse(op Operation) []Operation {
	switch op.Kind {
	case OpAddNode:
		return []Operation{RemoveNode(op.Node)}
	case OpRemoveNode:
		return doc.subtreeSnapshot(op.Node)
	case OpMoveNode:
		n := doc.nodes.Get(op.Node)
		oldParent, oldIndex := NoNode, 0
		if n != nil {
			oldParent = n.Parent()
			if p := doc.nodes.Get(oldParent); p != nil {
				for i, c := range p.Children() {
					if c == op.Node {
						oldIndex = i
						break
					}
				}
			}
		}
		return []Operation{MoveNode(op.Node, oldParent, oldIndex)}
	case OpSetName:
		n := doc.nodes.Get(op.Node)
		prev := ""
		if n != nil {
			prev, _ = n.Name()
		}
		return []Operation{SetName(op.Node, prev)}
	case OpSetType:
		n := doc.nodes.Get(op.Node)
		prev := -1
		if n != nil {
			if t, ok := n.TypeID(); ok {
				prev = t
			}
		}
		return []Operation{SetType(op.Node, prev)}
	case OpSetAttribute:
		n := doc.nodes.Get(op.Node)
		if n != nil {
			if prev, ok := n.Attribute(op.Attribute); ok {
				return []Operation{SetAttribute(op.Node, op.Attribute, prev)}
			}
		}
		// No previous value to restore; leaving the attribute set is the
		// closest available behavior since AttributeValue has no "unset" state.
		return nil
	case OpAddTag:
		return []Operation{RemoveTag(op.Node, op.Tag)}
	case OpRemoveTag:
		return []Operation{AddTag(op.Node, op.Tag)}
	default:
		// Snapshot/Checksum/DefineXName/AddComment/UnknownOperation carry no
		// node-store state worth reversing.
		return nil
	}
}

// applyAndRecord captures op's inverse, applies it to the node store, and
// appends it to the pending list, coalescing against the immediately
// preceding pending operation. Coalescing keeps the earlier-captured inverse
// so that undoing a run of coalesced edits restores the state before all of them.
func (doc *Document) applyAndRecord(op Operation) error {
	inv := doc.captureInverse(op)
	if err := op.apply(doc); err != nil {
		return err
	}
	if len(doc.pending) > 0 {
		if combined, ok := op.combine(doc.pending[len(doc.pending)-1]); ok {
			doc.pending[len(doc.pending)-1] = combined
			return nil
		}
	}
	doc.pending = append(doc.pending, op)
	doc.pendingInverse = append(doc.pendingInverse, inv)
	return nil
}

// Commit packages the pending operations into a new Revision, appends it to
// the repository, clears pending and the redo stack, and pushes an undo
// entry capturing how to reverse it.
func (doc *Document) Commit(message string, tags []string) (*Revision, error) {
	if len(doc.pending) == 0 {
		return nil, nil
	}

	inverse := make([]Operation, 0, len(doc.pendingInverse))
	for i := len(doc.pendingInverse) - 1; i >= 0; i-- {
		inverse = append(inverse, doc.pendingInverse[i]...)
	}

	var parent *Revision
	if n := len(doc.repo.Revisions); n > 0 {
		parent = doc.repo.Revisions[n-1]
	}
	rev := NewRevision(parent, doc.userName, message, tags, doc.pending)
	doc.repo.Append(rev)

	doc.undo = append(doc.undo, undoEntry{forward: doc.pending, inverse: inverse})
	doc.pending = nil
	doc.pendingInverse = nil
	doc.redo = nil

	doc.log.Infow("committed revision", "id", rev.ID, "ops", len(rev.Operations))
	return rev, nil
}

// subtreeSnapshot captures the operations needed to recreate a node and its
// descendants, including each node's original position within its parent.
// It must be called before the corresponding RemoveNode is applied, while
// the subtree still exists.
func (doc *Document) subtreeSnapshot(id NodeID) []Operation {
	n := doc.nodes.Get(id)
	if n == nil {
		return nil
	}
	var ops []Operation
	typeID := -1
	if t, ok := n.TypeID(); ok {
		typeID = t
	}
	index := 0
	if p := doc.nodes.Get(n.Parent()); p != nil {
		for i, c := range p.Children() {
			if c == id {
				index = i
				break
			}
		}
	}
	ops = append(ops, AddNode(id, typeID, n.Parent(), index))
	if name, ok := n.Name(); ok {
		ops = append(ops, SetName(id, name))
	}
	for _, a := range n.Attributes() {
		ops = append(ops, SetAttribute(id, a.key, a.value))
	}
	for tag := range n.Tags() {
		ops = append(ops, AddTag(id, tag))
	}
	for _, c := range n.Comments() {
		ops = append(ops, AddComment(id, c.Text, c.Author, c.ResponseTo))
	}
	for _, c := range n.Children() {
		ops = append(ops, doc.subtreeSnapshot(c)...)
	}
	return ops
}

// Undo reverses the most recently committed revision, applying its inverse
// and pushing the original onto the redo stack.
func (doc *Document) Undo() error {
	if len(doc.undo) == 0 {
		return nil
	}
	entry := doc.undo[len(doc.undo)-1]
	doc.undo = doc.undo[:len(doc.undo)-1]
	for _, op := range entry.inverse {
		if err := op.apply(doc); err != nil {
			return err
		}
	}
	doc.redo = append(doc.redo, entry)
	return nil
}

// Redo reapplies the most recently undone revision's forward operations.
func (doc *Document) Redo() error {
	if len(doc.redo) == 0 {
		return nil
	}
	entry := doc.redo[len(doc.redo)-1]
	doc.redo = doc.redo[:len(doc.redo)-1]
	for _, op := range entry.forward {
		if err := op.apply(doc); err != nil {
			return err
		}
	}
	doc.undo = append(doc.undo, entry)
	return nil
}

// AppendAndApply reads zero or more revisions from data and appends+applies
// each to the document's repository and node store, used by sync to bring a
// local document up to date with remote bytes.
func (doc *Document) AppendAndApply(data []byte) error {
	revs, err := ReadRevisions(bytes.NewReader(data), ReadRevisionOptions{AllowHashMismatch: doc.allowHashMismatch})
	if err != nil {
		return err
	}
	for _, rev := range revs {
		for _, op := range rev.Operations {
			if err := op.apply(doc); err != nil {
				return err
			}
			doc.observeID(op)
		}
		doc.repo.Append(rev)
	}
	return nil
}

// --- Builder API ---
//
// Each builder call emits a DefineXName operation first if the referenced
// name is new to its dictionary, then the structural/attribute operation
// itself, mirroring the reference engine's NodeBuilder.

// AddChild creates a new node under parent with the given type and name and
// returns its id.
func (doc *Document) AddChild(parent NodeID, typeName, name string) (NodeID, error) {
	typeID, existed := doc.Types.GetOrCreateIndex(typeName)
	if !existed {
		if err := doc.applyAndRecord(DefineTypeName(typeID, typeName)); err != nil {
			return 0, err
		}
	}
	id := doc.NextNodeID()
	parentNode := doc.nodes.Get(parent)
	index := 0
	if parentNode != nil {
		index = len(parentNode.Children())
	}
	if err := doc.applyAndRecord(AddNode(id, typeID, parent, index)); err != nil {
		return 0, err
	}
	if name != "" {
		if err := doc.SetNodeName(id, name); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// SetNodeName sets a node's display name.
func (doc *Document) SetNodeName(node NodeID, name string) error {
	return doc.applyAndRecord(SetName(node, name))
}

// SetNodeType sets a node's type by name, defining the type name if new.
func (doc *Document) SetNodeType(node NodeID, typeName string) error {
	typeID, existed := doc.Types.GetOrCreateIndex(typeName)
	if !existed {
		if err := doc.applyAndRecord(DefineTypeName(typeID, typeName)); err != nil {
			return err
		}
	}
	return doc.applyAndRecord(SetType(node, typeID))
}

// SetNodeAttribute sets an attribute of any kind on a node by name, defining the
// attribute name if new.
func (doc *Document) SetNodeAttribute(node NodeID, attrName string, value AttributeValue) error {
	attrID, existed := doc.Attributes.GetOrCreateIndex(attrName)
	if !existed {
		if err := doc.applyAndRecord(DefineAttributeName(attrID, attrName)); err != nil {
			return err
		}
	}
	return doc.applyAndRecord(SetAttribute(node, attrID, value))
}

// SetNodeTag applies a tag to a node by name, defining the tag name if new.
func (doc *Document) SetNodeTag(node NodeID, tagName string) error {
	tagID, existed := doc.Tags.GetOrCreateIndex(tagName)
	if !existed {
		if err := doc.applyAndRecord(DefineTagName(tagID, tagName)); err != nil {
			return err
		}
	}
	return doc.applyAndRecord(AddTag(node, tagID))
}

// AddNodeComment appends a comment to a node.
func (doc *Document) AddNodeComment(node NodeID, text, author string, responseTo int) error {
	return doc.applyAndRecord(AddComment(node, text, author, responseTo))
}

// RemoveNodeRecursive deletes a node and its subtree.
func (doc *Document) RemoveNodeRecursive(node NodeID) error {
	return doc.applyAndRecord(RemoveNode(node))
}

// MoveNodeTo relocates a node to a new parent and position.
func (doc *Document) MoveNodeTo(node, newParent NodeID, indexInNewParent int) error {
	return doc.applyAndRecord(MoveNode(node, newParent, indexInNewParent))
}
