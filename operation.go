package binc

import (
	"bytes"
	"fmt"
)

// Operation ids, written on the wire as flipped varints (§4.2).
const (
	opAddNode            = 0x01
	opRemoveNode         = 0x02
	opMoveNode           = 0x03
	opSetType            = 0x04
	opDefineTypeName     = 0x05
	opSetName            = 0x06
	opDefineAttributeName = 0x07
	opSetBool            = 0x08
	opSetString          = 0x09
	opSnapshot           = 0x10
	opChecksum           = 0x11
	opDefineTagName      = 0x14
	opAddTag             = 0x18
	opRemoveTag          = 0x19
	opAddComment         = 0x31
	opSetUUID            = 0x42
	opSetUint8           = 0x43
	opSetUint16          = 0x44
	opSetUint24          = 0x45
	opSetUint32          = 0x46
	opSetUint64          = 0x47
	opSetInt8            = 0x48
	opSetInt16           = 0x49
	opSetInt24           = 0x4A
	opSetInt32           = 0x4B
	opSetInt64           = 0x4C
	opSetFloat32         = 0x4E
	opSetFloat64         = 0x4F
)

// checksumHashID is the 4-byte tag "h@sH" used to frame a Checksum operation,
// present so a corrupted file can later be scanned for known checksum markers.
const checksumHashID uint32 = 0x68407348 // "h@sH"

// OpKind discriminates the Operation tagged union.
type OpKind int

const (
	OpAddNode OpKind = iota
	OpRemoveNode
	OpMoveNode
	OpSetType
	OpDefineTypeName
	OpSetName
	OpDefineAttributeName
	OpSetAttribute
	OpDefineTagName
	OpAddTag
	OpRemoveTag
	OpSnapshot
	OpChecksum
	OpAddComment
	OpUnknown
)

// Operation is a single journaled unit of change. Exactly the fields
// meaningful for Kind are populated; it is a closed tagged variant rather
// than an interface so apply/write/combine dispatch exhaustively on Kind.
type Operation struct {
	Kind OpKind

	Node            NodeID
	TypeID          int
	Parent          NodeID
	IndexInParent   int
	DictID          int
	Name            string
	Attribute       int
	Value           AttributeValue
	Tag             int
	Author          string
	Message         string
	ChecksumData    []byte
	Comment         string
	ResponseTo      int
	UnknownID       uint64
	UnknownData     []byte
}

func AddNode(id NodeID, typeID int, parent NodeID, indexInParent int) Operation {
	return Operation{Kind: OpAddNode, Node: id, TypeID: typeID, Parent: parent, IndexInParent: indexInParent}
}

func RemoveNode(id NodeID) Operation {
	return Operation{Kind: OpRemoveNode, Node: id}
}

func MoveNode(id, newParent NodeID, indexInNewParent int) Operation {
	return Operation{Kind: OpMoveNode, Node: id, Parent: newParent, IndexInParent: indexInNewParent}
}

func SetType(node NodeID, typeID int) Operation {
	return Operation{Kind: OpSetType, Node: node, TypeID: typeID}
}

func DefineTypeName(id int, name string) Operation {
	return Operation{Kind: OpDefineTypeName, DictID: id, Name: name}
}

func SetName(node NodeID, name string) Operation {
	return Operation{Kind: OpSetName, Node: node, Name: name}
}

func DefineAttributeName(id int, name string) Operation {
	return Operation{Kind: OpDefineAttributeName, DictID: id, Name: name}
}

func SetAttribute(node NodeID, attribute int, value AttributeValue) Operation {
	return Operation{Kind: OpSetAttribute, Node: node, Attribute: attribute, Value: value}
}

func DefineTagName(id int, name string) Operation {
	return Operation{Kind: OpDefineTagName, DictID: id, Name: name}
}

func AddTag(node NodeID, tag int) Operation {
	return Operation{Kind: OpAddTag, Node: node, Tag: tag}
}

func RemoveTag(node NodeID, tag int) Operation {
	return Operation{Kind: OpRemoveTag, Node: node, Tag: tag}
}

func Snapshot(author, message string) Operation {
	return Operation{Kind: OpSnapshot, Author: author, Message: message}
}

func Checksum(data []byte) Operation {
	return Operation{Kind: OpChecksum, ChecksumData: data}
}

func AddComment(node NodeID, comment, author string, responseTo int) Operation {
	return Operation{Kind: OpAddComment, Node: node, Comment: comment, Author: author, ResponseTo: responseTo}
}

// apply mutates the node and dictionary state according to the operation.
// SetType/SetName/AddTag/RemoveTag/SetAttribute/AddComment on a missing node
// are fatal, per the error-handling design.
func (op Operation) apply(doc *Document) error {
	switch op.Kind {
	case OpAddNode:
		return doc.nodes.Add(op.Node, op.TypeID, op.Parent, op.IndexInParent)
	case OpRemoveNode:
		return doc.nodes.DeleteRecursive(op.Node)
	case OpMoveNode:
		return doc.nodes.MoveNode(op.Node, op.Parent, op.IndexInParent)
	case OpSetType:
		n := doc.nodes.Get(op.Node)
		if n == nil {
			return fmt.Errorf("node %d: %w", op.Node, ErrNodeNotFound)
		}
		n.setType(op.TypeID)
	case OpSetName:
		n := doc.nodes.Get(op.Node)
		if n == nil {
			return fmt.Errorf("node %d: %w", op.Node, ErrNodeNotFound)
		}
		n.setName(op.Name)
	case OpDefineTypeName:
		doc.Types.Insert(op.DictID, op.Name)
	case OpDefineAttributeName:
		doc.Attributes.Insert(op.DictID, op.Name)
	case OpDefineTagName:
		doc.Tags.Insert(op.DictID, op.Name)
	case OpSetAttribute:
		n := doc.nodes.Get(op.Node)
		if n == nil {
			return fmt.Errorf("node %d: %w", op.Node, ErrNodeNotFound)
		}
		n.setAttribute(op.Attribute, op.Value)
	case OpAddTag:
		n := doc.nodes.Get(op.Node)
		if n == nil {
			return fmt.Errorf("node %d: %w", op.Node, ErrNodeNotFound)
		}
		n.setTag(op.Tag)
	case OpRemoveTag:
		n := doc.nodes.Get(op.Node)
		if n == nil {
			return fmt.Errorf("node %d: %w", op.Node, ErrNodeNotFound)
		}
		n.clearTag(op.Tag)
	case OpAddComment:
		n := doc.nodes.Get(op.Node)
		if n == nil {
			return fmt.Errorf("node %d: %w", op.Node, ErrNodeNotFound)
		}
		n.addComment(op.Comment, op.Author, op.ResponseTo)
	case OpSnapshot, OpChecksum, OpUnknown:
		// no-op
	}
	return nil
}

func (op Operation) id() uint64 {
	switch op.Kind {
	case OpAddNode:
		return opAddNode
	case OpRemoveNode:
		return opRemoveNode
	case OpMoveNode:
		return opMoveNode
	case OpSetType:
		return opSetType
	case OpDefineTypeName:
		return opDefineTypeName
	case OpSetName:
		return opSetName
	case OpDefineAttributeName:
		return opDefineAttributeName
	case OpDefineTagName:
		return opDefineTagName
	case OpAddTag:
		return opAddTag
	case OpRemoveTag:
		return opRemoveTag
	case OpSnapshot:
		return opSnapshot
	case OpChecksum:
		return opChecksum
	case OpAddComment:
		return opAddComment
	case OpSetAttribute:
		return attributeOperationID(op.Value.Kind)
	case OpUnknown:
		return op.UnknownID
	default:
		return 0
	}
}

func (op Operation) writeContent(w writer) error {
	switch op.Kind {
	case OpAddNode:
		if err := writeNodeID(w, op.Node); err != nil {
			return err
		}
		if err := writeLength(w, op.TypeID); err != nil {
			return err
		}
		if err := writeNodeID(w, op.Parent); err != nil {
			return err
		}
		return writeLength(w, op.IndexInParent)
	case OpMoveNode:
		if err := writeNodeID(w, op.Node); err != nil {
			return err
		}
		if err := writeNodeID(w, op.Parent); err != nil {
			return err
		}
		return writeLength(w, op.IndexInParent)
	case OpRemoveNode:
		return writeNodeID(w, op.Node)
	case OpSnapshot:
		if err := writeString(w, op.Author); err != nil {
			return err
		}
		return writeString(w, op.Message)
	case OpChecksum:
		if err := writeU32(w, checksumHashID); err != nil {
			return err
		}
		return writeBytes(w, op.ChecksumData)
	case OpSetName:
		if err := writeNodeID(w, op.Node); err != nil {
			return err
		}
		return writeString(w, op.Name)
	case OpSetType:
		if err := writeNodeID(w, op.Node); err != nil {
			return err
		}
		return writeLength(w, op.TypeID)
	case OpDefineTypeName, OpDefineAttributeName, OpDefineTagName:
		if err := writeLength(w, op.DictID); err != nil {
			return err
		}
		return writeString(w, op.Name)
	case OpAddTag, OpRemoveTag:
		if err := writeNodeID(w, op.Node); err != nil {
			return err
		}
		return writeLength(w, op.Tag)
	case OpSetAttribute:
		if err := writeNodeID(w, op.Node); err != nil {
			return err
		}
		if err := writeLength(w, op.Attribute); err != nil {
			return err
		}
		return op.Value.writeContent(w)
	case OpAddComment:
		if err := writeNodeID(w, op.Node); err != nil {
			return err
		}
		if err := writeString(w, op.Comment); err != nil {
			return err
		}
		if err := writeString(w, op.Author); err != nil {
			return err
		}
		return writeLength(w, op.ResponseTo)
	case OpUnknown:
		return writeAll(w, op.UnknownData)
	default:
		return fmt.Errorf("unwritable operation kind %d", op.Kind)
	}
}

// writeOperation serializes op in full framing: flipped-varint id, varint
// body size, then the body. The body is rendered into a scratch buffer first
// so its exact length is known before the size field is written.
func writeOperation(w writer, op Operation) error {
	var body bytes.Buffer
	if err := op.writeContent(&body); err != nil {
		return err
	}
	if err := writeVarintFlipped(w, op.id()); err != nil {
		return err
	}
	if err := writeLength(w, body.Len()); err != nil {
		return err
	}
	return writeAll(w, body.Bytes())
}

// readOperation decodes one framed operation. Unrecognized ids are preserved
// verbatim as an OpUnknown operation carrying the raw body bytes.
func readOperation(r reader) (Operation, error) {
	id, err := readVarintFlipped(r)
	if err != nil {
		return Operation{}, err
	}
	size, err := readLength(r)
	if err != nil {
		return Operation{}, err
	}

	switch id {
	case opAddNode:
		nid, err := readNodeID(r)
		if err != nil {
			return Operation{}, err
		}
		typeID, err := readLength(r)
		if err != nil {
			return Operation{}, err
		}
		parent, err := readNodeID(r)
		if err != nil {
			return Operation{}, err
		}
		idx, err := readLength(r)
		if err != nil {
			return Operation{}, err
		}
		return AddNode(nid, typeID, parent, idx), nil
	case opRemoveNode:
		nid, err := readNodeID(r)
		if err != nil {
			return Operation{}, err
		}
		return RemoveNode(nid), nil
	case opMoveNode:
		nid, err := readNodeID(r)
		if err != nil {
			return Operation{}, err
		}
		newParent, err := readNodeID(r)
		if err != nil {
			return Operation{}, err
		}
		idx, err := readLength(r)
		if err != nil {
			return Operation{}, err
		}
		return MoveNode(nid, newParent, idx), nil
	case opSnapshot:
		author, err := readString(r)
		if err != nil {
			return Operation{}, err
		}
		msg, err := readString(r)
		if err != nil {
			return Operation{}, err
		}
		return Snapshot(author, msg), nil
	case opChecksum:
		hash, err := readU32(r)
		if err != nil {
			return Operation{}, err
		}
		if hash != checksumHashID {
			return Operation{}, fmt.Errorf("checksum tag %#x: %w", hash, ErrBadMagic)
		}
		data, err := readBytes(r)
		if err != nil {
			return Operation{}, err
		}
		return Checksum(data), nil
	case opSetString:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		s, err := readString(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueString(s)), nil
	case opSetBool:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		b, err := readBool(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueBool(b)), nil
	case opSetUUID:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		u, err := readUUID(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueUUID(u)), nil
	case opSetUint8:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := readU8(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueU8(v)), nil
	case opSetUint16:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := readU16(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueU16(v)), nil
	case opSetUint24:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := read24(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueU24(v)), nil
	case opSetUint32:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := readU32(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueU32(v)), nil
	case opSetUint64:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := readU64(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueU64(v)), nil
	case opSetInt8:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := readI8(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueI8(v)), nil
	case opSetInt16:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := readI16(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueI16(v)), nil
	case opSetInt24:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := read24(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueI24(v)), nil
	case opSetInt32:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := readI32(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueI32(v)), nil
	case opSetInt64:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := readI64(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueI64(v)), nil
	case opSetFloat32:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := readF32(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueF32(v)), nil
	case opSetFloat64:
		node, attr, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		v, err := readF64(r)
		if err != nil {
			return Operation{}, err
		}
		return SetAttribute(node, attr, AttrValueF64(v)), nil
	case opSetName:
		node, err := readNodeID(r)
		if err != nil {
			return Operation{}, err
		}
		name, err := readString(r)
		if err != nil {
			return Operation{}, err
		}
		return SetName(node, name), nil
	case opSetType:
		node, err := readNodeID(r)
		if err != nil {
			return Operation{}, err
		}
		typeID, err := readLength(r)
		if err != nil {
			return Operation{}, err
		}
		return SetType(node, typeID), nil
	case opDefineTypeName:
		id, name, err := readDictNamePair(r)
		if err != nil {
			return Operation{}, err
		}
		return DefineTypeName(id, name), nil
	case opDefineAttributeName:
		id, name, err := readDictNamePair(r)
		if err != nil {
			return Operation{}, err
		}
		return DefineAttributeName(id, name), nil
	case opDefineTagName:
		id, name, err := readDictNamePair(r)
		if err != nil {
			return Operation{}, err
		}
		return DefineTagName(id, name), nil
	case opAddTag:
		node, tag, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		return AddTag(node, tag), nil
	case opRemoveTag:
		node, tag, err := readNodeAttr(r)
		if err != nil {
			return Operation{}, err
		}
		return RemoveTag(node, tag), nil
	case opAddComment:
		node, err := readNodeID(r)
		if err != nil {
			return Operation{}, err
		}
		comment, err := readString(r)
		if err != nil {
			return Operation{}, err
		}
		author, err := readString(r)
		if err != nil {
			return Operation{}, err
		}
		responseTo, err := readLength(r)
		if err != nil {
			return Operation{}, err
		}
		return AddComment(node, comment, author, responseTo), nil
	default:
		data := make([]byte, size)
		if size > 0 {
			if err := readFull(r, data); err != nil {
				return Operation{}, err
			}
		}
		return Operation{Kind: OpUnknown, UnknownID: id, UnknownData: data}, nil
	}
}

func readNodeAttr(r reader) (NodeID, int, error) {
	node, err := readNodeID(r)
	if err != nil {
		return 0, 0, err
	}
	attr, err := readLength(r)
	if err != nil {
		return 0, 0, err
	}
	return node, attr, nil
}

func readDictNamePair(r reader) (int, string, error) {
	id, err := readLength(r)
	if err != nil {
		return 0, "", err
	}
	name, err := readString(r)
	if err != nil {
		return 0, "", err
	}
	return id, name, nil
}

// combine implements the coalescing rule: if op and previous are both
// SetAttribute on the same node+attribute, or both SetName on the same node,
// op replaces previous in place and combine returns true.
func (op Operation) combine(previous Operation) (Operation, bool) {
	if op.Kind == OpSetAttribute && previous.Kind == OpSetAttribute &&
		op.Node == previous.Node && op.Attribute == previous.Attribute {
		return op, true
	}
	if op.Kind == OpSetName && previous.Kind == OpSetName && op.Node == previous.Node {
		return op, true
	}
	return Operation{}, false
}

// String renders the operation for diagnostics, mirroring the reference engine's Display impl.
func (op Operation) String() string {
	switch op.Kind {
	case OpAddNode:
		return fmt.Sprintf("AddNode(%d[%d] in %d[%d])", op.Node, op.TypeID, op.Parent, op.IndexInParent)
	case OpMoveNode:
		return fmt.Sprintf("MoveNode(%d to %d[%d])", op.Node, op.Parent, op.IndexInParent)
	case OpRemoveNode:
		return fmt.Sprintf("RemoveNode(%d)", op.Node)
	case OpSnapshot:
		return fmt.Sprintf("Snapshot by %s (%s)", op.Author, op.Message)
	case OpChecksum:
		return fmt.Sprintf("Checksum(%d bytes)", len(op.ChecksumData))
	case OpSetType:
		return fmt.Sprintf("SetType(%d, %d)", op.Node, op.TypeID)
	case OpSetName:
		return fmt.Sprintf("SetName(%d, %s)", op.Node, op.Name)
	case OpDefineTypeName:
		return fmt.Sprintf("SetTypeName(%d, %s)", op.DictID, op.Name)
	case OpDefineAttributeName:
		return fmt.Sprintf("SetAttributeName(%d, %s)", op.DictID, op.Name)
	case OpDefineTagName:
		return fmt.Sprintf("SetTagName(%d, %s)", op.DictID, op.Name)
	case OpAddTag:
		return fmt.Sprintf("AddTag(%d, %d)", op.Node, op.Tag)
	case OpRemoveTag:
		return fmt.Sprintf("RemoveTag(%d, %d)", op.Node, op.Tag)
	case OpSetAttribute:
		display := op.Value.String()
		if op.Value.tooLongForDisplay() {
			display = "<...>"
		}
		return fmt.Sprintf("Set%s(%d, %d = %s)", op.Value.TypeName(), op.Node, op.Attribute, display)
	case OpAddComment:
		return fmt.Sprintf("AddComment(%d, %s by %s in response to %d)", op.Node, op.Comment, op.Author, op.ResponseTo)
	case OpUnknown:
		return fmt.Sprintf("UnknownOperation(%d, %d bytes)", op.UnknownID, len(op.UnknownData))
	default:
		return "Operation(?)"
	}
}
