package binc

import (
	"fmt"

	"github.com/google/uuid"
)

// AttributeKind discriminates the AttributeValue tagged union.
type AttributeKind int

const (
	AttrString AttributeKind = iota
	AttrBool
	AttrUUID
	AttrU8
	AttrU16
	AttrU24
	AttrU32
	AttrU64
	AttrI8
	AttrI16
	AttrI24
	AttrI32
	AttrI64
	AttrF32
	AttrF64
)

// AttributeValue is a tagged union over the scalar attribute types BINC
// supports. Exactly one of the typed fields is meaningful, selected by Kind.
// U24/I24 carry their 3-byte payload as raw bytes with no sign extension
// performed by this package; interpretation is left to the consumer.
type AttributeValue struct {
	Kind AttributeKind

	Str  string
	Bool bool
	UUID uuid.UUID
	U8   uint8
	U16  uint16
	U24  [3]byte
	U32  uint32
	U64  uint64
	I8   int8
	I16  int16
	I24  [3]byte
	I32  int32
	I64  int64
	F32  float32
	F64  float64
}

func AttrValueString(s string) AttributeValue { return AttributeValue{Kind: AttrString, Str: s} }
func AttrValueBool(b bool) AttributeValue     { return AttributeValue{Kind: AttrBool, Bool: b} }
func AttrValueUUID(u uuid.UUID) AttributeValue { return AttributeValue{Kind: AttrUUID, UUID: u} }
func AttrValueU8(v uint8) AttributeValue      { return AttributeValue{Kind: AttrU8, U8: v} }
func AttrValueU16(v uint16) AttributeValue    { return AttributeValue{Kind: AttrU16, U16: v} }
func AttrValueU24(v [3]byte) AttributeValue   { return AttributeValue{Kind: AttrU24, U24: v} }
func AttrValueU32(v uint32) AttributeValue    { return AttributeValue{Kind: AttrU32, U32: v} }
func AttrValueU64(v uint64) AttributeValue    { return AttributeValue{Kind: AttrU64, U64: v} }
func AttrValueI8(v int8) AttributeValue       { return AttributeValue{Kind: AttrI8, I8: v} }
func AttrValueI16(v int16) AttributeValue     { return AttributeValue{Kind: AttrI16, I16: v} }
func AttrValueI24(v [3]byte) AttributeValue   { return AttributeValue{Kind: AttrI24, I24: v} }
func AttrValueI32(v int32) AttributeValue     { return AttributeValue{Kind: AttrI32, I32: v} }
func AttrValueI64(v int64) AttributeValue     { return AttributeValue{Kind: AttrI64, I64: v} }
func AttrValueF32(v float32) AttributeValue   { return AttributeValue{Kind: AttrF32, F32: v} }
func AttrValueF64(v float64) AttributeValue   { return AttributeValue{Kind: AttrF64, F64: v} }

// TypeName returns the display name of the attribute's scalar type, used by
// the CLI when rendering a node's attributes.
func (v AttributeValue) TypeName() string {
	switch v.Kind {
	case AttrString:
		return "String"
	case AttrBool:
		return "Bool"
	case AttrUUID:
		return "Uuid"
	case AttrU8:
		return "UInt8"
	case AttrU16:
		return "UInt16"
	case AttrU24:
		return "UInt24"
	case AttrU32:
		return "UInt32"
	case AttrU64:
		return "UInt64"
	case AttrI8:
		return "Int8"
	case AttrI16:
		return "Int16"
	case AttrI24:
		return "Int24"
	case AttrI32:
		return "Int32"
	case AttrI64:
		return "Int64"
	case AttrF32:
		return "Float32"
	case AttrF64:
		return "Float64"
	default:
		return "Unknown"
	}
}

// String renders the attribute's value for display purposes (CLI print, logging).
func (v AttributeValue) String() string {
	switch v.Kind {
	case AttrString:
		return v.Str
	case AttrBool:
		return fmt.Sprintf("%t", v.Bool)
	case AttrUUID:
		return v.UUID.String()
	case AttrU8:
		return fmt.Sprintf("%d", v.U8)
	case AttrU16:
		return fmt.Sprintf("%d", v.U16)
	case AttrU24:
		return fmt.Sprintf("%x", v.U24)
	case AttrU32:
		return fmt.Sprintf("%d", v.U32)
	case AttrU64:
		return fmt.Sprintf("%d", v.U64)
	case AttrI8:
		return fmt.Sprintf("%d", v.I8)
	case AttrI16:
		return fmt.Sprintf("%d", v.I16)
	case AttrI24:
		return fmt.Sprintf("%x", v.I24)
	case AttrI32:
		return fmt.Sprintf("%d", v.I32)
	case AttrI64:
		return fmt.Sprintf("%d", v.I64)
	case AttrF32:
		return fmt.Sprintf("%g", v.F32)
	case AttrF64:
		return fmt.Sprintf("%g", v.F64)
	default:
		return "?"
	}
}

// tooLongForDisplay mirrors the reference engine's rule for truncating long
// values (strings past a reasonable preview length) when printed.
func (v AttributeValue) tooLongForDisplay() bool {
	return v.Kind == AttrString && len(v.Str) > 200
}

func (v AttributeValue) writeContent(w writer) error {
	switch v.Kind {
	case AttrString:
		return writeString(w, v.Str)
	case AttrBool:
		return writeBool(w, v.Bool)
	case AttrUUID:
		return writeUUID(w, v.UUID)
	case AttrU8:
		return writeU8(w, v.U8)
	case AttrU16:
		return writeU16(w, v.U16)
	case AttrU24:
		return write24(w, v.U24)
	case AttrU32:
		return writeU32(w, v.U32)
	case AttrU64:
		return writeU64(w, v.U64)
	case AttrI8:
		return writeI8(w, v.I8)
	case AttrI16:
		return writeI16(w, v.I16)
	case AttrI24:
		return write24(w, v.I24)
	case AttrI32:
		return writeI32(w, v.I32)
	case AttrI64:
		return writeI64(w, v.I64)
	case AttrF32:
		return writeF32(w, v.F32)
	case AttrF64:
		return writeF64(w, v.F64)
	default:
		return fmt.Errorf("unknown attribute kind %d", v.Kind)
	}
}

// attributeOperationID returns the SetAttribute<scalar> operation id for kind k.
func attributeOperationID(k AttributeKind) uint64 {
	switch k {
	case AttrUUID:
		return opSetUUID
	case AttrU8:
		return opSetUint8
	case AttrU16:
		return opSetUint16
	case AttrU24:
		return opSetUint24
	case AttrU32:
		return opSetUint32
	case AttrU64:
		return opSetUint64
	case AttrI8:
		return opSetInt8
	case AttrI16:
		return opSetInt16
	case AttrI24:
		return opSetInt24
	case AttrI32:
		return opSetInt32
	case AttrI64:
		return opSetInt64
	case AttrF32:
		return opSetFloat32
	case AttrF64:
		return opSetFloat64
	case AttrBool:
		return opSetBool
	case AttrString:
		return opSetString
	default:
		return opSetString
	}
}
