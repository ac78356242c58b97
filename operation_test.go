package binc

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func roundTripOperation(t *testing.T, op Operation) Operation {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writeOperation(&buf, op))
	got, err := readOperation(&buf)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Len(), "trailing bytes after decoding %s", op.String())
	return got
}

func TestOperationRoundTripStructural(t *testing.T) {
	ops := []Operation{
		AddNode(5, 2, 1, 0),
		RemoveNode(7),
		MoveNode(3, 4, 1),
		SetType(2, 9),
		SetName(2, "hello"),
		DefineTypeName(1, "folder"),
		DefineAttributeName(1, "size"),
		DefineTagName(1, "starred"),
		AddTag(2, 1),
		RemoveTag(2, 1),
		Snapshot("alice", "checkpoint"),
		Checksum([]byte{1, 2, 3, 4}),
		AddComment(2, "looks good", "bob", -1),
	}
	for _, op := range ops {
		got := roundTripOperation(t, op)
		require.Equal(t, op, got, "round trip of %s", op.String())
	}
}

func TestOperationRoundTripEveryAttributeKind(t *testing.T) {
	id := uuid.New()
	values := []AttributeValue{
		AttrValueString("a string"),
		AttrValueBool(true),
		AttrValueUUID(id),
		AttrValueU8(200),
		AttrValueU16(60000),
		AttrValueU24([3]byte{0x01, 0x02, 0x03}),
		AttrValueU32(4000000000),
		AttrValueU64(18000000000000000000),
		AttrValueI8(-100),
		AttrValueI16(-30000),
		AttrValueI24([3]byte{0xFF, 0x00, 0x01}),
		AttrValueI32(-2000000000),
		AttrValueI64(-9000000000000000000),
		AttrValueF32(3.25),
		AttrValueF64(-1.5e10),
	}
	for _, v := range values {
		op := SetAttribute(3, 9, v)
		got := roundTripOperation(t, op)
		require.Equal(t, op, got, "round trip of %s attribute", v.TypeName())
	}
}

func TestUnknownOperationPreservesRawBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVarintFlipped(&buf, 0x99))
	require.NoError(t, writeLength(&buf, 3))
	require.NoError(t, writeAll(&buf, []byte{0xAA, 0xBB, 0xCC}))

	got, err := readOperation(&buf)
	require.NoError(t, err)
	require.Equal(t, OpUnknown, got.Kind)
	require.Equal(t, uint64(0x99), got.UnknownID)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, got.UnknownData)

	var reencoded bytes.Buffer
	require.NoError(t, writeOperation(&reencoded, got))
	require.Equal(t, buf2Bytes(0x99, []byte{0xAA, 0xBB, 0xCC}), reencoded.Bytes())
}

// buf2Bytes rebuilds the expected wire encoding of a flipped id + length-prefixed
// body for comparison against a re-encoded UnknownOperation.
func buf2Bytes(id uint64, body []byte) []byte {
	var buf bytes.Buffer
	_ = writeVarintFlipped(&buf, id)
	_ = writeLength(&buf, len(body))
	_ = writeAll(&buf, body)
	return buf.Bytes()
}

func TestSetAttributeCoalescing(t *testing.T) {
	first := SetAttribute(2, 5, AttrValueString("old"))
	second := SetAttribute(2, 5, AttrValueString("new"))

	combined, ok := second.combine(first)
	require.True(t, ok)
	require.Equal(t, second, combined)

	different := SetAttribute(2, 6, AttrValueString("new"))
	_, ok = different.combine(first)
	require.False(t, ok, "different attribute key must not coalesce")
}

func TestSetNameCoalescing(t *testing.T) {
	first := SetName(2, "old")
	second := SetName(2, "new")

	combined, ok := second.combine(first)
	require.True(t, ok)
	require.Equal(t, second, combined)

	otherNode := SetName(3, "new")
	_, ok = otherNode.combine(first)
	require.False(t, ok, "different node must not coalesce")
}
