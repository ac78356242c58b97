package binc

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

// writer is the minimal sink the codec writes to.
type writer interface {
	io.Writer
}

// reader is the minimal source the codec reads from.
type reader interface {
	io.Reader
}

func writeU8(w writer, v uint8) error  { return writeAll(w, []byte{v}) }
func writeI8(w writer, v int8) error   { return writeU8(w, uint8(v)) }
func writeBool(w writer, v bool) error {
	if v {
		return writeU8(w, 1)
	}
	return writeU8(w, 0)
}

func writeU16(w writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return writeAll(w, b[:])
}
func writeI16(w writer, v int16) error { return writeU16(w, uint16(v)) }

func writeU32(w writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return writeAll(w, b[:])
}
func writeI32(w writer, v int32) error { return writeU32(w, uint32(v)) }

func writeU64(w writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return writeAll(w, b[:])
}
func writeI64(w writer, v int64) error { return writeU64(w, uint64(v)) }

func writeF32(w writer, v float32) error { return writeU32(w, math.Float32bits(v)) }
func writeF64(w writer, v float64) error { return writeU64(w, math.Float64bits(v)) }

// write24 writes a 24-bit value as its raw 3-byte big-endian payload,
// with no sign extension performed on encode (see AttributeValue's U24/I24).
func write24(w writer, raw [3]byte) error { return writeAll(w, raw[:]) }

func writeLength(w writer, n int) error { return writeVarint(w, uint64(n)) }

func writeBytes(w writer, data []byte) error {
	if err := writeLength(w, len(data)); err != nil {
		return err
	}
	return writeAll(w, data)
}

func writeString(w writer, s string) error {
	return writeBytes(w, []byte(s))
}

func writeUUID(w writer, id uuid.UUID) error {
	return writeAll(w, id[:])
}

func writeHash(w writer, h [32]byte) error {
	return writeAll(w, h[:])
}

func readU8(r reader) (uint8, error) { return readByte(r) }
func readI8(r reader) (int8, error) {
	b, err := readByte(r)
	return int8(b), err
}

func readBool(r reader) (bool, error) {
	b, err := readByte(r)
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("byte %#x: %w", b, ErrInvalidBool)
	}
}

func readU16(r reader) (uint16, error) {
	var b [2]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
func readI16(r reader) (int16, error) {
	v, err := readU16(r)
	return int16(v), err
}

func readU32(r reader) (uint32, error) {
	var b [4]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
func readI32(r reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}

func readU64(r reader) (uint64, error) {
	var b [8]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
func readI64(r reader) (int64, error) {
	v, err := readU64(r)
	return int64(v), err
}

func readF32(r reader) (float32, error) {
	v, err := readU32(r)
	return math.Float32frombits(v), err
}
func readF64(r reader) (float64, error) {
	v, err := readU64(r)
	return math.Float64frombits(v), err
}

func read24(r reader) ([3]byte, error) {
	var b [3]byte
	err := readFull(r, b[:])
	return b, err
}

func readLength(r reader) (int, error) {
	v, err := readVarint(r)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func readBytes(r reader) ([]byte, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n > 0 {
		if err := readFull(r, buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func readString(r reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

func readUUID(r reader) (uuid.UUID, error) {
	var raw [16]byte
	if err := readFull(r, raw[:]); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.FromBytes(raw[:])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%v: %w", err, ErrInvalidUUID)
	}
	return id, nil
}

func readHash(r reader) ([32]byte, error) {
	var h [32]byte
	err := readFull(r, h[:])
	return h, err
}

func readStringArray(r reader) ([]string, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func writeStringArray(w writer, ss []string) error {
	if err := writeLength(w, len(ss)); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readUUIDArray(r reader) ([]uuid.UUID, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		id, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

func writeUUIDArray(w writer, ids []uuid.UUID) error {
	if err := writeLength(w, len(ids)); err != nil {
		return err
	}
	for _, id := range ids {
		if err := writeUUID(w, id); err != nil {
			return err
		}
	}
	return nil
}
