package binc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Varint thresholds for the primary (non-flipped) encoding.
const (
	primaryT1 = 204
	primaryT2 = 32*256 + primaryT1 // 8396
)

// Varint thresholds for the flipped encoding, used exclusively for operation ids.
const (
	flippedT1 = 219
	flippedT2 = 32*256 + flippedT1
)

// writeVarint writes v using the primary varint encoding described in the
// byte codec component: the leading byte uniquely determines the encoded
// length so a decoder never needs to look ahead.
func writeVarint(w io.Writer, v uint64) error {
	return writeAll(w, encodeVarint(v))
}

func encodeVarint(v uint64) []byte {
	switch {
	case v <= primaryT1:
		return []byte{byte(v)}
	case v < primaryT2:
		d := v - primaryT1
		lead := byte((d>>8)+primaryT1) + 1
		return []byte{lead, byte(d)}
	case v < 16*65536+primaryT2:
		d := v - primaryT2
		lead := byte(237 + (d >> 16))
		return []byte{lead, byte(d >> 8), byte(d)}
	case v < 1<<24:
		return []byte{0xFD, byte(v >> 16), byte(v >> 8), byte(v)}
	case v <= 0xFFFFFFFF:
		buf := make([]byte, 5)
		buf[0] = 0xFE
		binary.BigEndian.PutUint32(buf[1:], uint32(v))
		return buf
	default:
		buf := make([]byte, 9)
		buf[0] = 0xFF
		binary.BigEndian.PutUint64(buf[1:], v)
		return buf
	}
}

// writeVarintFlipped writes v using the flipped varint encoding: identical
// shape to the primary encoding but with every output byte XORed with 0xFF
// and a different T1 threshold. Because that threshold leaves only lead byte
// 252 free, the 3-byte tier is a single bank (lead 252 plus a 16-bit payload)
// rather than the primary encoding's leads 237-252. It is used only for framing operation ids so
// that a scan for a known op id cannot be confused with ordinary string
// payloads written with the primary encoding.
func writeVarintFlipped(w io.Writer, v uint64) error {
	var buf []byte
	switch {
	case v <= flippedT1:
		buf = []byte{byte(v)}
	case v < flippedT2:
		d := v - flippedT1
		lead := byte((d>>8)+flippedT1) + 1
		buf = []byte{lead, byte(d)}
	case v < 65536+flippedT2:
		d := v - flippedT2
		buf = []byte{252, byte(d >> 8), byte(d)}
	case v < 1<<24:
		buf = []byte{0xFD, byte(v >> 16), byte(v >> 8), byte(v)}
	case v <= 0xFFFFFFFF:
		buf = make([]byte, 5)
		buf[0] = 0xFE
		binary.BigEndian.PutUint32(buf[1:], uint32(v))
	default:
		buf = make([]byte, 9)
		buf[0] = 0xFF
		binary.BigEndian.PutUint64(buf[1:], v)
	}
	for i := range buf {
		buf[i] ^= 0xFF
	}
	return writeAll(w, buf)
}

// readVarint decodes a primary-encoding varint.
func readVarint(r io.Reader) (uint64, error) {
	lead, err := readByte(r)
	if err != nil {
		return 0, err
	}
	switch {
	case lead <= primaryT1:
		return uint64(lead), nil
	case lead <= 236:
		b, err := readByte(r)
		if err != nil {
			return 0, err
		}
		hi := uint64(lead) - primaryT1 - 1
		return (hi << 8) | uint64(b) + primaryT1, nil
	case lead <= 252:
		var b [2]byte
		if err := readFull(r, b[:]); err != nil {
			return 0, err
		}
		hi := uint64(lead) - 237
		return hi<<16 + uint64(binary.BigEndian.Uint16(b[:])) + primaryT2, nil
	case lead == 0xFD:
		var b [3]byte
		if err := readFull(r, b[:]); err != nil {
			return 0, err
		}
		return uint64(b[0])<<16 | uint64(b[1])<<8 | uint64(b[2]), nil
	case lead == 0xFE:
		var b [4]byte
		if err := readFull(r, b[:]); err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint32(b[:])), nil
	case lead == 0xFF:
		var b [8]byte
		if err := readFull(r, b[:]); err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(b[:]), nil
	default:
		return 0, fmt.Errorf("lead byte %#x: %w", lead, ErrVarintLeadByte)
	}
}

// readVarintFlipped decodes a flipped-encoding varint, as used for operation ids.
func readVarintFlipped(r io.Reader) (uint64, error) {
	leadRaw, err := readByte(r)
	if err != nil {
		return 0, err
	}
	lead := leadRaw ^ 0xFF
	switch {
	case lead <= flippedT1:
		return uint64(lead), nil
	case lead <= 251:
		braw, err := readByte(r)
		if err != nil {
			return 0, err
		}
		b := braw ^ 0xFF
		hi := uint64(lead) - flippedT1 - 1
		return (hi << 8) | uint64(b) + flippedT1, nil
	case lead == 252:
		var braw [2]byte
		if err := readFull(r, braw[:]); err != nil {
			return 0, err
		}
		b0 := braw[0] ^ 0xFF
		b1 := braw[1] ^ 0xFF
		return (uint64(b0)<<8 | uint64(b1)) + flippedT2, nil
	case lead == 0xFD:
		var braw [3]byte
		if err := readFull(r, braw[:]); err != nil {
			return 0, err
		}
		b0, b1, b2 := braw[0]^0xFF, braw[1]^0xFF, braw[2]^0xFF
		return uint64(b0)<<16 | uint64(b1)<<8 | uint64(b2), nil
	case lead == 0xFE:
		var braw [4]byte
		if err := readFull(r, braw[:]); err != nil {
			return 0, err
		}
		var b [4]byte
		for i, v := range braw {
			b[i] = v ^ 0xFF
		}
		return uint64(binary.BigEndian.Uint32(b[:])), nil
	case lead == 0xFF:
		var braw [8]byte
		if err := readFull(r, braw[:]); err != nil {
			return 0, err
		}
		var b [8]byte
		for i, v := range braw {
			b[i] = v ^ 0xFF
		}
		return binary.BigEndian.Uint64(b[:]), nil
	default:
		return 0, fmt.Errorf("flipped lead byte %#x: %w", lead, ErrVarintLeadByte)
	}
}

// varintSize returns the number of bytes writeVarint would emit for v.
func varintSize(v uint64) int {
	switch {
	case v <= primaryT1:
		return 1
	case v < primaryT2:
		return 2
	case v < 1_056_972: // 16*65536 + 8396
		return 3
	case v < 1<<24:
		return 4
	case v <= 0xFFFFFFFF:
		return 5
	default:
		return 9
	}
}

func writeAll(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return err
}
