// Package mask implements the wire codec for serialized mask and heatmap
// payloads. A payload is a fixed header followed by row-major element data.
// The header carries a sentinel word so a decoder can detect whether the
// producing platform wrote the payload with the opposite byte order and
// swap accordingly.
package mask

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// sentinel is the first header word of every payload. A decoder that reads
// the byte-swapped value knows the producer used the opposite byte order.
const sentinel uint16 = 0x1FB5

// headerSize is sentinel(2) + elemSize(1) + reserved(1) + rows(4) + cols(4).
const headerSize = 12

// Buffer is a decoded two-dimensional numeric buffer. Data is stored
// row-major in native byte order; ElemSize is 1, 2 or 4 bytes per element.
type Buffer struct {
	Data     []byte
	ElemSize int
	Shape    [2]int // rows, cols
}

// DecodeError reports a malformed or truncated payload.
type DecodeError struct {
	Reason string
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("mask: decode failed at offset %d: %s", e.Offset, e.Reason)
}

// At returns the element at row r, column c widened to uint32.
// It panics on out-of-range indices, mirroring slice semantics.
func (b *Buffer) At(r, c int) uint32 {
	i := (r*b.Shape[1] + c) * b.ElemSize
	switch b.ElemSize {
	case 1:
		return uint32(b.Data[i])
	case 2:
		return uint32(binary.LittleEndian.Uint16(b.Data[i:]))
	default:
		return binary.LittleEndian.Uint32(b.Data[i:])
	}
}

// SizeBytes returns the memory footprint of the decoded data.
func (b *Buffer) SizeBytes() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// Decode parses a serialized payload into a Buffer. Byte order is detected
// from the sentinel word; element data written with the foreign order is
// swapped in place of a copy so the returned buffer is always native
// (little-endian) order. Decode never retains the input slice.
func Decode(p []byte) (*Buffer, error) {
	if len(p) < headerSize {
		return nil, &DecodeError{Reason: fmt.Sprintf("payload too short: %d bytes", len(p)), Offset: 0}
	}

	swapped := false
	switch binary.LittleEndian.Uint16(p) {
	case sentinel:
	case bits.ReverseBytes16(sentinel):
		swapped = true
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("bad sentinel 0x%04x", binary.LittleEndian.Uint16(p)), Offset: 0}
	}

	elemSize := int(p[2])
	if elemSize != 1 && elemSize != 2 && elemSize != 4 {
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported element size %d", elemSize), Offset: 2}
	}

	order := binary.ByteOrder(binary.LittleEndian)
	if swapped {
		order = binary.BigEndian
	}
	rows := int(order.Uint32(p[4:]))
	cols := int(order.Uint32(p[8:]))
	if rows < 0 || cols < 0 {
		return nil, &DecodeError{Reason: "negative shape", Offset: 4}
	}

	want := rows * cols * elemSize
	body := p[headerSize:]
	if len(body) != want {
		return nil, &DecodeError{
			Reason: fmt.Sprintf("shape [%d %d] x %d bytes/elem wants %d data bytes, have %d", rows, cols, elemSize, want, len(body)),
			Offset: headerSize,
		}
	}

	data := make([]byte, want)
	copy(data, body)
	if swapped && elemSize > 1 {
		swapElems(data, elemSize)
	}
	return &Buffer{Data: data, ElemSize: elemSize, Shape: [2]int{rows, cols}}, nil
}

// Encode serializes a Buffer in native (little-endian) order.
func Encode(b *Buffer) ([]byte, error) {
	if b == nil {
		return nil, &DecodeError{Reason: "nil buffer", Offset: 0}
	}
	if b.ElemSize != 1 && b.ElemSize != 2 && b.ElemSize != 4 {
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported element size %d", b.ElemSize), Offset: 2}
	}
	if len(b.Data) != b.Shape[0]*b.Shape[1]*b.ElemSize {
		return nil, &DecodeError{Reason: "shape inconsistent with data length", Offset: headerSize}
	}
	out := make([]byte, headerSize+len(b.Data))
	binary.LittleEndian.PutUint16(out, sentinel)
	out[2] = byte(b.ElemSize)
	binary.LittleEndian.PutUint32(out[4:], uint32(b.Shape[0]))
	binary.LittleEndian.PutUint32(out[8:], uint32(b.Shape[1]))
	copy(out[headerSize:], b.Data)
	return out, nil
}

func swapElems(data []byte, elemSize int) {
	switch elemSize {
	case 2:
		for i := 0; i+1 < len(data); i += 2 {
			data[i], data[i+1] = data[i+1], data[i]
		}
	case 4:
		for i := 0; i+3 < len(data); i += 4 {
			data[i], data[i+3] = data[i+3], data[i]
			data[i+1], data[i+2] = data[i+2], data[i+1]
		}
	}
}
