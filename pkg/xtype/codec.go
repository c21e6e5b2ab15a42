package xtype

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Compact length prefix discriminators. The discriminator selects the width
// of the unsigned length that follows; the length bytes use the file byte
// order. The writer always picks the smallest tier that fits.
const (
	lenU8  = byte('M')
	lenU16 = byte('N')
	lenU32 = byte('O')
	lenU64 = byte('P')
)

// fullByteOrder is binary.ByteOrder plus the Append methods that stdlib's
// concrete orders (LittleEndian, BigEndian, NativeEndian) all implement.
type fullByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// codec holds the file-level byte order and implements the primitive
// encoders and decoders shared by Writer and Navigator.
type codec struct {
	order fullByteOrder
}

// appendOrder adapts any binary.ByteOrder into a fullByteOrder by falling
// back to Put+append when the order doesn't already implement the append
// methods itself.
type appendOrder struct {
	binary.ByteOrder
}

func (o appendOrder) AppendUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	o.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func (o appendOrder) AppendUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	o.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func (o appendOrder) AppendUint64(dst []byte, v uint64) []byte {
	var b [8]byte
	o.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func toFullByteOrder(order binary.ByteOrder) fullByteOrder {
	if f, ok := order.(fullByteOrder); ok {
		return f
	}
	return appendOrder{order}
}

func newCodec(order binary.ByteOrder) codec {
	if order == nil {
		order = binary.NativeEndian
	}
	return codec{order: toFullByteOrder(order)}
}

func (c codec) appendUint(dst []byte, v uint64, width int) []byte {
	switch width {
	case 1:
		return append(dst, byte(v))
	case 2:
		return c.order.AppendUint16(dst, uint16(v))
	case 4:
		return c.order.AppendUint32(dst, uint32(v))
	default:
		return c.order.AppendUint64(dst, v)
	}
}

func (c codec) uint(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(c.order.Uint16(b))
	case 4:
		return uint64(c.order.Uint32(b))
	default:
		return c.order.Uint64(b)
	}
}

// int decodes a signed integer of the given width, sign-extending.
func (c codec) int(b []byte, width int) int64 {
	u := c.uint(b, width)
	shift := 64 - uint(width)*8
	return int64(u<<shift) >> shift
}

// appendLength emits a compact length prefix: the smallest discriminator
// tier whose width fits n, then n in the file byte order.
func (c codec) appendLength(dst []byte, n uint64) []byte {
	switch {
	case n <= math.MaxUint8:
		return append(append(dst, lenU8), byte(n))
	case n <= math.MaxUint16:
		return c.order.AppendUint16(append(dst, lenU16), uint16(n))
	case n <= math.MaxUint32:
		return c.order.AppendUint32(append(dst, lenU32), uint32(n))
	default:
		return c.order.AppendUint64(append(dst, lenU64), n)
	}
}

// lengthWidth maps a discriminator byte to the width of the length that
// follows, or 0 when the byte is not a length discriminator.
func lengthWidth(b byte) int {
	switch b {
	case lenU8:
		return 1
	case lenU16:
		return 2
	case lenU32:
		return 4
	case lenU64:
		return 8
	}
	return 0
}

// swapToOrder returns data converted from the `from` byte order to the
// `to` byte order for elements of the given width. The input is returned
// unchanged when no swap is needed; otherwise a new slice is allocated.
func swapToOrder(data []byte, width int, from, to binary.ByteOrder) []byte {
	if width <= 1 || sameOrder(from, to) {
		return data
	}
	out := make([]byte, len(data))
	for i := 0; i+width <= len(data); i += width {
		for j := 0; j < width; j++ {
			out[i+j] = data[i+width-1-j]
		}
	}
	return out
}

func sameOrder(a, b binary.ByteOrder) bool {
	if a == nil {
		a = binary.NativeEndian
	}
	if b == nil {
		b = binary.NativeEndian
	}
	// binary.NativeEndian aliases one of the two concrete orders; compare
	// by observable behaviour rather than identity.
	var probe [2]byte
	a.PutUint16(probe[:], 1)
	var probe2 [2]byte
	b.PutUint16(probe2[:], 1)
	return probe == probe2
}

// decodeElem decodes one element payload of the given kind.
func decodeElem(c codec, e ElemKind, b []byte) Value {
	w := e.Width()
	switch e {
	case ElemInt8, ElemInt16, ElemInt32, ElemInt64:
		return Value{kind: KindInt, width: uint8(w), i: c.int(b, w)}
	case ElemUint8, ElemUint16, ElemUint32, ElemUint64:
		return Value{kind: KindUint, width: uint8(w), u: c.uint(b, w)}
	case ElemFloat32:
		return Float32(math.Float32frombits(uint32(c.uint(b, w))))
	default:
		return Float64(math.Float64frombits(c.uint(b, w)))
	}
}

func checkElemKind(e ElemKind) error {
	if e.Width() == 0 {
		return fmt.Errorf("%w: 0x%02x", ErrUnknownElemKind, byte(e))
	}
	return nil
}
