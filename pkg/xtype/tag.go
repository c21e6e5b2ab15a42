// Package xtype implements the xtype binary container format.
//
// xtype is a compact, self-describing serialization of heterogeneous data:
// scalars, strings, byte blobs, ordered lists and dicts, and N-dimensional
// numeric arrays. A file holds exactly one root value and carries no magic
// header; the tag alphabet is the entire grammar. Byte order is a file-level
// attribute agreed out of band.
//
// The package provides a Writer for sequential, incremental construction via
// container handles, and a Navigator for random-access reads that can skip,
// look up keys and indices, and slice arrays without materializing parents.
package xtype

import "fmt"

// Tag is the single-byte discriminator at the head of each encoded value.
// Tag byte values are frozen; writer and reader share this assignment.
type Tag byte

const (
	TagNull  Tag = 'n'
	TagTrue  Tag = 'T'
	TagFalse Tag = 'F'

	TagInt8  Tag = 'i'
	TagInt16 Tag = 'j'
	TagInt32 Tag = 'k'
	TagInt64 Tag = 'l'

	TagUint8  Tag = 'I'
	TagUint16 Tag = 'J'
	TagUint32 Tag = 'K'
	TagUint64 Tag = 'L'

	TagFloat32 Tag = 'f'
	TagFloat64 Tag = 'd'

	// TagString and TagBytes are followed by a compact length prefix and
	// that many payload bytes.
	TagString Tag = 's'
	TagBytes  Tag = 'x'

	TagListOpen  Tag = '['
	TagListClose Tag = ']'
	TagDictOpen  Tag = '{'
	TagDictClose Tag = '}'

	// TagArray is followed by the rank as a compact length, one compact
	// length per dimension, the element kind tag, and the row-major
	// payload. Arrays have no close tag.
	TagArray Tag = 'A'
)

// scalarWidth returns the fixed payload width in bytes for a scalar tag,
// or -1 if the tag is not a fixed-width scalar.
func scalarWidth(t Tag) int {
	switch t {
	case TagNull, TagTrue, TagFalse:
		return 0
	case TagInt8, TagUint8:
		return 1
	case TagInt16, TagUint16:
		return 2
	case TagInt32, TagUint32, TagFloat32:
		return 4
	case TagInt64, TagUint64, TagFloat64:
		return 8
	}
	return -1
}

// ElemKind identifies the element type of a numeric array. Values are the
// wire tag bytes of the corresponding scalar kinds.
type ElemKind byte

const (
	ElemInt8    = ElemKind(TagInt8)
	ElemInt16   = ElemKind(TagInt16)
	ElemInt32   = ElemKind(TagInt32)
	ElemInt64   = ElemKind(TagInt64)
	ElemUint8   = ElemKind(TagUint8)
	ElemUint16  = ElemKind(TagUint16)
	ElemUint32  = ElemKind(TagUint32)
	ElemUint64  = ElemKind(TagUint64)
	ElemFloat32 = ElemKind(TagFloat32)
	ElemFloat64 = ElemKind(TagFloat64)
)

// Width returns the element size in bytes, or 0 for an unknown kind.
func (e ElemKind) Width() int {
	switch e {
	case ElemInt8, ElemUint8:
		return 1
	case ElemInt16, ElemUint16:
		return 2
	case ElemInt32, ElemUint32, ElemFloat32:
		return 4
	case ElemInt64, ElemUint64, ElemFloat64:
		return 8
	}
	return 0
}

func (e ElemKind) String() string {
	switch e {
	case ElemInt8:
		return "i8"
	case ElemInt16:
		return "i16"
	case ElemInt32:
		return "i32"
	case ElemInt64:
		return "i64"
	case ElemUint8:
		return "u8"
	case ElemUint16:
		return "u16"
	case ElemUint32:
		return "u32"
	case ElemUint64:
		return "u64"
	case ElemFloat32:
		return "f32"
	case ElemFloat64:
		return "f64"
	default:
		return fmt.Sprintf("elem(0x%02x)", byte(e))
	}
}

// Kind classifies a decoded Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindList
	KindDict
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindArray:
		return "array"
	default:
		return "invalid"
	}
}
