package xtype

import (
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// Navigator is a lazy cursor over an encoded xtype source. It parses tags
// on demand and can skip, materialize, and descend into values without
// reading their siblings. Navigators returned by Nav share the underlying
// io.ReaderAt with the one they came from; each keeps its own cursor, so independent
// navigators over the same immutable source do not disturb one another.
type Navigator struct {
	src  io.ReaderAt
	size int64
	c    codec

	pos   int64
	stack []navFrame
}

// navFrame caches where an entered ancestor's contents begin.
type navFrame struct {
	kind  Kind
	start int64
}

// NewNavigator wraps a seekable source of the given size. The cursor
// starts at byte 0, the root value.
func NewNavigator(src io.ReaderAt, size int64, opts Options) (*Navigator, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrTruncated)
	}
	return &Navigator{src: src, size: size, c: newCodec(opts.Order)}, nil
}

// Pos returns the cursor's byte offset. After a failed read the cursor is
// left at the byte that produced the error.
func (n *Navigator) Pos() int64 { return n.pos }

// fork returns an independent Navigator positioned at off, inheriting the
// path stack.
func (n *Navigator) fork(off int64) *Navigator {
	return &Navigator{
		src:   n.src,
		size:  n.size,
		c:     n.c,
		pos:   off,
		stack: append([]navFrame(nil), n.stack...),
	}
}

func (n *Navigator) readAt(off, ln int64) ([]byte, error) {
	if off < 0 || ln < 0 || off+ln > n.size {
		return nil, fmt.Errorf("%w: %d bytes at offset %d, size %d", ErrTruncated, ln, off, n.size)
	}
	buf := make([]byte, ln)
	if _, err := io.ReadFull(io.NewSectionReader(n.src, off, ln), buf); err != nil {
		return nil, fmt.Errorf("read at %d: %w", off, err)
	}
	return buf, nil
}

func (n *Navigator) byteAt(off int64) (byte, error) {
	b, err := n.readAt(off, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// readLength decodes a compact length prefix at off and returns the value
// and the offset just past it.
func (n *Navigator) readLength(off int64) (uint64, int64, error) {
	disc, err := n.byteAt(off)
	if err != nil {
		return 0, off, err
	}
	w := lengthWidth(disc)
	if w == 0 {
		return 0, off, fmt.Errorf("%w: length discriminator 0x%02x at offset %d", ErrInvalidLength, disc, off)
	}
	b, err := n.readAt(off+1, int64(w))
	if err != nil {
		return 0, off, err
	}
	return n.c.uint(b, w), off + 1 + int64(w), nil
}

// header describes one parsed value head.
type header struct {
	tag     Tag
	off     int64 // where the tag byte sits
	dataOff int64 // payload start (content start for containers)
	dataLen int64 // payload bytes; 0 for containers and zero-width scalars
	elem    ElemKind
	shape   []int
	isOpen  bool // list or dict open
	isClose bool // list or dict close
	kind    Kind
}

// end returns the offset just past the value. Only valid for non-container
// headers (containers need a recursive skip).
func (h header) end() int64 { return h.dataOff + h.dataLen }

// parseHeader reads the tag at off and, for blobs and arrays, the length
// and shape descriptors that follow it.
func (n *Navigator) parseHeader(off int64) (header, error) {
	b, err := n.byteAt(off)
	if err != nil {
		return header{}, err
	}
	h := header{tag: Tag(b), off: off, dataOff: off + 1}
	switch h.tag {
	case TagNull:
		h.kind = KindNull
	case TagTrue, TagFalse:
		h.kind = KindBool
	case TagInt8, TagInt16, TagInt32, TagInt64:
		h.kind = KindInt
		h.dataLen = int64(scalarWidth(h.tag))
	case TagUint8, TagUint16, TagUint32, TagUint64:
		h.kind = KindUint
		h.dataLen = int64(scalarWidth(h.tag))
	case TagFloat32, TagFloat64:
		h.kind = KindFloat
		h.dataLen = int64(scalarWidth(h.tag))
	case TagString, TagBytes:
		h.kind = KindString
		if h.tag == TagBytes {
			h.kind = KindBytes
		}
		ln, next, err := n.readLength(off + 1)
		if err != nil {
			return header{}, err
		}
		if ln > uint64(n.size) {
			return header{}, fmt.Errorf("%w: %d byte blob in %d byte source", ErrInvalidLength, ln, n.size)
		}
		h.dataOff = next
		h.dataLen = int64(ln)
	case TagListOpen:
		h.kind, h.isOpen = KindList, true
	case TagDictOpen:
		h.kind, h.isOpen = KindDict, true
	case TagListClose, TagDictClose:
		h.isClose = true
	case TagArray:
		h.kind = KindArray
		rank, next, err := n.readLength(off + 1)
		if err != nil {
			return header{}, err
		}
		if rank == 0 || rank > uint64(n.size) {
			return header{}, fmt.Errorf("%w: array rank %d", ErrInvalidLength, rank)
		}
		shape := make([]int, rank)
		count := int64(1)
		for i := range shape {
			dim, after, err := n.readLength(next)
			if err != nil {
				return header{}, err
			}
			if dim == 0 || dim > uint64(n.size) {
				return header{}, fmt.Errorf("%w: array dimension %d", ErrInvalidLength, dim)
			}
			shape[i] = int(dim)
			if count > math.MaxInt64/int64(dim) {
				return header{}, fmt.Errorf("%w: shape product overflow", ErrInvalidLength)
			}
			count *= int64(dim)
			next = after
		}
		eb, err := n.byteAt(next)
		if err != nil {
			return header{}, err
		}
		elem := ElemKind(eb)
		if err := checkElemKind(elem); err != nil {
			return header{}, err
		}
		h.elem = elem
		h.shape = shape
		h.dataOff = next + 1
		h.dataLen = count * int64(elem.Width())
	default:
		return header{}, fmt.Errorf("%w: 0x%02x at offset %d", ErrUnexpectedTag, b, off)
	}
	if !h.isOpen && !h.isClose && h.end() > n.size {
		return header{}, fmt.Errorf("%w: value at %d runs past size %d", ErrTruncated, off, n.size)
	}
	return h, nil
}

// skipFrom advances past exactly one complete value starting at off and
// returns the offset of the next sibling. Scalars, blobs and arrays skip
// by their known lengths; containers walk nested tags to the matching
// close.
func (n *Navigator) skipFrom(off int64) (int64, error) {
	h, err := n.parseHeader(off)
	if err != nil {
		return off, err
	}
	if h.isClose {
		return off, fmt.Errorf("%w: close tag %q at offset %d", ErrUnexpectedTag, byte(h.tag), off)
	}
	if !h.isOpen {
		return h.end(), nil
	}
	depth := 1
	cur := h.dataOff
	for depth > 0 {
		ch, err := n.parseHeader(cur)
		if err != nil {
			return cur, err
		}
		switch {
		case ch.isOpen:
			depth++
			cur = ch.dataOff
		case ch.isClose:
			depth--
			cur = ch.off + 1
		default:
			cur = ch.end()
		}
	}
	return cur, nil
}

// PeekKind reports the kind of the value at the cursor without advancing.
func (n *Navigator) PeekKind() (Kind, error) {
	h, err := n.parseHeader(n.pos)
	if err != nil {
		return KindInvalid, err
	}
	if h.isClose {
		return KindInvalid, fmt.Errorf("%w: close tag at cursor", ErrUnexpectedTag)
	}
	return h.kind, nil
}

// Skip advances the cursor past exactly one value. On failure the cursor
// is left at the byte that produced the error.
func (n *Navigator) Skip() error {
	next, err := n.skipFrom(n.pos)
	n.pos = next
	return err
}

// Read materializes the value at the cursor and advances past it. On
// failure the cursor is left at the byte that produced the error.
func (n *Navigator) Read() (Value, error) {
	v, next, err := n.materialize(n.pos)
	n.pos = next
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

// Enter descends into the list or dict at the cursor: its frame is pushed
// on the path stack and the cursor moves to the first child slot.
func (n *Navigator) Enter() error {
	h, err := n.parseHeader(n.pos)
	if err != nil {
		return err
	}
	if !h.isOpen {
		return fmt.Errorf("%w: enter on %s", ErrTypeMismatch, h.kind)
	}
	n.stack = append(n.stack, navFrame{kind: h.kind, start: h.dataOff})
	n.pos = h.dataOff
	return nil
}

// Next reports whether another child starts at the cursor within the
// entered container. On the close tag it advances past it, pops the
// frame, and reports false.
func (n *Navigator) Next() (bool, error) {
	h, err := n.parseHeader(n.pos)
	if err != nil {
		return false, err
	}
	if h.isClose {
		n.pos = h.off + 1
		if len(n.stack) > 0 {
			n.stack = n.stack[:len(n.stack)-1]
		}
		return false, nil
	}
	return true, nil
}

// materialize decodes one whole value at off, returning it and the offset
// just past it.
func (n *Navigator) materialize(off int64) (Value, int64, error) {
	h, err := n.parseHeader(off)
	if err != nil {
		return Value{}, off, err
	}
	switch {
	case h.isClose:
		return Value{}, off, fmt.Errorf("%w: close tag %q at offset %d", ErrUnexpectedTag, byte(h.tag), off)
	case h.kind == KindNull:
		return Null(), h.end(), nil
	case h.kind == KindBool:
		return Bool(h.tag == TagTrue), h.end(), nil
	case h.kind == KindInt, h.kind == KindUint, h.kind == KindFloat:
		b, err := n.readAt(h.dataOff, h.dataLen)
		if err != nil {
			return Value{}, off, err
		}
		return n.scalar(h, b), h.end(), nil
	case h.kind == KindString:
		b, err := n.readAt(h.dataOff, h.dataLen)
		if err != nil {
			return Value{}, off, err
		}
		if !utf8.Valid(b) {
			return Value{}, off, fmt.Errorf("%w: string at offset %d", ErrInvalidUTF8, off)
		}
		return String(string(b)), h.end(), nil
	case h.kind == KindBytes:
		b, err := n.readAt(h.dataOff, h.dataLen)
		if err != nil {
			return Value{}, off, err
		}
		return Bytes(b), h.end(), nil
	case h.kind == KindArray:
		b, err := n.readAt(h.dataOff, h.dataLen)
		if err != nil {
			return Value{}, off, err
		}
		arr := &Array{Elem: h.elem, Shape: h.shape, Data: b, Order: n.c.order}
		return ArrayValue(arr), h.end(), nil
	case h.kind == KindList:
		items := []Value{}
		cur := h.dataOff
		for {
			ch, err := n.parseHeader(cur)
			if err != nil {
				return Value{}, cur, err
			}
			if ch.isClose {
				if ch.tag != TagListClose {
					return Value{}, cur, fmt.Errorf("%w: %q closing a list", ErrUnexpectedTag, byte(ch.tag))
				}
				return List(items...), ch.off + 1, nil
			}
			item, next, err := n.materialize(cur)
			if err != nil {
				return Value{}, cur, err
			}
			items = append(items, item)
			cur = next
		}
	case h.kind == KindDict:
		// Duplicate keys keep their first position; the last occurrence
		// wins. Navigation lookup, in contrast, stops at the first match.
		members := []Member{}
		index := map[string]int{}
		cur := h.dataOff
		for {
			ch, err := n.parseHeader(cur)
			if err != nil {
				return Value{}, cur, err
			}
			if ch.isClose {
				if ch.tag != TagDictClose {
					return Value{}, cur, fmt.Errorf("%w: %q closing a dict", ErrUnexpectedTag, byte(ch.tag))
				}
				return Dict(members...), ch.off + 1, nil
			}
			if ch.tag != TagString {
				return Value{}, cur, fmt.Errorf("%w: dict key tag %q at offset %d", ErrUnexpectedTag, byte(ch.tag), cur)
			}
			key, next, err := n.materialize(cur)
			if err != nil {
				return Value{}, cur, err
			}
			val, after, err := n.materialize(next)
			if err != nil {
				return Value{}, next, err
			}
			if at, dup := index[key.Str()]; dup {
				members[at].Value = val
			} else {
				index[key.Str()] = len(members)
				members = append(members, Member{Key: key.Str(), Value: val})
			}
			cur = after
		}
	}
	return Value{}, off, fmt.Errorf("%w: 0x%02x", ErrUnexpectedTag, byte(h.tag))
}

func (n *Navigator) scalar(h header, b []byte) Value {
	w := int(h.dataLen)
	switch h.kind {
	case KindInt:
		return Value{kind: KindInt, width: uint8(w), i: n.c.int(b, w)}
	case KindUint:
		return Value{kind: KindUint, width: uint8(w), u: n.c.uint(b, w)}
	default:
		if w == 4 {
			return Float32(math.Float32frombits(uint32(n.c.uint(b, 4))))
		}
		return Float64(math.Float64frombits(n.c.uint(b, 8)))
	}
}

// Keys collects the member keys of the dict at the cursor, in file order,
// skipping every value. The cursor does not move.
func (n *Navigator) Keys() ([]string, error) {
	h, err := n.parseHeader(n.pos)
	if err != nil {
		return nil, err
	}
	if h.kind != KindDict || !h.isOpen {
		return nil, fmt.Errorf("%w: keys on %s", ErrTypeMismatch, h.kind)
	}
	var keys []string
	cur := h.dataOff
	for {
		ch, err := n.parseHeader(cur)
		if err != nil {
			return nil, err
		}
		if ch.isClose {
			return keys, nil
		}
		if ch.tag != TagString {
			return nil, fmt.Errorf("%w: dict key tag %q at offset %d", ErrUnexpectedTag, byte(ch.tag), cur)
		}
		key, next, err := n.materialize(cur)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key.Str())
		after, err := n.skipFrom(next)
		if err != nil {
			return nil, err
		}
		cur = after
	}
}

// Len reports the child count of a list, the pair count of a dict, or the
// axis-0 size of an array at the cursor. The cursor does not move.
func (n *Navigator) Len() (int, error) {
	h, err := n.parseHeader(n.pos)
	if err != nil {
		return 0, err
	}
	switch {
	case h.kind == KindArray:
		return h.shape[0], nil
	case h.kind == KindList && h.isOpen:
		count := 0
		cur := h.dataOff
		for {
			ch, err := n.parseHeader(cur)
			if err != nil {
				return 0, err
			}
			if ch.isClose {
				return count, nil
			}
			next, err := n.skipFrom(cur)
			if err != nil {
				return 0, err
			}
			count++
			cur = next
		}
	case h.kind == KindDict && h.isOpen:
		keys, err := n.Keys()
		if err != nil {
			return 0, err
		}
		return len(keys), nil
	default:
		return 0, fmt.Errorf("%w: len on %s", ErrTypeMismatch, h.kind)
	}
}

// lookupKey positions a fresh navigator at the value of the first member
// whose key equals k. Lookup is linear in the number of preceding keys.
func (n *Navigator) lookupKey(k string) (*Navigator, error) {
	h, err := n.parseHeader(n.pos)
	if err != nil {
		return nil, err
	}
	if h.kind != KindDict || !h.isOpen {
		return nil, fmt.Errorf("%w: key %q on %s", ErrTypeMismatch, k, h.kind)
	}
	cur := h.dataOff
	for {
		ch, err := n.parseHeader(cur)
		if err != nil {
			return nil, err
		}
		if ch.isClose {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, k)
		}
		if ch.tag != TagString {
			return nil, fmt.Errorf("%w: dict key tag %q at offset %d", ErrUnexpectedTag, byte(ch.tag), cur)
		}
		key, next, err := n.materialize(cur)
		if err != nil {
			return nil, err
		}
		if key.Str() == k {
			sub := n.fork(next)
			sub.stack = append(sub.stack, navFrame{kind: KindDict, start: h.dataOff})
			return sub, nil
		}
		after, err := n.skipFrom(next)
		if err != nil {
			return nil, err
		}
		cur = after
	}
}

// lookupIndex positions a fresh navigator at the i-th child of the list at
// the cursor. Negative indices are resolved by a skip-only counting pass.
func (n *Navigator) lookupIndex(i int) (*Navigator, error) {
	h, err := n.parseHeader(n.pos)
	if err != nil {
		return nil, err
	}
	if h.kind != KindList || !h.isOpen {
		return nil, fmt.Errorf("%w: index %d on %s", ErrTypeMismatch, i, h.kind)
	}
	if i < 0 {
		length, err := n.Len()
		if err != nil {
			return nil, err
		}
		i += length
		if i < 0 {
			return nil, fmt.Errorf("%w: index %d in list of %d", ErrIndexOutOfRange, i-length, length)
		}
	}
	cur := h.dataOff
	for skipped := 0; ; skipped++ {
		ch, err := n.parseHeader(cur)
		if err != nil {
			return nil, err
		}
		if ch.isClose {
			return nil, fmt.Errorf("%w: index %d in list of %d", ErrIndexOutOfRange, i, skipped)
		}
		if skipped == i {
			sub := n.fork(cur)
			sub.stack = append(sub.stack, navFrame{kind: KindList, start: h.dataOff})
			return sub, nil
		}
		next, err := n.skipFrom(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
}
