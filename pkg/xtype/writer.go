package xtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// Sink is the byte destination a Writer appends to. *os.File satisfies it.
// Append mode additionally requires the sink to implement io.ReaderAt so
// the existing root container can be inspected.
type Sink interface {
	io.Writer
	io.Seeker
	Truncate(size int64) error
}

// Options configures a Writer or Navigator.
type Options struct {
	// Order is the file byte order for every multi-byte scalar and
	// length. nil selects the host order (binary.NativeEndian).
	Order binary.ByteOrder

	// Append re-opens an existing root list or dict for further writes
	// instead of truncating the sink.
	Append bool

	// StrictKeys makes the writer reject duplicate keys within one dict
	// with ErrDuplicateKey. Without it, uniqueness is the caller's
	// obligation.
	StrictKeys bool
}

// Writer encodes xtype values onto an append-only cursor over a Sink.
//
// A Writer tracks the stack of open containers. Values can be written
// whole with WriteValue, or incrementally through Handles returned by
// List and Dict. Close closes every still-open container in LIFO order.
type Writer struct {
	f       Sink
	c       codec
	strict  bool
	frames  []frame
	gen     uint64
	root    bool // root value has been started or written
	closed  bool
	scratch []byte
}

// frame is the bookkeeping record for one open container.
type frame struct {
	kind    Kind // KindList or KindDict
	gen     uint64
	wantKey bool
	seen    map[string]struct{} // strict mode only
}

// Handle references an open container frame. A Handle stays usable after
// siblings or descendants were added: writing through it first closes
// every deeper open container. Once the container itself has been closed,
// any use fails with ErrHandleClosed; detection is O(1) via a generation
// counter.
type Handle struct {
	w     *Writer
	depth int
	gen   uint64
}

// NewWriter wraps a sink. In write mode the sink is truncated and the
// cursor starts at byte 0. In append mode a non-empty sink must already
// hold a root list or dict; its trailing close tag is truncated and the
// matching frame re-pushed, so subsequent writes extend the root container.
// An empty sink in append mode is written from scratch as in write mode.
func NewWriter(f Sink, opts Options) (*Writer, error) {
	if f == nil {
		return nil, errors.New("xtype: nil sink")
	}
	w := &Writer{
		f:       f,
		c:       newCodec(opts.Order),
		strict:  opts.StrictKeys,
		scratch: make([]byte, 0, 64),
	}
	if opts.Append {
		if err := w.reopenRoot(); err != nil {
			return nil, err
		}
		return w, nil
	}
	if err := f.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return w, nil
}

// reopenRoot validates the tail of an existing file and re-pushes the root
// container frame, reusing its terminator slot.
func (w *Writer) reopenRoot() error {
	size, err := w.f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if size == 0 {
		// An empty sink appends like a fresh write.
		return nil
	}
	ra, ok := w.f.(io.ReaderAt)
	if !ok {
		return errors.New("xtype: append mode needs a sink that implements io.ReaderAt")
	}
	if size < 2 {
		return fmt.Errorf("%w: %d byte file", ErrTruncated, size)
	}
	var head, tail [1]byte
	if _, err := ra.ReadAt(head[:], 0); err != nil {
		return err
	}
	if _, err := ra.ReadAt(tail[:], size-1); err != nil {
		return err
	}

	var kind Kind
	var want Tag
	switch Tag(head[0]) {
	case TagListOpen:
		kind, want = KindList, TagListClose
	case TagDictOpen:
		kind, want = KindDict, TagDictClose
	default:
		return fmt.Errorf("%w: root tag 0x%02x", ErrRootNotExtensible, head[0])
	}
	if Tag(tail[0]) != want {
		return fmt.Errorf("%w: trailing byte 0x%02x, want %q", ErrUnexpectedTag, tail[0], byte(want))
	}

	// Pre-load the keys already present so strict mode covers the whole
	// dict, not just this session's writes. Must happen before the close
	// tag is truncated.
	var existing []string
	if kind == KindDict && w.strict {
		nav, err := NewNavigator(ra, size, Options{Order: w.c.order})
		if err != nil {
			return err
		}
		existing, err = nav.Keys()
		if err != nil {
			return err
		}
	}

	if err := w.f.Truncate(size - 1); err != nil {
		return err
	}
	if _, err := w.f.Seek(size-1, io.SeekStart); err != nil {
		return err
	}
	w.root = true
	w.push(kind)
	fr := &w.frames[0]
	for _, k := range existing {
		fr.seen[k] = struct{}{}
	}
	return nil
}

func (w *Writer) push(kind Kind) {
	w.gen++
	fr := frame{kind: kind, gen: w.gen, wantKey: kind == KindDict}
	if kind == KindDict && w.strict {
		fr.seen = make(map[string]struct{})
	}
	w.frames = append(w.frames, fr)
}

func (w *Writer) emit(p []byte) error {
	for len(p) > 0 {
		n, err := w.f.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// valueSlot checks that the innermost frame (or the empty root) expects a
// value to be written.
func (w *Writer) valueSlot() error {
	if w.closed {
		return errors.New("xtype: writer already closed")
	}
	if len(w.frames) == 0 {
		if w.root {
			return errors.New("xtype: root value already written")
		}
		return nil
	}
	top := &w.frames[len(w.frames)-1]
	if top.kind == KindDict && top.wantKey {
		return errors.New("xtype: dict expects a key, not a value")
	}
	return nil
}

// valueDone flips dict frames back to the key phase after a value write.
func (w *Writer) valueDone() {
	if len(w.frames) == 0 {
		w.root = true
		return
	}
	top := &w.frames[len(w.frames)-1]
	if top.kind == KindDict {
		top.wantKey = true
	}
}

// WriteValue encodes one whole value, of any kind, at the current
// insertion point.
func (w *Writer) WriteValue(v Value) error {
	if err := w.valueSlot(); err != nil {
		return err
	}
	buf, err := w.appendValue(w.scratch[:0], v)
	if err != nil {
		return err
	}
	if err := w.emit(buf); err != nil {
		return err
	}
	w.valueDone()
	return nil
}

// WriteArray encodes a numeric array from a contiguous byte view whose
// length must be the shape product times the element width. The data is
// assumed to already use the file byte order; use WriteValue with an
// Array carrying its own Order to convert.
func (w *Writer) WriteArray(elem ElemKind, shape []int, data []byte) error {
	arr, err := NewArray(elem, shape, data, w.c.order)
	if err != nil {
		return err
	}
	return w.WriteValue(ArrayValue(arr))
}

// List opens a list at the current insertion point and returns its Handle.
func (w *Writer) List() (*Handle, error) {
	return w.open(KindList)
}

// Dict opens a dict at the current insertion point and returns its Handle.
func (w *Writer) Dict() (*Handle, error) {
	return w.open(KindDict)
}

func (w *Writer) open(kind Kind) (*Handle, error) {
	if err := w.valueSlot(); err != nil {
		return nil, err
	}
	tag := TagListOpen
	if kind == KindDict {
		tag = TagDictOpen
	}
	if err := w.emit([]byte{byte(tag)}); err != nil {
		return nil, err
	}
	w.root = true
	w.push(kind)
	return &Handle{w: w, depth: len(w.frames) - 1, gen: w.gen}, nil
}

// Last returns a Handle to the innermost still-open container, or nil when
// no container is open.
func (w *Writer) Last() *Handle {
	if len(w.frames) == 0 {
		return nil
	}
	return &Handle{w: w, depth: len(w.frames) - 1, gen: w.frames[len(w.frames)-1].gen}
}

// closeTop emits the close tag for the innermost frame and pops it.
func (w *Writer) closeTop() error {
	top := w.frames[len(w.frames)-1]
	tag := TagListClose
	if top.kind == KindDict {
		if !top.wantKey {
			return errors.New("xtype: closing dict with a dangling key")
		}
		tag = TagDictClose
	}
	if err := w.emit([]byte{byte(tag)}); err != nil {
		return err
	}
	w.frames = w.frames[:len(w.frames)-1]
	w.valueDone()
	return nil
}

// Close terminates every still-open container in LIFO order. The Writer is
// unusable afterwards. Close does not close the underlying sink.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	for len(w.frames) > 0 {
		if err := w.closeTop(); err != nil {
			w.closed = true
			return err
		}
	}
	w.closed = true
	return nil
}

// live reports whether the handle's frame is still open.
func (h *Handle) live() bool {
	return h.depth < len(h.w.frames) && h.w.frames[h.depth].gen == h.gen
}

// surface closes every container nested deeper than the handle, making its
// frame the insertion point again.
func (h *Handle) surface() error {
	if !h.live() {
		return fmt.Errorf("%w: depth %d", ErrHandleClosed, h.depth)
	}
	for len(h.w.frames) > h.depth+1 {
		if err := h.w.closeTop(); err != nil {
			return err
		}
	}
	return nil
}

// Add appends a value to the handle's container. For dicts, a key written
// with Key must precede it.
func (h *Handle) Add(v Value) error {
	if err := h.surface(); err != nil {
		return err
	}
	return h.w.WriteValue(v)
}

// Key writes the next member key of a dict handle.
func (h *Handle) Key(k string) error {
	if err := h.surface(); err != nil {
		return err
	}
	w := h.w
	top := &w.frames[len(w.frames)-1]
	if top.kind != KindDict {
		return fmt.Errorf("%w: key on a %s", ErrTypeMismatch, top.kind)
	}
	if !top.wantKey {
		return errors.New("xtype: dict expects a value, not a key")
	}
	if top.seen != nil {
		if _, dup := top.seen[k]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateKey, k)
		}
		top.seen[k] = struct{}{}
	}
	buf, err := w.appendValue(w.scratch[:0], String(k))
	if err != nil {
		return err
	}
	if err := w.emit(buf); err != nil {
		return err
	}
	top.wantKey = false
	return nil
}

// Set writes one key/value member of a dict handle.
func (h *Handle) Set(k string, v Value) error {
	if err := h.Key(k); err != nil {
		return err
	}
	return h.Add(v)
}

// List opens a child list inside the handle's container.
func (h *Handle) List() (*Handle, error) {
	if err := h.surface(); err != nil {
		return nil, err
	}
	return h.w.List()
}

// Dict opens a child dict inside the handle's container.
func (h *Handle) Dict() (*Handle, error) {
	if err := h.surface(); err != nil {
		return nil, err
	}
	return h.w.Dict()
}

// Close emits the container's close tag, first closing anything nested
// deeper. Closing an already-closed handle fails with ErrHandleClosed.
func (h *Handle) Close() error {
	if err := h.surface(); err != nil {
		return err
	}
	return h.w.closeTop()
}

// appendValue encodes v recursively onto dst.
func (w *Writer) appendValue(dst []byte, v Value) ([]byte, error) {
	c := w.c
	switch v.kind {
	case KindNull:
		return append(dst, byte(TagNull)), nil
	case KindBool:
		if v.b {
			return append(dst, byte(TagTrue)), nil
		}
		return append(dst, byte(TagFalse)), nil
	case KindInt:
		dst = append(dst, byte(intTag(int(v.width))))
		return c.appendUint(dst, uint64(v.i), int(v.width)), nil
	case KindUint:
		dst = append(dst, byte(uintTag(int(v.width))))
		return c.appendUint(dst, v.u, int(v.width)), nil
	case KindFloat:
		if v.width == 4 {
			dst = append(dst, byte(TagFloat32))
			return c.appendUint(dst, uint64(math.Float32bits(float32(v.f))), 4), nil
		}
		dst = append(dst, byte(TagFloat64))
		return c.appendUint(dst, math.Float64bits(v.f), 8), nil
	case KindString:
		if !utf8.ValidString(v.s) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidUTF8, v.s)
		}
		dst = append(dst, byte(TagString))
		dst = c.appendLength(dst, uint64(len(v.s)))
		return append(dst, v.s...), nil
	case KindBytes:
		dst = append(dst, byte(TagBytes))
		dst = c.appendLength(dst, uint64(len(v.raw)))
		return append(dst, v.raw...), nil
	case KindList:
		dst = append(dst, byte(TagListOpen))
		var err error
		for _, item := range v.list {
			if dst, err = w.appendValue(dst, item); err != nil {
				return nil, err
			}
		}
		return append(dst, byte(TagListClose)), nil
	case KindDict:
		dst = append(dst, byte(TagDictOpen))
		var seen map[string]struct{}
		if w.strict {
			seen = make(map[string]struct{}, len(v.dict))
		}
		var err error
		for _, m := range v.dict {
			if seen != nil {
				if _, dup := seen[m.Key]; dup {
					return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, m.Key)
				}
				seen[m.Key] = struct{}{}
			}
			if dst, err = w.appendValue(dst, String(m.Key)); err != nil {
				return nil, err
			}
			if dst, err = w.appendValue(dst, m.Value); err != nil {
				return nil, err
			}
		}
		return append(dst, byte(TagDictClose)), nil
	case KindArray:
		return w.appendArray(dst, v.arr)
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnexpectedTag, v.kind)
	}
}

func (w *Writer) appendArray(dst []byte, a *Array) ([]byte, error) {
	if _, err := NewArray(a.Elem, a.Shape, a.Data, a.Order); err != nil {
		return nil, err
	}
	c := w.c
	dst = append(dst, byte(TagArray))
	dst = c.appendLength(dst, uint64(len(a.Shape)))
	for _, d := range a.Shape {
		dst = c.appendLength(dst, uint64(d))
	}
	dst = append(dst, byte(a.Elem))
	return append(dst, swapToOrder(a.Data, a.Elem.Width(), a.Order, c.order)...), nil
}

func intTag(width int) Tag {
	switch width {
	case 1:
		return TagInt8
	case 2:
		return TagInt16
	case 4:
		return TagInt32
	default:
		return TagInt64
	}
}

func uintTag(width int) Tag {
	switch width {
	case 1:
		return TagUint8
	case 2:
		return TagUint16
	case 4:
		return TagUint32
	default:
		return TagUint64
	}
}
