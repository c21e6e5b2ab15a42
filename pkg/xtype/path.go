package xtype

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// None marks an unspecified slice bound or step.
const None = math.MinInt

// Selector is one step of a navigation expression: a dict key, a list or
// array index, or a slice over a list or an array axis.
type Selector interface {
	isSelector()
}

// Key selects a dict member by key.
type Key string

// Index selects a list child or one array axis position. Negative values
// count from the end.
type Index int

// Slice selects a half-open range with a step, Python-style: the element
// at Start is included, Stop excluded, with the sign of Step determining
// direction. Unspecified fields (None) default to the full range for the
// step's direction. A zero Step is rejected with ErrInvalidSlice.
type Slice struct {
	Start, Stop, Step int
}

func (Key) isSelector()   {}
func (Index) isSelector() {}
func (Slice) isSelector() {}

// All selects every element of an axis.
func All() Slice { return Slice{None, None, None} }

// Span selects the half-open range [start, stop) with step 1.
func Span(start, stop int) Slice { return Slice{start, stop, None} }

// SpanStep selects the half-open range [start, stop) with the given step.
func SpanStep(start, stop, step int) Slice { return Slice{start, stop, step} }

// indices clamps the slice against an axis of the given length, following
// the standard half-open semantics, and returns the resolved start, stop
// and step.
func (s Slice) indices(length int) (start, stop, step int, err error) {
	step = s.Step
	if step == None {
		step = 1
	}
	if step == 0 {
		return 0, 0, 0, fmt.Errorf("%w: zero step", ErrInvalidSlice)
	}

	if step > 0 {
		start, stop = 0, length
	} else {
		start, stop = length-1, -1
	}
	clamp := func(i int) int {
		if i < 0 {
			i += length
		}
		if i < 0 {
			if step > 0 {
				return 0
			}
			return -1
		}
		if i >= length {
			if step > 0 {
				return length
			}
			return length - 1
		}
		return i
	}
	if s.Start != None {
		start = clamp(s.Start)
	}
	if s.Stop != None {
		stop = clamp(s.Stop)
	}
	return start, stop, step, nil
}

// expand returns the selected axis positions in visit order.
func (s Slice) expand(length int) ([]int, int, error) {
	start, stop, step, err := s.indices(length)
	if err != nil {
		return nil, 0, err
	}
	var out []int
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out, step, nil
}

// Get resolves a navigation expression from the cursor and materializes
// the result: key lookups descend into dicts, integer indices into lists,
// and once the path reaches an array the remaining selectors form its
// index tuple (missing trailing axes select the full range). A slice on a
// list must be the final selector and materializes a new list.
func (n *Navigator) Get(path ...Selector) (Value, error) {
	cur := n.fork(n.pos)
	for i := 0; i < len(path); i++ {
		h, err := cur.parseHeader(cur.pos)
		if err != nil {
			return Value{}, err
		}
		switch {
		case h.kind == KindArray:
			return cur.sliceArray(h, path[i:])
		case h.kind == KindDict && h.isOpen:
			k, ok := path[i].(Key)
			if !ok {
				return Value{}, fmt.Errorf("%w: %T selector on dict", ErrTypeMismatch, path[i])
			}
			cur, err = cur.lookupKey(string(k))
			if err != nil {
				return Value{}, err
			}
		case h.kind == KindList && h.isOpen:
			switch sel := path[i].(type) {
			case Index:
				cur, err = cur.lookupIndex(int(sel))
				if err != nil {
					return Value{}, err
				}
			case Slice:
				if i != len(path)-1 {
					return Value{}, fmt.Errorf("%w: list slice must be the final selector", ErrTypeMismatch)
				}
				return cur.sliceList(h, sel)
			default:
				return Value{}, fmt.Errorf("%w: %T selector on list", ErrTypeMismatch, path[i])
			}
		default:
			return Value{}, fmt.Errorf("%w: %T selector on %s", ErrTypeMismatch, path[i], h.kind)
		}
	}
	return cur.Read()
}

// Nav resolves key and index selectors and returns a sub-navigator
// positioned at the target without materializing it. Slices and array
// element access are terminal reads; use Get for those.
func (n *Navigator) Nav(path ...Selector) (*Navigator, error) {
	cur := n.fork(n.pos)
	for _, sel := range path {
		h, err := cur.parseHeader(cur.pos)
		if err != nil {
			return nil, err
		}
		switch s := sel.(type) {
		case Key:
			if h.kind != KindDict || !h.isOpen {
				return nil, fmt.Errorf("%w: key %q on %s", ErrTypeMismatch, string(s), h.kind)
			}
			cur, err = cur.lookupKey(string(s))
		case Index:
			if h.kind != KindList || !h.isOpen {
				return nil, fmt.Errorf("%w: index %d on %s", ErrTypeMismatch, int(s), h.kind)
			}
			cur, err = cur.lookupIndex(int(s))
		default:
			return nil, fmt.Errorf("%w: %T selector is a terminal read", ErrTypeMismatch, sel)
		}
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// sliceList materializes the children selected by s into a new list.
func (n *Navigator) sliceList(h header, s Slice) (Value, error) {
	length, err := n.Len()
	if err != nil {
		return Value{}, err
	}
	order, _, err := s.expand(length)
	if err != nil {
		return Value{}, err
	}
	if len(order) == 0 {
		return List(), nil
	}

	// One forward pass materializes every selected child; the visit order
	// is then assembled from it, which also serves negative steps.
	want := make(map[int]Value, len(order))
	for _, i := range order {
		want[i] = Value{}
	}
	cur := h.dataOff
	remaining := len(want)
	for i := 0; remaining > 0; i++ {
		ch, err := n.parseHeader(cur)
		if err != nil {
			return Value{}, err
		}
		if ch.isClose {
			break
		}
		if _, ok := want[i]; ok {
			v, next, err := n.materialize(cur)
			if err != nil {
				return Value{}, err
			}
			want[i] = v
			remaining--
			cur = next
			continue
		}
		next, err := n.skipFrom(cur)
		if err != nil {
			return Value{}, err
		}
		cur = next
	}
	items := make([]Value, len(order))
	for i, idx := range order {
		items[i] = want[idx]
	}
	return List(items...), nil
}

// axisSel is the resolved selection of one array axis.
type axisSel struct {
	idxs   []int
	scalar bool // selected by an integer; contributes no output axis
	step   int  // slice step, 1 for full ranges and integers
	full   bool // ascending step-1 run covering the whole axis
}

// sliceArray gathers the elements selected by the tuple sels from the
// array whose header is h. Integer components reduce rank; slices keep
// their axis. Trailing unspecified axes select the full range. Only bytes
// the selection covers are read: trailing full-range axes and a final
// step-1 run collapse into contiguous chunk reads.
func (n *Navigator) sliceArray(h header, sels []Selector) (Value, error) {
	rank := len(h.shape)
	if len(sels) > rank {
		return Value{}, fmt.Errorf("%w: %d selectors for rank %d", ErrShapeMismatch, len(sels), rank)
	}

	axes := make([]axisSel, rank)
	for i := 0; i < rank; i++ {
		dim := h.shape[i]
		if i >= len(sels) {
			axes[i] = fullAxis(dim)
			continue
		}
		switch s := sels[i].(type) {
		case Index:
			x := int(s)
			if x < 0 {
				x += dim
			}
			if x < 0 || x >= dim {
				return Value{}, fmt.Errorf("%w: index %d on axis %d of size %d", ErrIndexOutOfRange, int(s), i, dim)
			}
			axes[i] = axisSel{idxs: []int{x}, scalar: true, step: 1}
		case Slice:
			idxs, step, err := s.expand(dim)
			if err != nil {
				return Value{}, err
			}
			axes[i] = axisSel{
				idxs: idxs,
				step: step,
				full: step == 1 && len(idxs) == dim,
			}
		default:
			return Value{}, fmt.Errorf("%w: %T selector on array axis", ErrTypeMismatch, sels[i])
		}
	}

	elemW := h.elem.Width()
	strides := make([]int, rank)
	acc := 1
	for i := rank - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= h.shape[i]
	}

	var outShape []int
	for _, ax := range axes {
		if !ax.scalar {
			outShape = append(outShape, len(ax.idxs))
		}
	}
	for _, ax := range axes {
		if len(ax.idxs) == 0 {
			// Empty selections read nothing; the empty payload still
			// carries the output shape for the caller.
			arr := &Array{Elem: h.elem, Shape: outShape, Data: []byte{}, Order: n.c.order}
			return ArrayValue(arr), nil
		}
	}

	// Merge trailing full-range axes into one contiguous chunk, then a
	// final step-1 run.
	chunk := elemW
	active := rank
	for active > 0 && axes[active-1].full {
		chunk *= h.shape[active-1]
		active--
	}
	if active > 0 {
		last := &axes[active-1]
		if !last.scalar && last.step == 1 && len(last.idxs) > 1 {
			chunk *= len(last.idxs)
			last.idxs = last.idxs[:1]
		}
	}

	total := 1
	for _, ax := range axes[:active] {
		total *= len(ax.idxs)
	}
	data := make([]byte, 0, total*chunk)
	combo := make([]int, active)
	for {
		off := 0
		for i := 0; i < active; i++ {
			off += axes[i].idxs[combo[i]] * strides[i]
		}
		b, err := n.readAt(h.dataOff+int64(off*elemW), int64(chunk))
		if err != nil {
			return Value{}, err
		}
		data = append(data, b...)

		i := active - 1
		for ; i >= 0; i-- {
			combo[i]++
			if combo[i] < len(axes[i].idxs) {
				break
			}
			combo[i] = 0
		}
		if i < 0 {
			break
		}
	}

	if len(outShape) == 0 {
		return decodeElem(n.c, h.elem, data), nil
	}
	arr := &Array{Elem: h.elem, Shape: outShape, Data: data, Order: n.c.order}
	return ArrayValue(arr), nil
}

func fullAxis(dim int) axisSel {
	idxs := make([]int, dim)
	for i := range idxs {
		idxs[i] = i
	}
	return axisSel{idxs: idxs, step: 1, full: true}
}

// ParsePath parses a textual navigation expression into selectors.
//
// Keys are separated by dots; bracket groups hold comma-separated integer
// indices and slices: "meta.shape[0]", "rows[1:10:2]", "grid[0,:,::2]".
func ParsePath(expr string) ([]Selector, error) {
	var out []Selector
	s := expr
	for len(s) > 0 {
		switch s[0] {
		case '.':
			s = s[1:]
			if len(s) == 0 || s[0] == '.' || s[0] == '[' {
				return nil, fmt.Errorf("%w: empty key in %q", ErrTypeMismatch, expr)
			}
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated bracket in %q", ErrTypeMismatch, expr)
			}
			for _, part := range strings.Split(s[1:end], ",") {
				sel, err := parseBracketItem(strings.TrimSpace(part), expr)
				if err != nil {
					return nil, err
				}
				out = append(out, sel)
			}
			s = s[end+1:]
		default:
			stop := len(s)
			if i := strings.IndexAny(s, ".["); i >= 0 {
				stop = i
			}
			out = append(out, Key(s[:stop]))
			s = s[stop:]
		}
	}
	return out, nil
}

func parseBracketItem(item, expr string) (Selector, error) {
	if !strings.Contains(item, ":") {
		i, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("%w: index %q in %q", ErrTypeMismatch, item, expr)
		}
		return Index(i), nil
	}
	parts := strings.Split(item, ":")
	if len(parts) > 3 {
		return nil, fmt.Errorf("%w: slice %q in %q", ErrInvalidSlice, item, expr)
	}
	bound := func(i int) (int, error) {
		if i >= len(parts) || strings.TrimSpace(parts[i]) == "" {
			return None, nil
		}
		return strconv.Atoi(strings.TrimSpace(parts[i]))
	}
	start, err := bound(0)
	if err != nil {
		return nil, fmt.Errorf("%w: slice %q in %q", ErrInvalidSlice, item, expr)
	}
	stop, err := bound(1)
	if err != nil {
		return nil, fmt.Errorf("%w: slice %q in %q", ErrInvalidSlice, item, expr)
	}
	step, err := bound(2)
	if err != nil {
		return nil, fmt.Errorf("%w: slice %q in %q", ErrInvalidSlice, item, expr)
	}
	return Slice{Start: start, Stop: stop, Step: step}, nil
}
