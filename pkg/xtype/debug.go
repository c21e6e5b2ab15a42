package xtype

import (
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"
)

// DebugOptions controls the token dump produced by Navigator.Debug.
// Zero-valued fields take the defaults noted on each field.
type DebugOptions struct {
	// IndentSize is the number of spaces per nesting level (default 2).
	IndentSize int
	// MaxIndentLevel caps the indentation depth (default 10).
	MaxIndentLevel int
	// MaxBinaryBytes limits how many payload bytes are shown per value
	// (default 15); longer payloads are elided with a byte count.
	MaxBinaryBytes int
}

func (o DebugOptions) withDefaults() DebugOptions {
	if o.IndentSize == 0 {
		o.IndentSize = 2
	}
	if o.MaxIndentLevel == 0 {
		o.MaxIndentLevel = 10
	}
	if o.MaxBinaryBytes == 0 {
		o.MaxBinaryBytes = 15
	}
	return o
}

// Debug walks the encoded structure token by token from the cursor and
// yields one formatted line per token: container brackets on their own
// lines driving indentation, scalars and blobs as tag plus payload. The
// exact text is not part of the format contract. The walk stops at the
// first yield returning false or at the first parse error, which is
// yielded with an empty line.
func (n *Navigator) Debug(opts DebugOptions) iter.Seq2[string, error] {
	opts = opts.withDefaults()
	return func(yield func(string, error) bool) {
		indent := 0
		prefix := func() string {
			level := min(indent, opts.MaxIndentLevel)
			return strings.Repeat(" ", level*opts.IndentSize)
		}
		cur := n.pos
		depth := 0
		for {
			h, err := n.parseHeader(cur)
			if err != nil {
				yield("", err)
				return
			}
			switch {
			case h.isOpen:
				if !yield(prefix()+string(byte(h.tag)), nil) {
					return
				}
				indent++
				depth++
				cur = h.dataOff
			case h.isClose:
				indent = max(0, indent-1)
				if !yield(prefix()+string(byte(h.tag)), nil) {
					return
				}
				depth--
				cur = h.off + 1
			default:
				line, err := n.debugToken(h, opts)
				if err != nil {
					yield("", err)
					return
				}
				if !yield(prefix()+line, nil) {
					return
				}
				cur = h.end()
			}
			if depth <= 0 {
				return
			}
		}
	}
}

func (n *Navigator) debugToken(h header, opts DebugOptions) (string, error) {
	shown := h.dataLen
	if shown > int64(opts.MaxBinaryBytes) {
		shown = int64(opts.MaxBinaryBytes)
	}
	b, err := n.readAt(h.dataOff, shown)
	if err != nil {
		return "", err
	}
	elided := ""
	if shown < h.dataLen {
		elided = fmt.Sprintf(" ... (%d bytes total)", h.dataLen)
	}
	switch h.tag {
	case TagNull, TagTrue, TagFalse:
		return string(byte(h.tag)), nil
	case TagString:
		if utf8.Valid(b) || shown < h.dataLen {
			return fmt.Sprintf("s(%d): %q%s", h.dataLen, string(b), elided), nil
		}
		return fmt.Sprintf("s(%d): %s%s", h.dataLen, hexBytes(b), elided), nil
	case TagBytes:
		return fmt.Sprintf("x(%d): %s%s", h.dataLen, hexBytes(b), elided), nil
	case TagArray:
		dims := make([]string, len(h.shape))
		for i, d := range h.shape {
			dims[i] = fmt.Sprintf("%d", d)
		}
		return fmt.Sprintf("A(%s) %s: %s%s", strings.Join(dims, "x"), h.elem, hexBytes(b), elided), nil
	default:
		return fmt.Sprintf("%c: %s%s", byte(h.tag), hexBytes(b), elided), nil
	}
}

func hexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return strings.Join(parts, " ")
}
