package xtype

import (
	"bytes"
	"fmt"
	"io"
	"testing"
)

// memSink is an in-memory Sink (plus io.ReaderAt for append mode) used by
// the writer tests.
type memSink struct {
	buf []byte
	pos int64
}

func (m *memSink) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memSink) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.buf)) + offset
	}
	if m.pos < 0 {
		return 0, fmt.Errorf("negative position %d", m.pos)
	}
	return m.pos, nil
}

func (m *memSink) Truncate(size int64) error {
	if size > int64(len(m.buf)) {
		grown := make([]byte, size)
		copy(grown, m.buf)
		m.buf = grown
		return nil
	}
	m.buf = m.buf[:size]
	return nil
}

func (m *memSink) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// encode writes one whole value and returns the encoded bytes.
func encode(t *testing.T, opts Options, v Value) []byte {
	t.Helper()
	sink := &memSink{}
	w, err := NewWriter(sink, opts)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteValue(v); err != nil {
		t.Fatalf("write value: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return sink.buf
}

// navOf wraps encoded bytes in a Navigator.
func navOf(t *testing.T, data []byte, opts Options) *Navigator {
	t.Helper()
	nav, err := NewNavigator(bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		t.Fatalf("new navigator: %v", err)
	}
	return nav
}

// decode materializes the root value of encoded bytes.
func decode(t *testing.T, data []byte, opts Options) Value {
	t.Helper()
	v, err := navOf(t, data, opts).Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return v
}
