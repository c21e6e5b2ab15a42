package xtype

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, v Value) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.xt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w, err := NewWriter(f, Options{})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteValue(v); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestOpenRoundTrip(t *testing.T) {
	t.Parallel()

	want := Dict(
		Member{"a", Int(1)},
		Member{"b", List(String("x"), String("y"))},
	)
	path := writeTestFile(t, want)

	f, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	got, err := f.Nav().Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("round-trip through Open: got %v", got.Interface())
	}

	// Independent navigators over the same file.
	n1, n2 := f.Nav(), f.Nav()
	if _, err := n1.Get(Key("a")); err != nil {
		t.Fatalf("nav 1: %v", err)
	}
	keys, err := n2.Keys()
	if err != nil {
		t.Fatalf("nav 2: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys: got %v", keys)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
}

func TestOpenAppendReadBack(t *testing.T) {
	// The on-disk append flow: write with a real file, re-open for
	// append, extend, read back through Open.
	t.Parallel()

	path := writeTestFile(t, List(Int(1), Int(2)))

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open rw: %v", err)
	}
	w, err := NewWriter(f, Options{Append: true})
	if err != nil {
		t.Fatalf("append writer: %v", err)
	}
	if err := w.Last().Add(String("extra")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	rf, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = rf.Close() }()

	got, err := rf.Nav().Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := List(Int(1), Int(2), String("extra"))
	if !got.Equal(want) {
		t.Fatalf("append: got %v, want %v", got.Interface(), want.Interface())
	}
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Open(filepath.Join(t.TempDir(), "nope.xt"), Options{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
