package xtype

import (
	"strings"
	"testing"
)

func collectDebug(t *testing.T, data []byte, opts DebugOptions) []string {
	t.Helper()
	var lines []string
	for line, err := range navOf(t, data, Options{}).Debug(opts) {
		if err != nil {
			t.Fatalf("debug: %v", err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestDebugTokens(t *testing.T) {
	t.Parallel()

	data := encode(t, Options{}, Dict(
		Member{"name", String("xtype")},
		Member{"raw", Bytes([]byte{0x01, 0x02})},
		Member{"flags", List(True(), Null())},
	))
	out := strings.Join(collectDebug(t, data, DebugOptions{}), "\n")

	for _, want := range []string{
		"{",
		`s(4): "name"`,
		`s(5): "xtype"`,
		"x(2): 01 02",
		"[",
		"T",
		"n",
		"]",
		"}",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("debug output missing %q:\n%s", want, out)
		}
	}
}

func TestDebugIndentation(t *testing.T) {
	t.Parallel()

	data := encode(t, Options{}, List(List(Int(1))))
	lines := collectDebug(t, data, DebugOptions{IndentSize: 2})
	want := []string{"[", "  [", "    i: 01", "  ]", "]"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDebugElidesLongPayloads(t *testing.T) {
	t.Parallel()

	data := encode(t, Options{}, Bytes(make([]byte, 100)))
	lines := collectDebug(t, data, DebugOptions{MaxBinaryBytes: 4})
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "(100 bytes total)") {
		t.Fatalf("expected elision note, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[0], "x(100): 00 00 00 00 ") {
		t.Fatalf("unexpected line %q", lines[0])
	}
}

func TestDebugArrayToken(t *testing.T) {
	t.Parallel()

	arr := i32Array(t, nil, []int{2, 2}, 1, 2, 3, 4)
	data := encode(t, Options{}, ArrayValue(arr))
	lines := collectDebug(t, data, DebugOptions{MaxBinaryBytes: 4})
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "A(2x2) i32: ") {
		t.Fatalf("unexpected array token %q", lines[0])
	}
	if !strings.Contains(lines[0], "(16 bytes total)") {
		t.Fatalf("expected elision note, got %q", lines[0])
	}
}

func TestDebugStopsOnError(t *testing.T) {
	t.Parallel()

	sawErr := false
	for _, err := range navOf(t, []byte{'[', 0x00}, Options{}).Debug(DebugOptions{}) {
		if err != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatal("expected an error token for the unknown tag")
	}
}
