package xtype

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestIntWidthSelection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		v    int64
		bits int
	}{
		{0, 8}, {127, 8}, {-128, 8},
		{128, 16}, {-129, 16}, {32767, 16},
		{32768, 32}, {-40000, 32},
		{math.MaxInt32 + 1, 64}, {math.MinInt64, 64},
	}
	for _, tc := range cases {
		if got := Int(tc.v).BitWidth(); got != tc.bits {
			t.Fatalf("Int(%d): width %d, want %d", tc.v, got, tc.bits)
		}
	}

	ucases := []struct {
		v    uint64
		bits int
	}{
		{0, 8}, {255, 8}, {256, 16}, {65535, 16}, {65536, 32}, {1 << 32, 64},
	}
	for _, tc := range ucases {
		if got := Uint(tc.v).BitWidth(); got != tc.bits {
			t.Fatalf("Uint(%d): width %d, want %d", tc.v, got, tc.bits)
		}
	}
}

func TestValueEqualWidthSensitive(t *testing.T) {
	t.Parallel()

	if Int8(1).Equal(Int16(1)) {
		t.Fatal("different widths should not be equal")
	}
	if Int8(1).Equal(Uint8(1)) {
		t.Fatal("different kinds should not be equal")
	}
	if !Float64(math.NaN()).Equal(Float64(math.NaN())) {
		t.Fatal("NaN should compare equal to itself structurally")
	}
}

func TestArrayEqualAcrossOrders(t *testing.T) {
	t.Parallel()

	le := i32Array(t, binary.LittleEndian, []int{3}, 1, 2, 3)
	be := i32Array(t, binary.BigEndian, []int{3}, 1, 2, 3)
	if !le.Equal(be) {
		t.Fatal("same elements in different orders should be equal")
	}
	be2 := i32Array(t, binary.BigEndian, []int{3}, 1, 2, 4)
	if le.Equal(be2) {
		t.Fatal("different elements should not be equal")
	}
}

func TestArrayAt(t *testing.T) {
	t.Parallel()

	arr := i32Array(t, binary.BigEndian, []int{2, 3}, 0, 1, 2, 3, 4, 5)
	v, err := arr.At(1, 2)
	if err != nil {
		t.Fatalf("at(1,2): %v", err)
	}
	if v.Int64() != 5 {
		t.Fatalf("at(1,2): got %d", v.Int64())
	}
	v, err = arr.At(-1, -3)
	if err != nil {
		t.Fatalf("at(-1,-3): %v", err)
	}
	if v.Int64() != 3 {
		t.Fatalf("at(-1,-3): got %d", v.Int64())
	}
	if _, err := arr.At(2, 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("at(2,0): got %v, want ErrIndexOutOfRange", err)
	}
	if _, err := arr.At(0); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("at(0): got %v, want ErrShapeMismatch", err)
	}
}

func TestNewArrayValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewArray(ElemInt32, nil, nil, nil); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("empty shape: got %v", err)
	}
	if _, err := NewArray(ElemInt32, []int{0}, nil, nil); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("zero dim: got %v", err)
	}
	if _, err := NewArray(ElemInt32, []int{2}, []byte{0}, nil); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("short payload: got %v", err)
	}
	if _, err := NewArray(ElemKind('q'), []int{1}, []byte{0}, nil); !errors.Is(err, ErrUnknownElemKind) {
		t.Fatalf("bad kind: got %v", err)
	}
}

func TestValueInterface(t *testing.T) {
	t.Parallel()

	v := Dict(
		Member{"n", Null()},
		Member{"b", True()},
		Member{"i", Int(-7)},
		Member{"items", List(String("x"), Uint8(3))},
		Member{"grid", ArrayValue(i32Array(t, binary.NativeEndian, []int{2, 2}, 1, 2, 3, 4))},
	)
	got := v.Interface()
	want := map[string]any{
		"n": nil,
		"b": true,
		"i": int64(-7),
		"items": []any{"x", uint64(3)},
		"grid": []any{
			[]any{int64(1), int64(2)},
			[]any{int64(3), int64(4)},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("interface:\n got %#v\nwant %#v", got, want)
	}
}

func TestValueAccessors(t *testing.T) {
	t.Parallel()

	d := Dict(Member{"k", Int(1)})
	if v, ok := d.Get("k"); !ok || v.Int64() != 1 {
		t.Fatalf("dict get: %v %v", v, ok)
	}
	if _, ok := d.Get("missing"); ok {
		t.Fatal("missing key should not be found")
	}
	l := List(Int(1), Int(2))
	if l.At(1).Int64() != 2 {
		t.Fatal("list at")
	}
	if l.At(5).Kind() != KindInvalid {
		t.Fatal("out-of-range At should be invalid")
	}
	if l.Len() != 2 || d.Len() != 1 {
		t.Fatal("len")
	}
	if Int(1).Len() != -1 {
		t.Fatal("scalar len should be -1")
	}
}
