package packet

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/danmuck/codewire/internal/testutil/testlog"
)

func encodeOrFatal(t *testing.T, p Packet) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestRoundTripAllVariants(t *testing.T) {
	testlog.Start(t)
	object, err := NewObject(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("new object: %v", err)
	}
	cases := []Packet{
		Undefined(),
		NewString("marco"),
		NewString(""),
		NewString("héllo wörld ✓"),
		NewBuffer([]byte{0x00, 0x01, 0xFF}),
		NewBuffer([]byte{}),
		NewVSBuffer([]byte{0xDE, 0xAD, 0xBE, 0xEF}),
		object,
		NewInt32(0),
		NewInt32(-1),
		NewInt32(1<<31 - 1),
		NewArray([]Packet{}),
		NewArray([]Packet{NewInt32(1), NewString("a"), Undefined()}),
		NewArray([]Packet{NewArray([]Packet{NewArray([]Packet{})})}),
	}
	for _, p := range cases {
		wire := encodeOrFatal(t, p)
		got, err := Decode(bytes.NewReader(wire), DefaultLimits())
		if err != nil {
			t.Fatalf("decode %s: %v", p.Type, err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Fatalf("round trip %s: got %+v want %+v", p.Type, got, p)
		}
	}
}

func TestBufferTagsStayDistinct(t *testing.T) {
	testlog.Start(t)
	payload := []byte{1, 2, 3}
	for _, p := range []Packet{NewBuffer(payload), NewVSBuffer(payload)} {
		wire := encodeOrFatal(t, p)
		got, err := Decode(bytes.NewReader(wire), DefaultLimits())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != p.Type {
			t.Fatalf("tag collapsed: got %s want %s", got.Type, p.Type)
		}
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	testlog.Start(t)
	for tag := 7; tag <= 255; tag++ {
		_, err := Decode(bytes.NewReader([]byte{byte(tag)}), DefaultLimits())
		if !errors.Is(err, ErrUnexpectedType) {
			t.Fatalf("tag %d: expected ErrUnexpectedType, got %v", tag, err)
		}
	}
}

func TestDecodeInvalidUTF8(t *testing.T) {
	testlog.Start(t)
	wire := []byte{byte(TypeString), 2, 0xFF, 0xFE}
	if _, err := Decode(bytes.NewReader(wire), DefaultLimits()); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
}

func TestDecodeEveryPrefixFails(t *testing.T) {
	testlog.Start(t)
	object, err := NewObject(struct {
		Name string `json:"name"`
	}{Name: "x"})
	if err != nil {
		t.Fatalf("new object: %v", err)
	}
	cases := []Packet{
		NewString("testchannel"),
		NewBuffer([]byte{9, 8, 7, 6}),
		NewInt32(-1234),
		object,
		NewArray([]Packet{NewInt32(100), NewInt32(0), NewString("testchannel"), NewString("marco")}),
		NewArray([]Packet{NewArray([]Packet{NewInt32(1)}), NewArray([]Packet{})}),
	}
	for _, p := range cases {
		wire := encodeOrFatal(t, p)
		for cut := 1; cut < len(wire); cut++ {
			if _, err := Decode(bytes.NewReader(wire[:cut]), DefaultLimits()); err == nil {
				t.Fatalf("%s: prefix of %d/%d bytes decoded without error", p.Type, cut, len(wire))
			}
		}
	}
}

func TestDecodeCleanEOFPropagates(t *testing.T) {
	testlog.Start(t)
	if _, err := Decode(bytes.NewReader(nil), DefaultLimits()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on empty stream, got %v", err)
	}
}

func TestNestedArrayGrid(t *testing.T) {
	testlog.Start(t)
	for _, outer := range []int{0, 1, 3, 10} {
		for _, inner := range []int{0, 1, 5} {
			items := make([]Packet, 0, outer)
			for i := 0; i < outer; i++ {
				row := make([]Packet, 0, inner)
				for j := 0; j < inner; j++ {
					row = append(row, NewInt32(int32(i*inner+j)))
				}
				items = append(items, NewArray(row))
			}
			p := NewArray(items)
			wire := encodeOrFatal(t, p)
			got, err := Decode(bytes.NewReader(wire), DefaultLimits())
			if err != nil {
				t.Fatalf("decode %dx%d: %v", outer, inner, err)
			}
			if len(got.Items) != outer {
				t.Fatalf("outer count: got %d want %d", len(got.Items), outer)
			}
			for i, row := range got.Items {
				if row.Type != TypeArray || len(row.Items) != inner {
					t.Fatalf("row %d: got %d items", i, len(row.Items))
				}
				for j, cell := range row.Items {
					if cell.Int != int32(i*inner+j) {
						t.Fatalf("cell %d,%d out of order: %d", i, j, cell.Int)
					}
				}
			}
		}
	}
}

func TestDeeplyNestedArray(t *testing.T) {
	testlog.Start(t)
	const depth = 100
	p := NewArray([]Packet{NewInt32(7)})
	for i := 1; i < depth; i++ {
		p = NewArray([]Packet{p})
	}
	wire := encodeOrFatal(t, p)
	got, err := Decode(bytes.NewReader(wire), DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := 1; i < depth; i++ {
		if got.Type != TypeArray || len(got.Items) != 1 {
			t.Fatalf("level %d: %s with %d items", i, got.Type, len(got.Items))
		}
		got = got.Items[0]
	}
	if got.Type != TypeArray || len(got.Items) != 1 || got.Items[0].Int != 7 {
		t.Fatalf("innermost value lost: %+v", got)
	}
}

func TestDecodeDepthLimit(t *testing.T) {
	testlog.Start(t)
	limits := DefaultLimits()
	limits.MaxArrayDepth = 8
	var wire []byte
	for i := 0; i < 32; i++ {
		wire = append(wire, byte(TypeArray), 1)
	}
	wire = append(wire, byte(TypeUndefined))
	if _, err := Decode(bytes.NewReader(wire), limits); !errors.Is(err, ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
}

func TestDecodeArrayCountMismatchIsTruncation(t *testing.T) {
	testlog.Start(t)
	// Declares three elements, delivers two.
	wire := []byte{byte(TypeArray), 3, byte(TypeUndefined), byte(TypeUndefined)}
	if _, err := Decode(bytes.NewReader(wire), DefaultLimits()); err == nil {
		t.Fatalf("expected error for short array")
	}
}

func TestToJSONProjection(t *testing.T) {
	testlog.Start(t)
	object, err := NewObject(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("new object: %v", err)
	}
	cases := []struct {
		packet Packet
		want   string
	}{
		{Undefined(), "undefined"},
		{NewString("a"), `"a"`},
		{NewBuffer([]byte{1, 2, 255}), "[1,2,255]"},
		{NewVSBuffer([]byte{}), "[]"},
		{NewInt32(-5), "-5"},
		{object, `{"k":"v"}`},
		{NewArray([]Packet{NewInt32(1), NewString("a")}), `[1,"a"]`},
		{NewArray([]Packet{Undefined(), NewArray([]Packet{})}), "[undefined,[]]"},
	}
	for _, tc := range cases {
		if got := string(ToJSON(tc.packet)); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.packet.Type, got, tc.want)
		}
	}
}

func TestToObject(t *testing.T) {
	testlog.Start(t)
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	object, err := NewObject(payload{Name: "x", Count: 3})
	if err != nil {
		t.Fatalf("new object: %v", err)
	}
	got, err := ToObject[payload](object)
	if err != nil {
		t.Fatalf("to object: %v", err)
	}
	if got.Name != "x" || got.Count != 3 {
		t.Fatalf("unexpected payload: %+v", got)
	}

	if _, err := ToObject[*payload](Undefined()); err != nil {
		t.Fatalf("undefined should read as null: %v", err)
	}

	if _, err := ToObject[payload](NewString("nope")); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for string packet, got %v", err)
	}

	bad := Packet{Type: TypeObject, Data: []byte("{not json")}
	if _, err := ToObject[payload](bad); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for bad json, got %v", err)
	}
}

func TestToInt32(t *testing.T) {
	testlog.Start(t)
	v, err := ToInt32(NewInt32(42))
	if err != nil || v != 42 {
		t.Fatalf("native int: %d %v", v, err)
	}
	object, err := NewObject(7)
	if err != nil {
		t.Fatalf("new object: %v", err)
	}
	v, err = ToInt32(object)
	if err != nil || v != 7 {
		t.Fatalf("json int: %d %v", v, err)
	}
	if _, err := ToInt32(NewString("7")); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}
