// Package packet owns the tagged-union value encoding of the wire format.
//
// Ownership boundary:
// - tag byte contract and per-tag payload shapes
// - stream encode/decode of one self-describing value
// - typed and diagnostic projections of a decoded value
package packet

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Type is the wire tag of one packet.
type Type uint8

const (
	TypeUndefined Type = 0
	TypeString    Type = 1
	TypeBuffer    Type = 2
	TypeVSBuffer  Type = 3
	TypeArray     Type = 4
	TypeObject    Type = 5
	TypeInt32     Type = 6

	maxType = TypeInt32
)

func (t Type) String() string {
	switch t {
	case TypeUndefined:
		return "undefined"
	case TypeString:
		return "string"
	case TypeBuffer:
		return "buffer"
	case TypeVSBuffer:
		return "vsbuffer"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	case TypeInt32:
		return "int32"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(t))
	}
}

// Packet is one decoded wire value. Exactly one payload field is
// meaningful for a given Type: Data for String/Buffer/VSBuffer/Object,
// Items for Array, Int for Int32.
//
// Buffer and VSBuffer carry the same payload shape but remain distinct
// tags on the wire; both survive a round trip unchanged.
type Packet struct {
	Type  Type
	Data  []byte
	Items []Packet
	Int   int32
}

// Undefined returns the undefined packet.
func Undefined() Packet {
	return Packet{Type: TypeUndefined}
}

// NewString builds a string packet. The payload is the UTF-8 bytes of s.
func NewString(s string) Packet {
	return Packet{Type: TypeString, Data: []byte(s)}
}

// NewBuffer builds a raw binary buffer packet.
func NewBuffer(b []byte) Packet {
	return Packet{Type: TypeBuffer, Data: b}
}

// NewVSBuffer builds a VSBuffer-tagged binary packet.
func NewVSBuffer(b []byte) Packet {
	return Packet{Type: TypeVSBuffer, Data: b}
}

// NewArray builds an array packet over items.
func NewArray(items []Packet) Packet {
	return Packet{Type: TypeArray, Items: items}
}

// NewInt32 builds a native integer packet.
func NewInt32(v int32) Packet {
	return Packet{Type: TypeInt32, Int: v}
}

// NewObject builds an object packet holding v serialized as JSON.
func NewObject(v any) (Packet, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return Packet{Type: TypeObject, Data: data}, nil
}

// Text returns the string payload. Valid only for TypeString.
func (p Packet) Text() string {
	return string(p.Data)
}

// ToInt32 returns the packet's integer value: natively for an Int32
// packet, otherwise through the object projection so integers sent as
// embedded JSON numbers still resolve.
func ToInt32(p Packet) (int32, error) {
	if p.Type == TypeInt32 {
		return p.Int, nil
	}
	return ToObject[int32](p)
}

// ToObject deserializes an object packet's JSON payload into T.
// An undefined packet reads as JSON null. Any other variant is an
// invalid-data error naming the expected and actual tags.
func ToObject[T any](p Packet) (T, error) {
	var out T
	var raw []byte
	switch p.Type {
	case TypeObject:
		raw = p.Data
	case TypeUndefined:
		raw = []byte("null")
	default:
		return out, fmt.Errorf("%w: expected an object packet, got %s", ErrInvalidData, p.Type)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: failed to parse json: %v", ErrInvalidData, err)
	}
	return out, nil
}

// ToJSON renders a diagnostic textual projection of p. It is for logs and
// tooling, never the wire: an undefined packet renders as the bare word
// undefined, which is not valid JSON.
func ToJSON(p Packet) []byte {
	return appendJSON(nil, p)
}

func appendJSON(buf []byte, p Packet) []byte {
	switch p.Type {
	case TypeUndefined:
		return append(buf, "undefined"...)
	case TypeString:
		quoted, _ := json.Marshal(string(p.Data))
		return append(buf, quoted...)
	case TypeBuffer, TypeVSBuffer:
		buf = append(buf, '[')
		for i, b := range p.Data {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = strconv.AppendUint(buf, uint64(b), 10)
		}
		return append(buf, ']')
	case TypeArray:
		buf = append(buf, '[')
		for i := range p.Items {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendJSON(buf, p.Items[i])
		}
		return append(buf, ']')
	case TypeObject:
		return append(buf, p.Data...)
	case TypeInt32:
		return strconv.AppendInt(buf, int64(p.Int), 10)
	default:
		return append(buf, "undefined"...)
	}
}
