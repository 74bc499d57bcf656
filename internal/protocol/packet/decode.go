package packet

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/danmuck/codewire/internal/protocol/vql"
)

// arrayFrame is one in-progress array during an iterative decode. A
// frame's items grow until want is reached, then the completed array
// attaches to the frame below it.
type arrayFrame struct {
	want  int
	items []Packet
}

// Decode reads one packet from r. Arrays are decoded iteratively with an
// explicit frame stack owned by this call: the stream read may block
// indefinitely between any two bytes, so nesting depth must not grow the
// goroutine stack, and no decode state may live outside the call.
//
// Decode consumes exactly the encoded byte count. Truncated input fails
// with an error; it never yields a short value.
func Decode(r io.Reader, limits Limits) (Packet, error) {
	// Synthetic top-level frame holding exactly one completed value.
	stack := []arrayFrame{{want: 1, items: make([]Packet, 0, 1)}}
	started := false

	for {
		tag, err := readTag(r, started)
		if err != nil {
			return Packet{}, err
		}
		started = true

		switch tag {
		case TypeUndefined:
			stack[len(stack)-1].items = append(stack[len(stack)-1].items, Undefined())

		case TypeInt32:
			v, err := vql.Decode(r)
			if err != nil {
				return Packet{}, err
			}
			stack[len(stack)-1].items = append(stack[len(stack)-1].items, NewInt32(v))

		case TypeArray:
			n, err := readLength(r, limits.MaxArrayItems, ErrTooManyItems)
			if err != nil {
				return Packet{}, err
			}
			if len(stack) >= limits.MaxArrayDepth {
				return Packet{}, fmt.Errorf("%w: depth %d", ErrTooDeep, len(stack))
			}
			stack = append(stack, arrayFrame{want: n, items: make([]Packet, 0, min(n, 64))})

		case TypeString, TypeBuffer, TypeVSBuffer, TypeObject:
			n, err := readLength(r, limits.MaxPayloadBytes, ErrTooLarge)
			if err != nil {
				return Packet{}, err
			}
			data := make([]byte, n)
			if _, err := io.ReadFull(r, data); err != nil {
				return Packet{}, truncated(err)
			}
			if tag == TypeString && !utf8.Valid(data) {
				return Packet{}, ErrInvalidUTF8
			}
			p := Packet{Type: tag, Data: data}
			stack[len(stack)-1].items = append(stack[len(stack)-1].items, p)

		default:
			return Packet{}, fmt.Errorf("%w: %d", ErrUnexpectedType, tag)
		}

		// Pop every frame that just reached its declared count. A
		// zero-element array completes without consuming any child.
		for {
			top := &stack[len(stack)-1]
			if len(top.items) < top.want {
				break
			}
			if len(stack) == 1 {
				return top.items[0], nil
			}
			done := NewArray(top.items)
			stack = stack[:len(stack)-1]
			stack[len(stack)-1].items = append(stack[len(stack)-1].items, done)
		}
	}
}

func readTag(r io.Reader, started bool) (Type, error) {
	var one [1]byte
	if _, err := io.ReadFull(r, one[:]); err != nil {
		// A clean EOF before any byte of the packet is not a protocol
		// error: the peer closed between values. Propagate it verbatim
		// so read loops can distinguish shutdown from corruption.
		if !started && errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, truncated(err)
	}
	return Type(one[0]), nil
}

func readLength(r io.Reader, limit int, overflowErr error) (int, error) {
	v, err := vql.Decode(r)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrInvalidData, v)
	}
	n := int(v)
	if n > limit {
		return 0, fmt.Errorf("%w: %d > %d", overflowErr, n, limit)
	}
	return n, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrInvalidData, io.ErrUnexpectedEOF)
	}
	return err
}
