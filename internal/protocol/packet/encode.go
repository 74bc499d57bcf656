package packet

import (
	"fmt"
	"io"

	"github.com/danmuck/codewire/internal/protocol/vql"
)

// Encode writes p to w: one tag byte, then the tag's payload. Length and
// count prefixes use the same variable-length quantity as the decoder;
// both directions share one scheme. Native recursion is fine here, there
// is no suspension hazard on the write path.
func Encode(w io.Writer, p Packet) error {
	switch p.Type {
	case TypeUndefined:
		return writeTag(w, TypeUndefined)

	case TypeInt32:
		if err := writeTag(w, TypeInt32); err != nil {
			return err
		}
		return vql.Encode(w, p.Int)

	case TypeArray:
		if err := writeSizedTag(w, TypeArray, len(p.Items)); err != nil {
			return err
		}
		for i := range p.Items {
			if err := Encode(w, p.Items[i]); err != nil {
				return err
			}
		}
		return nil

	case TypeString, TypeBuffer, TypeVSBuffer, TypeObject:
		if err := writeSizedTag(w, p.Type, len(p.Data)); err != nil {
			return err
		}
		if len(p.Data) == 0 {
			return nil
		}
		_, err := w.Write(p.Data)
		return err

	default:
		return fmt.Errorf("%w: %d", ErrUnexpectedType, p.Type)
	}
}

func writeTag(w io.Writer, t Type) error {
	_, err := w.Write([]byte{byte(t)})
	return err
}

func writeSizedTag(w io.Writer, t Type, size int) error {
	var buf [1 + vql.MaxLen]byte
	buf[0] = byte(t)
	n := vql.EncodeBytes(buf[1:], int32(size))
	_, err := w.Write(buf[:1+n])
	return err
}
