package protocol

import (
	"fmt"
	"io"

	"github.com/danmuck/codewire/internal/protocol/packet"
)

// EncodeMessage writes m to w: the header array, then the body packet for
// kinds that carry one, as two independent top-level values. Callers
// should buffer w and flush once per message so a reader never observes a
// half-written frame.
func EncodeMessage(w io.Writer, m Message) error {
	switch msg := m.(type) {
	case RequestPromise:
		if err := encodeHeader(w, msg.Tag(), packet.NewInt32(msg.ID), packet.NewString(msg.Channel), packet.NewString(msg.Method)); err != nil {
			return err
		}
		return packet.Encode(w, msg.Arg)

	case RequestPromiseCancel:
		return encodeHeader(w, msg.Tag(), packet.NewInt32(msg.ID))

	case RequestEventListen:
		if err := encodeHeader(w, msg.Tag(), packet.NewInt32(msg.ID), packet.NewString(msg.Channel), packet.NewString(msg.Event)); err != nil {
			return err
		}
		return packet.Encode(w, msg.Arg)

	case RequestEventDispose:
		return encodeHeader(w, msg.Tag(), packet.NewInt32(msg.ID))

	case ResponseInitialize:
		return encodeHeader(w, msg.Tag())

	case ResponsePromiseSuccess:
		return encodeHeader(w, msg.Tag(), packet.NewInt32(msg.ID))

	case ResponsePromiseError:
		if err := encodeHeader(w, msg.Tag(), packet.NewInt32(msg.ID)); err != nil {
			return err
		}
		data, err := packet.NewObject(msg.Err)
		if err != nil {
			return err
		}
		return packet.Encode(w, data)

	case ResponsePromiseErrorObject:
		if err := encodeHeader(w, msg.Tag(), packet.NewInt32(msg.ID)); err != nil {
			return err
		}
		return packet.Encode(w, msg.Data)

	case ResponseEventFired:
		if err := encodeHeader(w, msg.Tag(), packet.NewInt32(msg.ID)); err != nil {
			return err
		}
		return packet.Encode(w, msg.Data)

	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessageTag, m)
	}
}

func encodeHeader(w io.Writer, tag int32, fields ...packet.Packet) error {
	items := make([]packet.Packet, 0, 1+len(fields))
	items = append(items, packet.NewInt32(tag))
	items = append(items, fields...)
	return packet.Encode(w, packet.NewArray(items))
}
