package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/codewire/internal/protocol/packet"
	"github.com/danmuck/codewire/internal/protocol/vql"
)

// DecodeMessage reads one message from r: a header packet, then — for the
// kinds that define one — exactly one more top-level packet as the body.
// There is no outer envelope; framing is byte-order only, so r must have
// a single read owner for the life of the connection.
func DecodeMessage(r io.Reader, limits packet.Limits) (Message, error) {
	header, err := packet.Decode(r, limits)
	if err != nil {
		return nil, err
	}
	if header.Type != packet.TypeArray {
		return nil, invalidf("expected header to be array, got %s", header.Type)
	}
	parts := header.Items
	if len(parts) == 0 {
		return nil, invalidf("expected packet type, got empty header")
	}
	tag, err := packet.ToInt32(parts[0])
	if err != nil {
		return nil, invalidf("expected packet type, got %s", parts[0].Type)
	}

	switch tag {
	case TagRequestPromise:
		id, channel, method, err := callHeader(parts)
		if err != nil {
			return nil, err
		}
		arg, err := body(r, limits, "promise body")
		if err != nil {
			return nil, err
		}
		return RequestPromise{ID: id, Channel: channel, Method: method, Arg: arg}, nil

	case TagRequestEventListen:
		id, channel, event, err := callHeader(parts)
		if err != nil {
			return nil, err
		}
		arg, err := body(r, limits, "listen body")
		if err != nil {
			return nil, err
		}
		return RequestEventListen{ID: id, Channel: channel, Event: event, Arg: arg}, nil

	case TagRequestPromiseCancel:
		id, err := headerID(parts)
		if err != nil {
			return nil, err
		}
		return RequestPromiseCancel{ID: id}, nil

	case TagRequestEventDispose:
		id, err := headerID(parts)
		if err != nil {
			return nil, err
		}
		return RequestEventDispose{ID: id}, nil

	case TagResponseInitialize:
		return ResponseInitialize{}, nil

	case TagResponsePromiseSuccess:
		id, err := headerID(parts)
		if err != nil {
			return nil, err
		}
		return ResponsePromiseSuccess{ID: id}, nil

	case TagResponsePromiseError:
		id, err := headerID(parts)
		if err != nil {
			return nil, err
		}
		raw, err := body(r, limits, "error body")
		if err != nil {
			return nil, err
		}
		data, err := packet.ToObject[PromiseErrorData](raw)
		if err != nil {
			return nil, err
		}
		return ResponsePromiseError{ID: id, Err: data}, nil

	case TagResponsePromiseErrorObject:
		id, err := headerID(parts)
		if err != nil {
			return nil, err
		}
		data, err := body(r, limits, "error body")
		if err != nil {
			return nil, err
		}
		return ResponsePromiseErrorObject{ID: id, Data: data}, nil

	case TagResponseEventFired:
		id, err := headerID(parts)
		if err != nil {
			return nil, err
		}
		data, err := body(r, limits, "event body")
		if err != nil {
			return nil, err
		}
		return ResponseEventFired{ID: id, Data: data}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageTag, tag)
	}
}

// headerID extracts the correlation id at position 1.
func headerID(parts []packet.Packet) (int32, error) {
	if len(parts) < 2 || parts[1].Type != packet.TypeInt32 {
		return 0, invalidf("expected request id, got %s", headerPart(parts, 1))
	}
	return parts[1].Int, nil
}

// callHeader extracts id, channel name, and call name for the two request
// kinds that address a channel (promise and event listen).
func callHeader(parts []packet.Packet) (int32, string, string, error) {
	id, err := headerID(parts)
	if err != nil {
		return 0, "", "", err
	}
	if len(parts) < 3 || parts[2].Type != packet.TypeString {
		return 0, "", "", invalidf("expected channel name, got %s", headerPart(parts, 2))
	}
	if len(parts) < 4 || parts[3].Type != packet.TypeString {
		return 0, "", "", invalidf("expected request name, got %s", headerPart(parts, 3))
	}
	return id, parts[2].Text(), parts[3].Text(), nil
}

// body decodes the independent top-level packet that follows the header.
// Malformed or truncated wire data becomes an invalid-message error with
// the cause kept in the chain; transport failures pass through verbatim
// so callers can still classify them.
func body(r io.Reader, limits packet.Limits, what string) (packet.Packet, error) {
	p, err := packet.Decode(r, limits)
	if err != nil {
		if wireCorruption(err) {
			return packet.Packet{}, fmt.Errorf("%w: expected %s: %w", ErrInvalidMessage, what, err)
		}
		return packet.Packet{}, err
	}
	return p, nil
}

// wireCorruption reports whether err describes bad bytes rather than a
// failing transport. A stream that ends mid-message counts as bad bytes:
// the header promised a body that never arrived.
func wireCorruption(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, vql.ErrTruncated) ||
		errors.Is(err, packet.ErrUnexpectedType) ||
		errors.Is(err, packet.ErrInvalidData) ||
		errors.Is(err, packet.ErrInvalidUTF8) ||
		errors.Is(err, packet.ErrTooLarge) ||
		errors.Is(err, packet.ErrTooManyItems) ||
		errors.Is(err, packet.ErrTooDeep)
}

func headerPart(parts []packet.Packet, i int) string {
	if i >= len(parts) {
		return "missing field"
	}
	return parts[i].Type.String()
}
