package protocol

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/danmuck/codewire/internal/protocol/packet"
	"github.com/danmuck/codewire/internal/testutil/testlog"
)

func TestDecodeRequestPromiseFixture(t *testing.T) {
	testlog.Start(t)
	// Header array of four elements (tag 100, id 0, "testchannel",
	// "marco") followed by an undefined body packet.
	wire := []byte{
		4, 4,
		6, 100,
		6, 0,
		1, 11, 't', 'e', 's', 't', 'c', 'h', 'a', 'n', 'n', 'e', 'l',
		1, 5, 'm', 'a', 'r', 'c', 'o',
		0,
	}
	msg, err := DecodeMessage(bytes.NewReader(wire), packet.DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := RequestPromise{
		ID:      0,
		Channel: "testchannel",
		Method:  "marco",
		Arg:     packet.Undefined(),
	}
	got, ok := msg.(RequestPromise)
	if !ok {
		t.Fatalf("expected RequestPromise, got %T", msg)
	}
	if got.ID != want.ID || got.Channel != want.Channel || got.Method != want.Method || got.Arg.Type != packet.TypeUndefined {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	var buf bytes.Buffer
	if err := EncodeMessage(&buf, m); err != nil {
		t.Fatalf("encode %T: %v", m, err)
	}
	r := bytes.NewReader(buf.Bytes())
	got, err := DecodeMessage(r, packet.DefaultLimits())
	if err != nil {
		t.Fatalf("decode %T: %v", m, err)
	}
	if r.Len() != 0 {
		t.Fatalf("decode %T left %d trailing bytes", m, r.Len())
	}
	return got
}

func TestRoundTripEveryKind(t *testing.T) {
	testlog.Start(t)
	arg, err := packet.NewObject(map[string]any{"path": "/tmp/x", "line": 3})
	if err != nil {
		t.Fatalf("new object: %v", err)
	}
	cases := []Message{
		RequestPromise{ID: 1, Channel: "files", Method: "open", Arg: arg},
		RequestPromise{ID: 2, Channel: "files", Method: "stat", Arg: packet.Undefined()},
		RequestPromiseCancel{ID: 2},
		RequestEventListen{ID: 3, Channel: "watch", Event: "changed", Arg: arg},
		RequestEventDispose{ID: 3},
		ResponseInitialize{},
		ResponsePromiseSuccess{ID: 1},
		ResponsePromiseError{ID: 5, Err: PromiseErrorData{Message: "boom", Name: "Error"}},
		ResponsePromiseError{ID: 6, Err: PromiseErrorData{
			Message: "lost",
			Name:    "TypeError",
			Stack:   []string{"at a()", "at b()"},
		}},
		ResponsePromiseErrorObject{ID: 7, Data: packet.NewString("raw")},
		ResponseEventFired{ID: 3, Data: packet.NewVSBuffer([]byte{1, 2, 3})},
	}
	for _, m := range cases {
		got := roundTrip(t, m)
		if !reflect.DeepEqual(got, m) {
			t.Fatalf("round trip %T:\n got  %+v\n want %+v", m, got, m)
		}
	}
}

func TestDecodeHeaderNotArray(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := packet.Encode(&buf, packet.NewString("nope")); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err := DecodeMessage(bytes.NewReader(buf.Bytes()), packet.DefaultLimits())
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	header := packet.NewArray([]packet.Packet{packet.NewInt32(150), packet.NewInt32(1)})
	if err := packet.Encode(&buf, header); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err := DecodeMessage(bytes.NewReader(buf.Bytes()), packet.DefaultLimits())
	if !errors.Is(err, ErrUnknownMessageTag) {
		t.Fatalf("expected ErrUnknownMessageTag, got %v", err)
	}
}

func TestDecodeHeaderFieldTypeMismatch(t *testing.T) {
	testlog.Start(t)
	// Channel name must be a string; an int32 there names the field in
	// the error.
	header := packet.NewArray([]packet.Packet{
		packet.NewInt32(TagRequestPromise),
		packet.NewInt32(9),
		packet.NewInt32(42),
		packet.NewString("marco"),
	})
	var buf bytes.Buffer
	if err := packet.Encode(&buf, header); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := packet.Encode(&buf, packet.Undefined()); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	_, err := DecodeMessage(bytes.NewReader(buf.Bytes()), packet.DefaultLimits())
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if got := err.Error(); !bytes.Contains([]byte(got), []byte("channel name")) {
		t.Fatalf("error does not name the field: %q", got)
	}
}

func TestDecodeMissingID(t *testing.T) {
	testlog.Start(t)
	header := packet.NewArray([]packet.Packet{packet.NewInt32(TagResponsePromiseSuccess)})
	var buf bytes.Buffer
	if err := packet.Encode(&buf, header); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err := DecodeMessage(bytes.NewReader(buf.Bytes()), packet.DefaultLimits())
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestDecodeMissingBodyFails(t *testing.T) {
	testlog.Start(t)
	header := packet.NewArray([]packet.Packet{
		packet.NewInt32(TagRequestPromise),
		packet.NewInt32(1),
		packet.NewString("files"),
		packet.NewString("open"),
	})
	var buf bytes.Buffer
	if err := packet.Encode(&buf, header); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err := DecodeMessage(bytes.NewReader(buf.Bytes()), packet.DefaultLimits())
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage for missing body, got %v", err)
	}
}

// readThenFail serves the wrapped bytes and then fails the way a dying
// transport would, instead of reporting a clean end of stream.
type readThenFail struct {
	r   io.Reader
	err error
}

func (f readThenFail) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, f.err
	}
	return n, err
}

func TestDecodeBodyTransportErrorPropagates(t *testing.T) {
	testlog.Start(t)
	header := packet.NewArray([]packet.Packet{
		packet.NewInt32(TagRequestPromise),
		packet.NewInt32(1),
		packet.NewString("files"),
		packet.NewString("open"),
	})
	var buf bytes.Buffer
	if err := packet.Encode(&buf, header); err != nil {
		t.Fatalf("encode: %v", err)
	}
	errReset := errors.New("connection reset")
	_, err := DecodeMessage(readThenFail{r: bytes.NewReader(buf.Bytes()), err: errReset}, packet.DefaultLimits())
	if !errors.Is(err, errReset) {
		t.Fatalf("expected the transport error, got %v", err)
	}
	if errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("transport failure reported as invalid message: %v", err)
	}
}

func TestDecodeBodyCorruptionKeepsCause(t *testing.T) {
	testlog.Start(t)
	header := packet.NewArray([]packet.Packet{
		packet.NewInt32(TagRequestPromise),
		packet.NewInt32(1),
		packet.NewString("files"),
		packet.NewString("open"),
	})
	var buf bytes.Buffer
	if err := packet.Encode(&buf, header); err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Body is a string packet whose payload is not UTF-8.
	buf.Write([]byte{byte(packet.TypeString), 2, 0xff, 0xfe})
	_, err := DecodeMessage(bytes.NewReader(buf.Bytes()), packet.DefaultLimits())
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if !errors.Is(err, packet.ErrInvalidUTF8) {
		t.Fatalf("cause not preserved in the chain: %v", err)
	}
}

func TestPromiseErrorBodyIsTyped(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	header := packet.NewArray([]packet.Packet{
		packet.NewInt32(TagResponsePromiseError),
		packet.NewInt32(5),
	})
	if err := packet.Encode(&buf, header); err != nil {
		t.Fatalf("encode header: %v", err)
	}
	// Body is a string packet, not an object: typed extraction must fail.
	if err := packet.Encode(&buf, packet.NewString("boom")); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	if _, err := DecodeMessage(bytes.NewReader(buf.Bytes()), packet.DefaultLimits()); err == nil {
		t.Fatalf("expected typed-extraction failure")
	}
}

func TestTagTransmittedAsJSONNumber(t *testing.T) {
	testlog.Start(t)
	// The tag position tolerates an object-encoded integer.
	tag, err := packet.NewObject(int32(TagResponseInitialize))
	if err != nil {
		t.Fatalf("new object: %v", err)
	}
	var buf bytes.Buffer
	if err := packet.Encode(&buf, packet.NewArray([]packet.Packet{tag})); err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := DecodeMessage(bytes.NewReader(buf.Bytes()), packet.DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := msg.(ResponseInitialize); !ok {
		t.Fatalf("expected ResponseInitialize, got %T", msg)
	}
}
