package rpc

import (
	"bufio"
	"io"
	"sync"

	"github.com/danmuck/codewire/internal/observability"
	"github.com/danmuck/codewire/internal/protocol"
)

// wire serializes writes to one connection. Each message is encoded
// into the buffer and flushed as a unit so frames never interleave.
type wire struct {
	mu sync.Mutex
	bw *bufio.Writer
}

func newWire(w io.Writer) *wire {
	return &wire{bw: bufio.NewWriter(w)}
}

func (w *wire) send(m protocol.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := protocol.EncodeMessage(w.bw, m); err != nil {
		return err
	}
	n := w.bw.Buffered()
	if err := w.bw.Flush(); err != nil {
		return err
	}
	observability.RecordWireMessage("out", m.Tag())
	observability.RecordWireBytes("out", n)
	return nil
}

// meteredRead wraps the read half so inbound bytes land in the wire
// byte counter regardless of which layer consumes them.
type meteredRead struct {
	r io.Reader
}

func (m meteredRead) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	if n > 0 {
		observability.RecordWireBytes("in", n)
	}
	return n, err
}
