package rpc

import (
	"errors"
	"fmt"

	"github.com/danmuck/codewire/internal/protocol/packet"
)

var (
	ErrSessionClosed    = errors.New("rpc: session closed")
	ErrChannelNotFound  = errors.New("rpc: channel not found")
	ErrMethodNotFound   = errors.New("rpc: method not found")
	ErrEventNotFound    = errors.New("rpc: event not found")
	ErrDuplicateChannel = errors.New("rpc: channel already registered")
	ErrAddressRequired  = errors.New("rpc: address required")
)

// RemoteError is a structured promise rejection from the peer.
type RemoteError struct {
	Name    string
	Message string
	Stack   []string
}

func (e *RemoteError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("rpc: remote error: %s", e.Message)
	}
	return fmt.Sprintf("rpc: remote %s: %s", e.Name, e.Message)
}

// RemoteObjectError is an opaque promise rejection: the peer sent a
// payload that does not fit the structured error shape.
type RemoteObjectError struct {
	Data packet.Packet
}

func (e *RemoteObjectError) Error() string {
	return fmt.Sprintf("rpc: remote error object: %s", packet.ToJSON(e.Data))
}
