package protocol

import "github.com/danmuck/codewire/internal/protocol/packet"

// Message tag values. Requests flow client->host, responses host->client.
const (
	TagRequestPromise       int32 = 100
	TagRequestPromiseCancel int32 = 101
	TagRequestEventListen   int32 = 102
	TagRequestEventDispose  int32 = 103

	TagResponseInitialize         int32 = 200
	TagResponsePromiseSuccess     int32 = 201
	TagResponsePromiseError       int32 = 202
	TagResponsePromiseErrorObject int32 = 203
	TagResponseEventFired         int32 = 204
)

// Message is one decoded RPC frame: a typed header plus, for some kinds,
// a body packet. Messages are transient; a value lives from one decode to
// the dispatch that consumes it.
type Message interface {
	Tag() int32
}

// RequestPromise starts a promise call on a channel.
type RequestPromise struct {
	ID      int32
	Channel string
	Method  string
	Arg     packet.Packet
}

// RequestPromiseCancel cancels an outstanding promise call.
type RequestPromiseCancel struct {
	ID int32
}

// RequestEventListen subscribes to a named event on a channel.
type RequestEventListen struct {
	ID      int32
	Channel string
	Event   string
	Arg     packet.Packet
}

// RequestEventDispose tears down an event subscription.
type RequestEventDispose struct {
	ID int32
}

// ResponseInitialize announces the host side is ready.
type ResponseInitialize struct{}

// ResponsePromiseSuccess resolves a promise call.
type ResponsePromiseSuccess struct {
	ID int32
}

// PromiseErrorData is the structured error payload of a promise failure.
type PromiseErrorData struct {
	Message string   `json:"message"`
	Name    string   `json:"name"`
	Stack   []string `json:"stack,omitempty"`
}

// ResponsePromiseError rejects a promise call with a structured error.
type ResponsePromiseError struct {
	ID  int32
	Err PromiseErrorData
}

// ResponsePromiseErrorObject rejects a promise call with an opaque packet.
type ResponsePromiseErrorObject struct {
	ID   int32
	Data packet.Packet
}

// ResponseEventFired delivers one event occurrence to a live subscription.
type ResponseEventFired struct {
	ID   int32
	Data packet.Packet
}

func (RequestPromise) Tag() int32             { return TagRequestPromise }
func (RequestPromiseCancel) Tag() int32       { return TagRequestPromiseCancel }
func (RequestEventListen) Tag() int32         { return TagRequestEventListen }
func (RequestEventDispose) Tag() int32        { return TagRequestEventDispose }
func (ResponseInitialize) Tag() int32         { return TagResponseInitialize }
func (ResponsePromiseSuccess) Tag() int32     { return TagResponsePromiseSuccess }
func (ResponsePromiseError) Tag() int32       { return TagResponsePromiseError }
func (ResponsePromiseErrorObject) Tag() int32 { return TagResponsePromiseErrorObject }
func (ResponseEventFired) Tag() int32         { return TagResponseEventFired }
