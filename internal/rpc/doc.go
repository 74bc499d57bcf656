// Package rpc layers promise calls and event subscriptions over the
// framed wire protocol. A Client drives requests from the tool side; a
// Server dispatches them to registered channels on the host side.
//
// Ownership boundary: rpc owns request ids, the pending-call table, and
// the single read goroutine per connection. It does not own the
// connection lifecycle beyond poisoning outstanding calls when the
// transport dies; dialing and listening belong to the binaries.
package rpc
