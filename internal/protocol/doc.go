// Package protocol owns the message framing layer of the wire contract.
//
// Ownership boundary:
// - message tag table (requests 100..103, responses 200..204)
// - header array shape per message kind
// - body packet attachment for kinds that carry one
//
// Value encoding primitives live below in packet and vql.
package protocol
