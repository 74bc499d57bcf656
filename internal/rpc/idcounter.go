package rpc

import "sync/atomic"

// IDCounter allocates correlation ids for one connection. Each Client
// owns its own counter, so ids are unique per connection rather than
// per process; two connections may reuse the same numbers safely.
type IDCounter struct {
	n atomic.Int32
}

func (c *IDCounter) Next() int32 {
	return c.n.Add(1)
}
