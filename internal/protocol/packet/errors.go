package packet

import "errors"

var (
	ErrUnexpectedType = errors.New("packet: unexpected packet type")
	ErrInvalidUTF8    = errors.New("packet: invalid utf-8 in string")
	ErrInvalidData    = errors.New("packet: invalid data")
	ErrTooLarge       = errors.New("packet: length exceeds limit")
	ErrTooManyItems   = errors.New("packet: array count exceeds limit")
	ErrTooDeep        = errors.New("packet: array nesting exceeds limit")
)
