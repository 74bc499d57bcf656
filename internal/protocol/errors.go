package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMessage    = errors.New("protocol: invalid message")
	ErrUnknownMessageTag = errors.New("protocol: unknown packet type")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, fmt.Sprintf(format, args...))
}
