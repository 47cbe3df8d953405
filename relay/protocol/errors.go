package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed        = errors.New("malformed message")
	ErrMissingField     = errors.New("missing field")
	ErrUnknownType      = errors.New("unknown message type")
	ErrInvalidID        = errors.New("invalid message id")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// maximum number of raw bytes kept in a DecodeError
const excerptLen = 64

// DecodeError reports an inbound frame that does not form a valid envelope.
type DecodeError struct {
	Reason  error  // one of the Err* sentinels above
	Detail  string // offending field or parser message
	Excerpt string // leading bytes of the frame
}

func newDecodeError(reason error, detail string, data []byte) *DecodeError {
	ex := data
	if len(ex) > excerptLen {
		ex = ex[:excerptLen]
	}
	return &DecodeError{Reason: reason, Detail: detail, Excerpt: string(ex)}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %v: %s", e.Reason, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Reason
}

// IsDecodeError reports whether err is, or wraps, a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
