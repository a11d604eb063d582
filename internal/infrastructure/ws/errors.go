package ws

import (
	"errors"
	"fmt"
)

var ErrSocketClosed = errors.New("socket closed")

// SendError records a failed socket write. The manager drops the connection
// and never surfaces it to the sender.
type SendError struct {
	UserID string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s failed: %v", e.UserID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// FrameError is answered with an error frame; the connection stays open.
type FrameError struct {
	Code    string
	Message string
}

func (e *FrameError) Error() string {
	return e.Code + ": " + e.Message
}

func missingField(frameType, field string) *FrameError {
	return &FrameError{Code: CodeMissingField, Message: fmt.Sprintf("%s requires %s", frameType, field)}
}
