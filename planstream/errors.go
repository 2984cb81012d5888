package planstream

import (
	"errors"
	"fmt"

	"github.com/82deutschmark/PlanExe-sub001/protocol"
)

var (
	// ErrEmptyPlanID is returned by Start when no plan id is given.
	ErrEmptyPlanID = errors.New("plan id is empty")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrInvalidState is returned when an operation is not valid in the
	// session's current status.
	ErrInvalidState = errors.New("invalid session state")
)

// HandshakeError reports a failed connection attempt.
type HandshakeError struct {
	PlanID string
	Cause  error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake for plan %s failed: %v", e.PlanID, e.Cause)
}

func (e *HandshakeError) Unwrap() error {
	return e.Cause
}

// StreamError reports a failure signaled inside the stream, either by
// an interaction ending in error or by the connection closing
// uncleanly.
type StreamError struct {
	PlanID        string
	InteractionID protocol.InteractionID
	Message       string
}

func (e *StreamError) Error() string {
	if e.InteractionID != "" {
		return fmt.Sprintf("plan %s interaction %s: %s", e.PlanID, e.InteractionID, e.Message)
	}
	return fmt.Sprintf("plan %s: %s", e.PlanID, e.Message)
}
