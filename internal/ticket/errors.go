package ticket

import (
	"errors"
	"fmt"

	"github.com/danielolaszy/tasklane/pkg/models"
)

var (
	// ErrEmptyInput is returned when the request text is blank.
	ErrEmptyInput = errors.New("request text is empty")

	// ErrTransportUnavailable is returned when the requested transport
	// cannot be used in this process.
	ErrTransportUnavailable = errors.New("transport unavailable")
)

// ErrorKind classifies a failed creation.
type ErrorKind int

const (
	// InvalidInput means the request could not be turned into a ticket.
	InvalidInput ErrorKind = iota
	// TransportUnavailable means the chosen transport cannot be used.
	TransportUnavailable
	// TrackerCallFailed means the tracker rejected the ticket or was unreachable.
	TrackerCallFailed
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case TransportUnavailable:
		return "transport unavailable"
	case TrackerCallFailed:
		return "tracker call failed"
	default:
		return "unknown"
	}
}

// CreationError reports a ticket that was not created, with enough
// context to tell which path failed.
type CreationError struct {
	Kind      ErrorKind
	Transport models.TransportChoice
	ProjectID string
	Draft     models.TicketDraft
	Err       error
}

func (e *CreationError) Error() string {
	if e.Kind == InvalidInput {
		return fmt.Sprintf("ticket not created: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("ticket not created via %s (project %s): %s: %v",
		e.Transport, e.ProjectID, e.Kind, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}
