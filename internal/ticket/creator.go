// Package ticket turns request text into a tracker issue.
package ticket

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielolaszy/tasklane/internal/extract"
	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/pkg/models"
)

// Extractor builds a draft from request text.
type Extractor interface {
	Extract(ctx context.Context, rawText string) extract.Result
}

// Submitter files one issue. Both the tracker and the bridge satisfy it.
type Submitter interface {
	CreateIssue(ctx context.Context, draft models.TicketDraft) (models.IssueRecord, error)
	Name() string
}

// Creation is a successfully created ticket.
type Creation struct {
	Issue     models.IssueRecord
	Draft     models.TicketDraft
	Transport models.TransportChoice

	// Degraded is the reason extraction fell back to defaults, if it did.
	Degraded error
}

// Creator orchestrates extraction, transport selection and submission.
type Creator struct {
	extractor Extractor
	selector  Selector
	direct    Submitter
	bridge    Submitter
}

// NewCreator wires a Creator. bridge may be nil when none is configured.
func NewCreator(extractor Extractor, selector Selector, direct, bridge Submitter) *Creator {
	return &Creator{
		extractor: extractor,
		selector:  selector,
		direct:    direct,
		bridge:    bridge,
	}
}

// Create extracts a draft from rawText and submits it over exactly one
// transport. At most one creation call is made and a failure is returned
// without trying the other transport.
func (c *Creator) Create(ctx context.Context, rawText string, advanced bool) (Creation, error) {
	if strings.TrimSpace(rawText) == "" {
		return Creation{}, &CreationError{Kind: InvalidInput, Err: ErrEmptyInput}
	}

	result := c.extractor.Extract(ctx, rawText)
	draft := result.Draft
	if result.Degraded != nil {
		logging.Warn("creating ticket from default fields", "reason", result.Degraded)
	}

	if draft.ProjectID == "" {
		return Creation{}, &CreationError{
			Kind:  InvalidInput,
			Draft: draft,
			Err:   fmt.Errorf("project id is not configured"),
		}
	}

	choice, err := c.selector.Select(advanced)
	if err != nil {
		return Creation{}, &CreationError{
			Kind:      TransportUnavailable,
			Transport: choice,
			ProjectID: draft.ProjectID,
			Draft:     draft,
			Err:       err,
		}
	}

	submitter := c.submitter(choice)
	if submitter == nil {
		return Creation{}, &CreationError{
			Kind:      TransportUnavailable,
			Transport: choice,
			ProjectID: draft.ProjectID,
			Draft:     draft,
			Err:       ErrTransportUnavailable,
		}
	}

	logging.Info("submitting ticket",
		"transport", choice.String(),
		"backend", submitter.Name(),
		"project_id", draft.ProjectID,
		"priority", draft.Priority.String())

	issue, err := submitter.CreateIssue(ctx, draft)
	if err != nil {
		return Creation{}, &CreationError{
			Kind:      TrackerCallFailed,
			Transport: choice,
			ProjectID: draft.ProjectID,
			Draft:     draft,
			Err:       err,
		}
	}

	logging.Info("ticket created", "id", issue.ID, "transport", choice.String())
	return Creation{
		Issue:     issue,
		Draft:     draft,
		Transport: choice,
		Degraded:  result.Degraded,
	}, nil
}

func (c *Creator) submitter(choice models.TransportChoice) Submitter {
	if choice == models.ProtocolBridge {
		return c.bridge
	}
	return c.direct
}
