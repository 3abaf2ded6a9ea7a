// Package extract turns free-form request text into a ticket draft.
//
// Extraction never fails: when the completion backend is unreachable or
// replies with something unusable, the draft is built from defaults and
// the verbatim request text, and the reason is reported as Degraded.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/pkg/models"
)

// ErrBackendUnavailable is reported when the completion call fails.
var ErrBackendUnavailable = errors.New("completion backend unavailable")

const systemInstruction = `You turn a user's request into an issue-tracker ticket.
Reply with a single JSON object and nothing else, using these keys:
  "subject":     a short summary of the request (required)
  "description": the full details of the request, including everything the user said
  "priority":    one of "Low", "Normal", "High", "Urgent"
  "due_date":    the due date as YYYY-MM-DD, or "" when the request names none
  "assignee":    the person the request should be assigned to, or "" when none is named
Choose "Urgent" when the request says it is urgent, critical, or needed immediately.
Otherwise choose "Normal" unless the request clearly asks for another level.
Resolve relative dates such as "tomorrow" or "next Friday" against today's date.
Write subject and description in the language of the request.`

// Result is the outcome of one extraction.
type Result struct {
	Draft models.TicketDraft

	// Degraded is non-nil when some or all fields fell back to defaults.
	Degraded error

	// Truncated reports that the request was cut before it was sent to
	// the backend.
	Truncated bool
}

// Extractor converts raw text into ticket drafts.
type Extractor struct {
	completer      Completer
	projectID      string
	maxInputLength int
	timeout        time.Duration
	location       *time.Location
	now            func() time.Time
}

// Options configures an Extractor.
type Options struct {
	ProjectID      string
	MaxInputLength int
	Timeout        time.Duration
	Location       *time.Location
}

// New creates an Extractor. A nil completer is allowed and makes every
// extraction degrade to defaults.
func New(completer Completer, opts Options) *Extractor {
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Extractor{
		completer:      completer,
		projectID:      opts.ProjectID,
		maxInputLength: opts.MaxInputLength,
		timeout:        timeout,
		location:       location,
		now:            time.Now,
	}
}

// Extract derives a ticket draft from rawText.
func (e *Extractor) Extract(ctx context.Context, rawText string) Result {
	raw := strings.TrimSpace(rawText)
	result := Result{Draft: defaults(rawText, e.projectID)}
	result.Draft.Priority = inferPriority(raw, nil)

	if e.completer == nil {
		result.Degraded = fmt.Errorf("%w: no completer configured", ErrBackendUnavailable)
		return result
	}

	input := raw
	if e.maxInputLength > 0 && utf8.RuneCountInString(input) > e.maxInputLength {
		input = string([]rune(input)[:e.maxInputLength])
		result.Truncated = true
		logging.Warn("request text truncated before extraction",
			"runes", utf8.RuneCountInString(raw),
			"limit", e.maxInputLength)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.completer.Complete(callCtx, systemInstruction, e.userMessage(input))
	if err != nil {
		result.Degraded = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		logging.Warn("extraction degraded to defaults", "reason", result.Degraded)
		return result
	}

	partial, err := parseReply(reply)
	if err != nil {
		result.Degraded = err
		logging.Warn("extraction degraded to defaults",
			"reason", err,
			"reply_length", len(reply))
		return result
	}

	result.Draft = merge(partial, result.Draft, raw)
	logging.Debug("extracted ticket draft",
		"subject", result.Draft.Subject,
		"priority", result.Draft.Priority.String(),
		"due_date", result.Draft.DueDateString())
	return result
}

func (e *Extractor) userMessage(input string) string {
	today := e.now().In(e.location).Format(models.DateLayout)
	return fmt.Sprintf("Today is %s.\n\n--- Request ---\n%s", today, input)
}
