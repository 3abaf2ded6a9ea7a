package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielolaszy/tasklane/pkg/models"
)

// ErrUnparseable is reported when the backend reply holds no JSON object.
var ErrUnparseable = errors.New("unparseable completion reply")

// maxSubjectRunes caps subjects derived from raw text.
const maxSubjectRunes = 80

// partialDraft is the backend reply with every field optional. A nil field
// was missing or malformed and falls back to its default in merge.
type partialDraft struct {
	Subject     *string
	Description *string
	Priority    *string
	DueDate     *time.Time
	Assignee    *string
}

// parseReply decodes the backend reply field by field, so a malformed
// field is dropped without discarding the others.
func parseReply(reply string) (partialDraft, error) {
	object := jsonObject(reply)
	if object == "" {
		return partialDraft{}, ErrUnparseable
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(object), &fields); err != nil {
		return partialDraft{}, ErrUnparseable
	}

	partial := partialDraft{
		Subject:     stringField(fields, "subject", "title", "summary"),
		Description: stringField(fields, "description", "details"),
		Priority:    stringField(fields, "priority"),
		Assignee:    stringField(fields, "assignee", "assigned_to"),
	}
	if due := stringField(fields, "due_date", "dueDate", "due"); due != nil {
		partial.DueDate = parseDate(*due)
	}
	return partial, nil
}

// jsonObject returns the outermost {...} span of text, which also strips
// markdown code fences around the object.
func jsonObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// stringField returns the first key holding a non-blank JSON string.
func stringField(fields map[string]json.RawMessage, keys ...string) *string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		return &value
	}
	return nil
}

func parseDate(value string) *time.Time {
	for _, layout := range []string{models.DateLayout, time.RFC3339, "2006/01/02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			date := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
			return &date
		}
	}
	return nil
}

// defaults is the draft used when the backend gives nothing usable.
func defaults(raw, projectID string) models.TicketDraft {
	return models.TicketDraft{
		Subject:     subjectFrom(raw),
		Description: raw,
		Priority:    models.PriorityNormal,
		ProjectID:   projectID,
	}
}

// merge fills draft fields from partial, keeping the default for every
// field the backend left out, then applies keyword priority inference.
func merge(partial partialDraft, base models.TicketDraft, raw string) models.TicketDraft {
	draft := base
	if partial.Subject != nil {
		draft.Subject = truncateRunes(firstLine(*partial.Subject), maxSubjectRunes)
	}
	if partial.Description != nil {
		draft.Description = *partial.Description
	}
	if partial.Assignee != nil {
		draft.AssigneeHint = *partial.Assignee
	}
	if partial.DueDate != nil {
		draft.DueDate = partial.DueDate
	}
	draft.Priority = inferPriority(raw, partial.Priority)
	return draft
}

var urgencyPattern = regexp.MustCompile(`(?i)\b(urgent(ly)?|asap|immediate(ly)?|critical|emergency|high[- ]priority)\b`)

// urgencyTerms are matched as plain substrings; word boundaries do not
// apply to Japanese text.
var urgencyTerms = []string{"緊急", "至急", "急ぎ", "急いで", "大至急", "すぐに"}

func hasUrgency(text string) bool {
	if urgencyPattern.MatchString(text) {
		return true
	}
	for _, term := range urgencyTerms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// inferPriority takes the backend's suggestion as the baseline and raises
// it one level when the request or the suggestion carries an urgency
// keyword. The result is never below the baseline.
func inferPriority(raw string, suggested *string) models.Priority {
	baseline := models.PriorityNormal
	suggestion := ""
	if suggested != nil {
		suggestion = *suggested
		if parsed, ok := models.ParsePriority(suggestion); ok {
			baseline = parsed
		}
	}

	if hasUrgency(raw) || hasUrgency(suggestion) {
		return baseline.Raise()
	}
	return baseline
}

func subjectFrom(raw string) string {
	subject := truncateRunes(firstLine(raw), maxSubjectRunes)
	if subject == "" {
		return "Untitled request"
	}
	return subject
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-3]) + "..."
}
