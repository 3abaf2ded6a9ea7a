// Package models defines data structures shared across the application.
package models

import (
	"strings"
	"time"
)

// Priority is the urgency level of a ticket draft.
type Priority int

const (
	// PriorityLow is for work that can wait.
	PriorityLow Priority = iota
	// PriorityNormal is the default when nothing suggests otherwise.
	PriorityNormal
	// PriorityHigh is for work that should be picked up soon.
	PriorityHigh
	// PriorityUrgent is the highest level and the cap for upgrades.
	PriorityUrgent
)

// String returns the canonical name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityNormal:
		return "Normal"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	default:
		return "Normal"
	}
}

// Raise returns the next priority level, capped at PriorityUrgent.
func (p Priority) Raise() Priority {
	if p >= PriorityUrgent {
		return PriorityUrgent
	}
	if p < PriorityLow {
		return PriorityNormal
	}
	return p + 1
}

// ParsePriority maps a priority name to a Priority. Matching is
// case-insensitive and ignores surrounding whitespace. The second return
// value is false when the name is not recognized.
func ParsePriority(name string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return PriorityLow, true
	case "normal", "medium":
		return PriorityNormal, true
	case "high":
		return PriorityHigh, true
	case "urgent", "immediate":
		return PriorityUrgent, true
	}
	return PriorityNormal, false
}

// TicketDraft is the structured, not-yet-submitted representation of a
// ticket built from free text.
type TicketDraft struct {
	// Subject is the one-line summary of the ticket. Never empty on submission.
	Subject string

	// Description is the body of the ticket.
	Description string

	// Priority is the inferred urgency level.
	Priority Priority

	// AssigneeHint is an optional name suggested by the request text.
	AssigneeHint string

	// DueDate is the optional due date, date part only.
	DueDate *time.Time

	// ProjectID identifies the tracker project the ticket is filed in.
	ProjectID string
}

// DueDateString returns the due date formatted as YYYY-MM-DD, or an empty
// string when no due date is set.
func (d TicketDraft) DueDateString() string {
	if d.DueDate == nil {
		return ""
	}
	return d.DueDate.Format(DateLayout)
}

// DateLayout is the wire format for dates exchanged with trackers.
const DateLayout = "2006-01-02"

// TransportChoice is the network path used to create an issue.
type TransportChoice int

const (
	// DirectRest submits the issue with a single REST call to the tracker.
	DirectRest TransportChoice = iota
	// ProtocolBridge submits the issue through the tool-calling bridge.
	ProtocolBridge
)

// String returns a readable transport name for logs and errors.
func (t TransportChoice) String() string {
	switch t {
	case DirectRest:
		return "direct-rest"
	case ProtocolBridge:
		return "protocol-bridge"
	default:
		return "unknown"
	}
}

// IssueRecord is an issue as reported by the tracker.
type IssueRecord struct {
	// ID is the tracker identifier (numeric id for Redmine, key for JIRA).
	ID string

	// Subject is the issue's summary line.
	Subject string

	// Status is the tracker's status name (e.g. "New", "In Progress").
	Status string

	// Closed reports whether the status is a closed-equivalent state.
	Closed bool

	// AssignedTo is the assignee's display name, empty when unassigned.
	AssignedTo string

	// DueDate is the optional due date.
	DueDate *time.Time

	// URL is a browser link to the issue when one can be built.
	URL string
}

// DeliveryStatus is the terminal outcome of a reminder run.
type DeliveryStatus string

const (
	// StatusSent means the digest was delivered.
	StatusSent DeliveryStatus = "sent"
	// StatusSkippedEmpty means no issues matched and nothing was sent.
	StatusSkippedEmpty DeliveryStatus = "skipped_empty"
	// StatusFailedQuery means the tracker query failed.
	StatusFailedQuery DeliveryStatus = "failed_query"
	// StatusFailedDelivery means the digest could not be delivered.
	StatusFailedDelivery DeliveryStatus = "failed_delivery"
)

// ReminderRun records one execution of the reminder job.
type ReminderRun struct {
	ScheduledAt    time.Time
	IssuesFound    int
	DeliveryStatus DeliveryStatus
	Duration       time.Duration
	Err            error
}
