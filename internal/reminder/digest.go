package reminder

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielolaszy/tasklane/pkg/models"
)

const (
	unassignedMarker = "unassigned"
	noDueDateMarker  = "no due date"
)

// FormatDigest renders issues as one message: a header and one block per
// issue, in the order given. When maxLength is positive and the message
// would exceed it (in characters), trailing blocks are replaced by a
// single "...and K more" line.
func FormatDigest(issues []models.IssueRecord, today time.Time, maxLength int) string {
	header := digestHeader(issues, today)

	blocks := make([]string, len(issues))
	for i, issue := range issues {
		blocks[i] = issueBlock(issue, today)
	}

	if maxLength <= 0 {
		return header + "\n\n" + strings.Join(blocks, "\n\n")
	}

	var b strings.Builder
	b.WriteString(header)
	length := utf8.RuneCountInString(header)

	for i, block := range blocks {
		added := 2 + utf8.RuneCountInString(block)
		reserve := 0
		if i < len(blocks)-1 {
			reserve = 2 + utf8.RuneCountInString(moreLine(len(blocks)-i-1))
		}
		if length+added+reserve > maxLength {
			b.WriteString("\n\n")
			b.WriteString(moreLine(len(blocks) - i))
			return b.String()
		}
		b.WriteString("\n\n")
		b.WriteString(block)
		length += added
	}
	return b.String()
}

func moreLine(remaining int) string {
	return fmt.Sprintf("...and %d more", remaining)
}

func digestHeader(issues []models.IssueRecord, today time.Time) string {
	overdue, dueToday := 0, 0
	for _, issue := range issues {
		switch dueState(issue, today) {
		case "overdue":
			overdue++
		case "due today":
			dueToday++
		}
	}

	noun := "issues are"
	if len(issues) == 1 {
		noun = "issue is"
	}
	return fmt.Sprintf("Reminder for %s\n%d open %s overdue or due today (%d overdue, %d due today).",
		today.Format(models.DateLayout), len(issues), noun, overdue, dueToday)
}

func issueBlock(issue models.IssueRecord, today time.Time) string {
	assignee := issue.AssignedTo
	if assignee == "" {
		assignee = unassignedMarker
	}

	due := noDueDateMarker
	if issue.DueDate != nil {
		due = issue.DueDate.Format(models.DateLayout)
		if state := dueState(issue, today); state != "" {
			due += " (" + state + ")"
		}
	}

	lines := []string{
		fmt.Sprintf("#%s %s", issue.ID, issue.Subject),
		"  Assignee: " + assignee,
		"  Status: " + issue.Status,
		"  Due: " + due,
	}
	if issue.URL != "" {
		lines = append(lines, "  "+issue.URL)
	}
	return strings.Join(lines, "\n")
}

// dueState compares calendar dates only.
func dueState(issue models.IssueRecord, today time.Time) string {
	if issue.DueDate == nil {
		return ""
	}
	due := issue.DueDate.Format(models.DateLayout)
	now := today.Format(models.DateLayout)
	switch {
	case due < now:
		return "overdue"
	case due == now:
		return "due today"
	default:
		return ""
	}
}
