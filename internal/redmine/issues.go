package redmine

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/pkg/models"
)

// pageSize is the largest page Redmine serves for /issues.json.
const pageSize = 100

// maxPages bounds pagination so a misbehaving server cannot loop forever.
const maxPages = 50

type namedRef struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsClosed bool   `json:"is_closed"`
}

type issueJSON struct {
	ID         int       `json:"id"`
	Subject    string    `json:"subject"`
	Status     namedRef  `json:"status"`
	AssignedTo *namedRef `json:"assigned_to"`
	DueDate    string    `json:"due_date"`
}

type issueListJSON struct {
	Issues     []issueJSON `json:"issues"`
	TotalCount int         `json:"total_count"`
	Offset     int         `json:"offset"`
	Limit      int         `json:"limit"`
}

// Priority is an entry of Redmine's issue priority enumeration.
type Priority struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// Priorities lists the issue priorities defined on the server.
func (c *Client) Priorities(ctx context.Context) ([]Priority, error) {
	var body struct {
		IssuePriorities []Priority `json:"issue_priorities"`
	}
	if err := c.Get(ctx, "/enumerations/issue_priorities.json").Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to list issue priorities: %w", err)
	}
	if len(body.IssuePriorities) == 0 {
		return nil, fmt.Errorf("redmine returned no issue priorities")
	}
	return body.IssuePriorities, nil
}

// PriorityMap maps ticket priorities to Redmine priority ids.
type PriorityMap map[models.Priority]int

// ResolvePriorities maps each ticket priority to the id of the Redmine
// priority with the configured name. Names missing on the server are left
// out and logged; issues with an unmapped priority get the server default.
func ResolvePriorities(priorities []Priority, names map[models.Priority]string) PriorityMap {
	byName := make(map[string]int, len(priorities))
	for _, p := range priorities {
		byName[strings.ToLower(p.Name)] = p.ID
	}

	resolved := make(PriorityMap, len(names))
	for level, name := range names {
		id, ok := byName[strings.ToLower(name)]
		if !ok {
			logging.Warn("redmine priority not found", "priority", level.String(), "name", name)
			continue
		}
		resolved[level] = id
	}
	return resolved
}

// IssueStore implements the tracker operations on top of a Client.
type IssueStore struct {
	client     *Client
	projectID  string
	openStatus string
	priorities PriorityMap
}

// NewIssueStore creates an IssueStore for one project. openStatus is the
// status_id filter value for unresolved issues ("open" or "1|2|3").
func NewIssueStore(client *Client, projectID, openStatus string, priorities PriorityMap) *IssueStore {
	if openStatus == "" {
		openStatus = "open"
	}
	return &IssueStore{
		client:     client,
		projectID:  projectID,
		openStatus: openStatus,
		priorities: priorities,
	}
}

// Name returns the tracker name for logs.
func (s *IssueStore) Name() string {
	return "redmine"
}

// CreateIssue files draft as a new issue with a single POST.
func (s *IssueStore) CreateIssue(ctx context.Context, draft models.TicketDraft) (models.IssueRecord, error) {
	issue := map[string]any{
		"project_id":  draft.ProjectID,
		"subject":     draft.Subject,
		"description": describe(draft),
	}
	if id, ok := s.priorities[draft.Priority]; ok {
		issue["priority_id"] = id
	}
	if due := draft.DueDateString(); due != "" {
		issue["due_date"] = due
	}

	var body struct {
		Issue issueJSON `json:"issue"`
	}
	if err := s.client.Post(ctx, "/issues.json", map[string]any{"issue": issue}).Decode(&body); err != nil {
		return models.IssueRecord{}, fmt.Errorf("failed to create redmine issue: %w", err)
	}

	record := s.toRecord(body.Issue)
	if record.Subject == "" {
		record.Subject = draft.Subject
	}
	if body.Issue.ID == 0 {
		record.ID = ""
		record.URL = ""
		logging.Warn("redmine created issue without returning an id", "subject", draft.Subject)
	}
	return record, nil
}

// DueIssues returns unresolved issues due on or before today, in the
// server's due-date order. All pages are fetched.
func (s *IssueStore) DueIssues(ctx context.Context, today time.Time) ([]models.IssueRecord, error) {
	var records []models.IssueRecord

	for page := 0; page < maxPages; page++ {
		path := s.dueQuery(today, page*pageSize)
		logging.Debug("fetching due redmine issues", "path", path)

		var list issueListJSON
		if err := s.client.Get(ctx, path).Decode(&list); err != nil {
			return nil, fmt.Errorf("failed to query due issues: %w", err)
		}

		for _, issue := range list.Issues {
			records = append(records, s.toRecord(issue))
		}

		if len(list.Issues) == 0 || len(records) >= list.TotalCount {
			return records, nil
		}
	}

	logging.Warn("due issue query truncated", "pages", maxPages, "issues", len(records))
	return records, nil
}

func (s *IssueStore) dueQuery(today time.Time, offset int) string {
	query := url.Values{}
	query.Set("status_id", s.openStatus)
	query.Set("due_date", "<="+today.Format(models.DateLayout))
	query.Set("sort", "due_date:asc,id:asc")
	query.Set("limit", strconv.Itoa(pageSize))
	query.Set("offset", strconv.Itoa(offset))
	if s.projectID != "" {
		query.Set("project_id", s.projectID)
	}
	return "/issues.json?" + query.Encode()
}

func (s *IssueStore) toRecord(issue issueJSON) models.IssueRecord {
	id := strconv.Itoa(issue.ID)
	record := models.IssueRecord{
		ID:      id,
		Subject: issue.Subject,
		Status:  issue.Status.Name,
		Closed:  issue.Status.IsClosed,
		URL:     s.client.IssueURL(id),
	}
	if issue.AssignedTo != nil {
		record.AssignedTo = issue.AssignedTo.Name
	}
	if issue.DueDate != "" {
		if due, err := time.Parse(models.DateLayout, issue.DueDate); err == nil {
			record.DueDate = &due
		}
	}
	return record
}

// describe appends the assignee hint to the description, since Redmine
// needs a user id to assign and the hint is only a name.
func describe(draft models.TicketDraft) string {
	if draft.AssigneeHint == "" {
		return draft.Description
	}
	return fmt.Sprintf("%s\n\nRequested assignee: %s", draft.Description, draft.AssigneeHint)
}
