// Package jira provides functionality for filing and querying issues in JIRA.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/pkg/models"
)

const defaultTimeout = 30 * time.Second

// defaultPriorityNames maps ticket priorities onto JIRA's stock priority scheme.
var defaultPriorityNames = map[models.Priority]string{
	models.PriorityLow:    "Low",
	models.PriorityNormal: "Medium",
	models.PriorityHigh:   "High",
	models.PriorityUrgent: "Highest",
}

// Client handles interactions with the JIRA API for one project.
type Client struct {
	client     *jira.Client
	baseURL    string
	projectKey string
	issueType  string
}

// Options configures a Client.
type Options struct {
	URL        string
	Username   string
	Token      string
	ProjectKey string
	IssueType  string
	Timeout    time.Duration

	// HTTPClient overrides the basic-auth client built from Username and Token.
	HTTPClient *http.Client
}

// basicAuthClient builds the API client. A non-positive timeout falls back
// to the default so no call is left unbounded.
func basicAuthClient(username, token string, timeout time.Duration) *http.Client {
	tp := jira.BasicAuthTransport{
		Username: username,
		Password: token,
	}
	httpClient := tp.Client()
	httpClient.Timeout = timeout
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}
	return httpClient
}

// NewClient creates a JIRA client authenticated with basic auth.
func NewClient(opts Options) (*Client, error) {
	var missing []string
	if opts.URL == "" {
		missing = append(missing, "JIRA_URL")
	}
	if opts.HTTPClient == nil && opts.Username == "" {
		missing = append(missing, "JIRA_USERNAME")
	}
	if opts.HTTPClient == nil && opts.Token == "" {
		missing = append(missing, "JIRA_TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}
	if opts.ProjectKey == "" {
		return nil, fmt.Errorf("jira project key is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = basicAuthClient(opts.Username, opts.Token, opts.Timeout)
	}

	client, err := jira.NewClient(httpClient, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	issueType := opts.IssueType
	if issueType == "" {
		issueType = "Task"
	}

	logging.Debug("jira configuration",
		"url", opts.URL,
		"project", opts.ProjectKey,
		"token", logging.MaskSensitive(opts.Token))

	return &Client{
		client:     client,
		baseURL:    strings.TrimRight(opts.URL, "/"),
		projectKey: opts.ProjectKey,
		issueType:  issueType,
	}, nil
}

// Name returns the tracker name for logs.
func (c *Client) Name() string {
	return "jira"
}

// CreateIssue files draft as a new JIRA issue in the client's project.
func (c *Client) CreateIssue(ctx context.Context, draft models.TicketDraft) (models.IssueRecord, error) {
	if c.client == nil {
		return models.IssueRecord{}, fmt.Errorf("jira client not initialized")
	}

	description := draft.Description
	if draft.AssigneeHint != "" {
		description = fmt.Sprintf("%s\n\nRequested assignee: %s", description, draft.AssigneeHint)
	}

	fields := &jira.IssueFields{
		Project:     jira.Project{Key: c.projectKey},
		Summary:     draft.Subject,
		Description: description,
		Type:        jira.IssueType{Name: c.issueType},
		Priority:    &jira.Priority{Name: defaultPriorityNames[draft.Priority]},
	}
	if draft.DueDate != nil {
		fields.Duedate = jira.Date(*draft.DueDate)
	}

	created, resp, err := c.client.Issue.CreateWithContext(ctx, &jira.Issue{Fields: fields})
	if err != nil {
		return models.IssueRecord{}, fmt.Errorf("failed to create jira issue: %w (status: %d)", err, statusCode(resp))
	}

	logging.Debug("created jira issue", "key", created.Key, "project", c.projectKey)

	return models.IssueRecord{
		ID:      created.Key,
		Subject: draft.Subject,
		DueDate: draft.DueDate,
		URL:     c.IssueURL(created.Key),
	}, nil
}

// DueIssues returns issues not in the Done category with a due date on or
// before today, ordered by due date as JIRA returns them.
func (c *Client) DueIssues(ctx context.Context, today time.Time) ([]models.IssueRecord, error) {
	if c.client == nil {
		return nil, fmt.Errorf("jira client not initialized")
	}

	jql := DueJQL(c.projectKey, today)
	logging.Debug("searching due jira issues", "jql", jql)

	var records []models.IssueRecord
	opts := &jira.SearchOptions{
		MaxResults: 100,
		Fields:     []string{"summary", "status", "assignee", "duedate"},
	}
	err := c.client.Issue.SearchPagesWithContext(ctx, jql, opts, func(issue jira.Issue) error {
		records = append(records, c.toRecord(issue))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search jira issues: %w", err)
	}

	return records, nil
}

// Priorities lists the priority names defined on the server.
func (c *Client) Priorities(ctx context.Context) ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("jira client not initialized")
	}

	priorities, resp, err := c.client.Priority.GetListWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list jira priorities: %w (status: %d)", err, statusCode(resp))
	}

	names := make([]string, 0, len(priorities))
	for _, priority := range priorities {
		names = append(names, priority.Name)
	}
	return names, nil
}

// PriorityName returns the JIRA priority used for p.
func PriorityName(p models.Priority) string {
	return defaultPriorityNames[p]
}

// DueJQL builds the query for unresolved issues due on or before today.
func DueJQL(projectKey string, today time.Time) string {
	return fmt.Sprintf(`project = "%s" AND statusCategory != Done AND duedate <= "%s" ORDER BY duedate ASC, key ASC`,
		projectKey, today.Format(models.DateLayout))
}

// IssueURL returns the browser link for an issue key.
func (c *Client) IssueURL(key string) string {
	if key == "" {
		return ""
	}
	return c.baseURL + "/browse/" + key
}

func (c *Client) toRecord(issue jira.Issue) models.IssueRecord {
	record := models.IssueRecord{
		ID:  issue.Key,
		URL: c.IssueURL(issue.Key),
	}
	if issue.Fields == nil {
		return record
	}

	record.Subject = issue.Fields.Summary
	if issue.Fields.Status != nil {
		record.Status = issue.Fields.Status.Name
		record.Closed = issue.Fields.Status.StatusCategory.Key == jira.StatusCategoryComplete
	}
	if issue.Fields.Assignee != nil {
		record.AssignedTo = issue.Fields.Assignee.DisplayName
	}
	if due := time.Time(issue.Fields.Duedate); !due.IsZero() {
		record.DueDate = &due
	}
	return record
}

func statusCode(resp *jira.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
