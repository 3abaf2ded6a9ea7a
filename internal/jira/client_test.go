package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielolaszy/tasklane/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		URL:        server.URL,
		ProjectKey: "OPS",
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClientCredentialValidation(t *testing.T) {
	testCases := []struct {
		name          string
		opts          Options
		errorContains string
	}{
		{
			name:          "Missing URL",
			opts:          Options{Username: "test@example.com", Token: "test-token", ProjectKey: "OPS"},
			errorContains: "JIRA_URL",
		},
		{
			name:          "Missing username",
			opts:          Options{URL: "https://example.atlassian.net", Token: "test-token", ProjectKey: "OPS"},
			errorContains: "JIRA_USERNAME",
		},
		{
			name:          "Missing token",
			opts:          Options{URL: "https://example.atlassian.net", Username: "test@example.com", ProjectKey: "OPS"},
			errorContains: "JIRA_TOKEN",
		},
		{
			name:          "Missing project",
			opts:          Options{URL: "https://example.atlassian.net", Username: "test@example.com", Token: "test-token"},
			errorContains: "project key",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(tc.opts)
			require.Error(t, err)
			assert.Nil(t, client)
			assert.Contains(t, err.Error(), tc.errorContains)
		})
	}
}

func TestBasicAuthClientTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{name: "Configured", timeout: 5 * time.Second, want: 5 * time.Second},
		{name: "Zero uses default", timeout: 0, want: 30 * time.Second},
		{name: "Negative uses default", timeout: -time.Second, want: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := basicAuthClient("test@example.com", "test-token", tt.timeout)
			assert.Equal(t, tt.want, client.Timeout)
		})
	}
}

func TestCreateIssueWithNilClient(t *testing.T) {
	client := &Client{}

	_, err := client.CreateIssue(context.Background(), models.TicketDraft{Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")

	_, err = client.DueIssues(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestCreateIssue(t *testing.T) {
	var received struct {
		Fields map[string]any `json:"fields"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/issue", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"10001","key":"OPS-12","self":"https://jira.example.com/rest/api/2/issue/10001"}`)
	})

	due := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	record, err := client.CreateIssue(context.Background(), models.TicketDraft{
		Subject:     "Server maintenance",
		Description: "Patch the web servers",
		Priority:    models.PriorityUrgent,
		DueDate:     &due,
		ProjectID:   "OPS",
	})
	require.NoError(t, err)

	assert.Equal(t, "OPS-12", record.ID)
	assert.Equal(t, "Server maintenance", record.Subject)
	assert.Contains(t, record.URL, "/browse/OPS-12")

	assert.Equal(t, "Server maintenance", received.Fields["summary"])
	assert.Equal(t, "2026-10-20", received.Fields["duedate"])
	priority, ok := received.Fields["priority"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Highest", priority["name"])
}

func TestCreateIssueRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorMessages":[],"errors":{"summary":"required"}}`)
	})

	_, err := client.CreateIssue(context.Background(), models.TicketDraft{Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestDueIssues(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/search", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("jql"), `duedate <= "2026-10-16"`)
		fmt.Fprint(w, `{"startAt":0,"maxResults":100,"total":2,"issues":[
			{"key":"OPS-3","fields":{"summary":"Renew certificate",
				"status":{"name":"In Progress","statusCategory":{"key":"indeterminate"}},
				"assignee":{"displayName":"Sato"},"duedate":"2026-10-10"}},
			{"key":"OPS-7","fields":{"summary":"Backup audit",
				"status":{"name":"To Do","statusCategory":{"key":"new"}}}}]}`)
	})

	records, err := client.DueIssues(context.Background(), time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "OPS-3", records[0].ID)
	assert.Equal(t, "Sato", records[0].AssignedTo)
	assert.Equal(t, "In Progress", records[0].Status)
	require.NotNil(t, records[0].DueDate)
	assert.Equal(t, "2026-10-10", records[0].DueDate.Format(models.DateLayout))

	assert.Equal(t, "OPS-7", records[1].ID)
	assert.Empty(t, records[1].AssignedTo)
	assert.Nil(t, records[1].DueDate)
	assert.False(t, records[1].Closed)
}

func TestDueJQL(t *testing.T) {
	jql := DueJQL("OPS", time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, `project = "OPS" AND statusCategory != Done AND duedate <= "2026-01-02" ORDER BY duedate ASC, key ASC`, jql)
}

func TestPriorities(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/priority", r.URL.Path)
		fmt.Fprint(w, `[{"id":"1","name":"Highest"},{"id":"3","name":"Medium"}]`)
	})

	names, err := client.Priorities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Highest", "Medium"}, names)
	assert.Equal(t, "Medium", PriorityName(models.PriorityNormal))
}
