// Package bridge creates issues through an MCP server that exposes an
// issue-creation tool.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/pkg/models"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrNotConnected is returned by CreateIssue before a successful Probe.
var ErrNotConnected = errors.New("protocol bridge not connected")

const clientName = "tasklane"

// Client talks to one MCP endpoint over streamable HTTP.
type Client struct {
	endpoint string
	tool     string
	timeout  time.Duration

	mu   sync.Mutex
	conn *client.Client
}

// Options configures a bridge Client.
type Options struct {
	Endpoint string
	Tool     string
	Timeout  time.Duration
}

// NewClient creates a bridge client. It does not connect; call Probe.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("bridge endpoint is required")
	}
	tool := opts.Tool
	if tool == "" {
		tool = "create_issue"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{endpoint: opts.Endpoint, tool: tool, timeout: timeout}, nil
}

// Name identifies the bridge in logs.
func (c *Client) Name() string {
	return "bridge:" + c.tool
}

// Probe connects, performs the initialize handshake, and checks that the
// configured tool is offered. The connection is kept for CreateIssue.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := client.NewStreamableHttpClient(c.endpoint, transport.WithHTTPTimeout(c.timeout))
	if err != nil {
		return fmt.Errorf("failed to create bridge client: %w", err)
	}
	if err := conn.Start(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to start bridge transport: %w", err)
	}

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: "1.0.0"}
	info, err := conn.Initialize(ctx, init)
	if err != nil {
		conn.Close()
		return fmt.Errorf("bridge initialize failed: %w", err)
	}

	tools, err := conn.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to list bridge tools: %w", err)
	}
	if !hasTool(tools.Tools, c.tool) {
		conn.Close()
		return fmt.Errorf("bridge does not offer tool %q", c.tool)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()

	logging.Info("connected to protocol bridge",
		"endpoint", c.endpoint,
		"server", info.ServerInfo.Name,
		"tool", c.tool)
	return nil
}

func hasTool(tools []mcp.Tool, name string) bool {
	for _, tool := range tools {
		if tool.Name == name {
			return true
		}
	}
	return false
}

// CreateIssue calls the creation tool once with the draft fields.
func (c *Client) CreateIssue(ctx context.Context, draft models.TicketDraft) (models.IssueRecord, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return models.IssueRecord{}, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = c.tool
	req.Params.Arguments = toolArguments(draft)

	result, err := conn.CallTool(ctx, req)
	if err != nil {
		return models.IssueRecord{}, fmt.Errorf("failed to call bridge tool %s: %w", c.tool, err)
	}

	text := firstText(result.Content)
	if result.IsError {
		return models.IssueRecord{}, fmt.Errorf("bridge tool %s reported an error: %s", c.tool, text)
	}

	record, err := parseIssue(text)
	if err != nil {
		return models.IssueRecord{}, err
	}
	if record.Subject == "" {
		record.Subject = draft.Subject
	}
	return record, nil
}

// Close releases the bridge connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func toolArguments(draft models.TicketDraft) map[string]any {
	args := map[string]any{
		"project_id":  draft.ProjectID,
		"subject":     draft.Subject,
		"description": draft.Description,
		"priority":    draft.Priority.String(),
	}
	if due := draft.DueDateString(); due != "" {
		args["due_date"] = due
	}
	if draft.AssigneeHint != "" {
		args["assignee"] = draft.AssigneeHint
	}
	return args
}

func firstText(content []mcp.Content) string {
	for _, item := range content {
		switch text := item.(type) {
		case mcp.TextContent:
			return text.Text
		case *mcp.TextContent:
			return text.Text
		}
	}
	return ""
}

type issueReply struct {
	ID      json.RawMessage `json:"id"`
	Subject string          `json:"subject"`
	URL     string          `json:"url"`
	Status  json.RawMessage `json:"status"`
	Issue   *issueReply     `json:"issue"`
}

// parseIssue reads the tool reply, either a flat issue object or one
// wrapped in {"issue": {...}} as Redmine returns it.
func parseIssue(text string) (models.IssueRecord, error) {
	var reply issueReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &reply); err != nil {
		return models.IssueRecord{}, fmt.Errorf("failed to decode bridge reply: %w", err)
	}
	if reply.Issue != nil {
		reply = *reply.Issue
	}

	id := rawString(reply.ID)
	if id == "" {
		return models.IssueRecord{}, fmt.Errorf("bridge reply has no issue id")
	}
	return models.IssueRecord{
		ID:      id,
		Subject: reply.Subject,
		Status:  statusName(reply.Status),
		URL:     reply.URL,
	}, nil
}

// rawString accepts a JSON string or number.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// statusName accepts "New" or {"name": "New"}.
func statusName(raw json.RawMessage) string {
	if s := rawString(raw); s != "" {
		return s
	}
	var named struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &named); err == nil {
		return named.Name
	}
	return ""
}
