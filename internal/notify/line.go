// Package notify delivers text messages to a push-messaging channel.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Notifier pushes one text message to one recipient.
type Notifier interface {
	Push(ctx context.Context, recipientID, text string) error
}

// LineNotifier pushes messages through the LINE Messaging API.
type LineNotifier struct {
	api *messaging_api.MessagingApiAPI
}

var _ Notifier = (*LineNotifier)(nil)

// LineOptions configures a LineNotifier.
type LineOptions struct {
	ChannelAccessToken string
	Timeout            time.Duration

	// Endpoint overrides the API base URL, for tests.
	Endpoint string
}

// NewLineNotifier creates a LINE push client.
func NewLineNotifier(opts LineOptions) (*LineNotifier, error) {
	if opts.ChannelAccessToken == "" {
		return nil, fmt.Errorf("LINE channel access token is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	options := []messaging_api.MessagingApiAPIOption{
		messaging_api.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if opts.Endpoint != "" {
		options = append(options, messaging_api.WithEndpoint(opts.Endpoint))
	}

	api, err := messaging_api.NewMessagingApiAPI(opts.ChannelAccessToken, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE client: %w", err)
	}
	return &LineNotifier{api: api}, nil
}

// Push sends text as a single message. It does not retry.
func (n *LineNotifier) Push(ctx context.Context, recipientID, text string) error {
	if strings.TrimSpace(recipientID) == "" {
		return fmt.Errorf("recipient id is required")
	}

	request := &messaging_api.PushMessageRequest{
		To: recipientID,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	}
	if _, err := n.api.WithContext(ctx).PushMessage(request, ""); err != nil {
		return fmt.Errorf("failed to push LINE message: %w", err)
	}

	logging.Debug("pushed LINE message",
		"recipient", logging.MaskSensitive(recipientID),
		"length", len(text))
	return nil
}
