package transport

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackAPI is the subset of *slack.Client used to post and edit messages.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
}

// Slack delivers messages through the Slack Web API. Message handles are
// Slack message timestamps.
type Slack struct {
	api SlackAPI
}

// NewSlack wraps a Slack API client.
func NewSlack(api SlackAPI) *Slack {
	return &Slack{api: api}
}

// Send implements Messenger.
func (s *Slack) Send(ctx context.Context, channelID string, msg Message) (string, error) {
	_, ts, err := s.api.PostMessageContext(ctx, channelID, options(msg)...)
	if err != nil {
		return "", fmt.Errorf("slack post to %s: %w", channelID, err)
	}
	if ts == "" {
		return "", fmt.Errorf("slack post to %s: empty message timestamp", channelID)
	}
	return ts, nil
}

// Update implements Messenger.
func (s *Slack) Update(ctx context.Context, channelID, handle string, msg Message) error {
	if _, _, _, err := s.api.UpdateMessageContext(ctx, channelID, handle, options(msg)...); err != nil {
		return fmt.Errorf("slack update %s/%s: %w", channelID, handle, err)
	}
	return nil
}

// SendEphemeral implements Messenger.
func (s *Slack) SendEphemeral(ctx context.Context, channelID, userID, text string) error {
	if _, err := s.api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("slack ephemeral to %s/%s: %w", channelID, userID, err)
	}
	return nil
}

func options(msg Message) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if len(msg.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(msg.Blocks...))
	}
	return opts
}
