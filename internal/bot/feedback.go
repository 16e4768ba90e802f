package bot

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Feedback is a bug report or feature idea sent from the menu message.
type Feedback struct {
	UserID    string
	UserName  string
	ChannelID string
	Text      string
	At        time.Time
}

// FeedbackSink files user feedback somewhere the maintainers will see it.
type FeedbackSink interface {
	Submit(ctx context.Context, fb Feedback) error
}

// LogFeedbackSink records feedback in the application log.
type LogFeedbackSink struct {
	Logger *zap.SugaredLogger
}

// Submit implements FeedbackSink.
func (s LogFeedbackSink) Submit(ctx context.Context, fb Feedback) error {
	s.Logger.Infow("feedback received",
		"user", fb.UserID,
		"name", fb.UserName,
		"channel", fb.ChannelID,
		"at", fb.At.Format(time.RFC3339),
		"text", fb.Text,
	)
	return nil
}
