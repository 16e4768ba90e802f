// Package toast shows short-lived ephemeral notices, keeping only the latest
// one per channel member.
package toast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/lunchbot/internal/metrics"
	"github.com/pathakanu/lunchbot/internal/transport"
	"go.uber.org/zap"
)

// HideAfter is how long a notice stays registered as active.
const HideAfter = time.Second

// Sender delivers an ephemeral notice.
type Sender interface {
	SendEphemeral(ctx context.Context, channelID, userID, text string) error
}

type key struct {
	channelID string
	userID    string
}

type stopper interface {
	Stop() bool
}

type pending struct {
	token uuid.UUID
	timer stopper
}

// Debouncer owns the table of active notices and their hide timers.
type Debouncer struct {
	sender Sender
	logger *zap.SugaredLogger

	mu      sync.Mutex
	pending map[key]pending

	afterFunc func(time.Duration, func()) stopper
}

// New creates a Debouncer that sends through sender.
func New(sender Sender, logger *zap.SugaredLogger) *Debouncer {
	return &Debouncer{
		sender:  sender,
		logger:  logger,
		pending: make(map[key]pending),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// Notify replaces any active notice for the channel member with text. The
// send is best effort; failures are only logged.
func (d *Debouncer) Notify(ctx context.Context, channelID, userID, text string) {
	k := key{channelID: channelID, userID: userID}
	token := uuid.New()

	d.mu.Lock()
	if prev, ok := d.pending[k]; ok {
		prev.timer.Stop()
	} else {
		metrics.PendingToasts.Inc()
	}
	d.pending[k] = pending{
		token: token,
		timer: d.afterFunc(HideAfter, func() { d.expire(k, token) }),
	}
	d.mu.Unlock()

	err := d.sender.SendEphemeral(ctx, channelID, userID, text)
	if errors.Is(err, transport.ErrUnsupported) {
		d.logger.Debugw("toast: transport has no ephemeral messages", "channel", channelID)
		return
	}
	if err != nil {
		d.logger.Warnw("toast: ephemeral send failed", "channel", channelID, "user", userID, "error", err)
	}
}

// Active returns the token of the notice currently owning the channel member.
func (d *Debouncer) Active(channelID, userID string) (uuid.UUID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[key{channelID: channelID, userID: userID}]
	return p.token, ok
}

// expire clears k unless a newer notice took it over.
func (d *Debouncer) expire(k key, token uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[k]; ok && p.token == token {
		delete(d.pending, k)
		metrics.PendingToasts.Dec()
	}
}
