// Package transport delivers menu messages to chat platforms.
package transport

import (
	"context"
	"errors"
	"strings"

	"github.com/slack-go/slack"
)

var (
	// ErrUnsupported is returned by transports that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by transport")
	// ErrNoTransport means no transport is configured for the channel.
	ErrNoTransport = errors.New("no transport for channel")
)

// Message is a rendered message: plain text for transports without rich
// layout, and Slack blocks for those with it.
type Message struct {
	Text   string
	Blocks []slack.Block
}

// Messenger sends and edits channel messages.
type Messenger interface {
	// Send posts msg and returns a handle that identifies it for Update.
	Send(ctx context.Context, channelID string, msg Message) (string, error)
	Update(ctx context.Context, channelID, handle string, msg Message) error
	// SendEphemeral shows text to one user only. It returns no handle.
	SendEphemeral(ctx context.Context, channelID, userID, text string) error
}

// Router picks a Messenger by channel id prefix, falling back to a default.
type Router struct {
	fallback Messenger
	prefixes []string
	routes   map[string]Messenger
}

// NewRouter creates a router that sends to fallback unless a route matches.
func NewRouter(fallback Messenger) *Router {
	return &Router{fallback: fallback, routes: make(map[string]Messenger)}
}

// Route sends channels starting with prefix to m.
func (r *Router) Route(prefix string, m Messenger) *Router {
	if _, ok := r.routes[prefix]; !ok {
		r.prefixes = append(r.prefixes, prefix)
	}
	r.routes[prefix] = m
	return r
}

func (r *Router) pick(channelID string) (Messenger, error) {
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(channelID, prefix) {
			return r.routes[prefix], nil
		}
	}
	if r.fallback == nil {
		return nil, ErrNoTransport
	}
	return r.fallback, nil
}

// Send implements Messenger.
func (r *Router) Send(ctx context.Context, channelID string, msg Message) (string, error) {
	m, err := r.pick(channelID)
	if err != nil {
		return "", err
	}
	return m.Send(ctx, channelID, msg)
}

// Update implements Messenger.
func (r *Router) Update(ctx context.Context, channelID, handle string, msg Message) error {
	m, err := r.pick(channelID)
	if err != nil {
		return err
	}
	return m.Update(ctx, channelID, handle, msg)
}

// SendEphemeral implements Messenger.
func (r *Router) SendEphemeral(ctx context.Context, channelID, userID, text string) error {
	m, err := r.pick(channelID)
	if err != nil {
		return err
	}
	return m.SendEphemeral(ctx, channelID, userID, text)
}
