package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pathakanu/lunchbot/internal/clock"
	"github.com/pathakanu/lunchbot/internal/dispatch"
	"github.com/pathakanu/lunchbot/internal/menu"
	"github.com/pathakanu/lunchbot/internal/metrics"
	"github.com/pathakanu/lunchbot/internal/reaction"
	"github.com/pathakanu/lunchbot/internal/review"
	"github.com/pathakanu/lunchbot/internal/subscription"
	"github.com/pathakanu/lunchbot/internal/toast"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// backgroundTimeout bounds work done after Slack has been acknowledged.
const backgroundTimeout = 30 * time.Second

// ViewOpener opens Slack modals.
type ViewOpener interface {
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
}

// Bot turns Slack commands and button clicks into calls on the menu,
// reaction and review services.
type Bot struct {
	signingSecret string
	twilioToken   string
	twilioURL     string
	clock         *clock.Clock
	menus         *menu.Service
	subs          *subscription.Service
	reactions     *reaction.Service
	reviews       *review.Service
	dispatcher    *dispatch.Dispatcher
	toasts        *toast.Debouncer
	views         ViewOpener
	feedback      FeedbackSink
	logger        *zap.SugaredLogger

	// async runs work that must not hold up the Slack acknowledgement.
	async func(func())
}

// Deps groups the collaborators of a Bot.
type Deps struct {
	SigningSecret string
	Clock         *clock.Clock
	Menus         *menu.Service
	Subscriptions *subscription.Service
	Reactions     *reaction.Service
	Reviews       *review.Service
	Dispatcher    *dispatch.Dispatcher
	Toasts        *toast.Debouncer
	Views         ViewOpener
	Feedback      FeedbackSink
	Logger        *zap.SugaredLogger

	// TwilioAuthToken enables the WhatsApp webhook. Signatures are checked
	// against TwilioWebhookURL, the public URL configured in Twilio.
	TwilioAuthToken  string
	TwilioWebhookURL string
}

// New creates a fully configured Bot instance.
func New(d Deps) *Bot {
	if d.Feedback == nil {
		d.Feedback = LogFeedbackSink{Logger: d.Logger}
	}
	return &Bot{
		signingSecret: d.SigningSecret,
		twilioToken:   d.TwilioAuthToken,
		twilioURL:     d.TwilioWebhookURL,
		clock:         d.Clock,
		menus:         d.Menus,
		subs:          d.Subscriptions,
		reactions:     d.Reactions,
		reviews:       d.Reviews,
		dispatcher:    d.Dispatcher,
		toasts:        d.Toasts,
		views:         d.Views,
		feedback:      d.Feedback,
		logger:        d.Logger,
		async:         func(f func()) { go f() },
	}
}

// Handler returns the HTTP routes of the bot.
func (b *Bot) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/slack", func(r chi.Router) {
		r.Use(b.verifySlack)
		r.Post("/commands", b.handleCommand)
		r.Post("/interactions", b.handleInteraction)
	})

	if b.twilioToken != "" {
		r.With(b.verifyTwilio).Post("/twilio/webhook", b.handleWhatsApp)
	}
	return r
}

// verifySlack rejects requests without a valid Slack signature. It is a
// pass-through when no signing secret is configured.
func (b *Bot) verifySlack(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.signingSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		verifier, err := slack.NewSecretsVerifier(r.Header, b.signingSecret)
		if err != nil {
			b.logger.Warnw("slack: signature headers missing", "request_id", middleware.GetReqID(r.Context()), "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := verifier.Write(body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := verifier.Ensure(); err != nil {
			b.logger.Warnw("slack: invalid signature", "request_id", middleware.GetReqID(r.Context()), "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// background runs f with a fresh context once the request has been answered.
func (b *Bot) background(f func(ctx context.Context)) {
	b.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		f(ctx)
	})
}

func (b *Bot) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		b.logger.Warnw("slack: response encode failed", "error", err)
	}
}
