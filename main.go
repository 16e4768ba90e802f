package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathakanu/lunchbot/internal/bot"
	"github.com/pathakanu/lunchbot/internal/clock"
	"github.com/pathakanu/lunchbot/internal/config"
	"github.com/pathakanu/lunchbot/internal/database"
	"github.com/pathakanu/lunchbot/internal/dispatch"
	"github.com/pathakanu/lunchbot/internal/feed"
	"github.com/pathakanu/lunchbot/internal/logging"
	"github.com/pathakanu/lunchbot/internal/menu"
	"github.com/pathakanu/lunchbot/internal/metrics"
	"github.com/pathakanu/lunchbot/internal/reaction"
	"github.com/pathakanu/lunchbot/internal/review"
	"github.com/pathakanu/lunchbot/internal/subscription"
	"github.com/pathakanu/lunchbot/internal/toast"
	"github.com/pathakanu/lunchbot/internal/transport"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath, logger)
	if err != nil {
		logger.Fatalw("database init failed", "error", err)
	}

	clk := clock.New(cfg.UTCOffsetHours)
	fetcher := feed.NewClient(cfg.FeedURL, cfg.FeedUserAgent, cfg.FeedTimeout, cfg.Parser(), logger)

	menus := menu.New(db, fetcher, logger)
	reactions := reaction.New(db)
	reviews := review.New(db)
	subs := subscription.New(db)

	slackClient := slack.New(cfg.SlackBotToken)
	messenger := transport.NewRouter(transport.NewSlack(slackClient))
	if cfg.TwilioEnabled() {
		logger.Infow("whatsapp delivery enabled", "from", cfg.TwilioWhatsAppNumber)
		messenger.Route(transport.WhatsAppPrefix,
			transport.NewWhatsApp(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber))
	}

	dispatcher := dispatch.NewDispatcher(db, menus, reactions, reviews, messenger, clk, logger)
	scheduler := dispatch.NewScheduler(clk, subs, menus, dispatcher, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatalw("scheduler start", "error", err)
	}

	deps := bot.Deps{
		SigningSecret: cfg.SlackSigningSecret,
		Clock:         clk,
		Menus:         menus,
		Subscriptions: subs,
		Reactions:     reactions,
		Reviews:       reviews,
		Dispatcher:    dispatcher,
		Toasts:        toast.New(messenger, logger),
		Views:         slackClient,
		Logger:        logger,
	}
	if cfg.TwilioEnabled() {
		deps.TwilioAuthToken = cfg.TwilioAuthToken
		deps.TwilioWebhookURL = cfg.TwilioWebhookURL
		if cfg.TwilioWebhookURL == "" {
			logger.Warnw("TWILIO_WEBHOOK_URL not set, WhatsApp webhook signatures are not checked")
		}
	}
	lunchBot := bot.New(deps)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           lunchBot.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server error", "error", err)
		}
	}()

	waitForShutdown(server, scheduler, logger)
}

func waitForShutdown(server *http.Server, scheduler *dispatch.Scheduler, logger *zap.SugaredLogger) {
	stopCtx := make(chan os.Signal, 1)
	signal.Notify(stopCtx, syscall.SIGINT, syscall.SIGTERM)
	<-stopCtx
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warnw("server shutdown error", "error", err)
	}
	scheduler.Stop()
}
