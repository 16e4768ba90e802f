package dispatch

import (
	"context"
	"errors"

	"github.com/pathakanu/lunchbot/internal/clock"
	"github.com/pathakanu/lunchbot/internal/menu"
	"github.com/pathakanu/lunchbot/internal/model"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// EveryMinute is the cron spec of the scheduler tick.
const EveryMinute = "* * * * *"

// DueLister returns subscriptions due at a time label.
type DueLister interface {
	Due(ctx context.Context, timeLabel string) ([]model.Subscription, error)
}

// MenuResolver returns the menu for a date label, fetching it when missing.
type MenuResolver interface {
	GetOrFetch(ctx context.Context, dateLabel string) (*model.MenuRecord, error)
}

// MenuSender posts a menu to one channel.
type MenuSender interface {
	Send(ctx context.Context, menu *model.MenuRecord, channelID string) (bool, error)
}

// Scheduler checks subscriptions every minute and sends today's menu to the
// channels whose notify time has come.
type Scheduler struct {
	cron   *cron.Cron
	clock  *clock.Clock
	subs   DueLister
	menus  MenuResolver
	sender MenuSender
	logger *zap.SugaredLogger
}

// NewScheduler creates a scheduler ticking in the clock's zone.
func NewScheduler(clk *clock.Clock, subs DueLister, menus MenuResolver, sender MenuSender, logger *zap.SugaredLogger) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(clk.Location()),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		clock:  clk,
		subs:   subs,
		menus:  menus,
		sender: sender,
		logger: logger,
	}
}

// Start registers the tick and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(EveryMinute, func() {
		s.Tick(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Infow("scheduler: started", "zone", s.clock.Location().String())
	return nil
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Tick runs one scheduling pass for the current minute.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	if s.clock.IsWeekend(now) {
		return
	}

	timeLabel := s.clock.TimeLabel(now)
	due, err := s.subs.Due(ctx, timeLabel)
	if err != nil {
		s.logger.Errorw("scheduler: load subscriptions", "time", timeLabel, "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	today := s.clock.DateLabel(now)
	record, err := s.menus.GetOrFetch(ctx, today)
	if errors.Is(err, menu.ErrNotFound) {
		s.logger.Infow("scheduler: no menu available, skipping", "date", today, "channels", len(due))
		return
	}
	if err != nil {
		s.logger.Errorw("scheduler: resolve menu", "date", today, "error", err)
		return
	}

	for _, sub := range due {
		if _, err := s.sender.Send(ctx, record, sub.ChannelID); err != nil {
			s.logger.Errorw("scheduler: send failed", "channel", sub.ChannelID, "menu", record.ID, "error", err)
		}
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
