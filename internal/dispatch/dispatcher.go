// Package dispatch sends menus to subscribed channels and keeps every sent
// message in sync with the latest reactions and reviews.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathakanu/lunchbot/internal/clock"
	"github.com/pathakanu/lunchbot/internal/metrics"
	"github.com/pathakanu/lunchbot/internal/model"
	"github.com/pathakanu/lunchbot/internal/reaction"
	"github.com/pathakanu/lunchbot/internal/transport"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MenuLoader loads a stored menu.
type MenuLoader interface {
	Get(ctx context.Context, id uint) (*model.MenuRecord, error)
}

// CountReader reports reaction counts for a menu.
type CountReader interface {
	Counts(ctx context.Context, menuID uint) (reaction.Counts, error)
}

// ReviewLister lists the reviews of a menu.
type ReviewLister interface {
	ListByMenu(ctx context.Context, menuID uint) ([]model.ReviewRecord, error)
}

// Dispatcher sends menu messages and records their handles.
type Dispatcher struct {
	db        *gorm.DB
	menus     MenuLoader
	reactions CountReader
	reviews   ReviewLister
	messenger transport.Messenger
	clock     *clock.Clock
	logger    *zap.SugaredLogger
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(db *gorm.DB, menus MenuLoader, reactions CountReader, reviews ReviewLister,
	messenger transport.Messenger, clk *clock.Clock, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		db:        db,
		menus:     menus,
		reactions: reactions,
		reviews:   reviews,
		messenger: messenger,
		clock:     clk,
		logger:    logger,
	}
}

// Send posts menu to the channel unless it was already posted there. sent
// reports whether a new message went out.
func (d *Dispatcher) Send(ctx context.Context, menu *model.MenuRecord, channelID string) (sent bool, err error) {
	already, err := d.Dispatched(ctx, menu.ID, channelID)
	if err != nil {
		return false, err
	}
	if already {
		metrics.Dispatches.WithLabelValues("skipped").Inc()
		return false, nil
	}

	view, err := d.view(ctx, menu)
	if err != nil {
		return false, err
	}
	hint := d.clock.YearHint(menu.DateLabel, menu.CreatedAt)
	view.StaleDays = d.clock.DaysElapsed(menu.DateLabel, d.clock.Now(), hint)

	handle, err := d.messenger.Send(ctx, channelID, Render(view))
	if err != nil {
		metrics.Dispatches.WithLabelValues("failed").Inc()
		return false, fmt.Errorf("send menu %d to %s: %w", menu.ID, channelID, err)
	}

	record := model.DispatchRecord{MenuRecordID: menu.ID, ChannelID: channelID, MessageHandle: handle}
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "menu_record_id"}, {Name: "channel_id"}},
			DoNothing: true,
		}).
		Create(&record)
	if res.Error != nil {
		return true, fmt.Errorf("record dispatch menu=%d channel=%s: %w", menu.ID, channelID, res.Error)
	}
	if res.RowsAffected == 0 {
		metrics.Dispatches.WithLabelValues("duplicate").Inc()
		d.logger.Warnw("dispatch: concurrent send detected, keeping first handle",
			"menu", menu.ID, "channel", channelID, "handle", handle)
		return true, nil
	}

	metrics.Dispatches.WithLabelValues("sent").Inc()
	d.logger.Infow("dispatch: menu sent", "menu", menu.ID, "date", menu.DateLabel, "channel", channelID, "handle", handle)
	return true, nil
}

// Dispatched reports whether menu was already posted to the channel.
func (d *Dispatcher) Dispatched(ctx context.Context, menuID uint, channelID string) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).
		Model(&model.DispatchRecord{}).
		Where("menu_record_id = ? AND channel_id = ?", menuID, channelID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check dispatch menu=%d channel=%s: %w", menuID, channelID, err)
	}
	return count > 0, nil
}

// RefreshAll re-renders every message sent for the menu. The staleness
// notice is left out because its age is pinned to the original send.
// A failed update is logged and does not stop the others; transports that
// cannot edit sent messages are skipped.
func (d *Dispatcher) RefreshAll(ctx context.Context, menuID uint) error {
	menu, err := d.menus.Get(ctx, menuID)
	if err != nil {
		return err
	}

	var records []model.DispatchRecord
	if err := d.db.WithContext(ctx).
		Where("menu_record_id = ?", menuID).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return fmt.Errorf("list dispatches menu=%d: %w", menuID, err)
	}
	if len(records) == 0 {
		return nil
	}

	view, err := d.view(ctx, menu)
	if err != nil {
		return err
	}
	msg := Render(view)

	for _, r := range records {
		err := d.messenger.Update(ctx, r.ChannelID, r.MessageHandle, msg)
		if errors.Is(err, transport.ErrUnsupported) {
			metrics.MessageUpdates.WithLabelValues("unsupported").Inc()
			continue
		}
		if err != nil {
			metrics.MessageUpdates.WithLabelValues("failed").Inc()
			d.logger.Warnw("dispatch: message update failed",
				"menu", menuID, "channel", r.ChannelID, "handle", r.MessageHandle, "error", err)
			continue
		}
		metrics.MessageUpdates.WithLabelValues("ok").Inc()
	}
	return nil
}

func (d *Dispatcher) view(ctx context.Context, menu *model.MenuRecord) (View, error) {
	counts, err := d.reactions.Counts(ctx, menu.ID)
	if err != nil {
		return View{}, err
	}
	reviews, err := d.reviews.ListByMenu(ctx, menu.ID)
	if err != nil {
		return View{}, err
	}
	return View{Menu: menu, Counts: counts, Reviews: reviews}, nil
}
