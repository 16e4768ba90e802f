// Package subscription manages which channels get the menu and when.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pathakanu/lunchbot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrTimeFormat means the notify time is not written as HH:mm.
	ErrTimeFormat = errors.New("notify time must look like HH:mm")
	// ErrTimeRange means the notify time is outside 00:00-23:59.
	ErrTimeRange = errors.New("notify time must be between 00:00 and 23:59")
)

var timePattern = regexp.MustCompile(`^(\d{2}):(\d{2})$`)

// ValidateTime checks that raw is a 24-hour HH:mm literal.
func ValidateTime(raw string) error {
	m := timePattern.FindStringSubmatch(raw)
	if m == nil {
		return ErrTimeFormat
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return ErrTimeRange
	}
	return nil
}

// Service stores channel subscriptions.
type Service struct {
	db *gorm.DB
}

// New creates a subscription service backed by db.
func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Subscribe sets the notify time of a channel. created reports whether the
// channel was not subscribed before.
func (s *Service) Subscribe(ctx context.Context, channelID, notifyTime string) (created bool, err error) {
	if err := ValidateTime(notifyTime); err != nil {
		return false, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Subscription{}).Where("channel_id = ?", channelID).Count(&count).Error; err != nil {
			return err
		}
		created = count == 0
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"notify_time"}),
		}).Create(&model.Subscription{ChannelID: channelID, NotifyTime: notifyTime}).Error
	})
	if err != nil {
		return false, fmt.Errorf("subscribe %s: %w", channelID, err)
	}
	return created, nil
}

// Unsubscribe removes the channel. removed is false when it was not subscribed.
func (s *Service) Unsubscribe(ctx context.Context, channelID string) (removed bool, err error) {
	res := s.db.WithContext(ctx).Where("channel_id = ?", channelID).Delete(&model.Subscription{})
	if res.Error != nil {
		return false, fmt.Errorf("unsubscribe %s: %w", channelID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// List returns every subscription ordered by notify time.
func (s *Service) List(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	if err := s.db.WithContext(ctx).Order("notify_time ASC, channel_id ASC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// Due returns the subscriptions whose notify time equals timeLabel exactly.
func (s *Service) Due(ctx context.Context, timeLabel string) ([]model.Subscription, error) {
	var subs []model.Subscription
	if err := s.db.WithContext(ctx).Where("notify_time = ?", timeLabel).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("due subscriptions at %s: %w", timeLabel, err)
	}
	return subs, nil
}
