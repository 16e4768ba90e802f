// Package reaction keeps one sentiment per user per menu.
package reaction

import (
	"context"
	"fmt"
	"time"

	"github.com/pathakanu/lunchbot/internal/metrics"
	"github.com/pathakanu/lunchbot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counts holds the number of users per sentiment. Every sentiment is present.
type Counts map[model.Sentiment]int

// Service stores reactions with last-write-wins semantics.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a reaction service backed by db.
func New(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Set records sentiment as the user's current reaction to the menu,
// replacing any earlier one.
func (s *Service) Set(ctx context.Context, menuID uint, userID string, sentiment model.Sentiment) error {
	row := model.ReactionRecord{
		MenuRecordID: menuID,
		UserID:       userID,
		Sentiment:    sentiment,
		AddedAt:      s.now(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "menu_record_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"sentiment", "added_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert reaction menu=%d user=%s: %w", menuID, userID, err)
	}
	metrics.Reactions.WithLabelValues(string(sentiment)).Inc()
	return nil
}

// Counts returns how many users picked each sentiment for the menu.
func (s *Service) Counts(ctx context.Context, menuID uint) (Counts, error) {
	var rows []struct {
		Sentiment model.Sentiment
		Total     int
	}
	if err := s.db.WithContext(ctx).
		Model(&model.ReactionRecord{}).
		Select("sentiment, count(*) AS total").
		Where("menu_record_id = ?", menuID).
		Group("sentiment").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count reactions menu=%d: %w", menuID, err)
	}

	counts := make(Counts, len(model.Sentiments))
	for _, sentiment := range model.Sentiments {
		counts[sentiment] = 0
	}
	for _, row := range rows {
		if _, ok := counts[row.Sentiment]; ok {
			counts[row.Sentiment] = row.Total
		}
	}
	return counts, nil
}

// UsersBySentiment lists user ids per sentiment, oldest reaction first.
func (s *Service) UsersBySentiment(ctx context.Context, menuID uint) (map[model.Sentiment][]string, error) {
	var rows []model.ReactionRecord
	if err := s.db.WithContext(ctx).
		Where("menu_record_id = ?", menuID).
		Order("added_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reactions menu=%d: %w", menuID, err)
	}

	users := make(map[model.Sentiment][]string, len(model.Sentiments))
	for _, sentiment := range model.Sentiments {
		users[sentiment] = []string{}
	}
	for _, row := range rows {
		if _, ok := users[row.Sentiment]; ok {
			users[row.Sentiment] = append(users[row.Sentiment], row.UserID)
		}
	}
	return users, nil
}
