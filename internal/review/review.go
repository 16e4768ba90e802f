// Package review keeps one short text review per user per menu.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/pathakanu/lunchbot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service stores reviews with last-write-wins semantics. Length limits belong
// to the presentation layer.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a review service backed by db.
func New(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Save creates or replaces the user's review of the menu.
func (s *Service) Save(ctx context.Context, menuID uint, userID, content string) error {
	now := s.now()
	row := model.ReviewRecord{
		MenuRecordID: menuID,
		UserID:       userID,
		Content:      content,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "menu_record_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert review menu=%d user=%s: %w", menuID, userID, err)
	}
	return nil
}

// Get returns the user's review of the menu. ok is false when none exists.
func (s *Service) Get(ctx context.Context, menuID uint, userID string) (*model.ReviewRecord, bool, error) {
	var rows []model.ReviewRecord
	if err := s.db.WithContext(ctx).
		Where("menu_record_id = ? AND user_id = ?", menuID, userID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("get review menu=%d user=%s: %w", menuID, userID, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return &rows[0], true, nil
}

// Delete removes the user's review of the menu if there is one.
func (s *Service) Delete(ctx context.Context, menuID uint, userID string) error {
	if err := s.db.WithContext(ctx).
		Where("menu_record_id = ? AND user_id = ?", menuID, userID).
		Delete(&model.ReviewRecord{}).Error; err != nil {
		return fmt.Errorf("delete review menu=%d user=%s: %w", menuID, userID, err)
	}
	return nil
}

// ListByMenu returns every review of the menu, oldest first.
func (s *Service) ListByMenu(ctx context.Context, menuID uint) ([]model.ReviewRecord, error) {
	var rows []model.ReviewRecord
	if err := s.db.WithContext(ctx).
		Where("menu_record_id = ?", menuID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reviews menu=%d: %w", menuID, err)
	}
	return rows, nil
}
