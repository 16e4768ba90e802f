// Package menu caches daily menus by date label, fetching from the feed on a
// miss.
package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathakanu/lunchbot/internal/clock"
	"github.com/pathakanu/lunchbot/internal/feed"
	"github.com/pathakanu/lunchbot/internal/metrics"
	"github.com/pathakanu/lunchbot/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound means neither the cache nor the feed has a menu.
	ErrNotFound = errors.New("menu not found")
	// ErrNoDateLabel means a manual menu text carries no date label.
	ErrNoDateLabel = errors.New("menu text has no date label")
	// ErrDuplicate means a menu for the date label is already stored.
	ErrDuplicate = errors.New("menu already exists for date")

	errConflict = errors.New("menu insert lost a uniqueness race")
)

// Fetcher retrieves a menu post from upstream.
type Fetcher interface {
	FetchMenu(ctx context.Context, dateLabel string) (*feed.Menu, bool)
}

// Service is the fetch-or-create menu cache.
type Service struct {
	db      *gorm.DB
	fetcher Fetcher
	logger  *zap.SugaredLogger
}

// New creates a menu cache backed by db.
func New(db *gorm.DB, fetcher Fetcher, logger *zap.SugaredLogger) *Service {
	return &Service{db: db, fetcher: fetcher, logger: logger}
}

// GetOrFetch returns the stored menu for dateLabel. On a miss, or when
// dateLabel is empty, it fetches the latest posted menu and stores it unless
// a record for the fetched date already exists.
func (s *Service) GetOrFetch(ctx context.Context, dateLabel string) (*model.MenuRecord, error) {
	if dateLabel != "" {
		existing, err := s.findByDate(ctx, dateLabel)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	fetched, ok := s.fetcher.FetchMenu(ctx, "")
	if !ok {
		return nil, ErrNotFound
	}

	existing, err := s.findByDate(ctx, fetched.DateLabel)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	record := &model.MenuRecord{DateLabel: fetched.DateLabel, RawText: fetched.Content}
	err = s.create(ctx, record)
	if errors.Is(err, errConflict) {
		// Someone stored the same date between our check and insert.
		existing, err := s.findByDate(ctx, fetched.DateLabel)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("menu %s vanished after conflict", fetched.DateLabel)
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Infow("menu: stored", "date", record.DateLabel, "id", record.ID)
	metrics.MenusStored.WithLabelValues("feed").Inc()
	return record, nil
}

// InsertManual stores fullText verbatim as the menu for the date label it
// contains. Existing menus are never overwritten.
func (s *Service) InsertManual(ctx context.Context, fullText string) (*model.MenuRecord, error) {
	label, ok := clock.FindDateLabel(fullText)
	if !ok {
		return nil, ErrNoDateLabel
	}

	existing, err := s.findByDate(ctx, label)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, label)
	}

	record := &model.MenuRecord{DateLabel: label, RawText: fullText}
	if err := s.create(ctx, record); err != nil {
		if errors.Is(err, errConflict) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, label)
		}
		return nil, err
	}

	s.logger.Infow("menu: stored manually", "date", label, "id", record.ID)
	metrics.MenusStored.WithLabelValues("manual").Inc()
	return record, nil
}

// Get loads a menu by id.
func (s *Service) Get(ctx context.Context, id uint) (*model.MenuRecord, error) {
	var record model.MenuRecord
	err := s.db.WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load menu %d: %w", id, err)
	}
	return &record, nil
}

func (s *Service) findByDate(ctx context.Context, label string) (*model.MenuRecord, error) {
	var records []model.MenuRecord
	if err := s.db.WithContext(ctx).
		Where("date_label = ?", label).
		Limit(1).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find menu %s: %w", label, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// create inserts record, relying on the unique date_label index to reject
// duplicates.
func (s *Service) create(ctx context.Context, record *model.MenuRecord) error {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "date_label"}}, DoNothing: true}).
		Create(record)
	if res.Error != nil {
		return fmt.Errorf("insert menu %s: %w", record.DateLabel, res.Error)
	}
	if res.RowsAffected == 0 {
		return errConflict
	}
	return nil
}
