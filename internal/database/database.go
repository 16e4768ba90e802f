package database

import (
	"strings"

	"github.com/pathakanu/lunchbot/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New creates a GORM database connection and migrates every table.
// When databaseURL is provided PostgreSQL is used, otherwise SQLite at sqlitePath.
func New(databaseURL, sqlitePath string, log *zap.SugaredLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if databaseURL != "" {
		dialector = postgres.Open(databaseURL)
	} else {
		dialector = sqlite.Open(sqlitePath + "?_busy_timeout=5000&_journal_mode=WAL&_fk=1")
	}
	return Open(dialector, log)
}

// Open connects through dialector and runs the migrations. Tests use it with
// an in-memory SQLite dialector.
func Open(dialector gorm.Dialector, log *zap.SugaredLogger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, err
	}

	logBackend(db, log)
	return db, nil
}

func logBackend(db *gorm.DB, log *zap.SugaredLogger) {
	dialector := db.Dialector.Name()
	switch strings.ToLower(dialector) {
	case "postgres":
		log.Infow("database: connected to PostgreSQL")
	case "sqlite":
		log.Infow("database: using SQLite")
	default:
		log.Infow("database: connected", "dialector", dialector)
	}
}
