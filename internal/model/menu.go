package model

import "time"

// MenuRecord is one day's menu as captured from the feed or inserted manually.
type MenuRecord struct {
	ID        uint      `gorm:"primaryKey"`
	DateLabel string    `gorm:"uniqueIndex;not null"`
	RawText   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// DispatchRecord links a menu to the chat message it was posted as.
type DispatchRecord struct {
	ID            uint      `gorm:"primaryKey"`
	MenuRecordID  uint      `gorm:"uniqueIndex:idx_dispatch_menu_channel;not null"`
	ChannelID     string    `gorm:"uniqueIndex:idx_dispatch_menu_channel;not null"`
	MessageHandle string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// Subscription stores the daily notify time for a channel.
type Subscription struct {
	ID         uint      `gorm:"primaryKey"`
	ChannelID  string    `gorm:"uniqueIndex;not null"`
	NotifyTime string    `gorm:"index;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// All lists every model managed by AutoMigrate.
func All() []any {
	return []any{
		&MenuRecord{},
		&DispatchRecord{},
		&ReactionRecord{},
		&ReviewRecord{},
		&Subscription{},
	}
}
