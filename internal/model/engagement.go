package model

import (
	"fmt"
	"time"
)

// Sentiment is one of the three fixed reactions a user can leave on a menu.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Sentiments lists every sentiment in display order.
var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

// ParseSentiment validates raw against the closed set of sentiments.
func ParseSentiment(raw string) (Sentiment, error) {
	for _, s := range Sentiments {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown sentiment %q", raw)
}

// Emoji returns the glyph shown next to the sentiment.
func (s Sentiment) Emoji() string {
	switch s {
	case SentimentPositive:
		return "😊"
	case SentimentNeutral:
		return "🧐"
	case SentimentNegative:
		return "☹️"
	}
	return ""
}

// Label returns the button caption for the sentiment.
func (s Sentiment) Label() string {
	switch s {
	case SentimentPositive:
		return "좋아요"
	case SentimentNeutral:
		return "그냥 그래요"
	case SentimentNegative:
		return "별로예요"
	}
	return string(s)
}

// ReactionRecord is the single current sentiment of a user for a menu.
type ReactionRecord struct {
	ID           uint      `gorm:"primaryKey"`
	MenuRecordID uint      `gorm:"uniqueIndex:idx_reaction_menu_user;not null"`
	UserID       string    `gorm:"uniqueIndex:idx_reaction_menu_user;not null"`
	Sentiment    Sentiment `gorm:"type:varchar(16);not null"`
	AddedAt      time.Time `gorm:"not null"`
}

// ReviewRecord is the single current review text of a user for a menu.
type ReviewRecord struct {
	ID           uint      `gorm:"primaryKey"`
	MenuRecordID uint      `gorm:"uniqueIndex:idx_review_menu_user;not null"`
	UserID       string    `gorm:"uniqueIndex:idx_review_menu_user;not null"`
	Content      string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}
