package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pathakanu/lunchbot/internal/clock"
	"github.com/pathakanu/lunchbot/internal/feed"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port        string
	DatabaseURL string
	SQLitePath  string

	SlackBotToken      string
	SlackSigningSecret string

	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	TwilioWebhookURL     string

	FeedURL       string
	FeedUserAgent string
	FeedParser    string
	FeedTimeout   time.Duration

	UTCOffsetHours int

	LogLevel string
	LogFile  string
}

// Load reads configuration values and prepares defaults where applicable.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                 getenvDefault("PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SQLitePath:           getenvDefault("SQLITE_PATH", "lunchbot.db"),
		SlackBotToken:        os.Getenv("SLACK_BOT_TOKEN"),
		SlackSigningSecret:   os.Getenv("SLACK_SIGNING_SECRET"),
		TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppNumber: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		TwilioWebhookURL:     os.Getenv("TWILIO_WEBHOOK_URL"),
		FeedURL:              getenvDefault("FEED_URL", feed.DefaultURL),
		FeedUserAgent:        getenvDefault("FEED_USER_AGENT", feed.MobileUserAgent),
		FeedParser:           getenvDefault("FEED_PARSER", "regex"),
		FeedTimeout:          time.Duration(ParseIntEnv("FEED_TIMEOUT_SECONDS", 10)) * time.Second,
		UTCOffsetHours:       ParseIntEnv("UTC_OFFSET_HOURS", clock.DefaultOffsetHours),
		LogLevel:             getenvDefault("LOG_LEVEL", "info"),
		LogFile:              os.Getenv("LOG_FILE"),
	}
}

// TwilioEnabled reports whether WhatsApp delivery is configured.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppNumber != ""
}

// Parser returns the feed matching strategy selected by FEED_PARSER.
func (c *Config) Parser() feed.Parser {
	if c.FeedParser == "html" {
		return feed.HTMLParser{}
	}
	return feed.RegexParser{}
}

func getenvDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

// ParseIntEnv returns the integer value for an environment variable or the provided default.
func ParseIntEnv(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as int: %v", key, value, err)
		return def
	}
	return parsed
}
