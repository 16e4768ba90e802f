package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pathakanu/lunchbot/internal/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultURL is the Naver Place feed of the restaurant.
	DefaultURL = "https://m.place.naver.com/restaurant/1153292681/feed"
	// MobileUserAgent makes the feed serve its server-rendered mobile markup.
	MobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15"

	maxBodyBytes = 8 << 20
)

// Client fetches the feed page and extracts lunch posts from it.
type Client struct {
	http      *http.Client
	url       string
	userAgent string
	parser    Parser
	logger    *zap.SugaredLogger
}

// NewClient creates a feed client. A nil parser falls back to RegexParser.
func NewClient(url, userAgent string, timeout time.Duration, parser Parser, logger *zap.SugaredLogger) *Client {
	if parser == nil {
		parser = RegexParser{}
	}
	if userAgent == "" {
		userAgent = MobileUserAgent
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		url:       url,
		userAgent: userAgent,
		parser:    parser,
		logger:    logger,
	}
}

// FetchMenu downloads the feed once and returns the post for dateLabel, or
// the latest post when dateLabel is empty. Transport failures and missing
// posts both report ok=false; the caller skips either way.
func (c *Client) FetchMenu(ctx context.Context, dateLabel string) (*Menu, bool) {
	doc, err := c.download(ctx)
	if err != nil {
		c.logger.Warnw("feed: fetch failed", "url", c.url, "error", err)
		metrics.FeedFetches.WithLabelValues("fetch_error").Inc()
		return nil, false
	}

	menu, err := c.parser.Parse(doc, dateLabel)
	switch {
	case errors.Is(err, ErrTitleNotFound):
		c.logger.Infow("feed: no menu posted", "date", dateLabel)
		metrics.FeedFetches.WithLabelValues("not_posted").Inc()
		return nil, false
	case errors.Is(err, ErrContentNotFound):
		c.logger.Warnw("feed: menu body could not be parsed", "date", dateLabel)
		metrics.FeedFetches.WithLabelValues("parse_error").Inc()
		return nil, false
	case err != nil:
		c.logger.Errorw("feed: parse failed", "date", dateLabel, "error", err)
		metrics.FeedFetches.WithLabelValues("parse_error").Inc()
		return nil, false
	}

	metrics.FeedFetches.WithLabelValues("ok").Inc()
	return menu, true
}

func (c *Client) download(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}
