package feed

import (
	"errors"
	"regexp"
	"strings"

	"github.com/pathakanu/lunchbot/internal/clock"
)

var (
	// ErrTitleNotFound means the document holds no post for the requested date.
	ErrTitleNotFound = errors.New("menu title not found")
	// ErrContentNotFound means a title was found but its body could not be located.
	ErrContentNotFound = errors.New("menu content not found")
)

const (
	// lunchMarker appears in every lunch post title.
	lunchMarker = "점심메뉴"
	// contentWrapperClass is the class of the element holding the post body.
	contentWrapperClass = "pui__vn15t2"
	weekdayPattern      = `\([월화수목금토일]요일\)`
)

// Menu is a post extracted from the feed page.
type Menu struct {
	Title     string
	DateLabel string
	Content   string
}

// Parser locates a lunch post inside a feed document. An empty dateLabel
// selects the first post in the document, which is the most recent one.
type Parser interface {
	Parse(doc, dateLabel string) (*Menu, error)
}

// titlePattern builds the expression for a post title. The date is captured
// in group 1.
func titlePattern(dateLabel string) *regexp.Regexp {
	date := clock.DatePattern
	if dateLabel != "" {
		date = regexp.QuoteMeta(dateLabel)
	}
	return regexp.MustCompile(`(` + date + `)` + weekdayPattern + `[^<]*` + lunchMarker + `[^<]*`)
}

// RegexParser matches the post title and body with regular expressions over
// the raw markup.
type RegexParser struct{}

// Parse implements Parser.
func (RegexParser) Parse(doc, dateLabel string) (*Menu, error) {
	m := titlePattern(dateLabel).FindStringSubmatch(doc)
	if m == nil {
		return nil, ErrTitleNotFound
	}
	title := m[0]

	content := regexp.MustCompile(
		regexp.QuoteMeta(title) + `</div><div class="` + contentWrapperClass + `"><a[^>]+>([^<]+)</a>`,
	).FindStringSubmatch(doc)
	if content == nil {
		return nil, ErrContentNotFound
	}

	return &Menu{
		Title:     decodeEntities(title),
		DateLabel: m[1],
		Content:   decodeEntities(content[1]),
	}, nil
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}
