// Package clock renders calendar labels in one fixed civil timezone.
package clock

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultOffsetHours is the UTC offset of Korea Standard Time.
const DefaultOffsetHours = 9

// datePattern matches a year-less date label such as "01월09일".
var datePattern = regexp.MustCompile(`(\d{2})월(\d{2})일`)

// DatePattern is the raw expression behind date labels, for embedding into
// larger patterns.
const DatePattern = `\d{2}월\d{2}일`

// Clock produces labels in a fixed zone regardless of the host's local zone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Clock pinned to the given UTC offset.
func New(offsetHours int) *Clock {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	if offsetHours == DefaultOffsetHours {
		name = "KST"
	}
	return &Clock{
		loc: time.FixedZone(name, offsetHours*60*60),
		now: time.Now,
	}
}

// WithNow returns a copy of the clock that reads the current instant from now.
func (c *Clock) WithNow(now func() time.Time) *Clock {
	return &Clock{loc: c.loc, now: now}
}

// Location returns the fixed zone used for every label.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant expressed in the fixed zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// DateLabel formats t as "MM월DD일".
func (c *Clock) DateLabel(t time.Time) string {
	t = t.In(c.loc)
	return FormatDateLabel(t.Month(), t.Day())
}

// TimeLabel formats t as "HH:mm".
func (c *Clock) TimeLabel(t time.Time) string {
	return t.In(c.loc).Format("15:04")
}

// Weekday returns the ISO weekday of t, 1 for Monday through 7 for Sunday.
func (c *Clock) Weekday(t time.Time) int {
	wd := int(t.In(c.loc).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func (c *Clock) IsWeekend(t time.Time) bool {
	return c.Weekday(t) >= 6
}

// DaysElapsed returns the number of civil days between the date named by
// label and ref. The label carries no year, so it is taken from yearHint, or
// from ref when yearHint is zero. A label that cannot be parsed yields 0.
func (c *Clock) DaysElapsed(label string, ref, yearHint time.Time) int {
	month, day, ok := ParseDateLabel(label)
	if !ok {
		return 0
	}
	ref = ref.In(c.loc)
	year := ref.Year()
	if !yearHint.IsZero() {
		year = yearHint.In(c.loc).Year()
	}

	// Compare as UTC midnights so DST-free whole days divide evenly.
	labelled := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	return int(today.Sub(labelled).Hours() / 24)
}

// YearHint returns an instant in the year the label most likely belongs to,
// given when the menu was captured. A label later in the year than the
// capture date was posted the year before, e.g. 12월31일 captured in January.
func (c *Clock) YearHint(label string, capturedAt time.Time) time.Time {
	month, day, ok := ParseDateLabel(label)
	if !ok || capturedAt.IsZero() {
		return capturedAt
	}
	captured := capturedAt.In(c.loc)
	if month > captured.Month() || (month == captured.Month() && day > captured.Day()) {
		return captured.AddDate(-1, 0, 0)
	}
	return captured
}

// FormatDateLabel renders a month and day as a date label.
func FormatDateLabel(month time.Month, day int) string {
	return fmt.Sprintf("%02d월%02d일", int(month), day)
}

// ParseDateLabel extracts month and day from a label. It rejects labels
// whose month or day are out of range.
func ParseDateLabel(label string) (time.Month, int, bool) {
	m := datePattern.FindStringSubmatch(label)
	if m == nil || m[0] != label {
		return 0, 0, false
	}
	return validate(m[1], m[2])
}

// FindDateLabel returns the first date label embedded in text.
func FindDateLabel(text string) (string, bool) {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if _, _, ok := validate(m[1], m[2]); !ok {
		return "", false
	}
	return m[0], true
}

func validate(rawMonth, rawDay string) (time.Month, int, bool) {
	month, err := strconv.Atoi(rawMonth)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	day, err := strconv.Atoi(rawDay)
	if err != nil || day < 1 {
		return 0, 0, false
	}
	// 2000 is a leap year, so 02월29일 stays valid.
	if time.Date(2000, time.Month(month), day, 0, 0, 0, 0, time.UTC).Day() != day {
		return 0, 0, false
	}
	return time.Month(month), day, true
}
