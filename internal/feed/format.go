package feed

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pathakanu/lunchbot/internal/clock"
)

const bullet = "•"

var (
	titleLine       = regexp.MustCompile(`^\s*` + clock.DatePattern + weekdayPattern + `[^\n]*` + lunchMarker + `[^\n]*(\n|$)`)
	locationMarkers = []string{"📍", ":round_pushpin:"}
)

// FormatMenuContent turns a raw post body into one "• <icon> <item>" line per
// menu item. Text before the first icon, icons without text and everything
// from the location pin onward are dropped.
func FormatMenuContent(raw string) string {
	text := titleLine.ReplaceAllString(raw, "")

	for _, marker := range locationMarkers {
		if i := strings.Index(text, marker); i >= 0 {
			text = text[:i]
		}
	}

	var lines []string
	for _, seg := range splitIconRuns(text) {
		item := strings.Join(strings.Fields(strings.ReplaceAll(seg.text, bullet, "")), " ")
		if seg.icon == "" || item == "" {
			continue
		}
		lines = append(lines, bullet+" "+seg.icon+" "+item)
	}
	return strings.Join(lines, "\n")
}

type segment struct {
	icon string
	text string
}

// splitIconRuns pairs each maximal run of emoji with the text that follows
// it. Leading text has an empty icon.
func splitIconRuns(text string) []segment {
	var (
		segs   []segment
		cur    segment
		inIcon bool
		icon   strings.Builder
		body   strings.Builder
	)
	flush := func() {
		cur.icon, cur.text = icon.String(), body.String()
		if cur.icon != "" || cur.text != "" {
			segs = append(segs, cur)
		}
		icon.Reset()
		body.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		joined := inIcon && i > 0 && runes[i-1] == zwj

		switch {
		case inIcon && (joined || isEmojiModifier(r) || startsEmoji(r, next)):
			icon.WriteRune(r)
		case startsEmoji(r, next):
			flush()
			inIcon = true
			icon.WriteRune(r)
		default:
			inIcon = false
			body.WriteRune(r)
		}
	}
	flush()
	return segs
}

const (
	zwj          = '\u200d'
	textStyle    = '\ufe0e'
	emojiStyle   = '\ufe0f'
	keycapSuffix = '\u20e3'
)

// emojiPresentation lists the BMP symbols that render as emoji without a
// variation selector.
var emojiPresentation = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x231a, Hi: 0x231b, Stride: 1},
		{Lo: 0x23e9, Hi: 0x23ec, Stride: 1},
		{Lo: 0x23f0, Hi: 0x23f3, Stride: 3},
		{Lo: 0x25fd, Hi: 0x25fe, Stride: 1},
		{Lo: 0x2614, Hi: 0x2615, Stride: 1},
		{Lo: 0x2648, Hi: 0x2653, Stride: 1},
		{Lo: 0x267f, Hi: 0x267f, Stride: 1},
		{Lo: 0x2693, Hi: 0x2693, Stride: 1},
		{Lo: 0x26a1, Hi: 0x26a1, Stride: 1},
		{Lo: 0x26aa, Hi: 0x26ab, Stride: 1},
		{Lo: 0x26bd, Hi: 0x26be, Stride: 1},
		{Lo: 0x26c4, Hi: 0x26c5, Stride: 1},
		{Lo: 0x26ce, Hi: 0x26ce, Stride: 1},
		{Lo: 0x26d4, Hi: 0x26d4, Stride: 1},
		{Lo: 0x26ea, Hi: 0x26ea, Stride: 1},
		{Lo: 0x26f2, Hi: 0x26f3, Stride: 1},
		{Lo: 0x26f5, Hi: 0x26f5, Stride: 1},
		{Lo: 0x26fa, Hi: 0x26fa, Stride: 1},
		{Lo: 0x26fd, Hi: 0x26fd, Stride: 1},
		{Lo: 0x2705, Hi: 0x2705, Stride: 1},
		{Lo: 0x270a, Hi: 0x270b, Stride: 1},
		{Lo: 0x2728, Hi: 0x2728, Stride: 1},
		{Lo: 0x274c, Hi: 0x274e, Stride: 2},
		{Lo: 0x2753, Hi: 0x2755, Stride: 1},
		{Lo: 0x2757, Hi: 0x2757, Stride: 1},
		{Lo: 0x2795, Hi: 0x2797, Stride: 1},
		{Lo: 0x27b0, Hi: 0x27b0, Stride: 1},
		{Lo: 0x27bf, Hi: 0x27bf, Stride: 1},
		{Lo: 0x2b1b, Hi: 0x2b1c, Stride: 1},
		{Lo: 0x2b50, Hi: 0x2b50, Stride: 1},
		{Lo: 0x2b55, Hi: 0x2b55, Stride: 1},
	},
}

// startsEmoji reports whether r begins an emoji, given the rune after it.
// Plain symbols such as ° or ★ only count when a variation selector asks for
// emoji style, and keycaps start with an ASCII digit, # or *.
func startsEmoji(r, next rune) bool {
	switch {
	case r >= 0x1f000 && r <= 0x1faff:
		return true
	case unicode.Is(emojiPresentation, r):
		return true
	case isKeycapBase(r):
		return next == emojiStyle || next == keycapSuffix
	case next == emojiStyle:
		return unicode.Is(unicode.So, r) || r == 0x203c || r == 0x2049
	}
	return false
}

func isKeycapBase(r rune) bool {
	return (r >= '0' && r <= '9') || r == '#' || r == '*'
}

// isEmojiModifier reports runes that only extend the emoji before them.
func isEmojiModifier(r rune) bool {
	switch {
	case r == zwj, r == emojiStyle, r == textStyle, r == keycapSuffix:
		return true
	case r >= 0x1f3fb && r <= 0x1f3ff:
		return true
	case r >= 0xe0020 && r <= 0xe007f:
		return true
	}
	return false
}
