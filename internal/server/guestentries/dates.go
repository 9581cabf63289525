package guestentries

import (
	"strconv"
	"strings"
	"time"
)

// Date formats in blueprints use PHP date() tokens. Each token maps to the
// Go layout that renders it on its own.
var phpTokens = map[byte]string{
	'd': "02",
	'j': "2",
	'D': "Mon",
	'l': "Monday",
	'm': "01",
	'n': "1",
	'M': "Jan",
	'F': "January",
	'Y': "2006",
	'y': "06",
	'H': "15",
	'h': "03",
	'g': "3",
	'i': "04",
	's': "05",
	'A': "PM",
	'a': "pm",
	'T': "MST",
	'P': "-07:00",
	'O': "-0700",
}

const (
	defaultDateFormat     = "Y-m-d"
	defaultDateTimeFormat = "Y-m-d H:i"
)

// phpFuncs covers tokens no Go layout can express.
var phpFuncs = map[byte]func(time.Time) string{
	'G': func(t time.Time) string { return strconv.Itoa(t.Hour()) },
	'U': func(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) },
}

// FormatPHP renders t with a PHP date() format. Tokens are formatted one at
// a time, so everything else (digits, spaces, punctuation and unknown
// letters) is copied literally. A backslash escapes the next character.
func FormatPHP(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '\\' && i+1 < len(format) {
			i++
			b.WriteByte(format[i])
			continue
		}
		if fn, ok := phpFuncs[c]; ok {
			b.WriteString(fn(t))
			continue
		}
		if layout, ok := phpTokens[c]; ok {
			b.WriteString(t.Format(layout))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

var inputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006-01",
	"2006",
}

// ParseDateInput reads a submitted date or date-time. Values without a
// zone are taken as UTC.
func ParseDateInput(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate reformats raw with a PHP format. An empty format falls back to
// Y-m-d for values up to ten characters and Y-m-d H:i for longer ones.
func FormatDate(raw, format string) (string, bool) {
	t, ok := ParseDateInput(raw)
	if !ok {
		return "", false
	}
	if format == "" {
		format = defaultDateFormat
		if len(strings.TrimSpace(raw)) > 10 {
			format = defaultDateTimeFormat
		}
	}
	return FormatPHP(t, format), true
}
