package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts accepted for --start and --end besides unix epoch seconds.
// Zone-less layouts are interpreted in local time.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// ParseInstant parses a unix timestamp or a date string into epoch seconds.
func ParseInstant(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty date", ErrConfig)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: negative timestamp %d", ErrConfig, n)
		}
		return n, nil
	}
	for _, layout := range dateFormats {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			if t.Unix() < 0 {
				return 0, fmt.Errorf("%w: date %q is before the epoch", ErrConfig, s)
			}
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("%w: could not parse date %q", ErrConfig, s)
}
