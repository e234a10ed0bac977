package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DueDateLayout     = "2/1/2006"
	DueDateTimeLayout = "2/1/2006 15:04"
)

// ParseDueDate reads day/month/year, or day/month/year hour:minute when the
// input carries a colon. Dates without a time resolve to midnight in loc.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDueDate)
	}
	layout := DueDateLayout
	if strings.Contains(s, ":") {
		layout = DueDateTimeLayout
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q does not match %s", ErrInvalidDueDate, s, layout)
	}
	return t, nil
}

// FormatDueDate renders t in the layout ParseDueDate accepts with a time part.
func FormatDueDate(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}
