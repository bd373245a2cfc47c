package apierr

import "time"

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

func validDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func validClock(s string) bool {
	_, err := time.Parse(ClockLayout, s)
	return err == nil
}

// ValidDate reports whether s is a calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool { return validDate(s) }

// ValidClock reports whether s is a 24-hour HH:MM time.
func ValidClock(s string) bool { return validClock(s) }
