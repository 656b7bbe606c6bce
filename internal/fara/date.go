package fara

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// isoLayout is an ISO-8601 local date-time with no zone designator.
const isoLayout = "2006-01-02T15:04:05"

// FormatDate converts a US MM/DD/YYYY date into a midnight ISO-8601 local
// date-time, e.g. "03/25/1999" becomes "1999-03-25T00:00:00".
func FormatDate(raw string) (string, error) {
	t, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return t.Format(isoLayout), nil
}

// ParseDate parses a MM/DD/YYYY date. Zero padding is optional; every
// component must be all digits and name a real calendar day.
// The returned time is midnight UTC; only its calendar fields are meaningful.
func ParseDate(raw string) (time.Time, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w %q: want MM/DD/YYYY", ErrInvalidDate, raw)
	}
	var nums [3]int
	for i, part := range parts {
		n, err := parseDigits(part)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, raw, err)
		}
		nums[i] = n
	}
	month, day, year := nums[0], nums[1], nums[2]
	if year < 1 || year > 9999 {
		return time.Time{}, fmt.Errorf("%w %q: year %d out of range", ErrInvalidDate, raw, year)
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w %q: month %d out of range", ErrInvalidDate, raw, month)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if day < 1 || t.Day() != day {
		return time.Time{}, fmt.Errorf("%w %q: day %d out of range", ErrInvalidDate, raw, day)
	}
	return t, nil
}

func parseDigits(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty component")
	}
	if len(s) > 4 {
		return 0, fmt.Errorf("component %q too long", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("component %q is not numeric", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("component %q: %w", s, err)
	}
	return n, nil
}
