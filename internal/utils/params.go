// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-todo-backend/internal/apperr"
)

// dateOnly is the calendar-day layout accepted alongside RFC 3339.
const dateOnly = "2006-01-02"

// ParseID parses a positive decimal resource id from a path segment.
// Anything else is reported as bad input.
//
//	id, err := utils.ParseID(c.Param("id"))
func ParseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, apperr.BadInput("id %q is not a positive integer", s)
	}
	if n == 0 || n > uint64(^uint(0)) {
		return 0, apperr.BadInput("id %q is out of range", s)
	}
	return uint(n), nil
}

// ParseDateParam parses an optional query parameter holding either an
// RFC 3339 timestamp or a YYYY-MM-DD date. An empty value returns (nil, nil).
// A bare date denotes the start of that UTC day, or its last nanosecond when
// endOfDay is set, so "to=2025-01-31" includes the whole day.
func ParseDateParam(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	d, err := time.ParseInLocation(dateOnly, s, time.UTC)
	if err != nil {
		return nil, apperr.BadInput("date %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return &d, nil
}
