package logger

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Status maps err to "ok", "canceled", "timeout" or "error".
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}

// Took is RoundMS(time.Since(start)).
func Took(start time.Time) time.Duration { return RoundMS(time.Since(start)) }

// RoundMS rounds d to whole milliseconds; negative durations become 0.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and appends "+N" for the rest.
// The flag reports whether anything was cut.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	limit = max(limit, 0)
	rest := "+" + strconv.Itoa(len(values)-limit)
	if limit == 0 {
		return rest, true
	}
	return strings.Join(values[:limit], ", ") + ", " + rest, true
}
