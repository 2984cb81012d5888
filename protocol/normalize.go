package protocol

import (
	"strings"
	"time"
)

// StatusClass reduces the backend's status vocabulary to the buckets the
// engine branches on. Unrecognized strings land in StatusUnknown rather
// than erroring.
type StatusClass int

const (
	StatusUnknown StatusClass = iota
	StatusPending
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (c StatusClass) String() string {
	switch c {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the class represents a finished interaction.
func (c StatusClass) Terminal() bool {
	return c == StatusCompleted || c == StatusFailed
}

// NormalizeStatus maps a raw backend status string onto a StatusClass.
// Matching is case-insensitive over known synonym sets.
func NormalizeStatus(raw string) StatusClass {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED", "COMPLETE", "SUCCESS", "SUCCEEDED", "DONE", "OK":
		return StatusCompleted
	case "FAILED", "FAILURE", "ERROR", "ERRORED":
		return StatusFailed
	case "RUNNING", "PROCESSING", "IN_PROGRESS", "STARTED", "STREAMING":
		return StatusRunning
	case "PENDING", "QUEUED", "WAITING", "CREATED":
		return StatusPending
	default:
		return StatusUnknown
	}
}

// ParseTimestamp parses a backend timestamp. The pipeline emits naive
// ISO-8601 timestamps (no zone suffix) that are UTC by convention, so a
// missing zone is normalized by appending "Z" before parsing. The second
// return is false when the value cannot be parsed; callers must treat
// that as unknown, never as the zero epoch.
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if !hasZoneSuffix(s) {
		s += "Z"
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// hasZoneSuffix reports whether the time-of-day part carries an explicit
// zone. The date part always contains '-', so only characters after the
// 'T' separator count.
func hasZoneSuffix(s string) bool {
	t := strings.IndexAny(s, "Tt ")
	if t < 0 {
		return false
	}
	rest := s[t+1:]
	return strings.ContainsAny(rest, "Zz+-")
}
