package domain

import (
	"errors"
	"time"
)

// ErrVersionConflict is returned by a repository when the stored log changed since it was read.
var ErrVersionConflict = errors.New("activity log: modified concurrently")

// Action is the kind of activity an entry records.
type Action string

const (
	ActionUserCreation Action = "USER_CREATION"
	ActionLoginAttempt Action = "LOGIN_ATTEMPT"
)

// Entry is one recorded activity. FailureReason is nil unless the activity failed.
type Entry struct {
	IPAddress     string
	UserAgent     string
	Successful    bool
	Timestamp     time.Time
	FailureReason *string
	Action        Action
}

// ActivityLog is the append-only activity history of one user.
type ActivityLog struct {
	ID      string
	UserID  string
	Logs    []Entry
	Version int64
}

// Append adds e at the end of the log.
func (l *ActivityLog) Append(e Entry) {
	l.Logs = append(l.Logs, e)
}

// EntryPage is one slice of a user's log and the log's total size.
type EntryPage struct {
	Entries []Entry
	Total   int64
	Offset  int
	Limit   int
}
