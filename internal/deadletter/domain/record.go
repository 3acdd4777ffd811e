package domain

import (
	"encoding/json"
	"time"
)

// Record is a command that was given up after its last allowed attempt.
type Record struct {
	ID       string    `json:"id"`
	Topic    string    `json:"topic"`
	Key      string    `json:"key"`
	Command  string    `json:"command,omitempty"`
	Payload  string    `json:"payload"`
	Attempts int       `json:"attempts"`
	MaxRetry int       `json:"maxRetry"`
	Cause    string    `json:"cause"`
	FailedAt time.Time `json:"failedAt"`
}

// CommandKindOf extracts the "command" field of a payload; empty if the payload is not a JSON object.
func CommandKindOf(payload []byte) string {
	var peek struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(payload, &peek); err != nil {
		return ""
	}
	return peek.Command
}
