package command

import (
	"errors"
	"strconv"
	"strings"
)

// RetryCountHeader is the Kafka header carrying the number of times a message has been republished.
const RetryCountHeader = "x-retryCount"

// RetrySuffix names the companion topic of every primary topic.
const RetrySuffix = "-retry"

// Topics names the three primary command topics.
type Topics struct {
	UserCommands    string
	MessageCommands string
	SessionCommands string
}

// DefaultTopics returns the topic names used when nothing is configured.
func DefaultTopics() Topics {
	return Topics{
		UserCommands:    "user-commands",
		MessageCommands: "message-commands",
		SessionCommands: "session-commands",
	}
}

// Primary returns the primary topics in a fixed order.
func (t Topics) Primary() []string {
	return []string{t.UserCommands, t.MessageCommands, t.SessionCommands}
}

// All returns every primary topic followed by its retry companion.
func (t Topics) All() []string {
	out := make([]string, 0, 6)
	for _, p := range t.Primary() {
		out = append(out, p, RetryTopic(p))
	}
	return out
}

// RetryTopic returns the retry companion of topic. A topic that already is a retry topic maps to itself,
// so a message escalated from the retry topic stays there.
func RetryTopic(topic string) string {
	if IsRetryTopic(topic) {
		return topic
	}
	return topic + RetrySuffix
}

// IsRetryTopic reports whether topic is a retry companion.
func IsRetryTopic(topic string) bool {
	return strings.HasSuffix(topic, RetrySuffix)
}

// BaseTopic strips the retry suffix, if any.
func BaseTopic(topic string) string {
	return strings.TrimSuffix(topic, RetrySuffix)
}

// ErrInvalidRetryCount is returned by ParseRetryCount for a value that is not a non-negative integer.
var ErrInvalidRetryCount = errors.New("command: invalid retry count")

// ParseRetryCount parses the value of the retry-count header. An empty value means attempt 0.
func ParseRetryCount(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, ErrInvalidRetryCount
	}
	return n, nil
}

// FormatRetryCount encodes an attempt count as a header value.
func FormatRetryCount(n int) []byte {
	return []byte(strconv.Itoa(n))
}
