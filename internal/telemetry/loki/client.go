// Package loki provides a client to push log entries to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Job is the job label attached to every stream.
const Job = "chat-cqrs"

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// labelSanitize replaces characters that are invalid in Loki label values.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// recordFields are the fields of a dead-letter record used as labels and timestamp.
type recordFields struct {
	Topic    string `json:"topic"`
	Command  string `json:"command"`
	FailedAt string `json:"failedAt"`
}

// Client pushes lines to a single Loki instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL (e.g. http://localhost:3100). A nil httpClient uses a 10s timeout client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// PushRecordJSON pushes a JSON record, labelling the stream with its topic and command kind and
// stamping it with failedAt. If parsing fails, the raw line is pushed with the current time.
func (c *Client) PushRecordJSON(ctx context.Context, rawJSON []byte) error {
	labels := map[string]string{"stream": "dead_letter"}
	ts := time.Now().UTC()
	var fields recordFields
	if err := json.Unmarshal(rawJSON, &fields); err == nil {
		if fields.Topic != "" {
			labels["topic"] = fields.Topic
		}
		if fields.Command != "" {
			labels["command"] = fields.Command
		}
		if fields.FailedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, fields.FailedAt); err == nil {
				ts = t
			}
		}
	}
	return c.Push(ctx, ts, string(rawJSON), labels)
}

// Push sends a single log line. Returns an error if the HTTP request fails or Loki returns non-2xx.
func (c *Client) Push(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if c.baseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = Job
	for k, v := range labels {
		sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_")
		if sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	body := PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{fmt.Sprintf("%d", timestamp.UnixNano()), line}},
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/loki/api/v1/push", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
