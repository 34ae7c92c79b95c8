package ingest

import (
	"encoding/json"
	"fmt"

	"captionsaver/internal/observe"
)

// Message types accepted on /v1/fragments.
const (
	TypeFragment = "fragment"
	TypeTitle    = "title"
	TypeFinish   = "finish"
	TypeReset    = "reset"
)

// envelope is the superset of every inbound message.
type envelope struct {
	Type       string            `json:"type"`
	Title      string            `json:"title"`
	SourceID   string            `json:"sourceId"`
	Text       *string           `json:"text"`
	ObservedAt observe.Timestamp `json:"observedAt"`
}

// Ack answers a control message or reports a rejected message.
type Ack struct {
	Type      string `json:"type"`
	Op        string `json:"op,omitempty"`
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId,omitempty"`
	Lines     int    `json:"lines"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Health is the /v1/health response body.
type Health struct {
	Status            string `json:"status"`
	SessionID         string `json:"session_id"`
	Title             string `json:"title,omitempty"`
	Lines             int    `json:"lines"`
	Connections       int64  `json:"connections"`
	FragmentsReceived uint64 `json:"fragments_received"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("decode message: %w", err)
	}
	if env.Type == "" {
		env.Type = TypeFragment
	}
	if env.Type == TypeFragment && env.Text == nil {
		return envelope{}, observe.ErrMissingText
	}
	return env, nil
}

func (e envelope) fragment() observe.Fragment {
	text := ""
	if e.Text != nil {
		text = *e.Text
	}
	return observe.Fragment{SourceID: e.SourceID, Text: text, ObservedAt: e.ObservedAt}
}
