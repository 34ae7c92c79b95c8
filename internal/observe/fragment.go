package observe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"captionsaver/internal/transcript"
)

// Fragment is the wire form of a caption observation.
type Fragment struct {
	SourceID   string    `json:"sourceId,omitempty"`
	Text       string    `json:"text"`
	ObservedAt Timestamp `json:"observedAt,omitzero"`
}

// Observation converts the fragment for the engine.
func (f Fragment) Observation() transcript.Observation {
	return transcript.Observation{
		SourceID:   transcript.SourceID(f.SourceID),
		Text:       f.Text,
		ObservedAt: time.Time(f.ObservedAt),
	}
}

// FromObservation converts an observation to its wire form.
func FromObservation(obs transcript.Observation) Fragment {
	return Fragment{SourceID: string(obs.SourceID), Text: obs.Text, ObservedAt: Timestamp(obs.ObservedAt)}
}

// ErrMissingText is returned for fragments without a text field.
var ErrMissingText = errors.New("fragment has no text field")

// ParseFragment decodes one JSON fragment.
func ParseFragment(data []byte) (Fragment, error) {
	var raw struct {
		SourceID   string    `json:"sourceId"`
		Text       *string   `json:"text"`
		ObservedAt Timestamp `json:"observedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Fragment{}, fmt.Errorf("decode fragment: %w", err)
	}
	if raw.Text == nil {
		return Fragment{}, ErrMissingText
	}
	return Fragment{SourceID: raw.SourceID, Text: *raw.Text, ObservedAt: raw.ObservedAt}, nil
}

// Timestamp accepts RFC 3339 strings or Unix milliseconds and always encodes
// as RFC 3339.
type Timestamp time.Time

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool { return time.Time(t).IsZero() }

// MarshalJSON encodes the timestamp as RFC 3339 with nanoseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON decodes an RFC 3339 string, a millisecond number or null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("observedAt: %w", err)
		}
		*t = Timestamp(parsed)
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("observedAt: %w", err)
	}
	*t = Timestamp(time.UnixMilli(int64(ms)))
	return nil
}
