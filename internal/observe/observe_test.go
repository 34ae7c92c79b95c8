package observe_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"captionsaver/internal/observe"
	"captionsaver/internal/transcript"
)

func collect(t *testing.T, src *observe.JSONLSource) ([]transcript.Observation, error) {
	t.Helper()
	var got []transcript.Observation
	err := src.Run(context.Background(), func(obs transcript.Observation) {
		got = append(got, obs)
	})
	return got, err
}

func TestParseFragmentTimestamps(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `{"sourceId":"a","text":"hi","observedAt":"2026-03-01T10:00:05Z"}`, time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)},
		{"millis", `{"text":"hi","observedAt":1772359205000}`, time.UnixMilli(1772359205000)},
		{"missing", `{"text":"hi"}`, time.Time{}},
		{"null", `{"text":"hi","observedAt":null}`, time.Time{}},
		{"empty string", `{"text":"hi","observedAt":""}`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, err := observe.ParseFragment([]byte(tt.in))
			if err != nil {
				t.Fatalf("ParseFragment: %v", err)
			}
			if got := frag.Observation().ObservedAt; !got.Equal(tt.want) {
				t.Fatalf("observedAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFragmentErrors(t *testing.T) {
	if _, err := observe.ParseFragment([]byte(`{"sourceId":"a"}`)); !errors.Is(err, observe.ErrMissingText) {
		t.Fatalf("expected ErrMissingText, got %v", err)
	}
	if _, err := observe.ParseFragment([]byte(`{"text":`)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := observe.ParseFragment([]byte(`{"text":"x","observedAt":"yesterday"}`)); err == nil {
		t.Fatal("expected timestamp error")
	}
	frag, err := observe.ParseFragment([]byte(`{"text":""}`))
	if err != nil || frag.Text != "" {
		t.Fatalf("empty text is a valid fragment: %+v, %v", frag, err)
	}
}

func TestJSONLSourceMixedLines(t *testing.T) {
	input := strings.Join([]string{
		`# recorded 2026-03-01`,
		`{"sourceId":"n1","text":"hello ther","observedAt":"2026-03-01T10:00:00Z"}`,
		``,
		`{"sourceId":"n1","text":"hello there","observedAt":"2026-03-01T10:00:01Z"}`,
		`plain caption text`,
	}, "\n")
	got, err := collect(t, observe.NewJSONLSource(strings.NewReader(input), "capture.jsonl"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(got))
	}
	if got[1].SourceID != "n1" || got[1].Text != "hello there" {
		t.Fatalf("unexpected observation %+v", got[1])
	}
	if got[2].SourceID != "" || got[2].Text != "plain caption text" || !got[2].ObservedAt.IsZero() {
		t.Fatalf("unexpected plain observation %+v", got[2])
	}
}

func TestJSONLSourceStrictReportsLine(t *testing.T) {
	input := "{\"text\":\"ok\"}\n{\"text\": nope}\n"
	_, err := collect(t, observe.NewJSONLSource(strings.NewReader(input), "bad.jsonl"))
	if err == nil || !strings.Contains(err.Error(), "bad.jsonl:2") {
		t.Fatalf("expected positioned error, got %v", err)
	}
}

func TestJSONLSourceLenientSkips(t *testing.T) {
	input := "{\"text\": nope}\n{\"text\":\"kept\"}\n"
	got, err := collect(t, observe.NewJSONLSource(strings.NewReader(input), "bad.jsonl", observe.WithLenient(nil)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 || got[0].Text != "kept" {
		t.Fatalf("unexpected observations %+v", got)
	}
}

func TestJSONLSourceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := observe.NewJSONLSource(strings.NewReader("a line\n"), "stdin")
	if err := src.Run(ctx, func(transcript.Observation) {}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestJSONLWriterRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 250_000_000, time.UTC)
	in := []transcript.Observation{
		{SourceID: "a", Text: "first line of text", ObservedAt: at},
		{Text: "no source or time"},
	}
	var buf bytes.Buffer
	w := observe.NewJSONLWriter(&buf)
	for _, obs := range in {
		if err := w.Write(obs); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if strings.Contains(buf.String(), "observedAt\":\"0001") {
		t.Fatalf("zero time should be omitted: %s", buf.String())
	}

	out, err := collect(t, observe.NewJSONLSource(&buf, "buffer"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 || !out[0].ObservedAt.Equal(at) || out[0].SourceID != "a" || out[1].Text != "no source or time" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
