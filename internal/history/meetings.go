package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"captionsaver/internal/transcript"
)

// UntitledMeeting is shown for meetings saved without a title.
const UntitledMeeting = "Untitled Meeting"

// ErrAmbiguousID is returned by Resolve when a prefix matches several meetings.
var ErrAmbiguousID = errors.New("meeting id prefix is ambiguous")

// Meeting is one persisted transcript.
type Meeting struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	LineCount int        `json:"line_count"`
	Lines     []string   `json:"lines,omitempty"`
}

// DisplayTitle returns the title, or UntitledMeeting when it is blank.
func (m Meeting) DisplayTitle() string {
	if title := strings.TrimSpace(m.Title); title != "" {
		return title
	}
	return UntitledMeeting
}

// InProgress reports whether the meeting was checkpointed but never finished.
func (m Meeting) InProgress() bool {
	return m.EndedAt == nil
}

// Document converts the meeting into an exportable transcript document. An
// in-progress meeting uses its last update as the end time.
func (m Meeting) Document() transcript.Document {
	ended := m.UpdatedAt
	if m.EndedAt != nil {
		ended = *m.EndedAt
	}
	return transcript.Document{
		ID:        m.ID,
		Title:     m.Title,
		StartedAt: m.StartedAt,
		EndedAt:   ended,
		Lines:     append([]string(nil), m.Lines...),
	}
}

const meetingColumns = "id, title, started_at, updated_at, ended_at, line_count, lines_json"

// Upsert inserts the meeting or replaces the stored copy with the same ID.
func (s *Store) Upsert(ctx context.Context, m Meeting) error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("meeting id is required")
	}
	if m.StartedAt.IsZero() {
		return errors.New("meeting start time is required")
	}
	lines := m.Lines
	if lines == nil {
		lines = []string{}
	}
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}
	updated := m.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.execWithRetry(ctx,
		`INSERT INTO meetings (`+meetingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             title = excluded.title,
             started_at = excluded.started_at,
             updated_at = excluded.updated_at,
             ended_at = COALESCE(excluded.ended_at, meetings.ended_at),
             line_count = excluded.line_count,
             lines_json = excluded.lines_json`,
		m.ID,
		strings.TrimSpace(m.Title),
		formatTime(m.StartedAt),
		formatTime(updated),
		nullableTime(m.EndedAt),
		len(lines),
		string(linesJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert meeting: %w", err)
	}
	return nil
}

// Get fetches a meeting by its full ID. It returns nil, nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Meeting, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	return m, nil
}

// Resolve finds a meeting by full ID or unique ID prefix. It returns nil, nil
// when nothing matches and ErrAmbiguousID when the prefix is not unique.
func (s *Store) Resolve(ctx context.Context, ref string) (*Meeting, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("meeting id is required")
	}
	if m, err := s.Get(ctx, ref); err != nil || m != nil {
		return m, err
	}

	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+meetingColumns+` FROM meetings WHERE substr(id, 1, ?) = ? LIMIT 2`,
		len(ref), ref,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve meeting: %w", err)
	}
	defer rows.Close()

	var matches []*Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve meeting: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousID, ref)
	}
}

// ListOptions filters List results. Zero values mean no limit.
type ListOptions struct {
	Limit int
	Since time.Time
}

// List returns meetings newest first. Line bodies are omitted.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings`
	var args []any
	if !opts.Since.IsZero() {
		query += ` WHERE started_at >= ?`
		args = append(args, formatTime(opts.Since))
	}
	query += ` ORDER BY started_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		m.Lines = nil
		meetings = append(meetings, *m)
	}
	return meetings, rows.Err()
}

// Delete removes one meeting and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete meeting: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteAll removes every meeting and returns how many were removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM meetings`)
	if err != nil {
		return 0, fmt.Errorf("clear meetings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Count returns the number of stored meetings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM meetings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count meetings: %w", err)
	}
	return n, nil
}

func scanMeeting(scanner interface{ Scan(dest ...any) error }) (*Meeting, error) {
	var (
		m          Meeting
		startedRaw string
		updatedRaw string
		endedRaw   sql.NullString
		linesJSON  string
	)
	if err := scanner.Scan(&m.ID, &m.Title, &startedRaw, &updatedRaw, &endedRaw, &m.LineCount, &linesJSON); err != nil {
		return nil, err
	}
	if t, err := parseTimeString(startedRaw); err == nil {
		m.StartedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		m.UpdatedAt = t
	}
	if endedRaw.Valid {
		if t, err := parseTimeString(endedRaw.String); err == nil {
			m.EndedAt = &t
		}
	}
	if err := json.Unmarshal([]byte(linesJSON), &m.Lines); err != nil {
		return nil, fmt.Errorf("decode lines for %s: %w", m.ID, err)
	}
	return &m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
