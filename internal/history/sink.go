package history

import (
	"context"
	"time"

	"captionsaver/internal/transcript"
)

// Name identifies the store in sink logs.
func (s *Store) Name() string { return "history" }

// Export records a finished transcript.
func (s *Store) Export(ctx context.Context, doc transcript.Document) error {
	ended := doc.EndedAt
	if ended.IsZero() {
		ended = time.Now()
	}
	return s.Upsert(ctx, Meeting{
		ID:        doc.ID,
		Title:     doc.Title,
		StartedAt: doc.StartedAt,
		UpdatedAt: ended,
		EndedAt:   &ended,
		Lines:     doc.Lines,
	})
}

// Checkpoint records an in-progress transcript without marking it finished.
func (s *Store) Checkpoint(ctx context.Context, doc transcript.Document) error {
	return s.Upsert(ctx, Meeting{
		ID:        doc.ID,
		Title:     doc.Title,
		StartedAt: doc.StartedAt,
		UpdatedAt: time.Now(),
		Lines:     doc.Lines,
	})
}
