package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"captionsaver/internal/textutil"
	"captionsaver/internal/transcript"
)

const maxCollisionSuffix = 1000

// FileSink writes transcripts as text files in a directory.
type FileSink struct {
	dir string
	now func() time.Time
}

// NewFileSink creates a sink rooted at dir. The directory is created on the
// first export.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir, now: time.Now}
}

// Name identifies the sink in logs.
func (s *FileSink) Name() string { return "file" }

// Dir returns the export directory.
func (s *FileSink) Dir() string { return s.dir }

// FileName returns the base name used for doc: the sanitized title and the
// local date the meeting started, or the date of now when it has no start.
func FileName(doc transcript.Document, now time.Time) string {
	day := doc.StartedAt
	if day.IsZero() {
		day = now
	}
	title := textutil.SanitizeTitle(doc.Title, textutil.DefaultTitleFallback)
	return title + "-" + day.Local().Format("2006-01-02") + ".txt"
}

// Export implements the sink interface.
func (s *FileSink) Export(ctx context.Context, doc transcript.Document) error {
	_, err := s.Write(ctx, doc)
	return err
}

// Write saves doc and returns the file path. When the preferred name is taken
// by a different transcript the name gains a " (n)" suffix; when it already
// holds identical content the existing path is returned untouched.
func (s *FileSink) Write(ctx context.Context, doc transcript.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(s.dir) == "" {
		return "", errors.New("export directory is not configured")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	data := []byte(doc.Text())
	base := FileName(doc, s.now())
	stem := strings.TrimSuffix(base, ".txt")

	for n := 1; n <= maxCollisionSuffix; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s (%d).txt", stem, n)
		}
		target := filepath.Join(s.dir, name)
		existing, err := os.ReadFile(target)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if err := writeFileAtomic(target, data, 0o644); err != nil {
				return "", err
			}
			return target, nil
		case err != nil:
			return "", fmt.Errorf("inspect %s: %w", target, err)
		case bytes.Equal(existing, data):
			return target, nil
		}
	}
	return "", fmt.Errorf("no free file name for %q in %s", base, s.dir)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
