package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"captionsaver/internal/config"
	"captionsaver/internal/transcript"
)

// RedisSink publishes transcripts to Redis. Each document is stored as a hash
// of metadata at <prefix><id>, a list of lines at <prefix><id>:lines, and a
// member of the sorted set <prefix>index scored by start time.
type RedisSink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client *redis.Client, prefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisSinkFromConfig dials the configured server. It returns nil, nil
// when Redis export is disabled.
func NewRedisSinkFromConfig(cfg *config.Config) (*RedisSink, error) {
	if cfg == nil || cfg.Redis.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewRedisSink(client, cfg.Redis.KeyPrefix, cfg.RedisTTL()), nil
}

// Name identifies the sink in logs.
func (s *RedisSink) Name() string { return "redis" }

// Ping checks connectivity.
func (s *RedisSink) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", s.client.Options().Addr, err)
	}
	return nil
}

// Close releases the client connection pool.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// DocumentKey is the hash key holding metadata for id.
func (s *RedisSink) DocumentKey(id string) string { return s.prefix + id }

// LinesKey is the list key holding the lines for id.
func (s *RedisSink) LinesKey(id string) string { return s.prefix + id + ":lines" }

// IndexKey is the sorted set of exported document IDs.
func (s *RedisSink) IndexKey() string { return s.prefix + "index" }

// Export replaces any previous copy of doc in a single transaction.
func (s *RedisSink) Export(ctx context.Context, doc transcript.Document) error {
	if doc.ID == "" {
		return errors.New("redis export: document id is required")
	}
	docKey := s.DocumentKey(doc.ID)
	linesKey := s.LinesKey(doc.ID)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey, linesKey)
		pipe.HSet(ctx, docKey, map[string]any{
			"id":         doc.ID,
			"title":      doc.Title,
			"started_at": doc.StartedAt.UTC().Format(time.RFC3339),
			"ended_at":   doc.EndedAt.UTC().Format(time.RFC3339),
			"line_count": strconv.Itoa(len(doc.Lines)),
			"text":       doc.Text(),
		})
		if len(doc.Lines) > 0 {
			values := make([]any, len(doc.Lines))
			for i, line := range doc.Lines {
				values[i] = line
			}
			pipe.RPush(ctx, linesKey, values...)
		}
		pipe.ZAdd(ctx, s.IndexKey(), redis.Z{Score: float64(doc.StartedAt.Unix()), Member: doc.ID})
		if s.ttl > 0 {
			pipe.Expire(ctx, docKey, s.ttl)
			pipe.Expire(ctx, linesKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis export %s: %w", doc.ID, err)
	}
	return nil
}

// Fetch reads a document back. It returns nil, nil when the key is absent.
func (s *RedisSink) Fetch(ctx context.Context, id string) (*transcript.Document, error) {
	fields, err := s.client.HGetAll(ctx, s.DocumentKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis fetch %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	lines, err := s.client.LRange(ctx, s.LinesKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis fetch lines %s: %w", id, err)
	}
	doc := &transcript.Document{ID: id, Title: fields["title"], Lines: lines}
	if t, err := time.Parse(time.RFC3339, fields["started_at"]); err == nil {
		doc.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339, fields["ended_at"]); err == nil {
		doc.EndedAt = t
	}
	return doc, nil
}
