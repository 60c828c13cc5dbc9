package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/curvewatch/internal/domain/model"
	"github.com/okian/curvewatch/pkg/metrics"
)

const defaultRedisKey = "curvewatch:latest"

// RedisStore shares the latest run between service replicas. The decoded run
// is cached locally until the stored run id changes.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu     sync.Mutex
	cached *model.Run
}

// NewRedisStore wraps a client.
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{client: client, key: defaultRedisKey}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) idKey() string { return s.key + ":id" }

// Publish writes the run body and its id atomically.
func (s *RedisStore) Publish(ctx context.Context, run *model.Run) error {
	if run == nil {
		return ErrNilRun
	}
	start := time.Now()
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key, body, s.ttl)
		p.Set(ctx, s.idKey(), run.RunID, s.ttl)
		return nil
	})
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("publish run: %w", err)
	}
	metrics.RecordStorePublish(time.Since(start))

	s.mu.Lock()
	s.cached = run
	s.mu.Unlock()
	return nil
}

// Latest returns the stored run, decoding it only when the id has changed.
func (s *RedisStore) Latest(ctx context.Context) (*model.Run, error) {
	id, err := s.client.Get(ctx, s.idKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("read run id: %w", err)
	}

	s.mu.Lock()
	if s.cached != nil && s.cached.RunID == id {
		run := s.cached
		s.mu.Unlock()
		return run, nil
	}
	s.mu.Unlock()

	body, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("read run: %w", err)
	}
	var run model.Run
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}

	s.mu.Lock()
	s.cached = &run
	s.mu.Unlock()
	return &run, nil
}

func (s *RedisStore) Rows(ctx context.Context, f Filter) ([]model.MetricRow, error) {
	if f.Limit < 0 {
		return nil, ErrInvalidLimit
	}
	run, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(run.Rows), nil
}

func (s *RedisStore) Count(ctx context.Context) int {
	run, err := s.Latest(ctx)
	if err != nil {
		return 0
	}
	return len(run.Rows)
}
