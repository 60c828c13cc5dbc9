package repository

import (
	"context"
	"sync"

	"github.com/okian/curvewatch/internal/domain/model"
)

// MemoryStore keeps the latest run in process.
type MemoryStore struct {
	mu  sync.RWMutex
	run *model.Run
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Publish(_ context.Context, run *model.Run) error {
	if run == nil {
		return ErrNilRun
	}
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Latest(_ context.Context) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.run == nil {
		return nil, ErrNotFound
	}
	return s.run, nil
}

func (s *MemoryStore) Rows(ctx context.Context, f Filter) ([]model.MetricRow, error) {
	if f.Limit < 0 {
		return nil, ErrInvalidLimit
	}
	run, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(run.Rows), nil
}

func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.run == nil {
		return 0
	}
	return len(s.run.Rows)
}
