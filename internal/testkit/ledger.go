package testkit

import (
	"context"
	"sort"
	"sync"

	"goseldon/domain/core"
	"goseldon/domain/run"
	"goseldon/ports"
)

// InMemoryRunRepository implements ports.RunRepository with in-memory storage
type InMemoryRunRepository struct {
	runs map[core.RunID]*run.Record
	mu   sync.RWMutex
}

var _ ports.RunRepository = (*InMemoryRunRepository)(nil)

func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{runs: make(map[core.RunID]*run.Record)}
}

func (s *InMemoryRunRepository) SaveRun(ctx context.Context, record *run.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	s.runs[record.ID] = &stored
	return nil
}

func (s *InMemoryRunRepository) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.runs[id]
	if !exists {
		return nil, core.ErrRunNotFound
	}
	out := *record
	return &out, nil
}

// ListRuns returns runs newest first
func (s *InMemoryRunRepository) ListRuns(ctx context.Context, limit, offset int) ([]*run.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*run.Record, 0, len(s.runs))
	for _, r := range s.runs {
		out := *r
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []*run.Record{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
