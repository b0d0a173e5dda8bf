package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/dvloznov/sales-etl/internal/runs"
)

// DefaultCapacity is the number of runs kept when NewStore is given zero.
const DefaultCapacity = 500

// Store is an in-memory implementation of runs.Store.
// It keeps the most recent runs up to its capacity and is safe for concurrent use.
// Data is lost on service restart.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]*runs.Run
	order    []string
	capacity int
}

// NewStore creates a new in-memory run store.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		runs:     make(map[string]*runs.Run),
		capacity: capacity,
	}
}

// SaveRun implements the runs.Store interface.
// It saves or updates a run in memory.
func (s *Store) SaveRun(ctx context.Context, run *runs.Run) error {
	if run.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; !exists {
		s.order = append(s.order, run.RunID)
		if len(s.order) > s.capacity {
			evicted := s.order[0]
			s.order = s.order[1:]
			delete(s.runs, evicted)
		}
	}
	s.runs[run.RunID] = copyRun(run)

	return nil
}

// GetRun implements the runs.Store interface.
func (s *Store) GetRun(ctx context.Context, runID string) (*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("GetRun: %s: %w", runID, runs.ErrNotFound)
	}
	return copyRun(run), nil
}

// ListRuns implements the runs.Store interface.
func (s *Store) ListRuns(ctx context.Context, filter runs.Filter) ([]*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*runs.Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		run := s.runs[s.order[i]]
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if filter.Trigger != "" && run.Trigger != filter.Trigger {
			continue
		}
		result = append(result, copyRun(run))
	}

	// Most recent first; insertion order breaks ties.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*runs.Run{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// copyRun avoids sharing maps and slices with callers.
func copyRun(run *runs.Run) *runs.Run {
	c := *run
	if run.Extracted != nil {
		c.Extracted = make(map[domain.Source]int, len(run.Extracted))
		for k, v := range run.Extracted {
			c.Extracted[k] = v
		}
	}
	if run.FailedSources != nil {
		c.FailedSources = append([]domain.Source(nil), run.FailedSources...)
	}
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Ensure Store implements runs.Store interface.
var _ runs.Store = (*Store)(nil)
