package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// MemoryStore keeps jobs in process memory. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func copyJob(j *Job) *Job {
	c := *j
	c.Regions = slices.Clone(j.Regions)
	return &c
}

func (s *MemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJob(j), nil
}

// ListBySession returns the session's jobs, newest first.
func (s *MemoryStore) ListBySession(_ context.Context, sessionID string, limit int) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Job
	for _, j := range s.jobs {
		if j.SessionID == sessionID {
			out = append(out, *copyJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
