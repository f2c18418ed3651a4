package api

import (
	"sync"

	"github.com/google/uuid"
)

// RunStore keeps finished runs in memory, keyed by id.
type RunStore struct {
	mu    sync.Mutex
	runs  map[string]*Run
	order []string
	limit int
}

// NewRunStore keeps at most limit runs, dropping the oldest first. A limit
// of zero or less keeps everything.
func NewRunStore(limit int) *RunStore {
	return &RunStore{
		runs:  make(map[string]*Run),
		limit: limit,
	}
}

func (s *RunStore) Put(run Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = &run
	for s.limit > 0 && len(s.order) > s.limit {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *RunStore) Get(id string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

func (s *RunStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return false
	}
	delete(s.runs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *RunStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

func newRunID() string {
	return "run_" + uuid.NewString()
}
