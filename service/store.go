package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/Daniromero1410/Sistema-Positiva/model"
)

// RunStore keeps the runs started through this shell in memory. The backend owns
// the authoritative run history; this is only what the shell needs to watch and list.
type RunStore struct {
	runs    map[int]*model.RunRecord
	mu      sync.RWMutex
	maxRuns int // Maximum runs to keep, 0 = unlimited
}

func NewRunStore(cfg *config.StoreConfig) *RunStore {
	maxRuns := cfg.MaxRuns
	if maxRuns < 0 {
		maxRuns = 0
	}
	slog.Info("run store initialized", "max_runs", maxRuns)
	return &RunStore{
		runs:    make(map[int]*model.RunRecord),
		maxRuns: maxRuns,
	}
}

func (s *RunStore) Save(rec *model.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()
	s.runs[rec.ID] = rec

	s.cleanupIfNeeded()
}

// Add saves rec only if no run with its ID is stored yet and reports whether it did.
// An existing record keeps its progress.
func (s *RunStore) Add(rec *model.RunRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[rec.ID]; exists {
		return false
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()
	s.runs[rec.ID] = rec

	s.cleanupIfNeeded()
	return true
}

// Get returns a copy of the record so callers never race with the watcher.
func (s *RunStore) Get(id int) (model.RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false
	}
	return *rec, true
}

// List returns copies of all records, newest first. An empty owner lists everyone's.
func (s *RunStore) List(owner string) []model.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		if owner == "" || r.Owner == owner {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *RunStore) Delete(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
}

// ApplyProgress folds an observation into the stored record. It returns the
// observation as clamped by the record, and false when the run is unknown.
func (s *RunStore) ApplyProgress(id int, p model.RunProgress) (model.RunProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return p, false
	}
	return rec.Apply(p), true
}

func (s *RunStore) SetError(id int, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok {
		r.ErrorMsg = errMsg
		r.UpdatedAt = time.Now()
	}
}

// cleanupIfNeeded removes oldest runs if store exceeds maxRuns
// Must be called with lock held
func (s *RunStore) cleanupIfNeeded() {
	if s.maxRuns <= 0 {
		return // Unlimited
	}

	if len(s.runs) <= s.maxRuns {
		return
	}

	runs := make([]*model.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	removeCount := len(runs) - s.maxRuns
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old run",
			"run_id", runs[i].ID,
			"created_at", runs[i].CreatedAt,
		)
		delete(s.runs, runs[i].ID)
	}
}

// Count returns the number of runs in the store
func (s *RunStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
