package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvclean/internal/core"
)

// Memory is an in-process Store. It keeps at most max runs, evicting the oldest.
type Memory struct {
	mu   sync.RWMutex
	max  int
	runs map[uuid.UUID]Stored
}

// NewMemory returns an empty store; max <= 0 means unbounded.
func NewMemory(max int) *Memory {
	return &Memory{max: max, runs: make(map[uuid.UUID]Stored)}
}

func (m *Memory) SaveRun(_ context.Context, s Stored) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[s.Run.ID] = s
	for m.max > 0 && len(m.runs) > m.max {
		delete(m.runs, m.oldestLocked())
	}
	return nil
}

func (m *Memory) oldestLocked() uuid.UUID {
	var (
		id    uuid.UUID
		first = true
		at    time.Time
	)
	for k, s := range m.runs {
		if first || s.Run.CreatedAt.Before(at) {
			id, at, first = k, s.Run.CreatedAt, false
		}
	}
	return id
}

func (m *Memory) get(id uuid.UUID) (Stored, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.runs[id]
	if !ok {
		return Stored{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) GetRun(_ context.Context, id uuid.UUID) (Run, error) {
	s, err := m.get(id)
	return s.Run, err
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	out := make([]Run, 0, len(m.runs))
	for _, s := range m.runs {
		out = append(out, s.Run)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Cleaned(_ context.Context, id uuid.UUID) ([]byte, error) {
	s, err := m.get(id)
	return s.Cleaned, err
}

func (m *Memory) Errors(_ context.Context, id uuid.UUID) ([]core.ErrorRecord, error) {
	s, err := m.get(id)
	return s.Errors, err
}

func (m *Memory) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.runs {
		if s.Run.CreatedAt.Before(cutoff) {
			delete(m.runs, id)
			n++
		}
	}
	return n, nil
}
