package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/example/fleet-loads/internal/models"
	"github.com/example/fleet-loads/internal/observability"
)

// Lister fetches the full load collection from the backend.
type Lister interface {
	ListLoads(ctx context.Context) ([]models.Load, error)
}

// LoadStore holds the session's current load list. Entries are never mutated
// in place; Apply swaps in a new entry so untouched loads keep their identity.
// Listeners run with the lock held and must not block or re-enter the store.
type LoadStore struct {
	mu        sync.RWMutex
	loads     []*models.Load
	fallback  bool
	listeners map[uint64]func([]models.Load)
	nextID    uint64

	lister Lister
	logger *slog.Logger
}

func NewLoadStore(lister Lister, logger *slog.Logger) *LoadStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadStore{
		lister:    lister,
		logger:    logger,
		listeners: make(map[uint64]func([]models.Load)),
	}
}

// Refresh replaces the whole list with the backend's. When listing fails the
// fixed fallback set is installed instead and the listing error is returned
// for the caller to log; the store is populated either way.
func (s *LoadStore) Refresh(ctx context.Context) error {
	loads, err := s.lister.ListLoads(ctx)
	if err != nil {
		s.logger.Warn("load listing failed, using fallback set", "error", err)
		observability.RefreshTotal.WithLabelValues("fallback").Inc()
		s.replace(FallbackLoads(), true)
		return err
	}
	observability.RefreshTotal.WithLabelValues("backend").Inc()
	s.replace(loads, false)
	s.logger.Info("loads refreshed", "count", len(loads))
	return nil
}

func (s *LoadStore) replace(loads []models.Load, fallback bool) {
	next := make([]*models.Load, 0, len(loads))
	for i := range loads {
		l := loads[i].Clone()
		next = append(next, &l)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = next
	s.fallback = fallback
	observability.LoadsInStore.Set(float64(len(next)))
	s.emitLocked()
}

// Apply merges patch into the load with the given id. It reports false and
// changes nothing when no load matches or the patch would move the status
// backward.
func (s *LoadStore) Apply(id string, patch models.LoadPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.loads {
		if l.ID != id {
			continue
		}
		merged, ok := l.Merge(patch)
		if !ok {
			s.logger.Warn("refusing backward status change", "load_id", id, "from", l.Status, "to", *patch.Status)
			return false
		}
		next := make([]*models.Load, len(s.loads))
		copy(next, s.loads)
		next[i] = &merged
		s.loads = next
		s.emitLocked()
		return true
	}
	return false
}

// Loads returns a copy of the current list in backend order.
func (s *LoadStore) Loads() []models.Load {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *LoadStore) Get(id string) (models.Load, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.loads {
		if l.ID == id {
			return l.Clone(), true
		}
	}
	return models.Load{}, false
}

// FromFallback reports whether the current list is the offline fallback set.
func (s *LoadStore) FromFallback() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback
}

func (s *LoadStore) Subscribe(fn func([]models.Load)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *LoadStore) snapshotLocked() []models.Load {
	out := make([]models.Load, 0, len(s.loads))
	for _, l := range s.loads {
		out = append(out, l.Clone())
	}
	return out
}

func (s *LoadStore) emitLocked() {
	if len(s.listeners) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, fn := range s.listeners {
		fn(snap)
	}
}
