package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/petrijr/sagaflow/pkg/api"
)

// InMemoryStore is a goroutine-safe InstanceStore backed by a map.
// It is non-durable and intended for tests, examples, and the local runner.
type InMemoryStore struct {
	mu        sync.RWMutex
	instances map[string]*api.Instance
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		instances: make(map[string]*api.Instance),
	}
}

var _ InstanceStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) CreateInstance(_ context.Context, inst *api.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[inst.OrderID]; ok {
		return api.ErrDuplicateOrder
	}
	inst.Version = 1
	s.instances[inst.OrderID] = inst.Clone()
	return nil
}

func (s *InMemoryStore) GetInstance(_ context.Context, orderID string) (*api.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[orderID]
	if !ok {
		return nil, api.ErrOrderNotFound
	}
	return inst.Clone(), nil
}

func (s *InMemoryStore) UpdateInstance(_ context.Context, inst *api.Instance, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.instances[inst.OrderID]
	if !ok {
		return api.ErrOrderNotFound
	}
	if stored.Version != expectedVersion {
		return api.ErrVersionConflict
	}
	inst.Version = expectedVersion + 1
	inst.UpdatedAt = time.Now()
	s.instances[inst.OrderID] = inst.Clone()
	return nil
}

func (s *InMemoryStore) ListInstances(_ context.Context, filter InstanceFilter) ([]*api.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Instance
	for _, inst := range s.instances {
		if filter.Status != "" && inst.Status != filter.Status {
			continue
		}
		result = append(result, inst.Clone())
	}
	return result, nil
}

func (s *InMemoryStore) ListRunnable(_ context.Context, now time.Time, staleAfter time.Duration, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*api.Instance
	for _, inst := range s.instances {
		if runnable(inst, now, staleAfter) {
			candidates = append(candidates, inst)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt)
	})

	ids := make([]string, 0, len(candidates))
	for _, inst := range candidates {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, inst.OrderID)
	}
	return ids, nil
}

func (s *InMemoryStore) DeleteInstance(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[orderID]; !ok {
		return api.ErrOrderNotFound
	}
	delete(s.instances, orderID)
	return nil
}

func runnable(inst *api.Instance, now time.Time, staleAfter time.Duration) bool {
	switch inst.Status {
	case api.StatusPending:
		return !inst.RunAfter.After(now)
	case api.StatusRunning, api.StatusCompensating:
		// Both statuses are per-tick claims. No committed write within the
		// staleness window means the claiming worker presumably crashed.
		return staleAfter > 0 && inst.UpdatedAt.Add(staleAfter).Before(now)
	default:
		return false
	}
}
