package orchestration

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// MemoryHistoryStore keeps history in process memory. Nothing survives a restart.
type MemoryHistoryStore struct {
	mu        sync.RWMutex
	instances map[string]Instance
	steps     map[string][]Step
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		instances: map[string]Instance{},
		steps:     map[string][]Step{},
	}
}

func (s *MemoryHistoryStore) CreateInstance(ctx context.Context, instance Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[instance.ID]; ok {
		return fmt.Errorf("instance '%s' already exists", instance.ID)
	}

	s.instances[instance.ID] = instance
	return nil
}

func (s *MemoryHistoryStore) GetInstance(ctx context.Context, instanceID string) (Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instance, ok := s.instances[instanceID]
	if !ok {
		return Instance{}, ErrInstanceNotFound
	}

	return instance, nil
}

func (s *MemoryHistoryStore) UpdateInstance(ctx context.Context, instance Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[instance.ID]; !ok {
		return ErrInstanceNotFound
	}

	s.instances[instance.ID] = instance
	return nil
}

func (s *MemoryHistoryStore) ListInstances(ctx context.Context, filter ListInstancesFilter) ([]Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []Instance{}

	for _, instance := range s.instances {
		if filter.Name != "" && instance.Name != filter.Name {
			continue
		}

		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, instance.Status) {
			continue
		}

		result = append(result, instance)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

func (s *MemoryHistoryStore) GetSteps(ctx context.Context, instanceID string) ([]Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.steps[instanceID]), nil
}

func (s *MemoryHistoryStore) RecordStep(ctx context.Context, step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.steps[step.InstanceID] {
		if existing.StepKey == step.StepKey {
			return nil
		}
	}

	s.steps[step.InstanceID] = append(s.steps[step.InstanceID], step)
	return nil
}
