package orchestration

import (
	"context"
	"errors"
)

var (
	ErrInstanceNotFound = errors.New("orchestration instance not found")
)

type ListInstancesFilter struct {
	Name     string
	Statuses []Status
	Limit    int
}

/*
HistoryStore persists instances and their step log. RecordStep must be
idempotent on (InstanceID, StepKey): recording the same key twice keeps
the first record.
*/
type HistoryStore interface {
	CreateInstance(ctx context.Context, instance Instance) error
	GetInstance(ctx context.Context, instanceID string) (Instance, error)
	UpdateInstance(ctx context.Context, instance Instance) error
	ListInstances(ctx context.Context, filter ListInstancesFilter) ([]Instance, error)
	GetSteps(ctx context.Context, instanceID string) ([]Step, error)
	RecordStep(ctx context.Context, step Step) error
}
