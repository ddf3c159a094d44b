package orchestration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

var testNow = time.Date(2025, 12, 24, 18, 30, 0, 0, time.UTC)

// syncDispatcher runs an instance on the caller's goroutine.
type syncDispatcher struct {
	ctx context.Context
	err *error
}

func (d syncDispatcher) Dispatch(ctx context.Context, instanceID string, run RunFunc) error {
	runCtx := d.ctx
	if runCtx == nil {
		runCtx = ctx
	}

	err := run(runCtx, instanceID)
	if d.err != nil {
		*d.err = err
	}

	return nil
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(ctx context.Context, instanceID string, run RunFunc) error {
	return fmt.Errorf("queue unavailable")
}

func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		MinInterval: time.Millisecond,
		MaxInterval: 5 * time.Millisecond,
	}
}

func sequentialIDs() func() string {
	counter := &atomic.Int32{}

	return func() string {
		return fmt.Sprintf("instance-%d", counter.Add(1))
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testDriverConfig struct {
	activities    map[string]Activity
	dispatcher    Dispatcher
	logger        *slog.Logger
	orchestrators map[string]OrchestratorFunc
	store         HistoryStore
}

func newTestDriver(config testDriverConfig) Driver {
	if config.dispatcher == nil {
		config.dispatcher = syncDispatcher{}
	}

	if config.logger == nil {
		config.logger = quietLogger()
	}

	if config.store == nil {
		config.store = NewMemoryHistoryStore()
	}

	return NewDriver(DriverConfig{
		Activities:         config.activities,
		Dispatcher:         config.dispatcher,
		Logger:             config.logger,
		MaxActivityWorkers: 4,
		NewID:              sequentialIDs(),
		Now:                func() time.Time { return testNow },
		Orchestrators:      config.orchestrators,
		RetryPolicy:        fastRetryPolicy(),
		Store:              config.store,
	})
}
