package orchestration

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alitto/pond/v2"
)

type RunFunc func(ctx context.Context, instanceID string) error

// Dispatcher decides where and when an instance runs.
type Dispatcher interface {
	Dispatch(ctx context.Context, instanceID string, run RunFunc) error
}

type LocalDispatcherConfig struct {
	MaxWorkers  int
	ShutdownCtx context.Context
}

/*
LocalDispatcher runs instances on an in-process pool. Runs use the
shutdown context rather than the caller's, so they outlive the request
that started them. An instance already running here is not dispatched
twice.
*/
type LocalDispatcher struct {
	inFlight    *sync.Map
	pool        pond.Pool
	shutdownCtx context.Context
}

func NewLocalDispatcher(config LocalDispatcherConfig) LocalDispatcher {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 4
	}

	if config.ShutdownCtx == nil {
		config.ShutdownCtx = context.Background()
	}

	return LocalDispatcher{
		inFlight:    &sync.Map{},
		pool:        pond.NewPool(config.MaxWorkers, pond.WithContext(config.ShutdownCtx)),
		shutdownCtx: config.ShutdownCtx,
	}
}

func (d LocalDispatcher) Dispatch(ctx context.Context, instanceID string, run RunFunc) error {
	if _, running := d.inFlight.LoadOrStore(instanceID, struct{}{}); running {
		return nil
	}

	d.pool.Submit(func() {
		defer d.inFlight.Delete(instanceID)

		if err := run(d.shutdownCtx, instanceID); err != nil {
			slog.Error("error running orchestration", "instanceID", instanceID, "error", err)
		}
	})

	return nil
}

// Stop waits for in-flight runs to return.
func (d LocalDispatcher) Stop() {
	_ = d.pool.Stop().Wait()
}
