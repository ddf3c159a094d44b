package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

const (
	// TaskTypeRunInstance is enqueued once per instance; the task id is the instance id.
	TaskTypeRunInstance = "orchestration:run"
)

type runInstancePayload struct {
	InstanceID string `json:"instance_id"`
}

type AsynqDispatcherConfig struct {
	Client   *asynq.Client
	MaxRetry int
	Queue    string
}

/*
AsynqDispatcher enqueues instances on Redis. The asynq server started
with NewAsynqServeMux runs them, and redelivers a task when a run returns
an error or the worker dies mid-run.
*/
type AsynqDispatcher struct {
	client   *asynq.Client
	maxRetry int
	queue    string
}

func NewAsynqDispatcher(config AsynqDispatcherConfig) AsynqDispatcher {
	if config.MaxRetry <= 0 {
		config.MaxRetry = 5
	}

	if config.Queue == "" {
		config.Queue = "default"
	}

	return AsynqDispatcher{
		client:   config.Client,
		maxRetry: config.MaxRetry,
		queue:    config.Queue,
	}
}

func (d AsynqDispatcher) Dispatch(ctx context.Context, instanceID string, _ RunFunc) error {
	data, err := json.Marshal(runInstancePayload{InstanceID: instanceID})
	if err != nil {
		return fmt.Errorf("error encoding task payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeRunInstance, data)

	_, err = d.client.EnqueueContext(ctx, task,
		asynq.TaskID(instanceID),
		asynq.MaxRetry(d.maxRetry),
		asynq.Queue(d.queue),
	)

	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("error enqueueing instance %s: %w", instanceID, err)
	}

	return nil
}

// NewAsynqServeMux routes run tasks to run.
func NewAsynqServeMux(run RunFunc) *asynq.ServeMux {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskTypeRunInstance, func(ctx context.Context, task *asynq.Task) error {
		var payload runInstancePayload

		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("error decoding task payload: %w: %w", err, asynq.SkipRetry)
		}

		return run(ctx, payload.InstanceID)
	})

	return mux
}
