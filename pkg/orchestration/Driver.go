package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	defaultMaxActivityWorkers = 16
)

type Driverer interface {
	Start(ctx context.Context, name string) (string, error)
	GetStatus(ctx context.Context, instanceID string) (Instance, error)
	LatestCompleted(ctx context.Context, name string) (Instance, error)
}

type DriverConfig struct {
	Activities         map[string]Activity
	Dispatcher         Dispatcher
	Logger             *slog.Logger
	MaxActivityWorkers int
	NewID              func() string
	Now                func() time.Time
	Orchestrators      map[string]OrchestratorFunc
	RetryPolicy        RetryPolicy
	Store              HistoryStore
}

/*
Driver creates, runs and reports on orchestration instances. Instances are
executed by a Dispatcher; running an instance replays its recorded history
and continues from the first activity call that has no recorded result.
*/
type Driver struct {
	activities    map[string]Activity
	activityPool  pond.Pool
	dispatcher    Dispatcher
	logger        *slog.Logger
	newID         func() string
	now           func() time.Time
	orchestrators map[string]OrchestratorFunc
	retryPolicy   RetryPolicy
	store         HistoryStore
}

func NewDriver(config DriverConfig) Driver {
	if config.MaxActivityWorkers <= 0 {
		config.MaxActivityWorkers = defaultMaxActivityWorkers
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if config.NewID == nil {
		config.NewID = uuid.NewString
	}

	if config.Now == nil {
		config.Now = time.Now
	}

	if config.RetryPolicy.MaxAttempts == 0 {
		config.RetryPolicy = DefaultRetryPolicy()
	}

	return Driver{
		activities:    config.Activities,
		activityPool:  pond.NewPool(config.MaxActivityWorkers),
		dispatcher:    config.Dispatcher,
		logger:        config.Logger,
		newID:         config.NewID,
		now:           config.Now,
		orchestrators: config.Orchestrators,
		retryPolicy:   config.RetryPolicy,
		store:         config.Store,
	}
}

/*
Start records a new Scheduled instance of the named orchestrator and
hands it to the dispatcher. It returns without waiting for the run.
*/
func (d Driver) Start(ctx context.Context, name string) (string, error) {
	var (
		err error
	)

	if _, ok := d.orchestrators[name]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownOrchestrator, name)
	}

	now := d.now().UTC()

	instance := Instance{
		ID:        d.newID(),
		Name:      name,
		Status:    StatusScheduled,
		Phase:     PhaseScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err = d.store.CreateInstance(ctx, instance); err != nil {
		return "", err
	}

	if err = d.dispatcher.Dispatch(ctx, instance.ID, d.Run); err != nil {
		d.fail(context.WithoutCancel(ctx), instance, err)
		return "", fmt.Errorf("error dispatching instance %s: %w", instance.ID, err)
	}

	d.logger.Info("orchestration scheduled", "instanceID", instance.ID, "name", name)
	return instance.ID, nil
}

func (d Driver) GetStatus(ctx context.Context, instanceID string) (Instance, error) {
	return d.store.GetInstance(ctx, instanceID)
}

/*
Run executes or resumes one instance. Terminal instances are left alone.
When ctx is cancelled mid-run the instance stays Running and ctx's error
is returned so the instance can be resumed later. Orchestrator failures
mark the instance Failed and are not returned as errors.
*/
func (d Driver) Run(ctx context.Context, instanceID string) error {
	var (
		err      error
		instance Instance
		steps    []Step
		output   []byte
	)

	if instance, err = d.store.GetInstance(ctx, instanceID); err != nil {
		return err
	}

	if instance.Status.IsTerminal() {
		d.logger.Debug("instance already finished", "instanceID", instanceID, "status", instance.Status)
		return nil
	}

	orchestrator, ok := d.orchestrators[instance.Name]
	if !ok {
		d.fail(ctx, instance, fmt.Errorf("%w: %s", ErrUnknownOrchestrator, instance.Name))
		return nil
	}

	instance.Status = StatusRunning
	instance.UpdatedAt = d.now().UTC()

	if err = d.store.UpdateInstance(ctx, instance); err != nil {
		return err
	}

	if steps, err = d.store.GetSteps(ctx, instanceID); err != nil {
		return err
	}

	oc := newContext(contextConfig{
		activities: d.activities,
		history:    steps,
		instance:   instance,
		logger:     d.logger,
		now:        d.now,
		pool:       d.activityPool,
		retry:      d.retryPolicy,
		store:      d.store,
	})

	result, runErr := orchestrator(ctx, oc)
	instance = oc.currentInstance()

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			d.logger.Warn("orchestration interrupted", "instanceID", instanceID, "error", runErr)
			return ctxErr
		}

		d.fail(ctx, instance, runErr)
		return nil
	}

	if output, err = json.Marshal(result); err != nil {
		d.fail(ctx, instance, fmt.Errorf("error encoding orchestration output: %w", err))
		return nil
	}

	instance.Status = StatusCompleted
	instance.Phase = PhaseCompleted
	instance.Output = string(output)
	instance.Error = ""
	instance.UpdatedAt = d.now().UTC()

	if err = d.store.UpdateInstance(ctx, instance); err != nil {
		return err
	}

	d.logger.Info("orchestration completed", "instanceID", instanceID, "name", instance.Name, "replayedSteps", len(steps))
	return nil
}

// LatestCompleted returns the most recently created Completed instance of name.
func (d Driver) LatestCompleted(ctx context.Context, name string) (Instance, error) {
	var (
		err       error
		instances []Instance
	)

	instances, err = d.store.ListInstances(ctx, ListInstancesFilter{
		Name:     name,
		Statuses: []Status{StatusCompleted},
		Limit:    1,
	})

	if err != nil {
		return Instance{}, err
	}

	if len(instances) == 0 {
		return Instance{}, ErrInstanceNotFound
	}

	return instances[0], nil
}

/*
ResumePending re-dispatches every Scheduled or Running instance. Hosts
call it on startup so runs cut short by a restart are picked up again.
*/
func (d Driver) ResumePending(ctx context.Context) (int, error) {
	var (
		err       error
		instances []Instance
	)

	instances, err = d.store.ListInstances(ctx, ListInstancesFilter{
		Statuses: []Status{StatusScheduled, StatusRunning},
	})

	if err != nil {
		return 0, err
	}

	for _, instance := range instances {
		if err = d.dispatcher.Dispatch(ctx, instance.ID, d.Run); err != nil {
			return 0, fmt.Errorf("error resuming instance %s: %w", instance.ID, err)
		}

		d.logger.Info("resuming orchestration", "instanceID", instance.ID, "status", instance.Status, "phase", instance.Phase)
	}

	return len(instances), nil
}

// Stop waits for running activities and releases the activity pool.
func (d Driver) Stop() {
	_ = d.activityPool.Stop().Wait()
}

func (d Driver) fail(ctx context.Context, instance Instance, cause error) {
	instance.Status = StatusFailed
	instance.Phase = PhaseFailed
	instance.Error = cause.Error()
	instance.UpdatedAt = d.now().UTC()

	d.logger.Error("orchestration failed", "instanceID", instance.ID, "name", instance.Name, "error", cause)

	if err := d.store.UpdateInstance(ctx, instance); err != nil && !errors.Is(err, ErrInstanceNotFound) {
		d.logger.Error("error recording orchestration failure", "instanceID", instance.ID, "error", err)
	}
}

// DecodeOutput decodes a completed instance's output.
func DecodeOutput[T any](instance Instance) (T, error) {
	var (
		result T
	)

	if instance.Status != StatusCompleted {
		return result, fmt.Errorf("instance %s is %s, not %s", instance.ID, instance.Status, StatusCompleted)
	}

	if err := json.Unmarshal([]byte(instance.Output), &result); err != nil {
		return result, fmt.Errorf("error decoding output of instance %s: %w", instance.ID, err)
	}

	return result, nil
}
