package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/goccy/go-json"
)

// OrchestratorFunc is the body of an orchestration. It must be deterministic
// and do its I/O only through CallActivity and FanOut.
type OrchestratorFunc func(ctx context.Context, oc *Context) (any, error)

/*
Context is handed to an orchestrator body for one execution of an
instance. Activity calls are numbered in call order; a call whose key is
already in the recorded history is answered from the history instead of
running the activity again.
*/
type Context struct {
	activities map[string]Activity
	history    map[string]Step
	logger     *slog.Logger
	now        func() time.Time
	pool       pond.Pool
	replaying  *atomic.Bool
	retry      RetryPolicy
	sequence   int
	store      HistoryStore

	mu       sync.Mutex
	instance Instance
}

type contextConfig struct {
	activities map[string]Activity
	history    []Step
	instance   Instance
	logger     *slog.Logger
	now        func() time.Time
	pool       pond.Pool
	retry      RetryPolicy
	store      HistoryStore
}

func newContext(config contextConfig) *Context {
	history := make(map[string]Step, len(config.history))

	for _, step := range config.history {
		history[step.StepKey] = step
	}

	replaying := &atomic.Bool{}
	replaying.Store(len(history) > 0)

	logger := slog.New(replaySafeHandler{
		inner:     config.logger.Handler(),
		replaying: replaying,
	}).With("instanceID", config.instance.ID)

	return &Context{
		activities: config.activities,
		history:    history,
		instance:   config.instance,
		logger:     logger,
		now:        config.now,
		pool:       config.pool,
		replaying:  replaying,
		retry:      config.retry,
		store:      config.store,
	}
}

func (c *Context) InstanceID() string {
	return c.instance.ID
}

// IsReplaying reports whether the orchestrator is re-walking recorded history.
func (c *Context) IsReplaying() bool {
	return c.replaying.Load()
}

// Logger returns a logger that stays silent while the orchestrator replays.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// SetPhase records the instance's current phase for pollers.
func (c *Context) SetPhase(ctx context.Context, phase Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.instance.Phase == phase {
		return nil
	}

	c.instance.Phase = phase
	c.instance.UpdatedAt = c.now().UTC()

	if err := c.store.UpdateInstance(ctx, c.instance); err != nil {
		return fmt.Errorf("error updating phase of instance %s: %w", c.instance.ID, err)
	}

	return nil
}

func (c *Context) currentInstance() Instance {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.instance
}

func (c *Context) nextKey(activity string) string {
	c.sequence++
	return fmt.Sprintf("%04d:%s", c.sequence, activity)
}

func (c *Context) isRecorded(key string) bool {
	_, ok := c.history[key]
	return ok
}

func (c *Context) invoke(ctx context.Context, key, name string, input any) ([]byte, error) {
	var (
		err        error
		inputJSON  []byte
		outputJSON []byte
		output     any
	)

	if step, ok := c.history[key]; ok {
		return []byte(step.Output), nil
	}

	activity, ok := c.activities[name]
	if !ok {
		return nil, &ActivityError{Activity: name, StepKey: key, Err: NonRetryable(ErrUnknownActivity)}
	}

	if inputJSON, err = json.Marshal(input); err != nil {
		return nil, &ActivityError{Activity: name, StepKey: key, Err: fmt.Errorf("error encoding input: %w", err)}
	}

	attempts, err := c.retry.Do(ctx, func(ctx context.Context) error {
		result, err := activity(ctx, inputJSON)
		if err != nil {
			c.logger.Warn("activity attempt failed", "activity", name, "step", key, "error", err)
			return err
		}

		output = result
		return nil
	})

	if err != nil {
		return nil, &ActivityError{Activity: name, StepKey: key, Attempts: attempts, Err: err}
	}

	if outputJSON, err = json.Marshal(output); err != nil {
		return nil, &ActivityError{Activity: name, StepKey: key, Attempts: attempts, Err: fmt.Errorf("error encoding output: %w", err)}
	}

	step := Step{
		InstanceID:  c.instance.ID,
		StepKey:     key,
		Activity:    name,
		Input:       string(inputJSON),
		Output:      string(outputJSON),
		CompletedAt: c.now().UTC(),
	}

	if err = c.store.RecordStep(ctx, step); err != nil {
		return nil, err
	}

	return outputJSON, nil
}

/*
CallActivity runs one activity and decodes its result into T. Replayed
calls decode the recorded output, so a live call and its replay produce
the same value.
*/
func CallActivity[T any](ctx context.Context, oc *Context, name string, input any) (T, error) {
	var (
		err    error
		raw    []byte
		result T
	)

	key := oc.nextKey(name)
	oc.replaying.Store(oc.isRecorded(key))

	if raw, err = oc.invoke(ctx, key, name, input); err != nil {
		return result, err
	}

	if err = json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("error decoding output of step %s: %w", key, err)
	}

	return result, nil
}

/*
FanOut runs the same activity once per input on the shared activity pool
and gathers the results by input index. Keys are assigned before anything
is scheduled, so replays see the same keys regardless of completion order.
The first failure fails the whole fan-out.
*/
func FanOut[In, Out any](ctx context.Context, oc *Context, name string, inputs []In) ([]Out, error) {
	results := make([]Out, len(inputs))

	if len(inputs) == 0 {
		return results, nil
	}

	keys := make([]string, len(inputs))
	allRecorded := true

	for index := range inputs {
		keys[index] = oc.nextKey(name)
		allRecorded = allRecorded && oc.isRecorded(keys[index])
	}

	oc.replaying.Store(allRecorded)

	fanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group := oc.pool.NewGroup()

	for index, input := range inputs {
		group.SubmitErr(func() error {
			raw, err := oc.invoke(fanCtx, keys[index], name, input)
			if err != nil {
				return err
			}

			if err = json.Unmarshal(raw, &results[index]); err != nil {
				return fmt.Errorf("error decoding output of step %s: %w", keys[index], err)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

type replaySafeHandler struct {
	inner     slog.Handler
	replaying *atomic.Bool
}

func (h replaySafeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.replaying.Load() {
		return false
	}

	return h.inner.Enabled(ctx, level)
}

func (h replaySafeHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.inner.Handle(ctx, record)
}

func (h replaySafeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return replaySafeHandler{inner: h.inner.WithAttrs(attrs), replaying: h.replaying}
}

func (h replaySafeHandler) WithGroup(name string) slog.Handler {
	return replaySafeHandler{inner: h.inner.WithGroup(name), replaying: h.replaying}
}
