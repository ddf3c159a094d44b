package orchestration

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoActivities(calls *atomic.Int32) map[string]Activity {
	return map[string]Activity{
		"Upper": ActivityFunc(func(ctx context.Context, input string) (string, error) {
			calls.Add(1)
			return strings.ToUpper(input), nil
		}),
		"Slow": ActivityFunc(func(ctx context.Context, input string) (string, error) {
			calls.Add(1)

			delay := map[string]time.Duration{"a": 30 * time.Millisecond, "b": 15 * time.Millisecond}[input]
			time.Sleep(delay)

			return input + input, nil
		}),
	}
}

func TestDriverRunsOrchestrationToCompletion(t *testing.T) {
	calls := &atomic.Int32{}
	store := NewMemoryHistoryStore()

	driver := newTestDriver(testDriverConfig{
		activities: echoActivities(calls),
		orchestrators: map[string]OrchestratorFunc{
			"Echo": func(ctx context.Context, oc *Context) (any, error) {
				return CallActivity[string](ctx, oc, "Upper", "hello")
			},
		},
		store: store,
	})
	defer driver.Stop()

	id, err := driver.Start(context.Background(), "Echo")
	require.NoError(t, err)
	assert.Equal(t, "instance-1", id)

	instance, err := driver.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, instance.Status)
	assert.Equal(t, PhaseCompleted, instance.Phase)

	output, err := DecodeOutput[string](instance)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", output)

	steps, err := store.GetSteps(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "0001:Upper", steps[0].StepKey)
	assert.Equal(t, `"hello"`, steps[0].Input)
	assert.Equal(t, `"HELLO"`, steps[0].Output)
}

func TestFanOutKeepsInputOrderAndStableKeys(t *testing.T) {
	calls := &atomic.Int32{}
	store := NewMemoryHistoryStore()

	driver := newTestDriver(testDriverConfig{
		activities: echoActivities(calls),
		orchestrators: map[string]OrchestratorFunc{
			"Fan": func(ctx context.Context, oc *Context) (any, error) {
				return FanOut[string, string](ctx, oc, "Slow", []string{"a", "b", "c"})
			},
		},
		store: store,
	})
	defer driver.Stop()

	id, err := driver.Start(context.Background(), "Fan")
	require.NoError(t, err)

	instance, err := driver.GetStatus(context.Background(), id)
	require.NoError(t, err)

	output, err := DecodeOutput[[]string](instance)
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "bb", "cc"}, output)

	steps, err := store.GetSteps(context.Background(), id)
	require.NoError(t, err)

	keys := map[string]string{}
	for _, step := range steps {
		keys[step.StepKey] = step.Input
	}

	assert.Equal(t, map[string]string{
		"0001:Slow": `"a"`,
		"0002:Slow": `"b"`,
		"0003:Slow": `"c"`,
	}, keys)
}

func TestFanOutWithNoInputs(t *testing.T) {
	calls := &atomic.Int32{}

	driver := newTestDriver(testDriverConfig{
		activities: echoActivities(calls),
		orchestrators: map[string]OrchestratorFunc{
			"Fan": func(ctx context.Context, oc *Context) (any, error) {
				return FanOut[string, string](ctx, oc, "Slow", nil)
			},
		},
	})
	defer driver.Stop()

	id, err := driver.Start(context.Background(), "Fan")
	require.NoError(t, err)

	instance, err := driver.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, instance.Status)
	assert.Equal(t, "[]", instance.Output)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDriverRetriesTransientActivityFailures(t *testing.T) {
	calls := &atomic.Int32{}

	driver := newTestDriver(testDriverConfig{
		activities: map[string]Activity{
			"Flaky": ActivityFunc(func(ctx context.Context, input string) (string, error) {
				if calls.Add(1) < 3 {
					return "", errors.New("connection reset")
				}

				return "ok", nil
			}),
		},
		orchestrators: map[string]OrchestratorFunc{
			"Flaky": func(ctx context.Context, oc *Context) (any, error) {
				return CallActivity[string](ctx, oc, "Flaky", "x")
			},
		},
	})
	defer driver.Stop()

	id, err := driver.Start(context.Background(), "Flaky")
	require.NoError(t, err)

	instance, err := driver.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, instance.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDriverFailsInstanceOnNonRetryableError(t *testing.T) {
	calls := &atomic.Int32{}

	driver := newTestDriver(testDriverConfig{
		activities: map[string]Activity{
			"Reject": ActivityFunc(func(ctx context.Context, input string) (string, error) {
				calls.Add(1)
				return "", NonRetryable(errors.New("album name is required"))
			}),
		},
		orchestrators: map[string]OrchestratorFunc{
			"Reject": func(ctx context.Context, oc *Context) (any, error) {
				return CallActivity[string](ctx, oc, "Reject", "")
			},
		},
	})
	defer driver.Stop()

	id, err := driver.Start(context.Background(), "Reject")
	require.NoError(t, err)

	instance, err := driver.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, instance.Status)
	assert.Equal(t, PhaseFailed, instance.Phase)
	assert.Contains(t, instance.Error, "album name is required")
	assert.Equal(t, int32(1), calls.Load())

	_, err = DecodeOutput[string](instance)
	assert.Error(t, err)
}

func TestDriverFailsInstanceOnUnknownActivity(t *testing.T) {
	driver := newTestDriver(testDriverConfig{
		orchestrators: map[string]OrchestratorFunc{
			"Missing": func(ctx context.Context, oc *Context) (any, error) {
				return CallActivity[string](ctx, oc, "Nope", nil)
			},
		},
	})
	defer driver.Stop()

	id, err := driver.Start(context.Background(), "Missing")
	require.NoError(t, err)

	instance, err := driver.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, instance.Status)
	assert.Contains(t, instance.Error, ErrUnknownActivity.Error())
}

func TestDriverStartRejectsUnknownOrchestrator(t *testing.T) {
	driver := newTestDriver(testDriverConfig{})
	defer driver.Stop()

	_, err := driver.Start(context.Background(), "Nope")
	assert.ErrorIs(t, err, ErrUnknownOrchestrator)
}

func TestDriverStartFailsInstanceWhenDispatchFails(t *testing.T) {
	store := NewMemoryHistoryStore()

	driver := newTestDriver(testDriverConfig{
		dispatcher: failingDispatcher{},
		orchestrators: map[string]OrchestratorFunc{
			"Echo": func(ctx context.Context, oc *Context) (any, error) { return "x", nil },
		},
		store: store,
	})
	defer driver.Stop()

	_, err := driver.Start(context.Background(), "Echo")
	require.Error(t, err)

	instances, err := store.ListInstances(context.Background(), ListInstancesFilter{})
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, StatusFailed, instances[0].Status)
}

func TestGetStatusUnknownInstance(t *testing.T) {
	driver := newTestDriver(testDriverConfig{})
	defer driver.Stop()

	_, err := driver.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestDriverResumesFromRecordedHistoryAfterInterruption(t *testing.T) {
	var (
		runErr error
		logs   bytes.Buffer
	)

	store := NewMemoryHistoryStore()
	firstCalls := &atomic.Int32{}
	secondCalls := &atomic.Int32{}

	runCtx, cancel := context.WithCancel(context.Background())

	activities := map[string]Activity{
		"First": ActivityFunc(func(ctx context.Context, input string) (string, error) {
			firstCalls.Add(1)
			return "first:" + input, nil
		}),
		"Second": ActivityFunc(func(ctx context.Context, input string) (string, error) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			if secondCalls.Add(1) == 1 {
				cancel()
				return "", ctx.Err()
			}

			return "second:" + input, nil
		}),
	}

	orchestrators := map[string]OrchestratorFunc{
		"TwoStep": func(ctx context.Context, oc *Context) (any, error) {
			first, err := CallActivity[string](ctx, oc, "First", "x")
			if err != nil {
				return nil, err
			}

			oc.Logger().Info("first step done")

			return CallActivity[string](ctx, oc, "Second", first)
		},
	}

	driver := newTestDriver(testDriverConfig{
		activities:    activities,
		dispatcher:    syncDispatcher{ctx: runCtx, err: &runErr},
		logger:        slog.New(slog.NewTextHandler(&logs, nil)),
		orchestrators: orchestrators,
		store:         store,
	})
	defer driver.Stop()

	id, err := driver.Start(context.Background(), "TwoStep")
	require.NoError(t, err)
	assert.ErrorIs(t, runErr, context.Canceled)

	instance, err := driver.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, instance.Status)

	steps, err := store.GetSteps(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "0001:First", steps[0].StepKey)

	require.NoError(t, driver.Run(context.Background(), id))

	instance, err = driver.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, instance.Status)

	output, err := DecodeOutput[string](instance)
	require.NoError(t, err)
	assert.Equal(t, "second:first:x", output)

	assert.Equal(t, int32(1), firstCalls.Load(), "recorded activity must not run again")
	assert.Equal(t, 1, strings.Count(logs.String(), "first step done"), "replayed log lines are suppressed")
}

func TestRunIgnoresTerminalInstances(t *testing.T) {
	calls := &atomic.Int32{}

	driver := newTestDriver(testDriverConfig{
		activities: echoActivities(calls),
		orchestrators: map[string]OrchestratorFunc{
			"Echo": func(ctx context.Context, oc *Context) (any, error) {
				return CallActivity[string](ctx, oc, "Upper", "hello")
			},
		},
	})
	defer driver.Stop()

	id, err := driver.Start(context.Background(), "Echo")
	require.NoError(t, err)

	require.NoError(t, driver.Run(context.Background(), id))
	assert.Equal(t, int32(1), calls.Load())
}

func TestResumePendingDispatchesUnfinishedInstances(t *testing.T) {
	calls := &atomic.Int32{}
	store := NewMemoryHistoryStore()

	for _, instance := range []Instance{
		{ID: "running", Name: "Echo", Status: StatusRunning, Phase: PhaseScheduled, CreatedAt: testNow, UpdatedAt: testNow},
		{ID: "scheduled", Name: "Echo", Status: StatusScheduled, Phase: PhaseScheduled, CreatedAt: testNow, UpdatedAt: testNow},
		{ID: "done", Name: "Echo", Status: StatusCompleted, Phase: PhaseCompleted, Output: `"DONE"`, CreatedAt: testNow, UpdatedAt: testNow},
	} {
		require.NoError(t, store.CreateInstance(context.Background(), instance))
	}

	driver := newTestDriver(testDriverConfig{
		activities: echoActivities(calls),
		orchestrators: map[string]OrchestratorFunc{
			"Echo": func(ctx context.Context, oc *Context) (any, error) {
				return CallActivity[string](ctx, oc, "Upper", "hello")
			},
		},
		store: store,
	})
	defer driver.Stop()

	resumed, err := driver.ResumePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, resumed)

	for _, id := range []string{"running", "scheduled"} {
		instance, err := driver.GetStatus(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, instance.Status, id)
	}

	assert.Equal(t, int32(2), calls.Load())
}

func TestSetPhaseIsVisibleToPollers(t *testing.T) {
	store := NewMemoryHistoryStore()
	seen := make(chan Phase, 1)

	driver := newTestDriver(testDriverConfig{
		orchestrators: map[string]OrchestratorFunc{
			"Phased": func(ctx context.Context, oc *Context) (any, error) {
				if err := oc.SetPhase(ctx, "Working"); err != nil {
					return nil, err
				}

				instance, err := store.GetInstance(ctx, oc.InstanceID())
				if err != nil {
					return nil, err
				}

				seen <- instance.Phase
				return "done", nil
			},
		},
		store: store,
	})
	defer driver.Stop()

	_, err := driver.Start(context.Background(), "Phased")
	require.NoError(t, err)
	assert.Equal(t, Phase("Working"), <-seen)
}

func TestLatestCompletedPicksNewestCompletedInstanceOfName(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore()

	for _, instance := range []Instance{
		{ID: "old", Name: "Gallery", Status: StatusCompleted, Output: `"old"`, CreatedAt: testNow.Add(-2 * time.Hour)},
		{ID: "new", Name: "Gallery", Status: StatusCompleted, Output: `"new"`, CreatedAt: testNow.Add(-time.Hour)},
		{ID: "running", Name: "Gallery", Status: StatusRunning, CreatedAt: testNow},
		{ID: "other", Name: "Other", Status: StatusCompleted, CreatedAt: testNow},
	} {
		instance.UpdatedAt = instance.CreatedAt
		require.NoError(t, store.CreateInstance(ctx, instance))
	}

	driver := newTestDriver(testDriverConfig{store: store})
	defer driver.Stop()

	latest, err := driver.LatestCompleted(ctx, "Gallery")
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)

	_, err = driver.LatestCompleted(ctx, "Missing")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}
