package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	ErrUnknownActivity     = errors.New("unknown activity")
	ErrUnknownOrchestrator = errors.New("unknown orchestrator")
)

/*
Activity is one retryable unit of work. It receives its input as JSON and
returns a value that is JSON encoded into the step log. All I/O of an
orchestration happens inside activities.
*/
type Activity func(ctx context.Context, input []byte) (any, error)

// ActivityFunc adapts a typed function into an Activity.
func ActivityFunc[In, Out any](fn func(ctx context.Context, input In) (Out, error)) Activity {
	return func(ctx context.Context, raw []byte) (any, error) {
		var (
			input In
		)

		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &input); err != nil {
				return nil, NonRetryable(fmt.Errorf("error decoding activity input: %w", err))
			}
		}

		return fn(ctx, input)
	}
}

type nonRetryableError struct {
	err error
}

func (e nonRetryableError) Error() string {
	return e.err.Error()
}

func (e nonRetryableError) Unwrap() error {
	return e.err
}

// NonRetryable marks err so the retry policy gives up immediately.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}

	return nonRetryableError{err: err}
}

func IsNonRetryable(err error) bool {
	var target nonRetryableError
	return errors.As(err, &target)
}

/*
ActivityError is returned when an activity fails for good, either because
it exhausted its attempts or because the error was not retryable.
*/
type ActivityError struct {
	Activity string
	StepKey  string
	Attempts int
	Err      error
}

func (e *ActivityError) Error() string {
	return fmt.Sprintf("activity %s (step %s) failed after %d attempt(s): %s", e.Activity, e.StepKey, e.Attempts, e.Err.Error())
}

func (e *ActivityError) Unwrap() error {
	return e.Err
}
