package familybook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

type GuardConfig struct {
	Logger *slog.Logger
}

/*
Guard runs an operation and always hands back an AppResult. Validation
failures become 400s, cancellation becomes a 400, and any other error or
panic becomes a 500. Every outcome is logged.
*/
type Guard struct {
	logger *slog.Logger
}

func NewGuard(config GuardConfig) Guard {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return Guard{
		logger: config.Logger,
	}
}

// Execute runs an operation that already produces an AppResult, recovering panics.
func Execute[T any](g Guard, operationName string, operation func() AppResult[T]) (result AppResult[T]) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("operation panicked", "operation", operationName, "panic", r)
			result = InternalServerError[T](fmt.Sprintf("%v", r))
		}
	}()

	g.logger.Debug("starting operation", "operation", operationName)

	result = operation()
	g.logResult(operationName, result.StatusCode, len(result.Errors))

	return result
}

// ExecuteErr runs an operation returning (value, error) and maps the error onto a status.
func ExecuteErr[T any](g Guard, operationName string, operation func() (T, error)) AppResult[T] {
	return Execute(g, operationName, func() AppResult[T] {
		value, err := operation()
		if err == nil {
			return Ok(value)
		}

		return ResultFromError[T](err)
	})
}

/*
ExecuteMany runs every operation, even after one fails, and returns a
single result carrying all errors and the worst status seen. Errors from
the Nth operation are prefixed with "Operation #N".
*/
func ExecuteMany(g Guard, operationName string, operations ...func() error) AppResult[struct{}] {
	worst := http.StatusOK
	errs := []Error{}

	for index, operation := range operations {
		result := ExecuteErr(g, operationName, func() (struct{}, error) {
			return struct{}{}, operation()
		})

		for _, e := range result.Errors {
			e.Message = fmt.Sprintf("Operation #%d: %s", index+1, e.Message)
			errs = append(errs, e)
		}

		worst = max(worst, result.StatusCode)
	}

	if len(errs) == 0 {
		return Ok(struct{}{})
	}

	return failure[struct{}](worst, errs)
}

// ResultFromError maps an error onto the matching failure result.
func ResultFromError[T any](err error) AppResult[T] {
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		return FromValidationError[T](validationErr)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return BadRequest[T](Error{Message: "operation was cancelled"})
	}

	return InternalServerError[T](err.Error())
}

func (g Guard) logResult(operationName string, statusCode, errorCount int) {
	if statusCode >= http.StatusInternalServerError {
		g.logger.Error("operation failed", "operation", operationName, "statusCode", statusCode, "errors", errorCount)
		return
	}

	if errorCount > 0 {
		g.logger.Warn("operation completed with errors", "operation", operationName, "statusCode", statusCode, "errors", errorCount)
		return
	}

	g.logger.Info("operation completed", "operation", operationName, "statusCode", statusCode)
}
