package familybook

import (
	"net/http"

	"github.com/goccy/go-json"
)

type Error struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

/*
AppResult is the status-coded envelope returned to callers instead of a
bare error. StatusCode uses HTTP status values. Value is only encoded for
successful results.
*/
type AppResult[T any] struct {
	StatusCode int     `json:"statusCode"`
	Errors     []Error `json:"errors"`
	Value      T       `json:"value,omitempty"`
}

func (r AppResult[T]) MarshalJSON() ([]byte, error) {
	type envelope struct {
		StatusCode int     `json:"statusCode"`
		Errors     []Error `json:"errors"`
		Value      *T      `json:"value,omitempty"`
	}

	result := envelope{
		StatusCode: r.StatusCode,
		Errors:     r.Errors,
	}

	if result.Errors == nil {
		result.Errors = []Error{}
	}

	if r.IsSuccess() {
		result.Value = &r.Value
	}

	return json.Marshal(result)
}

func (r AppResult[T]) IsSuccess() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusBadRequest
}

func (r AppResult[T]) HasErrors() bool {
	return len(r.Errors) > 0
}

func Ok[T any](value T) AppResult[T] {
	return AppResult[T]{StatusCode: http.StatusOK, Errors: []Error{}, Value: value}
}

func Created[T any](value T) AppResult[T] {
	return AppResult[T]{StatusCode: http.StatusCreated, Errors: []Error{}, Value: value}
}

func Accepted[T any](value T) AppResult[T] {
	return AppResult[T]{StatusCode: http.StatusAccepted, Errors: []Error{}, Value: value}
}

func BadRequest[T any](errs ...Error) AppResult[T] {
	return failure[T](http.StatusBadRequest, errs)
}

func Unauthorized[T any](message string) AppResult[T] {
	return failure[T](http.StatusUnauthorized, []Error{{Message: message}})
}

func Forbidden[T any](message string) AppResult[T] {
	return failure[T](http.StatusForbidden, []Error{{Message: message}})
}

func NotFound[T any](message string) AppResult[T] {
	return failure[T](http.StatusNotFound, []Error{{Message: message}})
}

func Conflict[T any](message string) AppResult[T] {
	return failure[T](http.StatusConflict, []Error{{Message: message}})
}

func InternalServerError[T any](message string) AppResult[T] {
	return failure[T](http.StatusInternalServerError, []Error{{Message: message}})
}

func failure[T any](statusCode int, errs []Error) AppResult[T] {
	if errs == nil {
		errs = []Error{}
	}

	return AppResult[T]{StatusCode: statusCode, Errors: errs}
}

// FromValidationError turns field errors into a 400 result.
func FromValidationError[T any](err *ValidationError) AppResult[T] {
	errs := make([]Error, 0, len(err.Errors))

	for _, fe := range err.Errors {
		errs = append(errs, Error{Field: fe.Field, Message: fe.Message})
	}

	return BadRequest[T](errs...)
}
