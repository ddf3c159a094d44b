package familybook

import (
	"strings"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every field of an entity that broke a rule.
type ValidationError struct {
	Entity string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Errors))

	for _, fe := range e.Errors {
		messages = append(messages, fe.Message)
	}

	return "invalid " + e.Entity + ": " + strings.Join(messages, "; ")
}

// HasField reports whether field is among the failures.
func (e *ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}

	return false
}
