package orchestration

import (
	"time"
)

// Status is the coarse runtime status reported to pollers.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Phase is the finer-grained position of an instance within its orchestrator.
type Phase string

const (
	PhaseScheduled Phase = "Scheduled"
	PhaseCompleted Phase = "Completed"
	PhaseFailed    Phase = "Failed"
)

/*
Instance is one durable run of a named orchestrator. Output holds the JSON
encoded result once the instance completes.
*/
type Instance struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Status    Status    `db:"status" json:"status"`
	Phase     Phase     `db:"phase" json:"phase"`
	Output    string    `db:"output" json:"output,omitempty"`
	Error     string    `db:"error_message" json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

/*
Step is one completed activity call in an instance's history. StepKey is
unique per instance and doubles as the idempotency key.
*/
type Step struct {
	InstanceID  string    `db:"instance_id"`
	StepKey     string    `db:"step_key"`
	Activity    string    `db:"activity"`
	Input       string    `db:"input"`
	Output      string    `db:"output"`
	CompletedAt time.Time `db:"completed_at"`
}
