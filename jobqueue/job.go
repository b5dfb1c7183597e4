package jobqueue

import (
	"time"

	"github.com/ohnodev/obelisk-core/engine"
	"github.com/ohnodev/obelisk-core/workflow"
)

type (
	// Status is the lifecycle state of a job. Serialized lowercase.
	Status string

	// Options is the caller-supplied execution options bag attached to a job.
	Options struct {
		// UserID identifies the submitting user. Preferred caller key.
		UserID string `json:"user_id,omitempty"`
		// ClientID identifies the submitting client; the caller key when
		// UserID is empty.
		ClientID string `json:"client_id,omitempty"`
		// UserQuery is the free-form query the submission is about; exposed
		// to nodes as the "user_query" variable.
		UserQuery string `json:"user_query,omitempty"`
		// ExtraData carries additional context entries; merged into the
		// execution variables.
		ExtraData map[string]any `json:"extra_data,omitempty"`
		// Variables seed the execution context for template resolution.
		Variables map[string]any `json:"variables,omitempty"`
		// ExecutionID is an optional caller-chosen correlation id.
		ExecutionID string `json:"execution_id,omitempty"`
	}

	// Job is one queued workflow execution. The full record, graph included,
	// is what the queue persists, so a restart can resume from disk alone.
	Job struct {
		// ID is the queue-assigned job identifier.
		ID string `json:"id"`
		// Workflow is the graph to execute.
		Workflow *workflow.Graph `json:"workflow"`
		// Options is the caller's options bag.
		Options Options `json:"options"`
		// Status is the current lifecycle state.
		Status Status `json:"status"`
		// Position is the 0-based place in the queued line (0 is next to
		// run), -1 once the job leaves it. Recomputed after every queue
		// mutation.
		Position int `json:"position"`
		// CreatedAt is the enqueue time.
		CreatedAt time.Time `json:"created_at"`
		// StartedAt is when a worker picked the job up.
		StartedAt *time.Time `json:"started_at,omitempty"`
		// CompletedAt is when the job reached a terminal state.
		CompletedAt *time.Time `json:"completed_at,omitempty"`
		// Result is the execution outcome, set on completion and failure.
		Result *engine.GraphResult `json:"result,omitempty"`
		// Error is the failure reason for failed and cancelled jobs.
		Error string `json:"error,omitempty"`
	}
)

const (
	// StatusQueued jobs wait in line.
	StatusQueued Status = "queued"
	// StatusRunning jobs are being executed by a worker.
	StatusRunning Status = "running"
	// StatusCompleted jobs finished with a successful result.
	StatusCompleted Status = "completed"
	// StatusFailed jobs finished with an execution failure.
	StatusFailed Status = "failed"
	// StatusCancelled jobs were cancelled while still queued.
	StatusCancelled Status = "cancelled"
)

// terminal reports whether the status is final.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// callerID is the admission and attribution key: user id, falling back to
// client id, falling back to "anonymous".
func (o Options) callerID() string {
	if o.UserID != "" {
		return o.UserID
	}
	if o.ClientID != "" {
		return o.ClientID
	}
	return "anonymous"
}

// contextVariables builds the variable map seeded into the execution
// context. client_id fills user_id when no explicit user id was given,
// user_query passes through, and extra_data merges in before the caller's
// variables so explicit variables win on key conflicts.
func (o Options) contextVariables() map[string]any {
	vars := make(map[string]any, len(o.Variables)+len(o.ExtraData)+4)
	if o.UserID != "" {
		vars["user_id"] = o.UserID
	} else if o.ClientID != "" {
		vars["user_id"] = o.ClientID
	}
	if o.ClientID != "" {
		vars["client_id"] = o.ClientID
	}
	if o.UserQuery != "" {
		vars["user_query"] = o.UserQuery
	}
	if o.ExecutionID != "" {
		vars["execution_id"] = o.ExecutionID
	}
	for k, v := range o.ExtraData {
		vars[k] = v
	}
	for k, v := range o.Variables {
		vars[k] = v
	}
	return vars
}

// clone copies the job so callers cannot mutate queue-owned state.
func (j *Job) clone() *Job {
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
