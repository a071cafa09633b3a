package taskmodels

// Status values shared by tasks and subtasks. pending -> running ->
// {completed, failed}; terminal states are immutable.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// IsTerminal reports whether a status is completed or failed.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Task is one execution of a lifecycle intent. It is created when the
// intent is enqueued and mutated only by the worker running it.
type Task struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Status     string    `json:"status"`
	Result     string    `json:"result,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	Subtasks   []Subtask `json:"subtasks"`
	CreatedAt  int64     `json:"created_at"`
	StartedAt  int64     `json:"started_at,omitempty"`
	FinishedAt int64     `json:"finished_at,omitempty"`
}

// Subtask tracks one integration inside a task. The subtask set is fixed
// when the task is created and never grows or shrinks afterwards.
type Subtask struct {
	TaskID      int64  `json:"task_id"`
	Integration string `json:"integration"`
	OrderIndex  int    `json:"order_index"`
	Status      string `json:"status"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
	StartedAt   int64  `json:"started_at,omitempty"`
	FinishedAt  int64  `json:"finished_at,omitempty"`
}

// SkippedResult marks a subtask for an integration that was disabled.
// Skipped integrations are recorded as completed, never omitted.
const SkippedResult = "skipped"
