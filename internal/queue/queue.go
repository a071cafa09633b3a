package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tgmstudios/mrm360-sub002/internal/logger"
	"github.com/tgmstudios/mrm360-sub002/internal/models/intents"
	"github.com/tgmstudios/mrm360-sub002/internal/service/provisioning"
	"github.com/tgmstudios/mrm360-sub002/internal/tasks"
)

// Queue names. Provisioning runs with concurrency 1 so two jobs never
// mutate the same team's external refs concurrently; sync jobs operate
// per-event and may run wider.
const (
	QueueProvisioning = "provisioning"
	QueueSync         = "sync"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is one durable queue entry carrying one intent.
type Job struct {
	ID          string
	Queue       string
	TaskID      int64
	Payload     []byte
	Status      string
	Attempts    int
	MaxAttempts int
	RunAt       int64
	LastError   string
	CreatedAt   int64
}

// JobStore is the durable queue persistence layer.
type JobStore interface {
	Insert(ctx context.Context, job *Job) error
	// Claim atomically moves one ready job to running and increments its
	// attempt counter. Returns nil when nothing is ready.
	Claim(ctx context.Context, queue string, now int64) (*Job, error)
	MarkCompleted(ctx context.Context, jobID string) error
	Reschedule(ctx context.Context, jobID string, runAt int64, lastError string) error
	MarkFailed(ctx context.Context, jobID string, lastError string) error
}

// Service enqueues intents. The triggering request stays cheap: it only
// creates the task and the job row, then returns the task id for polling.
type Service struct {
	store       JobStore
	tasks       *tasks.Manager
	log         *logger.Logger
	maxAttempts int
}

// NewService builds the enqueue service.
func NewService(store JobStore, taskManager *tasks.Manager, maxAttempts int) *Service {
	return &Service{
		store:       store,
		tasks:       taskManager,
		log:         logger.NewLogger("queue"),
		maxAttempts: maxAttempts,
	}
}

// EnqueueIntent creates the tracking task, with one subtask per
// integration the worker will evaluate, and the queue job referencing it.
func (s *Service) EnqueueIntent(ctx context.Context, intent intents.Intent) (string, int64, error) {
	payload, err := intents.Encode(intent)
	if err != nil {
		return "", 0, err
	}

	queueName := QueueProvisioning
	entityType := "team"
	var entityID int64
	subtaskNames := provisioning.SubtaskNames(intent)

	switch in := intent.(type) {
	case *intents.CreateTeam:
		entityID = in.TeamID
	case *intents.UpdateTeam:
		entityID = in.TeamID
	case *intents.DeleteTeam:
		entityID = in.TeamID
	case *intents.SyncTeams:
		queueName = QueueSync
		entityType = "event"
		entityID = in.EventID
		subtaskNames = []string{"workshop"}
	}

	task, err := s.tasks.CreateTask(ctx, intent.Kind(), entityType, entityID, subtaskNames)
	if err != nil {
		return "", 0, err
	}

	job := &Job{
		ID:          uuid.NewString(),
		Queue:       queueName,
		TaskID:      task.ID,
		Payload:     payload,
		Status:      JobPending,
		MaxAttempts: s.maxAttempts,
		RunAt:       time.Now().UTC().Unix(),
		CreatedAt:   time.Now().UTC().Unix(),
	}
	if err := s.store.Insert(ctx, job); err != nil {
		return "", 0, err
	}

	s.log.Info("Intent enqueued", "job_id", job.ID, "queue", queueName, "kind", intent.Kind(), "task_id", task.ID)
	return job.ID, task.ID, nil
}
