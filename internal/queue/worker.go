package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tgmstudios/mrm360-sub002/internal/apperrors"
	"github.com/tgmstudios/mrm360-sub002/internal/logger"
	"github.com/tgmstudios/mrm360-sub002/internal/models/intents"
	taskmodels "github.com/tgmstudios/mrm360-sub002/internal/models/tasks"
	"github.com/tgmstudios/mrm360-sub002/internal/service/provisioning"
	teamsync "github.com/tgmstudios/mrm360-sub002/internal/service/sync"
	"github.com/tgmstudios/mrm360-sub002/internal/tasks"
)

// Worker pulls jobs off the durable queue and executes their intents.
// Each worker slot runs one job at a time; retry with exponential
// backoff is handled here, never inside the orchestrator.
type Worker struct {
	store        JobStore
	tasks        *tasks.Manager
	orchestrator *provisioning.Orchestrator
	reconciler   *teamsync.Reconciler
	log          *logger.Logger
	pollInterval time.Duration
	backoffBase  time.Duration
}

// NewWorker builds a worker over the queue store and both engines.
func NewWorker(store JobStore, taskManager *tasks.Manager, orchestrator *provisioning.Orchestrator, reconciler *teamsync.Reconciler, pollInterval, backoffBase time.Duration) *Worker {
	return &Worker{
		store:        store,
		tasks:        taskManager,
		orchestrator: orchestrator,
		reconciler:   reconciler,
		log:          logger.NewLogger("worker"),
		pollInterval: pollInterval,
		backoffBase:  backoffBase,
	}
}

// Run polls the named queue with the given number of slots until ctx is
// cancelled. The provisioning queue must run with concurrency 1.
func (w *Worker) Run(ctx context.Context, queue string, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, queue, slot)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, queue string, slot int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		job, err := w.store.Claim(ctx, queue, time.Now().UTC().Unix())
		if err != nil {
			w.log.Error("Claim failed", "queue", queue, "slot", slot, "error", err)
		} else if job != nil {
			w.execute(ctx, job)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) execute(ctx context.Context, job *Job) {
	w.log.Info("Job started", "job_id", job.ID, "queue", job.Queue, "attempt", job.Attempts, "task_id", job.TaskID)

	intent, err := intents.Decode(job.Payload)
	if err != nil {
		// A payload that cannot decode will never succeed.
		w.failPermanently(ctx, job, err)
		return
	}

	if err := w.tasks.MarkTaskRunning(ctx, job.TaskID); err != nil {
		var invalidState *apperrors.InvalidStateError
		if errors.As(err, &invalidState) {
			// The task already finished; this is a duplicate delivery.
			w.log.Warn("Task already terminal, dropping job", "job_id", job.ID, "task_id", job.TaskID)
			w.markJobCompleted(ctx, job)
			return
		}
		w.retryOrFail(ctx, job, err)
		return
	}

	switch in := intent.(type) {
	case *intents.SyncTeams:
		w.runSync(ctx, job, in)
	case *intents.CreateTeam, *intents.UpdateTeam, *intents.DeleteTeam:
		w.runProvision(ctx, job, intent)
	default:
		w.failPermanently(ctx, job, apperrors.NewValidation("unhandled intent kind %q", in.Kind()))
	}
}

func (w *Worker) runProvision(ctx context.Context, job *Job, intent intents.Intent) {
	observe := func(index int, r provisioning.IntegrationResult) {
		var err error
		if r.Err != nil {
			err = w.tasks.MarkSubtaskFailed(ctx, job.TaskID, index, r.ErrorMsg)
		} else {
			err = w.tasks.MarkSubtaskCompleted(ctx, job.TaskID, index, subtaskResult(r))
		}
		if err != nil {
			// A terminal subtask from a previous attempt keeps its first
			// recorded outcome.
			w.log.Warn("Subtask not updated", "task_id", job.TaskID, "index", index, "error", err)
		}
	}

	res, err := w.orchestrator.Provision(ctx, intent, observe)
	if err != nil {
		if isPermanent(err) {
			w.failPermanently(ctx, job, err)
		} else {
			w.retryOrFail(ctx, job, err)
		}
		return
	}

	payload, err := json.Marshal(res)
	if err != nil {
		w.retryOrFail(ctx, job, err)
		return
	}

	if res.Success {
		err = w.tasks.MarkTaskCompleted(ctx, job.TaskID, string(payload), res.Warnings)
	} else {
		err = w.tasks.MarkTaskFailed(ctx, job.TaskID, res.Errors, res.Warnings)
	}
	if err != nil {
		w.retryOrFail(ctx, job, err)
		return
	}

	w.markJobCompleted(ctx, job)
}

func (w *Worker) runSync(ctx context.Context, job *Job, in *intents.SyncTeams) {
	res, err := w.reconciler.Sync(ctx, in.EventID, in.Mode)
	if err != nil {
		// The subtask stays non-terminal while the job can still be
		// retried; failPermanently records the cause once it cannot.
		if isPermanent(err) {
			w.failPermanently(ctx, job, err)
		} else {
			w.retryOrFail(ctx, job, err)
		}
		return
	}

	payload, err := json.Marshal(res)
	if err != nil {
		w.retryOrFail(ctx, job, err)
		return
	}

	if err := w.tasks.MarkSubtaskCompleted(ctx, job.TaskID, 0, string(payload)); err != nil {
		w.log.Warn("Subtask not updated", "task_id", job.TaskID, "error", err)
	}
	if err := w.tasks.MarkTaskCompleted(ctx, job.TaskID, string(payload), nil); err != nil {
		w.retryOrFail(ctx, job, err)
		return
	}

	w.markJobCompleted(ctx, job)
}

// retryOrFail reschedules the job with exponential backoff until its
// attempts are exhausted, then fails job and task for manual repair.
func (w *Worker) retryOrFail(ctx context.Context, job *Job, cause error) {
	if job.Attempts >= job.MaxAttempts {
		w.log.Error("Job exhausted retries", "job_id", job.ID, "attempts", job.Attempts, "error", cause)
		w.failPermanently(ctx, job, fmt.Errorf("retries exhausted: %w", cause))
		return
	}

	runAt := time.Now().UTC().Add(Backoff(w.backoffBase, job.Attempts)).Unix()
	if err := w.store.Reschedule(ctx, job.ID, runAt, cause.Error()); err != nil {
		w.log.Error("Reschedule failed", "job_id", job.ID, "error", err)
		return
	}
	w.log.Warn("Job rescheduled", "job_id", job.ID, "attempt", job.Attempts, "run_at", runAt, "error", cause)
}

// failPermanently marks the job failed and forces the task terminal:
// any subtask still pending or running is failed with the cause first.
func (w *Worker) failPermanently(ctx context.Context, job *Job, cause error) {
	if err := w.store.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		w.log.Error("Job status update failed", "job_id", job.ID, "error", err)
	}

	task, err := w.tasks.GetTask(ctx, job.TaskID)
	if err != nil || task == nil {
		w.log.Error("Task lookup failed while failing job", "task_id", job.TaskID, "error", err)
		return
	}
	if taskmodels.IsTerminal(task.Status) {
		return
	}

	for i := range task.Subtasks {
		if taskmodels.IsTerminal(task.Subtasks[i].Status) {
			continue
		}
		if err := w.tasks.MarkSubtaskFailed(ctx, job.TaskID, i, cause.Error()); err != nil {
			w.log.Warn("Subtask not updated", "task_id", job.TaskID, "index", i, "error", err)
		}
	}
	if err := w.tasks.MarkTaskFailed(ctx, job.TaskID, []string{cause.Error()}, nil); err != nil {
		w.log.Error("Task status update failed", "task_id", job.TaskID, "error", err)
	}
}

func (w *Worker) markJobCompleted(ctx context.Context, job *Job) {
	if err := w.store.MarkCompleted(ctx, job.ID); err != nil {
		w.log.Error("Job status update failed", "job_id", job.ID, "error", err)
		return
	}
	w.log.Info("Job finished", "job_id", job.ID, "task_id", job.TaskID)
}

// Backoff returns the delay before the next attempt: base doubled per
// prior attempt, capped at 64x.
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	shift := attempts - 1
	if shift > 6 {
		shift = 6
	}
	return base << uint(shift)
}

func isPermanent(err error) bool {
	var validation *apperrors.ValidationError
	var notFound *apperrors.NotFoundError
	var invalidState *apperrors.InvalidStateError
	return errors.As(err, &validation) || errors.As(err, &notFound) || errors.As(err, &invalidState)
}

func subtaskResult(r provisioning.IntegrationResult) string {
	if r.Skipped {
		return taskmodels.SkippedResult
	}
	if r.ExternalID != "" {
		return r.ExternalID
	}
	if r.Detail != "" {
		return r.Detail
	}
	return "ok"
}
