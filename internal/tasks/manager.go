package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/tgmstudios/mrm360-sub002/internal/apperrors"
	"github.com/tgmstudios/mrm360-sub002/internal/logger"
	taskmodels "github.com/tgmstudios/mrm360-sub002/internal/models/tasks"
)

// Store is the dumb persistence layer underneath Manager. It performs no
// validation; every transition rule lives in Manager so the state machine
// behaves identically over SQL and over test fakes.
type Store interface {
	CreateTask(ctx context.Context, task *taskmodels.Task) (int64, error)
	GetTask(ctx context.Context, taskID int64) (*taskmodels.Task, error)
	UpdateTask(ctx context.Context, task *taskmodels.Task) error
	UpdateSubtask(ctx context.Context, subtask *taskmodels.Subtask) error
}

// Manager enforces the task/subtask state machine:
// pending -> running -> {completed, failed}, terminal states immutable,
// and a task may only finish once every subtask is terminal.
type Manager struct {
	store Store
	log   *logger.Logger
}

// NewManager builds a Manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		log:   logger.NewLogger("tasks"),
	}
}

// CreateTask allocates a task with one pending subtask per name, in the
// given order. The subtask set is fixed for the task's lifetime.
func (m *Manager) CreateTask(ctx context.Context, name, entityType string, entityID int64, subtaskNames []string) (*taskmodels.Task, error) {
	if len(subtaskNames) == 0 {
		return nil, apperrors.NewValidation("task %q needs at least one subtask", name)
	}

	now := time.Now().UTC().Unix()
	task := &taskmodels.Task{
		Name:       name,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     taskmodels.StatusPending,
		CreatedAt:  now,
	}
	for i, subtaskName := range subtaskNames {
		task.Subtasks = append(task.Subtasks, taskmodels.Subtask{
			Integration: subtaskName,
			OrderIndex:  i,
			Status:      taskmodels.StatusPending,
		})
	}

	taskID, err := m.store.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	task.ID = taskID
	for i := range task.Subtasks {
		task.Subtasks[i].TaskID = taskID
	}

	m.log.Info("Task created", "task_id", taskID, "name", name, "subtasks", len(subtaskNames))
	return task, nil
}

// MarkTaskRunning transitions the task to running. Calling it on an
// already-running task is a no-op; calling it on a terminal task is an
// InvalidStateError.
func (m *Manager) MarkTaskRunning(ctx context.Context, taskID int64) error {
	task, err := m.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status == taskmodels.StatusRunning {
		return nil
	}
	if taskmodels.IsTerminal(task.Status) {
		return apperrors.NewInvalidState("task %d is already %s", taskID, task.Status)
	}

	task.Status = taskmodels.StatusRunning
	task.StartedAt = time.Now().UTC().Unix()
	return m.store.UpdateTask(ctx, task)
}

// MarkSubtaskCompleted records a subtask's successful terminal state.
func (m *Manager) MarkSubtaskCompleted(ctx context.Context, taskID int64, index int, result string) error {
	return m.finishSubtask(ctx, taskID, index, taskmodels.StatusCompleted, result, "")
}

// MarkSubtaskFailed records a subtask's failed terminal state.
func (m *Manager) MarkSubtaskFailed(ctx context.Context, taskID int64, index int, subtaskErr string) error {
	return m.finishSubtask(ctx, taskID, index, taskmodels.StatusFailed, "", subtaskErr)
}

func (m *Manager) finishSubtask(ctx context.Context, taskID int64, index int, status, result, subtaskErr string) error {
	task, err := m.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(task.Subtasks) {
		return apperrors.NewNotFound("subtask", fmt.Sprintf("%d/%d", taskID, index))
	}

	subtask := &task.Subtasks[index]
	if taskmodels.IsTerminal(subtask.Status) {
		return apperrors.NewInvalidState("subtask %d/%d is already %s", taskID, index, subtask.Status)
	}

	now := time.Now().UTC().Unix()
	if subtask.StartedAt == 0 {
		subtask.StartedAt = now
	}
	subtask.Status = status
	subtask.Result = result
	subtask.Error = subtaskErr
	subtask.FinishedAt = now
	return m.store.UpdateSubtask(ctx, subtask)
}

// MarkTaskCompleted finishes the task successfully. Warnings from
// optional integrations ride along without flipping the status.
func (m *Manager) MarkTaskCompleted(ctx context.Context, taskID int64, result string, warnings []string) error {
	return m.finishTask(ctx, taskID, taskmodels.StatusCompleted, result, nil, warnings)
}

// MarkTaskFailed finishes the task as failed with the mandatory-failure
// list that caused it.
func (m *Manager) MarkTaskFailed(ctx context.Context, taskID int64, errs, warnings []string) error {
	return m.finishTask(ctx, taskID, taskmodels.StatusFailed, "", errs, warnings)
}

func (m *Manager) finishTask(ctx context.Context, taskID int64, status, result string, errs, warnings []string) error {
	task, err := m.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if taskmodels.IsTerminal(task.Status) {
		return apperrors.NewInvalidState("task %d is already %s", taskID, task.Status)
	}
	for i := range task.Subtasks {
		if !taskmodels.IsTerminal(task.Subtasks[i].Status) {
			return apperrors.NewInvalidState("task %d cannot finish: subtask %d is still %s",
				taskID, i, task.Subtasks[i].Status)
		}
	}

	task.Status = status
	task.Result = result
	task.Errors = errs
	task.Warnings = warnings
	task.FinishedAt = time.Now().UTC().Unix()
	if err := m.store.UpdateTask(ctx, task); err != nil {
		return err
	}

	m.log.Info("Task finished", "task_id", taskID, "status", status)
	return nil
}

// GetTask returns the task with its subtasks, or nil when it does not
// exist. Used by pollers; never blocks on running work.
func (m *Manager) GetTask(ctx context.Context, taskID int64) (*taskmodels.Task, error) {
	return m.store.GetTask(ctx, taskID)
}

func (m *Manager) loadTask(ctx context.Context, taskID int64) (*taskmodels.Task, error) {
	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperrors.NewNotFound("task", fmt.Sprintf("%d", taskID))
	}
	return task, nil
}
