package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/tgmstudios/mrm360-sub002/internal/apperrors"
	taskmodels "github.com/tgmstudios/mrm360-sub002/internal/models/tasks"
)

type fakeStore struct {
	tasks  map[int64]*taskmodels.Task
	nextID int64

	errOnCreate error
	errOnUpdate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[int64]*taskmodels.Task{}, nextID: 1}
}

func (f *fakeStore) CreateTask(ctx context.Context, task *taskmodels.Task) (int64, error) {
	if f.errOnCreate != nil {
		return 0, f.errOnCreate
	}
	id := f.nextID
	f.nextID++
	stored := *task
	stored.ID = id
	stored.Subtasks = append([]taskmodels.Subtask(nil), task.Subtasks...)
	for i := range stored.Subtasks {
		stored.Subtasks[i].TaskID = id
	}
	f.tasks[id] = &stored
	return id, nil
}

func (f *fakeStore) GetTask(ctx context.Context, taskID int64) (*taskmodels.Task, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, nil
	}
	copied := *task
	copied.Subtasks = append([]taskmodels.Subtask(nil), task.Subtasks...)
	return &copied, nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, task *taskmodels.Task) error {
	if f.errOnUpdate != nil {
		return f.errOnUpdate
	}
	stored := f.tasks[task.ID]
	subtasks := stored.Subtasks
	copied := *task
	copied.Subtasks = subtasks
	f.tasks[task.ID] = &copied
	return nil
}

func (f *fakeStore) UpdateSubtask(ctx context.Context, subtask *taskmodels.Subtask) error {
	if f.errOnUpdate != nil {
		return f.errOnUpdate
	}
	stored := f.tasks[subtask.TaskID]
	stored.Subtasks[subtask.OrderIndex] = *subtask
	return nil
}

func TestCreateTaskRequiresSubtasks(t *testing.T) {
	m := NewManager(newFakeStore())

	_, err := m.CreateTask(context.Background(), "provision", "team", 1, nil)

	var validationErr *apperrors.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateTaskAllocatesPendingSubtasks(t *testing.T) {
	m := NewManager(newFakeStore())

	task, err := m.CreateTask(context.Background(), "provision", "team", 7, []string{"directory", "wiki"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != taskmodels.StatusPending {
		t.Errorf("task status = %q, want pending", task.Status)
	}
	if len(task.Subtasks) != 2 {
		t.Fatalf("subtask count = %d, want 2", len(task.Subtasks))
	}
	for i, st := range task.Subtasks {
		if st.Status != taskmodels.StatusPending {
			t.Errorf("subtask %d status = %q, want pending", i, st.Status)
		}
		if st.OrderIndex != i {
			t.Errorf("subtask %d order index = %d", i, st.OrderIndex)
		}
		if st.TaskID != task.ID {
			t.Errorf("subtask %d task id = %d, want %d", i, st.TaskID, task.ID)
		}
	}
}

func TestMarkTaskRunningIsIdempotent(t *testing.T) {
	m := NewManager(newFakeStore())
	task, _ := m.CreateTask(context.Background(), "provision", "team", 1, []string{"directory"})

	if err := m.MarkTaskRunning(context.Background(), task.ID); err != nil {
		t.Fatalf("first MarkTaskRunning: %v", err)
	}
	if err := m.MarkTaskRunning(context.Background(), task.ID); err != nil {
		t.Fatalf("second MarkTaskRunning: %v", err)
	}

	got, _ := m.GetTask(context.Background(), task.ID)
	if got.Status != taskmodels.StatusRunning {
		t.Errorf("status = %q, want running", got.Status)
	}
	if got.StartedAt == 0 {
		t.Error("StartedAt not recorded")
	}
}

func TestTerminalTaskIsImmutable(t *testing.T) {
	m := NewManager(newFakeStore())
	task, _ := m.CreateTask(context.Background(), "provision", "team", 1, []string{"directory"})

	if err := m.MarkTaskRunning(context.Background(), task.ID); err != nil {
		t.Fatalf("MarkTaskRunning: %v", err)
	}
	if err := m.MarkSubtaskCompleted(context.Background(), task.ID, 0, "grp-1"); err != nil {
		t.Fatalf("MarkSubtaskCompleted: %v", err)
	}
	if err := m.MarkTaskCompleted(context.Background(), task.ID, `{"ok":true}`, nil); err != nil {
		t.Fatalf("MarkTaskCompleted: %v", err)
	}

	var invalidState *apperrors.InvalidStateError
	if err := m.MarkTaskRunning(context.Background(), task.ID); !errors.As(err, &invalidState) {
		t.Errorf("MarkTaskRunning on terminal task: got %v, want InvalidStateError", err)
	}
	if err := m.MarkTaskCompleted(context.Background(), task.ID, "", nil); !errors.As(err, &invalidState) {
		t.Errorf("MarkTaskCompleted on terminal task: got %v, want InvalidStateError", err)
	}
	if err := m.MarkTaskFailed(context.Background(), task.ID, []string{"boom"}, nil); !errors.As(err, &invalidState) {
		t.Errorf("MarkTaskFailed on terminal task: got %v, want InvalidStateError", err)
	}
}

func TestTerminalSubtaskIsImmutable(t *testing.T) {
	m := NewManager(newFakeStore())
	task, _ := m.CreateTask(context.Background(), "provision", "team", 1, []string{"directory"})

	if err := m.MarkSubtaskFailed(context.Background(), task.ID, 0, "timeout"); err != nil {
		t.Fatalf("MarkSubtaskFailed: %v", err)
	}

	var invalidState *apperrors.InvalidStateError
	if err := m.MarkSubtaskCompleted(context.Background(), task.ID, 0, "grp-1"); !errors.As(err, &invalidState) {
		t.Errorf("re-marking terminal subtask: got %v, want InvalidStateError", err)
	}
}

func TestTaskCannotFinishWithPendingSubtasks(t *testing.T) {
	m := NewManager(newFakeStore())
	task, _ := m.CreateTask(context.Background(), "provision", "team", 1, []string{"directory", "wiki"})

	if err := m.MarkSubtaskCompleted(context.Background(), task.ID, 0, "grp-1"); err != nil {
		t.Fatalf("MarkSubtaskCompleted: %v", err)
	}

	var invalidState *apperrors.InvalidStateError
	if err := m.MarkTaskCompleted(context.Background(), task.ID, "", nil); !errors.As(err, &invalidState) {
		t.Fatalf("finishing with pending subtask: got %v, want InvalidStateError", err)
	}

	if err := m.MarkSubtaskFailed(context.Background(), task.ID, 1, "wiki down"); err != nil {
		t.Fatalf("MarkSubtaskFailed: %v", err)
	}
	if err := m.MarkTaskFailed(context.Background(), task.ID, []string{"wiki down"}, nil); err != nil {
		t.Fatalf("MarkTaskFailed after all terminal: %v", err)
	}

	got, _ := m.GetTask(context.Background(), task.ID)
	if got.Status != taskmodels.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if len(got.Errors) != 1 || got.Errors[0] != "wiki down" {
		t.Errorf("errors = %v", got.Errors)
	}
}

func TestSubtaskIndexOutOfRange(t *testing.T) {
	m := NewManager(newFakeStore())
	task, _ := m.CreateTask(context.Background(), "provision", "team", 1, []string{"directory"})

	var notFound *apperrors.NotFoundError
	if err := m.MarkSubtaskCompleted(context.Background(), task.ID, 5, "x"); !errors.As(err, &notFound) {
		t.Errorf("out-of-range index: got %v, want NotFoundError", err)
	}
}

func TestMarkTaskRunningUnknownTask(t *testing.T) {
	m := NewManager(newFakeStore())

	var notFound *apperrors.NotFoundError
	if err := m.MarkTaskRunning(context.Background(), 99); !errors.As(err, &notFound) {
		t.Errorf("unknown task: got %v, want NotFoundError", err)
	}
}

func TestGetTaskMissingReturnsNil(t *testing.T) {
	m := NewManager(newFakeStore())

	task, err := m.GetTask(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task != nil {
		t.Errorf("expected nil task, got %+v", task)
	}
}
