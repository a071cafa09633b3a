package taskService

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tgmstudios/mrm360-sub002/internal/logger"
	"github.com/tgmstudios/mrm360-sub002/internal/tasks"
)

// TaskService exposes the poll endpoint callers use to observe a
// long-running intent.
type TaskService struct {
	Tasks *tasks.Manager
	Log   *logger.Logger
}

// NewTaskService initializes a new task service
func NewTaskService(taskManager *tasks.Manager) *TaskService {
	return &TaskService{
		Tasks: taskManager,
		Log:   logger.NewLogger("task-service"),
	}
}

// GetTask returns a task's status, subtasks and result payload.
func (ts *TaskService) GetTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	taskID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := ts.Tasks.GetTask(r.Context(), taskID)
	if err != nil {
		ts.Log.Error("Failed to load task", "error", err, "task_id", taskID)
		respondWithError(w, http.StatusInternalServerError, "Failed to get task")
		return
	}
	if task == nil {
		respondWithError(w, http.StatusNotFound, "Task not found")
		return
	}

	respondWithJSON(w, http.StatusOK, task)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
