package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	taskmodels "github.com/tgmstudios/mrm360-sub002/internal/models/tasks"
)

// SQLStore persists tasks and subtasks in MySQL.
type SQLStore struct {
	DB *sql.DB
}

// NewSQLStore wraps the shared database pool.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

// CreateTask inserts the task row and its subtask rows in one transaction.
func (s *SQLStore) CreateTask(ctx context.Context, task *taskmodels.Task) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	query := `
		INSERT INTO tasks (task_name, entity_type, entity_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query, task.Name, task.EntityType, task.EntityID, task.Status, task.CreatedAt)
	if err != nil {
		return 0, err
	}

	taskID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	query = `
		INSERT INTO subtasks (task_id, integration, order_index, status)
		VALUES (?, ?, ?, ?)
	`
	for i := range task.Subtasks {
		st := &task.Subtasks[i]
		if _, err := tx.ExecContext(ctx, query, taskID, st.Integration, st.OrderIndex, st.Status); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return taskID, nil
}

// GetTask loads a task and its subtasks ordered by order_index. Returns
// (nil, nil) when the task does not exist.
func (s *SQLStore) GetTask(ctx context.Context, taskID int64) (*taskmodels.Task, error) {
	var task taskmodels.Task
	var result, errorsJSON, warningsJSON sql.NullString
	var startedAt, finishedAt sql.NullInt64

	query := `
		SELECT task_id, task_name, entity_type, entity_id, status, result, errors, warnings,
		       created_at, started_at, finished_at
		FROM tasks WHERE task_id = ?
	`
	err := s.DB.QueryRowContext(ctx, query, taskID).Scan(
		&task.ID, &task.Name, &task.EntityType, &task.EntityID, &task.Status,
		&result, &errorsJSON, &warningsJSON,
		&task.CreatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	task.Result = result.String
	task.StartedAt = startedAt.Int64
	task.FinishedAt = finishedAt.Int64
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &task.Errors); err != nil {
			return nil, err
		}
	}
	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &task.Warnings); err != nil {
			return nil, err
		}
	}

	query = `
		SELECT task_id, integration, order_index, status, result, error, started_at, finished_at
		FROM subtasks WHERE task_id = ? ORDER BY order_index
	`
	rows, err := s.DB.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var st taskmodels.Subtask
		var stResult, stError sql.NullString
		var stStarted, stFinished sql.NullInt64
		if err := rows.Scan(&st.TaskID, &st.Integration, &st.OrderIndex, &st.Status,
			&stResult, &stError, &stStarted, &stFinished); err != nil {
			return nil, err
		}
		st.Result = stResult.String
		st.Error = stError.String
		st.StartedAt = stStarted.Int64
		st.FinishedAt = stFinished.Int64
		task.Subtasks = append(task.Subtasks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &task, nil
}

// UpdateTask persists the task row's mutable fields.
func (s *SQLStore) UpdateTask(ctx context.Context, task *taskmodels.Task) error {
	errorsJSON, err := marshalList(task.Errors)
	if err != nil {
		return err
	}
	warningsJSON, err := marshalList(task.Warnings)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET status = ?, result = ?, errors = ?, warnings = ?, started_at = ?, finished_at = ?
		WHERE task_id = ?
	`
	_, err = s.DB.ExecContext(ctx, query,
		task.Status, task.Result, errorsJSON, warningsJSON,
		nullableInt(task.StartedAt), nullableInt(task.FinishedAt), task.ID)
	return err
}

// UpdateSubtask persists one subtask's mutable fields.
func (s *SQLStore) UpdateSubtask(ctx context.Context, subtask *taskmodels.Subtask) error {
	query := `
		UPDATE subtasks
		SET status = ?, result = ?, error = ?, started_at = ?, finished_at = ?
		WHERE task_id = ? AND order_index = ?
	`
	_, err := s.DB.ExecContext(ctx, query,
		subtask.Status, subtask.Result, subtask.Error,
		nullableInt(subtask.StartedAt), nullableInt(subtask.FinishedAt),
		subtask.TaskID, subtask.OrderIndex)
	return err
}

func marshalList(list []string) (string, error) {
	if len(list) == 0 {
		return "", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullableInt(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
