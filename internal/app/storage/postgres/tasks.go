package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

const taskColumns = `id, project_id, title, description, reward, assignee_id, status, deliverable, feedback,
	assigned_at, created_at, updated_at`

// --- TaskStore --------------------------------------------------------------

func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var p project.Project
		if err := tx.GetContext(ctx, &p, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, t.ProjectID); err != nil {
			return mapError(err, "project", t.ProjectID)
		}
		if !p.Status.Open() {
			return apperrors.Conflict("project is " + string(p.Status))
		}
		var allocated int64
		if err := tx.GetContext(ctx, &allocated, `
			SELECT COALESCE(SUM(reward), 0) FROM tasks WHERE project_id = $1
		`, t.ProjectID); err != nil {
			return err
		}
		if allocated+t.Reward > p.MemberShare {
			return apperrors.Conflict("task rewards exceed the member share").
				WithDetails("member_share", p.MemberShare).
				WithDetails("allocated", allocated)
		}
		ts := now()
		t.Status = task.StatusAvailable
		t.AssigneeID = ""
		t.AssignedAt = nil
		t.CreatedAt = ts
		t.UpdatedAt = ts
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO tasks (`+taskColumns+`)
			VALUES (:id, :project_id, :title, :description, :reward, :assignee_id, :status, :deliverable, :feedback,
				:assigned_at, :created_at, :updated_at)
		`, t)
		return mapError(err, "task", t.ID)
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	var t task.Task
	err := s.db.GetContext(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return t, mapError(err, "task", id)
}

func (s *Store) ListTasks(ctx context.Context, projectID string) ([]task.Task, error) {
	var result []task.Task
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at
	`, projectID)
	return result, err
}

func (s *Store) ListTasksForAssignee(ctx context.Context, userID string) ([]task.Task, error) {
	var result []task.Task
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+taskColumns+` FROM tasks WHERE assignee_id = $1 ORDER BY created_at
	`, userID)
	return result, err
}

func (s *Store) UpdateTask(ctx context.Context, id string, fn func(*task.Task) error) (task.Task, error) {
	var t task.Task
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		// Project before task, the same order CompleteProject and
		// CancelProject lock in.
		var projectID string
		if err := tx.GetContext(ctx, &projectID, `SELECT project_id FROM tasks WHERE id = $1`, id); err != nil {
			return mapError(err, "task", id)
		}
		var status project.Status
		if err := tx.GetContext(ctx, &status, `SELECT status FROM projects WHERE id = $1 FOR SHARE`, projectID); err != nil {
			return mapError(err, "project", projectID)
		}
		if !status.Open() {
			return apperrors.Conflict("project is "+string(status)).WithDetails("project_id", projectID)
		}
		if err := tx.GetContext(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id); err != nil {
			return mapError(err, "task", id)
		}
		if err := fn(&t); err != nil {
			return err
		}
		t.ID = id
		t.UpdatedAt = now()
		_, err := tx.NamedExecContext(ctx, `
			UPDATE tasks
			SET title = :title, description = :description, assignee_id = :assignee_id, status = :status,
				deliverable = :deliverable, feedback = :feedback, assigned_at = :assigned_at, updated_at = :updated_at
			WHERE id = :id
		`, t)
		return mapError(err, "task", id)
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *Store) ReleaseStaleAssignments(ctx context.Context, assignedBefore time.Time) ([]task.Task, error) {
	var released []task.Task
	err := s.db.SelectContext(ctx, &released, `
		UPDATE tasks
		SET status = 'available', assignee_id = '', assigned_at = NULL, updated_at = $2
		WHERE status = 'assigned' AND assigned_at < $1
		RETURNING `+taskColumns, assignedBefore, now())
	return released, err
}
