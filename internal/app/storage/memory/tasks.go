package memory

import (
	"context"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

// TaskStore implementation ----------------------------------------------------

func (s *Store) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[t.ProjectID]
	if !ok {
		return task.Task{}, apperrors.NotFound("project", t.ProjectID)
	}
	if !p.Status.Open() {
		return task.Task{}, apperrors.Conflict("project is " + string(p.Status))
	}
	var allocated int64
	for _, existing := range s.projectTasksLocked(t.ProjectID) {
		allocated += existing.Reward
	}
	if allocated+t.Reward > p.MemberShare {
		return task.Task{}, apperrors.Conflict("task rewards exceed the member share").
			WithDetails("member_share", p.MemberShare).
			WithDetails("allocated", allocated)
	}
	if t.ID == "" {
		t.ID = newID()
	}
	ts := now()
	t.Status = task.StatusAvailable
	t.AssigneeID = ""
	t.AssignedAt = nil
	t.CreatedAt = ts
	t.UpdatedAt = ts
	s.tasks[t.ID] = t
	return cloneTask(t), nil
}

func (s *Store) GetTask(_ context.Context, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, apperrors.NotFound("task", id)
	}
	return cloneTask(t), nil
}

func (s *Store) ListTasks(_ context.Context, projectID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]task.Task, 0)
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			result = append(result, cloneTask(t))
		}
	}
	sortByCreated(result, func(t task.Task) time.Time { return t.CreatedAt })
	return result, nil
}

func (s *Store) ListTasksForAssignee(_ context.Context, userID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]task.Task, 0)
	for _, t := range s.tasks {
		if t.AssigneeID == userID {
			result = append(result, cloneTask(t))
		}
	}
	sortByCreated(result, func(t task.Task) time.Time { return t.CreatedAt })
	return result, nil
}

func (s *Store) UpdateTask(_ context.Context, id string, fn func(*task.Task) error) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, apperrors.NotFound("task", id)
	}
	if p, ok := s.projects[t.ProjectID]; !ok || !p.Status.Open() {
		return task.Task{}, apperrors.Conflict("project is "+string(p.Status)).WithDetails("project_id", t.ProjectID)
	}
	t = cloneTask(t)
	if err := fn(&t); err != nil {
		return task.Task{}, err
	}
	t.ID = id
	t.UpdatedAt = now()
	s.tasks[id] = t
	return cloneTask(t), nil
}

func (s *Store) ReleaseStaleAssignments(_ context.Context, assignedBefore time.Time) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now()
	var released []task.Task
	for id, t := range s.tasks {
		if t.Status != task.StatusAssigned || t.AssignedAt == nil || !t.AssignedAt.Before(assignedBefore) {
			continue
		}
		t.Status = task.StatusAvailable
		t.AssigneeID = ""
		t.AssignedAt = nil
		t.UpdatedAt = ts
		s.tasks[id] = t
		released = append(released, cloneTask(t))
	}
	return released, nil
}
