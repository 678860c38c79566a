// Package tasks manages the work items a leader carves out of a funded
// project and the lifecycle each assignee drives them through.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	"github.com/Yassin6up/somoo-sub000/internal/app/realtime"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// Membership answers whether a user belongs to a group. The groups service
// satisfies it.
type Membership interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Service manages project tasks.
type Service struct {
	members  Membership
	projects storage.ProjectStore
	tasks    storage.TaskStore
	events   realtime.Publisher
	ttl      time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// Option customises the service.
type Option func(*Service)

// WithAssignmentTTL sets how long an assigned task may wait to be started.
func WithAssignmentTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a task service.
func New(members Membership, projects storage.ProjectStore, tasks storage.TaskStore, events realtime.Publisher, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("tasks")
	}
	if events == nil {
		events = realtime.Nop{}
	}
	s := &Service{
		members:  members,
		projects: projects,
		tasks:    tasks,
		events:   events,
		ttl:      72 * time.Hour,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a task to an open project. The store rejects rewards that
// would exceed the member share.
func (s *Service) Create(ctx context.Context, projectID, leaderID, title, description string, reward int64) (task.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return task.Task{}, apperrors.InvalidInput("title is required")
	}
	if reward <= 0 {
		return task.Task{}, apperrors.InvalidInput("reward must be positive")
	}
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return task.Task{}, err
	}
	if p.LeaderID != leaderID {
		return task.Task{}, apperrors.Forbidden("only the group leader can create tasks")
	}
	created, err := s.tasks.CreateTask(ctx, task.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Reward:      reward,
	})
	if err != nil {
		return task.Task{}, fmt.Errorf("create task: %w", err)
	}
	s.publish(p, created)
	s.log.WithField("task_id", created.ID).Infof("task created in project %s with reward %d", projectID, reward)
	return created, nil
}

// Assign hands an available task to a member of the project's group.
func (s *Service) Assign(ctx context.Context, taskID, leaderID, freelancerID string) (task.Task, error) {
	_, p, err := s.load(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if p.LeaderID != leaderID {
		return task.Task{}, apperrors.Forbidden("only the group leader can assign tasks")
	}
	ok, err := s.members.IsMember(ctx, p.GroupID, freelancerID)
	if err != nil {
		return task.Task{}, err
	}
	if !ok {
		return task.Task{}, apperrors.InvalidInput("assignee is not a member of the group")
	}
	return s.transition(ctx, taskID, task.StatusAssigned, s.requireLeader(leaderID), func(t *task.Task) {
		ts := s.now()
		t.AssigneeID = freelancerID
		t.AssignedAt = &ts
		t.Feedback = ""
	})
}

// Unassign returns an assigned or rejected task to the pool.
func (s *Service) Unassign(ctx context.Context, taskID, leaderID string) (task.Task, error) {
	return s.transition(ctx, taskID, task.StatusAvailable, s.requireLeader(leaderID), func(t *task.Task) {
		t.AssigneeID = ""
		t.AssignedAt = nil
	})
}

// Start begins work. The first start also moves a funded project to
// in_progress.
func (s *Service) Start(ctx context.Context, taskID, freelancerID string) (task.Task, error) {
	started, err := s.transition(ctx, taskID, task.StatusInProgress, s.requireAssignee(freelancerID), nil)
	if err != nil {
		return task.Task{}, err
	}
	_, err = s.projects.UpdateProject(ctx, started.ProjectID, func(p *project.Project) error {
		if p.Status == project.StatusFunded {
			p.Status = project.StatusInProgress
		}
		return nil
	})
	if err != nil {
		return task.Task{}, fmt.Errorf("mark project in progress: %w", err)
	}
	return started, nil
}

// Submit hands the deliverable to the leader for review.
func (s *Service) Submit(ctx context.Context, taskID, freelancerID, deliverable string) (task.Task, error) {
	deliverable = strings.TrimSpace(deliverable)
	if deliverable == "" {
		return task.Task{}, apperrors.InvalidInput("deliverable is required")
	}
	return s.transition(ctx, taskID, task.StatusSubmitted, s.requireAssignee(freelancerID), func(t *task.Task) {
		t.Deliverable = deliverable
	})
}

// Approve accepts submitted work; its reward counts toward the member payout.
func (s *Service) Approve(ctx context.Context, taskID, leaderID string) (task.Task, error) {
	return s.transition(ctx, taskID, task.StatusApproved, s.requireLeader(leaderID), nil)
}

// Reject sends submitted work back with feedback.
func (s *Service) Reject(ctx context.Context, taskID, leaderID, feedback string) (task.Task, error) {
	return s.transition(ctx, taskID, task.StatusRejected, s.requireLeader(leaderID), func(t *task.Task) {
		t.Feedback = strings.TrimSpace(feedback)
	})
}

// Get returns the task when userID participates in its project.
func (s *Service) Get(ctx context.Context, taskID, userID string) (task.Task, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if _, err := s.visibleProject(ctx, t.ProjectID, userID); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, projectID, userID string) ([]task.Task, error) {
	if _, err := s.visibleProject(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.tasks.ListTasks(ctx, projectID)
}

func (s *Service) ListForAssignee(ctx context.Context, userID string) ([]task.Task, error) {
	return s.tasks.ListTasksForAssignee(ctx, userID)
}

// ReleaseStale returns assignments nobody started within the TTL to the
// pool and reports how many were released.
func (s *Service) ReleaseStale(ctx context.Context) (int, error) {
	released, err := s.tasks.ReleaseStaleAssignments(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("release stale assignments: %w", err)
	}
	for _, t := range released {
		if p, err := s.projects.GetProject(ctx, t.ProjectID); err == nil {
			s.publish(p, t)
		}
	}
	if len(released) > 0 {
		s.log.Infof("released %d stale task assignments", len(released))
	}
	return len(released), nil
}

type guard func(task.Task, project.Project) error

func (s *Service) requireLeader(leaderID string) guard {
	return func(_ task.Task, p project.Project) error {
		if p.LeaderID != leaderID {
			return apperrors.Forbidden("only the group leader can manage tasks")
		}
		return nil
	}
}

func (s *Service) requireAssignee(userID string) guard {
	return func(t task.Task, _ project.Project) error {
		if t.AssigneeID != userID {
			return apperrors.Forbidden("only the assignee can work on this task")
		}
		return nil
	}
}

func (s *Service) load(ctx context.Context, taskID string) (task.Task, project.Project, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return task.Task{}, project.Project{}, err
	}
	p, err := s.projects.GetProject(ctx, t.ProjectID)
	if err != nil {
		return task.Task{}, project.Project{}, err
	}
	return t, p, nil
}

// transition applies one lifecycle step under the store's update lock. The
// guard runs against the locked task so two racing callers cannot both pass,
// and the store refuses the update once the project is settled. Guards only
// read project fields that never change after acceptance.
func (s *Service) transition(ctx context.Context, taskID string, to task.Status, check guard, mutate func(*task.Task)) (task.Task, error) {
	_, p, err := s.load(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}

	updated, err := s.tasks.UpdateTask(ctx, taskID, func(t *task.Task) error {
		if err := check(*t, p); err != nil {
			return err
		}
		if !task.CanTransition(t.Status, to) {
			return apperrors.Conflict(fmt.Sprintf("task cannot move from %s to %s", t.Status, to)).
				WithDetails("status", t.Status)
		}
		t.Status = to
		if mutate != nil {
			mutate(t)
		}
		return nil
	})
	if err != nil {
		return task.Task{}, fmt.Errorf("task %s: %w", to, err)
	}
	s.publish(p, updated)
	s.log.WithField("task_id", taskID).Infof("task moved to %s", to)
	return updated, nil
}

func (s *Service) publish(p project.Project, t task.Task) {
	s.events.Publish(realtime.ConversationTopic(p.ConversationID), realtime.EventTaskUpdated, t)
	if t.AssigneeID != "" {
		s.events.Publish(realtime.UserTopic(t.AssigneeID), realtime.EventTaskUpdated, t)
	}
}

func (s *Service) visibleProject(ctx context.Context, projectID, userID string) (project.Project, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return project.Project{}, err
	}
	if p.OwnerID == userID {
		return p, nil
	}
	ok, err := s.members.IsMember(ctx, p.GroupID, userID)
	if err != nil {
		return project.Project{}, err
	}
	if !ok {
		return project.Project{}, apperrors.Forbidden("not a participant of this project")
	}
	return p, nil
}
