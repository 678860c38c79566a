// Package projects exposes escrowed projects and settles them.
package projects

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/metrics"
	"github.com/Yassin6up/somoo-sub000/internal/app/realtime"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// Service manages project reads and escrow settlement.
type Service struct {
	groups   storage.GroupStore
	projects storage.ProjectStore
	events   realtime.Publisher
	log      *logger.Logger
}

// New constructs a project service.
func New(groups storage.GroupStore, projects storage.ProjectStore, events realtime.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("projects")
	}
	if events == nil {
		events = realtime.Nop{}
	}
	return &Service{groups: groups, projects: projects, events: events, log: log}
}

// Get returns the project when userID is its owner or a member of its group.
func (s *Service) Get(ctx context.Context, id, userID string) (project.Project, error) {
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	if err := s.authorizeView(ctx, p, userID); err != nil {
		return project.Project{}, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, filter project.Filter) ([]project.Project, error) {
	return s.projects.ListProjects(ctx, filter)
}

// ListForUser returns projects the user owns or works on through a group.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]project.Project, error) {
	owned, err := s.projects.ListProjects(ctx, project.Filter{OwnerID: userID})
	if err != nil {
		return nil, err
	}
	groups, err := s.groups.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(owned))
	result := append([]project.Project(nil), owned...)
	for _, p := range owned {
		seen[p.ID] = struct{}{}
	}
	for _, g := range groups {
		list, err := s.projects.ListProjects(ctx, project.Filter{GroupID: g.ID})
		if err != nil {
			return nil, err
		}
		for _, p := range list {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			result = append(result, p)
		}
	}
	return result, nil
}

// Payouts lists the releases recorded when the project completed.
func (s *Service) Payouts(ctx context.Context, id, userID string) ([]project.Payout, error) {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.projects.ListPayouts(ctx, id)
}

// Complete releases the escrow: the leader, the platform and every task
// completer are paid in the same transaction that closes the project.
func (s *Service) Complete(ctx context.Context, id, ownerID string) (storage.CompleteProjectResult, error) {
	res, err := s.projects.CompleteProject(ctx, id, ownerID)
	if err != nil {
		return storage.CompleteProjectResult{}, fmt.Errorf("complete project: %w", err)
	}

	metrics.RecordEscrow("release", res.Project.Budget)
	for _, payout := range res.Payouts {
		metrics.RecordPayout(string(payout.Kind), payout.Amount)
		s.events.Publish(realtime.UserTopic(payout.UserID), realtime.EventWalletUpdated, payout)
	}
	s.events.Publish(realtime.ConversationTopic(res.Project.ConversationID), realtime.EventProjectCompleted, res)
	s.events.Publish(realtime.UserTopic(ownerID), realtime.EventWalletUpdated, res.OwnerWallet)

	s.log.WithField("project_id", id).Infof("project completed, %d released in %d payouts", res.Project.Budget, len(res.Payouts))
	return res, nil
}

// Cancel refunds the escrow to the owner while no task has been approved.
func (s *Service) Cancel(ctx context.Context, id, ownerID string) (storage.CancelProjectResult, error) {
	res, err := s.projects.CancelProject(ctx, id, ownerID)
	if err != nil {
		return storage.CancelProjectResult{}, fmt.Errorf("cancel project: %w", err)
	}

	metrics.RecordEscrow("refund", res.Project.Budget)
	topic := realtime.ConversationTopic(res.Project.ConversationID)
	s.events.Publish(topic, realtime.EventProjectCancelled, res.Project)
	for _, t := range res.RejectedTasks {
		s.events.Publish(topic, realtime.EventTaskUpdated, t)
	}
	s.events.Publish(realtime.UserTopic(ownerID), realtime.EventWalletUpdated, res.OwnerWallet)

	s.log.WithField("project_id", id).Infof("project cancelled, %d refunded", res.Project.Budget)
	return res, nil
}

func (s *Service) authorizeView(ctx context.Context, p project.Project, userID string) error {
	if p.OwnerID == userID {
		return nil
	}
	_, err := s.groups.GetMember(ctx, p.GroupID, userID)
	if stderrors.Is(err, apperrors.ErrNotFound) {
		return apperrors.Forbidden("not a participant of this project")
	}
	return err
}
