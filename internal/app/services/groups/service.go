package groups

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/group"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// Service manages freelancer groups and their membership.
type Service struct {
	users             storage.UserStore
	store             storage.GroupStore
	defaultMaxMembers int
	log               *logger.Logger
}

// New constructs a group service.
func New(users storage.UserStore, store storage.GroupStore, defaultMaxMembers int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("groups")
	}
	if defaultMaxMembers <= 0 {
		defaultMaxMembers = 10
	}
	return &Service{users: users, store: store, defaultMaxMembers: defaultMaxMembers, log: log}
}

// Create registers a group led by leaderID.
func (s *Service) Create(ctx context.Context, leaderID, name, description string, maxMembers int) (group.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return group.Group{}, apperrors.InvalidInput("name is required")
	}
	if maxMembers == 0 {
		maxMembers = s.defaultMaxMembers
	}
	if maxMembers < 1 {
		return group.Group{}, apperrors.InvalidInput("max_members must be positive")
	}
	if err := s.requireFreelancer(ctx, leaderID); err != nil {
		return group.Group{}, err
	}
	created, err := s.store.CreateGroup(ctx, group.Group{
		Name:        name,
		Description: strings.TrimSpace(description),
		LeaderID:    leaderID,
		MaxMembers:  maxMembers,
	})
	if err != nil {
		return group.Group{}, fmt.Errorf("create group: %w", err)
	}
	s.log.WithField("group_id", created.ID).Infof("group %q created", created.Name)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (group.Group, error) {
	return s.store.GetGroup(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]group.Group, error) {
	return s.store.ListGroups(ctx)
}

func (s *Service) ListMembers(ctx context.Context, groupID string) ([]group.Member, error) {
	return s.store.ListMembers(ctx, groupID)
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]group.Group, error) {
	return s.store.ListGroupsForUser(ctx, userID)
}

// IsMember reports whether userID belongs to the group.
func (s *Service) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	_, err := s.store.GetMember(ctx, groupID, userID)
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Join adds a freelancer to the group.
func (s *Service) Join(ctx context.Context, groupID, userID string) (group.Member, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return group.Member{}, err
	}
	if err := s.requireFreelancer(ctx, userID); err != nil {
		return group.Member{}, err
	}
	m, err := s.store.AddMember(ctx, group.Member{GroupID: groupID, UserID: userID, Role: group.MemberRoleMember})
	if err != nil {
		return group.Member{}, fmt.Errorf("join group: %w", err)
	}
	s.log.WithField("group_id", groupID).WithField("user_id", userID).Info("member joined")
	return m, nil
}

// Leave removes the caller from the group. The leader cannot leave.
func (s *Service) Leave(ctx context.Context, groupID, userID string) error {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.LeaderID == userID {
		return apperrors.Conflict("the group leader cannot leave the group")
	}
	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("leave group: %w", err)
	}
	return nil
}

// RemoveMember lets the leader remove another member.
func (s *Service) RemoveMember(ctx context.Context, groupID, leaderID, userID string) error {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.LeaderID != leaderID {
		return apperrors.Forbidden("only the group leader can remove members")
	}
	if userID == leaderID {
		return apperrors.Conflict("the group leader cannot be removed")
	}
	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.log.WithField("group_id", groupID).WithField("user_id", userID).Info("member removed")
	return nil
}

func (s *Service) requireFreelancer(ctx context.Context, userID string) error {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.Role != user.RoleFreelancer {
		return apperrors.Forbidden("only freelancers can belong to groups")
	}
	return nil
}
