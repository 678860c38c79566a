package memory

import (
	"context"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/group"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

// GroupStore implementation ---------------------------------------------------

func (s *Store) CreateGroup(_ context.Context, g group.Group) (group.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = newID()
	} else if _, exists := s.groups[g.ID]; exists {
		return group.Group{}, apperrors.AlreadyExists("group " + g.ID + " already exists")
	}
	g.CreatedAt = now()
	s.groups[g.ID] = g
	s.members[g.ID] = map[string]group.Member{
		g.LeaderID: {GroupID: g.ID, UserID: g.LeaderID, Role: group.MemberRoleLeader, JoinedAt: g.CreatedAt},
	}
	return g, nil
}

func (s *Store) GetGroup(_ context.Context, id string) (group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return group.Group{}, apperrors.NotFound("group", id)
	}
	return g, nil
}

func (s *Store) ListGroups(_ context.Context) ([]group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]group.Group, 0, len(s.groups))
	for _, g := range s.groups {
		result = append(result, g)
	}
	sortByCreated(result, func(g group.Group) time.Time { return g.CreatedAt })
	return result, nil
}

func (s *Store) ListGroupsForUser(_ context.Context, userID string) ([]group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]group.Group, 0)
	for id, members := range s.members {
		if _, ok := members[userID]; ok {
			result = append(result, s.groups[id])
		}
	}
	sortByCreated(result, func(g group.Group) time.Time { return g.CreatedAt })
	return result, nil
}

func (s *Store) GetMember(_ context.Context, groupID, userID string) (group.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[groupID][userID]
	if !ok {
		return group.Member{}, apperrors.NotFound("member", userID)
	}
	return m, nil
}

func (s *Store) ListMembers(_ context.Context, groupID string) ([]group.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.groups[groupID]; !ok {
		return nil, apperrors.NotFound("group", groupID)
	}
	result := make([]group.Member, 0, len(s.members[groupID]))
	for _, m := range s.members[groupID] {
		result = append(result, m)
	}
	sortByCreated(result, func(m group.Member) time.Time { return m.JoinedAt })
	return result, nil
}

func (s *Store) AddMember(_ context.Context, m group.Member) (group.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[m.GroupID]
	if !ok {
		return group.Member{}, apperrors.NotFound("group", m.GroupID)
	}
	members := s.members[m.GroupID]
	if _, exists := members[m.UserID]; exists {
		return group.Member{}, apperrors.AlreadyExists("user is already a member of the group")
	}
	if g.MaxMembers > 0 && len(members) >= g.MaxMembers {
		return group.Member{}, apperrors.Conflict("group is full").WithDetails("max_members", g.MaxMembers)
	}
	if m.Role == "" {
		m.Role = group.MemberRoleMember
	}
	m.JoinedAt = now()
	members[m.UserID] = m
	return m, nil
}

func (s *Store) RemoveMember(_ context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[groupID][userID]; !ok {
		return apperrors.NotFound("member", userID)
	}
	for _, t := range s.tasks {
		if t.AssigneeID != userID || !t.Status.Active() {
			continue
		}
		if p, ok := s.projects[t.ProjectID]; ok && p.GroupID == groupID {
			return apperrors.Conflict("member has an active task").WithDetails("task_id", t.ID)
		}
	}
	delete(s.members[groupID], userID)
	return nil
}
