package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/group"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

const (
	groupColumns  = `id, name, description, leader_id, max_members, created_at`
	memberColumns = `group_id, user_id, role, joined_at`
)

// --- GroupStore -------------------------------------------------------------

func (s *Store) CreateGroup(ctx context.Context, g group.Group) (group.Group, error) {
	if g.ID == "" {
		g.ID = newID()
	}
	g.CreatedAt = now()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO work_groups (`+groupColumns+`)
			VALUES (:id, :name, :description, :leader_id, :max_members, :created_at)
		`, g); err != nil {
			return mapError(err, "group", g.ID)
		}
		leader := group.Member{GroupID: g.ID, UserID: g.LeaderID, Role: group.MemberRoleLeader, JoinedAt: g.CreatedAt}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO group_members (`+memberColumns+`)
			VALUES (:group_id, :user_id, :role, :joined_at)
		`, leader)
		return mapError(err, "member", g.LeaderID)
	})
	if err != nil {
		return group.Group{}, err
	}
	return g, nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (group.Group, error) {
	var g group.Group
	err := s.db.GetContext(ctx, &g, `SELECT `+groupColumns+` FROM work_groups WHERE id = $1`, id)
	return g, mapError(err, "group", id)
}

func (s *Store) ListGroups(ctx context.Context) ([]group.Group, error) {
	var result []group.Group
	err := s.db.SelectContext(ctx, &result, `SELECT `+groupColumns+` FROM work_groups ORDER BY created_at`)
	return result, err
}

func (s *Store) ListGroupsForUser(ctx context.Context, userID string) ([]group.Group, error) {
	var result []group.Group
	err := s.db.SelectContext(ctx, &result, `
		SELECT g.id, g.name, g.description, g.leader_id, g.max_members, g.created_at
		FROM work_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.created_at
	`, userID)
	return result, err
}

func (s *Store) GetMember(ctx context.Context, groupID, userID string) (group.Member, error) {
	var m group.Member
	err := s.db.GetContext(ctx, &m, `
		SELECT `+memberColumns+` FROM group_members WHERE group_id = $1 AND user_id = $2
	`, groupID, userID)
	return m, mapError(err, "member", userID)
}

func (s *Store) ListMembers(ctx context.Context, groupID string) ([]group.Member, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	var result []group.Member
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+memberColumns+` FROM group_members WHERE group_id = $1 ORDER BY joined_at
	`, groupID)
	return result, err
}

func (s *Store) AddMember(ctx context.Context, m group.Member) (group.Member, error) {
	if m.Role == "" {
		m.Role = group.MemberRoleMember
	}
	m.JoinedAt = now()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var maxMembers int
		if err := tx.GetContext(ctx, &maxMembers, `
			SELECT max_members FROM work_groups WHERE id = $1 FOR UPDATE
		`, m.GroupID); err != nil {
			return mapError(err, "group", m.GroupID)
		}
		var exists bool
		if err := tx.GetContext(ctx, &exists, `
			SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
		`, m.GroupID, m.UserID); err != nil {
			return err
		}
		if exists {
			return apperrors.AlreadyExists("user is already a member of the group")
		}
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM group_members WHERE group_id = $1`, m.GroupID); err != nil {
			return err
		}
		if maxMembers > 0 && count >= maxMembers {
			return apperrors.Conflict("group is full").WithDetails("max_members", maxMembers)
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO group_members (`+memberColumns+`)
			VALUES (:group_id, :user_id, :role, :joined_at)
		`, m)
		return mapError(err, "member", m.UserID)
	})
	if err != nil {
		return group.Member{}, err
	}
	return m, nil
}

func (s *Store) RemoveMember(ctx context.Context, groupID, userID string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var taskIDs []string
		if err := tx.SelectContext(ctx, &taskIDs, `
			SELECT t.id
			FROM tasks t
			JOIN projects p ON p.id = t.project_id
			WHERE p.group_id = $1 AND t.assignee_id = $2
			  AND t.status IN ('assigned', 'in_progress', 'submitted')
			LIMIT 1
		`, groupID, userID); err != nil {
			return err
		}
		if len(taskIDs) > 0 {
			return apperrors.Conflict("member has an active task").WithDetails("task_id", taskIDs[0])
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return apperrors.NotFound("member", userID)
		}
		return nil
	})
}
