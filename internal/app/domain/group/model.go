package group

import "time"

// MemberRole distinguishes the leader from ordinary members.
type MemberRole string

const (
	MemberRoleLeader MemberRole = "leader"
	MemberRoleMember MemberRole = "member"
)

// Group is a team of freelancers represented by its leader.
type Group struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	LeaderID    string    `json:"leader_id" db:"leader_id"`
	MaxMembers  int       `json:"max_members" db:"max_members"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Member is a user's membership in a group.
type Member struct {
	GroupID  string     `json:"group_id" db:"group_id"`
	UserID   string     `json:"user_id" db:"user_id"`
	Role     MemberRole `json:"role" db:"role"`
	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
}
