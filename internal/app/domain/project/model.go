package project

import "time"

type Status string

const (
	StatusFunded     Status = "funded"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Open reports whether the project still holds escrowed funds.
func (s Status) Open() bool {
	return s == StatusFunded || s == StatusInProgress
}

// Project is the escrowed engagement created when a proposal is accepted.
type Project struct {
	ID             string     `json:"id" db:"id"`
	ProposalID     string     `json:"proposal_id" db:"proposal_id"`
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	CampaignID     string     `json:"campaign_id,omitempty" db:"campaign_id"`
	OwnerID        string     `json:"owner_id" db:"owner_id"`
	GroupID        string     `json:"group_id" db:"group_id"`
	LeaderID       string     `json:"leader_id" db:"leader_id"`
	Budget         int64      `json:"budget" db:"budget"`
	LeaderShare    int64      `json:"leader_share" db:"leader_share"`
	PlatformShare  int64      `json:"platform_share" db:"platform_share"`
	MemberShare    int64      `json:"member_share" db:"member_share"`
	Status         Status     `json:"status" db:"status"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Shares returns the split recorded on the project.
func (p Project) Shares() Shares {
	return Shares{Leader: p.LeaderShare, Platform: p.PlatformShare, Members: p.MemberShare}
}

// Filter narrows project listings. Empty fields match everything.
type Filter struct {
	OwnerID string
	GroupID string
	Status  Status
}

func (f Filter) Match(p Project) bool {
	if f.OwnerID != "" && p.OwnerID != f.OwnerID {
		return false
	}
	if f.GroupID != "" && p.GroupID != f.GroupID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}

// PayoutKind identifies which share a payout came from.
type PayoutKind string

const (
	PayoutLeader   PayoutKind = "leader"
	PayoutPlatform PayoutKind = "platform"
	PayoutMember   PayoutKind = "member"
)

// Payout records funds released to a wallet when a project completes.
type Payout struct {
	ID        string     `json:"id" db:"id"`
	ProjectID string     `json:"project_id" db:"project_id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Kind      PayoutKind `json:"kind" db:"kind"`
	Amount    int64      `json:"amount" db:"amount"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
