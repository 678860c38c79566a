package proposal

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
	StatusExpired   Status = "expired"
)

// Proposal is a priced offer from a group leader to a product owner.
type Proposal struct {
	ID             string     `json:"id" db:"id"`
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	MessageID      string     `json:"message_id" db:"message_id"`
	LeaderID       string     `json:"leader_id" db:"leader_id"`
	GroupID        string     `json:"group_id" db:"group_id"`
	OwnerID        string     `json:"owner_id" db:"owner_id"`
	CampaignID     string     `json:"campaign_id,omitempty" db:"campaign_id"`
	Budget         int64      `json:"budget" db:"budget"`
	Description    string     `json:"description" db:"description"`
	DeliveryDays   int        `json:"delivery_days" db:"delivery_days"`
	Status         Status     `json:"status" db:"status"`
	ProjectID      string     `json:"project_id,omitempty" db:"project_id"`
	Reason         string     `json:"reason,omitempty" db:"reason"`
	DecidedAt      *time.Time `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
