package chat

import "time"

// MessageKind distinguishes free text from structured messages.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindProposal MessageKind = "proposal"
	KindSystem   MessageKind = "system"
)

// Conversation links a product owner with a group.
type Conversation struct {
	ID         string    `json:"id" db:"id"`
	OwnerID    string    `json:"owner_id" db:"owner_id"`
	GroupID    string    `json:"group_id" db:"group_id"`
	CampaignID string    `json:"campaign_id,omitempty" db:"campaign_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Message is a single chat entry.
type Message struct {
	ID             string      `json:"id" db:"id"`
	ConversationID string      `json:"conversation_id" db:"conversation_id"`
	SenderID       string      `json:"sender_id" db:"sender_id"`
	Kind           MessageKind `json:"kind" db:"kind"`
	Body           string      `json:"body" db:"body"`
	ProposalID     string      `json:"proposal_id,omitempty" db:"proposal_id"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}
