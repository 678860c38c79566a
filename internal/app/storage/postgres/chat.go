package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
)

const (
	conversationColumns = `id, owner_id, group_id, campaign_id, created_at`
	messageColumns      = `id, conversation_id, sender_id, kind, body, proposal_id, created_at`
)

// --- ChatStore --------------------------------------------------------------

func (s *Store) EnsureConversation(ctx context.Context, c chat.Conversation) (chat.Conversation, bool, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = now()
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES (:id, :owner_id, :group_id, :campaign_id, :created_at)
		ON CONFLICT (owner_id, group_id, campaign_id) DO NOTHING
	`, c)
	if err != nil {
		return chat.Conversation{}, false, mapError(err, "conversation", c.ID)
	}
	rows, _ := res.RowsAffected()

	var existing chat.Conversation
	err = s.db.GetContext(ctx, &existing, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE owner_id = $1 AND group_id = $2 AND campaign_id = $3
	`, c.OwnerID, c.GroupID, c.CampaignID)
	if err != nil {
		return chat.Conversation{}, false, mapError(err, "conversation", c.ID)
	}
	return existing, rows > 0, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	var c chat.Conversation
	err := s.db.GetContext(ctx, &c, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	return c, mapError(err, "conversation", id)
}

func (s *Store) ListConversationsForUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	var result []chat.Conversation
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE owner_id = $1
		   OR group_id IN (SELECT group_id FROM group_members WHERE user_id = $1)
		ORDER BY created_at
	`, userID)
	return result, err
}

func (s *Store) CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	return insertMessage(ctx, s.db, m)
}

func insertMessage(ctx context.Context, exec sqlx.ExtContext, m chat.Message) (chat.Message, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.Kind == "" {
		m.Kind = chat.KindText
	}
	m.CreatedAt = now()
	_, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (:id, :conversation_id, :sender_id, :kind, :body, :proposal_id, :created_at)
	`, m)
	if err != nil {
		return chat.Message{}, mapError(err, "message", m.ConversationID)
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	var result []chat.Message
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY created_at, id
	`, conversationID)
	return result, err
}
