package memory

import (
	"context"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

// ChatStore implementation ----------------------------------------------------

func (s *Store) EnsureConversation(_ context.Context, c chat.Conversation) (chat.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.conversations {
		if existing.OwnerID == c.OwnerID && existing.GroupID == c.GroupID && existing.CampaignID == c.CampaignID {
			return existing, false, nil
		}
	}
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = now()
	s.conversations[c.ID] = c
	return c, true, nil
}

func (s *Store) GetConversation(_ context.Context, id string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, apperrors.NotFound("conversation", id)
	}
	return c, nil
}

func (s *Store) ListConversationsForUser(_ context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]chat.Conversation, 0)
	for _, c := range s.conversations {
		if c.OwnerID == userID {
			result = append(result, c)
			continue
		}
		if _, member := s.members[c.GroupID][userID]; member {
			result = append(result, c)
		}
	}
	sortByCreated(result, func(c chat.Conversation) time.Time { return c.CreatedAt })
	return result, nil
}

func (s *Store) CreateMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createMessageLocked(m)
}

func (s *Store) createMessageLocked(m chat.Message) (chat.Message, error) {
	if _, ok := s.conversations[m.ConversationID]; !ok {
		return chat.Message{}, apperrors.NotFound("conversation", m.ConversationID)
	}
	if m.ID == "" {
		m.ID = newID()
	}
	if m.Kind == "" {
		m.Kind = chat.KindText
	}
	m.CreatedAt = now()
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], m)
	return m, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, apperrors.NotFound("conversation", conversationID)
	}
	return append([]chat.Message(nil), s.messages[conversationID]...), nil
}
