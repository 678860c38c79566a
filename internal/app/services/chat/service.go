// Package chat runs conversations between product owners and groups.
package chat

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/realtime"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// DefaultMaxMessageLength applies when no limit is configured.
const DefaultMaxMessageLength = 4000

// Stores groups the persistence the chat service depends on.
type Stores struct {
	Users     storage.UserStore
	Groups    storage.GroupStore
	Campaigns storage.CampaignStore
	Chat      storage.ChatStore
}

// Service manages conversations and their messages.
type Service struct {
	stores    Stores
	events    realtime.Publisher
	maxLength int
	log       *logger.Logger
}

// New constructs a chat service.
func New(stores Stores, events realtime.Publisher, maxLength int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("chat")
	}
	if events == nil {
		events = realtime.Nop{}
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &Service{stores: stores, events: events, maxLength: maxLength, log: log}
}

// StartConversation opens (or returns) the conversation between a product
// owner and a group, optionally scoped to one of the owner's campaigns.
func (s *Service) StartConversation(ctx context.Context, ownerID, groupID, campaignID string) (chat.Conversation, error) {
	owner, err := s.stores.Users.GetUser(ctx, ownerID)
	if err != nil {
		return chat.Conversation{}, err
	}
	if owner.Role != user.RoleProductOwner {
		return chat.Conversation{}, apperrors.Forbidden("only product owners can start conversations")
	}
	if _, err := s.stores.Groups.GetGroup(ctx, groupID); err != nil {
		return chat.Conversation{}, err
	}
	if campaignID != "" {
		c, err := s.stores.Campaigns.GetCampaign(ctx, campaignID)
		if err != nil {
			return chat.Conversation{}, err
		}
		if c.OwnerID != ownerID {
			return chat.Conversation{}, apperrors.Forbidden("campaign belongs to another owner")
		}
		if c.Status != campaign.StatusOpen {
			return chat.Conversation{}, apperrors.Conflict("campaign is "+string(c.Status)).WithDetails("campaign_id", c.ID)
		}
	}

	conv, created, err := s.stores.Chat.EnsureConversation(ctx, chat.Conversation{
		OwnerID:    ownerID,
		GroupID:    groupID,
		CampaignID: campaignID,
	})
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("start conversation: %w", err)
	}
	if created {
		s.log.WithField("conversation_id", conv.ID).Infof("conversation opened between %s and group %s", ownerID, groupID)
	}
	return conv, nil
}

// SendMessage posts a text message from a participant.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, body string) (chat.Message, error) {
	body = strings.TrimSpace(body)
	if err := s.ValidateBody(body); err != nil {
		return chat.Message{}, err
	}
	if _, err := s.Participant(ctx, conversationID, senderID); err != nil {
		return chat.Message{}, err
	}
	msg, err := s.stores.Chat.CreateMessage(ctx, chat.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Kind:           chat.KindText,
		Body:           body,
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("send message: %w", err)
	}
	s.Announce(msg)
	return msg, nil
}

// ValidateBody checks a message body against the configured length limit.
// Every message a participant writes goes through it, proposals included.
func (s *Service) ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return apperrors.InvalidInput("message body is required")
	}
	if utf8.RuneCountInString(body) > s.maxLength {
		return apperrors.InvalidInput("message exceeds %d characters", s.maxLength)
	}
	return nil
}

// PostSystem records a system notice in the conversation and publishes it.
func (s *Service) PostSystem(ctx context.Context, conversationID, body, proposalID string) (chat.Message, error) {
	msg, err := s.stores.Chat.CreateMessage(ctx, chat.Message{
		ConversationID: conversationID,
		Kind:           chat.KindSystem,
		Body:           body,
		ProposalID:     proposalID,
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("post system message: %w", err)
	}
	s.Announce(msg)
	return msg, nil
}

// Announce publishes a stored message to the conversation topic.
func (s *Service) Announce(msg chat.Message) {
	s.events.Publish(realtime.ConversationTopic(msg.ConversationID), realtime.EventMessageCreated, msg)
}

func (s *Service) ListMessages(ctx context.Context, conversationID, userID string) ([]chat.Message, error) {
	if _, err := s.Participant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.stores.Chat.ListMessages(ctx, conversationID)
}

func (s *Service) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	return s.stores.Chat.ListConversationsForUser(ctx, userID)
}

// Participant returns the conversation when userID is its owner or a member
// of its group.
func (s *Service) Participant(ctx context.Context, conversationID, userID string) (chat.Conversation, error) {
	conv, err := s.stores.Chat.GetConversation(ctx, conversationID)
	if err != nil {
		return chat.Conversation{}, err
	}
	if conv.OwnerID == userID {
		return conv, nil
	}
	_, err = s.stores.Groups.GetMember(ctx, conv.GroupID, userID)
	switch {
	case err == nil:
		return conv, nil
	case stderrors.Is(err, apperrors.ErrNotFound):
		return chat.Conversation{}, apperrors.Forbidden("not a participant of this conversation")
	default:
		return chat.Conversation{}, err
	}
}

// CanAccess authorizes realtime subscriptions to a conversation topic.
func (s *Service) CanAccess(ctx context.Context, userID, conversationID string) error {
	_, err := s.Participant(ctx, conversationID, userID)
	return err
}
