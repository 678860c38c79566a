// Package proposals handles priced offers from group leaders and their
// acceptance into funded projects.
package proposals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/app/metrics"
	"github.com/Yassin6up/somoo-sub000/internal/app/realtime"
	chatsvc "github.com/Yassin6up/somoo-sub000/internal/app/services/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// Service manages proposals.
type Service struct {
	groups    storage.GroupStore
	proposals storage.ProposalStore
	chat      *chatsvc.Service
	policy    project.Policy
	ttl       time.Duration
	events    realtime.Publisher
	log       *logger.Logger
	now       func() time.Time
}

// Option customises the service.
type Option func(*Service)

// WithTTL sets how long a proposal may stay pending.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a proposal service. Conversation access and system notices
// go through the chat service.
func New(groups storage.GroupStore, proposals storage.ProposalStore, chat *chatsvc.Service, policy project.Policy, events realtime.Publisher, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("proposals")
	}
	if events == nil {
		events = realtime.Nop{}
	}
	s := &Service{
		groups:    groups,
		proposals: proposals,
		chat:      chat,
		policy:    policy,
		ttl:       7 * 24 * time.Hour,
		events:    events,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit posts an offer into a conversation on behalf of the group leader.
func (s *Service) Submit(ctx context.Context, conversationID, leaderID string, offer proposal.Offer) (proposal.Proposal, error) {
	offer.Description = strings.TrimSpace(offer.Description)
	if err := offer.Validate(); err != nil {
		return proposal.Proposal{}, apperrors.InvalidInput("%v", err)
	}
	body := offer.Body()
	if err := s.chat.ValidateBody(body); err != nil {
		return proposal.Proposal{}, err
	}
	conv, err := s.chat.Participant(ctx, conversationID, leaderID)
	if err != nil {
		return proposal.Proposal{}, err
	}
	g, err := s.groups.GetGroup(ctx, conv.GroupID)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if g.LeaderID != leaderID {
		return proposal.Proposal{}, apperrors.Forbidden("only the group leader can submit proposals")
	}

	p, msg, err := s.proposals.CreateProposal(ctx, proposal.Proposal{
		ConversationID: conv.ID,
		LeaderID:       leaderID,
		GroupID:        g.ID,
		OwnerID:        conv.OwnerID,
		CampaignID:     conv.CampaignID,
		Budget:         offer.Budget,
		Description:    offer.Description,
		DeliveryDays:   offer.DeliveryDays,
	}, chat.Message{SenderID: leaderID, Body: body})
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("submit proposal: %w", err)
	}

	s.chat.Announce(msg)
	s.events.Publish(realtime.ConversationTopic(conv.ID), realtime.EventProposalSubmitted, p)
	s.events.Publish(realtime.UserTopic(conv.OwnerID), realtime.EventProposalSubmitted, p)
	s.log.WithField("proposal_id", p.ID).Infof("proposal of %d submitted in conversation %s", p.Budget, conv.ID)
	return p, nil
}

// SubmitMessage parses a structured chat body and submits it as a proposal.
func (s *Service) SubmitMessage(ctx context.Context, conversationID, leaderID, body string) (proposal.Proposal, error) {
	offer, err := proposal.ParseProposalMessage(body)
	if err != nil {
		return proposal.Proposal{}, apperrors.InvalidInput("%v", err)
	}
	return s.Submit(ctx, conversationID, leaderID, offer)
}

// Accept moves the budget from the owner's available balance into escrow
// and creates the funded project. The store performs every check and write
// in one atomic step, so a repeated accept fails with a conflict.
func (s *Service) Accept(ctx context.Context, proposalID, ownerID string) (storage.AcceptProposalResult, error) {
	res, err := s.proposals.AcceptProposal(ctx, storage.AcceptProposalParams{
		ProposalID: proposalID,
		OwnerID:    ownerID,
		Policy:     s.policy,
	})
	if err != nil {
		return storage.AcceptProposalResult{}, fmt.Errorf("accept proposal: %w", err)
	}

	p := res.Proposal
	metrics.RecordProposalDecision(string(proposal.StatusAccepted))
	metrics.RecordEscrow("hold", p.Budget)

	shares := res.Project.Shares()
	notice := fmt.Sprintf("Proposal accepted. Project %s is funded with %d (leader %d, platform %d, members %d).",
		res.Project.ID, shares.Total(), shares.Leader, shares.Platform, shares.Members)
	if _, err := s.chat.PostSystem(ctx, p.ConversationID, notice, p.ID); err != nil {
		s.log.WithError(err).WithField("proposal_id", p.ID).Warn("failed to post acceptance notice")
	}

	topic := realtime.ConversationTopic(p.ConversationID)
	s.events.Publish(topic, realtime.EventProposalAccepted, res)
	s.events.Publish(realtime.UserTopic(p.LeaderID), realtime.EventProposalAccepted, res)
	s.events.Publish(realtime.UserTopic(ownerID), realtime.EventWalletUpdated, res.OwnerWallet)
	for _, other := range res.AutoRejected {
		metrics.RecordProposalDecision(string(proposal.StatusRejected))
		s.events.Publish(topic, realtime.EventProposalRejected, other)
	}

	s.log.WithField("proposal_id", p.ID).
		WithField("project_id", res.Project.ID).
		Infof("proposal accepted, %d held in escrow", p.Budget)
	return res, nil
}

// Reject declines a pending proposal.
func (s *Service) Reject(ctx context.Context, proposalID, ownerID, reason string) (proposal.Proposal, error) {
	p, err := s.decide(ctx, proposalID, proposal.StatusRejected, strings.TrimSpace(reason), func(p proposal.Proposal) error {
		if p.OwnerID != ownerID {
			return apperrors.Forbidden("only the product owner can reject this proposal")
		}
		return nil
	})
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("reject proposal: %w", err)
	}
	s.events.Publish(realtime.ConversationTopic(p.ConversationID), realtime.EventProposalRejected, p)
	s.events.Publish(realtime.UserTopic(p.LeaderID), realtime.EventProposalRejected, p)
	return p, nil
}

// Withdraw lets the leader retract a pending proposal.
func (s *Service) Withdraw(ctx context.Context, proposalID, leaderID string) (proposal.Proposal, error) {
	p, err := s.decide(ctx, proposalID, proposal.StatusWithdrawn, "", func(p proposal.Proposal) error {
		if p.LeaderID != leaderID {
			return apperrors.Forbidden("only the submitting leader can withdraw this proposal")
		}
		return nil
	})
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("withdraw proposal: %w", err)
	}
	s.events.Publish(realtime.ConversationTopic(p.ConversationID), realtime.EventProposalWithdrawn, p)
	return p, nil
}

func (s *Service) decide(ctx context.Context, id string, status proposal.Status, reason string, authorize func(proposal.Proposal) error) (proposal.Proposal, error) {
	p, err := s.proposals.UpdateProposal(ctx, id, func(p *proposal.Proposal) error {
		if err := authorize(*p); err != nil {
			return err
		}
		if p.Status != proposal.StatusPending {
			return apperrors.Conflict("proposal is " + string(p.Status))
		}
		ts := s.now()
		p.Status = status
		p.Reason = reason
		p.DecidedAt = &ts
		return nil
	})
	if err != nil {
		return proposal.Proposal{}, err
	}
	metrics.RecordProposalDecision(string(status))
	s.log.WithField("proposal_id", id).Infof("proposal %s", status)
	return p, nil
}

// Get returns a proposal visible to userID.
func (s *Service) Get(ctx context.Context, id, userID string) (proposal.Proposal, error) {
	p, err := s.proposals.GetProposal(ctx, id)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if _, err := s.chat.Participant(ctx, p.ConversationID, userID); err != nil {
		return proposal.Proposal{}, err
	}
	return p, nil
}

func (s *Service) ListForConversation(ctx context.Context, conversationID, userID string) ([]proposal.Proposal, error) {
	if _, err := s.chat.Participant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.proposals.ListProposals(ctx, conversationID)
}

// ExpireStale marks pending proposals older than the TTL as expired and
// returns how many were affected.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	expired, err := s.proposals.ExpirePendingProposals(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("expire proposals: %w", err)
	}
	for _, p := range expired {
		metrics.RecordProposalDecision(string(proposal.StatusExpired))
		s.events.Publish(realtime.ConversationTopic(p.ConversationID), realtime.EventProposalExpired, p)
	}
	if len(expired) > 0 {
		s.log.Infof("expired %d pending proposals", len(expired))
	}
	return len(expired), nil
}
