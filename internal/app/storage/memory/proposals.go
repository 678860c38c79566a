package memory

import (
	"context"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

// ProposalStore implementation ------------------------------------------------

func (s *Store) CreateProposal(_ context.Context, p proposal.Proposal, msg chat.Message) (proposal.Proposal, chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[p.ConversationID]; !ok {
		return proposal.Proposal{}, chat.Message{}, apperrors.NotFound("conversation", p.ConversationID)
	}
	if err := s.openCampaignLocked(p.CampaignID); err != nil {
		return proposal.Proposal{}, chat.Message{}, err
	}
	if p.ID == "" {
		p.ID = newID()
	}
	msg.ConversationID = p.ConversationID
	msg.ProposalID = p.ID
	msg.Kind = chat.KindProposal
	created, err := s.createMessageLocked(msg)
	if err != nil {
		return proposal.Proposal{}, chat.Message{}, err
	}
	p.MessageID = created.ID
	p.Status = proposal.StatusPending
	p.CreatedAt = created.CreatedAt
	s.proposals[p.ID] = p
	return cloneProposal(p), created, nil
}

func (s *Store) GetProposal(_ context.Context, id string) (proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return proposal.Proposal{}, apperrors.NotFound("proposal", id)
	}
	return cloneProposal(p), nil
}

func (s *Store) ListProposals(_ context.Context, conversationID string) ([]proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]proposal.Proposal, 0)
	for _, p := range s.proposals {
		if p.ConversationID == conversationID {
			result = append(result, cloneProposal(p))
		}
	}
	sortByCreated(result, func(p proposal.Proposal) time.Time { return p.CreatedAt })
	return result, nil
}

func (s *Store) UpdateProposal(_ context.Context, id string, fn func(*proposal.Proposal) error) (proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return proposal.Proposal{}, apperrors.NotFound("proposal", id)
	}
	p = cloneProposal(p)
	if err := fn(&p); err != nil {
		return proposal.Proposal{}, err
	}
	p.ID = id
	s.proposals[id] = p
	return cloneProposal(p), nil
}

func (s *Store) AcceptProposal(_ context.Context, params storage.AcceptProposalParams) (storage.AcceptProposalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[params.ProposalID]
	if !ok {
		return storage.AcceptProposalResult{}, apperrors.NotFound("proposal", params.ProposalID)
	}
	if p.OwnerID != params.OwnerID {
		return storage.AcceptProposalResult{}, apperrors.Forbidden("only the product owner can accept this proposal")
	}
	if p.Status != proposal.StatusPending {
		return storage.AcceptProposalResult{}, apperrors.Conflict("proposal is "+string(p.Status)).
			WithDetails("status", p.Status)
	}
	if err := s.openCampaignLocked(p.CampaignID); err != nil {
		return storage.AcceptProposalResult{}, err
	}
	shares, err := params.Policy.Split(p.Budget)
	if err != nil {
		return storage.AcceptProposalResult{}, apperrors.InvalidInput("%v", err)
	}
	w, ok := s.wallets[p.OwnerID]
	if !ok {
		return storage.AcceptProposalResult{}, apperrors.NotFound("wallet", p.OwnerID)
	}
	if w.Available < p.Budget {
		return storage.AcceptProposalResult{}, apperrors.InsufficientFunds(w.Available, p.Budget)
	}

	ts := now()
	proj := project.Project{
		ID:             newID(),
		ProposalID:     p.ID,
		ConversationID: p.ConversationID,
		CampaignID:     p.CampaignID,
		OwnerID:        p.OwnerID,
		GroupID:        p.GroupID,
		LeaderID:       p.LeaderID,
		Budget:         p.Budget,
		LeaderShare:    shares.Leader,
		PlatformShare:  shares.Platform,
		MemberShare:    shares.Members,
		Status:         project.StatusFunded,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}

	w.Available -= p.Budget
	w.Escrowed += p.Budget
	s.recordLocked(w, storage.LedgerEntry{
		UserID:      p.OwnerID,
		Type:        wallet.TxEscrowHold,
		Amount:      p.Budget,
		ReferenceID: proj.ID,
		Note:        "escrow for proposal " + p.ID,
	})
	s.projects[proj.ID] = proj

	p.Status = proposal.StatusAccepted
	p.ProjectID = proj.ID
	p.DecidedAt = &ts
	s.proposals[p.ID] = p

	var rejected []proposal.Proposal
	for id, other := range s.proposals {
		if id == p.ID || other.ConversationID != p.ConversationID || other.Status != proposal.StatusPending {
			continue
		}
		other.Status = proposal.StatusRejected
		other.Reason = "another proposal was accepted"
		other.DecidedAt = cloneTime(&ts)
		s.proposals[id] = other
		rejected = append(rejected, cloneProposal(other))
	}
	s.moveCampaignLocked(p.CampaignID, campaign.StatusOpen, campaign.StatusInProgress)

	return storage.AcceptProposalResult{
		Proposal:     cloneProposal(p),
		Project:      cloneProject(proj),
		OwnerWallet:  s.wallets[p.OwnerID],
		AutoRejected: rejected,
	}, nil
}

func (s *Store) ExpirePendingProposals(_ context.Context, createdBefore time.Time) ([]proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now()
	var expired []proposal.Proposal
	for id, p := range s.proposals {
		if p.Status != proposal.StatusPending || !p.CreatedAt.Before(createdBefore) {
			continue
		}
		p.Status = proposal.StatusExpired
		p.DecidedAt = cloneTime(&ts)
		s.proposals[id] = p
		expired = append(expired, cloneProposal(p))
	}
	return expired, nil
}
