package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

const proposalColumns = `id, conversation_id, message_id, leader_id, group_id, owner_id, campaign_id,
	budget, description, delivery_days, status, project_id, reason, decided_at, created_at`

// --- ProposalStore ----------------------------------------------------------

func (s *Store) CreateProposal(ctx context.Context, p proposal.Proposal, msg chat.Message) (proposal.Proposal, chat.Message, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	var created chat.Message
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockOpenCampaign(ctx, tx, p.CampaignID); err != nil {
			return err
		}
		msg.ConversationID = p.ConversationID
		msg.ProposalID = p.ID
		msg.Kind = chat.KindProposal
		var err error
		if created, err = insertMessage(ctx, tx, msg); err != nil {
			return err
		}
		p.MessageID = created.ID
		p.Status = proposal.StatusPending
		p.CreatedAt = created.CreatedAt
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO proposals (`+proposalColumns+`)
			VALUES (:id, :conversation_id, :message_id, :leader_id, :group_id, :owner_id, :campaign_id,
				:budget, :description, :delivery_days, :status, :project_id, :reason, :decided_at, :created_at)
		`, p)
		return mapError(err, "proposal", p.ID)
	})
	if err != nil {
		return proposal.Proposal{}, chat.Message{}, err
	}
	return p, created, nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	var p proposal.Proposal
	err := s.db.GetContext(ctx, &p, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	return p, mapError(err, "proposal", id)
}

func (s *Store) ListProposals(ctx context.Context, conversationID string) ([]proposal.Proposal, error) {
	var result []proposal.Proposal
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+proposalColumns+` FROM proposals WHERE conversation_id = $1 ORDER BY created_at
	`, conversationID)
	return result, err
}

func (s *Store) UpdateProposal(ctx context.Context, id string, fn func(*proposal.Proposal) error) (proposal.Proposal, error) {
	var p proposal.Proposal
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &p, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR UPDATE`, id); err != nil {
			return mapError(err, "proposal", id)
		}
		if err := fn(&p); err != nil {
			return err
		}
		p.ID = id
		return updateProposal(ctx, tx, p)
	})
	if err != nil {
		return proposal.Proposal{}, err
	}
	return p, nil
}

func updateProposal(ctx context.Context, tx *sqlx.Tx, p proposal.Proposal) error {
	_, err := tx.NamedExecContext(ctx, `
		UPDATE proposals
		SET status = :status, project_id = :project_id, reason = :reason, decided_at = :decided_at
		WHERE id = :id
	`, p)
	return mapError(err, "proposal", p.ID)
}

func (s *Store) AcceptProposal(ctx context.Context, params storage.AcceptProposalParams) (storage.AcceptProposalResult, error) {
	var out storage.AcceptProposalResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var p proposal.Proposal
		if err := tx.GetContext(ctx, &p, `
			SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR UPDATE
		`, params.ProposalID); err != nil {
			return mapError(err, "proposal", params.ProposalID)
		}
		if p.OwnerID != params.OwnerID {
			return apperrors.Forbidden("only the product owner can accept this proposal")
		}
		if p.Status != proposal.StatusPending {
			return apperrors.Conflict("proposal is "+string(p.Status)).WithDetails("status", p.Status)
		}
		shares, err := params.Policy.Split(p.Budget)
		if err != nil {
			return apperrors.InvalidInput("%v", err)
		}
		owner, err := lockWallet(ctx, tx, p.OwnerID)
		if err != nil {
			return err
		}
		if err := lockOpenCampaign(ctx, tx, p.CampaignID); err != nil {
			return err
		}
		if owner.Available < p.Budget {
			return apperrors.InsufficientFunds(owner.Available, p.Budget)
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
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO projects (`+projectColumns+`)
			VALUES (:id, :proposal_id, :conversation_id, :campaign_id, :owner_id, :group_id, :leader_id, :budget,
				:leader_share, :platform_share, :member_share, :status, :created_at, :updated_at, :completed_at)
		`, proj); err != nil {
			return mapError(err, "project", proj.ID)
		}

		owner.Available -= p.Budget
		owner.Escrowed += p.Budget
		if _, err := applyLedger(ctx, tx, &owner, storage.LedgerEntry{
			UserID:      p.OwnerID,
			Type:        wallet.TxEscrowHold,
			Amount:      p.Budget,
			ReferenceID: proj.ID,
			Note:        "escrow for proposal " + p.ID,
		}); err != nil {
			return err
		}

		p.Status = proposal.StatusAccepted
		p.ProjectID = proj.ID
		p.DecidedAt = &ts
		if err := updateProposal(ctx, tx, p); err != nil {
			return err
		}

		var rejected []proposal.Proposal
		if err := tx.SelectContext(ctx, &rejected, `
			UPDATE proposals
			SET status = 'rejected', reason = 'another proposal was accepted', decided_at = $3
			WHERE conversation_id = $1 AND id <> $2 AND status = 'pending'
			RETURNING `+proposalColumns, p.ConversationID, p.ID, ts); err != nil {
			return err
		}
		if err := moveCampaign(ctx, tx, p.CampaignID, campaign.StatusOpen, campaign.StatusInProgress); err != nil {
			return err
		}

		out = storage.AcceptProposalResult{Proposal: p, Project: proj, OwnerWallet: owner, AutoRejected: rejected}
		return nil
	})
	if err != nil {
		return storage.AcceptProposalResult{}, err
	}
	return out, nil
}

func (s *Store) ExpirePendingProposals(ctx context.Context, createdBefore time.Time) ([]proposal.Proposal, error) {
	var expired []proposal.Proposal
	err := s.db.SelectContext(ctx, &expired, `
		UPDATE proposals
		SET status = 'expired', decided_at = $2
		WHERE status = 'pending' AND created_at < $1
		RETURNING `+proposalColumns, createdBefore, now())
	return expired, err
}
