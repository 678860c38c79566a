package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

const (
	projectColumns = `id, proposal_id, conversation_id, campaign_id, owner_id, group_id, leader_id, budget,
	leader_share, platform_share, member_share, status, created_at, updated_at, completed_at`
	payoutColumns = `id, project_id, user_id, kind, amount, created_at`
)

var payoutTxTypes = map[project.PayoutKind]wallet.TxType{
	project.PayoutLeader:   wallet.TxPayoutLeader,
	project.PayoutPlatform: wallet.TxPayoutPlatform,
	project.PayoutMember:   wallet.TxPayoutMember,
}

// --- ProjectStore -----------------------------------------------------------

func (s *Store) GetProject(ctx context.Context, id string) (project.Project, error) {
	var p project.Project
	err := s.db.GetContext(ctx, &p, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	return p, mapError(err, "project", id)
}

func (s *Store) ListProjects(ctx context.Context, filter project.Filter) ([]project.Project, error) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.OwnerID != "" {
		add("owner_id", filter.OwnerID)
	}
	if filter.GroupID != "" {
		add("group_id", filter.GroupID)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}
	query := `SELECT ` + projectColumns + ` FROM projects`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at`

	var result []project.Project
	err := s.db.SelectContext(ctx, &result, query, args...)
	return result, err
}

func (s *Store) UpdateProject(ctx context.Context, id string, fn func(*project.Project) error) (project.Project, error) {
	var p project.Project
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &p, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id); err != nil {
			return mapError(err, "project", id)
		}
		if err := fn(&p); err != nil {
			return err
		}
		p.ID = id
		p.UpdatedAt = now()
		return updateProject(ctx, tx, p)
	})
	if err != nil {
		return project.Project{}, err
	}
	return p, nil
}

func updateProject(ctx context.Context, tx *sqlx.Tx, p project.Project) error {
	_, err := tx.NamedExecContext(ctx, `
		UPDATE projects
		SET status = :status, updated_at = :updated_at, completed_at = :completed_at
		WHERE id = :id
	`, p)
	return mapError(err, "project", p.ID)
}

func (s *Store) ListPayouts(ctx context.Context, projectID string) ([]project.Payout, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	var result []project.Payout
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+payoutColumns+` FROM project_payouts WHERE project_id = $1 ORDER BY created_at, kind, user_id
	`, projectID)
	return result, err
}

// lockOpenProject loads a project the owner may settle together with its
// tasks, holding row locks on both.
func lockOpenProject(ctx context.Context, tx *sqlx.Tx, projectID, ownerID string) (project.Project, []task.Task, error) {
	var p project.Project
	if err := tx.GetContext(ctx, &p, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, projectID); err != nil {
		return project.Project{}, nil, mapError(err, "project", projectID)
	}
	if p.OwnerID != ownerID {
		return project.Project{}, nil, apperrors.Forbidden("only the product owner can settle this project")
	}
	if !p.Status.Open() {
		return project.Project{}, nil, apperrors.Conflict("project is "+string(p.Status)).WithDetails("status", p.Status)
	}
	var tasks []task.Task
	if err := tx.SelectContext(ctx, &tasks, `
		SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY id FOR UPDATE
	`, projectID); err != nil {
		return project.Project{}, nil, err
	}
	return p, tasks, nil
}

func (s *Store) CompleteProject(ctx context.Context, projectID, ownerID string) (storage.CompleteProjectResult, error) {
	var out storage.CompleteProjectResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		p, tasks, err := lockOpenProject(ctx, tx, projectID, ownerID)
		if err != nil {
			return err
		}
		var completers []project.Weight
		for _, t := range tasks {
			if t.Status.Active() {
				return apperrors.Conflict("project has unfinished tasks").WithDetails("task_id", t.ID)
			}
			if t.Status == task.StatusApproved {
				completers = append(completers, project.Weight{UserID: t.AssigneeID, Weight: t.Reward})
			}
		}

		owner, err := lockWallet(ctx, tx, p.OwnerID)
		if err != nil {
			return err
		}
		if owner.Escrowed < p.Budget {
			return apperrors.Internal("escrow missing for project "+p.ID, nil)
		}
		owner.Escrowed -= p.Budget
		owner.Balance -= p.Budget
		if _, err := applyLedger(ctx, tx, &owner, storage.LedgerEntry{
			UserID:      p.OwnerID,
			Type:        wallet.TxEscrowRelease,
			Amount:      p.Budget,
			ReferenceID: p.ID,
			Note:        "release escrow on completion",
		}); err != nil {
			return err
		}

		ts := now()
		payouts := project.Settle(p, completers)
		for i := range payouts {
			payouts[i].ID = newID()
			payouts[i].CreatedAt = ts
			if err := ensureWallet(ctx, tx, payouts[i].UserID); err != nil {
				return err
			}
			w, err := lockWallet(ctx, tx, payouts[i].UserID)
			if err != nil {
				return err
			}
			w.Available += payouts[i].Amount
			w.Balance += payouts[i].Amount
			if _, err := applyLedger(ctx, tx, &w, storage.LedgerEntry{
				UserID:      w.UserID,
				Type:        payoutTxTypes[payouts[i].Kind],
				Amount:      payouts[i].Amount,
				ReferenceID: p.ID,
			}); err != nil {
				return err
			}
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO project_payouts (`+payoutColumns+`)
				VALUES (:id, :project_id, :user_id, :kind, :amount, :created_at)
			`, payouts[i]); err != nil {
				return mapError(err, "payout", payouts[i].ID)
			}
			if w.UserID == p.OwnerID {
				owner = w
			}
		}

		p.Status = project.StatusCompleted
		p.CompletedAt = &ts
		p.UpdatedAt = ts
		if err := updateProject(ctx, tx, p); err != nil {
			return err
		}
		if err := moveCampaign(ctx, tx, p.CampaignID, campaign.StatusInProgress, campaign.StatusCompleted); err != nil {
			return err
		}
		out = storage.CompleteProjectResult{Project: p, Payouts: payouts, OwnerWallet: owner}
		return nil
	})
	if err != nil {
		return storage.CompleteProjectResult{}, err
	}
	return out, nil
}

func (s *Store) CancelProject(ctx context.Context, projectID, ownerID string) (storage.CancelProjectResult, error) {
	var out storage.CancelProjectResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		p, tasks, err := lockOpenProject(ctx, tx, projectID, ownerID)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.Status == task.StatusApproved {
				return apperrors.Conflict("project has approved work").WithDetails("task_id", t.ID)
			}
		}
		owner, err := lockWallet(ctx, tx, p.OwnerID)
		if err != nil {
			return err
		}
		if owner.Escrowed < p.Budget {
			return apperrors.Internal("escrow missing for project "+p.ID, nil)
		}
		owner.Escrowed -= p.Budget
		owner.Available += p.Budget
		if _, err := applyLedger(ctx, tx, &owner, storage.LedgerEntry{
			UserID:      p.OwnerID,
			Type:        wallet.TxEscrowRefund,
			Amount:      p.Budget,
			ReferenceID: p.ID,
			Note:        "refund escrow on cancellation",
		}); err != nil {
			return err
		}

		var rejected []task.Task
		if err := tx.SelectContext(ctx, &rejected, `
			UPDATE tasks
			SET status = 'rejected', feedback = 'project cancelled', updated_at = $2
			WHERE project_id = $1 AND status <> 'rejected'
			RETURNING `+taskColumns, p.ID, now()); err != nil {
			return err
		}

		p.Status = project.StatusCancelled
		p.UpdatedAt = now()
		if err := updateProject(ctx, tx, p); err != nil {
			return err
		}
		if err := reopenCampaign(ctx, tx, p.CampaignID, p.ID); err != nil {
			return err
		}
		out = storage.CancelProjectResult{Project: p, OwnerWallet: owner, RejectedTasks: rejected}
		return nil
	})
	if err != nil {
		return storage.CancelProjectResult{}, err
	}
	return out, nil
}
