package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

const campaignColumns = `id, owner_id, title, description, budget, status, created_at, updated_at`

// --- CampaignStore ----------------------------------------------------------

func (s *Store) CreateCampaign(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = campaign.StatusOpen
	}
	ts := now()
	c.CreatedAt = ts
	c.UpdatedAt = ts
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES (:id, :owner_id, :title, :description, :budget, :status, :created_at, :updated_at)
	`, c)
	if err != nil {
		return campaign.Campaign{}, mapError(err, "campaign", c.ID)
	}
	return c, nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (campaign.Campaign, error) {
	var c campaign.Campaign
	err := s.db.GetContext(ctx, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	return c, mapError(err, "campaign", id)
}

func (s *Store) ListCampaigns(ctx context.Context, filter campaign.Filter) ([]campaign.Campaign, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at`

	var result []campaign.Campaign
	err := s.db.SelectContext(ctx, &result, query, args...)
	return result, err
}

func (s *Store) UpdateCampaign(ctx context.Context, id string, fn func(*campaign.Campaign) error) (campaign.Campaign, error) {
	var c campaign.Campaign
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, id); err != nil {
			return mapError(err, "campaign", id)
		}
		if err := fn(&c); err != nil {
			return err
		}
		c.ID = id
		c.UpdatedAt = now()
		_, err := tx.NamedExecContext(ctx, `
			UPDATE campaigns
			SET title = :title, description = :description, budget = :budget, status = :status, updated_at = :updated_at
			WHERE id = :id
		`, c)
		return mapError(err, "campaign", id)
	})
	if err != nil {
		return campaign.Campaign{}, err
	}
	return c, nil
}

// lockOpenCampaign holds the campaign row for the rest of the transaction and
// fails unless the campaign still takes proposals. An empty id means the work
// is not tied to a campaign.
func lockOpenCampaign(ctx context.Context, tx *sqlx.Tx, id string) error {
	if id == "" {
		return nil
	}
	var status campaign.Status
	if err := tx.GetContext(ctx, &status, `SELECT status FROM campaigns WHERE id = $1 FOR UPDATE`, id); err != nil {
		return mapError(err, "campaign", id)
	}
	if status != campaign.StatusOpen {
		return apperrors.Conflict("campaign is "+string(status)).WithDetails("campaign_id", id)
	}
	return nil
}

// moveCampaign changes the campaign status only when it is currently from.
func moveCampaign(ctx context.Context, tx *sqlx.Tx, id string, from, to campaign.Status) error {
	if id == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE campaigns SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2
	`, id, from, to, now())
	return mapError(err, "campaign", id)
}

// reopenCampaign returns an in-progress campaign to open once no other
// escrowed project references it.
func reopenCampaign(ctx context.Context, tx *sqlx.Tx, id, projectID string) error {
	if id == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE campaigns SET status = 'open', updated_at = $3
		WHERE id = $1 AND status = 'in_progress'
			AND NOT EXISTS (
				SELECT 1 FROM projects
				WHERE campaign_id = $1 AND id <> $2 AND status IN ('funded', 'in_progress')
			)
	`, id, projectID, now())
	return mapError(err, "campaign", id)
}
