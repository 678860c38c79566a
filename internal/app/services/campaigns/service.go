package campaigns

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// Service manages product-owner campaigns.
type Service struct {
	users storage.UserStore
	store storage.CampaignStore
	log   *logger.Logger
}

// New constructs a campaign service.
func New(users storage.UserStore, store storage.CampaignStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("campaigns")
	}
	return &Service{users: users, store: store, log: log}
}

// Create publishes a campaign on behalf of a product owner.
func (s *Service) Create(ctx context.Context, ownerID, title, description string, budget int64) (campaign.Campaign, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return campaign.Campaign{}, apperrors.InvalidInput("title is required")
	}
	if budget < 0 {
		return campaign.Campaign{}, apperrors.InvalidInput("budget must not be negative")
	}
	owner, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return campaign.Campaign{}, err
	}
	if owner.Role != user.RoleProductOwner {
		return campaign.Campaign{}, apperrors.Forbidden("only product owners can create campaigns")
	}

	created, err := s.store.CreateCampaign(ctx, campaign.Campaign{
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Budget:      budget,
		Status:      campaign.StatusOpen,
	})
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("create campaign: %w", err)
	}
	s.log.WithField("campaign_id", created.ID).Infof("campaign created by %s", ownerID)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (campaign.Campaign, error) {
	return s.store.GetCampaign(ctx, id)
}

func (s *Service) List(ctx context.Context, filter campaign.Filter) ([]campaign.Campaign, error) {
	return s.store.ListCampaigns(ctx, filter)
}

// Cancel withdraws an open campaign.
func (s *Service) Cancel(ctx context.Context, id, ownerID string) (campaign.Campaign, error) {
	updated, err := s.store.UpdateCampaign(ctx, id, func(c *campaign.Campaign) error {
		if c.OwnerID != ownerID {
			return apperrors.Forbidden("only the campaign owner can cancel it")
		}
		if c.Status != campaign.StatusOpen {
			return apperrors.Conflict("campaign is " + string(c.Status))
		}
		c.Status = campaign.StatusCancelled
		return nil
	})
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("cancel campaign: %w", err)
	}
	s.log.WithField("campaign_id", id).Info("campaign cancelled")
	return updated, nil
}
