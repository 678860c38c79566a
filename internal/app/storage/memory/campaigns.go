package memory

import (
	"context"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

// CampaignStore implementation ------------------------------------------------

func (s *Store) CreateCampaign(_ context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	} else if _, exists := s.campaigns[c.ID]; exists {
		return campaign.Campaign{}, apperrors.AlreadyExists("campaign " + c.ID + " already exists")
	}
	if c.Status == "" {
		c.Status = campaign.StatusOpen
	}
	ts := now()
	c.CreatedAt = ts
	c.UpdatedAt = ts
	s.campaigns[c.ID] = c
	return c, nil
}

func (s *Store) GetCampaign(_ context.Context, id string) (campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return campaign.Campaign{}, apperrors.NotFound("campaign", id)
	}
	return c, nil
}

func (s *Store) ListCampaigns(_ context.Context, filter campaign.Filter) ([]campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]campaign.Campaign, 0)
	for _, c := range s.campaigns {
		if filter.Match(c) {
			result = append(result, c)
		}
	}
	sortByCreated(result, func(c campaign.Campaign) time.Time { return c.CreatedAt })
	return result, nil
}

func (s *Store) UpdateCampaign(_ context.Context, id string, fn func(*campaign.Campaign) error) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return campaign.Campaign{}, apperrors.NotFound("campaign", id)
	}
	if err := fn(&c); err != nil {
		return campaign.Campaign{}, err
	}
	c.ID = id
	c.UpdatedAt = now()
	s.campaigns[id] = c
	return c, nil
}

// openCampaignLocked fails unless the campaign still takes proposals. An
// empty id means the work is not tied to a campaign.
func (s *Store) openCampaignLocked(id string) error {
	if id == "" {
		return nil
	}
	c, ok := s.campaigns[id]
	if !ok {
		return apperrors.NotFound("campaign", id)
	}
	if c.Status != campaign.StatusOpen {
		return apperrors.Conflict("campaign is "+string(c.Status)).WithDetails("campaign_id", id)
	}
	return nil
}

// moveCampaignLocked changes the campaign status only when it is currently from.
func (s *Store) moveCampaignLocked(id string, from, to campaign.Status) {
	if id == "" {
		return
	}
	if c, ok := s.campaigns[id]; ok && c.Status == from {
		c.Status = to
		c.UpdatedAt = now()
		s.campaigns[id] = c
	}
}

// reopenCampaignLocked returns an in-progress campaign to open once no other
// escrowed project references it.
func (s *Store) reopenCampaignLocked(id, projectID string) {
	if id == "" {
		return
	}
	for _, p := range s.projects {
		if p.ID != projectID && p.CampaignID == id && p.Status.Open() {
			return
		}
	}
	s.moveCampaignLocked(id, campaign.StatusInProgress, campaign.StatusOpen)
}
