package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

var payoutTxTypes = map[project.PayoutKind]wallet.TxType{
	project.PayoutLeader:   wallet.TxPayoutLeader,
	project.PayoutPlatform: wallet.TxPayoutPlatform,
	project.PayoutMember:   wallet.TxPayoutMember,
}

// ProjectStore implementation -------------------------------------------------

func (s *Store) GetProject(_ context.Context, id string) (project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return project.Project{}, apperrors.NotFound("project", id)
	}
	return cloneProject(p), nil
}

func (s *Store) ListProjects(_ context.Context, filter project.Filter) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]project.Project, 0)
	for _, p := range s.projects {
		if filter.Match(p) {
			result = append(result, cloneProject(p))
		}
	}
	sortByCreated(result, func(p project.Project) time.Time { return p.CreatedAt })
	return result, nil
}

func (s *Store) UpdateProject(_ context.Context, id string, fn func(*project.Project) error) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return project.Project{}, apperrors.NotFound("project", id)
	}
	p = cloneProject(p)
	if err := fn(&p); err != nil {
		return project.Project{}, err
	}
	p.ID = id
	p.UpdatedAt = now()
	s.projects[id] = p
	return cloneProject(p), nil
}

func (s *Store) ListPayouts(_ context.Context, projectID string) ([]project.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, apperrors.NotFound("project", projectID)
	}
	return append([]project.Payout(nil), s.payouts[projectID]...), nil
}

// openProjectLocked loads a project the owner may settle.
func (s *Store) openProjectLocked(projectID, ownerID string) (project.Project, error) {
	p, ok := s.projects[projectID]
	if !ok {
		return project.Project{}, apperrors.NotFound("project", projectID)
	}
	if p.OwnerID != ownerID {
		return project.Project{}, apperrors.Forbidden("only the product owner can settle this project")
	}
	if !p.Status.Open() {
		return project.Project{}, apperrors.Conflict("project is "+string(p.Status)).WithDetails("status", p.Status)
	}
	return p, nil
}

func (s *Store) projectTasksLocked(projectID string) []task.Task {
	var tasks []task.Task
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

func (s *Store) CompleteProject(_ context.Context, projectID, ownerID string) (storage.CompleteProjectResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.openProjectLocked(projectID, ownerID)
	if err != nil {
		return storage.CompleteProjectResult{}, err
	}
	var completers []project.Weight
	for _, t := range s.projectTasksLocked(projectID) {
		if t.Status.Active() {
			return storage.CompleteProjectResult{}, apperrors.Conflict("project has unfinished tasks").
				WithDetails("task_id", t.ID)
		}
		if t.Status == task.StatusApproved {
			completers = append(completers, project.Weight{UserID: t.AssigneeID, Weight: t.Reward})
		}
	}
	owner, ok := s.wallets[p.OwnerID]
	if !ok || owner.Escrowed < p.Budget {
		return storage.CompleteProjectResult{}, apperrors.Internal("escrow missing for project "+p.ID, nil)
	}

	owner.Escrowed -= p.Budget
	owner.Balance -= p.Budget
	s.recordLocked(owner, storage.LedgerEntry{
		UserID:      p.OwnerID,
		Type:        wallet.TxEscrowRelease,
		Amount:      p.Budget,
		ReferenceID: p.ID,
		Note:        "release escrow on completion",
	})

	ts := now()
	payouts := project.Settle(p, completers)
	for i := range payouts {
		payouts[i].ID = newID()
		payouts[i].CreatedAt = ts
		w := s.ensureWalletLocked(payouts[i].UserID)
		w.Available += payouts[i].Amount
		w.Balance += payouts[i].Amount
		s.recordLocked(w, storage.LedgerEntry{
			UserID:      w.UserID,
			Type:        payoutTxTypes[payouts[i].Kind],
			Amount:      payouts[i].Amount,
			ReferenceID: p.ID,
		})
	}
	s.payouts[p.ID] = append(s.payouts[p.ID], payouts...)

	p.Status = project.StatusCompleted
	p.CompletedAt = &ts
	p.UpdatedAt = ts
	s.projects[p.ID] = p
	s.moveCampaignLocked(p.CampaignID, campaign.StatusInProgress, campaign.StatusCompleted)

	return storage.CompleteProjectResult{
		Project:     cloneProject(p),
		Payouts:     append([]project.Payout(nil), payouts...),
		OwnerWallet: s.wallets[p.OwnerID],
	}, nil
}

func (s *Store) CancelProject(_ context.Context, projectID, ownerID string) (storage.CancelProjectResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.openProjectLocked(projectID, ownerID)
	if err != nil {
		return storage.CancelProjectResult{}, err
	}
	tasks := s.projectTasksLocked(projectID)
	for _, t := range tasks {
		if t.Status == task.StatusApproved {
			return storage.CancelProjectResult{}, apperrors.Conflict("project has approved work").
				WithDetails("task_id", t.ID)
		}
	}
	owner, ok := s.wallets[p.OwnerID]
	if !ok || owner.Escrowed < p.Budget {
		return storage.CancelProjectResult{}, apperrors.Internal("escrow missing for project "+p.ID, nil)
	}

	owner.Escrowed -= p.Budget
	owner.Available += p.Budget
	s.recordLocked(owner, storage.LedgerEntry{
		UserID:      p.OwnerID,
		Type:        wallet.TxEscrowRefund,
		Amount:      p.Budget,
		ReferenceID: p.ID,
		Note:        "refund escrow on cancellation",
	})

	ts := now()
	var rejected []task.Task
	for _, t := range tasks {
		if t.Status == task.StatusRejected {
			continue
		}
		t.Status = task.StatusRejected
		t.Feedback = "project cancelled"
		t.UpdatedAt = ts
		s.tasks[t.ID] = t
		rejected = append(rejected, cloneTask(t))
	}

	p.Status = project.StatusCancelled
	p.UpdatedAt = ts
	s.projects[p.ID] = p
	s.reopenCampaignLocked(p.CampaignID, p.ID)

	return storage.CancelProjectResult{
		Project:       cloneProject(p),
		OwnerWallet:   s.wallets[p.OwnerID],
		RejectedTasks: rejected,
	}, nil
}
