package tasks

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/group"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/realtime"
	"github.com/Yassin6up/somoo-sub000/internal/app/services/groups"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage/memory"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

func fundedProject(t *testing.T, store *memory.Store) project.Project {
	t.Helper()
	ctx := context.Background()
	_, err := store.EnsureWallet(ctx, "po")
	require.NoError(t, err)
	_, _, err = store.Credit(ctx, storage.LedgerEntry{UserID: "po", Type: wallet.TxDeposit, Amount: 10000})
	require.NoError(t, err)
	g, err := store.CreateGroup(ctx, group.Group{Name: "Crew", LeaderID: "lead", MaxMembers: 5})
	require.NoError(t, err)
	_, err = store.AddMember(ctx, group.Member{GroupID: g.ID, UserID: "dev", Role: group.MemberRoleMember})
	require.NoError(t, err)
	conv, _, err := store.EnsureConversation(ctx, chat.Conversation{OwnerID: "po", GroupID: g.ID})
	require.NoError(t, err)
	p, _, err := store.CreateProposal(ctx, proposal.Proposal{
		ConversationID: conv.ID, LeaderID: "lead", GroupID: g.ID, OwnerID: "po", Budget: 10000,
	}, chat.Message{SenderID: "lead", Body: "offer"})
	require.NoError(t, err)
	res, err := store.AcceptProposal(ctx, storage.AcceptProposalParams{ProposalID: p.ID, OwnerID: "po", Policy: project.DefaultPolicy})
	require.NoError(t, err)
	return res.Project
}

func TestTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	events := &realtime.Recorder{}
	svc := New(groups.New(store, store, 0, logger.NewDiscard()), store, store, events, logger.NewDiscard())
	proj := fundedProject(t, store)

	_, err := svc.Create(ctx, proj.ID, "dev", "Copy", "", 100)
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))
	_, err = svc.Create(ctx, proj.ID, "lead", "Copy", "", 0)
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))

	tk, err := svc.Create(ctx, proj.ID, "lead", "Copy", "write the hero text", 3000)
	require.NoError(t, err)
	assert.Equal(t, task.StatusAvailable, tk.Status)

	_, err = svc.Assign(ctx, tk.ID, "lead", "stranger")
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))
	tk, err = svc.Assign(ctx, tk.ID, "lead", "dev")
	require.NoError(t, err)
	assert.Equal(t, task.StatusAssigned, tk.Status)
	require.NotNil(t, tk.AssignedAt)

	_, err = svc.Submit(ctx, tk.ID, "dev", "done")
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
	_, err = svc.Start(ctx, tk.ID, "lead")
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))

	tk, err = svc.Start(ctx, tk.ID, "dev")
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, tk.Status)
	p, err := store.GetProject(ctx, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, project.StatusInProgress, p.Status)

	tk, err = svc.Submit(ctx, tk.ID, "dev", "https://files.example.com/hero.txt")
	require.NoError(t, err)
	tk, err = svc.Reject(ctx, tk.ID, "lead", "shorter please")
	require.NoError(t, err)
	assert.Equal(t, task.StatusRejected, tk.Status)
	assert.Equal(t, "shorter please", tk.Feedback)

	tk, err = svc.Start(ctx, tk.ID, "dev")
	require.NoError(t, err)
	tk, err = svc.Submit(ctx, tk.ID, "dev", "v2")
	require.NoError(t, err)
	tk, err = svc.Approve(ctx, tk.ID, "lead")
	require.NoError(t, err)
	assert.Equal(t, task.StatusApproved, tk.Status)

	mine, err := svc.ListForAssignee(ctx, "dev")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	list, err := svc.List(ctx, proj.ID, "po")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = svc.List(ctx, proj.ID, "stranger")
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))

	assert.NotEmpty(t, events.Types(realtime.UserTopic("dev")))
}

func TestRewardsCappedByMemberShare(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(groups.New(store, store, 0, logger.NewDiscard()), store, store, nil, logger.NewDiscard())
	proj := fundedProject(t, store)

	_, err := svc.Create(ctx, proj.ID, "lead", "A", "", proj.MemberShare)
	require.NoError(t, err)
	_, err = svc.Create(ctx, proj.ID, "lead", "B", "", 1)
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
}

func TestUnassignAndReleaseStale(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	later := time.Now().UTC().Add(time.Hour)
	svc := New(groups.New(store, store, 0, logger.NewDiscard()), store, store, nil, logger.NewDiscard(),
		WithAssignmentTTL(30*time.Minute), WithClock(func() time.Time { return later }))
	proj := fundedProject(t, store)

	a, err := svc.Create(ctx, proj.ID, "lead", "A", "", 100)
	require.NoError(t, err)
	b, err := svc.Create(ctx, proj.ID, "lead", "B", "", 100)
	require.NoError(t, err)

	_, err = svc.Assign(ctx, a.ID, "lead", "dev")
	require.NoError(t, err)
	a, err = svc.Unassign(ctx, a.ID, "lead")
	require.NoError(t, err)
	assert.Equal(t, task.StatusAvailable, a.Status)
	assert.Empty(t, a.AssigneeID)

	// Assignment timestamps come from the service clock, so backdate b
	// directly to simulate an assignment that was never started.
	stale := time.Now().UTC().Add(-2 * time.Hour)
	_, err = store.UpdateTask(ctx, b.ID, func(tk *task.Task) error {
		tk.Status = task.StatusAssigned
		tk.AssigneeID = "dev"
		tk.AssignedAt = &stale
		return nil
	})
	require.NoError(t, err)

	n, err := svc.ReleaseStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	b, err = svc.Get(ctx, b.ID, "lead")
	require.NoError(t, err)
	assert.Equal(t, task.StatusAvailable, b.Status)
}

func TestTransitionsStopWhenProjectCancelled(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(groups.New(store, store, 0, logger.NewDiscard()), store, store, nil, logger.NewDiscard())
	proj := fundedProject(t, store)

	open, err := svc.Create(ctx, proj.ID, "lead", "A", "", 100)
	require.NoError(t, err)
	worked, err := svc.Create(ctx, proj.ID, "lead", "B", "", 100)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, worked.ID, "lead", "dev")
	require.NoError(t, err)

	_, err = store.CancelProject(ctx, proj.ID, "po")
	require.NoError(t, err)

	_, err = svc.Assign(ctx, open.ID, "lead", "dev")
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
	_, err = svc.Start(ctx, worked.ID, "dev")
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))

	got, err := store.GetTask(ctx, worked.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRejected, got.Status)
	p, err := store.GetProject(ctx, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, project.StatusCancelled, p.Status)
}
