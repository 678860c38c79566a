package projects

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/group"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/realtime"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage/memory"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// fundProject drives the store through acceptance so the project holds
// budget in escrow, with "m1" and "m2" in the leader's group.
func fundProject(t *testing.T, store *memory.Store, budget int64) project.Project {
	t.Helper()
	ctx := context.Background()
	_, err := store.EnsureWallet(ctx, "po")
	require.NoError(t, err)
	_, _, err = store.Credit(ctx, storage.LedgerEntry{UserID: "po", Type: wallet.TxDeposit, Amount: budget})
	require.NoError(t, err)
	g, err := store.CreateGroup(ctx, group.Group{Name: "Crew", LeaderID: "lead", MaxMembers: 5})
	require.NoError(t, err)
	for _, id := range []string{"m1", "m2"} {
		_, err = store.AddMember(ctx, group.Member{GroupID: g.ID, UserID: id, Role: group.MemberRoleMember})
		require.NoError(t, err)
	}
	conv, _, err := store.EnsureConversation(ctx, chat.Conversation{OwnerID: "po", GroupID: g.ID})
	require.NoError(t, err)
	p, _, err := store.CreateProposal(ctx, proposal.Proposal{
		ConversationID: conv.ID, LeaderID: "lead", GroupID: g.ID, OwnerID: "po", Budget: budget,
	}, chat.Message{SenderID: "lead", Body: "offer"})
	require.NoError(t, err)
	res, err := store.AcceptProposal(ctx, storage.AcceptProposalParams{ProposalID: p.ID, OwnerID: "po", Policy: project.DefaultPolicy})
	require.NoError(t, err)
	return res.Project
}

func approvedTask(t *testing.T, store *memory.Store, projectID, assignee string, reward int64) {
	t.Helper()
	ctx := context.Background()
	created, err := store.CreateTask(ctx, task.Task{ProjectID: projectID, Title: "work", Reward: reward})
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, created.ID, func(tk *task.Task) error {
		tk.AssigneeID = assignee
		tk.Status = task.StatusApproved
		return nil
	})
	require.NoError(t, err)
}

func TestCompletePaysEveryShare(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	events := &realtime.Recorder{}
	svc := New(store, store, events, logger.NewDiscard())
	proj := fundProject(t, store, 100000)
	approvedTask(t, store, proj.ID, "m1", 20000)
	approvedTask(t, store, proj.ID, "m2", 40000)

	_, err := svc.Complete(ctx, proj.ID, "m1")
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))

	res, err := svc.Complete(ctx, proj.ID, "po")
	require.NoError(t, err)
	assert.Equal(t, project.StatusCompleted, res.Project.Status)
	assert.Equal(t, int64(0), res.OwnerWallet.Escrowed)
	assert.Equal(t, int64(0), res.OwnerWallet.Balance)

	paid := map[string]int64{}
	var total int64
	for _, p := range res.Payouts {
		paid[p.UserID] += p.Amount
		total += p.Amount
	}
	assert.Equal(t, proj.Budget, total)
	assert.Equal(t, int64(30000), paid["lead"])
	assert.Equal(t, int64(10000), paid[wallet.PlatformOwnerID])
	assert.Equal(t, int64(20000), paid["m1"])
	assert.Equal(t, int64(40000), paid["m2"])

	payouts, err := svc.Payouts(ctx, proj.ID, "lead")
	require.NoError(t, err)
	assert.Len(t, payouts, 4)
	assert.Contains(t, events.Types(realtime.ConversationTopic(proj.ConversationID)), realtime.EventProjectCompleted)
	assert.Contains(t, events.Types(realtime.UserTopic("m2")), realtime.EventWalletUpdated)

	_, err = svc.Complete(ctx, proj.ID, "po")
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
}

func TestCancelRefundsOwner(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, store, nil, logger.NewDiscard())
	proj := fundProject(t, store, 5000)
	_, err := store.CreateTask(ctx, task.Task{ProjectID: proj.ID, Title: "draft", Reward: 1000})
	require.NoError(t, err)

	res, err := svc.Cancel(ctx, proj.ID, "po")
	require.NoError(t, err)
	assert.Equal(t, project.StatusCancelled, res.Project.Status)
	assert.Equal(t, int64(5000), res.OwnerWallet.Available)
	assert.Zero(t, res.OwnerWallet.Escrowed)
	require.Len(t, res.RejectedTasks, 1)
	assert.Equal(t, task.StatusRejected, res.RejectedTasks[0].Status)
}

func TestCancelBlockedByApprovedWork(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, store, nil, logger.NewDiscard())
	proj := fundProject(t, store, 5000)
	approvedTask(t, store, proj.ID, "m1", 1000)

	_, err := svc.Cancel(ctx, proj.ID, "po")
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
}

func TestVisibility(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, store, nil, logger.NewDiscard())
	proj := fundProject(t, store, 1000)

	for _, id := range []string{"po", "lead", "m1"} {
		_, err := svc.Get(ctx, proj.ID, id)
		assert.NoError(t, err, id)
		list, err := svc.ListForUser(ctx, id)
		require.NoError(t, err)
		assert.Len(t, list, 1, id)
	}
	_, err := svc.Get(ctx, proj.ID, "stranger")
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))
	list, err := svc.ListForUser(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, list)
}
