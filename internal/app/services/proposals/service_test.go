package proposals

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/group"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/realtime"
	chatsvc "github.com/Yassin6up/somoo-sub000/internal/app/services/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage/memory"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

type fixture struct {
	store  *memory.Store
	events *realtime.Recorder
	svc    *Service
	conv   chat.Conversation
}

func newFixture(t *testing.T, ownerFunds int64, opts ...Option) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for id, role := range map[string]user.Role{"po": user.RoleProductOwner, "lead": user.RoleFreelancer, "member": user.RoleFreelancer} {
		_, err := store.CreateUser(ctx, user.User{ID: id, Email: id + "@example.com", Role: role})
		require.NoError(t, err)
	}
	_, err := store.EnsureWallet(ctx, "po")
	require.NoError(t, err)
	if ownerFunds > 0 {
		_, _, err = store.Credit(ctx, storage.LedgerEntry{UserID: "po", Type: wallet.TxDeposit, Amount: ownerFunds})
		require.NoError(t, err)
	}
	g, err := store.CreateGroup(ctx, group.Group{Name: "Crew", LeaderID: "lead", MaxMembers: 5})
	require.NoError(t, err)
	_, err = store.AddMember(ctx, group.Member{GroupID: g.ID, UserID: "member", Role: group.MemberRoleMember})
	require.NoError(t, err)

	events := &realtime.Recorder{}
	log := logger.NewDiscard()
	chats := chatsvc.New(chatsvc.Stores{Users: store, Groups: store, Campaigns: store, Chat: store}, events, 0, log)
	conv, err := chats.StartConversation(ctx, "po", g.ID, "")
	require.NoError(t, err)

	svc := New(store, store, chats, project.DefaultPolicy, events, log, opts...)
	return fixture{store: store, events: events, svc: svc, conv: conv}
}

func offer(budget int64) proposal.Offer {
	return proposal.Offer{Budget: budget, Description: "landing page", DeliveryDays: 5}
}

func TestSubmitRequiresLeader(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	_, err := f.svc.Submit(ctx, f.conv.ID, "member", offer(1000))
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))
	_, err = f.svc.Submit(ctx, f.conv.ID, "lead", offer(0))
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))

	p, err := f.svc.Submit(ctx, f.conv.ID, "lead", offer(1000))
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusPending, p.Status)
	assert.Equal(t, "po", p.OwnerID)

	msgs, err := f.store.ListMessages(ctx, f.conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.KindProposal, msgs[0].Kind)
	assert.True(t, proposal.IsProposalMessage(msgs[0].Body))
	assert.Equal(t, p.ID, msgs[0].ProposalID)
}

func TestSubmitMessageParsesBody(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	p, err := f.svc.SubmitMessage(ctx, f.conv.ID, "lead", `{"type":"proposal","budget":2500,"description":"logo","delivery_days":3}`)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), p.Budget)
	assert.Equal(t, 3, p.DeliveryDays)

	_, err = f.svc.SubmitMessage(ctx, f.conv.ID, "lead", `{"type":"proposal","budget":"lots"}`)
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))
}

func TestSubmitEnforcesMessageLength(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	long := proposal.Offer{Budget: 1000, Description: strings.Repeat("ب", chatsvc.DefaultMaxMessageLength), DeliveryDays: 2}
	_, err := f.svc.Submit(ctx, f.conv.ID, "lead", long)
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))

	_, err = f.svc.SubmitMessage(ctx, f.conv.ID, "lead", long.Body())
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))

	msgs, err := f.store.ListMessages(ctx, f.conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, f.events.Types(realtime.ConversationTopic(f.conv.ID)))
}

func TestAcceptHoldsBudgetInEscrow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 150000)

	chosen, err := f.svc.Submit(ctx, f.conv.ID, "lead", offer(100000))
	require.NoError(t, err)
	competing, err := f.svc.Submit(ctx, f.conv.ID, "lead", offer(90000))
	require.NoError(t, err)

	res, err := f.svc.Accept(ctx, chosen.ID, "po")
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusAccepted, res.Proposal.Status)
	assert.Equal(t, res.Project.ID, res.Proposal.ProjectID)
	assert.Equal(t, project.StatusFunded, res.Project.Status)
	assert.Equal(t, int64(30000), res.Project.LeaderShare)
	assert.Equal(t, int64(10000), res.Project.PlatformShare)
	assert.Equal(t, int64(60000), res.Project.MemberShare)
	assert.Equal(t, int64(50000), res.OwnerWallet.Available)
	assert.Equal(t, int64(100000), res.OwnerWallet.Escrowed)
	require.Len(t, res.AutoRejected, 1)
	assert.Equal(t, competing.ID, res.AutoRejected[0].ID)

	msgs, err := f.store.ListMessages(ctx, f.conv.ID)
	require.NoError(t, err)
	last := msgs[len(msgs)-1]
	assert.Equal(t, chat.KindSystem, last.Kind)
	assert.Equal(t, chosen.ID, last.ProposalID)

	types := f.events.Types(realtime.ConversationTopic(f.conv.ID))
	assert.Contains(t, types, realtime.EventProposalAccepted)
	assert.Contains(t, types, realtime.EventProposalRejected)
	assert.Contains(t, f.events.Types(realtime.UserTopic("po")), realtime.EventWalletUpdated)

	_, err = f.svc.Accept(ctx, chosen.ID, "po")
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
	w, err := f.store.GetWallet(ctx, "po")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), w.Available)
}

func TestAcceptConcurrentlyDebitsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100000)
	p, err := f.svc.Submit(ctx, f.conv.ID, "lead", offer(40000))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Accept(ctx, p.ID, "po"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	w, err := f.store.GetWallet(ctx, "po")
	require.NoError(t, err)
	assert.Equal(t, int64(60000), w.Available)
	assert.Equal(t, int64(40000), w.Escrowed)
}

func TestAcceptInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 999)
	p, err := f.svc.Submit(ctx, f.conv.ID, "lead", offer(1000))
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, p.ID, "po")
	assert.True(t, stderrors.Is(err, apperrors.ErrInsufficientFunds))

	got, err := f.svc.Get(ctx, p.ID, "po")
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusPending, got.Status)
	projects, err := f.store.ListProjects(ctx, project.Filter{})
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestRejectAndWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	p1, err := f.svc.Submit(ctx, f.conv.ID, "lead", offer(1000))
	require.NoError(t, err)
	p2, err := f.svc.Submit(ctx, f.conv.ID, "lead", offer(2000))
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, p1.ID, "lead", "")
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))
	rejected, err := f.svc.Reject(ctx, p1.ID, "po", " too slow ")
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusRejected, rejected.Status)
	assert.Equal(t, "too slow", rejected.Reason)
	require.NotNil(t, rejected.DecidedAt)

	_, err = f.svc.Withdraw(ctx, p1.ID, "lead")
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
	withdrawn, err := f.svc.Withdraw(ctx, p2.ID, "lead")
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusWithdrawn, withdrawn.Status)

	list, err := f.svc.ListForConversation(ctx, f.conv.ID, "member")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestExpireStale(t *testing.T) {
	ctx := context.Background()
	later := time.Now().UTC().Add(48 * time.Hour)
	f := newFixture(t, 0, WithTTL(24*time.Hour), WithClock(func() time.Time { return later }))
	p, err := f.svc.Submit(ctx, f.conv.ID, "lead", offer(1000))
	require.NoError(t, err)

	n, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := f.svc.Get(ctx, p.ID, "lead")
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusExpired, got.Status)

	n, err = f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
