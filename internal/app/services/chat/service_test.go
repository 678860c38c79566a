package chat

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/group"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/realtime"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage/memory"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

type fixture struct {
	store  *memory.Store
	events *realtime.Recorder
	svc    *Service
	group  group.Group
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	users := map[string]user.Role{
		"po":       user.RoleProductOwner,
		"po2":      user.RoleProductOwner,
		"lead":     user.RoleFreelancer,
		"member":   user.RoleFreelancer,
		"outsider": user.RoleFreelancer,
	}
	for id, role := range users {
		_, err := store.CreateUser(ctx, user.User{ID: id, Email: id + "@example.com", Role: role})
		require.NoError(t, err)
	}
	g, err := store.CreateGroup(ctx, group.Group{Name: "Crew", LeaderID: "lead", MaxMembers: 5})
	require.NoError(t, err)
	_, err = store.AddMember(ctx, group.Member{GroupID: g.ID, UserID: "member", Role: group.MemberRoleMember})
	require.NoError(t, err)

	events := &realtime.Recorder{}
	stores := Stores{Users: store, Groups: store, Campaigns: store, Chat: store}
	return fixture{store: store, events: events, svc: New(stores, events, 20, logger.NewDiscard()), group: g}
}

func TestStartConversationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.StartConversation(ctx, "po", f.group.ID, "")
	require.NoError(t, err)
	second, err := f.svc.StartConversation(ctx, "po", f.group.ID, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = f.svc.StartConversation(ctx, "lead", f.group.ID, "")
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))
	_, err = f.svc.StartConversation(ctx, "po", "missing", "")
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
}

func TestStartConversationChecksCampaignOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c, err := f.store.CreateCampaign(ctx, campaign.Campaign{OwnerID: "po2", Title: "Ad", Status: campaign.StatusOpen})
	require.NoError(t, err)

	_, err = f.svc.StartConversation(ctx, "po", f.group.ID, c.ID)
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))

	conv, err := f.svc.StartConversation(ctx, "po2", f.group.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, conv.CampaignID)
}

func TestStartConversationRequiresOpenCampaign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c, err := f.store.CreateCampaign(ctx, campaign.Campaign{OwnerID: "po", Title: "Ad", Status: campaign.StatusCancelled})
	require.NoError(t, err)

	_, err = f.svc.StartConversation(ctx, "po", f.group.ID, c.ID)
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))

	convs, err := f.svc.ListConversations(ctx, "po")
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestValidateBody(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.svc.ValidateBody(strings.Repeat("ب", 20)))
	assert.True(t, stderrors.Is(f.svc.ValidateBody(strings.Repeat("ب", 21)), apperrors.ErrInvalidInput))
	assert.True(t, stderrors.Is(f.svc.ValidateBody(" \n "), apperrors.ErrInvalidInput))
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv, err := f.svc.StartConversation(ctx, "po", f.group.ID, "")
	require.NoError(t, err)

	msg, err := f.svc.SendMessage(ctx, conv.ID, "member", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, chat.KindText, msg.Kind)

	_, err = f.svc.SendMessage(ctx, conv.ID, "po", "hi team")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, conv.ID, "outsider", "let me in")
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))
	_, err = f.svc.SendMessage(ctx, conv.ID, "po", "   ")
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))
	_, err = f.svc.SendMessage(ctx, conv.ID, "po", strings.Repeat("ب", 21))
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))

	msgs, err := f.svc.ListMessages(ctx, conv.ID, "lead")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	_, err = f.svc.ListMessages(ctx, conv.ID, "outsider")
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))

	topic := realtime.ConversationTopic(conv.ID)
	assert.Equal(t, []string{realtime.EventMessageCreated, realtime.EventMessageCreated}, f.events.Types(topic))
}

func TestListConversationsAndAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv, err := f.svc.StartConversation(ctx, "po", f.group.ID, "")
	require.NoError(t, err)

	for _, id := range []string{"po", "lead", "member"} {
		convs, err := f.svc.ListConversations(ctx, id)
		require.NoError(t, err)
		assert.Len(t, convs, 1, id)
		assert.NoError(t, f.svc.CanAccess(ctx, id, conv.ID))
	}
	convs, err := f.svc.ListConversations(ctx, "outsider")
	require.NoError(t, err)
	assert.Empty(t, convs)
	assert.Error(t, f.svc.CanAccess(ctx, "outsider", conv.ID))
}
