package campaigns

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage/memory"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	for id, role := range map[string]user.Role{"po": user.RoleProductOwner, "po2": user.RoleProductOwner, "fl": user.RoleFreelancer} {
		_, err := store.CreateUser(context.Background(), user.User{ID: id, Email: id + "@example.com", Role: role})
		require.NoError(t, err)
	}
	return New(store, store, logger.NewDiscard()), store
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	c, err := svc.Create(ctx, "po", " Launch video ", "30s promo", 50000)
	require.NoError(t, err)
	assert.Equal(t, "Launch video", c.Title)
	assert.Equal(t, campaign.StatusOpen, c.Status)

	_, err = svc.Create(ctx, "fl", "Nope", "", 100)
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))
	_, err = svc.Create(ctx, "po", "Bad", "", -1)
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.Create(ctx, "po2", "Other", "", 0)
	require.NoError(t, err)

	mine, err := svc.List(ctx, campaign.Filter{OwnerID: "po"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)

	open, err := svc.List(ctx, campaign.Filter{Status: campaign.StatusOpen})
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	c, err := svc.Create(ctx, "po", "Logo", "", 1000)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, c.ID, "po2")
	assert.True(t, stderrors.Is(err, apperrors.ErrForbidden))

	cancelled, err := svc.Cancel(ctx, c.ID, "po")
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, c.ID, "po")
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
}
