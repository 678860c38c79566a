package users

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage/memory"
	"github.com/Yassin6up/somoo-sub000/internal/auth"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

func newService() (*Service, *memory.Store, *auth.TokenManager) {
	store := memory.New()
	tokens := auth.NewTokenManager("secret", "somoo", time.Hour)
	return New(store, store, tokens, logger.NewDiscard()).WithHashCost(bcrypt.MinCost), store, tokens
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, store, tokens := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "Sara", "  Sara@Example.com ", "s3cret-pass", user.RoleProductOwner)
	require.NoError(t, err)
	assert.Equal(t, "sara@example.com", u.Email)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)

	w, err := store.GetWallet(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, w.Balance)

	session, err := svc.Authenticate(ctx, "sara@example.com", "s3cret-pass")
	require.NoError(t, err)
	claims, err := tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "product_owner", claims.Role)

	_, err = svc.Authenticate(ctx, "sara@example.com", "wrong-pass")
	assert.True(t, stderrors.Is(err, apperrors.ErrUnauthorized))
	_, err = svc.Authenticate(ctx, "nobody@example.com", "whatever1")
	assert.True(t, stderrors.Is(err, apperrors.ErrUnauthorized))
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "a@example.com", "password1", user.RoleFreelancer)
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))
	_, err = svc.Register(ctx, "A", "not-an-email", "password1", user.RoleFreelancer)
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))
	_, err = svc.Register(ctx, "A", "a@example.com", "short", user.RoleFreelancer)
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))
	_, err = svc.Register(ctx, "A", "a@example.com", "password1", user.Role("wizard"))
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))
	_, err = svc.Register(ctx, "A", "a@example.com", "password1", user.RoleAdmin)
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.Register(ctx, "A", "a@example.com", "password1", user.RoleFreelancer)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "B", "A@example.com", "password2", user.RoleFreelancer)
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	first, err := svc.EnsureAdmin(ctx, "admin@example.com", "admin-pass")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, first.Role)

	second, err := svc.EnsureAdmin(ctx, "admin@example.com", "admin-pass")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
