package users

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	"github.com/Yassin6up/somoo-sub000/internal/auth"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

const minPasswordLength = 8

// Session is returned after a successful login.
type Session struct {
	User      user.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service manages user registration and authentication.
type Service struct {
	store   storage.UserStore
	wallets storage.WalletStore
	tokens  *auth.TokenManager
	cost    int
	log     *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, wallets storage.WalletStore, tokens *auth.TokenManager, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, wallets: wallets, tokens: tokens, cost: bcrypt.DefaultCost, log: log}
}

// WithHashCost overrides the bcrypt cost, mostly to keep tests fast.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// Register creates a user and its wallet.
func (s *Service) Register(ctx context.Context, name, email, password string, role user.Role) (user.User, error) {
	name = strings.TrimSpace(name)
	email = user.NormalizeEmail(email)
	if name == "" {
		return user.User{}, apperrors.InvalidInput("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return user.User{}, apperrors.InvalidInput("email is invalid")
	}
	if len(password) < minPasswordLength {
		return user.User{}, apperrors.InvalidInput("password must be at least %d characters", minPasswordLength)
	}
	if !role.Valid() || role == user.RoleAdmin {
		return user.User{}, apperrors.InvalidInput("role must be freelancer or product_owner")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return user.User{}, apperrors.Internal("hash password", err)
	}
	created, err := s.store.CreateUser(ctx, user.User{Name: name, Email: email, PasswordHash: string(hash), Role: role})
	if err != nil {
		if stderrors.Is(err, apperrors.ErrAlreadyExists) {
			return user.User{}, apperrors.Conflict("email is already registered")
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	if _, err := s.wallets.EnsureWallet(ctx, created.ID); err != nil {
		return user.User{}, fmt.Errorf("create wallet: %w", err)
	}
	s.log.WithField("user_id", created.ID).Infof("user registered as %s", created.Role)
	return created, nil
}

// EnsureAdmin creates the administrator account when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (user.User, error) {
	if existing, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return existing, nil
	} else if !stderrors.Is(err, apperrors.ErrNotFound) {
		return user.User{}, err
	}
	if len(password) < minPasswordLength {
		return user.User{}, apperrors.InvalidInput("admin password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return user.User{}, apperrors.Internal("hash password", err)
	}
	admin, err := s.store.CreateUser(ctx, user.User{Name: "Administrator", Email: email, PasswordHash: string(hash), Role: user.RoleAdmin})
	if err != nil {
		return user.User{}, fmt.Errorf("create admin: %w", err)
	}
	if _, err := s.wallets.EnsureWallet(ctx, admin.ID); err != nil {
		return user.User{}, fmt.Errorf("create wallet: %w", err)
	}
	s.log.WithField("user_id", admin.ID).Info("administrator account created")
	return admin, nil
}

// Authenticate verifies credentials and issues a token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Session, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, apperrors.ErrNotFound) {
			return Session{}, apperrors.Unauthorized("invalid email or password")
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, apperrors.Unauthorized("invalid email or password")
	}
	token, expires, err := s.tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		return Session{}, apperrors.Internal("issue token", err)
	}
	return Session{User: u, Token: token, ExpiresAt: expires}, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}
