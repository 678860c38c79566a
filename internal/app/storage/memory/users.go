package memory

import (
	"context"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Email = user.NormalizeEmail(u.Email)
	if _, exists := s.usersByEmail[u.Email]; exists {
		return user.User{}, apperrors.AlreadyExists("email is already registered")
	}
	if u.ID == "" {
		u.ID = newID()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, apperrors.AlreadyExists("user " + u.ID + " already exists")
	}
	ts := now()
	u.CreatedAt = ts
	u.UpdatedAt = ts

	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, apperrors.NotFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, apperrors.NotFound("user", email)
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sortByCreated(result, func(u user.User) time.Time { return u.CreatedAt })
	return result, nil
}
