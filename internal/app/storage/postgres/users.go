package postgres

import (
	"context"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
)

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = newID()
	}
	u.Email = user.NormalizeEmail(u.Email)
	ts := now()
	u.CreatedAt = ts
	u.UpdatedAt = ts

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :email, :password_hash, :role, :created_at, :updated_at)
	`, u)
	if err != nil {
		return user.User{}, mapError(err, "user", u.Email)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return u, mapError(err, "user", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email))
	return u, mapError(err, "user", email)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var result []user.User
	err := s.db.SelectContext(ctx, &result, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	return result, err
}
