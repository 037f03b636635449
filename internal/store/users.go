package store

import (
	"context"
	"errors"
	"fmt"

	"order-gateway/internal/models"

	"github.com/google/uuid"
)

const userColumns = `id, phone, name, lastname, birthday, email, is_admin`

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var user models.User
	err := s.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByPhone retrieves a user by phone
func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var user models.User
	err := s.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetOrCreateUserByPhone registers a user on first login. A concurrent
// registration of the same phone resolves to the row that won.
func (s *Store) GetOrCreateUserByPhone(ctx context.Context, phone string) (*models.User, bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	user, err := s.GetUserByPhone(ctx, phone)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	created := models.User{ID: uuid.New(), Phone: phone}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, phone) VALUES ($1, $2)`, created.ID, created.Phone)
	if err != nil {
		if isUniqueViolation(err) {
			user, err := s.GetUserByPhone(ctx, phone)
			return user, false, err
		}
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	return &created, true, nil
}

// UpdateUser persists profile fields; phone is immutable
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = $1, lastname = $2, birthday = $3, email = $4 WHERE id = $5`,
		user.Name, user.Lastname, user.Birthday, user.Email, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
