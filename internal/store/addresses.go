package store

import (
	"context"
	"fmt"

	"order-gateway/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const addressColumns = `id, user_id, city, address, floor, apartment, is_default, comment, deleted_at`

// ListAddresses returns the user's addresses, default first
func (s *Store) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	addresses := []models.Address{}
	err := s.db.SelectContext(ctx, &addresses,
		`SELECT `+addressColumns+` FROM addresses
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY is_default DESC, id`, userID)
	return addresses, err
}

// GetAddress retrieves an address owned by userID
func (s *Store) GetAddress(ctx context.Context, userID uuid.UUID, id int64) (*models.Address, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var address models.Address
	err := s.db.GetContext(ctx, &address,
		`SELECT `+addressColumns+` FROM addresses
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &address, nil
}

// GetDefaultAddress retrieves the user's default address
func (s *Store) GetDefaultAddress(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var address models.Address
	err := s.db.GetContext(ctx, &address,
		`SELECT `+addressColumns+` FROM addresses
		 WHERE user_id = $1 AND is_default AND deleted_at IS NULL
		 ORDER BY id DESC LIMIT 1`, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &address, nil
}

// CreateAddress inserts an address, clearing the previous default when needed
func (s *Store) CreateAddress(ctx context.Context, address *models.Address) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if address.IsDefault {
			if err := clearDefault(ctx, tx, "addresses", address.UserID, 0); err != nil {
				return err
			}
		}
		err := tx.GetContext(ctx, &address.ID,
			`INSERT INTO addresses (user_id, city, address, floor, apartment, is_default, comment)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			address.UserID, address.City, address.Address, address.Floor,
			address.Apartment, address.IsDefault, address.Comment)
		if err != nil {
			return fmt.Errorf("failed to create address: %w", err)
		}
		return nil
	})
}

// UpdateAddress saves all mutable fields of an address
func (s *Store) UpdateAddress(ctx context.Context, address *models.Address) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if address.IsDefault {
			if err := clearDefault(ctx, tx, "addresses", address.UserID, address.ID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE addresses SET city = $1, address = $2, floor = $3, apartment = $4,
			 is_default = $5, comment = $6
			 WHERE id = $7 AND user_id = $8 AND deleted_at IS NULL`,
			address.City, address.Address, address.Floor, address.Apartment,
			address.IsDefault, address.Comment, address.ID, address.UserID)
		if err != nil {
			return fmt.Errorf("failed to update address: %w", err)
		}
		return requireAffected(res)
	})
}

// DeleteAddress soft-deletes an address
func (s *Store) DeleteAddress(ctx context.Context, userID uuid.UUID, id int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE addresses SET deleted_at = NOW(), is_default = FALSE
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	return requireAffected(res)
}

// clearDefault drops the default flag on the user's other rows of table
func clearDefault(ctx context.Context, tx *sqlx.Tx, table string, userID uuid.UUID, exceptID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET is_default = FALSE
		 WHERE user_id = $1 AND id <> $2 AND is_default AND deleted_at IS NULL`,
		userID, exceptID)
	if err != nil {
		return fmt.Errorf("failed to reset default in %s: %w", table, err)
	}
	return nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireAffected(res rowsAffecter) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
