package store

import (
	"context"
	"fmt"

	"order-gateway/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const cardColumns = `id, user_id, number, is_default, deleted_at`

// ListCards returns the user's cards, default first
func (s *Store) ListCards(ctx context.Context, userID uuid.UUID) ([]models.Card, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	cards := []models.Card{}
	err := s.db.SelectContext(ctx, &cards,
		`SELECT `+cardColumns+` FROM cards
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY is_default DESC, id`, userID)
	return cards, err
}

// GetCard retrieves a card owned by userID
func (s *Store) GetCard(ctx context.Context, userID uuid.UUID, id int64) (*models.Card, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var card models.Card
	err := s.db.GetContext(ctx, &card,
		`SELECT `+cardColumns+` FROM cards
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &card, nil
}

// GetDefaultCard retrieves the user's default card
func (s *Store) GetDefaultCard(ctx context.Context, userID uuid.UUID) (*models.Card, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var card models.Card
	err := s.db.GetContext(ctx, &card,
		`SELECT `+cardColumns+` FROM cards
		 WHERE user_id = $1 AND is_default AND deleted_at IS NULL
		 ORDER BY id DESC LIMIT 1`, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &card, nil
}

// CreateCard inserts a card, clearing the previous default when needed
func (s *Store) CreateCard(ctx context.Context, card *models.Card) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if card.IsDefault {
			if err := clearDefault(ctx, tx, "cards", card.UserID, 0); err != nil {
				return err
			}
		}
		err := tx.GetContext(ctx, &card.ID,
			`INSERT INTO cards (user_id, number, is_default) VALUES ($1, $2, $3) RETURNING id`,
			card.UserID, card.Number, card.IsDefault)
		if err != nil {
			return fmt.Errorf("failed to create card: %w", err)
		}
		return nil
	})
}

// UpdateCard saves all mutable fields of a card
func (s *Store) UpdateCard(ctx context.Context, card *models.Card) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if card.IsDefault {
			if err := clearDefault(ctx, tx, "cards", card.UserID, card.ID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE cards SET number = $1, is_default = $2
			 WHERE id = $3 AND user_id = $4 AND deleted_at IS NULL`,
			card.Number, card.IsDefault, card.ID, card.UserID)
		if err != nil {
			return fmt.Errorf("failed to update card: %w", err)
		}
		return requireAffected(res)
	})
}

// DeleteCard soft-deletes a card
func (s *Store) DeleteCard(ctx context.Context, userID uuid.UUID, id int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE cards SET deleted_at = NOW(), is_default = FALSE
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return requireAffected(res)
}
