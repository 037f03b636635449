package store

import (
	"context"
	"errors"
	"fmt"

	"order-gateway/internal/models"

	"github.com/jmoiron/sqlx"
)

const shopColumns = `id, name, site_url, api_endpoint, api_key, user_id, is_active, deleted_at`

// ListShops returns all shops, active first
func (s *Store) ListShops(ctx context.Context) ([]models.Shop, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	shops := []models.Shop{}
	err := s.db.SelectContext(ctx, &shops,
		`SELECT `+shopColumns+` FROM shops WHERE deleted_at IS NULL
		 ORDER BY is_active DESC, id`)
	return shops, err
}

// GetShop retrieves a shop by ID
func (s *Store) GetShop(ctx context.Context, id int64) (*models.Shop, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var shop models.Shop
	err := s.db.GetContext(ctx, &shop,
		`SELECT `+shopColumns+` FROM shops WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &shop, nil
}

// GetShopsByIDs retrieves multiple shops by IDs, including deleted ones so
// historical orders still render
func (s *Store) GetShopsByIDs(ctx context.Context, ids []int64) (map[int64]*models.Shop, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	result := make(map[int64]*models.Shop, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var shops []models.Shop
	if err := s.selectIn(ctx, &shops,
		`SELECT `+shopColumns+` FROM shops WHERE id IN (?)`, ids); err != nil {
		return nil, err
	}
	for i := range shops {
		result[shops[i].ID] = &shops[i]
	}
	return result, nil
}

// GetOrCreateShop returns the live shop with the same name, site and endpoint,
// inserting shop when none exists
func (s *Store) GetOrCreateShop(ctx context.Context, shop *models.Shop) (*models.Shop, bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var created models.Shop
	err := s.db.GetContext(ctx, &created,
		`INSERT INTO shops (name, site_url, api_endpoint, api_key, user_id, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name, site_url, api_endpoint) WHERE deleted_at IS NULL DO NOTHING
		 RETURNING `+shopColumns,
		shop.Name, shop.SiteURL, shop.APIEndpoint, shop.APIKey, shop.UserID, shop.IsActive)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(notFound(err), ErrNotFound) {
		return nil, false, fmt.Errorf("failed to create shop: %w", err)
	}

	var existing models.Shop
	err = s.db.GetContext(ctx, &existing,
		`SELECT `+shopColumns+` FROM shops
		 WHERE name = $1 AND site_url = $2 AND api_endpoint = $3 AND deleted_at IS NULL`,
		shop.Name, shop.SiteURL, shop.APIEndpoint)
	if err != nil {
		return nil, false, notFound(err)
	}
	return &existing, false, nil
}

// UpdateShop saves all mutable fields of a shop
func (s *Store) UpdateShop(ctx context.Context, shop *models.Shop) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE shops SET name = $1, site_url = $2, api_endpoint = $3, is_active = $4
		 WHERE id = $5 AND deleted_at IS NULL`,
		shop.Name, shop.SiteURL, shop.APIEndpoint, shop.IsActive, shop.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update shop: %w", err)
	}
	return requireAffected(res)
}

// DeleteShop soft-deletes a shop
func (s *Store) DeleteShop(ctx context.Context, id int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE shops SET deleted_at = NOW(), is_active = FALSE
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete shop: %w", err)
	}
	return requireAffected(res)
}

// selectIn expands a single IN (?) placeholder and rebinds for postgres
func (s *Store) selectIn(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...)
}
