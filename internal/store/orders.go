package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-gateway/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, number, status, total_price, order_sum, delivery_price, discount,
	user_id, shop_id, address_id, card_id, date, created_at`

const itemColumns = `id, order_id, shop_id, article, name, price, quantity, total_price, discount`

// OrderFilter selects a page of a user's orders. From is inclusive, To exclusive.
type OrderFilter struct {
	UserID uuid.UUID
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// GetOrCreateOrderShell inserts a NEW order keyed by (user, number) or returns
// the existing one. The bool reports whether a row was created.
func (s *Store) GetOrCreateOrderShell(ctx context.Context, order *models.Order) (*models.Order, bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var created models.Order
	err := s.db.GetContext(ctx, &created,
		`INSERT INTO orders (number, status, total_price, order_sum, delivery_price, discount, user_id, shop_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, number) DO NOTHING
		 RETURNING `+orderColumns,
		order.Number, string(models.OrderStatusNew), order.TotalPrice, order.OrderSum,
		order.DeliveryPrice, order.Discount, order.UserID, order.ShopID)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(notFound(err), ErrNotFound) {
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	var existing models.Order
	err = s.db.GetContext(ctx, &existing,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND number = $2`,
		order.UserID, order.Number)
	if err != nil {
		return nil, false, notFound(err)
	}
	return &existing, false, nil
}

// GetOrder retrieves an order owned by userID together with its items and shop
func (s *Store) GetOrder(ctx context.Context, userID uuid.UUID, id int64) (*models.Order, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var order models.Order
	err := s.db.GetContext(ctx, &order,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return nil, notFound(err)
	}

	orders := []models.Order{order}
	if err := s.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// CountUserOrders counts every order of the user regardless of filters
func (s *Store) CountUserOrders(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID)
	return count, err
}

// ListOrders returns one page of orders matching f and the total match count
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	conds := []string{"user_id = $1"}
	args := []interface{}{f.UserID}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, fmt.Sprintf("date < $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	orders := []models.Order{}
	pageArgs := append(args, f.Limit, f.Offset)
	err := s.db.SelectContext(ctx, &orders,
		fmt.Sprintf(`SELECT %s FROM orders WHERE %s
		 ORDER BY COALESCE(date, created_at) DESC, id DESC LIMIT $%d OFFSET $%d`,
			orderColumns, where, len(args)+1, len(args)+2),
		pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	if err := s.attachDetails(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// attachDetails loads items and shops for orders in two queries
func (s *Store) attachDetails(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	orderIDs := make([]int64, len(orders))
	shopIDs := make([]int64, 0, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
		shopIDs = append(shopIDs, o.ShopID)
	}

	var items []models.Item
	if err := s.selectIn(ctx, &items,
		`SELECT `+itemColumns+` FROM items WHERE order_id IN (?) ORDER BY id`, orderIDs); err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	byOrder := make(map[int64][]models.Item, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	shops, err := s.GetShopsByIDs(ctx, shopIDs)
	if err != nil {
		return fmt.Errorf("failed to load order shops: %w", err)
	}

	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.Item{}
		}
		orders[i].Shop = shops[orders[i].ShopID]
	}
	return nil
}

// TransitionHook runs under the order row lock before the status is written.
// Returning an error aborts the transition.
type TransitionHook func(ctx context.Context, order *models.Order) error

// TransitionOrder moves the order from one status to another atomically.
// It locks the row, and if the current status is not from it leaves the row
// untouched and reports false.
func (s *Store) TransitionOrder(ctx context.Context, id int64, from, to models.OrderStatus, hook TransitionHook) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("illegal transition %s -> %s", from, to)
	}

	applied := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var order models.Order
		err := tx.GetContext(ctx, &order,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return notFound(err)
		}

		if order.Status != from {
			return nil
		}

		if hook != nil {
			if err := hook(ctx, &order); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $1 WHERE id = $2`, string(to), id); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Finalization is what the create task stamps onto an order shell
type Finalization struct {
	TaskID    string
	OrderID   int64
	AddressID int64
	CardID    int64
	Date      time.Time
	Items     []models.ItemData
}

// FinalizeOrder records the task as processed, stamps address, card and date
// on a NEW order and upserts its items, all in one transaction. It reports
// false when the task was already processed or the order has left NEW.
func (s *Store) FinalizeOrder(ctx context.Context, f Finalization) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	applied := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		fresh, err := markTaskProcessed(ctx, tx, f.TaskID, models.TaskTypeCreateOrder)
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}

		var order models.Order
		err = tx.GetContext(ctx, &order,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, f.OrderID)
		if err != nil {
			return notFound(err)
		}
		if !order.Status.Editable() {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET address_id = $1, card_id = $2, date = $3 WHERE id = $4`,
			f.AddressID, f.CardID, f.Date, f.OrderID); err != nil {
			return fmt.Errorf("failed to finalize order: %w", err)
		}

		for _, item := range f.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO items (order_id, shop_id, article, name, price, quantity, total_price, discount)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 ON CONFLICT (order_id, shop_id, article) DO UPDATE SET
				   name = EXCLUDED.name, price = EXCLUDED.price, quantity = EXCLUDED.quantity,
				   total_price = EXCLUDED.total_price, discount = EXCLUDED.discount`,
				f.OrderID, order.ShopID, item.Article, item.Name, item.Price,
				item.Quantity, item.TotalPrice, item.Discount); err != nil {
				return fmt.Errorf("failed to upsert item %s: %w", item.Article, err)
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// UpdateOrderPayment changes address and/or card of a NEW order. Nil ids keep
// the current value. It reports false when the order has left NEW.
func (s *Store) UpdateOrderPayment(ctx context.Context, id int64, addressID, cardID *int64) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET address_id = COALESCE($1, address_id), card_id = COALESCE($2, card_id)
		 WHERE id = $3 AND status = $4`,
		addressID, cardID, id, string(models.OrderStatusNew))
	if err != nil {
		return false, fmt.Errorf("failed to update order payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}
