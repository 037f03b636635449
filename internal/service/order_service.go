package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"order-gateway/internal/apperr"
	"order-gateway/internal/models"
	"order-gateway/internal/store"
	"order-gateway/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPerPage   = 10
	maxPerPage       = 100
	filterDateLayout = "02.01.2006"
)

// OrderRepository is the slice of the store the order service needs
type OrderRepository interface {
	GetShop(ctx context.Context, id int64) (*models.Shop, error)
	GetOrCreateOrderShell(ctx context.Context, order *models.Order) (*models.Order, bool, error)
	GetOrder(ctx context.Context, userID uuid.UUID, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int, error)
	CountUserOrders(ctx context.Context, userID uuid.UUID) (int, error)
	GetAddress(ctx context.Context, userID uuid.UUID, id int64) (*models.Address, error)
	GetCard(ctx context.Context, userID uuid.UUID, id int64) (*models.Card, error)
	GetDefaultAddress(ctx context.Context, userID uuid.UUID) (*models.Address, error)
	GetDefaultCard(ctx context.Context, userID uuid.UUID) (*models.Card, error)
}

// TaskPublisher enqueues pipeline tasks
type TaskPublisher interface {
	PublishCreateOrder(ctx context.Context, payload *models.CreateOrderPayload) error
	PublishSettleOrder(ctx context.Context, payload *models.SettleOrderPayload) error
	PublishUpdateOrder(ctx context.Context, payload *models.UpdateOrderPayload) error
	PublishCancelOrder(ctx context.Context, payload *models.CancelOrderPayload) error
}

// OrderService handles order business logic on the request path
type OrderService struct {
	repo      OrderRepository
	publisher TaskPublisher
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(repo OrderRepository, publisher TaskPublisher) *OrderService {
	return &OrderService{
		repo:      repo,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Number        int64              `json:"number" binding:"required"`
	OrderSum      int64              `json:"order_sum" binding:"gte=0"`
	TotalPrice    int64              `json:"total_price" binding:"gte=0"`
	DeliveryPrice int64              `json:"delivery_price" binding:"gte=0"`
	Discount      int64              `json:"discount" binding:"gte=0"`
	ShopID        int64              `json:"shop_id" binding:"required"`
	Items         []OrderItemRequest `json:"items" binding:"required,dive"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	Article    string `json:"article" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Price      int64  `json:"price" binding:"gte=0"`
	ShopID     int64  `json:"shop_id"`
	Quantity   int    `json:"quantity" binding:"gte=1"`
	TotalPrice int64  `json:"total_price" binding:"gte=0"`
	Discount   int64  `json:"discount" binding:"gte=0"`
}

// UpdateOrderRequest is a client-side order change. Status may only be CANCELED.
type UpdateOrderRequest struct {
	Status    *string `json:"status"`
	AddressID *int64  `json:"address_id"`
	CardID    *int64  `json:"card_id"`
}

// ListOrdersQuery holds the order history filters
type ListOrdersQuery struct {
	Page     int    `form:"page"`
	PerPage  int    `form:"per_page"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
}

// CreateOrder persists the order shell for req.Number, or reuses the existing
// one, and hands it to the pipeline. Missing defaults leave the shell in
// place and are reported together with its id.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req *CreateOrderRequest) (int64, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if _, err := s.repo.GetShop(ctx, req.ShopID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.OrdersRejectedTotal.WithLabelValues("shop_not_found").Inc()
			return 0, apperr.ErrShopNotFound
		}
		return 0, fmt.Errorf("failed to get shop: %w", err)
	}

	order, created, err := s.repo.GetOrCreateOrderShell(ctx, &models.Order{
		Number:        req.Number,
		TotalPrice:    req.TotalPrice,
		OrderSum:      req.OrderSum,
		DeliveryPrice: req.DeliveryPrice,
		Discount:      req.Discount,
		UserID:        userID,
		ShopID:        req.ShopID,
	})
	if err != nil {
		util.RecordError(span, err)
		return 0, fmt.Errorf("failed to create order: %w", err)
	}

	if created {
		util.OrdersCreatedTotal.Inc()
		s.logger.Info("Order shell created",
			zap.Int64("order_id", order.ID),
			zap.Int64("number", order.Number))
	} else {
		s.logger.Info("Duplicate order request detected",
			zap.Int64("number", req.Number),
			zap.Int64("order_id", order.ID),
			zap.String("status", order.Status.String()))
	}

	if !order.Status.Editable() {
		return order.ID, nil
	}

	if _, err := s.repo.GetDefaultAddress(ctx, userID); err != nil {
		return 0, s.missingDefault(err, apperr.ErrDefaultAddressMissing, order.ID)
	}
	if _, err := s.repo.GetDefaultCard(ctx, userID); err != nil {
		return 0, s.missingDefault(err, apperr.ErrDefaultCardMissing, order.ID)
	}

	payload := &models.CreateOrderPayload{
		OrderID: order.ID,
		UserID:  userID,
		Items:   make([]models.ItemData, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		payload.Items = append(payload.Items, models.ItemData{
			Article:    item.Article,
			Name:       item.Name,
			Price:      item.Price,
			ShopID:     item.ShopID,
			Quantity:   item.Quantity,
			TotalPrice: item.TotalPrice,
			Discount:   item.Discount,
		})
	}

	if err := s.publisher.PublishCreateOrder(ctx, payload); err != nil {
		s.logger.Error("Failed to enqueue create order task",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		util.RecordError(span, err)
		return 0, fmt.Errorf("failed to enqueue order: %w", err)
	}

	return order.ID, nil
}

func (s *OrderService) missingDefault(err error, missing *apperr.Error, orderID int64) error {
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to resolve defaults: %w", err)
	}
	util.OrdersRejectedTotal.WithLabelValues("default_missing").Inc()
	return missing.With("order_id", orderID)
}

// GetOrder retrieves an order owned by userID
func (s *OrderService) GetOrder(ctx context.Context, userID uuid.UUID, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrder(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// UpdateOrder validates a client change against the order state and enqueues
// the resulting update and/or cancel tasks. The caller does not wait for them.
func (s *OrderService) UpdateOrder(ctx context.Context, userID uuid.UUID, orderID int64, req *UpdateOrderRequest) error {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder")
	defer span.End()

	if req.Status != nil && models.OrderStatus(*req.Status) != models.OrderStatusCanceled {
		return apperr.ErrChangesNotAllowed
	}

	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if !order.Status.Editable() {
		return apperr.ErrChangesNotAllowed
	}

	if req.AddressID != nil {
		if _, err := s.repo.GetAddress(ctx, userID, *req.AddressID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.ErrAddressNotFound
			}
			return fmt.Errorf("failed to get address: %w", err)
		}
	}
	if req.CardID != nil {
		if _, err := s.repo.GetCard(ctx, userID, *req.CardID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.ErrCardNotFound
			}
			return fmt.Errorf("failed to get card: %w", err)
		}
	}

	if req.AddressID != nil || req.CardID != nil {
		err := s.publisher.PublishUpdateOrder(ctx, &models.UpdateOrderPayload{
			OrderID:   orderID,
			AddressID: req.AddressID,
			CardID:    req.CardID,
		})
		if err != nil {
			return fmt.Errorf("failed to enqueue order update: %w", err)
		}
	}

	if req.Status != nil {
		if err := s.publisher.PublishCancelOrder(ctx, &models.CancelOrderPayload{OrderID: orderID}); err != nil {
			return fmt.Errorf("failed to enqueue order cancel: %w", err)
		}
		s.logger.Info("Order cancellation requested", zap.Int64("order_id", orderID))
	}

	return nil
}

// ListOrders returns a page of the user's orders. Date bounds are whole local
// calendar days, both inclusive.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, q *ListOrdersQuery) (*models.OrderPage, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	page, perPage := q.Page, q.PerPage
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = defaultPerPage
	}
	if page < 0 || perPage < 0 {
		return nil, apperr.ErrWrongPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page-1 > math.MaxInt32/perPage {
		return nil, apperr.ErrWrongPage
	}

	filter := store.OrderFilter{
		UserID: userID,
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if q.DateFrom != "" {
		from, err := parseFilterDate(q.DateFrom)
		if err != nil {
			return nil, err
		}
		filter.From = &from
	}
	if q.DateTo != "" {
		to, err := parseFilterDate(q.DateTo)
		if err != nil {
			return nil, err
		}
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}

	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	all, err := s.repo.CountUserOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	return &models.OrderPage{
		HasOrders: all > 0,
		Count:     total,
		Page:      page,
		Pages:     int(math.Ceil(float64(total) / float64(perPage))),
		Orders:    orders,
	}, nil
}

func parseFilterDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(filterDateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, apperr.ErrWrongDateFormat
	}
	return t, nil
}
