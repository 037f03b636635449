package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-gateway/internal/models"
	"order-gateway/internal/store"
	"order-gateway/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PipelineRepository is the slice of the store the task handlers need
type PipelineRepository interface {
	GetDefaultAddress(ctx context.Context, userID uuid.UUID) (*models.Address, error)
	GetDefaultCard(ctx context.Context, userID uuid.UUID) (*models.Card, error)
	FinalizeOrder(ctx context.Context, f store.Finalization) (bool, error)
	TransitionOrder(ctx context.Context, id int64, from, to models.OrderStatus, hook store.TransitionHook) (bool, error)
	UpdateOrderPayment(ctx context.Context, id int64, addressID, cardID *int64) (bool, error)
}

// OrderPipeline executes the deferred order lifecycle steps
type OrderPipeline struct {
	repo      PipelineRepository
	publisher TaskPublisher
	capturer  Capturer
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrderPipeline creates a new order pipeline
func NewOrderPipeline(repo PipelineRepository, publisher TaskPublisher, capturer Capturer) *OrderPipeline {
	return &OrderPipeline{
		repo:      repo,
		publisher: publisher,
		capturer:  capturer,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// WithClock replaces the clock used to date finalized orders
func (p *OrderPipeline) WithClock(now func() time.Time) *OrderPipeline {
	p.now = now
	return p
}

// HandleCreateOrder stamps the user's default address and card onto the
// order shell, upserts its items and schedules settlement.
func (p *OrderPipeline) HandleCreateOrder(ctx context.Context, task *models.Task, payload *models.CreateOrderPayload) error {
	ctx, span := util.StartSpan(ctx, "OrderPipeline.HandleCreateOrder")
	defer span.End()

	logger := util.TaskLogger(task.TaskID, task.TaskType).With(zap.Int64("order_id", payload.OrderID))

	address, err := p.repo.GetDefaultAddress(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve default address: %w", err)
	}
	card, err := p.repo.GetDefaultCard(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve default card: %w", err)
	}

	applied, err := p.repo.FinalizeOrder(ctx, store.Finalization{
		TaskID:    task.TaskID,
		OrderID:   payload.OrderID,
		AddressID: address.ID,
		CardID:    card.ID,
		Date:      p.now(),
		Items:     payload.Items,
	})
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to finalize order: %w", err)
	}

	if applied {
		util.OrdersFinalizedTotal.Inc()
		logger.Info("Order finalized",
			zap.Int64("address_id", address.ID),
			zap.Int64("card_id", card.ID),
			zap.Int("items", len(payload.Items)))
	} else {
		logger.Info("Order already finalized or no longer NEW")
	}

	if err := p.publisher.PublishSettleOrder(ctx, &models.SettleOrderPayload{OrderID: payload.OrderID}); err != nil {
		return fmt.Errorf("failed to schedule settlement: %w", err)
	}

	return nil
}

// HandleSettleOrder advances a NEW order to CREATED once the capture step
// accepts it. Orders already past NEW are left alone.
func (p *OrderPipeline) HandleSettleOrder(ctx context.Context, task *models.Task, payload *models.SettleOrderPayload) error {
	ctx, span := util.StartSpan(ctx, "OrderPipeline.HandleSettleOrder")
	defer span.End()

	logger := util.TaskLogger(task.TaskID, task.TaskType).With(zap.Int64("order_id", payload.OrderID))

	applied, err := p.repo.TransitionOrder(ctx, payload.OrderID,
		models.OrderStatusNew, models.OrderStatusCreated, p.capturer.Capture)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to settle order: %w", err)
	}

	if !applied {
		util.TransitionsSkippedTotal.WithLabelValues(string(models.OrderStatusCreated)).Inc()
		logger.Info("Settlement skipped, order already left NEW")
		return nil
	}

	util.OrdersSettledTotal.Inc()
	logger.Info("Order settled")
	return nil
}

// HandleUpdateOrder applies an address and/or card change to a NEW order
func (p *OrderPipeline) HandleUpdateOrder(ctx context.Context, task *models.Task, payload *models.UpdateOrderPayload) error {
	ctx, span := util.StartSpan(ctx, "OrderPipeline.HandleUpdateOrder")
	defer span.End()

	logger := util.TaskLogger(task.TaskID, task.TaskType).With(zap.Int64("order_id", payload.OrderID))

	applied, err := p.repo.UpdateOrderPayment(ctx, payload.OrderID, payload.AddressID, payload.CardID)
	if err != nil {
		util.RecordError(span, err)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("order %d vanished: %w", payload.OrderID, err)
		}
		return fmt.Errorf("failed to update order: %w", err)
	}

	if !applied {
		util.TransitionsSkippedTotal.WithLabelValues("UPDATE").Inc()
		logger.Info("Update skipped, order already left NEW")
		return nil
	}

	logger.Info("Order payment details updated")
	return nil
}

// HandleCancelOrder cancels a NEW order. Orders past NEW stay as they are.
func (p *OrderPipeline) HandleCancelOrder(ctx context.Context, task *models.Task, payload *models.CancelOrderPayload) error {
	ctx, span := util.StartSpan(ctx, "OrderPipeline.HandleCancelOrder")
	defer span.End()

	logger := util.TaskLogger(task.TaskID, task.TaskType).With(zap.Int64("order_id", payload.OrderID))

	applied, err := p.repo.TransitionOrder(ctx, payload.OrderID,
		models.OrderStatusNew, models.OrderStatusCanceled, nil)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	if !applied {
		util.TransitionsSkippedTotal.WithLabelValues(string(models.OrderStatusCanceled)).Inc()
		logger.Info("Cancellation skipped, order already left NEW")
		return nil
	}

	util.OrdersCanceledTotal.Inc()
	logger.Info("Order canceled")
	return nil
}
