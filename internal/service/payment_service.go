package service

import (
	"context"

	"order-gateway/internal/models"
	"order-gateway/internal/util"

	"go.uber.org/zap"
)

// Capturer takes payment for an order while its row is locked for settlement.
// An error leaves the order NEW.
type Capturer interface {
	Capture(ctx context.Context, order *models.Order) error
}

// PaymentService is the default Capturer. Card capture is not integrated yet,
// so every settlement is accepted.
type PaymentService struct {
	logger *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService() *PaymentService {
	return &PaymentService{logger: util.GetLogger()}
}

// Capture implements Capturer
func (ps *PaymentService) Capture(ctx context.Context, order *models.Order) error {
	_, span := util.StartSpan(ctx, "PaymentService.Capture")
	defer span.End()

	var cardID int64
	if order.CardID != nil {
		cardID = *order.CardID
	}
	ps.logger.Info("Payment accepted",
		zap.Int64("order_id", order.ID),
		zap.Int64("card_id", cardID),
		zap.Int64("amount", order.TotalPrice))
	return nil
}
