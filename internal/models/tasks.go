package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task types
const (
	TaskTypeCreateOrder = "CREATE_ORDER"
	TaskTypeSettleOrder = "SETTLE_ORDER"
	TaskTypeUpdateOrder = "UPDATE_ORDER"
	TaskTypeCancelOrder = "CANCEL_ORDER"
)

// Task is the envelope every pipeline message travels in. Payloads carry
// plain ids and flat data only.
type Task struct {
	TaskID     string          `json:"task_id"`
	TaskType   string          `json:"task_type"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	NotBefore  time.Time       `json:"not_before,omitempty"`
	Attempt    int             `json:"attempt"`
	Payload    json.RawMessage `json:"payload"`
}

// CreateOrderPayload finalizes an order shell
type CreateOrderPayload struct {
	OrderID int64      `json:"order_id"`
	UserID  uuid.UUID  `json:"user_id"`
	Items   []ItemData `json:"items"`
}

// SettleOrderPayload is delivered after the processing delay
type SettleOrderPayload struct {
	OrderID int64 `json:"order_id"`
}

// UpdateOrderPayload changes delivery address and/or payment card
type UpdateOrderPayload struct {
	OrderID   int64  `json:"order_id"`
	AddressID *int64 `json:"address_id,omitempty"`
	CardID    *int64 `json:"card_id,omitempty"`
}

// CancelOrderPayload cancels a NEW order
type CancelOrderPayload struct {
	OrderID int64 `json:"order_id"`
}

// ItemData represents item data in tasks
type ItemData struct {
	Article    string `json:"article"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	ShopID     int64  `json:"shop_id"`
	Quantity   int    `json:"quantity"`
	TotalPrice int64  `json:"total_price"`
	Discount   int64  `json:"discount"`
}
