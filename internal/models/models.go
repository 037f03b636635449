package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform customer identified by phone
type User struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Phone    string    `db:"phone" json:"phone"`
	Name     string    `db:"name" json:"name"`
	Lastname string    `db:"lastname" json:"lastname"`
	Birthday *Date     `db:"birthday" json:"birthday"`
	Email    *string   `db:"email" json:"email"`
	IsAdmin  bool      `db:"is_admin" json:"-"`
}

// Address represents a delivery address owned by a user
type Address struct {
	ID        int64      `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"-"`
	City      string     `db:"city" json:"city"`
	Address   string     `db:"address" json:"address"`
	Floor     string     `db:"floor" json:"floor"`
	Apartment string     `db:"apartment" json:"apartment"`
	IsDefault bool       `db:"is_default" json:"is_default"`
	Comment   string     `db:"comment" json:"comment"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Card represents a payment card owned by a user
type Card struct {
	ID        int64      `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"-"`
	Number    string     `db:"number" json:"number"`
	IsDefault bool       `db:"is_default" json:"is_default"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Shop represents a partner shop orders are placed with
type Shop struct {
	ID          int64         `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	SiteURL     string        `db:"site_url" json:"site_url"`
	APIEndpoint string        `db:"api_endpoint" json:"api_endpoint"`
	APIKey      string        `db:"api_key" json:"api_key,omitempty"`
	UserID      uuid.NullUUID `db:"user_id" json:"-"`
	IsActive    bool          `db:"is_active" json:"is_active"`
	DeletedAt   *time.Time    `db:"deleted_at" json:"-"`
}

// Order represents a customer order. AddressID, CardID and Date stay
// empty until the create task finalizes the order shell.
type Order struct {
	ID            int64       `db:"id" json:"id"`
	Number        int64       `db:"number" json:"number"`
	Status        OrderStatus `db:"status" json:"status"`
	TotalPrice    int64       `db:"total_price" json:"total_price"`
	OrderSum      int64       `db:"order_sum" json:"order_sum"`
	DeliveryPrice int64       `db:"delivery_price" json:"delivery_price"`
	Discount      int64       `db:"discount" json:"discount"`
	UserID        uuid.UUID   `db:"user_id" json:"-"`
	ShopID        int64       `db:"shop_id" json:"shop_id"`
	AddressID     *int64      `db:"address_id" json:"address_id"`
	CardID        *int64      `db:"card_id" json:"card_id"`
	Date          *time.Time  `db:"date" json:"date"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`

	Shop  *Shop  `db:"-" json:"shop,omitempty"`
	Items []Item `db:"-" json:"items"`
}

// Item represents a purchased article within an order
type Item struct {
	ID         int64  `db:"id" json:"id"`
	OrderID    int64  `db:"order_id" json:"-"`
	ShopID     int64  `db:"shop_id" json:"shop_id"`
	Article    string `db:"article" json:"article"`
	Name       string `db:"name" json:"name"`
	Price      int64  `db:"price" json:"price"`
	Quantity   int    `db:"quantity" json:"quantity"`
	TotalPrice int64  `db:"total_price" json:"total_price"`
	Discount   int64  `db:"discount" json:"discount"`
}

// ActiveSession records one issued access/refresh token pair
type ActiveSession struct {
	ID               int64     `db:"id" json:"-"`
	UserID           uuid.UUID `db:"user_id" json:"-"`
	AccessID         string    `db:"access_id" json:"access_id"`
	AccessExpiresAt  int64     `db:"access_expires_at" json:"access_expires_at"`
	RefreshID        string    `db:"refresh_id" json:"refresh_id"`
	RefreshExpiresAt int64     `db:"refresh_expires_at" json:"refresh_expires_at"`
	UserAgent        string    `db:"user_agent" json:"user_agent"`
	Agent            string    `db:"agent" json:"agent"`
	Platform         string    `db:"platform" json:"platform"`
	Region           string    `db:"region" json:"region"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ProcessedTask for idempotency
type ProcessedTask struct {
	TaskID      string    `db:"task_id"`
	TaskType    string    `db:"task_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// OrderPage is one page of a user's order history
type OrderPage struct {
	HasOrders bool    `json:"has_orders"`
	Count     int     `json:"count"`
	Page      int     `json:"page"`
	Pages     int     `json:"pages"`
	Orders    []Order `json:"orders"`
}
