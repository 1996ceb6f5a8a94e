package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Product represents a catalog product with variant axes
type Product struct {
	ID        int64          `db:"id" json:"id"`
	SellerID  int64          `db:"seller_id" json:"seller_id"`
	Name      string         `db:"name" json:"name"`
	Price     int64          `db:"price" json:"price"`
	Stock     int            `db:"stock" json:"stock"`
	Discount  int            `db:"discount" json:"discount"`
	Colors    pq.StringArray `db:"colors" json:"colors"`
	Sizes     pq.StringArray `db:"sizes" json:"sizes"`
	Unit      string         `db:"unit" json:"unit"`
	Published bool           `db:"published" json:"published"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// DiscountedPrice returns the unit price after applying the percent discount.
func (p *Product) DiscountedPrice() int64 {
	return p.Price - p.Price*int64(p.Discount)/100
}

// Cart holds a user's draft selection. One cart per user.
type Cart struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	Items     []CartItem `db:"-" json:"items"`
}

// CartItem is one line in a cart, keyed by (product, size, color)
type CartItem struct {
	ID        int64  `db:"id" json:"id"`
	CartID    int64  `db:"cart_id" json:"-"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Quantity  int    `db:"quantity" json:"quantity"`
	Size      string `db:"size" json:"size"`
	Color     string `db:"color" json:"color"`
}

// Order is an immutable purchase snapshot with a status lifecycle
type Order struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	TotalAmount     int64     `db:"total_amount" json:"total_amount"`
	ShippingAddress string    `db:"shipping_address" json:"shipping_address"`
	ShippingMethod  string    `db:"shipping_method" json:"shipping_method"`
	ShippingCost    int64     `db:"shipping_cost" json:"shipping_cost"`
	PaymentMethod   string    `db:"payment_method" json:"payment_method"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem snapshots a cart line at checkout time. Prices are copied so
// later catalog edits never touch existing orders.
type OrderItem struct {
	ID              int64  `db:"id" json:"id"`
	OrderID         int64  `db:"order_id" json:"order_id"`
	ProductID       int64  `db:"product_id" json:"product_id"`
	Quantity        int    `db:"quantity" json:"quantity"`
	UnitPrice       int64  `db:"unit_price" json:"unit_price"`
	Discount        int    `db:"discount" json:"discount"`
	DiscountedPrice int64  `db:"discounted_price" json:"discounted_price"`
	Size            string `db:"size" json:"size"`
	Color           string `db:"color" json:"color"`
	Unit            string `db:"unit" json:"unit"`
}

// Stock change types
const (
	StockChangeSale       = "sale"
	StockChangeAddition   = "addition"
	StockChangeCorrection = "correction"
)

// StockHistory is an append-only audit record for every stock-affecting event
type StockHistory struct {
	ID            int64         `db:"id" json:"id"`
	ProductID     int64         `db:"product_id" json:"product_id"`
	Size          string        `db:"size" json:"size"`
	Color         string        `db:"color" json:"color"`
	ChangeType    string        `db:"change_type" json:"change_type"`
	QuantityDelta int           `db:"quantity_delta" json:"quantity_delta"`
	StockAfter    int           `db:"stock_after" json:"stock_after"`
	OrderID       sql.NullInt64 `db:"order_id" json:"order_id,omitempty"`
	UserID        sql.NullInt64 `db:"user_id" json:"user_id,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// VisitorDay holds one day of visitor counters
type VisitorDay struct {
	Date    string `json:"date"`
	Hits    int64  `json:"hits"`
	Uniques int64  `json:"uniques"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
