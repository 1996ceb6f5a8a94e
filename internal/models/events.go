package models

import "time"

// Event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeStockAdjusted      = "STOCK_ADJUSTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after checkout commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount int64           `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published on every lifecycle transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	UserID    int64  `json:"user_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// StockAdjustedEvent published on admin stock additions/corrections
type StockAdjustedEvent struct {
	BaseEvent
	ProductID  int64  `json:"product_id"`
	Delta      int    `json:"delta"`
	StockAfter int    `json:"stock_after"`
	ChangeType string `json:"change_type"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID       int64  `json:"product_id"`
	Quantity        int    `json:"quantity"`
	DiscountedPrice int64  `json:"discounted_price"`
	Size            string `json:"size"`
	Color           string `json:"color"`
}
