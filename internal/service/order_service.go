package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles checkout and the order status lifecycle
type OrderService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store *store.Store, eventPublisher *broker.EventPublisher) *OrderService {
	return &OrderService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CheckoutRequest represents a checkout request
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"required"`
	ShippingMethod  string `json:"shipping_method"`
	ShippingCost    int64  `json:"shipping_cost" binding:"min=0"`
	PaymentMethod   string `json:"payment_method" binding:"required"`
}

// OrderResponse bundles an order with its item snapshots
type OrderResponse struct {
	Order *models.Order      `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// Checkout converts the user's cart into a pending order. The whole
// operation runs inside one database transaction; the cart is gone and
// stock is decremented if and only if the order exists.
func (s *OrderService) Checkout(ctx context.Context, userID int64, req *CheckoutRequest) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Checkout")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	order, items, err := s.store.CheckoutTx(ctx, userID, store.CheckoutInput{
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  req.ShippingMethod,
		ShippingCost:    req.ShippingCost,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues(checkoutFailReason(err)).Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.Int64("total_amount", order.TotalAmount))

	if s.eventPublisher != nil {
		eventItems := make([]models.OrderItemData, 0, len(items))
		for _, item := range items {
			eventItems = append(eventItems, models.OrderItemData{
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				DiscountedPrice: item.DiscountedPrice,
				Size:            item.Size,
				Color:           item.Color,
			})
		}

		event := &models.OrderPlacedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderPlaced,
				Timestamp: time.Now(),
			},
			OrderID:     order.ID,
			UserID:      userID,
			TotalAmount: order.TotalAmount,
			Items:       eventItems,
		}
		if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
		}
	}

	return &OrderResponse{Order: order, Items: items}, nil
}

// Get retrieves an order. Non-owners without the admin role get NotFound
// rather than Forbidden so order ids are not probeable.
func (s *OrderService) Get(ctx context.Context, orderID, userID int64, isAdmin bool) (*OrderResponse, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && !isAdmin {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResponse{Order: order, Items: items}, nil
}

// ListByUser retrieves the caller's orders, newest first
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}

// Pay moves an owner's order from Pending to Paid. Any other current
// status is an invalid transition.
func (s *OrderService) Pay(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Pay")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("pay from %s: %w", order.Status, models.ErrInvalidTransition)
	}

	updated, err := s.transition(ctx, order, models.OrderStatusPaid)
	if err != nil {
		return nil, err
	}

	util.OrdersPaidTotal.Inc()
	return updated, nil
}

// SetStatus moves an order to any status allowed by the lifecycle table.
// Admin only; enforced at the route layer.
func (s *OrderService) SetStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SetStatus")
	defer span.End()

	if !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("unknown status %q: %w", status, models.ErrValidation)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, order, status)
}

func (s *OrderService) transition(ctx context.Context, order *models.Order, newStatus string) (*models.Order, error) {
	updated, err := s.store.TransitionOrderStatus(ctx, order.ID, newStatus)
	if err != nil {
		return nil, err
	}

	util.OrderTransitionsTotal.WithLabelValues(newStatus).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", order.Status),
		zap.String("to", newStatus))

	if s.eventPublisher != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: time.Now(),
			},
			OrderID:   order.ID,
			UserID:    order.UserID,
			OldStatus: order.Status,
			NewStatus: newStatus,
		}
		if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}

	return updated, nil
}

func checkoutFailReason(err error) string {
	switch {
	case errors.Is(err, models.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrNotFound):
		return "product_missing"
	default:
		return "db_error"
	}
}
