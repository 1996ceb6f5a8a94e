package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// CartLocker serializes cart mutations per user, typically backed by Redis.
type CartLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// CartService implements the per-user cart aggregate
type CartService struct {
	store   *store.Store
	locker  CartLocker
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store, locker CartLocker, lockTTL time.Duration) *CartService {
	return &CartService{
		store:   store,
		locker:  locker,
		lockTTL: lockTTL,
		logger:  util.GetLogger(),
	}
}

// CartItemRequest carries add/update fields for a cart line
type CartItemRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// Get returns the user's cart, creating an empty one on first access
func (s *CartService) Get(ctx context.Context, userID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Get")
	defer span.End()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return s.store.CreateCart(ctx, userID)
	}
	return cart, nil
}

// AddItem appends a line or accumulates quantity on the matching
// (product, size, color) line, bounded by the product's current stock.
func (s *CartService) AddItem(ctx context.Context, userID int64, req *CartItemRequest) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", models.ErrValidation)
	}

	unlock := s.lockUser(ctx, userID)
	defer unlock()

	product, err := s.store.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindCartItem(ctx, cart.ID, req.ProductID, req.Size, req.Color)
	if err != nil {
		return nil, err
	}

	newQty := req.Quantity
	if existing != nil {
		newQty += existing.Quantity
	}
	if newQty > product.Stock {
		util.CartStockRejectionsTotal.Inc()
		return nil, fmt.Errorf("product %q (stock %d, requested %d): %w",
			product.Name, product.Stock, newQty, models.ErrStockExceeded)
	}

	if existing != nil {
		err = s.store.UpdateCartItemQuantity(ctx, existing.ID, newQty)
	} else {
		err = s.store.InsertCartItem(ctx, &models.CartItem{
			CartID:    cart.ID,
			ProductID: req.ProductID,
			Quantity:  newQty,
			Size:      req.Size,
			Color:     req.Color,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist cart item: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	return s.finishMutation(ctx, userID, cart.ID)
}

// UpdateItem sets the quantity of an existing line directly (not additive)
func (s *CartService) UpdateItem(ctx context.Context, userID int64, req *CartItemRequest) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItem")
	defer span.End()

	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", models.ErrValidation)
	}

	unlock := s.lockUser(ctx, userID)
	defer unlock()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart: %w", models.ErrNotFound)
	}

	item, err := s.store.FindCartItem(ctx, cart.ID, req.ProductID, req.Size, req.Color)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("cart item: %w", models.ErrNotFound)
	}

	product, err := s.store.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if req.Quantity > product.Stock {
		util.CartStockRejectionsTotal.Inc()
		return nil, fmt.Errorf("product %q (stock %d, requested %d): %w",
			product.Name, product.Stock, req.Quantity, models.ErrStockExceeded)
	}

	if err := s.store.UpdateCartItemQuantity(ctx, item.ID, req.Quantity); err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("update").Inc()
	return s.finishMutation(ctx, userID, cart.ID)
}

// RemoveItem removes the matching line. A missing cart or line is NotFound;
// this mirrors clear-all deliberately not failing (see Clear).
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64, size, color string) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	unlock := s.lockUser(ctx, userID)
	defer unlock()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart: %w", models.ErrNotFound)
	}

	item, err := s.store.FindCartItem(ctx, cart.ID, productID, size, color)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("cart item: %w", models.ErrNotFound)
	}

	if err := s.store.DeleteCartItem(ctx, item.ID); err != nil {
		return nil, fmt.Errorf("failed to delete cart item: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	return s.finishMutation(ctx, userID, cart.ID)
}

// Clear empties the cart. Succeeds even when no cart exists.
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	unlock := s.lockUser(ctx, userID)
	defer unlock()

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if cart == nil {
		return nil
	}

	if err := s.store.ClearCartItems(ctx, cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return s.store.TouchCart(ctx, cart.ID)
}

func (s *CartService) finishMutation(ctx context.Context, userID, cartID int64) (*models.Cart, error) {
	if err := s.store.TouchCart(ctx, cartID); err != nil {
		return nil, err
	}
	return s.store.GetCartByUserID(ctx, userID)
}

// lockUser serializes mutations for one user's cart. If the lock cannot be
// taken within its TTL the mutation proceeds anyway; the stock ceiling is
// re-checked on every write, so a lost lock only risks a last-writer-wins
// quantity, not overselling.
func (s *CartService) lockUser(ctx context.Context, userID int64) func() {
	if s.locker == nil {
		return func() {}
	}

	key := fmt.Sprintf("cart:%d", userID)
	deadline := time.Now().Add(s.lockTTL)
	for {
		ok, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
		if err != nil {
			s.logger.Warn("Cart lock unavailable, proceeding unlocked",
				zap.Int64("user_id", userID), zap.Error(err))
			return func() {}
		}
		if ok {
			return func() {
				if err := s.locker.ReleaseLock(context.Background(), key); err != nil {
					s.logger.Warn("Failed to release cart lock", zap.Int64("user_id", userID), zap.Error(err))
				}
			}
		}
		if time.Now().After(deadline) {
			s.logger.Warn("Cart lock contention timeout, proceeding unlocked", zap.Int64("user_id", userID))
			return func() {}
		}
		select {
		case <-ctx.Done():
			return func() {}
		case <-time.After(50 * time.Millisecond):
		}
	}
}
