package store

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace-service/internal/models"
)

// GetCartByUserID retrieves a user's cart with items. Returns nil when the
// user has no cart yet.
func (s *Store) GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM carts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := s.GetCartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return &cart, nil
}

// CreateCart creates an empty cart for a user
func (s *Store) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, `
		INSERT INTO carts (user_id) VALUES ($1)
		RETURNING id, user_id, updated_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	cart.Items = []models.CartItem{}
	return &cart, nil
}

// GetCartItems retrieves all items of a cart in insertion order
func (s *Store) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY id", cartID)
	return items, err
}

// FindCartItem looks up a cart line by its (product, size, color) key.
// Returns nil when no such line exists.
func (s *Store) FindCartItem(ctx context.Context, cartID, productID int64, size, color string) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item, `
		SELECT * FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND size = $3 AND color = $4`,
		cartID, productID, size, color)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InsertCartItem appends a new line to a cart
func (s *Store) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity, size, color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.CartID, item.ProductID, item.Quantity, item.Size, item.Color)
}

// UpdateCartItemQuantity sets the quantity of an existing line
func (s *Store) UpdateCartItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2", quantity, itemID)
	return err
}

// DeleteCartItem removes a single line
func (s *Store) DeleteCartItem(ctx context.Context, itemID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1", itemID)
	return err
}

// ClearCartItems removes all lines of a cart
func (s *Store) ClearCartItems(ctx context.Context, cartID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	return err
}

// TouchCart bumps the cart's updated_at timestamp
func (s *Store) TouchCart(ctx context.Context, cartID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE carts SET updated_at = NOW() WHERE id = $1", cartID)
	return err
}
