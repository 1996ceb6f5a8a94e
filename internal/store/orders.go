package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"marketplace-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CheckoutInput carries the shipping and payment details for a checkout.
type CheckoutInput struct {
	ShippingAddress string
	ShippingMethod  string
	ShippingCost    int64
	PaymentMethod   string
}

// CheckoutTx converts a user's cart into an order in a single transaction:
// product rows are locked, stock is validated and decremented, item
// snapshots and stock history are written, and the cart is deleted. A
// failure at any step rolls back everything.
func (s *Store) CheckoutTx(ctx context.Context, userID int64, in CheckoutInput) (*models.Order, []models.OrderItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var cart models.Cart
	err = tx.GetContext(ctx, &cart, "SELECT * FROM carts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil, models.ErrEmptyCart
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var cartItems []models.CartItem
	err = tx.SelectContext(ctx, &cartItems,
		"SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY id", cart.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	if len(cartItems) == 0 {
		return nil, nil, models.ErrEmptyCart
	}

	products, err := lockProducts(ctx, tx, cartItems)
	if err != nil {
		return nil, nil, err
	}

	var totalAmount int64
	for _, item := range cartItems {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("product %d: %w", item.ProductID, models.ErrNotFound)
		}
		if item.Quantity > product.Stock {
			return nil, nil, fmt.Errorf("product %q (have %d, want %d): %w",
				product.Name, product.Stock, item.Quantity, models.ErrInsufficientStock)
		}
		totalAmount += int64(item.Quantity) * product.DiscountedPrice()
	}
	totalAmount += in.ShippingCost

	order := &models.Order{
		UserID:          userID,
		TotalAmount:     totalAmount,
		ShippingAddress: in.ShippingAddress,
		ShippingMethod:  in.ShippingMethod,
		ShippingCost:    in.ShippingCost,
		PaymentMethod:   in.PaymentMethod,
		Status:          models.OrderStatusPending,
	}
	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (user_id, total_amount, shipping_address, shipping_method, shipping_cost, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		order.UserID, order.TotalAmount, order.ShippingAddress,
		order.ShippingMethod, order.ShippingCost, order.PaymentMethod, order.Status)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	orderItems := make([]models.OrderItem, 0, len(cartItems))
	for _, item := range cartItems {
		product := products[item.ProductID]
		oi := models.OrderItem{
			OrderID:         order.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPrice:       product.Price,
			Discount:        product.Discount,
			DiscountedPrice: product.DiscountedPrice(),
			Size:            item.Size,
			Color:           item.Color,
			Unit:            product.Unit,
		}
		err = tx.GetContext(ctx, &oi.ID, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, discount, discounted_price, size, color, unit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			oi.OrderID, oi.ProductID, oi.Quantity, oi.UnitPrice,
			oi.Discount, oi.DiscountedPrice, oi.Size, oi.Color, oi.Unit)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create order item: %w", err)
		}

		stockAfter := product.Stock - item.Quantity
		_, err = tx.ExecContext(ctx,
			"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2",
			stockAfter, item.ProductID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decrement stock: %w", err)
		}
		product.Stock = stockAfter

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_history (product_id, size, color, change_type, quantity_delta, stock_after, order_id, user_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ProductID, item.Size, item.Color, models.StockChangeSale,
			-item.Quantity, stockAfter, order.ID, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to record stock history: %w", err)
		}

		orderItems = append(orderItems, oi)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cart.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to clear cart items: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM carts WHERE id = $1", cart.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to delete cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return order, orderItems, nil
}

// lockProducts selects the referenced products FOR UPDATE in ascending id
// order to keep lock acquisition deterministic across concurrent checkouts.
func lockProducts(ctx context.Context, tx *sqlx.Tx, items []models.CartItem) (map[int64]*models.Product, error) {
	seen := make(map[int64]bool, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)

	var products []models.Product
	if err := tx.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}
	return productMap, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// TransitionOrderStatus moves an order to a new status under a row lock,
// validating the move against the lifecycle table. The updated order is
// returned.
func (s *Store) TransitionOrderStatus(ctx context.Context, orderID int64, newStatus string) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	if !models.CanTransition(order.Status, newStatus) {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, newStatus, models.ErrInvalidTransition)
	}

	err = tx.GetContext(ctx, &order, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING *`, newStatus, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}
