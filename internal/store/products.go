package store

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace-service/internal/models"
)

// CreateProduct creates a new product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (seller_id, name, price, stock, discount, colors, sizes, unit, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.SellerID, p.Name, p.Price, p.Stock, p.Discount, p.Colors, p.Sizes, p.Unit, p.Published)
}

// UpdateProduct updates product fields. Stock changes go through AdjustStockTx.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, price = $2, discount = $3, colors = $4, sizes = $5,
		    unit = $6, published = $7, updated_at = NOW()
		WHERE id = $8`,
		p.Name, p.Price, p.Discount, p.Colors, p.Sizes, p.Unit, p.Published, p.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("product %d: %w", p.ID, models.ErrNotFound)
	}
	return nil
}

// DeleteProduct deletes a product
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetPublishedProducts retrieves all published products
func (s *Store) GetPublishedProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE published = TRUE ORDER BY id")
	return products, err
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// AdjustStockTx applies a signed stock delta under a row lock and appends
// the matching stock history record in the same transaction. The resulting
// stock level is returned.
func (s *Store) AdjustStockTx(ctx context.Context, productID int64, delta int, changeType string, userID int64) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var stock int
	err = tx.GetContext(ctx, &stock,
		"SELECT stock FROM products WHERE id = $1 FOR UPDATE", productID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("product %d: %w", productID, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock product: %w", err)
	}

	after := stock + delta
	if after < 0 {
		return 0, fmt.Errorf("stock would drop below zero (have %d, delta %d): %w",
			stock, delta, models.ErrInsufficientStock)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2",
		after, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to update stock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_history (product_id, size, color, change_type, quantity_delta, stock_after, user_id)
		VALUES ($1, '', '', $2, $3, $4, $5)`,
		productID, changeType, delta, after, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to record stock history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return after, nil
}
