package store

import (
	"context"

	"marketplace-service/internal/models"
)

// GetStockHistoryByProduct retrieves the audit trail for a product, newest first
func (s *Store) GetStockHistoryByProduct(ctx context.Context, productID int64) ([]models.StockHistory, error) {
	var records []models.StockHistory
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM stock_history WHERE product_id = $1 ORDER BY created_at DESC", productID)
	return records, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
