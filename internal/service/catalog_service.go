package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductCache is the subset of the Redis client the catalog needs.
type ProductCache interface {
	CacheProduct(ctx context.Context, productID int64, product interface{}, ttl time.Duration) error
	GetCachedProduct(ctx context.Context, productID int64) (*models.Product, error)
	InvalidateProduct(ctx context.Context, productID int64) error
}

// CatalogService handles product catalog business logic
type CatalogService struct {
	store          *store.Store
	cache          ProductCache
	cacheTTL       time.Duration
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store, cache ProductCache, cacheTTL time.Duration, eventPublisher *broker.EventPublisher) *CatalogService {
	return &CatalogService{
		store:          store,
		cache:          cache,
		cacheTTL:       cacheTTL,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// ProductRequest carries admin create/update fields
type ProductRequest struct {
	Name      string   `json:"name" binding:"required"`
	Price     int64    `json:"price" binding:"required,min=0"`
	Stock     int      `json:"stock" binding:"min=0"`
	Discount  int      `json:"discount" binding:"min=0,max=100"`
	Colors    []string `json:"colors"`
	Sizes     []string `json:"sizes"`
	Unit      string   `json:"unit"`
	Published bool     `json:"published"`
}

// StockAdjustmentRequest carries an admin stock delta
type StockAdjustmentRequest struct {
	Delta      int    `json:"delta" binding:"required"`
	ChangeType string `json:"change_type" binding:"required,oneof=addition correction"`
}

// ListPublished returns the public catalog
func (s *CatalogService) ListPublished(ctx context.Context) ([]models.Product, error) {
	return s.store.GetPublishedProducts(ctx)
}

// List returns all products, including unpublished
func (s *CatalogService) List(ctx context.Context) ([]models.Product, error) {
	return s.store.GetProducts(ctx)
}

// Get retrieves a product, preferring the cache
func (s *CatalogService) Get(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Get")
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.GetCachedProduct(ctx, id)
		if err != nil {
			s.logger.Warn("Product cache lookup failed", zap.Int64("product_id", id), zap.Error(err))
		}
		if cached != nil {
			util.ProductCacheHitsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		util.ProductCacheHitsTotal.WithLabelValues("miss").Inc()
	}

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheProduct(ctx, id, product, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to cache product", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	return product, nil
}

// Create creates a new product owned by the given seller
func (s *CatalogService) Create(ctx context.Context, sellerID int64, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	defer span.End()

	product := &models.Product{
		SellerID:  sellerID,
		Name:      req.Name,
		Price:     req.Price,
		Stock:     req.Stock,
		Discount:  req.Discount,
		Colors:    req.Colors,
		Sizes:     req.Sizes,
		Unit:      req.Unit,
		Published: req.Published,
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// Update edits product fields and invalidates the cache entry
func (s *CatalogService) Update(ctx context.Context, id int64, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	defer span.End()

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Name = req.Name
	product.Price = req.Price
	product.Discount = req.Discount
	product.Colors = req.Colors
	product.Sizes = req.Sizes
	product.Unit = req.Unit
	product.Published = req.Published

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return product, nil
}

// Delete removes a product and its cache entry
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// AdjustStock applies an admin stock addition or correction, records the
// audit trail and publishes a StockAdjusted event.
func (s *CatalogService) AdjustStock(ctx context.Context, productID, adminID int64, req *StockAdjustmentRequest) (int, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AdjustStock")
	defer span.End()

	after, err := s.store.AdjustStockTx(ctx, productID, req.Delta, req.ChangeType, adminID)
	if err != nil {
		return 0, err
	}

	util.StockAdjustmentsTotal.WithLabelValues(req.ChangeType).Inc()
	s.invalidate(ctx, productID)

	if s.eventPublisher != nil {
		event := &models.StockAdjustedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeStockAdjusted,
				Timestamp: time.Now(),
			},
			ProductID:  productID,
			Delta:      req.Delta,
			StockAfter: after,
			ChangeType: req.ChangeType,
		}
		if err := s.eventPublisher.PublishStockAdjusted(ctx, event); err != nil {
			s.logger.Error("Failed to publish StockAdjusted event", zap.Error(err))
		}
	}

	s.logger.Info("Stock adjusted",
		zap.Int64("product_id", productID),
		zap.Int("delta", req.Delta),
		zap.Int("stock_after", after))
	return after, nil
}

// StockHistory returns the audit trail for a product
func (s *CatalogService) StockHistory(ctx context.Context, productID int64) ([]models.StockHistory, error) {
	if _, err := s.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.GetStockHistoryByProduct(ctx, productID)
}

func (s *CatalogService) invalidate(ctx context.Context, productID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProduct(ctx, productID); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.Int64("product_id", productID), zap.Error(err))
	}
}
