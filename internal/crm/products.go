package crm

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/safar/crm-service/internal/cache"
	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
	"github.com/safar/crm-service/internal/store"
	"github.com/safar/crm-service/internal/validate"
)

// ProductPayload carries the created product and the value of its stock.
// On failure Product is nil and TotalAmount is zero.
type ProductPayload struct {
	Product     *models.Product `json:"product"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Message     string          `json:"message"`
}

type RestockPayload struct {
	Products []models.Product `json:"updated_products"`
	Message  string           `json:"message"`
}

func (s *Service) CreateProduct(ctx context.Context, in models.ProductInput) ProductPayload {
	valid, err := validate.Product(in)
	if err != nil {
		return ProductPayload{TotalAmount: decimal.Zero, Message: err.Error()}
	}

	product, err := s.store.InsertProduct(ctx, valid)
	if err != nil {
		s.logger.WithError(err).WithField("name", valid.Name).Error("insert product failed")
		return ProductPayload{TotalAmount: decimal.Zero, Message: err.Error()}
	}

	s.logger.WithField("product_id", product.ID).Info("product created")
	return ProductPayload{
		Product:     product,
		TotalAmount: validate.StockValue(*product),
		Message:     MsgProductCreated,
	}
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return cached(ctx, s, cache.ProductKey(id), func() (*models.Product, error) {
		return s.store.GetProduct(ctx, id)
	})
}

func (s *Service) ListProducts(ctx context.Context, f filter.ProductFilter, p store.Pagination) (*store.Page[models.Product], error) {
	return s.store.ListProducts(ctx, f, p)
}

// UpdateLowStockProducts adds increment to the stock of every product whose
// stock is below threshold. Zero arguments take the defaults.
func (s *Service) UpdateLowStockProducts(ctx context.Context, threshold, increment int) (RestockPayload, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	if increment <= 0 {
		increment = DefaultLowStockIncrement
	}

	updated, err := s.store.RestockLowStock(ctx, threshold, increment)
	if err != nil {
		return RestockPayload{}, fmt.Errorf("restock products: %w", err)
	}
	if updated == nil {
		updated = []models.Product{}
	}

	keys := make([]string, len(updated))
	for i, p := range updated {
		keys[i] = cache.ProductKey(p.ID)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.WithError(err).Warn("cache invalidation failed")
	}

	message := "No low-stock products to update"
	if len(updated) > 0 {
		message = fmt.Sprintf("Updated %d low-stock products", len(updated))
	}
	s.logger.WithField("count", len(updated)).Info("low-stock products restocked")

	return RestockPayload{Products: updated, Message: message}, nil
}
