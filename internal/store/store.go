// Package store persists customers, products and orders. PostgresStore is
// the production implementation; MemoryStore has the same semantics and
// backs tests and local runs.
package store

import (
	"context"
	"time"

	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
)

// Store is the repository the CRM service is built on.
//
// Lookups by id return *database.NotFoundError. InsertCustomer is an atomic
// insert-if-absent and reports a taken email as
// *database.UniqueViolationError. InsertOrder reports dangling references as
// *database.NotFoundError (customer) or *database.ReferentialIntegrityError
// (products). Lists are ordered by id, which is insertion order.
type Store interface {
	Ping(ctx context.Context) error

	InsertCustomer(ctx context.Context, in models.CustomerInput) (*models.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
	ListCustomers(ctx context.Context, f filter.CustomerFilter, p Pagination) (*Page[models.Customer], error)

	InsertProduct(ctx context.Context, in models.ProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	FindProducts(ctx context.Context, ids []int64) ([]models.Product, error)
	ListProducts(ctx context.Context, f filter.ProductFilter, p Pagination) (*Page[models.Product], error)
	RestockLowStock(ctx context.Context, threshold, increment int) ([]models.Product, error)

	InsertOrder(ctx context.Context, o NewOrder) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, f filter.OrderFilter, p Pagination) (*Page[models.Order], error)

	Summary(ctx context.Context) (*models.Summary, error)
}

// NewOrder is a validated order ready to be written. A zero OrderDate
// stores the current date. The total is computed by the store from the
// product rows it reads while writing the order.
type NewOrder struct {
	CustomerID int64
	ProductIDs []int64
	OrderDate  time.Time
}
