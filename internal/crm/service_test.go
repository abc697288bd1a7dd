package crm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/crm-service/internal/cache"
	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
	"github.com/safar/crm-service/internal/store"
)

// mapCache is an in-process Cache that records what it was asked to do.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
	deleted []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]interface{})}
}

func (c *mapCache) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *models.Customer:
		*d = *v.(*models.Customer)
	case *models.Product:
		*d = *v.(*models.Product)
	default:
		return false, fmt.Errorf("unexpected type %T", dst)
	}
	return true, nil
}

func (c *mapCache) Set(_ context.Context, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *mapCache) Close() error { return nil }

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewService(st), st
}

func mustProduct(t *testing.T, s *Service, name string, price int64, stock int) *models.Product {
	t.Helper()
	payload := s.CreateProduct(context.Background(), models.ProductInput{
		Name:  name,
		Price: decimal.NewFromInt(price),
		Stock: stock,
	})
	require.NotNil(t, payload.Product, payload.Message)
	return payload.Product
}

func TestCreateCustomerThenGet(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	payload := s.CreateCustomer(ctx, models.CustomerInput{Name: "New", Email: "new@x.com", Phone: "+1234567890"})
	require.NotNil(t, payload.Customer)
	assert.Equal(t, MsgCustomerCreated, payload.Message)

	got, err := s.GetCustomer(ctx, payload.Customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, "new@x.com", got.Email)
	assert.Equal(t, "+1234567890", got.Phone)
}

func TestCreateCustomerDuplicateEmail(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	first := s.CreateCustomer(ctx, models.CustomerInput{Name: "A", Email: "dup@x.com"})
	require.NotNil(t, first.Customer)

	second := s.CreateCustomer(ctx, models.CustomerInput{Name: "B", Email: "dup@x.com"})
	assert.Nil(t, second.Customer)
	assert.Equal(t, MsgEmailExists, second.Message)

	page, err := st.ListCustomers(ctx, filter.CustomerFilter{Email: "dup@x.com"}, store.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalCount)
}

func TestCreateCustomerValidationMessage(t *testing.T) {
	s, _ := newTestService(t)

	payload := s.CreateCustomer(context.Background(), models.CustomerInput{Name: "A", Email: "nope"})
	assert.Nil(t, payload.Customer)
	assert.Contains(t, payload.Message, "email")
}

func TestBulkCreateCustomersPartialFailure(t *testing.T) {
	s, _ := newTestService(t)

	payload := s.BulkCreateCustomers(context.Background(), []models.CustomerInput{
		{Name: "A", Email: "a@x.com"},
		{Name: "A again", Email: "a@x.com"},
		{Name: "", Email: "b@x.com"},
		{Name: "C", Email: "c@x.com"},
	})

	require.Len(t, payload.Customers, 2)
	assert.Equal(t, "a@x.com", payload.Customers[0].Email)
	assert.Equal(t, "c@x.com", payload.Customers[1].Email)

	require.Len(t, payload.Errors, 2)
	assert.Equal(t, "Error creating customer with email 'a@x.com': Email already exists.", payload.Errors[0])
	assert.True(t, strings.HasPrefix(payload.Errors[1], "Error creating customer with email 'b@x.com': name"))
}

func TestBulkCreateCustomersEmpty(t *testing.T) {
	s, _ := newTestService(t)

	payload := s.BulkCreateCustomers(context.Background(), nil)
	assert.NotNil(t, payload.Customers)
	assert.NotNil(t, payload.Errors)
	assert.Empty(t, payload.Customers)
	assert.Empty(t, payload.Errors)
}

func TestCreateProduct(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	failed := s.CreateProduct(ctx, models.ProductInput{Name: "Bad", Price: decimal.NewFromInt(-1), Stock: 5})
	assert.Nil(t, failed.Product)
	assert.True(t, failed.TotalAmount.IsZero())
	assert.Contains(t, failed.Message, "price")

	page, err := st.ListProducts(ctx, filter.ProductFilter{}, store.Pagination{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)

	ok := s.CreateProduct(ctx, models.ProductInput{Name: "Good", Price: decimal.NewFromInt(10), Stock: 3})
	require.NotNil(t, ok.Product)
	assert.Equal(t, MsgProductCreated, ok.Message)
	assert.True(t, ok.TotalAmount.Equal(decimal.NewFromInt(30)))
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()
	p := mustProduct(t, s, "P1", 5, 1)

	payload := s.CreateOrder(ctx, models.OrderInput{CustomerID: 99, ProductIDs: []int64{p.ID}})
	assert.Nil(t, payload.Order)
	assert.Equal(t, "customer 99 not found", payload.Message)

	summary, err := st.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Orders)
}

func TestCreateOrderUnknownProducts(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := s.CreateCustomer(ctx, models.CustomerInput{Name: "X", Email: "x@x.com"})
	require.NotNil(t, c.Customer)
	p := mustProduct(t, s, "P1", 5, 1)

	payload := s.CreateOrder(ctx, models.OrderInput{CustomerID: c.Customer.ID, ProductIDs: []int64{p.ID, 41, 40}})
	assert.Nil(t, payload.Order)
	assert.Equal(t, "products not found: 40, 41", payload.Message)

	payload = s.CreateOrder(ctx, models.OrderInput{CustomerID: c.Customer.ID})
	assert.Nil(t, payload.Order)
	assert.Contains(t, payload.Message, "products")
}

func TestCreateOrderSnapshotsTotal(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := s.CreateCustomer(ctx, models.CustomerInput{Name: "X", Email: "x@x.com"})
	require.NotNil(t, c.Customer)
	p1 := mustProduct(t, s, "P1", 5, 1)
	p2 := mustProduct(t, s, "P2", 7, 1)

	payload := s.CreateOrder(ctx, models.OrderInput{
		CustomerID: c.Customer.ID,
		ProductIDs: []int64{p2.ID, p1.ID, p2.ID},
		OrderDate:  "2026-10-16",
	})
	require.NotNil(t, payload.Order, payload.Message)
	assert.Equal(t, MsgOrderCreated, payload.Message)
	assert.True(t, payload.Order.TotalAmount.Equal(decimal.NewFromInt(12)))
	assert.ElementsMatch(t, []int64{p1.ID, p2.ID}, payload.Order.ProductIDs())
	assert.Equal(t, "2026-10-16", payload.Order.OrderDate.Format(models.DateLayout))

	got, err := s.GetOrder(ctx, payload.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Customer.Email, got.Customer.Email)
}

func TestGetNotFound(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.GetCustomer(ctx, 1)
	assert.True(t, database.IsNotFound(err))
	_, err = s.GetProduct(ctx, 1)
	assert.True(t, database.IsNotFound(err))
	_, err = s.GetOrder(ctx, 1)
	assert.True(t, database.IsNotFound(err))
}

func TestListProductsLowStockInInsertionOrder(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	var want []int64
	for i, stock := range []int{9, 10, 1, 11, 3} {
		p := mustProduct(t, s, fmt.Sprintf("P%d", i), 1, stock)
		if stock < 10 {
			want = append(want, p.ID)
		}
	}

	threshold := 10
	page, err := s.ListProducts(ctx, filter.ProductFilter{LowStock: &threshold}, store.Pagination{})
	require.NoError(t, err)

	var got []int64
	for _, p := range page.Items {
		got = append(got, p.ID)
	}
	assert.Equal(t, want, got)
}

func TestListCustomersPagination(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c := s.CreateCustomer(ctx, models.CustomerInput{Name: fmt.Sprintf("C%d", i), Email: fmt.Sprintf("c%d@x.com", i)})
		require.NotNil(t, c.Customer)
	}

	full, err := s.ListCustomers(ctx, filter.CustomerFilter{}, store.Pagination{})
	require.NoError(t, err)

	var pages int
	var collected []models.Customer
	after := ""
	for {
		page, err := s.ListCustomers(ctx, filter.CustomerFilter{}, store.Pagination{First: 2, After: after})
		require.NoError(t, err)
		pages++
		collected = append(collected, page.Items...)
		if !page.HasNextPage {
			break
		}
		after = page.EndCursor
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, full.Items, collected)
}

func TestUpdateLowStockProductsInvalidatesCache(t *testing.T) {
	c := newMapCache()
	s := NewService(store.NewMemoryStore(), WithCache(c))
	ctx := context.Background()

	low := mustProduct(t, s, "Low", 1, 2)
	high := mustProduct(t, s, "High", 1, 50)

	cachedLow, err := s.GetProduct(ctx, low.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cachedLow.Stock)
	_, err = s.GetProduct(ctx, high.ID)
	require.NoError(t, err)

	payload, err := s.UpdateLowStockProducts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Updated 1 low-stock products", payload.Message)
	require.Len(t, payload.Products, 1)
	assert.Equal(t, 12, payload.Products[0].Stock)
	assert.Equal(t, []string{cache.ProductKey(low.ID)}, c.deleted)

	fresh, err := s.GetProduct(ctx, low.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, fresh.Stock)

	payload, err = s.UpdateLowStockProducts(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, "No low-stock products to update", payload.Message)
	assert.NotNil(t, payload.Products)
}

func TestGetCustomerServedFromCache(t *testing.T) {
	c := newMapCache()
	s := NewService(store.NewMemoryStore(), WithCache(c))
	ctx := context.Background()

	created := s.CreateCustomer(ctx, models.CustomerInput{Name: "A", Email: "a@x.com"})
	require.NotNil(t, created.Customer)

	_, err := s.GetCustomer(ctx, created.Customer.ID)
	require.NoError(t, err)

	c.entries[cache.CustomerKey(created.Customer.ID)] = &models.Customer{ID: created.Customer.ID, Name: "From cache"}
	got, err := s.GetCustomer(ctx, created.Customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "From cache", got.Name)
}

func TestHelloAndReport(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	msg, err := s.Hello(ctx)
	require.NoError(t, err)
	assert.Equal(t, MsgAlive, msg)

	c := s.CreateCustomer(ctx, models.CustomerInput{Name: "X", Email: "x@x.com"})
	p := mustProduct(t, s, "P", 5, 1)
	o := s.CreateOrder(ctx, models.OrderInput{CustomerID: c.Customer.ID, ProductIDs: []int64{p.ID}})
	require.NotNil(t, o.Order)

	summary, err := s.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Customers)
	assert.Equal(t, int64(1), summary.Orders)
	assert.True(t, summary.Revenue.Equal(decimal.NewFromInt(5)))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Hello(cancelled)
	assert.Error(t, err)
}
