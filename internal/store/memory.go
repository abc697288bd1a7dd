package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
	"github.com/safar/crm-service/internal/validate"
)

var _ Store = (*MemoryStore)(nil)

// orderRecord is the stored form of an order; customer and products are
// joined on read like the SQL store does.
type orderRecord struct {
	id          int64
	customerID  int64
	productIDs  []int64
	orderDate   time.Time
	totalAmount decimal.Decimal
	createdAt   time.Time
	updatedAt   time.Time
}

// MemoryStore keeps everything in maps guarded by one lock. The email
// index plays the role of the unique constraint.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	lastCustomerID int64
	lastProductID  int64
	lastOrderID    int64

	customers map[int64]models.Customer
	emails    map[string]int64
	products  map[int64]models.Product
	orders    map[int64]orderRecord
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		now:       now,
		customers: make(map[int64]models.Customer),
		emails:    make(map[string]int64),
		products:  make(map[int64]models.Product),
		orders:    make(map[int64]orderRecord),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) InsertCustomer(ctx context.Context, in models.CustomerInput) (*models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emails[in.Email]; taken {
		return nil, &database.UniqueViolationError{Field: "email", Value: in.Email}
	}

	s.lastCustomerID++
	now := s.now()
	customer := models.Customer{
		ID:        s.lastCustomerID,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.customers[customer.ID] = customer
	s.emails[customer.Email] = customer.ID

	return &customer, nil
}

func (s *MemoryStore) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, &database.NotFoundError{Entity: "customer", ID: id}
	}
	return &customer, nil
}

func (s *MemoryStore) CustomerExists(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.customers[id]
	return ok, nil
}

func (s *MemoryStore) ListCustomers(ctx context.Context, f filter.CustomerFilter, p Pagination) (*Page[models.Customer], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := make([]models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		all = append(all, c)
	}
	s.mu.RUnlock()

	return paginate(all, f.Predicate(), p, func(c models.Customer) int64 { return c.ID })
}

func (s *MemoryStore) InsertProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastProductID++
	now := s.now()
	product := models.Product{
		ID:        s.lastProductID,
		Name:      in.Name,
		Price:     in.Price,
		Stock:     in.Stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.products[product.ID] = product

	return &product, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, &database.NotFoundError{Entity: "product", ID: id}
	}
	return &product, nil
}

func (s *MemoryStore) FindProducts(ctx context.Context, ids []int64) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findProductsLocked(ids), nil
}

func (s *MemoryStore) findProductsLocked(ids []int64) []models.Product {
	seen := make(map[int64]struct{}, len(ids))
	var found []models.Product
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := s.products[id]; ok {
			found = append(found, p)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	return found
}

func (s *MemoryStore) ListProducts(ctx context.Context, f filter.ProductFilter, p Pagination) (*Page[models.Product], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := make([]models.Product, 0, len(s.products))
	for _, product := range s.products {
		all = append(all, product)
	}
	s.mu.RUnlock()

	return paginate(all, f.Predicate(), p, func(p models.Product) int64 { return p.ID })
}

func (s *MemoryStore) RestockLowStock(ctx context.Context, threshold, increment int) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var updated []models.Product
	for id, product := range s.products {
		if product.Stock >= threshold {
			continue
		}
		product.Stock += increment
		product.UpdatedAt = now
		s.products[id] = product
		updated = append(updated, product)
	}

	sort.Slice(updated, func(i, j int) bool { return updated[i].ID < updated[j].ID })
	return updated, nil
}

func (s *MemoryStore) InsertOrder(ctx context.Context, in NewOrder) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[in.CustomerID]; !ok {
		return nil, &database.NotFoundError{Entity: "customer", ID: in.CustomerID}
	}
	found := s.findProductsLocked(in.ProductIDs)
	if missing := missingIDs(in.ProductIDs, found); len(missing) > 0 {
		return nil, &database.ReferentialIntegrityError{Entity: "products", MissingIDs: missing}
	}

	now := s.now()
	orderDate := in.OrderDate
	if orderDate.IsZero() {
		orderDate = now
	}

	s.lastOrderID++
	record := orderRecord{
		id:          s.lastOrderID,
		customerID:  in.CustomerID,
		productIDs:  append([]int64(nil), in.ProductIDs...),
		orderDate:   time.Date(orderDate.Year(), orderDate.Month(), orderDate.Day(), 0, 0, 0, 0, time.UTC),
		totalAmount: validate.OrderTotal(found),
		createdAt:   now,
		updatedAt:   now,
	}
	s.orders[record.id] = record

	order := s.joinLocked(record)
	return &order, nil
}

func (s *MemoryStore) joinLocked(r orderRecord) models.Order {
	products := s.findProductsLocked(r.productIDs)
	if products == nil {
		products = []models.Product{}
	}
	return models.Order{
		ID:          r.id,
		Customer:    s.customers[r.customerID],
		Products:    products,
		OrderDate:   r.orderDate,
		TotalAmount: r.totalAmount,
		CreatedAt:   r.createdAt,
		UpdatedAt:   r.updatedAt,
	}
}

func (s *MemoryStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.orders[id]
	if !ok {
		return nil, &database.NotFoundError{Entity: "order", ID: id}
	}
	order := s.joinLocked(record)
	return &order, nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, f filter.OrderFilter, p Pagination) (*Page[models.Order], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := make([]models.Order, 0, len(s.orders))
	for _, record := range s.orders {
		all = append(all, s.joinLocked(record))
	}
	s.mu.RUnlock()

	return paginate(all, f.Predicate(), p, func(o models.Order) int64 { return o.ID })
}

func (s *MemoryStore) Summary(ctx context.Context) (*models.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &models.Summary{
		Customers: int64(len(s.customers)),
		Orders:    int64(len(s.orders)),
		Revenue:   decimal.Zero,
	}
	for _, record := range s.orders {
		summary.Revenue = summary.Revenue.Add(record.totalAmount)
	}
	return summary, nil
}

// paginate applies pred to items, orders the matches by id and cuts the
// page described by p.
func paginate[T any](items []T, pred filter.Predicate[T], p Pagination, idOf func(T) int64) (*Page[T], error) {
	limit, after, err := p.resolve()
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return idOf(items[i]) < idOf(items[j]) })

	var total int64
	var window []T
	for _, item := range items {
		if !pred.Match(item) {
			continue
		}
		total++
		if idOf(item) > after && len(window) <= limit {
			window = append(window, item)
		}
	}

	return newPage(window, limit, total, idOf), nil
}
