// Package crm is the query and mutation facade of the CRM. Mutations
// validate their input before writing and report failures in the returned
// payload; lookups by id return errors to the caller.
package crm

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/safar/crm-service/internal/cache"
	"github.com/safar/crm-service/internal/models"
	"github.com/safar/crm-service/internal/store"
)

const (
	MsgCustomerCreated = "Customer created successfully"
	MsgEmailExists     = "Email already exists"
	MsgProductCreated  = "Product created successfully"
	MsgOrderCreated    = "Order created successfully"
	MsgAlive           = "CRM is alive"
)

// Restock defaults used when UpdateLowStockProducts gets zero values.
const (
	DefaultLowStockThreshold = 10
	DefaultLowStockIncrement = 10
)

type Service struct {
	store  store.Store
	cache  cache.Cache
	logger logrus.FieldLogger
}

type Option func(*Service)

// WithCache enables read-through caching of customers and products.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(st store.Store, opts ...Option) *Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Service{store: st, cache: cache.Noop{}, logger: discard}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hello is the liveness query. It fails when the store is unreachable.
func (s *Service) Hello(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return "", fmt.Errorf("ping store: %w", err)
	}
	return MsgAlive, nil
}

// Report summarizes the store: customer count, order count and revenue.
func (s *Service) Report(ctx context.Context) (*models.Summary, error) {
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	return summary, nil
}

// cached loads key from the cache into dst, falling back to load and
// filling the cache on a miss. Cache failures only cost a store read.
func cached[T any](ctx context.Context, s *Service, key string, load func() (*T, error)) (*T, error) {
	var hit T
	ok, err := s.cache.Get(ctx, key, &hit)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("cache read failed")
	}
	if ok {
		return &hit, nil
	}

	v, err := load()
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, v); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	return v, nil
}
