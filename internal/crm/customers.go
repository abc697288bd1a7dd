package crm

import (
	"context"
	"errors"
	"fmt"

	"github.com/safar/crm-service/internal/cache"
	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
	"github.com/safar/crm-service/internal/store"
	"github.com/safar/crm-service/internal/validate"
)

// CustomerPayload carries either the created customer or the reason it was
// not created.
type CustomerPayload struct {
	Customer *models.Customer `json:"customer"`
	Message  string           `json:"message"`
}

// BulkCustomersPayload lists the customers that were created and one error
// line per rejected entry.
type BulkCustomersPayload struct {
	Customers []models.Customer `json:"customers"`
	Errors    []string          `json:"errors"`
}

func (s *Service) CreateCustomer(ctx context.Context, in models.CustomerInput) CustomerPayload {
	customer, err := s.createCustomer(ctx, in)
	if err != nil {
		var uv *database.UniqueViolationError
		if errors.As(err, &uv) {
			return CustomerPayload{Message: MsgEmailExists}
		}
		return CustomerPayload{Message: err.Error()}
	}

	return CustomerPayload{Customer: customer, Message: MsgCustomerCreated}
}

// BulkCreateCustomers inserts every entry independently. A rejected entry
// does not undo the others.
func (s *Service) BulkCreateCustomers(ctx context.Context, ins []models.CustomerInput) BulkCustomersPayload {
	payload := BulkCustomersPayload{
		Customers: []models.Customer{},
		Errors:    []string{},
	}

	for _, in := range ins {
		customer, err := s.createCustomer(ctx, in)
		if err != nil {
			var uv *database.UniqueViolationError
			if errors.As(err, &uv) {
				payload.Errors = append(payload.Errors,
					fmt.Sprintf("Error creating customer with email '%s': %s.", in.Email, MsgEmailExists))
			} else {
				payload.Errors = append(payload.Errors,
					fmt.Sprintf("Error creating customer with email '%s': %v", in.Email, err))
			}
			continue
		}
		payload.Customers = append(payload.Customers, *customer)
	}

	return payload
}

func (s *Service) createCustomer(ctx context.Context, in models.CustomerInput) (*models.Customer, error) {
	valid, err := validate.Customer(in)
	if err != nil {
		return nil, err
	}

	customer, err := s.store.InsertCustomer(ctx, valid)
	if err != nil {
		var uv *database.UniqueViolationError
		if !errors.As(err, &uv) {
			s.logger.WithError(err).WithField("email", valid.Email).Error("insert customer failed")
		}
		return nil, err
	}

	s.logger.WithField("customer_id", customer.ID).Info("customer created")
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return cached(ctx, s, cache.CustomerKey(id), func() (*models.Customer, error) {
		return s.store.GetCustomer(ctx, id)
	})
}

func (s *Service) ListCustomers(ctx context.Context, f filter.CustomerFilter, p store.Pagination) (*store.Page[models.Customer], error) {
	return s.store.ListCustomers(ctx, f, p)
}
