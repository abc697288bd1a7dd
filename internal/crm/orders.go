package crm

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
	"github.com/safar/crm-service/internal/store"
	"github.com/safar/crm-service/internal/validate"
)

type OrderPayload struct {
	Order   *models.Order `json:"order"`
	Message string        `json:"message"`
}

// CreateOrder checks the input and its references and writes the order.
// The store repeats the reference check inside its transaction and
// snapshots the total from the product rows it locked there.
func (s *Service) CreateOrder(ctx context.Context, in models.OrderInput) OrderPayload {
	order, err := s.createOrder(ctx, in)
	if err != nil {
		return OrderPayload{Message: err.Error()}
	}
	return OrderPayload{Order: order, Message: MsgOrderCreated}
}

func (s *Service) createOrder(ctx context.Context, in models.OrderInput) (*models.Order, error) {
	valid, err := validate.Order(in)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.CustomerExists(ctx, valid.CustomerID)
	if err != nil {
		return nil, err
	}
	found, err := s.store.FindProducts(ctx, valid.ProductIDs)
	if err != nil {
		return nil, err
	}
	if err := validate.OrderReferences(valid, exists, found); err != nil {
		return nil, err
	}

	order, err := s.store.InsertOrder(ctx, store.NewOrder{
		CustomerID: valid.CustomerID,
		ProductIDs: valid.ProductIDs,
		OrderDate:  valid.OrderDate,
	})
	if err != nil {
		s.logger.WithError(err).WithField("customer_id", valid.CustomerID).Error("insert order failed")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"customer_id": order.Customer.ID,
	}).Info("order created")
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, f filter.OrderFilter, p store.Pagination) (*store.Page[models.Order], error) {
	return s.store.ListOrders(ctx, f, p)
}
