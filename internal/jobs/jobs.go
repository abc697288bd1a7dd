// Package jobs holds the scheduled background jobs of the CRM. Every job
// talks to the service through its HTTP API and appends its output to its
// own log file.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/safar/crm-service/internal/crm"
	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
	"github.com/safar/crm-service/internal/store"
)

// Timestamp layouts of the job log files.
const (
	HeartbeatTimestamp = "02/01/2006-15:04:05"
	LogTimestamp       = "2006-01-02 15:04:05"
)

// API is the part of the CRM API the jobs call.
type API interface {
	Health(ctx context.Context) (string, error)
	UpdateLowStockProducts(ctx context.Context, threshold, increment int) (*crm.RestockPayload, error)
	ListOrders(ctx context.Context, f filter.OrderFilter, p store.Pagination) (*store.Page[models.Order], error)
	Report(ctx context.Context) (*models.Summary, error)
}

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Heartbeat records that the scheduler is alive and checks the API.
type Heartbeat struct {
	API API
	Log *logrus.Logger
	Now func() time.Time
}

func (j *Heartbeat) Name() string { return "heartbeat" }

// Run writes the alive line before checking the API, so the line is
// present even when the API is down.
func (j *Heartbeat) Run(ctx context.Context) error {
	j.Log.WithTime(now(j.Now)).Info(crm.MsgAlive)

	if _, err := j.API.Health(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// LowStock restocks every product below Threshold by Increment.
type LowStock struct {
	API       API
	Log       *logrus.Logger
	Now       func() time.Time
	Threshold int
	Increment int
}

func (j *LowStock) Name() string { return "low-stock" }

func (j *LowStock) Run(ctx context.Context) error {
	payload, err := j.API.UpdateLowStockProducts(ctx, j.Threshold, j.Increment)
	if err != nil {
		return fmt.Errorf("update low stock products: %w", err)
	}

	at := now(j.Now)
	j.Log.WithTime(at).Info(payload.Message)
	for _, p := range payload.Products {
		j.Log.WithTime(at).Infof("Updated product: %s, New stock: %d", p.Name, p.Stock)
	}
	return nil
}

// Reminders logs one line per order placed in the last WindowDays days.
type Reminders struct {
	API        API
	Log        *logrus.Logger
	Now        func() time.Time
	WindowDays int
	PageSize   int
}

func (j *Reminders) Name() string { return "reminders" }

func (j *Reminders) Run(ctx context.Context) error {
	at := now(j.Now)
	today := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -j.WindowDays)

	f := filter.OrderFilter{OrderDate: filter.DateRange{From: &from, To: &today}}
	p := store.Pagination{First: j.PageSize}
	if p.First <= 0 {
		p.First = store.MaxPageSize
	}

	var orders []models.Order
	for {
		page, err := j.API.ListOrders(ctx, f, p)
		if err != nil {
			return fmt.Errorf("list recent orders: %w", err)
		}
		orders = append(orders, page.Items...)
		if !page.HasNextPage {
			break
		}
		if page.EndCursor == "" {
			return errors.New("list recent orders: next page without cursor")
		}
		p.After = page.EndCursor
	}

	if len(orders) == 0 {
		j.Log.WithTime(at).Info("No recent orders found to process")
		return nil
	}
	for _, o := range orders {
		j.Log.WithTime(at).Infof("Order ID: %d for customer email %s", o.ID, o.Customer.Email)
	}
	return nil
}

// Report logs the customer count, order count and revenue.
type Report struct {
	API API
	Log *logrus.Logger
	Now func() time.Time
}

func (j *Report) Name() string { return "report" }

func (j *Report) Run(ctx context.Context) error {
	summary, err := j.API.Report(ctx)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}

	j.Log.WithTime(now(j.Now)).Infof("- Report: %d customers, %d orders, %s revenue.",
		summary.Customers, summary.Orders, summary.Revenue.StringFixed(2))
	return nil
}

func now(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now()
	}
	return clock()
}
