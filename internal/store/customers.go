package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
)

var customerColumns = []string{
	"c.id", "c.name", "c.email", "COALESCE(c.phone, '')", "c.created_at", "c.updated_at",
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(row rowScanner, c *models.Customer) error {
	return row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
}

// InsertCustomer relies on the unique constraint on email: a conflicting
// row makes the insert return nothing instead of racing a separate lookup.
func (s *PostgresStore) InsertCustomer(ctx context.Context, in models.CustomerInput) (*models.Customer, error) {
	query, args, err := psql.Insert("customers AS c").
		Columns("name", "email", "phone", "created_at", "updated_at").
		Values(in.Name, in.Email, nullString(in.Phone), sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("ON CONFLICT (email) DO NOTHING RETURNING " + joinColumns(customerColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert customer: %w", err)
	}

	customer := &models.Customer{}
	err = scanCustomer(s.db.QueryRowContext(ctx, query, args...), customer)
	if errors.Is(err, sql.ErrNoRows) || database.IsUniqueViolation(err) {
		return nil, &database.UniqueViolationError{Field: "email", Value: in.Email}
	}
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return customer, nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return getCustomer(ctx, s.db, id)
}

func getCustomer(ctx context.Context, q querier, id int64) (*models.Customer, error) {
	query, args, err := psql.Select(customerColumns...).From("customers c").Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get customer: %w", err)
	}

	customer := &models.Customer{}
	if err := scanCustomer(q.QueryRowContext(ctx, query, args...), customer); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &database.NotFoundError{Entity: "customer", ID: id}
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return customer, nil
}

func (s *PostgresStore) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check customer exists: %w", err)
	}
	return exists, nil
}

// ListCustomers reads the total and the page in one snapshot.
func (s *PostgresStore) ListCustomers(ctx context.Context, f filter.CustomerFilter, p Pagination) (*Page[models.Customer], error) {
	limit, after, err := p.resolve()
	if err != nil {
		return nil, err
	}

	var page *Page[models.Customer]
	err = s.snapshot(ctx, func(q querier) error {
		var err error
		page, err = listCustomers(ctx, q, f.Where(), limit, after)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func listCustomers(ctx context.Context, q querier, where sq.Sqlizer, limit int, after int64) (*Page[models.Customer], error) {
	total, err := count(ctx, q, "customers c", where)
	if err != nil {
		return nil, fmt.Errorf("count customers: %w", err)
	}

	query, args, err := psql.Select(customerColumns...).
		From("customers c").
		Where(where).
		Where(sq.Gt{"c.id": after}).
		OrderBy("c.id").
		Limit(uint64(limit + 1)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list customers: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var customer models.Customer
		if err := scanCustomer(rows, &customer); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, customer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newPage(customers, limit, total, func(c models.Customer) int64 { return c.ID }), nil
}
