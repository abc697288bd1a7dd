package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
	"github.com/safar/crm-service/internal/validate"
)

const ordersFrom = "orders o JOIN customers c ON c.id = o.customer_id"

var orderColumns = append([]string{
	"o.id", "o.order_date", "o.total_amount", "o.created_at", "o.updated_at",
}, customerColumns...)

func scanOrder(row rowScanner, o *models.Order) error {
	return row.Scan(
		&o.ID,
		&o.OrderDate,
		&o.TotalAmount,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.Customer.ID,
		&o.Customer.Name,
		&o.Customer.Email,
		&o.Customer.Phone,
		&o.Customer.CreatedAt,
		&o.Customer.UpdatedAt,
	)
}

// InsertOrder writes the order and its product association in one
// serializable transaction. The referenced rows are locked FOR SHARE so
// they cannot vanish between the check and the insert, and the total is
// summed from those locked rows.
func (s *PostgresStore) InsertOrder(ctx context.Context, in NewOrder) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, s.db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var customerID int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM customers WHERE id = $1 FOR SHARE", in.CustomerID).Scan(&customerID)
		if errors.Is(err, sql.ErrNoRows) {
			return &database.NotFoundError{Entity: "customer", ID: in.CustomerID}
		}
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}

		found, err := findProducts(ctx, tx, in.ProductIDs, "FOR SHARE OF p")
		if err != nil {
			return err
		}
		if missing := missingIDs(in.ProductIDs, found); len(missing) > 0 {
			return &database.ReferentialIntegrityError{Entity: "products", MissingIDs: missing}
		}

		var orderDate interface{} = sq.Expr("CURRENT_DATE")
		if !in.OrderDate.IsZero() {
			orderDate = in.OrderDate.Format(models.DateLayout)
		}

		query, args, err := psql.Insert("orders").
			Columns("customer_id", "order_date", "total_amount", "created_at", "updated_at").
			Values(in.CustomerID, orderDate, validate.OrderTotal(found), sq.Expr("NOW()"), sq.Expr("NOW()")).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert order: %w", err)
		}

		var orderID int64
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&orderID); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		link := psql.Insert("order_products").Columns("order_id", "product_id")
		for _, productID := range in.ProductIDs {
			link = link.Values(orderID, productID)
		}
		query, args, err = link.ToSql()
		if err != nil {
			return fmt.Errorf("build insert order products: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if database.IsForeignKeyViolation(err) {
				return &database.ReferentialIntegrityError{Entity: "products"}
			}
			return fmt.Errorf("create order products: %w", err)
		}

		order, err = getOrder(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func missingIDs(want []int64, found []models.Product) []int64 {
	present := make(map[int64]struct{}, len(found))
	for _, p := range found {
		present[p.ID] = struct{}{}
	}

	var missing []int64
	for _, id := range want {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order *models.Order
	err := s.snapshot(ctx, func(q querier) error {
		var err error
		order, err = getOrder(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func getOrder(ctx context.Context, q querier, id int64) (*models.Order, error) {
	query, args, err := psql.Select(orderColumns...).From(ordersFrom).Where(sq.Eq{"o.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get order: %w", err)
	}

	order := &models.Order{}
	if err := scanOrder(q.QueryRowContext(ctx, query, args...), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &database.NotFoundError{Entity: "order", ID: id}
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []models.Order{*order}
	if err := loadOrderProducts(ctx, q, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

// ListOrders reads the total and the page in one snapshot.
func (s *PostgresStore) ListOrders(ctx context.Context, f filter.OrderFilter, p Pagination) (*Page[models.Order], error) {
	limit, after, err := p.resolve()
	if err != nil {
		return nil, err
	}

	var page *Page[models.Order]
	err = s.snapshot(ctx, func(q querier) error {
		var err error
		page, err = listOrders(ctx, q, f.Where(), limit, after)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func listOrders(ctx context.Context, q querier, where sq.Sqlizer, limit int, after int64) (*Page[models.Order], error) {
	total, err := count(ctx, q, ordersFrom, where)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	query, args, err := psql.Select(orderColumns...).
		From(ordersFrom).
		Where(where).
		Where(sq.Gt{"o.id": after}).
		OrderBy("o.id").
		Limit(uint64(limit + 1)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list orders: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	page := newPage(orders, limit, total, func(o models.Order) int64 { return o.ID })
	if err := loadOrderProducts(ctx, q, page.Items); err != nil {
		return nil, err
	}

	return page, nil
}

// loadOrderProducts fills the Products of every order with one query.
func loadOrderProducts(ctx context.Context, q querier, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[int64]int, len(orders))
	ids := make([]int64, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
		orders[i].Products = []models.Product{}
	}

	query, args, err := psql.Select(append([]string{"op.order_id"}, productColumns...)...).
		From("order_products op").
		Join("products p ON p.id = op.product_id").
		Where(sq.Expr("op.order_id = ANY(?)", pq.Array(ids))).
		OrderBy("op.order_id", "p.id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build order products: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("get order products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int64
		var p models.Product
		if err := rows.Scan(&orderID, &p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("scan order product: %w", err)
		}
		i := index[orderID]
		orders[i].Products = append(orders[i].Products, p)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}
