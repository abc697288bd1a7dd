package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
)

var productColumns = []string{
	"p.id", "p.name", "p.price", "p.stock", "p.created_at", "p.updated_at",
}

func scanProduct(row rowScanner, p *models.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
}

func (s *PostgresStore) InsertProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	query, args, err := psql.Insert("products AS p").
		SetMap(map[string]interface{}{
			"name":       in.Name,
			"price":      in.Price,
			"stock":      in.Stock,
			"created_at": sq.Expr("NOW()"),
			"updated_at": sq.Expr("NOW()"),
		}).
		Suffix("RETURNING " + joinColumns(productColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert product: %w", err)
	}

	product := &models.Product{}
	if err := scanProduct(s.db.QueryRowContext(ctx, query, args...), product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	query, args, err := psql.Select(productColumns...).From("products p").Where(sq.Eq{"p.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get product: %w", err)
	}

	product := &models.Product{}
	if err := scanProduct(s.db.QueryRowContext(ctx, query, args...), product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &database.NotFoundError{Entity: "product", ID: id}
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func (s *PostgresStore) FindProducts(ctx context.Context, ids []int64) ([]models.Product, error) {
	return findProducts(ctx, s.db, ids, "")
}

// findProducts loads the products among ids that exist, ordered by id.
// lock is appended verbatim, e.g. "FOR SHARE" inside a transaction.
func findProducts(ctx context.Context, q querier, ids []int64, lock string) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	builder := psql.Select(productColumns...).
		From("products p").
		Where(sq.Expr("p.id = ANY(?)", pq.Array(ids))).
		OrderBy("p.id")
	if lock != "" {
		builder = builder.Suffix(lock)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find products: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// ListProducts reads the total and the page in one snapshot.
func (s *PostgresStore) ListProducts(ctx context.Context, f filter.ProductFilter, p Pagination) (*Page[models.Product], error) {
	limit, after, err := p.resolve()
	if err != nil {
		return nil, err
	}

	var page *Page[models.Product]
	err = s.snapshot(ctx, func(q querier) error {
		var err error
		page, err = listProducts(ctx, q, f.Where(), limit, after)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func listProducts(ctx context.Context, q querier, where sq.Sqlizer, limit int, after int64) (*Page[models.Product], error) {
	total, err := count(ctx, q, "products p", where)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	query, args, err := psql.Select(productColumns...).
		From("products p").
		Where(where).
		Where(sq.Gt{"p.id": after}).
		OrderBy("p.id").
		Limit(uint64(limit + 1)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list products: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newPage(products, limit, total, func(p models.Product) int64 { return p.ID }), nil
}

// RestockLowStock adds increment to the stock of every product below
// threshold in one statement and returns the updated products by id.
func (s *PostgresStore) RestockLowStock(ctx context.Context, threshold, increment int) ([]models.Product, error) {
	query, args, err := psql.Update("products AS p").
		Set("stock", sq.Expr("p.stock + ?", increment)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Lt{"p.stock": threshold}).
		Suffix("RETURNING " + joinColumns(productColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build restock: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("restock products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}
