package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/models"
)

var _ Store = (*PostgresStore)(nil)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// snapshot runs fn in a read-only repeatable read transaction.
func (s *PostgresStore) snapshot(ctx context.Context, fn func(q querier) error) error {
	return database.WithTransaction(ctx, s.db, database.SnapshotTxOptions(), func(tx *sql.Tx) error {
		return fn(tx)
	})
}

func (s *PostgresStore) Summary(ctx context.Context) (*models.Summary, error) {
	summary := &models.Summary{}

	err := s.snapshot(ctx, func(q querier) error {
		return q.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM customers),
			       (SELECT COUNT(*) FROM orders),
			       (SELECT COALESCE(SUM(total_amount), 0) FROM orders)`).Scan(
			&summary.Customers,
			&summary.Orders,
			&summary.Revenue,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("summarize store: %w", err)
	}

	return summary, nil
}

// count runs SELECT COUNT(*) over from filtered by where.
func count(ctx context.Context, q querier, from string, where sq.Sqlizer) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From(from).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var total int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
