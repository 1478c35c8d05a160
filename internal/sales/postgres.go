package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore records sales in a Postgres table.
type PostgresStore struct {
	db      *sql.DB
	table   string
	nowFunc func() time.Time
}

// OpenPostgres opens a lib/pq connection pool for dsn.
func OpenPostgres(dsn, table string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresStore(db, table), nil
}

// NewPostgresStore wraps an existing *sql.DB.
func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	return &PostgresStore{db: db, table: table, nowFunc: time.Now}
}

// Migrate creates the sales table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		order_id BIGINT PRIMARY KEY,
		ordered_at TIMESTAMPTZ NOT NULL,
		product_name TEXT NOT NULL,
		product_variant TEXT NOT NULL DEFAULT '',
		amount BIGINT NOT NULL CHECK (amount > 0),
		payment_kind TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, pq.QuoteIdentifier(s.table))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Append inserts one sale. An existing order id leaves the row untouched and
// returns ErrDuplicate.
func (s *PostgresStore) Append(ctx context.Context, rec SaleRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.nowFunc()
	}
	q := fmt.Sprintf(`INSERT INTO %s (order_id, ordered_at, product_name, product_variant, amount, payment_kind, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING`, pq.QuoteIdentifier(s.table))

	res, err := s.db.ExecContext(ctx, q,
		rec.OrderID, rec.OrderedAt, rec.ProductName, rec.ProductVariant,
		rec.Amount, string(rec.PaymentKind), rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert sale %d: %w", rec.OrderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

// OrderIDs returns every recorded order id as text.
func (s *PostgresStore) OrderIDs(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`SELECT order_id::text FROM %s`, pq.QuoteIdentifier(s.table))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select order ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		out = append(out, id.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order ids: %w", err)
	}
	return out, nil
}

// Get fetches a sale by order id. Returns (nil, nil) if not found.
func (s *PostgresStore) Get(ctx context.Context, orderID int64) (*SaleRecord, error) {
	q := fmt.Sprintf(`SELECT order_id, ordered_at, product_name, product_variant, amount, payment_kind, recorded_at
		FROM %s WHERE order_id = $1`, pq.QuoteIdentifier(s.table))

	var rec SaleRecord
	var kind string
	err := s.db.QueryRowContext(ctx, q, orderID).Scan(
		&rec.OrderID, &rec.OrderedAt, &rec.ProductName, &rec.ProductVariant,
		&rec.Amount, &kind, &rec.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select sale %d: %w", orderID, err)
	}
	rec.PaymentKind = PaymentKind(kind)
	return &rec, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
