package sales

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newPostgresMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := NewPostgresStore(db, "sales")
	store.nowFunc = func() time.Time { return time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC) }
	return store, mock
}

func TestPostgresAppend_Inserts(t *testing.T) {
	store, mock := newPostgresMock(t)
	rec := sampleSale(20250001)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "sales"`)).
		WithArgs(rec.OrderID, rec.OrderedAt, rec.ProductName, "", rec.Amount, "instant", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Append(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppend_ConflictIsDuplicate(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (order_id) DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Append(context.Background(), sampleSale(20250001))
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppend_ExecError(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "sales"`)).
		WillReturnError(errors.New("connection reset"))

	err := store.Append(context.Background(), sampleSale(1))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicate)
}

func TestPostgresOrderIDs(t *testing.T) {
	store, mock := newPostgresMock(t)

	rows := sqlmock.NewRows([]string{"order_id"}).
		AddRow("20250001").
		AddRow("20250002").
		AddRow(nil)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT order_id::text FROM "sales"`)).WillReturnRows(rows)

	ids, err := store.OrderIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"20250001", "20250002", ""}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "sales"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet(t *testing.T) {
	store, mock := newPostgresMock(t)
	at := time.Date(2025, 3, 1, 14, 5, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "sales" WHERE order_id = $1`)).
		WithArgs(int64(20250001)).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "ordered_at", "product_name", "product_variant", "amount", "payment_kind", "recorded_at"}).
			AddRow(int64(20250001), at, "猫ステッカー", "", int64(500), "instant", at))

	got, err := store.Get(context.Background(), 20250001)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, int64(500), got.Amount)
	require.Equal(t, PaymentInstant, got.PaymentKind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet_Missing(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = $1`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

	got, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	require.Nil(t, got)
}
