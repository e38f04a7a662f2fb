package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/83west/storefront/core/cart"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cartID = "7d9e5a61-4b0c-4f0b-8a8e-2f6b1d0c9e33"

func setupMockDB(t *testing.T) (*Persister, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := New(sqlx.NewDb(db, "postgres"))
	p.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return p, mock
}

func TestLoad(t *testing.T) {
	p, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(loadQuery)).
		WithArgs(cartID).
		WillReturnRows(sqlmock.NewRows([]string{"lines"}).
			AddRow([]byte(`[{"id":2,"name":"Daytona","price":"1250.5","quantity":2}]`)))

	got, err := p.Load(context.Background(), cartID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].ProductID)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("1250.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_NotFound(t *testing.T) {
	p, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(loadQuery)).
		WithArgs(cartID).
		WillReturnError(sql.ErrNoRows)

	_, err := p.Load(context.Background(), cartID)
	assert.ErrorIs(t, err, cart.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_QueryError(t *testing.T) {
	p, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(loadQuery)).
		WithArgs(cartID).
		WillReturnError(errors.New("connection reset"))

	_, err := p.Load(context.Background(), cartID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, cart.ErrNotFound)
	assert.NotErrorIs(t, err, cart.ErrMalformed)
}

func TestLoad_Malformed(t *testing.T) {
	p, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(loadQuery)).
		WithArgs(cartID).
		WillReturnRows(sqlmock.NewRows([]string{"lines"}).AddRow([]byte(`{"id":2}`)))

	_, err := p.Load(context.Background(), cartID)
	assert.ErrorIs(t, err, cart.ErrMalformed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave(t *testing.T) {
	p, mock := setupMockDB(t)

	lines := []cart.Line{{ProductID: 1, Name: "Submariner", Price: decimal.NewFromInt(9500), Quantity: 1}}
	want, err := cart.Encode(lines)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(saveQuery)).
		WithArgs(cartID, string(want), p.now().UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.Save(context.Background(), cartID, lines))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_Error(t *testing.T) {
	p, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(saveQuery)).
		WillReturnError(errors.New("read-only transaction"))

	assert.Error(t, p.Save(context.Background(), cartID, nil))
}
