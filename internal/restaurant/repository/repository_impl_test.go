package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestFindByIDForUpdate_LocksRow(t *testing.T) {
	db, mock := newMockDB(t)
	end := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "price_per_month", "start_date", "end_date", "is_active", "created_at", "updated_at"}).
		AddRow(int64(7), "Cafe", "cafe@example.com", "150", end.AddDate(0, -1, 0), end, true, end, end)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM restaurants WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	item, err := Provide().FindByIDForUpdate(context.Background(), db, snowflake.ID(7))
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, "Cafe", item.Name)
	require.True(t, item.EndDate.Equal(end))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFoundReturnsNil(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM restaurants WHERE id = $1 LIMIT 1`)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	item, err := Provide().FindByID(context.Background(), db, snowflake.ID(9))
	require.NoError(t, err)
	require.Nil(t, item)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddLocationTables_UnknownLocation(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE restaurant_locations`)).
		WithArgs(3, now, int64(11), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := Provide().AddLocationTables(context.Background(), db, snowflake.ID(7), snowflake.ID(11), 3, now)
	if !errors.Is(err, domain.ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveEndingBetween_BindsWindow(t *testing.T) {
	db, mock := newMockDB(t)
	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 5)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE is_active = $1 AND end_date >= $2 AND end_date < $3`)).
		WithArgs(true, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "A").AddRow(int64(2), "B"))

	items, err := Provide().ListActiveEndingBetween(context.Background(), db, from, to)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
