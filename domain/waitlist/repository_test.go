package waitlist

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/akeren/lasting-loves-waitlist/internal/models"
	apperrors "github.com/akeren/lasting-loves-waitlist/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.ModelRegistry...))
	return db
}

func newMockPostgresDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)
	return db, mock
}

func TestWaitlistRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	repo := NewWaitlistRepository(newSQLiteDB(t))

	missing, err := repo.FindEntryByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	created, err := repo.CreateEntry(ctx, &models.WaitlistEntry{Email: "a@x.com"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.WaitlistStatusPending, created.Status)
	assert.False(t, created.JoinedAt.IsZero())

	found, err := repo.FindEntryByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Nil(t, found.Name)

	other, err := repo.FindEntryByEmail(ctx, "A@x.com")
	require.NoError(t, err)
	assert.Nil(t, other, "lookups are exact-match")

	_, err = repo.CreateEntry(ctx, &models.WaitlistEntry{Email: "a@x.com"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	count, err := repo.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWaitlistRepository_PostgresUniqueViolationIsConflict(t *testing.T) {
	db, mock := newMockPostgresDB(t)
	repo := NewWaitlistRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "waitlist_entries"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := repo.CreateEntry(context.Background(), &models.WaitlistEntry{Email: "a@x.com"})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepository_PostgresInsertFailureIsDatabaseError(t *testing.T) {
	db, mock := newMockPostgresDB(t)
	repo := NewWaitlistRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "waitlist_entries"`).WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := repo.CreateEntry(context.Background(), &models.WaitlistEntry{Email: "a@x.com"})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDatabaseError))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepository_PostgresCount(t *testing.T) {
	db, mock := newMockPostgresDB(t)
	repo := NewWaitlistRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "waitlist_entries"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "waitlist_entries"`).
		WillReturnError(errors.New("canceling statement due to statement timeout"))

	count, err := repo.CountEntries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	_, err = repo.CountEntries(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDatabaseError))
	assert.NoError(t, mock.ExpectationsWereMet())
}
