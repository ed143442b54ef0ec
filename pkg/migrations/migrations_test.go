package migrations

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	mu    sync.Mutex
	infos []string
}

func (l *testLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}
func (l *testLogger) Warn(string, ...any)  {}
func (l *testLogger) Error(string, ...any) {}

type fakeMigrator struct {
	upErr      error
	steps      []int
	version    uint
	versionErr error
	closed     atomic.Bool
	block      chan struct{}
}

func (m *fakeMigrator) Up() error {
	if m.block != nil {
		<-m.block
	}
	return m.upErr
}

func (m *fakeMigrator) Steps(n int) error {
	m.steps = append(m.steps, n)
	return nil
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	return m.version, false, m.versionErr
}

func (m *fakeMigrator) Close() (error, error) {
	if m.closed.CompareAndSwap(false, true) && m.block != nil {
		close(m.block)
	}
	return nil, nil
}

type captured struct {
	sourceURL string
	database  string
	cfg       Config
}

// stubFactories swaps the driver and migrator constructors for the test.
func stubFactories(t *testing.T, m *fakeMigrator) *captured {
	t.Helper()

	origDriver, origMigrator := driverFactory, migratorFactory
	t.Cleanup(func() {
		driverFactory, migratorFactory = origDriver, origMigrator
	})

	got := &captured{}
	driverFactory = func(_ *sql.DB, cfg Config) (database.Driver, error) {
		got.cfg = cfg
		return nil, nil
	}
	migratorFactory = func(sourceURL, databaseName string, _ database.Driver) (migrator, error) {
		got.sourceURL = sourceURL
		got.database = databaseName
		return m, nil
	}
	return got
}

func TestUp_NilDB(t *testing.T) {
	assert.Error(t, Up(context.Background(), nil, Config{}))
}

func TestUp_CancelledContextSkipsMigrator(t *testing.T) {
	got := stubFactories(t, &fakeMigrator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Up(ctx, &sql.DB{}, Config{Dir: t.TempDir()})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got.sourceURL)
}

func TestUp_DeadlineClosesMigrator(t *testing.T) {
	m := &fakeMigrator{block: make(chan struct{})}
	stubFactories(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Up(ctx, &sql.DB{}, Config{Dir: t.TempDir()})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, m.closed.Load())
}

func TestUp_NoChangeIsSuccess(t *testing.T) {
	stubFactories(t, &fakeMigrator{upErr: migrate.ErrNoChange})
	logger := &testLogger{}

	require.NoError(t, Up(context.Background(), &sql.DB{}, Config{Dir: t.TempDir(), Logger: logger}))
	assert.Contains(t, logger.infos, "No migrations to apply")
}

func TestUp_WrapsFailure(t *testing.T) {
	stubFactories(t, &fakeMigrator{upErr: errors.New("syntax error at or near")})

	err := Up(context.Background(), &sql.DB{}, Config{Dir: t.TempDir()})

	assert.ErrorContains(t, err, "migrations: up")
}

func TestUp_DefaultsAndSourceURL(t *testing.T) {
	got := stubFactories(t, &fakeMigrator{})
	dir := filepath.Join(t.TempDir(), "my migrations dir")

	require.NoError(t, Up(context.Background(), &sql.DB{}, Config{Dir: dir}))

	abs, _ := filepath.Abs(dir)
	parsed, err := url.Parse(got.sourceURL)
	require.NoError(t, err)
	assert.Equal(t, "file", parsed.Scheme)
	assert.Equal(t, filepath.ToSlash(abs), parsed.Path)
	assert.Equal(t, "schema_migrations", got.cfg.MigrationsTable)
	assert.Equal(t, DriverPostgres, got.database)
}

func TestUp_SQLiteDriverName(t *testing.T) {
	got := stubFactories(t, &fakeMigrator{})

	require.NoError(t, Up(context.Background(), &sql.DB{}, Config{Dir: t.TempDir(), Driver: DriverSQLite}))

	assert.Equal(t, DriverSQLite, got.database)
}

func TestDown_StepsBackwards(t *testing.T) {
	m := &fakeMigrator{}
	stubFactories(t, m)

	require.NoError(t, Down(context.Background(), &sql.DB{}, Config{Dir: t.TempDir()}, 1))
	assert.Equal(t, []int{-1}, m.steps)

	assert.Error(t, Down(context.Background(), &sql.DB{}, Config{Dir: t.TempDir()}, 0))
}

func TestVersion(t *testing.T) {
	stubFactories(t, &fakeMigrator{version: 1})

	version, dirty, ok, err := Version(context.Background(), &sql.DB{}, Config{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestVersion_EmptyDatabase(t *testing.T) {
	stubFactories(t, &fakeMigrator{versionErr: migrate.ErrNilVersion})

	_, _, ok, err := Version(context.Background(), &sql.DB{}, Config{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDriverFactory_RejectsUnknownDriver(t *testing.T) {
	_, err := driverFactory(&sql.DB{}, Config{Driver: "mysql"})
	assert.Error(t, err)
}
