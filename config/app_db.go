package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/akeren/lasting-loves-waitlist/pkg/retry"
	"github.com/akeren/lasting-loves-waitlist/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultDatabaseURL = "postgres://localhost:5432/lasting_loves_waitlist?sslmode=disable"
	DefaultSQLitePath  = "waitlist.db"
)

type DBConfig struct {
	Driver          string
	SQLitePath      string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnectAttempts int
	SSLMode         string
}

func NewDBConfig() *DBConfig {
	return &DBConfig{
		Driver:          strings.ToLower(utils.GetEnvTrimmedOrDefault("DB_DRIVER", DriverPostgres)),
		SQLitePath:      utils.GetEnvTrimmedOrDefault("SQLITE_PATH", DefaultSQLitePath),
		MaxIdleConns:    10,
		MaxOpenConns:    50,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectAttempts: utils.GetEnvPositiveInt("DB_CONNECT_ATTEMPTS", 3),
		SSLMode:         "require",
	}
}

// NewDatabase opens and pings the configured database, backing off between
// attempts while the server is unreachable.
func NewDatabase(ctx context.Context, logger *log.Logger, cfg *DBConfig) (*gorm.DB, error) {
	if cfg == nil {
		cfg = NewDBConfig()
	}

	dialector, err := newDialector(logger, cfg)
	if err != nil {
		return nil, err
	}

	policy := retry.NewExponentialBackoff(&retry.Config{
		MaxAttempts: cfg.ConnectAttempts,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("Database not reachable yet; retrying", "attempt", attempt, "delay", delay, "error", err)
		},
	})

	var gdb *gorm.DB
	err = policy.Execute(ctx, func(ctx context.Context) error {
		opened, openErr := gorm.Open(dialector, &gorm.Config{TranslateError: true})
		if openErr != nil {
			return openErr
		}
		sqlDB, dbErr := opened.DB()
		if dbErr != nil {
			return dbErr
		}
		if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
			_ = sqlDB.Close()
			return pingErr
		}
		gdb = opened
		return nil
	})
	if err != nil {
		logger.Error("Failed to connect to database", "driver", cfg.Driver, "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite serialises writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Info("Database connection established successfully", "driver", cfg.Driver)
	return gdb, nil
}

func newDialector(logger *log.Logger, cfg *DBConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite:
		logger.Info("Using SQLite database", "path", cfg.SQLitePath)
		return sqlite.Open(cfg.SQLitePath), nil
	case DriverPostgres, "":
		dsn, err := resolvePostgresDSN(logger, cfg.SSLMode)
		if err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (expected %q or %q)", cfg.Driver, DriverPostgres, DriverSQLite)
	}
}

// resolvePostgresDSN prefers APP_DATABASE_URL, then DATABASE_URL, then the
// discrete POSTGRES_* variables, then the local default.
func resolvePostgresDSN(logger *log.Logger, defaultSSLMode string) (string, error) {
	for _, key := range []string{"APP_DATABASE_URL", "DATABASE_URL"} {
		if dsn := sanitizeEnv(utils.GetEnvTrimmed(key)); dsn != "" {
			logger.Info("Using connection string for database", "source", key)
			return dsn, nil
		}
	}

	host := sanitizeEnv(utils.GetEnvTrimmed("POSTGRES_HOST"))
	if host == "" {
		logger.Warn("No database configuration found; using local default", "dsn", DefaultDatabaseURL)
		return DefaultDatabaseURL, nil
	}

	port := sanitizeEnv(utils.GetEnvTrimmedOrDefault("POSTGRES_PORT", "5432"))
	user := sanitizeEnv(utils.GetEnvTrimmed("POSTGRES_USER"))
	dbName := sanitizeEnv(utils.GetEnvTrimmed("POSTGRES_DB_NAME"))
	ssl := sanitizeEnv(utils.GetEnvTrimmedOrDefault("POSTGRES_SSLMODE", defaultSSLMode))

	var missing []string
	if user == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if dbName == "" {
		missing = append(missing, "POSTGRES_DB_NAME")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required database env vars: %s", strings.Join(missing, ", "))
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, sanitizeEnv(utils.GetEnvTrimmed("POSTGRES_PASSWORD"))),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + dbName,
		RawQuery: url.Values{"sslmode": []string{ssl}}.Encode(),
	}

	logger.Info("Connecting to database", "host", host, "port", port, "user", user, "dbname", dbName, "sslmode", ssl)
	return u.String(), nil
}

func sanitizeEnv(v string) string {
	s := strings.TrimSpace(v)

	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		s = s[1 : len(s)-1]
	}

	return s
}

func AutoMigrate(logger *log.Logger, db *gorm.DB, models ...interface{}) error {
	if db == nil {
		return errors.New("cannot migrate: db is nil")
	}

	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Database migration failed", "error", err)
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	logger.Info("Database migration completed successfully")
	return nil
}

func CloseDatabase(db *gorm.DB, logger *log.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get SQL DB instance", "error", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	} else {
		logger.Info("Database closed successfully")
	}
}
