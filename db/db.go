// Package db provides database connectivity and migration functionality for the blog API.
// It handles establishing the PostgreSQL connection pool, running SQL migrations, and
// opening the MongoDB client when the document-store backend is selected.
package db

import (
	"context"
	"errors"
	"log"
	"net"
	"net/url"
	"strconv"
	// `time` is used for setting timeouts and connection pool configurations.
	"time"

	// `golang-migrate` applies versioned SQL files from the migrations directory.
	"github.com/golang-migrate/migrate/v4"
	// The postgres database driver for golang-migrate (uses lib/pq under the hood).
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	// `_ "github.com/golang-migrate/migrate/v4/source/file"` registers the file source driver.
	_ "github.com/golang-migrate/migrate/v4/source/file"
	// `pgxpool` provides the connection pool used by the postgres store.
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // driver for database/sql, needed by migrate's postgres driver with DSN
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/config"
)

// NewPool establishes the pgxpool connection pool described by cfg and verifies it with a ping.
func NewPool(cfg *config.PoolConfig) (*pgxpool.Pool, error) {
	return NewPoolFromDSN(PostgresDSN(cfg), cfg.MaxSize)
}

// PostgresDSN builds a postgres:// URL from cfg, escaping the credentials and database name.
func PostgresDSN(cfg *config.PoolConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// NewPoolFromDSN is NewPool for callers (tests, tooling) that already hold a DSN.
func NewPoolFromDSN(dsn string, maxSize int) (*pgxpool.Pool, error) {
	// `pgxpool.ParseConfig` parses the DSN string into a `pgxpool.Config` struct.
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperror.NewDatabaseError("error parsing postgres DSN", err)
	}

	if maxSize > 0 {
		poolConfig.MaxConns = int32(maxSize)
	}
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.MaxConnLifetime = 30 * time.Minute

	// Use a context with a timeout so an unreachable database does not block startup forever.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperror.NewDatabaseError("error creating pgxpool", err)
	}

	// Verify the connection by pinging
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close() // Clean up on connection failure
		return nil, apperror.NewDatabaseError("error connecting to the database with pgxpool", err)
	}

	return pool, nil
}

// MigrationDSN constructs a DSN string from PoolConfig, suitable for golang-migrate.
func MigrationDSN(cfg *config.PoolConfig) string {
	return PostgresDSN(cfg)
}

// RunMigrations applies any pending database migrations from migrationsPath.
// Files follow golang-migrate naming: {version}_{title}.up.sql / .down.sql.
func RunMigrations(dsn string, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return apperror.NewDatabaseError("failed to create migrator", err)
	}
	// m.Close() returns two errors, one for the source and one for the database.
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			if srcErr != nil {
				log.Printf("Warning: error closing migration source: %v", srcErr)
			}
			if dbErr != nil {
				log.Printf("Warning: error closing migration database instance: %v", dbErr)
			}
		}
	}()

	// `migrate.ErrNoChange` is returned if there are no new migrations to apply, which is not an actual error.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperror.NewDatabaseError("failed to run migrations", err)
	}

	return nil
}

// ConnectMongo opens a MongoDB client for cfg.URL and pings the primary.
func ConnectMongo(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, apperror.NewDatabaseError("error connecting to mongodb", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperror.NewDatabaseError("error pinging mongodb", err)
	}
	return client, nil
}
