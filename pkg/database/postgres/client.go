package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/huynhanx03/go-thumb/pkg/database/postgres/migrations"
	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/utils"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 1800
	defaultSSLMode         = "disable"
)

var ErrPingFailed = errors.New("failed to ping postgres")

type PostgresEngine struct {
	pool   *pgxpool.Pool
	config *settings.Database
}

// NewConnection opens a pgx pool and verifies it.
func NewConnection(ctx context.Context, cfg *settings.Database) (*PostgresEngine, error) {
	engine := &PostgresEngine{config: cfg}
	engine.setDefaultConfig()

	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres config")
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = utils.ToDuration(cfg.ConnMaxLifetime)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create postgres pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrPingFailed, err)
	}

	engine.pool = pool
	return engine, nil
}

func (e *PostgresEngine) setDefaultConfig() {
	if e.config.MaxOpenConns == 0 {
		e.config.MaxOpenConns = defaultMaxOpenConns
	}
	if e.config.MaxIdleConns == 0 {
		e.config.MaxIdleConns = defaultMaxIdleConns
	}
	if e.config.ConnMaxLifetime == 0 {
		e.config.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if e.config.SSLMode == "" {
		e.config.SSLMode = defaultSSLMode
	}
}

// DSN builds a postgres:// URL from cfg.
func DSN(cfg *settings.Database) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RunMigrations applies every embedded migration not yet applied.
func (e *PostgresEngine) RunMigrations() error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return errors.Wrap(err, "create migration source")
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, DSN(e.config))
	if err != nil {
		return errors.Wrap(err, "create migrator")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration failed")
	}
	return nil
}

// Pool returns the underlying pool.
func (e *PostgresEngine) Pool() *pgxpool.Pool {
	return e.pool
}

func (e *PostgresEngine) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}
