package db

import (
	"context"
	"fmt"
	"time"

	"restaurant-app/internal/xpkg/config"
	xerrors "restaurant-app/internal/xpkg/errors"
	"restaurant-app/internal/xpkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectTimeout = 10 * time.Second

type DB struct {
	ctx   context.Context
	pool  *pgxpool.Pool
	mylog logger.Logger
}

// Start opens a connection pool and verifies it with a ping.
func Start(ctx context.Context, dbCfg *config.Postgres, mylog logger.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrDBConn, err)
	}

	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", xerrors.ErrDBConn, err)
	}

	mylog.Action("db_connected").Debug("Connected to PostgreSQL", "host", dbCfg.Host, "database", dbCfg.Database)
	return &DB{ctx: ctx, pool: pool, mylog: mylog}, nil
}

func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// IsAlive pings the pool.
func (d *DB) IsAlive() error {
	if d.pool == nil {
		return xerrors.ErrDBConn
	}
	ctx, cancel := context.WithTimeout(d.ctx, 5*time.Second)
	defer cancel()
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrDBConn, err)
	}
	return nil
}

func (d *DB) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}
