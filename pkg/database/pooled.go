package database

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type pooledState struct {
	pool *pgxpool.Pool
	db   *sqlx.DB
}

// pooledProvider lazily builds one pgx pool and serves it until invalidated.
// The cached state is swapped with single atomic operations; there is no
// lock around construction.
type pooledProvider struct {
	cfg    Config
	logger *zap.SugaredLogger
	state  atomic.Pointer[pooledState]
}

func (p *pooledProvider) Handle(ctx context.Context) (*Handle, error) {
	if st := p.state.Load(); st != nil {
		return NewHandle(st.db, nil), nil
	}
	dsn, err := p.cfg.dsn()
	if err != nil {
		p.logger.Errorw("database not configured", "err", err)
		return nil, err
	}
	st, err := p.open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if !p.state.CompareAndSwap(nil, st) {
		// another caller installed a pool first
		p.closeAsync(st)
		return p.Handle(ctx)
	}
	p.logger.Infow("connection pool created",
		"max_conns", p.cfg.MaxConns,
		"idle_timeout", p.cfg.IdleTimeout,
		"max_lifetime", p.cfg.MaxConnLifetime,
	)
	return NewHandle(st.db, nil), nil
}

func (p *pooledProvider) open(ctx context.Context, dsn string) (*pooledState, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = int32(p.cfg.MaxConns)
	cfg.MaxConnIdleTime = p.cfg.IdleTimeout
	cfg.MaxConnLifetime = p.cfg.MaxConnLifetime
	cfg.ConnConfig.ConnectTimeout = p.cfg.ConnectTimeout
	cfg.ConnConfig.OnNotice = func(*pgconn.PgConn, *pgconn.Notice) {}
	// Poolers in transaction mode cannot hold session-level prepared
	// statements, so every query is sent unprepared.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec
	cfg.ConnConfig.StatementCacheCapacity = 0
	cfg.ConnConfig.DescriptionCacheCapacity = 0
	if p.cfg.TimeZone != "" {
		cfg.ConnConfig.RuntimeParams["timezone"] = p.cfg.TimeZone
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	sqlDB := stdlib.OpenDBFromPool(pool)
	sqlDB.SetMaxOpenConns(p.cfg.MaxConns)
	sqlDB.SetConnMaxIdleTime(p.cfg.IdleTimeout)
	sqlDB.SetConnMaxLifetime(p.cfg.MaxConnLifetime)
	return &pooledState{pool: pool, db: sqlx.NewDb(sqlDB, "pgx")}, nil
}

func (p *pooledProvider) Invalidate() {
	if st := p.state.Swap(nil); st != nil {
		p.logger.Infow("connection pool invalidated")
		p.closeAsync(st)
	}
}

func (p *pooledProvider) Close() error {
	st := p.state.Swap(nil)
	if st == nil {
		return nil
	}
	err := st.db.Close()
	st.pool.Close()
	return err
}

// closeAsync releases st in the background. Waiting stops after the grace
// period; close errors are only logged.
func (p *pooledProvider) closeAsync(st *pooledState) {
	grace := p.cfg.CloseGrace
	go func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := st.db.Close(); err != nil {
				p.logger.Debugw("close pooled handle", "err", err)
			}
			st.pool.Close()
		}()
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			p.logger.Debugw("pool close still in flight", "grace", grace)
		}
	}()
}
