package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ephemeralProvider opens a fresh single-connection handle on every call.
// lib/pq only ever uses unnamed statements, so nothing prepared outlives a
// query.
type ephemeralProvider struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func (p *ephemeralProvider) Handle(ctx context.Context) (*Handle, error) {
	dsn, err := p.cfg.dsn()
	if err != nil {
		p.logger.Errorw("database not configured", "err", err)
		return nil, err
	}
	params := map[string]string{
		"connect_timeout": strconv.Itoa(int(p.cfg.EphemeralConnectTimeout.Seconds())),
	}
	if p.cfg.TimeZone != "" {
		params["timezone"] = p.cfg.TimeZone
	}
	connector, err := pq.NewConnector(withParams(dsn, params))
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(p.cfg.EphemeralIdleTimeout)

	db := sqlx.NewDb(sqlDB, "postgres")
	return NewHandle(db, func() {
		if err := db.Close(); err != nil {
			p.logger.Debugw("close ephemeral handle", "err", err)
		}
	}), nil
}

// Invalidate has nothing to drop: no handle outlives its call.
func (p *ephemeralProvider) Invalidate() {}

func (p *ephemeralProvider) Close() error { return nil }

// withParams adds connection parameters that are not already present in dsn.
// Both URL and key=value forms are accepted.
func withParams(dsn string, params map[string]string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		for k, v := range params {
			if q.Get(k) == "" {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
		return u.String()
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(dsn))
	for k, v := range params {
		if strings.Contains(dsn, k+"=") {
			continue
		}
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(quoteParam(v))
	}
	return b.String()
}
