// Package databasetest provides a database.Provider backed by sqlmock.
package databasetest

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
)

// Provider hands out the same mocked handle on every call and counts
// invalidations.
type Provider struct {
	// Err, when set, is returned by Handle instead of a handle.
	Err error

	db            *sqlx.DB
	mu            sync.Mutex
	handles       int
	invalidations int
}

func New(t testing.TB) (*Provider, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &Provider{db: sqlx.NewDb(sqlDB, "postgres")}, mock
}

func (p *Provider) Handle(ctx context.Context) (*database.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	p.handles++
	return database.NewHandle(p.db, nil), nil
}

func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.invalidations++
	p.mu.Unlock()
}

func (p *Provider) Close() error { return nil }

func (p *Provider) Handles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handles
}

func (p *Provider) Invalidations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invalidations
}
