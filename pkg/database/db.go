package database

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrMissingDSN is a configuration fault. It is never retried and never
// degraded into an empty result.
var ErrMissingDSN = errors.New("database: DATABASE_URL is not set")

// Mode selects how handles are produced.
type Mode int

const (
	// ModePooled keeps one lazily built pool for the life of the process.
	ModePooled Mode = iota
	// ModeEphemeral builds a single-connection handle per call for
	// short-lived runtimes that keep no state between invocations.
	ModeEphemeral
)

func (m Mode) String() string {
	if m == ModeEphemeral {
		return "ephemeral"
	}
	return "pooled"
}

type Config struct {
	Mode Mode
	// DSNEnv names the environment variable holding the connection string.
	// It is read on every Handle call, not at construction.
	DSNEnv   string
	TimeZone string

	MaxConns        int
	IdleTimeout     time.Duration
	ConnectTimeout  time.Duration
	MaxConnLifetime time.Duration

	EphemeralIdleTimeout    time.Duration
	EphemeralConnectTimeout time.Duration

	// CloseGrace bounds how long an invalidated pool is waited on.
	CloseGrace time.Duration

	lookupEnv func(string) (string, bool)
}

// ConfigFromEnv reads DB config from environment variables
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if os.Getenv("DATABASE_EPHEMERAL") == "1" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		cfg.Mode = ModeEphemeral
	}
	cfg.TimeZone = os.Getenv("DATABASE_TIMEZONE")
	return cfg
}

// DefaultConfig returns the pooled-mode defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModePooled,
		DSNEnv:                  "DATABASE_URL",
		MaxConns:                10,
		IdleTimeout:             30 * time.Second,
		ConnectTimeout:          10 * time.Second,
		MaxConnLifetime:         30 * time.Minute,
		EphemeralIdleTimeout:    10 * time.Second,
		EphemeralConnectTimeout: 5 * time.Second,
		CloseGrace:              5 * time.Second,
	}
}

// WithLookup returns a copy of cfg resolving the DSN through fn instead of
// the process environment.
func (c Config) WithLookup(fn func(string) (string, bool)) Config {
	c.lookupEnv = fn
	return c
}

func (c Config) dsn() (string, error) {
	lookup := c.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	name := c.DSNEnv
	if name == "" {
		name = "DATABASE_URL"
	}
	v, _ := lookup(name)
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ErrMissingDSN
	}
	return v, nil
}

// Handle is a query-capable view over a connection. Callers must Release it
// when done; for pooled handles Release is a no-op.
type Handle struct {
	*sqlx.DB
	release func()
}

func NewHandle(db *sqlx.DB, release func()) *Handle {
	return &Handle{DB: db, release: release}
}

func (h *Handle) Release() {
	if h != nil && h.release != nil {
		h.release()
	}
}

// Provider hands out database handles and owns their lifetime.
type Provider interface {
	// Handle returns a usable handle, building one if needed.
	Handle(ctx context.Context) (*Handle, error)
	// Invalidate drops any cached connection state so the next Handle call
	// rebuilds from scratch. The state is cleared before Invalidate returns;
	// closing the old connections happens in the background and close
	// failures are discarded. Handles obtained before the call become
	// unusable and fail with "sql: database is closed". Safe to call when
	// nothing is cached.
	Invalidate()
	// Close releases cached state synchronously, for process shutdown.
	Close() error
}

// NewProvider selects the connection strategy once, from cfg.Mode.
func NewProvider(cfg Config, logger *zap.SugaredLogger) Provider {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.With("component", "database", "mode", cfg.Mode.String())
	if cfg.Mode == ModeEphemeral {
		return &ephemeralProvider{cfg: cfg, logger: logger}
	}
	return &pooledProvider{cfg: cfg, logger: logger}
}

// quoteParam escapes backslashes and single quotes and wraps the value in
// single quotes for key=value connection strings.
func quoteParam(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
