// Package database owns connectivity to PostgreSQL. Callers acquire one
// dedicated connection per request and must close it on every exit path.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"registro/internal/platform/config"
	dErrors "registro/pkg/domain-errors"
)

const defaultConnectTimeout = 5 * time.Second

// Gateway lazily opens a pooled *sql.DB on first Acquire. Missing
// configuration is only reported then, so the process can start (and serve
// /health) without a database.
type Gateway struct {
	cfg    config.Database
	logger *slog.Logger

	once sync.Once
	db   *sql.DB
	err  error
}

// New constructs a Gateway. It never connects.
func New(cfg config.Database, logger *slog.Logger) *Gateway {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return &Gateway{cfg: cfg, logger: logger}
}

// Acquire returns a live connection reserved for the caller. The connect
// attempt is bounded by the configured connect timeout.
//
// Errors carry CodeConfiguration when required settings are absent and
// CodeConnectivity when the server cannot be reached in time.
func (g *Gateway) Acquire(ctx context.Context) (*sql.Conn, error) {
	db, err := g.open()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.ConnectTimeout)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConnectivity, "database unavailable")
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, dErrors.Wrap(err, dErrors.CodeConnectivity, "database unavailable")
	}
	return conn, nil
}

// Close releases the pool. Safe to call when nothing was opened.
func (g *Gateway) Close() error {
	if g.db == nil {
		return nil
	}
	return g.db.Close()
}

func (g *Gateway) open() (*sql.DB, error) {
	g.once.Do(func() {
		if missing := g.cfg.Missing(); len(missing) > 0 {
			g.err = dErrors.New(dErrors.CodeConfiguration,
				"missing database environment variables: "+strings.Join(missing, ", "))
			return
		}
		connector, err := pq.NewConnector(DSN(g.cfg))
		if err != nil {
			g.err = dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid database configuration")
			return
		}
		db := sql.OpenDB(connector)
		if g.cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(g.cfg.MaxOpenConns)
		}
		if g.cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(g.cfg.MaxIdleConns)
		}
		if g.cfg.ConnMaxIdleTime > 0 {
			db.SetConnMaxIdleTime(g.cfg.ConnMaxIdleTime)
		}
		g.db = db
		if g.logger != nil {
			g.logger.Info("database pool opened",
				"host", g.cfg.Host,
				"port", g.cfg.Port,
				"database", g.cfg.Name,
			)
		}
	})
	return g.db, g.err
}

// DSN renders cfg as a postgres:// URL understood by lib/pq.
func DSN(cfg config.Database) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	// lib/pq takes whole seconds; round up so sub-second values still bound the dial
	seconds := int((timeout + time.Second - 1) / time.Second)

	query := url.Values{}
	if cfg.SSLMode != "" {
		query.Set("sslmode", cfg.SSLMode)
	}
	query.Set("connect_timeout", strconv.Itoa(seconds))

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// String hides the password when a gateway is printed.
func (g *Gateway) String() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", g.cfg.User, g.cfg.Host, g.cfg.Port, g.cfg.Name)
}
