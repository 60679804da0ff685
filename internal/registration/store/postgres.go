// Package store persists registrations in PostgreSQL or in memory.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"registro/internal/registration/models"
	"registro/internal/registration/ports"
	id "registro/pkg/domain"
	"registro/pkg/platform/sentinel"
)

const uniqueViolation = "unique_violation"

// ConnAcquirer hands out one dedicated connection per call.
type ConnAcquirer interface {
	Acquire(ctx context.Context) (*sql.Conn, error)
}

// PostgresProvider opens a PostgresStore session per request.
type PostgresProvider struct {
	conns ConnAcquirer
}

// NewPostgresProvider builds a provider over conns (normally a database.Gateway).
func NewPostgresProvider(conns ConnAcquirer) *PostgresProvider {
	return &PostgresProvider{conns: conns}
}

// Acquire returns a session bound to a fresh connection. Gateway errors are
// returned untouched so their codes survive.
func (p *PostgresProvider) Acquire(ctx context.Context) (ports.Store, error) {
	conn, err := p.conns.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(conn), nil
}

// PostgresStore is a storage session over one *sql.Conn.
type PostgresStore struct {
	conn *sql.Conn
}

// NewPostgresStore wraps an already acquired connection.
func NewPostgresStore(conn *sql.Conn) *PostgresStore {
	return &PostgresStore{conn: conn}
}

// Create inserts reg in its own transaction and copies the server assigned
// created_at back onto reg.
func (s *PostgresStore) Create(ctx context.Context, reg *models.Registration) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO employees (id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err = tx.QueryRowContext(ctx, query, reg.ID.String(), reg.Name, reg.Email, reg.Phone).Scan(&reg.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == uniqueViolation {
			return fmt.Errorf("insert registration %s: %w", reg.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// List returns every record, oldest first. seq orders rows sharing a timestamp.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Registration, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, email, phone, created_at
		FROM employees
		ORDER BY created_at, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]*models.Registration, 0)
	for rows.Next() {
		var (
			rawID string
			reg   models.Registration
		)
		if err := rows.Scan(&rawID, &reg.Name, &reg.Email, &reg.Phone, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		parsed, err := id.ParseRegistrationID(rawID)
		if err != nil {
			return nil, fmt.Errorf("scan registration id %q: %w", rawID, err)
		}
		reg.ID = parsed
		regs = append(regs, &reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return regs, nil
}

// Close returns the connection to the pool.
func (s *PostgresStore) Close() error {
	return s.conn.Close()
}
