// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/alfredjeanlab/notifyd/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	return queryCreateNotification(ctx, s.db, n)
}

func (s *PostgresStore) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	n, err := queryGetNotification(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return n, err
}

// UpdateStatus writes u only if the row is still in status from. When no row
// matches, a follow-up lookup tells a missing row apart from a lost race.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from model.Status, u store.StatusUpdate) error {
	err := queryUpdateStatus(ctx, s.db, id, from, u)
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	exists, err := queryNotificationExists(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Notification, error) {
	return queryListByOwner(ctx, s.db, ownerID, limit)
}

func (s *PostgresStore) CountByStatus(ctx context.Context, ownerID string, statuses ...model.Status) (int, error) {
	return queryCountByStatus(ctx, s.db, ownerID, statuses)
}

func (s *PostgresStore) ListRetryable(ctx context.Context, limit int) ([]*model.Notification, error) {
	return queryListRetryable(ctx, s.db, limit)
}

func (s *PostgresStore) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Notification, error) {
	return queryListOlderThan(ctx, s.db, cutoff, model.StatusPending, limit)
}

func (s *PostgresStore) ListOlderThan(ctx context.Context, cutoff time.Time, status model.Status, limit int) ([]*model.Notification, error) {
	return queryListOlderThan(ctx, s.db, cutoff, status, limit)
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, status model.Status) (int64, error) {
	return queryDeleteOlderThan(ctx, s.db, cutoff, status)
}
