// Package postgres stores each cart as one row holding its lines as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/83west/storefront/core/cart"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded migrations that are not applied yet.
func Migrate(db *sqlx.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

type Persister struct {
	db  *sqlx.DB
	now func() time.Time
}

func New(db *sqlx.DB) *Persister {
	return &Persister{db: db, now: time.Now}
}

const loadQuery = `SELECT lines FROM carts WHERE cart_id = $1`

const saveQuery = `
INSERT INTO carts (cart_id, lines, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (cart_id) DO UPDATE
SET lines = EXCLUDED.lines, updated_at = EXCLUDED.updated_at`

func (p *Persister) Load(ctx context.Context, cartID string) ([]cart.Line, error) {
	var raw []byte
	err := p.db.GetContext(ctx, &raw, loadQuery, cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting cart[%s]: %w", cartID, err)
	}

	return cart.Decode(raw)
}

func (p *Persister) Save(ctx context.Context, cartID string, lines []cart.Line) error {
	b, err := cart.Encode(lines)
	if err != nil {
		return err
	}

	// lib/pq sends []byte as bytea, which JSONB does not accept.
	if _, err := p.db.ExecContext(ctx, saveQuery, cartID, string(b), p.now().UTC()); err != nil {
		return fmt.Errorf("upserting cart[%s]: %w", cartID, err)
	}
	return nil
}
