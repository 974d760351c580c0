package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"matribhumi/api/logger"
)

type DBClient struct {
	DB  *sql.DB
	log *logger.Logger
}

func NewPostgresDB(dbURL string, log *logger.Logger) (*DBClient, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	log.Info("connected to PostgreSQL")
	return &DBClient{DB: db, log: log}, nil
}

// schema is idempotent; the events table is only written when EVENT_STORE=postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS admin_users (
		id              SERIAL PRIMARY KEY,
		name            TEXT NOT NULL,
		email           TEXT NOT NULL UNIQUE,
		role            TEXT NOT NULL DEFAULT 'editor' CHECK (role IN ('admin', 'editor', 'viewer')),
		hashed_password BYTEA NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login_at   TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id                 UUID PRIMARY KEY,
		type               TEXT NOT NULL CHECK (type IN ('page_view', 'package_view', 'booking_submit', 'whatsapp_open')),
		occurred_at        TIMESTAMPTZ NOT NULL,
		path               TEXT,
		package_id         TEXT,
		booking_id         TEXT,
		origin_fingerprint TEXT,
		user_agent         TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_type_occurred_at ON events (type, occurred_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events (occurred_at)`,
}

// EnsureSchema creates the tables this service owns.
func (c *DBClient) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (c *DBClient) Close() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.log.WithError(err).Warn("error closing database connection")
			return
		}
		c.log.Info("PostgreSQL database connection closed")
	}
}
