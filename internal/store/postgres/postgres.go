// Package postgres implements the stores on PostgreSQL via sqlx.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/internal/store"
)

//go:embed schema.sql
var schema string

// Connect opens a connection pool to the database.
func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Stores groups every table backed by one pool.
type Stores struct {
	Messages      *MessageStore
	Notifications *NotificationStore
	Directory     *Directory
}

// NewStores creates all stores on db. A nil publisher disables change events.
func NewStores(db *sqlx.DB, publisher feed.Publisher) *Stores {
	if publisher == nil {
		publisher = feed.NoopPublisher{}
	}
	return &Stores{
		Messages:      NewMessageStore(db, publisher),
		Notifications: NewNotificationStore(db, publisher),
		Directory:     NewDirectory(db),
	}
}

// classify maps driver errors onto store sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23":
			// data exception or integrity constraint violation
			return fmt.Errorf("%w: %s", store.ErrInvalid, pqErr.Message)
		}
	}
	return err
}

func publish(ctx context.Context, p feed.Publisher, table string, op feed.Op, rowID string, keys map[string]string) {
	_ = p.Publish(ctx, table, op, rowID, keys)
}
