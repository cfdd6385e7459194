package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/store"
	"github.com/talentbridge/messaging/pkg/metrics"
)

const notificationColumns = `id, user_id, type, job_id, application_id, message, read, created_at`

// NotificationStore implements store.NotificationStore.
type NotificationStore struct {
	db        *sqlx.DB
	publisher feed.Publisher
}

// NewNotificationStore creates a notification store.
func NewNotificationStore(db *sqlx.DB, publisher feed.Publisher) *NotificationStore {
	return &NotificationStore{db: db, publisher: publisher}
}

func (r *NotificationStore) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	if n.UserID == "" || !n.Type.Valid() {
		return nil, fmt.Errorf("%w: notification needs user and known type", store.ErrInvalid)
	}

	id := n.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notifications (id, user_id, type, job_id, application_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + notificationColumns

	var row model.Notification
	err := r.db.QueryRowxContext(ctx, query,
		id, n.UserID, n.Type, n.JobID, n.ApplicationID, n.Message, createdAt,
	).StructScan(&row)
	if err != nil {
		return nil, classify(err)
	}

	publish(ctx, r.publisher, store.TableNotifications, feed.OpInsert, row.ID, map[string]string{
		store.ColumnUserID: row.UserID,
	})
	return &row, nil
}

func (r *NotificationStore) ListForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	var ns []model.Notification
	if err := r.db.SelectContext(ctx, &ns, query, userID); err != nil {
		return nil, classify(err)
	}
	ns, dropped := store.KeepValidNotifications(ns)
	metrics.RecordMalformedRows("notifications", dropped)
	return ns, nil
}

func (r *NotificationStore) MarkRead(ctx context.Context, userID, id string) (int, error) {
	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND id = $2 AND read = FALSE`
	return r.update(ctx, userID, query, userID, id)
}

func (r *NotificationStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`
	return r.update(ctx, userID, query, userID)
}

func (r *NotificationStore) update(ctx context.Context, userID, query string, args ...any) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: notification update must be scoped to a user", store.ErrInvalid)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if n > 0 {
		publish(ctx, r.publisher, store.TableNotifications, feed.OpUpdate, "", map[string]string{
			store.ColumnUserID: userID,
		})
	}
	return int(n), nil
}
