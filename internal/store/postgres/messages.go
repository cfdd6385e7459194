package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/store"
	"github.com/talentbridge/messaging/pkg/metrics"
)

const messageColumns = `id, sender_id, receiver_id, content, created_at, read, application_id`

// MessageStore implements store.MessageStore.
type MessageStore struct {
	db        *sqlx.DB
	publisher feed.Publisher
}

// NewMessageStore creates a message store.
func NewMessageStore(db *sqlx.DB, publisher feed.Publisher) *MessageStore {
	return &MessageStore{db: db, publisher: publisher}
}

func (r *MessageStore) Append(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg.SenderID == "" || msg.ReceiverID == "" {
		return nil, fmt.Errorf("%w: message needs sender and receiver", store.ErrInvalid)
	}

	id := msg.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, created_at, application_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + messageColumns

	var row model.Message
	err := r.db.QueryRowxContext(ctx, query,
		id, msg.SenderID, msg.ReceiverID, msg.Content, createdAt, msg.ApplicationID,
	).StructScan(&row)
	if err != nil {
		return nil, classify(err)
	}

	publish(ctx, r.publisher, store.TableMessages, feed.OpInsert, row.ID, map[string]string{
		store.ColumnReceiverID: row.ReceiverID,
		store.ColumnSenderID:   row.SenderID,
	})

	return &row, nil
}

func (r *MessageStore) RangeByParticipants(ctx context.Context, a, b string) ([]model.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC`

	var msgs []model.Message
	if err := r.db.SelectContext(ctx, &msgs, query, a, b); err != nil {
		return nil, classify(err)
	}
	msgs, dropped := store.KeepValidMessages(msgs)
	metrics.RecordMalformedRows("messages", dropped)
	return msgs, nil
}

func (r *MessageStore) ListByParticipant(ctx context.Context, userID string) ([]model.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at ASC, id ASC`

	var msgs []model.Message
	if err := r.db.SelectContext(ctx, &msgs, query, userID); err != nil {
		return nil, classify(err)
	}
	msgs, dropped := store.KeepValidMessages(msgs)
	metrics.RecordMalformedRows("messages", dropped)
	return msgs, nil
}

func (r *MessageStore) MarkRead(ctx context.Context, filter store.ReadFilter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	query, args := markReadQuery(filter)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if n > 0 {
		publish(ctx, r.publisher, store.TableMessages, feed.OpUpdate, "", map[string]string{
			store.ColumnReceiverID: filter.ReceiverID,
		})
	}
	return int(n), nil
}

func markReadQuery(filter store.ReadFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`UPDATE messages SET read = TRUE WHERE receiver_id = $1 AND read = FALSE`)
	args := []any{filter.ReceiverID}

	if filter.SenderID != "" {
		args = append(args, filter.SenderID)
		fmt.Fprintf(&b, ` AND sender_id = $%d`, len(args))
	}
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(filter.IDs))
		fmt.Fprintf(&b, ` AND id = ANY($%d)`, len(args))
	}
	return b.String(), args
}
