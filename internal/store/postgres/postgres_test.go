package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/talentbridge/messaging/internal/store"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(sql.ErrNoRows), store.ErrNotFound)
	assert.ErrorIs(t, classify(fmt.Errorf("get: %w", sql.ErrNoRows)), store.ErrNotFound)

	fk := &pq.Error{Code: "23503", Message: "violates foreign key constraint"}
	assert.ErrorIs(t, classify(fk), store.ErrInvalid)

	badUUID := &pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"}
	assert.ErrorIs(t, classify(badUUID), store.ErrInvalid)

	timeout := &pq.Error{Code: "57014", Message: "canceling statement"}
	err := classify(timeout)
	assert.False(t, errors.Is(err, store.ErrInvalid))
	assert.False(t, errors.Is(err, store.ErrNotFound))
}

func TestMarkReadQuery(t *testing.T) {
	q, args := markReadQuery(store.ReadFilter{ReceiverID: "a"})
	assert.Equal(t, `UPDATE messages SET read = TRUE WHERE receiver_id = $1 AND read = FALSE`, q)
	assert.Equal(t, []any{"a"}, args)

	q, args = markReadQuery(store.ReadFilter{ReceiverID: "a", SenderID: "b"})
	assert.Contains(t, q, `AND sender_id = $2`)
	assert.Len(t, args, 2)

	q, args = markReadQuery(store.ReadFilter{ReceiverID: "a", IDs: []string{"m1", "m2"}})
	assert.Contains(t, q, `AND id = ANY($2)`)
	assert.NotContains(t, q, `sender_id`)
	assert.Len(t, args, 2)

	q, args = markReadQuery(store.ReadFilter{ReceiverID: "a", SenderID: "b", IDs: []string{"m1"}})
	assert.Contains(t, q, `AND sender_id = $2 AND id = ANY($3)`)
	assert.Len(t, args, 3)
}

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS messages")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS notifications")
}
