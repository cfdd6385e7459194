package postgres

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/store"
)

var (
	messageCols      = []string{"id", "sender_id", "receiver_id", "content", "created_at", "read", "application_id"}
	notificationCols = []string{"id", "user_id", "type", "job_id", "application_id", "message", "read", "created_at"}
)

type recordedEvent struct {
	table string
	op    feed.Op
	keys  map[string]string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, table string, op feed.Op, _ string, keys map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{table: table, op: op, keys: keys})
	return nil
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

// queryLike matches SQL containing parts in order.
func queryLike(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(quoted, ".*")
}

func TestMessageStore_RangeByParticipants(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewMessageStore(db, feed.NoopPublisher{})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(queryLike(
		"FROM messages",
		"WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)",
		"ORDER BY created_at ASC, id ASC",
	)).
		WithArgs("alice", "bob").
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow("m1", "bob", "alice", "hello", at, true, nil).
			AddRow("m2", "", "alice", "no sender", at.Add(time.Second), false, nil).
			AddRow("m3", "alice", "bob", "hi", at.Add(2*time.Second), false, "app-1"))

	msgs, err := s.RangeByParticipants(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2, "malformed row is dropped")
	assert.Equal(t, "m1", msgs[0].ID)
	assert.True(t, msgs[0].Read)
	assert.Nil(t, msgs[0].ApplicationID)
	assert.Equal(t, "m3", msgs[1].ID)
	require.NotNil(t, msgs[1].ApplicationID)
	assert.Equal(t, "app-1", *msgs[1].ApplicationID)
}

func TestMessageStore_ListByParticipant(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewMessageStore(db, feed.NoopPublisher{})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(queryLike(
		"WHERE sender_id = $1 OR receiver_id = $1",
		"ORDER BY created_at ASC, id ASC",
	)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow("m1", "bob", "alice", "hello", at, false, nil).
			AddRow("m2", "alice", "carol", "hey", at.Add(time.Second), false, nil))

	msgs, err := s.ListByParticipant(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, []string{msgs[0].ID, msgs[1].ID})
}

func TestMessageStore_QueryErrorIsClassified(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewMessageStore(db, feed.NoopPublisher{})

	mock.ExpectQuery(queryLike("FROM messages")).
		WithArgs("alice", "bob").
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err := s.RangeByParticipants(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, store.ErrInvalid)
}

func TestMessageStore_MarkReadPublishesOnlyOnChange(t *testing.T) {
	db, mock := newMockDB(t)
	pub := &recordingPublisher{}
	s := NewMessageStore(db, pub)
	filter := store.ReadFilter{ReceiverID: "alice", SenderID: "bob"}

	mock.ExpectExec(queryLike("UPDATE messages SET read = TRUE WHERE receiver_id = $1 AND read = FALSE AND sender_id = $2")).
		WithArgs("alice", "bob").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(queryLike("UPDATE messages SET read = TRUE")).
		WithArgs("alice", "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := s.MarkRead(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.MarkRead(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, pub.events, 1)
	assert.Equal(t, store.TableMessages, pub.events[0].table)
	assert.Equal(t, feed.OpUpdate, pub.events[0].op)
	assert.Equal(t, map[string]string{store.ColumnReceiverID: "alice"}, pub.events[0].keys)
}

func TestNotificationStore_ListForUser(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewNotificationStore(db, feed.NoopPublisher{})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(queryLike(
		"FROM notifications",
		"WHERE user_id = $1",
		"ORDER BY created_at DESC, id DESC",
	)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(notificationCols).
			AddRow("n2", "u1", string(model.NotificationJobViewed), nil, nil, "viewed", false, at.Add(time.Minute)).
			AddRow("n9", "u1", "bogus", nil, nil, "unknown type", false, at).
			AddRow("n1", "u1", string(model.NotificationJobCreated), "job-1", nil, "posted", true, at))

	list, err := s.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)
	assert.Equal(t, "n1", list[1].ID)
	require.NotNil(t, list[1].JobID)
	assert.Equal(t, "job-1", *list[1].JobID)
	assert.True(t, list[1].Read)
}

func TestNotificationStore_MarkReadScopedToUser(t *testing.T) {
	db, mock := newMockDB(t)
	pub := &recordingPublisher{}
	s := NewNotificationStore(db, pub)

	_, err := s.MarkRead(context.Background(), "", "n1")
	assert.ErrorIs(t, err, store.ErrInvalid)

	mock.ExpectExec(queryLike("UPDATE notifications SET read = TRUE WHERE user_id = $1 AND id = $2 AND read = FALSE")).
		WithArgs("u1", "n1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(queryLike("UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := s.MarkRead(context.Background(), "u1", "n1")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	n, err := s.MarkAllRead(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, pub.events, 1)
	assert.Equal(t, map[string]string{store.ColumnUserID: "u1"}, pub.events[0].keys)
}
