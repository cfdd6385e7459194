package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbridge/messaging/internal/model"
)

func seedNotifications(t *testing.T, env *testEnv, userID string, n int) []*model.Notification {
	t.Helper()
	types := []model.NotificationType{
		model.NotificationJobCreated,
		model.NotificationApplicationReceived,
		model.NotificationApplicationStatusChanged,
		model.NotificationJobViewed,
	}

	var out []*model.Notification
	for i := 0; i < n; i++ {
		created, err := env.notifications.Create(context.Background(), &model.Notification{
			UserID:  userID,
			Type:    types[i%len(types)],
			Message: "update",
		})
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func openNotifications(t *testing.T, env *testEnv, userID string) *NotificationAggregator {
	t.Helper()
	a, err := env.messenger.OpenNotifications(context.Background(), userID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNotifications_LatestFirst(t *testing.T) {
	env := newTestEnv(t)
	seeded := seedNotifications(t, env, "alice", 3)
	seedNotifications(t, env, "bob", 2)

	a := openNotifications(t, env, "alice")

	list := a.Notifications()
	require.Len(t, list, 3)
	assert.Equal(t, seeded[2].ID, list[0].ID)
	assert.Equal(t, seeded[0].ID, list[2].ID)
	assert.Equal(t, 3, a.UnreadCount())
}

func TestNotifications_MarkAsReadDecrementsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seeded := seedNotifications(t, env, "alice", 3)
	a := openNotifications(t, env, "alice")

	require.NoError(t, a.MarkAsRead(ctx, seeded[0].ID))
	assert.Equal(t, 2, a.UnreadCount())

	require.NoError(t, a.MarkAsRead(ctx, seeded[0].ID))
	assert.Equal(t, 2, a.UnreadCount())

	require.NoError(t, a.MarkAsRead(ctx, "unknown"))
	assert.Equal(t, 2, a.UnreadCount())

	assert.Eventually(t, func() bool { return a.State() == StateReady && a.UnreadCount() == 2 }, waitFor, tick)
}

func TestNotifications_MarkAllAsReadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedNotifications(t, env, "alice", 4)
	a := openNotifications(t, env, "alice")

	require.NoError(t, a.MarkAllAsRead(ctx))
	assert.Equal(t, 0, a.UnreadCount())
	for _, n := range a.Notifications() {
		assert.True(t, n.Read)
	}

	require.NoError(t, a.MarkAllAsRead(ctx))
	assert.Equal(t, 0, a.UnreadCount())

	stored, err := env.notifications.ListForUser(ctx, "alice")
	require.NoError(t, err)
	for _, n := range stored {
		assert.True(t, n.Read)
	}
}

func TestNotifications_PushedNotificationAppears(t *testing.T) {
	env := newTestEnv(t)
	a := openNotifications(t, env, "alice")
	assert.Equal(t, 0, a.UnreadCount())

	_, err := env.messenger.CreateNotification(context.Background(), &model.CreateNotificationRequest{
		UserID:  "alice",
		Type:    model.NotificationApplicationStatusChanged,
		Message: "Your application was accepted",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return a.UnreadCount() == 1 && len(a.Notifications()) == 1
	}, waitFor, tick)
}

func TestNotifications_ClosedAggregatorRejectsWrites(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.messenger.OpenNotifications(context.Background(), "alice")
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.MarkAllAsRead(context.Background()), ErrSessionClosed)
	assert.ErrorIs(t, a.MarkAsRead(context.Background(), "x"), ErrSessionClosed)
}
