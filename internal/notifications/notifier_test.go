package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_PublishUserWithoutRedis(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, "test payload"))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
		id, ok := ParseUserChannel(tt.expected)
		assert.True(t, ok)
		assert.Equal(t, tt.userID, id)
	}
}

func TestParseUserChannel_Rejects(t *testing.T) {
	t.Parallel()
	for _, channel := range []string{"", "chat:conv:5", "notifications:user:", "notifications:user:abc", "notifications:user:0"} {
		_, ok := ParseUserChannel(channel)
		assert.False(t, ok, channel)
	}
}

func TestNotifier_SubscriberReceivesAndStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type received struct{ channel, payload string }
	got := make(chan received, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		got <- received{channel, payload}
	}))

	actorID := uint(3)
	require.NoError(t, n.PublishNotification(context.Background(), 7, &models.Notification{
		ID:          11,
		RecipientID: 2,
		ActorID:     &actorID,
		Kind:        models.NotificationFollow,
		Header:      "bob followed you",
	}))

	select {
	case msg := <-got:
		assert.Equal(t, "notifications:user:7", msg.channel)
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.payload), &ev))
		assert.Equal(t, "notification", ev.Type)
		require.NotNil(t, ev.Payload)
		assert.Equal(t, uint(11), ev.Payload.ID)
		assert.Equal(t, models.NotificationFollow, ev.Payload.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}

	cancel()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, n.PublishUser(context.Background(), 7, "after-cancel"))
	assert.Never(t, func() bool {
		select {
		case msg := <-got:
			return msg.payload == "after-cancel"
		default:
			return false
		}
	}, 200*time.Millisecond, 10*time.Millisecond)
}
