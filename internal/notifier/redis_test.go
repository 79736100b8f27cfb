package notifier

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbox/tictactoe-match/testing/suite"
)

func TestRedisNotifier_Send(t *testing.T) {
	ctx, st := suite.New(t)

	notifications := NewRedisNotifier(st.Logger, st.Storage)

	// Given: a subscriber on the user's notification channel
	sub := st.Storage.Subscribe(ctx, ChannelFor("user-1"))
	defer sub.Close()

	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	// When: a match-ready notification is sent
	err = notifications.Send(ctx, "user-1", Notification{
		Subject: "Match Ready",
		Content: map[string]any{"matchId": "match-1"},
		Code:    1,
	})
	require.NoError(t, err)

	// Then: the subscriber receives it with a populated timestamp
	select {
	case msg := <-sub.Channel():
		var received Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &received))

		assert.Equal(t, "Match Ready", received.Subject)
		assert.Equal(t, "match-1", received.Content["matchId"])
		assert.Equal(t, 1, received.Code)
		assert.NotZero(t, received.CreatedAt)
	case <-time.After(5 * time.Second):
		t.Fatal("notification was not delivered")
	}
}
