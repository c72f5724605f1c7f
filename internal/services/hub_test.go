package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jrong1271/scrum-planning-poker/internal/models"
	"github.com/jrong1271/scrum-planning-poker/internal/services"
	"github.com/jrong1271/scrum-planning-poker/internal/testutil"
)

func newHub(t *testing.T) *services.Hub {
	t.Helper()
	hub := services.NewHub(zap.NewNop(), services.NewMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newTestClient(t *testing.T, hub *services.Hub) (*services.Client, *testutil.MockConn) {
	t.Helper()
	conn := testutil.NewMockConn()
	client := services.NewClient(conn, hub, zap.NewNop())
	client.Start()
	t.Cleanup(client.Close)
	return client, conn
}

func decodeFrames(t *testing.T, conn *testutil.MockConn) []models.WSMessage {
	t.Helper()
	frames := conn.Messages()
	msgs := make([]models.WSMessage, 0, len(frames))
	for _, frame := range frames {
		var msg models.WSMessage
		require.NoError(t, json.Unmarshal(frame, &msg))
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestHubBroadcast(t *testing.T) {
	t.Run("delivers to every connection in the room", func(t *testing.T) {
		hub := newHub(t)
		c1, conn1 := newTestClient(t, hub)
		c2, conn2 := newTestClient(t, hub)
		hub.Register("room-1", c1)
		hub.Register("room-1", c2)

		hub.BroadcastToRoom("room-1", models.NewRoomDataMessage(models.RoomSnapshot{RoomID: "room-1"}))

		assert.Eventually(t, func() bool {
			return len(conn1.Messages()) == 1 && len(conn2.Messages()) == 1
		}, time.Second, 5*time.Millisecond)

		msgs := decodeFrames(t, conn1)
		assert.Equal(t, models.MsgTypeRoomData, msgs[0].Type)
	})

	t.Run("no-op for an unknown room", func(t *testing.T) {
		hub := newHub(t)
		c1, conn1 := newTestClient(t, hub)
		hub.Register("room-1", c1)

		hub.BroadcastToRoom("room-gone", models.NewRoomDataMessage(models.RoomSnapshot{RoomID: "room-gone"}))
		hub.BroadcastToRoom("room-1", models.NewRoomDataMessage(models.RoomSnapshot{RoomID: "room-1"}))

		assert.Eventually(t, func() bool {
			return len(conn1.Messages()) == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("delivery is FIFO per room", func(t *testing.T) {
		hub := newHub(t)
		c1, conn1 := newTestClient(t, hub)
		hub.Register("room-1", c1)

		hub.BroadcastToRoom("room-1", models.NewRoomDataMessage(models.RoomSnapshot{RoomID: "room-1"}))
		hub.BroadcastToRoom("room-1", models.NewScoreChangeMessage("session-a", floatPtr(5)))

		require.Eventually(t, func() bool {
			return len(conn1.Messages()) == 2
		}, time.Second, 5*time.Millisecond)

		msgs := decodeFrames(t, conn1)
		assert.Equal(t, models.MsgTypeRoomData, msgs[0].Type)
		assert.Equal(t, models.MsgTypeScoreChange, msgs[1].Type)
	})

	t.Run("unregistered connection stops receiving", func(t *testing.T) {
		hub := newHub(t)
		c1, conn1 := newTestClient(t, hub)
		c2, conn2 := newTestClient(t, hub)
		hub.Register("room-1", c1)
		hub.Register("room-1", c2)
		hub.Unregister("room-1", c1)

		hub.BroadcastToRoom("room-1", models.NewRoomDataMessage(models.RoomSnapshot{RoomID: "room-1"}))

		assert.Eventually(t, func() bool {
			return len(conn2.Messages()) == 1
		}, time.Second, 5*time.Millisecond)
		assert.Empty(t, conn1.Messages())
	})
}

func TestHubSendToClient(t *testing.T) {
	hub := newHub(t)
	c1, conn1 := newTestClient(t, hub)
	c2, conn2 := newTestClient(t, hub)
	hub.Register("room-1", c1)
	hub.Register("room-1", c2)

	hub.SendToClient(c1, models.NewErrorMessage("room-not-found", "room not found"))

	assert.Eventually(t, func() bool {
		return len(conn1.Messages()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, conn2.Messages())

	msgs := decodeFrames(t, conn1)
	assert.Equal(t, models.MsgTypeError, msgs[0].Type)
}

func TestHubUnregisterSuperseded(t *testing.T) {
	hub := newHub(t)
	old, oldConn := newTestClient(t, hub)
	replacement, replConn := newTestClient(t, hub)
	other, otherConn := newTestClient(t, hub)

	old.BindSession("room-1", "session-alice")
	replacement.BindSession("room-1", "session-alice")
	other.BindSession("room-1", "session-bob")
	hub.Register("room-1", old)
	hub.Register("room-1", replacement)
	hub.Register("room-1", other)

	hub.UnregisterSuperseded("room-1", "session-alice", replacement.ID())

	// The replaced connection is out of the group and closed; the rest of
	// the room is untouched.
	assert.Equal(t, 2, hub.RoomSize("room-1"))
	assert.Eventually(t, old.IsClosed, time.Second, 5*time.Millisecond)
	assert.False(t, replacement.IsClosed())
	assert.False(t, other.IsClosed())

	hub.BroadcastToRoom("room-1", models.NewRoomDataMessage(models.RoomSnapshot{RoomID: "room-1"}))
	assert.Eventually(t, func() bool {
		return len(replConn.Messages()) == 1 && len(otherConn.Messages()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, oldConn.Messages())
}

func TestHubRoomSize(t *testing.T) {
	hub := newHub(t)
	c1, _ := newTestClient(t, hub)
	c2, _ := newTestClient(t, hub)

	assert.Equal(t, 0, hub.RoomSize("room-1"))
	hub.Register("room-1", c1)
	hub.Register("room-1", c2)
	assert.Equal(t, 2, hub.RoomSize("room-1"))
	hub.Unregister("room-1", c1)
	assert.Equal(t, 1, hub.RoomSize("room-1"))
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := services.NewHub(zap.NewNop(), services.NewMetrics())
	conn := testutil.NewMockConn()
	// Never started, so the send buffer only drains by overflowing.
	client := services.NewClient(conn, hub, zap.NewNop())

	delivered := 0
	for i := 0; i < 300; i++ {
		if client.Send([]byte("{}")) {
			delivered++
		}
	}

	assert.Eventually(t, client.IsClosed, time.Second, 5*time.Millisecond)
	assert.Less(t, delivered, 300)
}
