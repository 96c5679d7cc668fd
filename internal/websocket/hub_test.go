package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHubRegisterUnregister 测试客户端注册与注销
func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient("c1", hub, nil)
	hub.Register <- client
	assert.Eventually(t, func() bool {
		return hub.GetClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Unregister <- client
	assert.Eventually(t, func() bool {
		return hub.GetClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}

// TestHubBroadcast 测试事件广播到所有客户端
func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c1 := NewClient("c1", hub, nil)
	c2 := NewClient("c2", hub, nil)
	hub.Register <- c1
	hub.Register <- c2
	assert.Eventually(t, func() bool {
		return hub.GetClientCount() == 2
	}, time.Second, 10*time.Millisecond)

	evt := &types.Event{
		ID:        "evt-001",
		TaskID:    "task-001",
		Type:      types.EventTaskStateChanged,
		Data:      []byte(`{}`),
		CreatedAt: time.Now(),
	}
	hub.Broadcast(evt)

	for _, client := range []*Client{c1, c2} {
		select {
		case message := <-client.Send:
			var got types.Event
			require.NoError(t, json.Unmarshal(message, &got))
			assert.Equal(t, "evt-001", got.ID)
			assert.Equal(t, types.EventTaskStateChanged, got.Type)
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive the broadcast", client.ID)
		}
	}
}

// TestHubBroadcastNoClients 测试无客户端时广播不阻塞
func TestHubBroadcastNoClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	done := make(chan struct{})
	go func() {
		hub.Broadcast(&types.Event{ID: "evt", Type: types.EventTaskCreated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked with no clients")
	}
}
