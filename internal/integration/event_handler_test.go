package integration

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/taskqueue-gin/internal/model"
	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBroadcaster 记录广播事件的测试替身
type stubBroadcaster struct {
	mu     sync.Mutex
	events []*types.Event
}

func (b *stubBroadcaster) Broadcast(evt *types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *stubBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// TestEventHandlerPersistsAndBroadcasts 测试事件落库并广播
func TestEventHandlerPersistsAndBroadcasts(t *testing.T) {
	db := newTestDB(t)
	broadcaster := &stubBroadcaster{}
	handler := NewEventHandler(db, broadcaster, 2, 16)
	defer handler.Stop()

	evt := &types.Event{
		ID:        uuid.New().String(),
		TaskID:    "task-001",
		Type:      types.EventTaskCreated,
		Data:      []byte(`{}`),
		CreatedAt: time.Now(),
	}
	require.NoError(t, handler.Handle(evt))

	// 事件已落库
	var em model.EventModel
	require.NoError(t, db.First(&em, "id = ?", evt.ID).Error)
	assert.Equal(t, types.EventTaskCreated, em.Type)

	// 异步广播并更新状态
	assert.Eventually(t, func() bool {
		return broadcaster.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		var updated model.EventModel
		if err := db.First(&updated, "id = ?", evt.ID).Error; err != nil {
			return false
		}
		return updated.Status == "success"
	}, 2*time.Second, 10*time.Millisecond)
}

// TestTaskManagerEmitsEvents 测试任务生命周期事件
func TestTaskManagerEmitsEvents(t *testing.T) {
	db := newTestDB(t)
	broadcaster := &stubBroadcaster{}
	handler := NewEventHandler(db, broadcaster, 1, 16)
	defer handler.Stop()

	m := NewTaskManager(db, handler)

	tsk, err := m.Create(&CreateTaskInput{Name: "observed"})
	require.NoError(t, err)
	_, err = m.Cancel(tsk.ID, "stop", "tester")
	require.NoError(t, err)

	// 创建 + 取消各产生一个事件
	var count int64
	require.NoError(t, db.Model(&model.EventModel{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	assert.Eventually(t, func() bool {
		return broadcaster.count() == 2
	}, 2*time.Second, 10*time.Millisecond)
}
