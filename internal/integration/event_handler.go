package integration

import (
	"fmt"
	"time"

	"github.com/mautops/taskqueue-gin/internal/model"
	"github.com/mautops/taskqueue-gin/internal/repository"
	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EventSink 事件处理器接口
type EventSink interface {
	Handle(evt *types.Event) error
	Stop()
}

// Broadcaster 事件广播接口,由 WebSocket Hub 实现
type Broadcaster interface {
	Broadcast(evt *types.Event)
}

// dbEventHandler 基于数据库的事件处理器
// 事件先落库再异步广播到 WebSocket 连接
type dbEventHandler struct {
	db          *gorm.DB
	eventRepo   repository.EventRepository
	broadcaster Broadcaster
	queue       chan *types.Event
	stop        chan struct{}
}

// NewEventHandler 创建事件处理器并启动 worker goroutines
func NewEventHandler(db *gorm.DB, broadcaster Broadcaster, workers int, queueSize int) EventSink {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	handler := &dbEventHandler{
		db:          db,
		eventRepo:   repository.NewEventRepository(db),
		broadcaster: broadcaster,
		queue:       make(chan *types.Event, queueSize),
		stop:        make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		go handler.worker()
	}

	return handler
}

// Handle 处理事件
func (h *dbEventHandler) Handle(evt *types.Event) error {
	// 1. 持久化事件到数据库
	eventModel := &model.EventModel{
		ID:         evt.ID,
		TaskID:     evt.TaskID,
		Type:       evt.Type,
		Data:       evt.Data,
		Status:     "pending",
		RetryCount: 0,
		CreatedAt:  evt.CreatedAt,
		UpdatedAt:  time.Now(),
	}
	if err := h.eventRepo.Save(eventModel); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	// 2. 异步广播,队列满时丢弃但不阻塞调用方
	select {
	case h.queue <- evt:
	default:
		logrus.WithFields(logrus.Fields{
			"type":    evt.Type,
			"task_id": evt.TaskID,
		}).Warn("event queue full, dropping event")
	}

	return nil
}

// worker 事件广播 worker
func (h *dbEventHandler) worker() {
	for {
		select {
		case evt := <-h.queue:
			h.deliver(evt)
		case <-h.stop:
			return
		}
	}
}

// deliver 广播事件并更新落库状态
func (h *dbEventHandler) deliver(evt *types.Event) {
	if h.broadcaster != nil {
		h.broadcaster.Broadcast(evt)
	}

	err := h.db.Model(&model.EventModel{}).
		Where("id = ?", evt.ID).
		Updates(map[string]interface{}{
			"status":     "success",
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		logrus.WithError(err).WithField("event_id", evt.ID).Error("failed to update event status")
	}
}

// Stop 停止事件处理器
func (h *dbEventHandler) Stop() {
	close(h.stop)
}
