package model

import "time"

// EventModel 事件数据模型
// 状态变更事件先持久化再异步推送给下游消费者
type EventModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	TaskID     string    `gorm:"type:varchar(64);not null;index"`
	Type       string    `gorm:"type:varchar(32);not null"`
	Data       []byte    `gorm:"type:jsonb;not null"`
	Status     string    `gorm:"type:varchar(32);not null;default:'pending';index"`
	RetryCount int       `gorm:"default:0"`
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EventModel) TableName() string {
	return "events"
}
