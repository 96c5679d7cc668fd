package model

import "time"

// StateHistoryModel 状态变更历史数据模型
// 任务状态与流程阶段的每次变更都追加一行,用于审计
type StateHistoryModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	TaskID    string    `gorm:"type:varchar(64);not null;index"`
	FromState string    `gorm:"type:varchar(32)"`
	ToState   string    `gorm:"type:varchar(32);not null"`
	Reason    string    `gorm:"type:text"`
	Operator  string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (StateHistoryModel) TableName() string {
	return "state_history"
}
