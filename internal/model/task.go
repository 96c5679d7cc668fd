package model

import (
	"errors"
	"time"
)

// TaskModel 任务数据模型
// 索引列用于查询,完整的 Task 对象序列化后存入 Data
type TaskModel struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)"`
	Name        string     `gorm:"type:varchar(255);not null"`
	ProjectID   string     `gorm:"type:varchar(64);index"` // 所属项目 ID,可为空
	Status      string     `gorm:"type:varchar(32);not null;index"`
	Priority    string     `gorm:"type:varchar(16);not null;index"`
	HasWorkflow bool       `gorm:"not null;default:false"` // 是否附加开发流程
	Data        []byte     `gorm:"type:jsonb;not null"`    // 序列化后的 Task 对象
	CreatedAt   time.Time  `gorm:"not null;index"`
	UpdatedAt   time.Time  `gorm:"not null;index"`
	StartedAt   *time.Time `gorm:"index"`
	CompletedAt *time.Time `gorm:"index"`
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "tasks"
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.Name == "" {
		return errors.New("task name is required")
	}
	if tm.Status == "" {
		return errors.New("task status is required")
	}
	if len(tm.Data) == 0 {
		return errors.New("task data is required")
	}
	return nil
}
