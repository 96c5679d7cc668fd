package model

import (
	"errors"
	"time"
)

// WorkflowRunModel 编排流水线数据模型
// 完整的 WorkflowRun 对象序列化后存入 Data
type WorkflowRunModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Name      string    `gorm:"type:varchar(255);not null;index"`
	Status    string    `gorm:"type:varchar(32);not null;index"`
	Data      []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (WorkflowRunModel) TableName() string {
	return "workflow_runs"
}

// Validate 验证流水线模型
func (wm *WorkflowRunModel) Validate() error {
	if wm.ID == "" {
		return errors.New("workflow run ID is required")
	}
	if wm.Name == "" {
		return errors.New("workflow run name is required")
	}
	if len(wm.Data) == 0 {
		return errors.New("workflow run data is required")
	}
	return nil
}
