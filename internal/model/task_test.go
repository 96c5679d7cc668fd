package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestTaskModelTableName 测试任务表名
func TestTaskModelTableName(t *testing.T) {
	var tm TaskModel
	assert.Equal(t, "tasks", tm.TableName())
}

// TestTaskModelValidate 测试任务模型验证
func TestTaskModelValidate(t *testing.T) {
	tm := &TaskModel{
		ID:        "task-001",
		Name:      "build",
		Status:    "pending",
		Priority:  "normal",
		Data:      []byte(`{}`),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	assert.NoError(t, tm.Validate())

	missing := *tm
	missing.ID = ""
	assert.Error(t, missing.Validate())

	missing = *tm
	missing.Name = ""
	assert.Error(t, missing.Validate())

	missing = *tm
	missing.Status = ""
	assert.Error(t, missing.Validate())

	missing = *tm
	missing.Data = nil
	assert.Error(t, missing.Validate())
}

// TestModelTableNames 测试各数据模型表名
func TestModelTableNames(t *testing.T) {
	assert.Equal(t, "projects", ProjectModel{}.TableName())
	assert.Equal(t, "workflow_runs", WorkflowRunModel{}.TableName())
	assert.Equal(t, "state_history", StateHistoryModel{}.TableName())
	assert.Equal(t, "events", EventModel{}.TableName())
}
