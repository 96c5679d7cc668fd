package service

import (
	"context"
	"testing"

	"github.com/mautops/taskqueue-gin/internal/integration"
	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStatsService 测试队列统计
func TestStatsService(t *testing.T) {
	db := newServiceTestDB(t)
	taskMgr := integration.NewTaskManager(db, nil)
	taskSvc := NewTaskService(db, taskMgr, &stubNotifier{})
	statsSvc := NewStatsService(taskMgr, 4)
	ctx := context.Background()

	// 空队列: 所有状态都有计数且为 0
	stats, err := statsSvc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalTasks)
	assert.Len(t, stats.TasksByStatus, 6)
	assert.Equal(t, 4, stats.MaxConcurrentTasks)

	_, err = taskSvc.Create(ctx, &CreateTaskRequest{Name: "a"})
	require.NoError(t, err)
	tsk, err := taskSvc.Create(ctx, &CreateTaskRequest{Name: "b"})
	require.NoError(t, err)
	_, err = taskSvc.Cancel(ctx, tsk.ID, "")
	require.NoError(t, err)

	stats, err = statsSvc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalTasks)
	assert.Equal(t, int64(1), stats.TasksByStatus[string(types.TaskStatusPending)])
	assert.Equal(t, int64(1), stats.TasksByStatus[string(types.TaskStatusCancelled)])
	assert.Equal(t, int64(0), stats.RunningTasks)
}
