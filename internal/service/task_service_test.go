package service

import (
	"context"
	"testing"

	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTaskServiceCreate 测试创建任务并唤醒调度器
func TestTaskServiceCreate(t *testing.T) {
	svc, notifier, _ := newTestTaskService(t)
	ctx := context.Background()

	tsk, err := svc.Create(ctx, &CreateTaskRequest{
		Name:              "build",
		Command:           "make build",
		RetryAttempts:     2,
		RetryDelaySeconds: 5,
		TimeoutSeconds:    60,
	})
	require.NoError(t, err)

	assert.Equal(t, types.PriorityNormal, tsk.Priority)
	assert.Equal(t, types.TaskStatusPending, tsk.Status)
	assert.Equal(t, 1, notifier.wakeCount())
}

// TestTaskServiceDependencyDefaultCondition 测试依赖条件缺省为 success
func TestTaskServiceDependencyDefaultCondition(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	ctx := context.Background()

	dep, err := svc.Create(ctx, &CreateTaskRequest{Name: "dep"})
	require.NoError(t, err)

	tsk, err := svc.Create(ctx, &CreateTaskRequest{
		Name:         "child",
		Dependencies: []DependencyRequest{{TaskID: dep.ID}},
	})
	require.NoError(t, err)

	require.Len(t, tsk.Dependencies, 1)
	assert.Equal(t, types.ConditionSuccess, tsk.Dependencies[0].Condition)
}

// TestTaskServiceListFilterValidation 测试列表过滤参数校验
func TestTaskServiceListFilterValidation(t *testing.T) {
	svc, _, _ := newTestTaskService(t)

	_, err := svc.List(&ListTasksRequest{Status: "bogus"})
	assert.True(t, types.IsKind(err, types.KindValidation))

	_, err = svc.List(&ListTasksRequest{Priority: "urgent"})
	assert.True(t, types.IsKind(err, types.KindValidation))
}

// TestTaskServiceListByStatus 测试按状态过滤
func TestTaskServiceListByStatus(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateTaskRequest{Name: "a"})
	require.NoError(t, err)
	tsk, err := svc.Create(ctx, &CreateTaskRequest{Name: "b"})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, tsk.ID, "")
	require.NoError(t, err)

	pending, err := svc.List(&ListTasksRequest{Status: string(types.TaskStatusPending)})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	cancelled, err := svc.List(&ListTasksRequest{Status: string(types.TaskStatusCancelled)})
	require.NoError(t, err)
	assert.Len(t, cancelled, 1)
}

// TestTaskServiceCancelInterruptsExecution 测试取消同时中断执行
func TestTaskServiceCancelInterruptsExecution(t *testing.T) {
	svc, notifier, _ := newTestTaskService(t)
	ctx := context.Background()

	tsk, err := svc.Create(ctx, &CreateTaskRequest{Name: "doomed"})
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, tsk.ID, "")
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusCancelled, got.Status)
	assert.Equal(t, "cancelled by user", got.Result.Cancelled.Reason)
	assert.Equal(t, []string{tsk.ID}, notifier.interrupted)
}

// TestTaskServiceStateHistory 测试状态历史查询
func TestTaskServiceStateHistory(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	ctx := context.Background()

	tsk, err := svc.Create(ctx, &CreateTaskRequest{Name: "tracked"})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, tsk.ID, "no longer needed")
	require.NoError(t, err)

	entries, err := svc.GetStateHistory(tsk.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, string(types.TaskStatusPending), entries[0].From)
	assert.Equal(t, string(types.TaskStatusCancelled), entries[0].To)
	assert.Equal(t, "no longer needed", entries[0].Reason)

	// 不存在的任务保持 404 语义
	_, err = svc.GetStateHistory("missing")
	assert.True(t, types.IsKind(err, types.KindNotFound))
}

// TestTaskServiceSetPriority 测试优先级调整
func TestTaskServiceSetPriority(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	ctx := context.Background()

	tsk, err := svc.Create(ctx, &CreateTaskRequest{Name: "job"})
	require.NoError(t, err)

	got, err := svc.SetPriority(ctx, tsk.ID, "critical")
	require.NoError(t, err)
	assert.Equal(t, types.PriorityCritical, got.Priority)

	_, err = svc.SetPriority(ctx, tsk.ID, "urgent")
	assert.True(t, types.IsKind(err, types.KindValidation))
}
