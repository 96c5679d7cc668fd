package statemachine

import (
	"testing"

	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/stretchr/testify/assert"
)

// TestTaskTransitionTable 测试状态转换表
func TestTaskTransitionTable(t *testing.T) {
	sm := NewTaskStateMachine()

	// 合法转换
	assert.True(t, sm.CanTransition(types.TaskStatusPending, types.TaskStatusRunning))
	assert.True(t, sm.CanTransition(types.TaskStatusPending, types.TaskStatusWaitingForDependencies))
	assert.True(t, sm.CanTransition(types.TaskStatusWaitingForDependencies, types.TaskStatusPending))
	assert.True(t, sm.CanTransition(types.TaskStatusRunning, types.TaskStatusCompleted))
	assert.True(t, sm.CanTransition(types.TaskStatusRunning, types.TaskStatusFailed))
	// 失败后还有重试次数时回到 pending
	assert.True(t, sm.CanTransition(types.TaskStatusRunning, types.TaskStatusPending))

	// 非法转换
	assert.False(t, sm.CanTransition(types.TaskStatusPending, types.TaskStatusCompleted))
	assert.False(t, sm.CanTransition(types.TaskStatusWaitingForDependencies, types.TaskStatusCompleted))
	assert.False(t, sm.CanTransition(types.TaskStatusCompleted, types.TaskStatusRunning))
	assert.False(t, sm.CanTransition(types.TaskStatusFailed, types.TaskStatusPending))
	assert.False(t, sm.CanTransition(types.TaskStatusCancelled, types.TaskStatusPending))
}

// TestTaskTransitionRecordsHistory 测试转换追加状态变更记录
func TestTaskTransitionRecordsHistory(t *testing.T) {
	sm := NewTaskStateMachine()
	task := &types.Task{ID: "t1", Status: types.TaskStatusPending}

	err := sm.Transition(task, types.TaskStatusRunning, "dispatched")
	assert.NoError(t, err)
	assert.Equal(t, types.TaskStatusRunning, task.Status)
	assert.NotNil(t, task.StartedAt)

	err = sm.Transition(task, types.TaskStatusCompleted, "execution succeeded")
	assert.NoError(t, err)
	assert.NotNil(t, task.CompletedAt)

	assert.Len(t, task.StateHistory, 2)
	assert.Equal(t, types.TaskStatusPending, task.StateHistory[0].From)
	assert.Equal(t, types.TaskStatusRunning, task.StateHistory[0].To)
	assert.Equal(t, "dispatched", task.StateHistory[0].Reason)
	assert.Equal(t, types.TaskStatusCompleted, task.StateHistory[1].To)
}

// TestTaskTerminalImmutable 测试终态不可变
func TestTaskTerminalImmutable(t *testing.T) {
	sm := NewTaskStateMachine()

	for _, status := range []types.TaskStatus{
		types.TaskStatusCompleted,
		types.TaskStatusFailed,
		types.TaskStatusCancelled,
	} {
		task := &types.Task{ID: "t1", Status: status}
		err := sm.Transition(task, types.TaskStatusRunning, "")
		assert.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindInvalidStateTransition))
		assert.Equal(t, status, task.Status)
		assert.Empty(t, task.StateHistory)
	}
}

// TestTaskStartedAtSetOnce 测试 started_at 只在首次运行时设置
func TestTaskStartedAtSetOnce(t *testing.T) {
	sm := NewTaskStateMachine()
	task := &types.Task{ID: "t1", Status: types.TaskStatusPending}

	assert.NoError(t, sm.Transition(task, types.TaskStatusRunning, ""))
	first := task.StartedAt
	assert.NotNil(t, first)

	// 重试:running -> pending -> running,started_at 不被覆盖
	assert.NoError(t, sm.Transition(task, types.TaskStatusPending, "retrying"))
	assert.NoError(t, sm.Transition(task, types.TaskStatusRunning, ""))
	assert.Equal(t, first, task.StartedAt)
}
