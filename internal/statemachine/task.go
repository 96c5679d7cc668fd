package statemachine

import (
	"time"

	"github.com/mautops/taskqueue-gin/internal/types"
)

// taskTransitions 任务状态转换表
// 终态(completed/failed/cancelled)没有出边,任何进一步的转换都会被拒绝
var taskTransitions = map[types.TaskStatus][]types.TaskStatus{
	types.TaskStatusPending: {
		types.TaskStatusWaitingForDependencies,
		types.TaskStatusRunning,
		types.TaskStatusCancelled,
	},
	types.TaskStatusWaitingForDependencies: {
		types.TaskStatusPending,
		types.TaskStatusRunning,
		types.TaskStatusCancelled,
	},
	types.TaskStatusRunning: {
		types.TaskStatusCompleted,
		types.TaskStatusFailed,
		types.TaskStatusCancelled,
		// 失败但仍有重试次数时回到 pending
		types.TaskStatusPending,
	},
}

// TaskStateMachine 任务状态机
type TaskStateMachine struct{}

// NewTaskStateMachine 创建任务状态机
func NewTaskStateMachine() *TaskStateMachine {
	return &TaskStateMachine{}
}

// CanTransition 判断状态转换是否合法
func (m *TaskStateMachine) CanTransition(from, to types.TaskStatus) bool {
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition 执行状态转换,更新任务状态并追加变更记录
// 从终态出发或不在转换表中的转换返回 InvalidStateTransition
func (m *TaskStateMachine) Transition(task *types.Task, to types.TaskStatus, reason string) error {
	from := task.Status
	if from.IsTerminal() {
		return types.NewError(types.KindInvalidStateTransition,
			"task %q is in terminal status %q and cannot transition to %q", task.ID, from, to)
	}
	if !m.CanTransition(from, to) {
		return types.NewError(types.KindInvalidStateTransition,
			"task %q cannot transition from %q to %q", task.ID, from, to)
	}

	now := time.Now()
	task.Status = to
	task.UpdatedAt = now
	task.StateHistory = append(task.StateHistory, &types.StateChange{
		From:   from,
		To:     to,
		Reason: reason,
		Time:   now,
	})

	// started_at / completed_at 只在首次到达时设置,绝不被覆盖
	if to == types.TaskStatusRunning && task.StartedAt == nil {
		task.StartedAt = &now
	}
	if to.IsTerminal() && task.CompletedAt == nil {
		task.CompletedAt = &now
	}

	return nil
}
