package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTaskStatusIsTerminal 测试终态判定
func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusWaitingForDependencies.IsTerminal())
	assert.False(t, TaskStatusRunning.IsTerminal())
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.True(t, TaskStatusCancelled.IsTerminal())
}

// TestTaskPriorityWeight 测试优先级权重排序
func TestTaskPriorityWeight(t *testing.T) {
	assert.Greater(t, PriorityCritical.Weight(), PriorityHigh.Weight())
	assert.Greater(t, PriorityHigh.Weight(), PriorityNormal.Weight())
	assert.Greater(t, PriorityNormal.Weight(), PriorityLow.Weight())

	assert.True(t, PriorityLow.IsValid())
	assert.False(t, TaskPriority("urgent").IsValid())
}

// TestDependencyConditionSatisfied 测试依赖条件判定
func TestDependencyConditionSatisfied(t *testing.T) {
	// success 只接受 completed
	assert.True(t, ConditionSuccess.Satisfied(TaskStatusCompleted))
	assert.False(t, ConditionSuccess.Satisfied(TaskStatusFailed))
	assert.False(t, ConditionSuccess.Satisfied(TaskStatusRunning))

	// failure 只接受 failed
	assert.True(t, ConditionFailure.Satisfied(TaskStatusFailed))
	assert.False(t, ConditionFailure.Satisfied(TaskStatusCompleted))

	// completion 接受任意终态,含 cancelled
	assert.True(t, ConditionCompletion.Satisfied(TaskStatusCompleted))
	assert.True(t, ConditionCompletion.Satisfied(TaskStatusFailed))
	assert.True(t, ConditionCompletion.Satisfied(TaskStatusCancelled))
	assert.False(t, ConditionCompletion.Satisfied(TaskStatusRunning))
}

// TestWorkflowPhaseOrder 测试开发流程阶段顺序
func TestWorkflowPhaseOrder(t *testing.T) {
	assert.Equal(t, 0, PhaseNotStarted.Index())
	assert.Equal(t, len(PhaseOrder)-1, PhaseCompleted.Index())
	assert.Equal(t, -1, PhaseFailed.Index())

	assert.True(t, PhaseCompleted.IsTerminal())
	assert.True(t, PhaseFailed.IsTerminal())
	assert.False(t, PhaseTesting.IsTerminal())
}

// TestDomainError 测试领域错误
func TestDomainError(t *testing.T) {
	err := NewError(KindPhaseCriteriaNotMet, "cannot advance").
		WithDetails("technical documentation path is not set")

	assert.True(t, IsKind(err, KindPhaseCriteriaNotMet))
	assert.False(t, IsKind(err, KindValidation))

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Len(t, de.Details, 1)
	assert.Contains(t, err.Error(), "PHASE_CRITERIA_NOT_MET")
}
