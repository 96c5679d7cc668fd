package statemachine

import (
	"testing"

	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/stretchr/testify/assert"
)

func newWorkflow(phase types.WorkflowPhase) *types.DevelopmentWorkflow {
	return &types.DevelopmentWorkflow{Status: phase}
}

func coverage(v float64) *float64 { return &v }

// TestWorkflowAdvanceSequential 测试阶段只能顺序推进
func TestWorkflowAdvanceSequential(t *testing.T) {
	sm := NewWorkflowStateMachine(DefaultGateConfig())
	wf := newWorkflow(types.PhaseNotStarted)

	assert.NoError(t, sm.Advance(wf))
	assert.Equal(t, types.PhasePlanning, wf.Status)
	assert.NotNil(t, wf.StartedAt)

	wf.TechnicalDocumentationPath = "docs/design.md"
	assert.NoError(t, sm.Advance(wf))
	assert.Equal(t, types.PhaseInImplementation, wf.Status)

	assert.NoError(t, sm.Advance(wf))
	assert.Equal(t, types.PhaseTestCreation, wf.Status)

	assert.NoError(t, sm.Advance(wf))
	assert.Equal(t, types.PhaseTesting, wf.Status)
}

// TestWorkflowPlanningGate 测试 planning 阶段必须设置技术文档路径
func TestWorkflowPlanningGate(t *testing.T) {
	sm := NewWorkflowStateMachine(DefaultGateConfig())
	wf := newWorkflow(types.PhasePlanning)

	err := sm.Advance(wf)
	assert.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindPhaseCriteriaNotMet))
	de, _ := types.AsDomainError(err)
	assert.Contains(t, de.Details[0], "technical documentation")
	assert.Equal(t, types.PhasePlanning, wf.Status)

	wf.TechnicalDocumentationPath = "docs/design.md"
	assert.NoError(t, sm.Advance(wf))
}

// TestWorkflowCoverageGate 测试 testing 阶段覆盖率门禁
func TestWorkflowCoverageGate(t *testing.T) {
	sm := NewWorkflowStateMachine(DefaultGateConfig())

	// 未设置覆盖率
	wf := newWorkflow(types.PhaseTesting)
	err := sm.Advance(wf)
	assert.True(t, types.IsKind(err, types.KindPhaseCriteriaNotMet))

	// 覆盖率不足
	wf.TestCoveragePercentage = coverage(89.9)
	err = sm.Advance(wf)
	assert.True(t, types.IsKind(err, types.KindPhaseCriteriaNotMet))

	// 刚好达到阈值即可通过
	wf.TestCoveragePercentage = coverage(90.0)
	assert.NoError(t, sm.Advance(wf))
	assert.Equal(t, types.PhaseAIReview, wf.Status)
}

// TestWorkflowAIReviewGate 测试 ai_review 阶段评审门禁
func TestWorkflowAIReviewGate(t *testing.T) {
	sm := NewWorkflowStateMachine(DefaultGateConfig())
	wf := newWorkflow(types.PhaseAIReview)

	// 两份合格 + 一份低分:不满足 3 份不同模型的合格评审
	wf.AIReviewReports = []*types.AIReviewReport{
		{ModelName: "model-a", Approved: true, Score: 0.9},
		{ModelName: "model-b", Approved: true, Score: 0.85},
		{ModelName: "model-c", Approved: true, Score: 0.5},
	}
	err := sm.Advance(wf)
	assert.True(t, types.IsKind(err, types.KindPhaseCriteriaNotMet))
	de, _ := types.AsDomainError(err)
	assert.NotEmpty(t, de.Details)

	// 同一模型的重复评审不计入不同模型数
	wf.AIReviewReports = []*types.AIReviewReport{
		{ModelName: "model-a", Approved: true, Score: 0.9},
		{ModelName: "model-a", Approved: true, Score: 0.95},
		{ModelName: "model-b", Approved: true, Score: 0.85},
	}
	err = sm.Advance(wf)
	assert.True(t, types.IsKind(err, types.KindPhaseCriteriaNotMet))

	// 三份不同模型、全部 approved、分数达标
	wf.AIReviewReports = []*types.AIReviewReport{
		{ModelName: "model-a", Approved: true, Score: 0.9},
		{ModelName: "model-b", Approved: true, Score: 0.85},
		{ModelName: "model-c", Approved: true, Score: 0.8},
	}
	assert.NoError(t, sm.Advance(wf))
	assert.Equal(t, types.PhaseCompleted, wf.Status)
	assert.NotNil(t, wf.CompletedAt)
}

// TestWorkflowFail 测试显式失败
func TestWorkflowFail(t *testing.T) {
	sm := NewWorkflowStateMachine(DefaultGateConfig())

	wf := newWorkflow(types.PhaseInImplementation)
	assert.NoError(t, sm.Fail(wf))
	assert.Equal(t, types.PhaseFailed, wf.Status)
	assert.NotNil(t, wf.CompletedAt)

	// 终态之后不可再失败或推进
	assert.Error(t, sm.Fail(wf))
	assert.Error(t, sm.Advance(wf))
}

// TestWorkflowCompletedIsTerminal 测试 completed 之后不可再推进
func TestWorkflowCompletedIsTerminal(t *testing.T) {
	sm := NewWorkflowStateMachine(DefaultGateConfig())
	wf := newWorkflow(types.PhaseCompleted)

	err := sm.Advance(wf)
	assert.True(t, types.IsKind(err, types.KindInvalidStateTransition))
}
