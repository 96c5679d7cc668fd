package integration

import (
	"testing"

	"github.com/mautops/taskqueue-gin/internal/statemachine"
	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkflowManager(t *testing.T) (TaskManager, WorkflowManager) {
	t.Helper()
	db := newTestDB(t)
	tasks := NewTaskManager(db, nil)
	return tasks, NewWorkflowManager(db, tasks, statemachine.DefaultGateConfig())
}

func createWorkflowTask(t *testing.T, tasks TaskManager) *types.Task {
	t.Helper()
	tsk, err := tasks.Create(&CreateTaskInput{Name: "feature", AttachWorkflow: true})
	require.NoError(t, err)
	return tsk
}

// TestWorkflowManagerNoWorkflowAttached 测试无流程的任务被拒绝
func TestWorkflowManagerNoWorkflowAttached(t *testing.T) {
	tasks, wm := newTestWorkflowManager(t)

	tsk, err := tasks.Create(&CreateTaskInput{Name: "plain"})
	require.NoError(t, err)

	_, err = wm.AdvancePhase(tsk.ID, "tester")
	assert.True(t, types.IsKind(err, types.KindNoWorkflowAttached))
}

// TestWorkflowManagerFullLifecycle 测试完整的流程推进
func TestWorkflowManagerFullLifecycle(t *testing.T) {
	tasks, wm := newTestWorkflowManager(t)
	tsk := createWorkflowTask(t, tasks)

	// not_started -> planning
	got, err := wm.AdvancePhase(tsk.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, types.PhasePlanning, got.DevelopmentWorkflow.Status)

	// planning 需要文档路径
	_, err = wm.AdvancePhase(tsk.ID, "tester")
	assert.True(t, types.IsKind(err, types.KindPhaseCriteriaNotMet))

	_, err = wm.SetTechnicalDocumentation(tsk.ID, "docs/design.md")
	require.NoError(t, err)
	got, err = wm.AdvancePhase(tsk.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseInImplementation, got.DevelopmentWorkflow.Status)

	// in_implementation -> test_creation -> testing 无门禁
	_, err = wm.AdvancePhase(tsk.ID, "tester")
	require.NoError(t, err)
	got, err = wm.AdvancePhase(tsk.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseTesting, got.DevelopmentWorkflow.Status)

	// testing 需要覆盖率达标
	_, err = wm.SetTestCoverage(tsk.ID, 95.0)
	require.NoError(t, err)
	got, err = wm.AdvancePhase(tsk.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseAIReview, got.DevelopmentWorkflow.Status)

	// ai_review 需要 3 份不同模型的合格评审
	for _, model := range []string{"model-a", "model-b", "model-c"} {
		_, err = wm.AddAIReviewReport(tsk.ID, &types.AIReviewReport{
			ModelName: model,
			Approved:  true,
			Score:     0.9,
		})
		require.NoError(t, err)
	}
	got, err = wm.AdvancePhase(tsk.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCompleted, got.DevelopmentWorkflow.Status)
	assert.NotNil(t, got.DevelopmentWorkflow.CompletedAt)

	// completed 之后不可再推进
	_, err = wm.AdvancePhase(tsk.ID, "tester")
	assert.True(t, types.IsKind(err, types.KindInvalidStateTransition))
}

// TestWorkflowManagerWrongPhase 测试阶段外的操作被拒绝
func TestWorkflowManagerWrongPhase(t *testing.T) {
	tasks, wm := newTestWorkflowManager(t)
	tsk := createWorkflowTask(t, tasks)

	// not_started 阶段不能设置文档路径、覆盖率或评审
	_, err := wm.SetTechnicalDocumentation(tsk.ID, "docs/design.md")
	assert.True(t, types.IsKind(err, types.KindWrongPhase))

	_, err = wm.SetTestCoverage(tsk.ID, 95.0)
	assert.True(t, types.IsKind(err, types.KindWrongPhase))

	_, err = wm.AddAIReviewReport(tsk.ID, &types.AIReviewReport{
		ModelName: "model-a", Approved: true, Score: 0.9,
	})
	assert.True(t, types.IsKind(err, types.KindWrongPhase))
}

// TestWorkflowManagerCoverageRange 测试覆盖率取值范围校验
func TestWorkflowManagerCoverageRange(t *testing.T) {
	tasks, wm := newTestWorkflowManager(t)
	tsk := createWorkflowTask(t, tasks)

	_, err := wm.SetTestCoverage(tsk.ID, -1)
	assert.True(t, types.IsKind(err, types.KindInvalidCoverageValue))

	_, err = wm.SetTestCoverage(tsk.ID, 100.5)
	assert.True(t, types.IsKind(err, types.KindInvalidCoverageValue))
}

// TestWorkflowManagerReviewValidation 测试评审报告校验
func TestWorkflowManagerReviewValidation(t *testing.T) {
	tasks, wm := newTestWorkflowManager(t)
	tsk := createWorkflowTask(t, tasks)

	_, err := wm.AddAIReviewReport(tsk.ID, &types.AIReviewReport{ModelName: ""})
	assert.True(t, types.IsKind(err, types.KindValidation))

	_, err = wm.AddAIReviewReport(tsk.ID, &types.AIReviewReport{ModelName: "m", Score: 1.5})
	assert.True(t, types.IsKind(err, types.KindValidation))
}

// TestWorkflowManagerFail 测试流程显式失败
func TestWorkflowManagerFail(t *testing.T) {
	tasks, wm := newTestWorkflowManager(t)
	tsk := createWorkflowTask(t, tasks)

	_, err := wm.AdvancePhase(tsk.ID, "tester")
	require.NoError(t, err)

	got, err := wm.FailWorkflow(tsk.ID, "design rejected", "tester")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseFailed, got.DevelopmentWorkflow.Status)

	// failed 之后不可再操作
	_, err = wm.FailWorkflow(tsk.ID, "again", "tester")
	assert.True(t, types.IsKind(err, types.KindInvalidStateTransition))
	_, err = wm.AdvancePhase(tsk.ID, "tester")
	assert.True(t, types.IsKind(err, types.KindInvalidStateTransition))
}

// TestWorkflowManagerPersistence 测试流程状态持久化
func TestWorkflowManagerPersistence(t *testing.T) {
	tasks, wm := newTestWorkflowManager(t)
	tsk := createWorkflowTask(t, tasks)

	_, err := wm.AdvancePhase(tsk.ID, "tester")
	require.NoError(t, err)
	_, err = wm.SetTechnicalDocumentation(tsk.ID, "docs/design.md")
	require.NoError(t, err)

	got, err := tasks.Get(tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PhasePlanning, got.DevelopmentWorkflow.Status)
	assert.Equal(t, "docs/design.md", got.DevelopmentWorkflow.TechnicalDocumentationPath)
}
