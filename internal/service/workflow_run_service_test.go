package service

import (
	"context"
	"testing"

	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkflowRunService(t *testing.T) (WorkflowRunService, TaskService) {
	t.Helper()
	taskSvc, _, db := newTestTaskService(t)
	return NewWorkflowRunService(db, taskSvc), taskSvc
}

// TestWorkflowRunSequentialChain 测试无显式依赖时物化为顺序链
func TestWorkflowRunSequentialChain(t *testing.T) {
	svc, taskSvc := newTestWorkflowRunService(t)
	ctx := context.Background()

	run, err := svc.Create(ctx, &CreateWorkflowRunRequest{
		Name: "release",
		Tasks: []WorkflowRunStepRequest{
			{Name: "build", Command: "make build"},
			{Name: "test", Command: "make test"},
			{Name: "deploy", Command: "make deploy"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusRunning, run.Status)

	// 每个步骤都物化成了任务
	byName := make(map[string]*types.Task)
	for _, step := range run.Tasks {
		require.NotEmpty(t, step.TaskID, "step %s", step.Name)
		tsk, err := taskSvc.Get(step.TaskID)
		require.NoError(t, err)
		byName[step.Name] = tsk
	}

	// 顺序链: test 依赖 build,deploy 依赖 test
	assert.Empty(t, byName["build"].Dependencies)
	require.Len(t, byName["test"].Dependencies, 1)
	assert.Equal(t, byName["build"].ID, byName["test"].Dependencies[0].TaskID)
	require.Len(t, byName["deploy"].Dependencies, 1)
	assert.Equal(t, byName["test"].ID, byName["deploy"].Dependencies[0].TaskID)

	// 任务名带流水线前缀
	assert.Equal(t, "release/build", byName["build"].Name)
}

// TestWorkflowRunParallelExecution 测试并行模式不生成隐式依赖
func TestWorkflowRunParallelExecution(t *testing.T) {
	svc, taskSvc := newTestWorkflowRunService(t)
	ctx := context.Background()

	run, err := svc.Create(ctx, &CreateWorkflowRunRequest{
		Name:              "fanout",
		ParallelExecution: true,
		Tasks: []WorkflowRunStepRequest{
			{Name: "a"},
			{Name: "b"},
		},
	})
	require.NoError(t, err)

	for _, step := range run.Tasks {
		tsk, err := taskSvc.Get(step.TaskID)
		require.NoError(t, err)
		assert.Empty(t, tsk.Dependencies)
	}
}

// TestWorkflowRunExplicitDependencies 测试显式依赖图物化
func TestWorkflowRunExplicitDependencies(t *testing.T) {
	svc, taskSvc := newTestWorkflowRunService(t)
	ctx := context.Background()

	run, err := svc.Create(ctx, &CreateWorkflowRunRequest{
		Name: "diamond",
		Tasks: []WorkflowRunStepRequest{
			{Name: "fetch"},
			{Name: "lint"},
			{Name: "unit"},
			{Name: "merge"},
		},
		Dependencies: map[string][]string{
			"lint":  {"fetch"},
			"unit":  {"fetch"},
			"merge": {"lint", "unit"},
		},
	})
	require.NoError(t, err)

	var merge *types.WorkflowRunStep
	for _, step := range run.Tasks {
		if step.Name == "merge" {
			merge = step
		}
	}
	require.NotNil(t, merge)

	tsk, err := taskSvc.Get(merge.TaskID)
	require.NoError(t, err)
	assert.Len(t, tsk.Dependencies, 2)
}

// TestWorkflowRunValidation 测试流水线创建校验
func TestWorkflowRunValidation(t *testing.T) {
	svc, _ := newTestWorkflowRunService(t)
	ctx := context.Background()

	// 空步骤列表
	_, err := svc.Create(ctx, &CreateWorkflowRunRequest{Name: "empty"})
	assert.True(t, types.IsKind(err, types.KindValidation))

	// 重复步骤名
	_, err = svc.Create(ctx, &CreateWorkflowRunRequest{
		Name:  "dup",
		Tasks: []WorkflowRunStepRequest{{Name: "a"}, {Name: "a"}},
	})
	assert.True(t, types.IsKind(err, types.KindValidation))

	// 依赖引用不存在的步骤
	_, err = svc.Create(ctx, &CreateWorkflowRunRequest{
		Name:         "ghost",
		Tasks:        []WorkflowRunStepRequest{{Name: "a"}},
		Dependencies: map[string][]string{"a": {"phantom"}},
	})
	assert.True(t, types.IsKind(err, types.KindDependencyNotFound))

	// 步骤依赖成环
	_, err = svc.Create(ctx, &CreateWorkflowRunRequest{
		Name:  "loop",
		Tasks: []WorkflowRunStepRequest{{Name: "a"}, {Name: "b"}},
		Dependencies: map[string][]string{
			"a": {"b"},
			"b": {"a"},
		},
	})
	assert.True(t, types.IsKind(err, types.KindCyclicDependency))
}

// TestWorkflowRunManualApproval 测试人工审批流程
func TestWorkflowRunManualApproval(t *testing.T) {
	svc, taskSvc := newTestWorkflowRunService(t)
	ctx := context.Background()

	run, err := svc.Create(ctx, &CreateWorkflowRunRequest{
		Name:           "gated",
		ManualApproval: true,
		Tasks:          []WorkflowRunStepRequest{{Name: "deploy"}},
	})
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusWaitingApproval, run.Status)

	// 审批前步骤任务未物化
	got, err := svc.Get(run.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tasks[0].TaskID)

	// 审批后物化并开始执行
	approved, err := svc.Approve(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusRunning, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)
	require.NotEmpty(t, approved.Tasks[0].TaskID)

	_, err = taskSvc.Get(approved.Tasks[0].TaskID)
	require.NoError(t, err)

	// 重复审批被拒绝
	_, err = svc.Approve(ctx, run.ID)
	assert.True(t, types.IsKind(err, types.KindInvalidStateTransition))
}

// TestWorkflowRunUpdateStatus 测试手动调整流水线状态
func TestWorkflowRunUpdateStatus(t *testing.T) {
	svc, taskSvc := newTestWorkflowRunService(t)
	ctx := context.Background()

	// waiting_approval -> running 等价于审批通过
	run, err := svc.Create(ctx, &CreateWorkflowRunRequest{
		Name:           "gated",
		ManualApproval: true,
		Tasks:          []WorkflowRunStepRequest{{Name: "deploy"}},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, run.ID, "running")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusRunning, updated.Status)
	assert.NotNil(t, updated.ApprovedAt)

	// cancelled 同时取消步骤任务
	cancelled, err := svc.UpdateStatus(ctx, run.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCancelled, cancelled.Status)
	tsk, err := taskSvc.Get(cancelled.Tasks[0].TaskID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCancelled, tsk.Status)

	// 非法状态值与终态覆盖被拒绝
	_, err = svc.UpdateStatus(ctx, run.ID, "bogus")
	assert.True(t, types.IsKind(err, types.KindValidation))
	_, err = svc.UpdateStatus(ctx, run.ID, "running")
	assert.True(t, types.IsKind(err, types.KindInvalidStateTransition))
}

// TestWorkflowRunStatusAggregation 测试聚合状态
func TestWorkflowRunStatusAggregation(t *testing.T) {
	svc, taskSvc := newTestWorkflowRunService(t)
	ctx := context.Background()

	run, err := svc.Create(ctx, &CreateWorkflowRunRequest{
		Name:              "agg",
		ParallelExecution: true,
		Tasks:             []WorkflowRunStepRequest{{Name: "a"}, {Name: "b"}},
	})
	require.NoError(t, err)

	status, err := svc.Status(run.ID)
	require.NoError(t, err)
	assert.Equal(t, string(types.RunStatusRunning), status.Status)
	assert.Equal(t, string(types.TaskStatusPending), status.Steps["a"])

	// 取消所有步骤后流水线可以取消
	cancelled, err := svc.Cancel(ctx, run.ID, "abort")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCancelled, cancelled.Status)

	for _, step := range cancelled.Tasks {
		tsk, err := taskSvc.Get(step.TaskID)
		require.NoError(t, err)
		assert.Equal(t, types.TaskStatusCancelled, tsk.Status)
	}

	// 终态流水线不可再取消
	_, err = svc.Cancel(ctx, run.ID, "again")
	assert.True(t, types.IsKind(err, types.KindInvalidStateTransition))
}
