package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/taskqueue-gin/internal/model"
	"github.com/mautops/taskqueue-gin/internal/repository"
	"github.com/mautops/taskqueue-gin/internal/types"
	"gorm.io/gorm"
)

// WorkflowRunService 编排流水线服务接口
// 流水线把一组步骤物化为带依赖边的任务,交给调度器执行
type WorkflowRunService interface {
	Create(ctx context.Context, req *CreateWorkflowRunRequest) (*types.WorkflowRun, error)
	Get(id string) (*types.WorkflowRun, error)
	List() ([]*types.WorkflowRun, error)
	Approve(ctx context.Context, id string) (*types.WorkflowRun, error)
	Cancel(ctx context.Context, id string, reason string) (*types.WorkflowRun, error)
	Status(id string) (*WorkflowRunStatusResponse, error)
	UpdateStatus(ctx context.Context, id string, status string) (*types.WorkflowRun, error)
	Result(id string) (*WorkflowRunResultResponse, error)
}

// WorkflowRunStepRequest 流水线步骤定义
// @Description 流水线中的单个步骤
type WorkflowRunStepRequest struct {
	Name    string `json:"name" example:"build" binding:"required"` // 步骤名称,流水线内唯一
	Command string `json:"command" example:"make build"`            // 执行命令
}

// CreateWorkflowRunRequest 创建流水线请求
// @Description 创建流水线的请求参数
type CreateWorkflowRunRequest struct {
	Name              string                   `json:"name" example:"release-pipeline" binding:"required"` // 流水线名称
	Tasks             []WorkflowRunStepRequest `json:"tasks" binding:"required"`                           // 步骤列表
	Dependencies      map[string][]string      `json:"dependencies"`                                       // 步骤名 -> 前置步骤名
	ParallelExecution bool                     `json:"parallel_execution" example:"false"`                 // 无显式依赖时是否并行
	ManualApproval    bool                     `json:"manual_approval" example:"false"`                    // 是否需要人工审批后才执行
}

// WorkflowRunStatusResponse 流水线聚合状态
type WorkflowRunStatusResponse struct {
	ID     string            `json:"id"`
	Status string            `json:"status"`
	Steps  map[string]string `json:"steps"` // 步骤名 -> 任务状态
}

// WorkflowRunResultResponse 流水线执行结果
type WorkflowRunResultResponse struct {
	ID     string                       `json:"id"`
	Status string                       `json:"status"`
	Steps  map[string]*types.TaskResult `json:"steps"` // 步骤名 -> 任务结果
}

type workflowRunService struct {
	runRepo repository.WorkflowRunRepository
	taskSvc TaskService
}

// NewWorkflowRunService 创建流水线服务
func NewWorkflowRunService(db *gorm.DB, taskSvc TaskService) WorkflowRunService {
	return &workflowRunService{
		runRepo: repository.NewWorkflowRunRepository(db),
		taskSvc: taskSvc,
	}
}

// Create 创建流水线
// manual_approval 为 true 时步骤任务延迟到审批通过后才物化
func (s *workflowRunService) Create(ctx context.Context, req *CreateWorkflowRunRequest) (*types.WorkflowRun, error) {
	if len(req.Tasks) == 0 {
		return nil, types.NewError(types.KindValidation, "workflow run requires at least one step")
	}

	// 1. 步骤名唯一性与依赖引用校验
	steps := make(map[string]bool, len(req.Tasks))
	for _, step := range req.Tasks {
		if step.Name == "" {
			return nil, types.NewError(types.KindValidation, "step name is required")
		}
		if steps[step.Name] {
			return nil, types.NewError(types.KindValidation, "duplicate step name %q", step.Name)
		}
		steps[step.Name] = true
	}
	for name, preds := range req.Dependencies {
		if !steps[name] {
			return nil, types.NewError(types.KindDependencyNotFound, "step %q does not exist", name)
		}
		for _, pred := range preds {
			if !steps[pred] {
				return nil, types.NewError(types.KindDependencyNotFound, "step %q does not exist", pred)
			}
		}
	}

	// 2. 步骤图环检测
	if err := checkStepCycles(req.Dependencies); err != nil {
		return nil, err
	}

	// 3. 构建流水线对象
	now := time.Now()
	run := &types.WorkflowRun{
		ID:                uuid.New().String(),
		Name:              req.Name,
		Dependencies:      req.Dependencies,
		ParallelExecution: req.ParallelExecution,
		ManualApproval:    req.ManualApproval,
		Status:            types.RunStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, step := range req.Tasks {
		run.Tasks = append(run.Tasks, &types.WorkflowRunStep{
			Name:    step.Name,
			Command: step.Command,
		})
	}

	// 4. 需要审批时先挂起,否则立即物化任务
	if run.ManualApproval {
		run.Status = types.RunStatusWaitingApproval
	} else {
		if err := s.materialize(ctx, run); err != nil {
			return nil, err
		}
		run.Status = types.RunStatusRunning
	}

	if err := s.save(run); err != nil {
		return nil, err
	}
	return run, nil
}

// checkStepCycles 对步骤依赖图做 DFS 环检测
func checkStepCycles(deps map[string][]string) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int)

	var visit func(name string) error
	visit = func(name string) error {
		switch colors[name] {
		case gray:
			return types.NewError(types.KindCyclicDependency,
				"step dependencies close a cycle through %q", name)
		case black:
			return nil
		}
		colors[name] = gray
		for _, pred := range deps[name] {
			if err := visit(pred); err != nil {
				return err
			}
		}
		colors[name] = black
		return nil
	}

	for name := range deps {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// materialize 把流水线步骤物化为任务
// 按拓扑序创建,保证依赖边引用的任务已经存在;
// parallel_execution 为 false 且无显式依赖时退化为顺序链
func (s *workflowRunService) materialize(ctx context.Context, run *types.WorkflowRun) error {
	deps := run.Dependencies
	if len(deps) == 0 && !run.ParallelExecution {
		deps = make(map[string][]string, len(run.Tasks))
		for i := 1; i < len(run.Tasks); i++ {
			deps[run.Tasks[i].Name] = []string{run.Tasks[i-1].Name}
		}
	}

	stepsByName := make(map[string]*types.WorkflowRunStep, len(run.Tasks))
	for _, step := range run.Tasks {
		stepsByName[step.Name] = step
	}

	// Kahn 风格的拓扑推进: 每轮创建所有前置已物化的步骤
	created := make(map[string]string) // 步骤名 -> 任务 ID
	for len(created) < len(run.Tasks) {
		progressed := false
		for _, step := range run.Tasks {
			if _, ok := created[step.Name]; ok {
				continue
			}
			ready := true
			var taskDeps []DependencyRequest
			for _, pred := range deps[step.Name] {
				predID, ok := created[pred]
				if !ok {
					ready = false
					break
				}
				taskDeps = append(taskDeps, DependencyRequest{
					TaskID:    predID,
					Condition: string(types.ConditionSuccess),
				})
			}
			if !ready {
				continue
			}

			tsk, err := s.taskSvc.Create(ctx, &CreateTaskRequest{
				Name:         fmt.Sprintf("%s/%s", run.Name, step.Name),
				Command:      step.Command,
				Dependencies: taskDeps,
			})
			if err != nil {
				return fmt.Errorf("failed to create task for step %q: %w", step.Name, err)
			}
			step.TaskID = tsk.ID
			created[step.Name] = tsk.ID
			progressed = true
		}
		if !progressed {
			// 环检测已在创建时通过,到这里说明依赖表有遗漏
			return types.NewError(types.KindCyclicDependency,
				"step dependencies cannot be ordered")
		}
	}
	return nil
}

// Get 获取流水线详情
func (s *workflowRunService) Get(id string) (*types.WorkflowRun, error) {
	rm, err := s.runRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.KindNotFound, "workflow run %q not found", id)
		}
		return nil, fmt.Errorf("failed to find workflow run: %w", err)
	}

	var run types.WorkflowRun
	if err := json.Unmarshal(rm.Data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow run: %w", err)
	}
	return &run, nil
}

// List 查询所有流水线
func (s *workflowRunService) List() ([]*types.WorkflowRun, error) {
	models, err := s.runRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow runs: %w", err)
	}

	runs := make([]*types.WorkflowRun, 0, len(models))
	for _, rm := range models {
		var run types.WorkflowRun
		if err := json.Unmarshal(rm.Data, &run); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow run %q: %w", rm.ID, err)
		}
		runs = append(runs, &run)
	}
	return runs, nil
}

// Approve 审批通过,物化步骤任务并开始执行
func (s *workflowRunService) Approve(ctx context.Context, id string) (*types.WorkflowRun, error) {
	run, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if run.Status != types.RunStatusWaitingApproval {
		return nil, types.NewError(types.KindInvalidStateTransition,
			"workflow run %q is in status %q, only waiting_approval runs can be approved", id, run.Status)
	}

	if err := s.materialize(ctx, run); err != nil {
		return nil, err
	}

	now := time.Now()
	run.Status = types.RunStatusRunning
	run.ApprovedAt = &now
	run.UpdatedAt = now

	if err := s.save(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Cancel 取消流水线及其所有未终态的步骤任务
func (s *workflowRunService) Cancel(ctx context.Context, id string, reason string) (*types.WorkflowRun, error) {
	run, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if run.Status == types.RunStatusCompleted || run.Status == types.RunStatusFailed ||
		run.Status == types.RunStatusCancelled {
		return nil, types.NewError(types.KindInvalidStateTransition,
			"workflow run %q is already in terminal status %q", id, run.Status)
	}
	if reason == "" {
		reason = "workflow run cancelled"
	}

	for _, step := range run.Tasks {
		if step.TaskID == "" {
			continue
		}
		if _, err := s.taskSvc.Cancel(ctx, step.TaskID, reason); err != nil {
			// 已终态的任务无法取消,属预期情况
			var domainErr *types.DomainError
			if errors.As(err, &domainErr) && domainErr.Kind == types.KindInvalidStateTransition {
				continue
			}
			return nil, err
		}
	}

	run.Status = types.RunStatusCancelled
	run.UpdatedAt = time.Now()
	if err := s.save(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Status 计算流水线聚合状态
func (s *workflowRunService) Status(id string) (*WorkflowRunStatusResponse, error) {
	run, err := s.refreshStatus(id)
	if err != nil {
		return nil, err
	}

	resp := &WorkflowRunStatusResponse{
		ID:     run.ID,
		Status: string(run.Status),
		Steps:  make(map[string]string, len(run.Tasks)),
	}
	for _, step := range run.Tasks {
		if step.TaskID == "" {
			resp.Steps[step.Name] = "not_created"
			continue
		}
		tsk, err := s.taskSvc.Get(step.TaskID)
		if err != nil {
			return nil, err
		}
		resp.Steps[step.Name] = string(tsk.Status)
	}
	return resp, nil
}

// UpdateStatus 手动调整流水线状态
// cancelled 委托给 Cancel 以便同时取消步骤任务,waiting_approval -> running 委托给 Approve
func (s *workflowRunService) UpdateStatus(ctx context.Context, id string, status string) (*types.WorkflowRun, error) {
	target := types.WorkflowRunStatus(status)
	switch target {
	case types.RunStatusPending, types.RunStatusWaitingApproval, types.RunStatusRunning,
		types.RunStatusCompleted, types.RunStatusFailed, types.RunStatusCancelled:
	default:
		return nil, types.NewError(types.KindValidation, "invalid workflow run status %q", status)
	}

	if target == types.RunStatusCancelled {
		return s.Cancel(ctx, id, "status set to cancelled")
	}

	run, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if run.Status == types.RunStatusCompleted || run.Status == types.RunStatusFailed ||
		run.Status == types.RunStatusCancelled {
		return nil, types.NewError(types.KindInvalidStateTransition,
			"workflow run %q is already in terminal status %q", id, run.Status)
	}
	if run.Status == types.RunStatusWaitingApproval && target == types.RunStatusRunning {
		return s.Approve(ctx, id)
	}

	run.Status = target
	run.UpdatedAt = time.Now()
	if err := s.save(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Result 汇总流水线各步骤的执行结果
func (s *workflowRunService) Result(id string) (*WorkflowRunResultResponse, error) {
	run, err := s.refreshStatus(id)
	if err != nil {
		return nil, err
	}

	resp := &WorkflowRunResultResponse{
		ID:     run.ID,
		Status: string(run.Status),
		Steps:  make(map[string]*types.TaskResult, len(run.Tasks)),
	}
	for _, step := range run.Tasks {
		if step.TaskID == "" {
			continue
		}
		tsk, err := s.taskSvc.Get(step.TaskID)
		if err != nil {
			return nil, err
		}
		resp.Steps[step.Name] = tsk.Result
	}
	return resp, nil
}

// refreshStatus 根据步骤任务的状态刷新流水线聚合状态
// 全部成功 -> completed;出现失败 -> failed;其余保持 running
func (s *workflowRunService) refreshStatus(id string) (*types.WorkflowRun, error) {
	run, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if run.Status != types.RunStatusRunning {
		return run, nil
	}

	allCompleted := true
	anyFailed := false
	for _, step := range run.Tasks {
		if step.TaskID == "" {
			allCompleted = false
			continue
		}
		tsk, err := s.taskSvc.Get(step.TaskID)
		if err != nil {
			return nil, err
		}
		switch tsk.Status {
		case types.TaskStatusCompleted:
		case types.TaskStatusFailed:
			anyFailed = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}

	changed := false
	if anyFailed {
		run.Status = types.RunStatusFailed
		changed = true
	} else if allCompleted {
		run.Status = types.RunStatusCompleted
		changed = true
	}
	if changed {
		run.UpdatedAt = time.Now()
		if err := s.save(run); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// save 序列化流水线并保存
func (s *workflowRunService) save(run *types.WorkflowRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow run: %w", err)
	}
	rm := &model.WorkflowRunModel{
		ID:        run.ID,
		Name:      run.Name,
		Status:    string(run.Status),
		Data:      data,
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
	if err := s.runRepo.Save(rm); err != nil {
		return fmt.Errorf("failed to save workflow run: %w", err)
	}
	return nil
}
