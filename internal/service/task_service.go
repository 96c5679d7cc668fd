package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/taskqueue-gin/internal/integration"
	"github.com/mautops/taskqueue-gin/internal/metrics"
	"github.com/mautops/taskqueue-gin/internal/repository"
	"github.com/mautops/taskqueue-gin/internal/types"
	"gorm.io/gorm"
)

// SchedulerNotifier 调度器通知接口
// Wake 请求一轮调度,Interrupt 终止在途执行
type SchedulerNotifier interface {
	Wake()
	Interrupt(taskID string)
}

// TaskService 任务服务接口
type TaskService interface {
	Create(ctx context.Context, req *CreateTaskRequest) (*types.Task, error)
	Get(id string) (*types.Task, error)
	List(req *ListTasksRequest) ([]*types.Task, error)
	Update(ctx context.Context, id string, req *UpdateTaskRequest) (*types.Task, error)
	Delete(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string, reason string) (*types.Task, error)
	Retry(ctx context.Context, id string, resetRetryCount bool) (*types.Task, error)
	SetPriority(ctx context.Context, id string, priority string) (*types.Task, error)
	GetStateHistory(id string) ([]*StateHistoryEntry, error)
}

// DependencyRequest 依赖项请求参数
// @Description 任务依赖边,condition 缺省为 success
type DependencyRequest struct {
	TaskID    string `json:"task_id" example:"task-001" binding:"required"` // 前置任务 ID
	Condition string `json:"condition" example:"success"`                   // 依赖条件: success/failure/completion
}

// CreateTaskRequest 创建任务请求
// @Description 创建任务的请求参数
type CreateTaskRequest struct {
	Name                      string              `json:"name" example:"build-frontend" binding:"required"` // 任务名称
	Command                   string              `json:"command" example:"make build"`                     // 执行命令
	Description               string              `json:"description" example:"构建前端产物"`                     // 任务描述
	ProjectID                 string              `json:"project_id" example:"proj-001"`                    // 所属项目 ID
	Priority                  string              `json:"priority" example:"normal"`                        // 优先级: low/normal/high/critical
	Dependencies              []DependencyRequest `json:"dependencies"`                                     // 依赖列表
	EnableDevelopmentWorkflow bool                `json:"enable_development_workflow" example:"false"`      // 是否附加开发流程
	RetryAttempts             int                 `json:"retry_attempts" example:"3"`                       // 失败重试次数
	RetryDelaySeconds         int                 `json:"retry_delay_seconds" example:"5"`                  // 重试间隔(秒)
	TimeoutSeconds            int                 `json:"timeout_seconds" example:"600"`                    // 执行超时(秒),0 为不限时
}

// UpdateTaskRequest 更新任务请求
// @Description 更新任务的请求参数,缺省字段不修改
type UpdateTaskRequest struct {
	Name         *string             `json:"name" example:"build-frontend-v2"` // 任务名称
	Command      *string             `json:"command" example:"make build"`     // 执行命令
	Description  *string             `json:"description"`                      // 任务描述
	Dependencies []DependencyRequest `json:"dependencies"`                     // 依赖列表,非空时整体替换
}

// ListTasksRequest 任务列表查询参数
type ListTasksRequest struct {
	Status    string `form:"status"`     // 按状态过滤
	ProjectID string `form:"project_id"` // 按项目过滤
	Priority  string `form:"priority"`   // 按优先级过滤
}

// StateHistoryEntry 状态历史条目
type StateHistoryEntry struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Reason   string    `json:"reason,omitempty"`
	Operator string    `json:"operator,omitempty"`
	Time     time.Time `json:"time"`
}

type taskService struct {
	taskMgr     integration.TaskManager
	historyRepo repository.StateHistoryRepository
	scheduler   SchedulerNotifier
}

// NewTaskService 创建任务服务
func NewTaskService(db *gorm.DB, taskMgr integration.TaskManager, scheduler SchedulerNotifier) TaskService {
	return &taskService{
		taskMgr:     taskMgr,
		historyRepo: repository.NewStateHistoryRepository(db),
		scheduler:   scheduler,
	}
}

// Create 创建任务
func (s *taskService) Create(ctx context.Context, req *CreateTaskRequest) (*types.Task, error) {
	input := &integration.CreateTaskInput{
		Name:           req.Name,
		Command:        req.Command,
		Description:    req.Description,
		ProjectID:      req.ProjectID,
		Priority:       types.TaskPriority(req.Priority),
		Dependencies:   toDependencies(req.Dependencies),
		AttachWorkflow: req.EnableDevelopmentWorkflow,
		RetryAttempts:  req.RetryAttempts,
		RetryDelay:     time.Duration(req.RetryDelaySeconds) * time.Second,
		Timeout:        time.Duration(req.TimeoutSeconds) * time.Second,
	}
	if input.Priority == "" {
		input.Priority = types.PriorityNormal
	}

	tsk, err := s.taskMgr.Create(input)
	if err != nil {
		return nil, err
	}

	metrics.TasksCreatedTotal.Inc()
	s.scheduler.Wake()
	return tsk, nil
}

// toDependencies 转换依赖请求,condition 缺省为 success
func toDependencies(reqs []DependencyRequest) []types.Dependency {
	if len(reqs) == 0 {
		return nil
	}
	deps := make([]types.Dependency, 0, len(reqs))
	for _, r := range reqs {
		cond := types.DependencyCondition(r.Condition)
		if r.Condition == "" {
			cond = types.ConditionSuccess
		}
		deps = append(deps, types.Dependency{TaskID: r.TaskID, Condition: cond})
	}
	return deps
}

// Get 获取任务详情
func (s *taskService) Get(id string) (*types.Task, error) {
	return s.taskMgr.Get(id)
}

// List 查询任务列表
func (s *taskService) List(req *ListTasksRequest) ([]*types.Task, error) {
	filter := &repository.TaskFilter{}
	if req != nil {
		if req.Status != "" {
			if !types.TaskStatus(req.Status).IsValid() {
				return nil, types.NewError(types.KindValidation, "invalid status %q", req.Status)
			}
			filter.Status = &req.Status
		}
		if req.ProjectID != "" {
			filter.ProjectID = &req.ProjectID
		}
		if req.Priority != "" {
			if !types.TaskPriority(req.Priority).IsValid() {
				return nil, types.NewError(types.KindValidation, "invalid priority %q", req.Priority)
			}
			filter.Priority = &req.Priority
		}
	}
	return s.taskMgr.List(filter)
}

// Update 更新任务
func (s *taskService) Update(ctx context.Context, id string, req *UpdateTaskRequest) (*types.Task, error) {
	input := &integration.UpdateTaskInput{
		Name:        req.Name,
		Command:     req.Command,
		Description: req.Description,
	}
	if req.Dependencies != nil {
		input.Dependencies = toDependencies(req.Dependencies)
	}

	tsk, err := s.taskMgr.Update(id, input)
	if err != nil {
		return nil, err
	}
	s.scheduler.Wake()
	return tsk, nil
}

// Delete 删除任务
func (s *taskService) Delete(ctx context.Context, id string) error {
	return s.taskMgr.Delete(id)
}

// Cancel 取消任务
// 状态立即转为 cancelled,再中断可能在途的执行进程
func (s *taskService) Cancel(ctx context.Context, id string, reason string) (*types.Task, error) {
	if reason == "" {
		reason = "cancelled by user"
	}

	tsk, err := s.taskMgr.Cancel(id, reason, "api")
	if err != nil {
		return nil, err
	}
	metrics.TaskTransitionsTotal.WithLabelValues(string(types.TaskStatusCancelled)).Inc()

	s.scheduler.Interrupt(id)
	s.scheduler.Wake()
	return tsk, nil
}

// Retry 重试失败的任务
func (s *taskService) Retry(ctx context.Context, id string, resetRetryCount bool) (*types.Task, error) {
	tsk, err := s.taskMgr.Retry(id, resetRetryCount)
	if err != nil {
		return nil, err
	}
	s.scheduler.Wake()
	return tsk, nil
}

// SetPriority 调整任务优先级
func (s *taskService) SetPriority(ctx context.Context, id string, priority string) (*types.Task, error) {
	tsk, err := s.taskMgr.SetPriority(id, types.TaskPriority(priority))
	if err != nil {
		return nil, err
	}
	s.scheduler.Wake()
	return tsk, nil
}

// GetStateHistory 获取任务状态历史
func (s *taskService) GetStateHistory(id string) ([]*StateHistoryEntry, error) {
	// 先确认任务存在,保证 404 语义
	if _, err := s.taskMgr.Get(id); err != nil {
		return nil, err
	}

	rows, err := s.historyRepo.FindByTaskID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load state history: %w", err)
	}

	entries := make([]*StateHistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &StateHistoryEntry{
			From:     row.FromState,
			To:       row.ToState,
			Reason:   row.Reason,
			Operator: row.Operator,
			Time:     row.CreatedAt,
		})
	}
	return entries, nil
}
