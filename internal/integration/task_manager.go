package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/taskqueue-gin/internal/graph"
	"github.com/mautops/taskqueue-gin/internal/model"
	"github.com/mautops/taskqueue-gin/internal/repository"
	"github.com/mautops/taskqueue-gin/internal/statemachine"
	"github.com/mautops/taskqueue-gin/internal/types"
	"gorm.io/gorm"
)

// TaskManager 任务管理器接口
type TaskManager interface {
	Create(input *CreateTaskInput) (*types.Task, error)
	Get(id string) (*types.Task, error)
	List(filter *repository.TaskFilter) ([]*types.Task, error)
	Update(id string, input *UpdateTaskInput) (*types.Task, error)
	Delete(id string) error

	Cancel(id string, reason string, operator string) (*types.Task, error)
	Retry(id string, resetRetryCount bool) (*types.Task, error)
	SetPriority(id string, priority types.TaskPriority) (*types.Task, error)

	// 调度器专用操作
	MarkWaiting(id string, blocking []string) error
	Dispatch(id string) (*types.Task, error)
	CompleteExecution(id string, outcome *ExecutionOutcome) (*types.Task, error)

	CountByStatus() (map[string]int64, error)
}

// CreateTaskInput 创建任务的输入
type CreateTaskInput struct {
	Name           string
	Command        string
	Description    string
	ProjectID      string
	Priority       types.TaskPriority
	Dependencies   []types.Dependency
	AttachWorkflow bool
	RetryAttempts  int
	RetryDelay     time.Duration
	Timeout        time.Duration
}

// UpdateTaskInput 更新任务的输入,nil 字段表示不修改
type UpdateTaskInput struct {
	Name         *string
	Command      *string
	Description  *string
	Dependencies []types.Dependency
}

// ExecutionOutcome 执行器上报的执行结果
type ExecutionOutcome struct {
	Success  *types.SuccessResult
	Failure  *types.FailureResult
	TimedOut bool
}

// dbTaskManager 基于数据库的任务管理器
type dbTaskManager struct {
	db           *gorm.DB
	taskRepo     repository.TaskRepository
	historyRepo  repository.StateHistoryRepository
	stateMachine *statemachine.TaskStateMachine
	events       EventSink

	// 每个任务一把锁,保证单任务的读-改-写串行化
	locks sync.Map // map[string]*sync.Mutex
}

// NewTaskManager 创建任务管理器
func NewTaskManager(db *gorm.DB, events EventSink) TaskManager {
	return &dbTaskManager{
		db:           db,
		taskRepo:     repository.NewTaskRepository(db),
		historyRepo:  repository.NewStateHistoryRepository(db),
		stateMachine: statemachine.NewTaskStateMachine(),
		events:       events,
	}
}

// lockFor 获取任务专属锁
func (m *dbTaskManager) lockFor(id string) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Create 创建任务
func (m *dbTaskManager) Create(input *CreateTaskInput) (*types.Task, error) {
	// 1. 结构校验,任何错误都在持久化之前返回
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	// 2. 依赖边校验: 引用存在性 + 环检测,必须先于持久化
	taskID := uuid.New().String()
	if len(input.Dependencies) > 0 {
		if err := m.checkDependencies(taskID, input.Dependencies); err != nil {
			return nil, err
		}
	}

	// 3. 构建任务对象
	now := time.Now()
	tsk := &types.Task{
		ID:               taskID,
		Name:             input.Name,
		Command:          input.Command,
		Description:      input.Description,
		ProjectID:        input.ProjectID,
		Priority:         input.Priority,
		Status:           types.TaskStatusPending,
		Dependencies:     input.Dependencies,
		RetryAttempts:    input.RetryAttempts,
		RetriesRemaining: input.RetryAttempts,
		RetryDelay:       input.RetryDelay,
		Timeout:          input.Timeout,
		CreatedAt:        now,
		UpdatedAt:        now,
		StateHistory:     []*types.StateChange{},
	}
	if input.AttachWorkflow {
		tsk.DevelopmentWorkflow = &types.DevelopmentWorkflow{
			Status:          types.PhaseNotStarted,
			AIReviewReports: []*types.AIReviewReport{},
		}
	}

	// 4. 依赖未满足时初始状态为等待依赖
	if len(tsk.Dependencies) > 0 {
		readiness := graph.Resolve(tsk.Dependencies, m.statusLookup())
		if !readiness.Ready {
			tsk.Status = types.TaskStatusWaitingForDependencies
		}
	}

	// 5. 保存到数据库
	if err := m.save(tsk); err != nil {
		return nil, err
	}

	m.emit(tsk.ID, types.EventTaskCreated, tsk)
	return tsk, nil
}

// validateCreateInput 校验创建输入
func validateCreateInput(input *CreateTaskInput) error {
	if input == nil {
		return types.NewError(types.KindValidation, "request body is required")
	}
	if input.Name == "" {
		return types.NewError(types.KindValidation, "task name is required").WithDetails("name: must not be empty")
	}
	if input.Priority == "" {
		input.Priority = types.PriorityNormal
	}
	if !input.Priority.IsValid() {
		return types.NewError(types.KindValidation, "invalid priority %q", input.Priority).
			WithDetails("priority: must be one of low, normal, high, critical")
	}
	if input.RetryAttempts < 0 {
		return types.NewError(types.KindValidation, "retry_attempts must not be negative")
	}
	for _, dep := range input.Dependencies {
		if dep.TaskID == "" {
			return types.NewError(types.KindValidation, "dependency task_id is required")
		}
		if !dep.Condition.IsValid() {
			return types.NewError(types.KindValidation, "invalid dependency condition %q", dep.Condition).
				WithDetails("condition: must be one of success, failure, completion")
		}
	}
	return nil
}

// checkDependencies 对新的依赖边做存在性与无环校验
func (m *dbTaskManager) checkDependencies(taskID string, deps []types.Dependency) error {
	lookup := func(id string) ([]types.Dependency, bool) {
		tsk, err := m.Get(id)
		if err != nil {
			return nil, false
		}
		return tsk.Dependencies, true
	}
	return graph.CheckAcyclic(taskID, deps, lookup)
}

// statusLookup 构建依赖判定用的状态查询函数
func (m *dbTaskManager) statusLookup() graph.StatusLookup {
	return func(id string) (types.TaskStatus, bool) {
		tm, err := m.taskRepo.FindByID(id)
		if err != nil {
			return "", false
		}
		return types.TaskStatus(tm.Status), true
	}
}

// Get 获取任务
func (m *dbTaskManager) Get(id string) (*types.Task, error) {
	tm, err := m.taskRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.KindNotFound, "task %q not found", id)
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	var tsk types.Task
	if err := json.Unmarshal(tm.Data, &tsk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &tsk, nil
}

// List 按过滤器查询任务
func (m *dbTaskManager) List(filter *repository.TaskFilter) ([]*types.Task, error) {
	models, err := m.taskRepo.FindByFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*types.Task, 0, len(models))
	for _, tm := range models {
		var tsk types.Task
		if err := json.Unmarshal(tm.Data, &tsk); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task %q: %w", tm.ID, err)
		}
		tasks = append(tasks, &tsk)
	}
	return tasks, nil
}

// Update 更新任务的可编辑字段
func (m *dbTaskManager) Update(id string, input *UpdateTaskInput) (*types.Task, error) {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	tsk, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if tsk.Status.IsTerminal() {
		return nil, types.NewError(types.KindInvalidStateTransition,
			"task %q is in terminal status %q and cannot be updated", id, tsk.Status)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, types.NewError(types.KindValidation, "task name is required")
		}
		tsk.Name = *input.Name
	}
	if input.Command != nil {
		tsk.Command = *input.Command
	}
	if input.Description != nil {
		tsk.Description = *input.Description
	}

	// 新依赖边同样要先过环检测再落库
	if input.Dependencies != nil {
		if tsk.Status == types.TaskStatusRunning {
			return nil, types.NewError(types.KindInvalidStateTransition,
				"cannot change dependencies of running task %q", id)
		}
		for _, dep := range input.Dependencies {
			if !dep.Condition.IsValid() {
				return nil, types.NewError(types.KindValidation, "invalid dependency condition %q", dep.Condition)
			}
		}
		if err := m.checkDependencies(id, input.Dependencies); err != nil {
			return nil, err
		}
		tsk.Dependencies = input.Dependencies
	}

	tsk.UpdatedAt = time.Now()
	if err := m.save(tsk); err != nil {
		return nil, err
	}
	return tsk, nil
}

// Delete 删除任务,运行中的任务必须先取消
func (m *dbTaskManager) Delete(id string) error {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	tsk, err := m.Get(id)
	if err != nil {
		return err
	}
	if tsk.Status == types.TaskStatusRunning {
		return types.NewError(types.KindInvalidStateTransition,
			"task %q is running and must be cancelled before deletion", id)
	}

	if err := m.taskRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	m.locks.Delete(id)
	return nil
}

// Cancel 取消任务
// 任意非终态可取消;取消立即生效,不等待在途执行确认
func (m *dbTaskManager) Cancel(id string, reason string, operator string) (*types.Task, error) {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	tsk, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	from := tsk.Status
	if err := m.stateMachine.Transition(tsk, types.TaskStatusCancelled, reason); err != nil {
		return nil, err
	}

	now := time.Now()
	tsk.CancelRequestedAt = &now
	tsk.Result = &types.TaskResult{Cancelled: &types.CancelledResult{Reason: reason}}

	if err := m.save(tsk); err != nil {
		return nil, err
	}
	m.recordHistory(id, from, tsk.Status, reason, operator)
	m.emit(id, types.EventTaskStateChanged, tsk)
	return tsk, nil
}

// Retry 重新入队一个失败的任务
// 这是显式的人工操作,区别于状态机内部的自动重试
func (m *dbTaskManager) Retry(id string, resetRetryCount bool) (*types.Task, error) {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	tsk, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if tsk.Status != types.TaskStatusFailed {
		return nil, types.NewError(types.KindInvalidStateTransition,
			"task %q is in status %q, only failed tasks can be retried", id, tsk.Status)
	}

	from := tsk.Status
	now := time.Now()
	tsk.Status = types.TaskStatusPending
	tsk.Result = nil
	tsk.CompletedAt = nil
	tsk.UpdatedAt = now
	if resetRetryCount {
		tsk.RetriesRemaining = tsk.RetryAttempts
	}
	tsk.StateHistory = append(tsk.StateHistory, &types.StateChange{
		From:   from,
		To:     tsk.Status,
		Reason: "manual retry",
		Time:   now,
	})

	if err := m.save(tsk); err != nil {
		return nil, err
	}
	m.recordHistory(id, from, tsk.Status, "manual retry", "api")
	m.emit(id, types.EventTaskStateChanged, tsk)
	return tsk, nil
}

// SetPriority 调整任务优先级
func (m *dbTaskManager) SetPriority(id string, priority types.TaskPriority) (*types.Task, error) {
	if !priority.IsValid() {
		return nil, types.NewError(types.KindValidation, "invalid priority %q", priority).
			WithDetails("priority: must be one of low, normal, high, critical")
	}

	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	tsk, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if tsk.Status.IsTerminal() {
		return nil, types.NewError(types.KindInvalidStateTransition,
			"task %q is in terminal status %q", id, tsk.Status)
	}

	tsk.Priority = priority
	tsk.UpdatedAt = time.Now()
	if err := m.save(tsk); err != nil {
		return nil, err
	}
	return tsk, nil
}

// MarkWaiting 将任务标记为等待依赖
func (m *dbTaskManager) MarkWaiting(id string, blocking []string) error {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	tsk, err := m.Get(id)
	if err != nil {
		return err
	}
	if tsk.Status == types.TaskStatusWaitingForDependencies {
		return nil
	}

	from := tsk.Status
	reason := fmt.Sprintf("blocked by dependencies %v", blocking)
	if err := m.stateMachine.Transition(tsk, types.TaskStatusWaitingForDependencies, reason); err != nil {
		return err
	}
	if err := m.save(tsk); err != nil {
		return err
	}
	m.recordHistory(id, from, tsk.Status, reason, "scheduler")
	return nil
}

// Dispatch 调度任务进入运行状态
// 只能由调度器调用,设置 started_at 并转换到 running
func (m *dbTaskManager) Dispatch(id string) (*types.Task, error) {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	tsk, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	from := tsk.Status
	if err := m.stateMachine.Transition(tsk, types.TaskStatusRunning, "dispatched"); err != nil {
		return nil, err
	}
	if err := m.save(tsk); err != nil {
		return nil, err
	}
	m.recordHistory(id, from, tsk.Status, "dispatched", "scheduler")
	m.emit(id, types.EventTaskDispatched, tsk)
	return tsk, nil
}

// CompleteExecution 处理执行器上报的执行结果
// 与取消存在竞争: 任务已是 cancelled 时保持 cancelled,迟到的结果仅记录审计信息
func (m *dbTaskManager) CompleteExecution(id string, outcome *ExecutionOutcome) (*types.Task, error) {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	tsk, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	// 取消优先: 不覆盖已取消的状态
	if tsk.Status == types.TaskStatusCancelled {
		if tsk.Result != nil && tsk.Result.Cancelled != nil {
			if outcome.Success != nil {
				tsk.Result.Cancelled.LateOutcome = "success"
			} else if outcome.Failure != nil {
				tsk.Result.Cancelled.LateOutcome = outcome.Failure.Error
			}
			tsk.UpdatedAt = time.Now()
			if err := m.save(tsk); err != nil {
				return nil, err
			}
		}
		return tsk, nil
	}

	from := tsk.Status
	switch {
	case outcome.Success != nil:
		if err := m.stateMachine.Transition(tsk, types.TaskStatusCompleted, "execution succeeded"); err != nil {
			return nil, err
		}
		tsk.Result = &types.TaskResult{Success: outcome.Success}

	case outcome.Failure != nil:
		reason := "execution failed"
		if outcome.TimedOut {
			reason = "execution timed out"
		}
		// 仍有重试次数时回到 pending 而不是进入终态
		if tsk.RetriesRemaining > 0 {
			tsk.RetriesRemaining--
			if err := m.stateMachine.Transition(tsk, types.TaskStatusPending, reason+", retrying"); err != nil {
				return nil, err
			}
		} else {
			if err := m.stateMachine.Transition(tsk, types.TaskStatusFailed, reason); err != nil {
				return nil, err
			}
			tsk.Result = &types.TaskResult{Failure: outcome.Failure}
		}

	default:
		return nil, types.NewError(types.KindValidation, "execution outcome carries no result")
	}

	if err := m.save(tsk); err != nil {
		return nil, err
	}
	m.recordHistory(id, from, tsk.Status, "execution finished", "scheduler")
	m.emit(id, types.EventTaskStateChanged, tsk)
	return tsk, nil
}

// CountByStatus 按状态统计任务数量
func (m *dbTaskManager) CountByStatus() (map[string]int64, error) {
	return m.taskRepo.CountByStatus()
}

// save 序列化任务并保存到数据库
func (m *dbTaskManager) save(tsk *types.Task) error {
	data, err := json.Marshal(tsk)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	taskModel := &model.TaskModel{
		ID:          tsk.ID,
		Name:        tsk.Name,
		ProjectID:   tsk.ProjectID,
		Status:      string(tsk.Status),
		Priority:    string(tsk.Priority),
		HasWorkflow: tsk.DevelopmentWorkflow != nil,
		Data:        data,
		CreatedAt:   tsk.CreatedAt,
		UpdatedAt:   tsk.UpdatedAt,
		StartedAt:   tsk.StartedAt,
		CompletedAt: tsk.CompletedAt,
	}
	if err := m.taskRepo.Save(taskModel); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// recordHistory 保存状态历史到数据库
func (m *dbTaskManager) recordHistory(taskID string, from, to types.TaskStatus, reason string, operator string) {
	historyModel := &model.StateHistoryModel{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		FromState: string(from),
		ToState:   string(to),
		Reason:    reason,
		Operator:  operator,
		CreatedAt: time.Now(),
	}
	_ = m.historyRepo.Save(historyModel)
}

// emit 推送事件到事件处理器
func (m *dbTaskManager) emit(taskID string, eventType string, payload interface{}) {
	if m.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = m.events.Handle(&types.Event{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Type:      eventType,
		Data:      data,
		CreatedAt: time.Now(),
	})
}
