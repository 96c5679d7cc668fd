package integration

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/taskqueue-gin/internal/statemachine"
	"github.com/mautops/taskqueue-gin/internal/types"
	"gorm.io/gorm"
)

// WorkflowManager 开发流程管理器接口
// 所有操作都作用在任务附带的开发流程上
type WorkflowManager interface {
	AdvancePhase(taskID string, operator string) (*types.Task, error)
	FailWorkflow(taskID string, reason string, operator string) (*types.Task, error)
	SetTechnicalDocumentation(taskID string, path string) (*types.Task, error)
	SetTestCoverage(taskID string, percentage float64) (*types.Task, error)
	AddAIReviewReport(taskID string, report *types.AIReviewReport) (*types.Task, error)
}

// dbWorkflowManager 基于数据库的开发流程管理器
type dbWorkflowManager struct {
	tasks        *dbTaskManager
	stateMachine *statemachine.WorkflowStateMachine
}

// NewWorkflowManager 创建开发流程管理器
// tasks 必须是 NewTaskManager 创建的实例,两个管理器共享任务锁
func NewWorkflowManager(db *gorm.DB, tasks TaskManager, gates statemachine.WorkflowGateConfig) WorkflowManager {
	return &dbWorkflowManager{
		tasks:        tasks.(*dbTaskManager),
		stateMachine: statemachine.NewWorkflowStateMachine(gates),
	}
}

// AdvancePhase 推进开发流程到下一阶段
func (m *dbWorkflowManager) AdvancePhase(taskID string, operator string) (*types.Task, error) {
	return m.withWorkflow(taskID, func(tsk *types.Task) error {
		from := tsk.DevelopmentWorkflow.Status
		if err := m.stateMachine.Advance(tsk.DevelopmentWorkflow); err != nil {
			return err
		}
		m.tasks.recordHistory(taskID, types.TaskStatus(from),
			types.TaskStatus(tsk.DevelopmentWorkflow.Status), "workflow phase advanced", operator)
		m.emitAdvanced(tsk)
		return nil
	})
}

// FailWorkflow 将开发流程显式置为 failed
func (m *dbWorkflowManager) FailWorkflow(taskID string, reason string, operator string) (*types.Task, error) {
	return m.withWorkflow(taskID, func(tsk *types.Task) error {
		from := tsk.DevelopmentWorkflow.Status
		if err := m.stateMachine.Fail(tsk.DevelopmentWorkflow); err != nil {
			return err
		}
		m.tasks.recordHistory(taskID, types.TaskStatus(from),
			types.TaskStatus(types.PhaseFailed), reason, operator)
		m.emitAdvanced(tsk)
		return nil
	})
}

// SetTechnicalDocumentation 设置技术文档路径
// 只在 planning 阶段允许,其余阶段返回 WrongPhase
func (m *dbWorkflowManager) SetTechnicalDocumentation(taskID string, path string) (*types.Task, error) {
	if path == "" {
		return nil, types.NewError(types.KindValidation, "documentation path is required")
	}
	return m.withWorkflow(taskID, func(tsk *types.Task) error {
		wf := tsk.DevelopmentWorkflow
		if wf.Status != types.PhasePlanning {
			return types.NewError(types.KindWrongPhase,
				"documentation path can only be set during planning, workflow is in %q", wf.Status)
		}
		wf.TechnicalDocumentationPath = path
		return nil
	})
}

// SetTestCoverage 记录测试覆盖率
// 只在 testing 阶段允许;取值为百分比,范围 [0, 100]
func (m *dbWorkflowManager) SetTestCoverage(taskID string, percentage float64) (*types.Task, error) {
	if percentage < 0 || percentage > 100 {
		return nil, types.NewError(types.KindInvalidCoverageValue,
			"coverage %.2f is out of range [0, 100]", percentage)
	}
	return m.withWorkflow(taskID, func(tsk *types.Task) error {
		wf := tsk.DevelopmentWorkflow
		if wf.Status != types.PhaseTesting {
			return types.NewError(types.KindWrongPhase,
				"test coverage can only be set during testing, workflow is in %q", wf.Status)
		}
		wf.TestCoveragePercentage = &percentage
		return nil
	})
}

// AddAIReviewReport 添加 AI 评审报告
// 只在 ai_review 阶段允许;同一模型多次提交时保留全部报告,门禁按模型去重
func (m *dbWorkflowManager) AddAIReviewReport(taskID string, report *types.AIReviewReport) (*types.Task, error) {
	if report == nil || report.ModelName == "" {
		return nil, types.NewError(types.KindValidation, "review model_name is required")
	}
	if report.Score < 0 || report.Score > 1 {
		return nil, types.NewError(types.KindValidation,
			"review score %.2f is out of range [0, 1]", report.Score)
	}
	return m.withWorkflow(taskID, func(tsk *types.Task) error {
		wf := tsk.DevelopmentWorkflow
		if wf.Status != types.PhaseAIReview {
			return types.NewError(types.KindWrongPhase,
				"review reports can only be added during ai_review, workflow is in %q", wf.Status)
		}
		if report.CreatedAt.IsZero() {
			report.CreatedAt = time.Now()
		}
		wf.AIReviewReports = append(wf.AIReviewReports, report)
		return nil
	})
}

// withWorkflow 在任务锁内加载任务,校验流程存在,执行修改并保存
func (m *dbWorkflowManager) withWorkflow(taskID string, fn func(tsk *types.Task) error) (*types.Task, error) {
	mu := m.tasks.lockFor(taskID)
	mu.Lock()
	defer mu.Unlock()

	tsk, err := m.tasks.Get(taskID)
	if err != nil {
		return nil, err
	}
	if tsk.DevelopmentWorkflow == nil {
		return nil, types.NewError(types.KindNoWorkflowAttached,
			"task %q has no development workflow attached", taskID)
	}

	if err := fn(tsk); err != nil {
		return nil, err
	}

	tsk.UpdatedAt = time.Now()
	if err := m.tasks.save(tsk); err != nil {
		return nil, err
	}
	return tsk, nil
}

// emitAdvanced 推送流程推进事件
func (m *dbWorkflowManager) emitAdvanced(tsk *types.Task) {
	if m.tasks.events == nil {
		return
	}
	data, err := json.Marshal(tsk)
	if err != nil {
		return
	}
	_ = m.tasks.events.Handle(&types.Event{
		ID:        uuid.New().String(),
		TaskID:    tsk.ID,
		Type:      types.EventWorkflowAdvanced,
		Data:      data,
		CreatedAt: time.Now(),
	})
}
