package types

import (
	"encoding/json"
	"time"
)

// TaskStatus 任务执行状态
type TaskStatus string

const (
	TaskStatusPending                TaskStatus = "pending"
	TaskStatusWaitingForDependencies TaskStatus = "waiting_for_dependencies"
	TaskStatusRunning                TaskStatus = "running"
	TaskStatusCompleted              TaskStatus = "completed"
	TaskStatusFailed                 TaskStatus = "failed"
	TaskStatusCancelled              TaskStatus = "cancelled"
)

// IsTerminal 判断状态是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// IsValid 判断状态值是否合法
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusWaitingForDependencies, TaskStatusRunning,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskPriority 任务优先级,用于调度排序
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityNormal   TaskPriority = "normal"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// Weight 优先级权重,数值越大越先调度
func (p TaskPriority) Weight() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	}
	return -1
}

// IsValid 判断优先级值是否合法
func (p TaskPriority) IsValid() bool {
	return p.Weight() >= 0
}

// DependencyCondition 依赖条件,描述前置任务需要达到的终态
type DependencyCondition string

const (
	// ConditionSuccess 前置任务必须成功完成
	ConditionSuccess DependencyCondition = "success"
	// ConditionFailure 前置任务必须失败
	ConditionFailure DependencyCondition = "failure"
	// ConditionCompletion 前置任务达到任意终态即可
	ConditionCompletion DependencyCondition = "completion"
)

// IsValid 判断依赖条件是否合法
func (c DependencyCondition) IsValid() bool {
	return c == ConditionSuccess || c == ConditionFailure || c == ConditionCompletion
}

// Satisfied 判断前置任务的状态是否满足条件
// 前置任务未达到终态时恒为 false
func (c DependencyCondition) Satisfied(status TaskStatus) bool {
	switch c {
	case ConditionSuccess:
		return status == TaskStatusCompleted
	case ConditionFailure:
		return status == TaskStatusFailed
	case ConditionCompletion:
		return status.IsTerminal()
	}
	return false
}

// Dependency 任务依赖项 (task_id, condition)
type Dependency struct {
	TaskID    string              `json:"task_id"`
	Condition DependencyCondition `json:"condition"`
}

// TaskResult 任务执行结果,终态后恰好填充一个分支
type TaskResult struct {
	Success   *SuccessResult   `json:"success,omitempty"`
	Failure   *FailureResult   `json:"failure,omitempty"`
	Cancelled *CancelledResult `json:"cancelled,omitempty"`
}

// SuccessResult 成功结果
type SuccessResult struct {
	Output    string            `json:"output"`
	Artifacts []string          `json:"artifacts,omitempty"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// FailureResult 失败结果
type FailureResult struct {
	Error    string `json:"error"`
	ExitCode int    `json:"exit_code"`
	Logs     string `json:"logs,omitempty"`
}

// CancelledResult 取消结果
type CancelledResult struct {
	Reason string `json:"reason"`
	// LateOutcome 记录取消后才到达的执行结果(仅审计用途)
	LateOutcome string `json:"late_outcome,omitempty"`
}

// Task 任务实体
type Task struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`

	Priority     TaskPriority `json:"priority"`
	Status       TaskStatus   `json:"status"`
	Dependencies []Dependency `json:"dependencies,omitempty"`

	// DevelopmentWorkflow 可选的质量门禁流程,存在时任务受 5 阶段流程约束
	DevelopmentWorkflow *DevelopmentWorkflow `json:"development_workflow,omitempty"`

	// 执行策略
	RetryAttempts    int           `json:"retry_attempts"`
	RetriesRemaining int           `json:"retries_remaining"`
	RetryDelay       time.Duration `json:"retry_delay"`
	Timeout          time.Duration `json:"timeout"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Result *TaskResult `json:"result,omitempty"`

	// CancelRequestedAt 取消请求到达时间,用于与执行完成消息的竞争仲裁
	CancelRequestedAt *time.Time `json:"cancel_requested_at,omitempty"`

	StateHistory []*StateChange `json:"state_history,omitempty"`
}

// Clone 深拷贝任务对象
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Dependencies != nil {
		cp.Dependencies = append([]Dependency(nil), t.Dependencies...)
	}
	if t.StateHistory != nil {
		cp.StateHistory = append([]*StateChange(nil), t.StateHistory...)
	}
	if t.DevelopmentWorkflow != nil {
		wf := *t.DevelopmentWorkflow
		if t.DevelopmentWorkflow.AIReviewReports != nil {
			wf.AIReviewReports = append([]*AIReviewReport(nil), t.DevelopmentWorkflow.AIReviewReports...)
		}
		cp.DevelopmentWorkflow = &wf
	}
	return &cp
}

// StateChange 状态变更记录
type StateChange struct {
	From   TaskStatus `json:"from"`
	To     TaskStatus `json:"to"`
	Reason string     `json:"reason"`
	Time   time.Time  `json:"time"`
}

// WorkflowPhase 开发流程阶段,严格顺序推进
type WorkflowPhase string

const (
	PhaseNotStarted       WorkflowPhase = "not_started"
	PhasePlanning         WorkflowPhase = "planning"
	PhaseInImplementation WorkflowPhase = "in_implementation"
	PhaseTestCreation     WorkflowPhase = "test_creation"
	PhaseTesting          WorkflowPhase = "testing"
	PhaseAIReview         WorkflowPhase = "ai_review"
	PhaseCompleted        WorkflowPhase = "completed"
	PhaseFailed           WorkflowPhase = "failed"
)

// PhaseOrder 阶段的固定顺序(不含 failed 旁路)
var PhaseOrder = []WorkflowPhase{
	PhaseNotStarted,
	PhasePlanning,
	PhaseInImplementation,
	PhaseTestCreation,
	PhaseTesting,
	PhaseAIReview,
	PhaseCompleted,
}

// Index 返回阶段在固定顺序中的下标,failed 返回 -1
func (p WorkflowPhase) Index() int {
	for i, phase := range PhaseOrder {
		if phase == p {
			return i
		}
	}
	return -1
}

// IsTerminal 判断阶段是否为终态
func (p WorkflowPhase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// AIReviewReport AI 评审报告
type AIReviewReport struct {
	ModelName   string    `json:"model_name"`
	ReviewType  string    `json:"review_type"`
	Content     string    `json:"content"`
	Score       float64   `json:"score"`
	Approved    bool      `json:"approved"`
	Suggestions []string  `json:"suggestions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DevelopmentWorkflow 附加在单个任务上的开发流程状态
type DevelopmentWorkflow struct {
	Status WorkflowPhase `json:"workflow_status"`

	// TechnicalDocumentationPath 仅在 planning 阶段设置,是离开 planning 的前置条件
	TechnicalDocumentationPath string `json:"technical_documentation_path,omitempty"`

	// TestCoveragePercentage 仅在 testing 阶段设置,取值 0-100
	TestCoveragePercentage *float64 `json:"test_coverage_percentage,omitempty"`

	AIReviewReports []*AIReviewReport `json:"ai_review_reports,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusTesting    ProjectStatus = "testing"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
	ProjectStatusFailed     ProjectStatus = "failed"
)

// IsValid 判断项目状态值是否合法
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusInProgress, ProjectStatusTesting,
		ProjectStatusCompleted, ProjectStatusCancelled, ProjectStatusFailed:
		return true
	}
	return false
}

// Project 项目实体,通过 Task.ProjectID 弱关联任务
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// WorkflowRunStatus 编排流水线状态
type WorkflowRunStatus string

const (
	RunStatusPending          WorkflowRunStatus = "pending"
	RunStatusWaitingApproval  WorkflowRunStatus = "waiting_approval"
	RunStatusRunning          WorkflowRunStatus = "running"
	RunStatusCompleted        WorkflowRunStatus = "completed"
	RunStatusFailed           WorkflowRunStatus = "failed"
	RunStatusCancelled        WorkflowRunStatus = "cancelled"
)

// WorkflowRunStep 流水线步骤定义
type WorkflowRunStep struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	TaskID  string `json:"task_id,omitempty"` // 创建流水线后填充
}

// WorkflowRun 多任务编排流水线(CI/CD 风格)
// 注意: 与附加在单个任务上的 DevelopmentWorkflow 是两个不同的实体
type WorkflowRun struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Tasks             []*WorkflowRunStep  `json:"tasks"`
	Dependencies      map[string][]string `json:"dependencies,omitempty"` // 步骤名 -> 前置步骤名
	ParallelExecution bool                `json:"parallel_execution"`
	ManualApproval    bool                `json:"manual_approval"`
	Status            WorkflowRunStatus   `json:"status"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	ApprovedAt        *time.Time          `json:"approved_at,omitempty"`
}

// Event 任务状态变更事件,推送给下游消费者(WebSocket 等)
type Event struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"task_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// 事件类型
const (
	EventTaskCreated      = "task_created"
	EventTaskStateChanged = "task_state_changed"
	EventTaskDispatched   = "task_dispatched"
	EventWorkflowAdvanced = "workflow_advanced"
)
