// Package mcp 提供 MCP (Model Context Protocol) 服务器,
// 把任务队列能力暴露为 AI 编码助手可调用的工具。
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mautops/taskqueue-gin/internal/service"
	"github.com/mautops/taskqueue-gin/internal/types"
)

// Server 包装服务层并暴露为 MCP 工具
type Server struct {
	server      *gomcp.Server
	taskSvc     service.TaskService
	workflowSvc service.WorkflowService
	projectSvc  service.ProjectService
	statsSvc    service.StatsService
}

// NewServer 创建 MCP 服务器
func NewServer(taskSvc service.TaskService, workflowSvc service.WorkflowService,
	projectSvc service.ProjectService, statsSvc service.StatsService, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		taskSvc:     taskSvc,
		workflowSvc: workflowSvc,
		projectSvc:  projectSvc,
		statsSvc:    statsSvc,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "taskqueue", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run 在给定传输上启动 MCP 服务器,阻塞直到客户端断开或 ctx 取消
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer 返回底层 mcp.Server,测试用
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- 工具输入/输出类型 ---

type dependencyInput struct {
	TaskID    string `json:"task_id" jsonschema:"required,ID of the prerequisite task"`
	Condition string `json:"condition,omitempty" jsonschema:"dependency condition: success (default) / failure / completion"`
}

type submitTaskInput struct {
	Name                      string            `json:"name" jsonschema:"required,task name"`
	Command                   string            `json:"command,omitempty" jsonschema:"shell command to execute"`
	Description               string            `json:"description,omitempty"`
	ProjectID                 string            `json:"project_id,omitempty"`
	Priority                  string            `json:"priority,omitempty" jsonschema:"low / normal (default) / high / critical"`
	Dependencies              []dependencyInput `json:"dependencies,omitempty"`
	EnableDevelopmentWorkflow bool              `json:"enable_development_workflow,omitempty" jsonschema:"attach the 5-phase development workflow"`
	RetryAttempts             int               `json:"retry_attempts,omitempty"`
	RetryDelaySeconds         int               `json:"retry_delay_seconds,omitempty"`
	TimeoutSeconds            int               `json:"timeout_seconds,omitempty"`
}

type updateTaskInput struct {
	TaskID       string            `json:"task_id" jsonschema:"required,the task identifier"`
	Name         *string           `json:"name,omitempty" jsonschema:"new task name"`
	Command      *string           `json:"command,omitempty" jsonschema:"new shell command"`
	Description  *string           `json:"description,omitempty"`
	Dependencies []dependencyInput `json:"dependencies,omitempty" jsonschema:"replacement dependency set"`
}

type taskIDInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task identifier"`
}

type taskOutput struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Status        string   `json:"status"`
	Priority      string   `json:"priority"`
	ProjectID     string   `json:"project_id,omitempty"`
	WorkflowPhase string   `json:"workflow_phase,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
	Created       string   `json:"created"`
	Updated       string   `json:"updated"`
}

type listTasksInput struct {
	Status    string `json:"status,omitempty" jsonschema:"filter by status (pending, waiting_for_dependencies, running, completed, failed, cancelled)"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"filter by project"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type cancelTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task identifier"`
	Reason string `json:"reason,omitempty" jsonschema:"cancellation reason"`
}

type retryTaskInput struct {
	TaskID          string `json:"task_id" jsonschema:"required,the task identifier"`
	ResetRetryCount bool   `json:"reset_retry_count,omitempty" jsonschema:"restore the original retry budget"`
}

type setPriorityInput struct {
	TaskID   string `json:"task_id" jsonschema:"required,the task identifier"`
	Priority string `json:"priority" jsonschema:"required,low / normal / high / critical"`
}

type messageOutput struct {
	Message string `json:"message"`
}

type createProjectInput struct {
	Name        string `json:"name" jsonschema:"required,project name"`
	Description string `json:"description,omitempty"`
}

type projectIDInput struct {
	ProjectID string `json:"project_id" jsonschema:"required,the project identifier"`
}

type projectOutput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Created     string `json:"created"`
}

type listProjectsInput struct{}

type listProjectsOutput struct {
	Projects []projectOutput `json:"projects"`
	Count    int             `json:"count"`
}

type workflowOutput struct {
	TaskID        string  `json:"task_id"`
	Phase         string  `json:"phase"`
	Documentation string  `json:"documentation,omitempty"`
	Coverage      float64 `json:"coverage,omitempty"`
	Reviews       int     `json:"reviews"`
}

type setDocumentationInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task identifier"`
	Path   string `json:"path" jsonschema:"required,path to the technical documentation"`
}

type setCoverageInput struct {
	TaskID     string  `json:"task_id" jsonschema:"required,the task identifier"`
	Percentage float64 `json:"percentage" jsonschema:"required,test coverage percentage 0-100"`
}

type addReviewInput struct {
	TaskID     string  `json:"task_id" jsonschema:"required,the task identifier"`
	ModelName  string  `json:"model_name" jsonschema:"required,name of the reviewing model"`
	ReviewType string  `json:"review_type,omitempty"`
	Content    string  `json:"content,omitempty"`
	Score      float64 `json:"score" jsonschema:"review score 0-1"`
	Approved   bool    `json:"approved"`
}

type statsInput struct{}

type statsOutput struct {
	TotalTasks         int64            `json:"total_tasks"`
	TasksByStatus      map[string]int64 `json:"tasks_by_status"`
	RunningTasks       int64            `json:"running_tasks"`
	MaxConcurrentTasks int              `json:"max_concurrent_tasks"`
}

// --- 工具注册 ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "submit_task",
		Description: "Submit a new task to the queue with optional dependencies, priority, retry policy and development workflow.",
	}, s.handleSubmitTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get task details by ID, including status, result and workflow phase.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks with optional status and project filters.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task",
		Description: "Update a non-terminal task's name, command, description or dependencies.",
	}, s.handleUpdateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "cancel_task",
		Description: "Cancel a task in any non-terminal state. Running tasks are interrupted.",
	}, s.handleCancelTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "retry_task",
		Description: "Re-queue a failed task, optionally restoring its retry budget.",
	}, s.handleRetryTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "set_task_priority",
		Description: "Change the scheduling priority of a non-terminal task.",
	}, s.handleSetPriority)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task. Running tasks must be cancelled first.",
	}, s.handleDeleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_project",
		Description: "Create a project to group related tasks.",
	}, s.handleCreateProject)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_project",
		Description: "Get project details by ID.",
	}, s.handleGetProject)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_projects",
		Description: "List all projects.",
	}, s.handleListProjects)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "advance_workflow_phase",
		Description: "Advance a task's development workflow to the next phase. Fails with the list of missing criteria when the current phase's exit gates are not met.",
	}, s.handleAdvancePhase)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "set_technical_documentation",
		Description: "Set the technical documentation path. Only valid during the planning phase.",
	}, s.handleSetDocumentation)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "set_test_coverage",
		Description: "Record the test coverage percentage (0-100). Only valid during the testing phase.",
	}, s.handleSetCoverage)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "add_ai_review_report",
		Description: "Add an AI review report. Only valid during the ai_review phase. Completion requires 3 approved reviews from distinct models with score >= 0.8.",
	}, s.handleAddReview)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_queue_stats",
		Description: "Get aggregate queue statistics: task counts per status and concurrency limits.",
	}, s.handleStats)
}

// --- 工具处理函数 ---

func (s *Server) handleSubmitTask(ctx context.Context, _ *gomcp.CallToolRequest, input submitTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.Name == "" {
		return errorResult("name is required"), taskOutput{}, nil
	}

	req := &service.CreateTaskRequest{
		Name:                      input.Name,
		Command:                   input.Command,
		Description:               input.Description,
		ProjectID:                 input.ProjectID,
		Priority:                  input.Priority,
		EnableDevelopmentWorkflow: input.EnableDevelopmentWorkflow,
		RetryAttempts:             input.RetryAttempts,
		RetryDelaySeconds:         input.RetryDelaySeconds,
		TimeoutSeconds:            input.TimeoutSeconds,
	}
	for _, dep := range input.Dependencies {
		req.Dependencies = append(req.Dependencies, service.DependencyRequest{
			TaskID:    dep.TaskID,
			Condition: dep.Condition,
		})
	}

	tsk, err := s.taskSvc.Create(ctx, req)
	if err != nil {
		return errorResult(fmt.Sprintf("submitting task: %s", err)), taskOutput{}, nil
	}
	return nil, taskToOutput(tsk), nil
}

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	tsk, err := s.taskSvc.Get(input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(tsk), nil
}

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	tasks, err := s.taskSvc.List(&service.ListTasksRequest{
		Status:    input.Status,
		ProjectID: input.ProjectID,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}

	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleUpdateTask(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	req := &service.UpdateTaskRequest{
		Name:        input.Name,
		Command:     input.Command,
		Description: input.Description,
	}
	for _, dep := range input.Dependencies {
		req.Dependencies = append(req.Dependencies, service.DependencyRequest{
			TaskID:    dep.TaskID,
			Condition: dep.Condition,
		})
	}

	tsk, err := s.taskSvc.Update(ctx, input.TaskID, req)
	if err != nil {
		return errorResult(fmt.Sprintf("updating task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(tsk), nil
}

func (s *Server) handleCancelTask(ctx context.Context, _ *gomcp.CallToolRequest, input cancelTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	tsk, err := s.taskSvc.Cancel(ctx, input.TaskID, input.Reason)
	if err != nil {
		return errorResult(fmt.Sprintf("cancelling task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(tsk), nil
}

func (s *Server) handleRetryTask(ctx context.Context, _ *gomcp.CallToolRequest, input retryTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	tsk, err := s.taskSvc.Retry(ctx, input.TaskID, input.ResetRetryCount)
	if err != nil {
		return errorResult(fmt.Sprintf("retrying task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(tsk), nil
}

func (s *Server) handleSetPriority(ctx context.Context, _ *gomcp.CallToolRequest, input setPriorityInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	if input.Priority == "" {
		return errorResult("priority is required"), taskOutput{}, nil
	}

	tsk, err := s.taskSvc.SetPriority(ctx, input.TaskID, input.Priority)
	if err != nil {
		return errorResult(fmt.Sprintf("setting priority of task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(tsk), nil
}

func (s *Server) handleDeleteTask(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), messageOutput{}, nil
	}

	if err := s.taskSvc.Delete(ctx, input.TaskID); err != nil {
		return errorResult(fmt.Sprintf("deleting task %s: %s", input.TaskID, err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s deleted", input.TaskID)}, nil
}

func (s *Server) handleCreateProject(ctx context.Context, _ *gomcp.CallToolRequest, input createProjectInput) (*gomcp.CallToolResult, projectOutput, error) {
	if input.Name == "" {
		return errorResult("name is required"), projectOutput{}, nil
	}

	project, err := s.projectSvc.Create(ctx, &service.CreateProjectRequest{
		Name:        input.Name,
		Description: input.Description,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("creating project: %s", err)), projectOutput{}, nil
	}
	return nil, projectToOutput(project), nil
}

func (s *Server) handleGetProject(_ context.Context, _ *gomcp.CallToolRequest, input projectIDInput) (*gomcp.CallToolResult, projectOutput, error) {
	if input.ProjectID == "" {
		return errorResult("project_id is required"), projectOutput{}, nil
	}

	project, err := s.projectSvc.Get(input.ProjectID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting project %s: %s", input.ProjectID, err)), projectOutput{}, nil
	}
	return nil, projectToOutput(project), nil
}

func (s *Server) handleListProjects(_ context.Context, _ *gomcp.CallToolRequest, _ listProjectsInput) (*gomcp.CallToolResult, listProjectsOutput, error) {
	projects, err := s.projectSvc.List()
	if err != nil {
		return errorResult(fmt.Sprintf("listing projects: %s", err)), listProjectsOutput{}, nil
	}

	out := listProjectsOutput{
		Projects: make([]projectOutput, len(projects)),
		Count:    len(projects),
	}
	for i, p := range projects {
		out.Projects[i] = projectToOutput(p)
	}
	return nil, out, nil
}

func (s *Server) handleAdvancePhase(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, workflowOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), workflowOutput{}, nil
	}

	tsk, err := s.workflowSvc.AdvancePhase(ctx, input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("advancing workflow of task %s: %s", input.TaskID, err)), workflowOutput{}, nil
	}
	return nil, workflowToOutput(tsk), nil
}

func (s *Server) handleSetDocumentation(ctx context.Context, _ *gomcp.CallToolRequest, input setDocumentationInput) (*gomcp.CallToolResult, workflowOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), workflowOutput{}, nil
	}
	if input.Path == "" {
		return errorResult("path is required"), workflowOutput{}, nil
	}

	tsk, err := s.workflowSvc.SetTechnicalDocumentation(ctx, input.TaskID, &service.SetDocumentationRequest{Path: input.Path})
	if err != nil {
		return errorResult(fmt.Sprintf("setting documentation of task %s: %s", input.TaskID, err)), workflowOutput{}, nil
	}
	return nil, workflowToOutput(tsk), nil
}

func (s *Server) handleSetCoverage(ctx context.Context, _ *gomcp.CallToolRequest, input setCoverageInput) (*gomcp.CallToolResult, workflowOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), workflowOutput{}, nil
	}

	tsk, err := s.workflowSvc.SetTestCoverage(ctx, input.TaskID, &service.SetCoverageRequest{Percentage: input.Percentage})
	if err != nil {
		return errorResult(fmt.Sprintf("setting coverage of task %s: %s", input.TaskID, err)), workflowOutput{}, nil
	}
	return nil, workflowToOutput(tsk), nil
}

func (s *Server) handleAddReview(ctx context.Context, _ *gomcp.CallToolRequest, input addReviewInput) (*gomcp.CallToolResult, workflowOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), workflowOutput{}, nil
	}
	if input.ModelName == "" {
		return errorResult("model_name is required"), workflowOutput{}, nil
	}

	tsk, err := s.workflowSvc.AddAIReviewReport(ctx, input.TaskID, &service.AddReviewRequest{
		ModelName:  input.ModelName,
		ReviewType: input.ReviewType,
		Content:    input.Content,
		Score:      input.Score,
		Approved:   input.Approved,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("adding review to task %s: %s", input.TaskID, err)), workflowOutput{}, nil
	}
	return nil, workflowToOutput(tsk), nil
}

func (s *Server) handleStats(_ context.Context, _ *gomcp.CallToolRequest, _ statsInput) (*gomcp.CallToolResult, statsOutput, error) {
	stats, err := s.statsSvc.Stats()
	if err != nil {
		return errorResult(fmt.Sprintf("getting stats: %s", err)), statsOutput{}, nil
	}

	return nil, statsOutput{
		TotalTasks:         stats.TotalTasks,
		TasksByStatus:      stats.TasksByStatus,
		RunningTasks:       stats.RunningTasks,
		MaxConcurrentTasks: stats.MaxConcurrentTasks,
	}, nil
}

// --- 辅助函数 ---

func taskToOutput(t *types.Task) taskOutput {
	out := taskOutput{
		ID:        t.ID,
		Name:      t.Name,
		Status:    string(t.Status),
		Priority:  string(t.Priority),
		ProjectID: t.ProjectID,
		Created:   t.CreatedAt.Format(time.RFC3339),
		Updated:   t.UpdatedAt.Format(time.RFC3339),
	}
	if t.DevelopmentWorkflow != nil {
		out.WorkflowPhase = string(t.DevelopmentWorkflow.Status)
	}
	for _, dep := range t.Dependencies {
		out.Dependencies = append(out.Dependencies, dep.TaskID)
	}
	return out
}

func projectToOutput(p *types.Project) projectOutput {
	return projectOutput{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		Created:     p.CreatedAt.Format(time.RFC3339),
	}
}

func workflowToOutput(t *types.Task) workflowOutput {
	out := workflowOutput{TaskID: t.ID}
	if wf := t.DevelopmentWorkflow; wf != nil {
		out.Phase = string(wf.Status)
		out.Documentation = wf.TechnicalDocumentationPath
		if wf.TestCoveragePercentage != nil {
			out.Coverage = *wf.TestCoveragePercentage
		}
		out.Reviews = len(wf.AIReviewReports)
	}
	return out
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
