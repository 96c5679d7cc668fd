package service

import (
	"context"

	"github.com/mautops/taskqueue-gin/internal/integration"
	"github.com/mautops/taskqueue-gin/internal/types"
)

// WorkflowService 开发流程服务接口
// 作用在任务附带的开发流程上
type WorkflowService interface {
	AdvancePhase(ctx context.Context, taskID string) (*types.Task, error)
	FailWorkflow(ctx context.Context, taskID string, reason string) (*types.Task, error)
	SetTechnicalDocumentation(ctx context.Context, taskID string, req *SetDocumentationRequest) (*types.Task, error)
	SetTestCoverage(ctx context.Context, taskID string, req *SetCoverageRequest) (*types.Task, error)
	AddAIReviewReport(ctx context.Context, taskID string, req *AddReviewRequest) (*types.Task, error)
}

// SetDocumentationRequest 设置技术文档路径请求
// @Description 设置技术文档路径,仅 planning 阶段有效
type SetDocumentationRequest struct {
	Path string `json:"path" example:"docs/design.md" binding:"required"` // 文档路径
}

// SetCoverageRequest 设置测试覆盖率请求
// @Description 记录测试覆盖率,仅 testing 阶段有效
type SetCoverageRequest struct {
	Percentage float64 `json:"percentage" example:"92.5"` // 覆盖率百分比,0-100
}

// AddReviewRequest 添加 AI 评审报告请求
// @Description 添加评审报告,仅 ai_review 阶段有效
type AddReviewRequest struct {
	ModelName   string   `json:"model_name" example:"gpt-4o" binding:"required"` // 评审模型名称
	ReviewType  string   `json:"review_type" example:"code_review"`              // 评审类型
	Content     string   `json:"content" example:"代码结构清晰"`                       // 评审内容
	Score       float64  `json:"score" example:"0.9"`                            // 评分 0-1
	Approved    bool     `json:"approved" example:"true"`                        // 是否通过
	Suggestions []string `json:"suggestions"`                                    // 改进建议
}

type workflowService struct {
	workflowMgr integration.WorkflowManager
}

// NewWorkflowService 创建开发流程服务
func NewWorkflowService(workflowMgr integration.WorkflowManager) WorkflowService {
	return &workflowService{workflowMgr: workflowMgr}
}

// AdvancePhase 推进开发流程到下一阶段
func (s *workflowService) AdvancePhase(ctx context.Context, taskID string) (*types.Task, error) {
	return s.workflowMgr.AdvancePhase(taskID, "api")
}

// FailWorkflow 将开发流程置为 failed
func (s *workflowService) FailWorkflow(ctx context.Context, taskID string, reason string) (*types.Task, error) {
	if reason == "" {
		reason = "workflow failed by operator"
	}
	return s.workflowMgr.FailWorkflow(taskID, reason, "api")
}

// SetTechnicalDocumentation 设置技术文档路径
func (s *workflowService) SetTechnicalDocumentation(ctx context.Context, taskID string, req *SetDocumentationRequest) (*types.Task, error) {
	return s.workflowMgr.SetTechnicalDocumentation(taskID, req.Path)
}

// SetTestCoverage 记录测试覆盖率
func (s *workflowService) SetTestCoverage(ctx context.Context, taskID string, req *SetCoverageRequest) (*types.Task, error) {
	return s.workflowMgr.SetTestCoverage(taskID, req.Percentage)
}

// AddAIReviewReport 添加 AI 评审报告
func (s *workflowService) AddAIReviewReport(ctx context.Context, taskID string, req *AddReviewRequest) (*types.Task, error) {
	report := &types.AIReviewReport{
		ModelName:   req.ModelName,
		ReviewType:  req.ReviewType,
		Content:     req.Content,
		Score:       req.Score,
		Approved:    req.Approved,
		Suggestions: req.Suggestions,
	}
	return s.workflowMgr.AddAIReviewReport(taskID, report)
}
