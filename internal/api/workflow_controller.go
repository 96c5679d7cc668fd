package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/taskqueue-gin/internal/service"
	"github.com/mautops/taskqueue-gin/internal/utils"
)

// WorkflowController 开发流程控制器
// 操作任务附带的 5 阶段开发流程
type WorkflowController struct {
	workflowService service.WorkflowService
}

// NewWorkflowController 创建开发流程控制器
func NewWorkflowController(workflowService service.WorkflowService) *WorkflowController {
	return &WorkflowController{
		workflowService: workflowService,
	}
}

// validateTaskID 验证任务 ID
func (c *WorkflowController) validateTaskID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid task ID", err.Error())
		return false
	}
	return true
}

// AdvancePhase 推进开发流程
// @Summary      推进开发流程到下一阶段
// @Description  校验当前阶段出口条件后推进,条件不满足返回 409 并携带缺失项
// @Tags         开发流程
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/workflow/advance [post]
func (c *WorkflowController) AdvancePhase(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	task, err := c.workflowService.AdvancePhase(ctx.Request.Context(), id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, task)
}

// FailWorkflowRequest 流程失败请求
// @Description 将开发流程置为 failed 的请求参数
type FailWorkflowRequest struct {
	Reason string `json:"reason" example:"设计评审未通过"` // 失败原因
}

// FailWorkflow 将开发流程置为失败
// @Summary      终止开发流程
// @Description  将任意非终态阶段的流程显式置为 failed
// @Tags         开发流程
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body FailWorkflowRequest false "失败原因"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/workflow/fail [post]
func (c *WorkflowController) FailWorkflow(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	var req FailWorkflowRequest
	_ = ctx.ShouldBindJSON(&req)

	task, err := c.workflowService.FailWorkflow(ctx.Request.Context(), id, req.Reason)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, task)
}

// SetDocumentation 设置技术文档路径
// @Summary      设置技术文档路径
// @Description  仅在 planning 阶段有效,是离开 planning 的前置条件
// @Tags         开发流程
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body service.SetDocumentationRequest true "文档路径"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/workflow/documentation [put]
func (c *WorkflowController) SetDocumentation(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	var req service.SetDocumentationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
		return
	}

	task, err := c.workflowService.SetTechnicalDocumentation(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, task)
}

// SetCoverage 记录测试覆盖率
// @Summary      记录测试覆盖率
// @Description  仅在 testing 阶段有效,取值 0-100
// @Tags         开发流程
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body service.SetCoverageRequest true "覆盖率"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/workflow/coverage [put]
func (c *WorkflowController) SetCoverage(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	var req service.SetCoverageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
		return
	}

	task, err := c.workflowService.SetTestCoverage(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, task)
}

// AddReview 添加 AI 评审报告
// @Summary      添加 AI 评审报告
// @Description  仅在 ai_review 阶段有效,门禁要求 3 份不同模型的通过报告
// @Tags         开发流程
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body service.AddReviewRequest true "评审报告"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/workflow/reviews [post]
func (c *WorkflowController) AddReview(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	var req service.AddReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
		return
	}

	task, err := c.workflowService.AddAIReviewReport(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, task)
}
