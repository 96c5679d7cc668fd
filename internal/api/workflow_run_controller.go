package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/taskqueue-gin/internal/service"
	"github.com/mautops/taskqueue-gin/internal/utils"
)

// WorkflowRunController 编排流水线控制器
type WorkflowRunController struct {
	runService service.WorkflowRunService
}

// NewWorkflowRunController 创建流水线控制器
func NewWorkflowRunController(runService service.WorkflowRunService) *WorkflowRunController {
	return &WorkflowRunController{
		runService: runService,
	}
}

// validateRunID 验证流水线 ID
func (c *WorkflowRunController) validateRunID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid workflow run ID", err.Error())
		return false
	}
	return true
}

// Create 创建流水线
// @Summary      创建编排流水线
// @Description  把一组步骤物化为带依赖边的任务;manual_approval 为 true 时等待审批
// @Tags         流水线
// @Accept       json
// @Produce      json
// @Param        request body service.CreateWorkflowRunRequest true "流水线定义"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /workflows [post]
func (c *WorkflowRunController) Create(ctx *gin.Context) {
	var req service.CreateWorkflowRunRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
		return
	}

	run, err := c.runService.Create(ctx.Request.Context(), &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Created(ctx, run)
}

// Get 获取流水线详情
// @Summary      获取流水线详情
// @Tags         流水线
// @Produce      json
// @Param        id path string true "流水线 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id} [get]
func (c *WorkflowRunController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRunID(ctx, id) {
		return
	}

	run, err := c.runService.Get(id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, run)
}

// List 查询流水线列表
// @Summary      查询流水线列表
// @Tags         流水线
// @Produce      json
// @Success      200  {object}  Response
// @Router       /workflows [get]
func (c *WorkflowRunController) List(ctx *gin.Context) {
	runs, err := c.runService.List()
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, runs)
}

// Approve 审批流水线
// @Summary      审批流水线
// @Description  审批通过后物化步骤任务并开始执行
// @Tags         流水线
// @Produce      json
// @Param        id path string true "流水线 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /workflows/{id}/approve [post]
func (c *WorkflowRunController) Approve(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRunID(ctx, id) {
		return
	}

	run, err := c.runService.Approve(ctx.Request.Context(), id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, run)
}

// Cancel 取消流水线
// @Summary      取消流水线
// @Description  取消流水线及其所有未终态的步骤任务
// @Tags         流水线
// @Accept       json
// @Produce      json
// @Param        id path string true "流水线 ID"
// @Param        request body CancelRequest false "取消原因"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /workflows/{id}/cancel [post]
func (c *WorkflowRunController) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRunID(ctx, id) {
		return
	}

	var req CancelRequest
	_ = ctx.ShouldBindJSON(&req)

	run, err := c.runService.Cancel(ctx.Request.Context(), id, req.Reason)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, run)
}

// Status 查询流水线聚合状态
// @Summary      查询流水线状态
// @Description  返回流水线聚合状态及各步骤任务状态
// @Tags         流水线
// @Produce      json
// @Param        id path string true "流水线 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id}/status [get]
func (c *WorkflowRunController) Status(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRunID(ctx, id) {
		return
	}

	status, err := c.runService.Status(id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, status)
}

// UpdateStatusRequest 手动调整流水线状态请求
// @Description 调整流水线状态的请求参数
type UpdateStatusRequest struct {
	Status string `json:"status" example:"cancelled" binding:"required"` // 目标状态
}

// UpdateStatus 手动调整流水线状态
// @Summary      调整流水线状态
// @Description  手动覆盖流水线状态;cancelled 会同时取消步骤任务
// @Tags         流水线
// @Accept       json
// @Produce      json
// @Param        id path string true "流水线 ID"
// @Param        request body UpdateStatusRequest true "目标状态"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /workflows/{id}/status [put]
func (c *WorkflowRunController) UpdateStatus(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRunID(ctx, id) {
		return
	}

	var req UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
		return
	}

	run, err := c.runService.UpdateStatus(ctx.Request.Context(), id, req.Status)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, run)
}

// Result 查询流水线执行结果
// @Summary      查询流水线结果
// @Description  返回各步骤任务的执行结果
// @Tags         流水线
// @Produce      json
// @Param        id path string true "流水线 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id}/result [get]
func (c *WorkflowRunController) Result(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRunID(ctx, id) {
		return
	}

	result, err := c.runService.Result(id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, result)
}
