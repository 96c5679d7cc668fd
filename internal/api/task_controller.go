package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/taskqueue-gin/internal/service"
	"github.com/mautops/taskqueue-gin/internal/utils"
)

// TaskController 任务控制器
type TaskController struct {
	taskService service.TaskService
}

// NewTaskController 创建任务控制器
func NewTaskController(taskService service.TaskService) *TaskController {
	return &TaskController{
		taskService: taskService,
	}
}

// validateTaskID 验证任务 ID 并返回错误响应（如果无效）
func (c *TaskController) validateTaskID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid task ID", err.Error())
		return false
	}
	return true
}

// Create 创建任务
// @Summary      创建任务
// @Description  创建新任务,支持依赖、优先级、重试与超时配置
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateTaskRequest true "任务信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks [post]
func (c *TaskController) Create(ctx *gin.Context) {
	var req service.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
		return
	}

	task, err := c.taskService.Create(ctx.Request.Context(), &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Created(ctx, task)
}

// Get 获取任务
// @Summary      获取任务详情
// @Description  根据 ID 获取任务详情,包含结果与状态历史
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
func (c *TaskController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	task, err := c.taskService.Get(id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, task)
}

// List 查询任务列表
// @Summary      查询任务列表
// @Description  按状态、项目、优先级过滤任务
// @Tags         任务管理
// @Produce      json
// @Param        status query string false "任务状态"
// @Param        project_id query string false "项目 ID"
// @Param        priority query string false "优先级"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /tasks [get]
func (c *TaskController) List(ctx *gin.Context) {
	var req service.ListTasksRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid query", err.Error())
		return
	}

	tasks, err := c.taskService.List(&req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, tasks)
}

// Update 更新任务
// @Summary      更新任务
// @Description  更新任务的名称、命令、描述或依赖
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body service.UpdateTaskRequest true "更新内容"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id} [put]
func (c *TaskController) Update(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	var req service.UpdateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
		return
	}

	task, err := c.taskService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, task)
}

// Delete 删除任务
// @Summary      删除任务
// @Description  删除任务,运行中的任务必须先取消
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id} [delete]
func (c *TaskController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	if err := c.taskService.Delete(ctx.Request.Context(), id); err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// CancelRequest 取消任务请求
// @Description 取消任务的请求参数
type CancelRequest struct {
	Reason string `json:"reason" example:"no longer needed"` // 取消原因
}

// Cancel 取消任务
// @Summary      取消任务
// @Description  取消任意非终态的任务,运行中的任务会被中断
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body CancelRequest false "取消原因"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/cancel [post]
func (c *TaskController) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	var req CancelRequest
	_ = ctx.ShouldBindJSON(&req)

	task, err := c.taskService.Cancel(ctx.Request.Context(), id, req.Reason)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, task)
}

// RetryRequest 重试任务请求
// @Description 重试任务的请求参数
type RetryRequest struct {
	ResetRetryCount bool `json:"reset_retry_count" example:"true"` // 是否重置重试次数
}

// Retry 重试任务
// @Summary      重试失败的任务
// @Description  将失败的任务重新入队
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body RetryRequest false "重试选项"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/retry [post]
func (c *TaskController) Retry(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	var req RetryRequest
	_ = ctx.ShouldBindJSON(&req)

	task, err := c.taskService.Retry(ctx.Request.Context(), id, req.ResetRetryCount)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, task)
}

// SetPriorityRequest 调整优先级请求
// @Description 调整任务优先级的请求参数
type SetPriorityRequest struct {
	Priority string `json:"priority" example:"high" binding:"required"` // 优先级: low/normal/high/critical
}

// SetPriority 调整任务优先级
// @Summary      调整任务优先级
// @Description  调整非终态任务的调度优先级
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body SetPriorityRequest true "优先级"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/priority [put]
func (c *TaskController) SetPriority(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	var req SetPriorityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
		return
	}

	task, err := c.taskService.SetPriority(ctx.Request.Context(), id, req.Priority)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, task)
}

// GetResult 获取任务执行结果
// @Summary      获取任务执行结果
// @Description  返回任务的执行结果,未到终态时 result 为空
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id}/result [get]
func (c *TaskController) GetResult(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	task, err := c.taskService.Get(id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, gin.H{
		"id":     task.ID,
		"status": task.Status,
		"result": task.Result,
	})
}

// GetHistory 获取任务状态历史
// @Summary      获取任务状态历史
// @Description  按时间升序返回任务的全部状态变更记录
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id}/history [get]
func (c *TaskController) GetHistory(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	entries, err := c.taskService.GetStateHistory(id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, entries)
}
