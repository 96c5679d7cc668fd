package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/taskqueue-gin/internal/service"
	"github.com/mautops/taskqueue-gin/internal/utils"
)

// ProjectController 项目控制器
type ProjectController struct {
	projectService service.ProjectService
}

// NewProjectController 创建项目控制器
func NewProjectController(projectService service.ProjectService) *ProjectController {
	return &ProjectController{
		projectService: projectService,
	}
}

// validateProjectID 验证项目 ID
func (c *ProjectController) validateProjectID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateResourceID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid project ID", err.Error())
		return false
	}
	return true
}

// Create 创建项目
// @Summary      创建项目
// @Description  创建新项目
// @Tags         项目管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateProjectRequest true "项目信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /projects [post]
func (c *ProjectController) Create(ctx *gin.Context) {
	var req service.CreateProjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
		return
	}

	project, err := c.projectService.Create(ctx.Request.Context(), &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Created(ctx, project)
}

// Get 获取项目详情
// @Summary      获取项目详情
// @Tags         项目管理
// @Produce      json
// @Param        id path string true "项目 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /projects/{id} [get]
func (c *ProjectController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateProjectID(ctx, id) {
		return
	}

	project, err := c.projectService.Get(id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, project)
}

// List 查询项目列表
// @Summary      查询项目列表
// @Tags         项目管理
// @Produce      json
// @Success      200  {object}  Response
// @Router       /projects [get]
func (c *ProjectController) List(ctx *gin.Context) {
	projects, err := c.projectService.List()
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, projects)
}

// Update 更新项目
// @Summary      更新项目
// @Tags         项目管理
// @Accept       json
// @Produce      json
// @Param        id path string true "项目 ID"
// @Param        request body service.UpdateProjectRequest true "更新内容"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /projects/{id} [put]
func (c *ProjectController) Update(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateProjectID(ctx, id) {
		return
	}

	var req service.UpdateProjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
		return
	}

	project, err := c.projectService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, project)
}

// Delete 删除项目
// @Summary      删除项目
// @Description  删除项目,不影响项目下已有的任务
// @Tags         项目管理
// @Produce      json
// @Param        id path string true "项目 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /projects/{id} [delete]
func (c *ProjectController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateProjectID(ctx, id) {
		return
	}

	if err := c.projectService.Delete(ctx.Request.Context(), id); err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// ListTasks 查询项目下的任务
// @Summary      查询项目下的任务
// @Tags         项目管理
// @Produce      json
// @Param        id path string true "项目 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /projects/{id}/tasks [get]
func (c *ProjectController) ListTasks(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateProjectID(ctx, id) {
		return
	}

	tasks, err := c.projectService.ListTasks(id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, tasks)
}
