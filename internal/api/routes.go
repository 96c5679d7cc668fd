package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/taskqueue-gin/internal/config"
	"github.com/mautops/taskqueue-gin/internal/service"
	"github.com/mautops/taskqueue-gin/internal/websocket"
	"gorm.io/gorm"
)

// Services 路由依赖的服务集合
type Services struct {
	Task        service.TaskService
	Workflow    service.WorkflowService
	Project     service.ProjectService
	WorkflowRun service.WorkflowRunService
	Stats       service.StatsService
}

// SetupRoutes 配置路由
func SetupRoutes(cfg *config.Config, db *gorm.DB, hub *websocket.Hub, services *Services) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(CORSMiddleware(cfg.CORS.AllowedOrigins))
	if cfg.Server.RateLimit > 0 {
		router.Use(RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}

	// 健康检查
	healthController := NewHealthController(db)
	router.GET("/health", healthController.Check)

	// 队列统计
	statsController := NewStatsController(services.Stats)
	router.GET("/stats", statsController.Stats)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 路由
	if hub != nil {
		router.GET("/ws", websocket.Handler(hub))
	}

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		// 任务管理路由
		taskController := NewTaskController(services.Task)
		workflowController := NewWorkflowController(services.Workflow)
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskController.Create)
			tasks.GET("", taskController.List)
			tasks.GET("/:id", taskController.Get)
			tasks.PUT("/:id", taskController.Update)
			tasks.DELETE("/:id", taskController.Delete)
			tasks.POST("/:id/cancel", taskController.Cancel)
			tasks.POST("/:id/retry", taskController.Retry)
			tasks.PUT("/:id/priority", taskController.SetPriority)
			tasks.GET("/:id/result", taskController.GetResult)
			tasks.GET("/:id/history", taskController.GetHistory)

			// 开发流程路由
			tasks.POST("/:id/workflow/advance", workflowController.AdvancePhase)
			tasks.POST("/:id/workflow/fail", workflowController.FailWorkflow)
			tasks.PUT("/:id/workflow/documentation", workflowController.SetDocumentation)
			tasks.PUT("/:id/workflow/coverage", workflowController.SetCoverage)
			tasks.POST("/:id/workflow/reviews", workflowController.AddReview)
		}

		// 项目管理路由
		projectController := NewProjectController(services.Project)
		projects := v1.Group("/projects")
		{
			projects.POST("", projectController.Create)
			projects.GET("", projectController.List)
			projects.GET("/:id", projectController.Get)
			projects.PUT("/:id", projectController.Update)
			projects.DELETE("/:id", projectController.Delete)
			projects.GET("/:id/tasks", projectController.ListTasks)
		}

		// 流水线路由
		runController := NewWorkflowRunController(services.WorkflowRun)
		workflows := v1.Group("/workflows")
		{
			workflows.POST("", runController.Create)
			workflows.GET("", runController.List)
			workflows.GET("/:id", runController.Get)
			workflows.POST("/:id/approve", runController.Approve)
			workflows.POST("/:id/cancel", runController.Cancel)
			workflows.GET("/:id/status", runController.Status)
			workflows.PUT("/:id/status", runController.UpdateStatus)
			workflows.GET("/:id/result", runController.Result)
		}
	}

	return router
}
