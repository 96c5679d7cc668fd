package container

import (
	"fmt"
	"time"

	"github.com/mautops/taskqueue-gin/internal/api"
	"github.com/mautops/taskqueue-gin/internal/config"
	"github.com/mautops/taskqueue-gin/internal/database"
	"github.com/mautops/taskqueue-gin/internal/executor"
	"github.com/mautops/taskqueue-gin/internal/integration"
	"github.com/mautops/taskqueue-gin/internal/scheduler"
	"github.com/mautops/taskqueue-gin/internal/service"
	"github.com/mautops/taskqueue-gin/internal/statemachine"
	"github.com/mautops/taskqueue-gin/internal/websocket"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、管理器、调度器和服务
type Container struct {
	cfg          *config.Config
	db           *gorm.DB
	hub          *websocket.Hub
	eventHandler integration.EventSink
	taskMgr      integration.TaskManager
	workflowMgr  integration.WorkflowManager
	sched        *scheduler.Scheduler
	services     *api.Services
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. 初始化数据库（带重试机制）
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := database.CreateIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	// 2. 初始化 WebSocket Hub 与事件处理器
	hub := websocket.NewHub()
	eventHandler := integration.NewEventHandler(db, hub,
		cfg.Scheduler.EventWorkers, cfg.Scheduler.EventQueueSize)

	// 3. 初始化任务与开发流程管理器
	taskMgr := integration.NewTaskManager(db, eventHandler)
	workflowMgr := integration.NewWorkflowManager(db, taskMgr, statemachine.WorkflowGateConfig{
		MinTestCoverage: cfg.Workflow.MinTestCoverage,
		MinAIReviews:    cfg.Workflow.MinAIReviews,
		MinReviewScore:  cfg.Workflow.MinReviewScore,
	})

	// 4. 初始化调度器
	sched := scheduler.New(db, taskMgr, executor.NewShellExecutor(), scheduler.Options{
		MaxConcurrentTasks: cfg.Scheduler.MaxConcurrentTasks,
		DefaultRetryDelay:  time.Duration(cfg.Scheduler.DefaultRetryDelay) * time.Second,
		DefaultTimeout:     time.Duration(cfg.Scheduler.DefaultTimeout) * time.Second,
	})

	// 5. 初始化服务层
	taskSvc := service.NewTaskService(db, taskMgr, sched)
	services := &api.Services{
		Task:        taskSvc,
		Workflow:    service.NewWorkflowService(workflowMgr),
		Project:     service.NewProjectService(db, taskSvc),
		WorkflowRun: service.NewWorkflowRunService(db, taskSvc),
		Stats:       service.NewStatsService(taskMgr, cfg.Scheduler.MaxConcurrentTasks),
	}

	return &Container{
		cfg:          cfg,
		db:           db,
		hub:          hub,
		eventHandler: eventHandler,
		taskMgr:      taskMgr,
		workflowMgr:  workflowMgr,
		sched:        sched,
		services:     services,
	}, nil
}

// Start 启动后台组件(WebSocket Hub 与调度循环)
func (c *Container) Start() {
	go c.hub.Run()
	c.sched.Start()
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// TaskManager 获取任务管理器
func (c *Container) TaskManager() integration.TaskManager {
	return c.taskMgr
}

// WorkflowManager 获取开发流程管理器
func (c *Container) WorkflowManager() integration.WorkflowManager {
	return c.workflowMgr
}

// Scheduler 获取调度器
func (c *Container) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// Services 获取服务集合
func (c *Container) Services() *api.Services {
	return c.services
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.sched != nil {
		c.sched.Stop()
	}
	if c.eventHandler != nil {
		c.eventHandler.Stop()
	}
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	return nil
}
