package service

import (
	"fmt"
	"time"

	"github.com/mautops/taskqueue-gin/internal/integration"
	"github.com/mautops/taskqueue-gin/internal/types"
)

// StatsService 统计服务接口
type StatsService interface {
	Stats() (*StatsResponse, error)
}

// StatsResponse 队列统计信息
type StatsResponse struct {
	TotalTasks         int64            `json:"total_tasks"`
	TasksByStatus      map[string]int64 `json:"tasks_by_status"`
	RunningTasks       int64            `json:"running_tasks"`
	MaxConcurrentTasks int              `json:"max_concurrent_tasks"`
	UptimeSeconds      int64            `json:"uptime_seconds"`
}

type statsService struct {
	taskMgr       integration.TaskManager
	maxConcurrent int
	startedAt     time.Time
}

// NewStatsService 创建统计服务
func NewStatsService(taskMgr integration.TaskManager, maxConcurrent int) StatsService {
	return &statsService{
		taskMgr:       taskMgr,
		maxConcurrent: maxConcurrent,
		startedAt:     time.Now(),
	}
}

// Stats 汇总队列统计信息
func (s *statsService) Stats() (*StatsResponse, error) {
	counts, err := s.taskMgr.CountByStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	// 所有状态都出现在结果中,没有任务时计数为 0
	byStatus := map[string]int64{
		string(types.TaskStatusPending):                0,
		string(types.TaskStatusWaitingForDependencies): 0,
		string(types.TaskStatusRunning):                0,
		string(types.TaskStatusCompleted):              0,
		string(types.TaskStatusFailed):                 0,
		string(types.TaskStatusCancelled):              0,
	}
	var total int64
	for status, count := range counts {
		byStatus[status] = count
		total += count
	}

	return &StatsResponse{
		TotalTasks:         total,
		TasksByStatus:      byStatus,
		RunningTasks:       byStatus[string(types.TaskStatusRunning)],
		MaxConcurrentTasks: s.maxConcurrent,
		UptimeSeconds:      int64(time.Since(s.startedAt).Seconds()),
	}, nil
}
