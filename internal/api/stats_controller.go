package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/taskqueue-gin/internal/service"
)

// StatsController 统计控制器
type StatsController struct {
	statsService service.StatsService
}

// NewStatsController 创建统计控制器
func NewStatsController(statsService service.StatsService) *StatsController {
	return &StatsController{statsService: statsService}
}

// Stats 查询队列统计信息
// @Summary      查询队列统计
// @Description  返回各状态的任务计数、运行中任务数与并发上限
// @Tags         系统
// @Produce      json
// @Success      200  {object}  Response
// @Router       /stats [get]
func (c *StatsController) Stats(ctx *gin.Context) {
	stats, err := c.statsService.Stats()
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, stats)
}
