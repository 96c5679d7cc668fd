package repository

import (
	"github.com/mautops/taskqueue-gin/internal/model"
	"gorm.io/gorm"
)

// TaskRepository 任务仓储接口
type TaskRepository interface {
	Save(task *model.TaskModel) error
	FindByID(id string) (*model.TaskModel, error)
	FindAll() ([]*model.TaskModel, error)
	FindByFilter(filter *TaskFilter) ([]*model.TaskModel, error)
	FindByStatuses(statuses []string) ([]*model.TaskModel, error)
	CountByStatus() (map[string]int64, error)
	Delete(id string) error
}

// TaskFilter 任务查询过滤器
type TaskFilter struct {
	Status    *string
	ProjectID *string
	Priority  *string
	StartTime *string
	EndTime   *string
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Save 保存任务
func (r *taskRepository) Save(task *model.TaskModel) error {
	return r.db.Save(task).Error
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := r.db.Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindAll 查找所有任务
func (r *taskRepository) FindAll() ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := r.db.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// FindByFilter 根据过滤器查找任务
func (r *taskRepository) FindByFilter(filter *TaskFilter) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	query := r.db.Model(&model.TaskModel{})

	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.ProjectID != nil {
			query = query.Where("project_id = ?", *filter.ProjectID)
		}
		if filter.Priority != nil {
			query = query.Where("priority = ?", *filter.Priority)
		}
		if filter.StartTime != nil {
			query = query.Where("created_at >= ?", *filter.StartTime)
		}
		if filter.EndTime != nil {
			query = query.Where("created_at <= ?", *filter.EndTime)
		}
	}

	err := query.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// FindByStatuses 查找处于指定状态集合中的任务,按创建时间升序
// 调度器用于构建候选集,顺序保证同优先级 FIFO
func (r *taskRepository) FindByStatuses(statuses []string) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := r.db.Where("status IN ?", statuses).Order("created_at ASC").Find(&tasks).Error
	return tasks, err
}

// CountByStatus 按状态统计任务数量
func (r *taskRepository) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.Model(&model.TaskModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// Delete 删除任务
func (r *taskRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.TaskModel{}).Error
}
