package repository

import (
	"github.com/mautops/taskqueue-gin/internal/model"
	"gorm.io/gorm"
)

// WorkflowRunRepository 流水线仓储接口
type WorkflowRunRepository interface {
	Save(run *model.WorkflowRunModel) error
	FindByID(id string) (*model.WorkflowRunModel, error)
	FindAll() ([]*model.WorkflowRunModel, error)
}

// workflowRunRepository 流水线仓储实现
type workflowRunRepository struct {
	db *gorm.DB
}

// NewWorkflowRunRepository 创建流水线仓储
func NewWorkflowRunRepository(db *gorm.DB) WorkflowRunRepository {
	return &workflowRunRepository{db: db}
}

// Save 保存流水线
func (r *workflowRunRepository) Save(run *model.WorkflowRunModel) error {
	return r.db.Save(run).Error
}

// FindByID 根据 ID 查找流水线
func (r *workflowRunRepository) FindByID(id string) (*model.WorkflowRunModel, error) {
	var run model.WorkflowRunModel
	if err := r.db.Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// FindAll 查找所有流水线
func (r *workflowRunRepository) FindAll() ([]*model.WorkflowRunModel, error) {
	var runs []*model.WorkflowRunModel
	err := r.db.Order("created_at DESC").Find(&runs).Error
	return runs, err
}
