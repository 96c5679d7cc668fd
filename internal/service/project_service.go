package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/taskqueue-gin/internal/model"
	"github.com/mautops/taskqueue-gin/internal/repository"
	"github.com/mautops/taskqueue-gin/internal/types"
	"gorm.io/gorm"
)

// ProjectService 项目服务接口
type ProjectService interface {
	Create(ctx context.Context, req *CreateProjectRequest) (*types.Project, error)
	Get(id string) (*types.Project, error)
	List() ([]*types.Project, error)
	Update(ctx context.Context, id string, req *UpdateProjectRequest) (*types.Project, error)
	Delete(ctx context.Context, id string) error
	ListTasks(id string) ([]*types.Task, error)
}

// CreateProjectRequest 创建项目请求
// @Description 创建项目的请求参数
type CreateProjectRequest struct {
	Name        string `json:"name" example:"网关重构" binding:"required"` // 项目名称
	Description string `json:"description" example:"API 网关重构项目"`       // 项目描述
	Status      string `json:"status" example:"planning"`              // 初始状态,缺省为 planning
}

// UpdateProjectRequest 更新项目请求
// @Description 更新项目的请求参数,缺省字段不修改
type UpdateProjectRequest struct {
	Name        *string `json:"name"`        // 项目名称
	Description *string `json:"description"` // 项目描述
	Status      *string `json:"status"`      // 项目状态
}

type projectService struct {
	projectRepo repository.ProjectRepository
	taskSvc     TaskService
}

// NewProjectService 创建项目服务
func NewProjectService(db *gorm.DB, taskSvc TaskService) ProjectService {
	return &projectService{
		projectRepo: repository.NewProjectRepository(db),
		taskSvc:     taskSvc,
	}
}

// Create 创建项目
func (s *projectService) Create(ctx context.Context, req *CreateProjectRequest) (*types.Project, error) {
	status := types.ProjectStatus(req.Status)
	if req.Status == "" {
		status = types.ProjectStatusPlanning
	}
	if !status.IsValid() {
		return nil, types.NewError(types.KindValidation, "invalid project status %q", req.Status)
	}

	now := time.Now()
	project := &types.Project{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.save(project); err != nil {
		return nil, err
	}
	return project, nil
}

// Get 获取项目详情
func (s *projectService) Get(id string) (*types.Project, error) {
	pm, err := s.projectRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.KindNotFound, "project %q not found", id)
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return toProject(pm), nil
}

// List 查询所有项目
func (s *projectService) List() ([]*types.Project, error) {
	models, err := s.projectRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]*types.Project, 0, len(models))
	for _, pm := range models {
		projects = append(projects, toProject(pm))
	}
	return projects, nil
}

// Update 更新项目
func (s *projectService) Update(ctx context.Context, id string, req *UpdateProjectRequest) (*types.Project, error) {
	project, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, types.NewError(types.KindValidation, "project name is required")
		}
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Status != nil {
		status := types.ProjectStatus(*req.Status)
		if !status.IsValid() {
			return nil, types.NewError(types.KindValidation, "invalid project status %q", *req.Status)
		}
		project.Status = status
	}

	project.UpdatedAt = time.Now()
	if err := s.save(project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete 删除项目
// 项目与任务是弱关联,删除项目不影响已有任务
func (s *projectService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	if err := s.projectRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// ListTasks 查询项目下的所有任务
func (s *projectService) ListTasks(id string) ([]*types.Task, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	return s.taskSvc.List(&ListTasksRequest{ProjectID: id})
}

// save 保存项目
func (s *projectService) save(project *types.Project) error {
	pm := &model.ProjectModel{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Status:      string(project.Status),
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
	if err := s.projectRepo.Save(pm); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// toProject 数据模型转领域对象
func toProject(pm *model.ProjectModel) *types.Project {
	return &types.Project{
		ID:          pm.ID,
		Name:        pm.Name,
		Description: pm.Description,
		Status:      types.ProjectStatus(pm.Status),
		CreatedAt:   pm.CreatedAt,
		UpdatedAt:   pm.UpdatedAt,
	}
}
