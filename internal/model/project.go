package model

import (
	"errors"
	"time"
)

// ProjectModel 项目数据模型
type ProjectModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	Name        string    `gorm:"type:varchar(255);not null;index"`
	Description string    `gorm:"type:text"`
	Status      string    `gorm:"type:varchar(32);not null;index"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ProjectModel) TableName() string {
	return "projects"
}

// Validate 验证项目模型
func (pm *ProjectModel) Validate() error {
	if pm.ID == "" {
		return errors.New("project ID is required")
	}
	if pm.Name == "" {
		return errors.New("project name is required")
	}
	if pm.Status == "" {
		return errors.New("project status is required")
	}
	return nil
}
