package service

import (
	"context"
	"testing"

	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProjectService(t *testing.T) (ProjectService, TaskService) {
	t.Helper()
	taskSvc, _, db := newTestTaskService(t)
	return NewProjectService(db, taskSvc), taskSvc
}

// TestProjectServiceCRUD 测试项目增删改查
func TestProjectServiceCRUD(t *testing.T) {
	svc, _ := newTestProjectService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, &CreateProjectRequest{
		Name:        "gateway-rewrite",
		Description: "rewrite the API gateway",
	})
	require.NoError(t, err)
	assert.Equal(t, types.ProjectStatusPlanning, project.Status)

	got, err := svc.Get(project.ID)
	require.NoError(t, err)
	assert.Equal(t, "gateway-rewrite", got.Name)

	status := string(types.ProjectStatusInProgress)
	updated, err := svc.Update(ctx, project.ID, &UpdateProjectRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, types.ProjectStatusInProgress, updated.Status)

	list, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, project.ID))
	_, err = svc.Get(project.ID)
	assert.True(t, types.IsKind(err, types.KindNotFound))
}

// TestProjectServiceValidation 测试项目状态校验
func TestProjectServiceValidation(t *testing.T) {
	svc, _ := newTestProjectService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateProjectRequest{Name: "p", Status: "bogus"})
	assert.True(t, types.IsKind(err, types.KindValidation))
}

// TestProjectServiceListTasks 测试项目任务列表
func TestProjectServiceListTasks(t *testing.T) {
	svc, taskSvc := newTestProjectService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, &CreateProjectRequest{Name: "p"})
	require.NoError(t, err)

	_, err = taskSvc.Create(ctx, &CreateTaskRequest{Name: "in-project", ProjectID: project.ID})
	require.NoError(t, err)
	_, err = taskSvc.Create(ctx, &CreateTaskRequest{Name: "elsewhere"})
	require.NoError(t, err)

	tasks, err := svc.ListTasks(project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "in-project", tasks[0].Name)

	_, err = svc.ListTasks("missing")
	assert.True(t, types.IsKind(err, types.KindNotFound))
}

// TestProjectServiceDeleteKeepsTasks 测试删除项目不影响任务
func TestProjectServiceDeleteKeepsTasks(t *testing.T) {
	svc, taskSvc := newTestProjectService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, &CreateProjectRequest{Name: "p"})
	require.NoError(t, err)
	tsk, err := taskSvc.Create(ctx, &CreateTaskRequest{Name: "survivor", ProjectID: project.ID})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, project.ID))

	got, err := taskSvc.Get(tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ProjectID)
}
