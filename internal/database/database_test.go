package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mautops/taskqueue-gin/internal/config"
	"github.com/mautops/taskqueue-gin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildDSN 测试 PostgreSQL DSN 构建
func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		DBName:   "taskqueue",
		SSLMode:  "disable",
	})

	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=taskqueue sslmode=disable", dsn)
}

// TestConnectAndMigrateSQLite 测试 SQLite 连接与迁移
func TestConnectAndMigrateSQLite(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}

	db, err := Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	// 所有表都可写
	require.NoError(t, db.Create(&model.TaskModel{
		ID:        "task-001",
		Name:      "build",
		Status:    "pending",
		Priority:  "normal",
		Data:      []byte(`{}`),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&model.ProjectModel{
		ID:        "proj-001",
		Name:      "p",
		Status:    "planning",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}).Error)

	// 重复迁移是幂等的
	require.NoError(t, Migrate(db))

	assert.True(t, CheckHealth(db))
}

// TestConnectWithRetry 测试带重试的连接
func TestConnectWithRetry(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}

	db, err := ConnectWithRetry(cfg, 3, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, CheckHealth(db))
}

// TestCheckHealthNilDB 测试空连接的健康检查
func TestCheckHealthNilDB(t *testing.T) {
	assert.False(t, CheckHealth(nil))
}
