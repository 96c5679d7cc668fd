package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/taskqueue-gin/internal/config"
	"github.com/mautops/taskqueue-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Connect 连接数据库
// driver 为 sqlite 时使用本地文件,否则连接 PostgreSQL
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.Driver == "postgres" {
		dialector = postgres.Open(BuildDSN(cfg))
	} else {
		path := cfg.Path
		if path == "" {
			path = "taskqueue.db"
		}
		dialector = sqlite.Open(path)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 从配置中读取连接池参数,如果没有配置则使用默认值
	poolConfig := GetPoolConfig()
	if cfg.MaxIdleConns > 0 {
		poolConfig.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		// 如果不是最后一次重试,等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb,需要手动创建表
	if dialector == "sqlite" || dialector == "sqlite3" {
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		// PostgreSQL 等其他数据库使用 AutoMigrate
		if err := db.AutoMigrate(
			&model.TaskModel{},
			&model.ProjectModel{},
			&model.WorkflowRunModel{},
			&model.StateHistoryModel{},
			&model.EventModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表(使用 TEXT 替代 jsonb)
func createSQLiteTables(db *gorm.DB) error {
	// 创建 tasks 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			project_id VARCHAR(64),
			status VARCHAR(32) NOT NULL,
			priority VARCHAR(16) NOT NULL,
			has_workflow BOOLEAN NOT NULL DEFAULT 0,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create tasks table: %w", err)
	}

	// 创建 projects 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			status VARCHAR(32) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create projects table: %w", err)
	}

	// 创建 workflow_runs 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_runs (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create workflow_runs table: %w", err)
	}

	// 创建 state_history 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS state_history (
			id VARCHAR(64) PRIMARY KEY,
			task_id VARCHAR(64) NOT NULL,
			from_state VARCHAR(32),
			to_state VARCHAR(32) NOT NULL,
			reason TEXT,
			operator VARCHAR(64) NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create state_history table: %w", err)
	}

	// 创建 events 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id VARCHAR(64) PRIMARY KEY,
			task_id VARCHAR(64) NOT NULL,
			type VARCHAR(32) NOT NULL,
			data TEXT NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			retry_count INTEGER DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// tasks 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_status_priority ON tasks(status, priority)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_status_priority: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_project_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_created_at: %w", err)
	}

	// projects 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_projects_status: %w", err)
	}

	// workflow_runs 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_runs_status ON workflow_runs(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_runs_status: %w", err)
	}

	// state_history 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_history_task_id ON state_history(task_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_history_task_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_history_created_at ON state_history(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_history_created_at: %w", err)
	}

	// events 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_events_status ON events(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_events_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_events_task_id ON events(task_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_events_task_id: %w", err)
	}

	// PostgreSQL 特定的 GIN 索引
	if dialector == "postgres" {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_data_gin ON tasks USING GIN (data)").Error; err != nil {
			return fmt.Errorf("failed to create idx_tasks_data_gin: %w", err)
		}
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_runs_data_gin ON workflow_runs USING GIN (data)").Error; err != nil {
			return fmt.Errorf("failed to create idx_runs_data_gin: %w", err)
		}
	}

	return nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}
