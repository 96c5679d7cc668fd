package service

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/mautops/taskqueue-gin/internal/database"
	"github.com/mautops/taskqueue-gin/internal/integration"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubNotifier 记录调度通知的测试替身
type stubNotifier struct {
	mu          sync.Mutex
	wakes       int
	interrupted []string
}

func (n *stubNotifier) Wake() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.wakes++
}

func (n *stubNotifier) Interrupt(taskID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.interrupted = append(n.interrupted, taskID)
}

func (n *stubNotifier) wakeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.wakes
}

// newServiceTestDB 创建测试数据库
func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// newTestTaskService 创建任务服务及其依赖
func newTestTaskService(t *testing.T) (TaskService, *stubNotifier, *gorm.DB) {
	t.Helper()
	db := newServiceTestDB(t)
	notifier := &stubNotifier{}
	taskMgr := integration.NewTaskManager(db, nil)
	return NewTaskService(db, taskMgr, notifier), notifier, db
}
