package meta

import (
	"context"
	"fmt"
	"testing"
	"time"

	"assetvault/pkg/digest"
	"assetvault/pkg/migrate"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// setupTestRepo 构建隔离的测试环境 (每个测试一个内存库)
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate())
	t.Cleanup(func() { _ = metaDB.Close() })

	return NewRepository(metaDB)
}

// mustRecordRun 写入一条迁移记录，失败则终止
func mustRecordRun(t *testing.T, repo *Repository, started time.Time, res migrate.Result) *MigrationRun {
	t.Helper()
	res.StartedAt = started
	res.FinishedAt = started.Add(time.Second)

	run, err := NewMigrationRun("/legacy/assets", digest.SHA1, res)
	require.NoError(t, err)
	require.NoError(t, repo.RecordRun(context.Background(), run))
	return run
}
