package meta

import (
	"time"

	"gorm.io/datatypes"
)

// MigrationRun 记录一次旧缓存迁移的结果
// 对应 `av history` 的一行
type MigrationRun struct {
	ID uint `gorm:"primaryKey"`

	Root      string `gorm:"index;type:varchar(1024);not null"`
	Algorithm string `gorm:"type:varchar(16);not null"`

	Successes  int
	Failures   int
	Duplicates int
	Discarded  int

	// Cleaned: 被清理掉的旧目录名 ["icons", "sounds"]
	Cleaned datatypes.JSON

	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
	CreatedAt  time.Time
}

func (MigrationRun) TableName() string {
	return "migration_runs"
}

// Duration 返回本次迁移耗时
func (r MigrationRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// IndexRecord 是已加载 manifest 的摘要
// 以文件路径为主键，重复加载会覆盖
type IndexRecord struct {
	Path string `gorm:"primaryKey;type:varchar(1024)"`

	IsVirtual    bool
	ObjectCount  int
	UniqueHashes int
	TotalSize    int64

	LoadedAt time.Time
}

func (IndexRecord) TableName() string {
	return "asset_indexes"
}
