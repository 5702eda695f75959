package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assetvault/pkg/digest"
	"assetvault/pkg/index"
	"assetvault/pkg/migrate"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrIndexNotFound = errors.New("assets index not found in metadata")

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 迁移记录 (Migration Runs)
// -----------------------------------------------------------------------------

// NewMigrationRun 把 migrate.Result 投影成一行记录
func NewMigrationRun(root string, algo digest.Algorithm, res migrate.Result) (*MigrationRun, error) {
	cleaned := res.Cleaned
	if cleaned == nil {
		cleaned = []string{}
	}
	cleanedJSON, err := json.Marshal(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cleaned folders: %w", err)
	}

	return &MigrationRun{
		Root:       root,
		Algorithm:  string(algo),
		Successes:  res.Successes,
		Failures:   res.Failures,
		Duplicates: res.Duplicates,
		Discarded:  res.Discarded,
		Cleaned:    datatypes.JSON(cleanedJSON),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}, nil
}

// RecordRun 追加一条迁移记录
func (r *Repository) RecordRun(ctx context.Context, run *MigrationRun) error {
	if err := r.db.GetConn().WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record migration run: %w", err)
	}
	return nil
}

// ListRuns 按时间倒序列出最近的迁移记录
// limit <= 0 表示不限制
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]MigrationRun, error) {
	var runs []MigrationRun
	q := r.db.GetConn().WithContext(ctx).Order("started_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// -----------------------------------------------------------------------------
// 2. Manifest 摘要 (Index Records)
// -----------------------------------------------------------------------------

func NewIndexRecord(path string, idx *index.AssetIndex) *IndexRecord {
	return &IndexRecord{
		Path:         path,
		IsVirtual:    idx.IsVirtual,
		ObjectCount:  len(idx.Objects),
		UniqueHashes: idx.UniqueHashes(),
		TotalSize:    idx.TotalSize(),
		LoadedAt:     time.Now(),
	}
}

// RecordIndex 写入 manifest 摘要 (同一路径覆盖旧值)
func (r *Repository) RecordIndex(ctx context.Context, rec *IndexRecord) error {
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"is_virtual", "object_count", "unique_hashes", "total_size", "loaded_at",
			}),
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to record assets index: %w", err)
	}
	return nil
}

func (r *Repository) GetIndex(ctx context.Context, path string) (*IndexRecord, error) {
	var rec IndexRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("path = ?", path).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIndexNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
