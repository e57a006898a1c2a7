package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/zigen/pipeline"
	"github.com/BaSui01/zigen/types"
)

// JobRecord 一次生成任务的持久化记录
type JobRecord struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Prompt     string    `gorm:"type:text" json:"prompt"`
	Status     string    `gorm:"size:16;index" json:"status"`
	ImageCount int       `json:"image_count"`
	Upscaled   bool      `json:"upscaled"`
	ErrorCode  string    `gorm:"size:64" json:"error_code,omitempty"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName 表名
func (JobRecord) TableName() string { return "zigen_jobs" }

// QueryObserver 记录查询耗时
type QueryObserver interface {
	RecordDBQuery(database, operation string, duration time.Duration)
}

// JobRepository 任务历史仓库
type JobRepository struct {
	pool     *PoolManager
	db       *gorm.DB
	keep     int
	name     string
	observer QueryObserver
	logger   *zap.Logger
}

// RepositoryOption 可选配置
type RepositoryOption func(*JobRepository)

// WithHistoryLimit 每次写入后只保留最近 n 条记录
func WithHistoryLimit(n int) RepositoryOption {
	return func(r *JobRepository) { r.keep = n }
}

// WithQueryObserver 上报查询耗时
func WithQueryObserver(o QueryObserver) RepositoryOption {
	return func(r *JobRepository) { r.observer = o }
}

// NewJobRepository 创建任务历史仓库，事务经由连接池管理器执行
func NewJobRepository(pool *PoolManager, logger *zap.Logger, opts ...RepositoryOption) *JobRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	db := pool.DB()
	r := &JobRepository{
		pool:   pool,
		db:     db,
		name:   db.Dialector.Name(),
		logger: logger.With(zap.String("component", "job_repository")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Migrate 建表
func (r *JobRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&JobRecord{}); err != nil {
		return fmt.Errorf("migrate job history: %w", err)
	}
	return nil
}

func (r *JobRepository) observe(op string, start time.Time) {
	if r.observer != nil {
		r.observer.RecordDBQuery(r.name, op, time.Since(start))
	}
}

// Save 写入一条记录，超过保留上限时裁剪旧记录
func (r *JobRepository) Save(ctx context.Context, rec *JobRecord) error {
	start := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = start.UTC()
	}
	err := r.db.WithContext(ctx).Create(rec).Error
	r.observe("insert", start)
	if err != nil {
		return fmt.Errorf("save job %s: %w", rec.ID, err)
	}

	if r.keep > 0 {
		if _, err := r.Prune(ctx, r.keep); err != nil {
			r.logger.Warn("prune job history failed", zap.Error(err))
		}
	}
	return nil
}

// Get 按 ID 查询
func (r *JobRepository) Get(ctx context.Context, id string) (*JobRecord, error) {
	start := time.Now()
	var rec JobRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	r.observe("select", start)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "job not found: "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &rec, nil
}

// Recent 返回最近的 limit 条记录，新的在前
func (r *JobRepository) Recent(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	start := time.Now()
	var recs []JobRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	r.observe("select", start)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return recs, nil
}

// Prune 只保留最近 keep 条记录，返回删除条数
func (r *JobRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	start := time.Now()
	defer r.observe("delete", start)

	var deleted int64
	err := r.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var cutoff []JobRecord
		if err := tx.Select("created_at").
			Order("created_at DESC").
			Offset(keep - 1).Limit(1).
			Find(&cutoff).Error; err != nil {
			return err
		}
		if len(cutoff) == 0 {
			return nil
		}
		res := tx.Where("created_at < ?", cutoff[0].CreatedAt).Delete(&JobRecord{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return deleted, nil
}

// Record 实现 pipeline.Recorder
func (r *JobRepository) Record(ctx context.Context, s pipeline.Summary) error {
	return r.Save(ctx, RecordFromSummary(s))
}

// RecordFromSummary 将流水线结果转换为持久化记录
func RecordFromSummary(s pipeline.Summary) *JobRecord {
	rec := &JobRecord{
		ID:         s.JobID,
		Prompt:     s.Prompt,
		Status:     s.State.String(),
		ImageCount: s.Images,
		Upscaled:   s.Upscaled,
		DurationMS: s.Duration.Milliseconds(),
		CreatedAt:  s.StartedAt.UTC(),
	}
	if s.Err != nil {
		rec.Error = s.Err.Error()
		rec.ErrorCode = string(types.GetErrorCode(s.Err))
	}
	return rec
}
