package repository

import (
	"context"
	"errors"
	"time"

	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"gorm.io/gorm"
)

// JobRepository 后台作业仓库
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository 创建作业仓库
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// FindByID 根据ID查找作业
func (r *JobRepository) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	var job entity.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// Create 创建作业记录
func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// MarkRunning 作业开始执行
func (r *JobRepository) MarkRunning(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     entity.JobStatusRunning,
			"started_at": now,
			"updated_at": now,
		}).Error
}

// Finish 写入作业最终结果
func (r *JobRepository) Finish(ctx context.Context, id, status, resultPath, message string, itemCount int, errs []string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"result_path":  resultPath,
			"message":      message,
			"item_count":   itemCount,
			"errors":       entity.StringList(errs),
			"completed_at": now,
			"updated_at":   now,
		}).Error
}

// ListByProject 项目作业历史
func (r *JobRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]entity.Job, error) {
	var jobs []entity.Job
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
