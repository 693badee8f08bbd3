package repository

import (
	"context"
	"errors"

	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"gorm.io/gorm"
)

// PointCloudRepository 点云文件仓库
type PointCloudRepository struct {
	db *gorm.DB
}

// NewPointCloudRepository 创建点云文件仓库
func NewPointCloudRepository(db *gorm.DB) *PointCloudRepository {
	return &PointCloudRepository{db: db}
}

// FindByID 根据ID查找文件
func (r *PointCloudRepository) FindByID(ctx context.Context, id string) (*entity.PointCloudFile, error) {
	var file entity.PointCloudFile
	err := r.db.WithContext(ctx).
		Preload("Uploader").
		Where("id = ?", id).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// Create 创建文件记录
func (r *PointCloudRepository) Create(ctx context.Context, file *entity.PointCloudFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

// Update 更新文件记录
func (r *PointCloudRepository) Update(ctx context.Context, file *entity.PointCloudFile) error {
	return r.db.WithContext(ctx).Save(file).Error
}

// ListByProject 项目文件列表（分页）
func (r *PointCloudRepository) ListByProject(ctx context.Context, projectID string, page, pageSize int, status string) ([]entity.PointCloudFile, int64, error) {
	var files []entity.PointCloudFile
	var total int64

	query := r.db.WithContext(ctx).
		Model(&entity.PointCloudFile{}).
		Where("project_id = ?", projectID)

	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&files).Error

	return files, total, err
}

// StatusCounts 按状态统计项目文件数
func (r *PointCloudRepository) StatusCounts(ctx context.Context, projectID string) (map[string]int64, int64, error) {
	var rows []struct {
		Status string `gorm:"column:status"`
		Count  int64  `gorm:"column:count"`
		Bytes  int64  `gorm:"column:bytes"`
	}
	err := r.db.WithContext(ctx).
		Model(&entity.PointCloudFile{}).
		Select("status, COUNT(*) as count, COALESCE(SUM(file_size), 0) as bytes").
		Where("project_id = ?", projectID).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	counts := make(map[string]int64, len(rows))
	var totalBytes int64
	for _, row := range rows {
		counts[row.Status] = row.Count
		if row.Status != entity.FileStatusDeleted {
			totalBytes += row.Bytes
		}
	}
	return counts, totalBytes, nil
}

// FindByIDs 批量查找文件
func (r *PointCloudRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.PointCloudFile, error) {
	var files []entity.PointCloudFile
	if len(ids) == 0 {
		return files, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&files).Error
	return files, err
}
