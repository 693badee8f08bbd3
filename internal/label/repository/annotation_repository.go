package repository

import (
	"context"
	"errors"

	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"gorm.io/gorm"
)

// AnnotationRepository 标注仓库
type AnnotationRepository struct {
	db *gorm.DB
}

// NewAnnotationRepository 创建标注仓库
func NewAnnotationRepository(db *gorm.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

// FindByID 项目范围内根据ID查找标注（全量加载关联）
func (r *AnnotationRepository) FindByID(ctx context.Context, id, projectID string) (*entity.Annotation, error) {
	var annotation entity.Annotation
	err := r.db.WithContext(ctx).
		Preload("Task").
		Preload("Annotator").
		Preload("VehicleType").
		Preload("Reviews").
		Where("id = ? AND project_id = ?", id, projectID).
		First(&annotation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &annotation, nil
}

// Create 创建标注
func (r *AnnotationRepository) Create(ctx context.Context, annotation *entity.Annotation) error {
	return r.db.WithContext(ctx).Create(annotation).Error
}

// Update 更新标注
func (r *AnnotationRepository) Update(ctx context.Context, annotation *entity.Annotation) error {
	return r.db.WithContext(ctx).Save(annotation).Error
}

// Delete 删除标注
func (r *AnnotationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.Annotation{}).Error
}

// FindByTaskFileAnnotator 查找某标注员在 (任务, 文件) 上的标注
func (r *AnnotationRepository) FindByTaskFileAnnotator(ctx context.Context, taskID, fileID, annotatorID string) (*entity.Annotation, error) {
	var annotation entity.Annotation
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND point_cloud_file_id = ? AND annotator_id = ?", taskID, fileID, annotatorID).
		First(&annotation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &annotation, nil
}

// ListByTask 任务下全部标注
func (r *AnnotationRepository) ListByTask(ctx context.Context, taskID, projectID string) ([]entity.Annotation, error) {
	var annotations []entity.Annotation
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND project_id = ?", taskID, projectID).
		Preload("Annotator").
		Preload("VehicleType").
		Preload("Reviews").
		Find(&annotations).Error
	return annotations, err
}

// ListStatusByTask 任务下标注的 (文件, 状态) 对，聚合器专用
func (r *AnnotationRepository) ListStatusByTask(ctx context.Context, taskID string) ([]FileAnnotationStatus, error) {
	var rows []FileAnnotationStatus
	err := r.db.WithContext(ctx).
		Model(&entity.Annotation{}).
		Select("point_cloud_file_id, status").
		Where("task_id = ?", taskID).
		Find(&rows).Error
	return rows, err
}

// FileAnnotationStatus 聚合器输入行
type FileAnnotationStatus struct {
	PointCloudFileID string `gorm:"column:point_cloud_file_id"`
	Status           string `gorm:"column:status"`
}

// ListByAnnotator 按标注员过滤（可选状态）
func (r *AnnotationRepository) ListByAnnotator(ctx context.Context, annotatorID, projectID, status string, limit, offset int) ([]entity.Annotation, error) {
	var annotations []entity.Annotation
	query := r.db.WithContext(ctx).
		Where("annotator_id = ? AND project_id = ?", annotatorID, projectID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.
		Preload("Task").
		Preload("VehicleType").
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&annotations).Error
	return annotations, err
}

// ListSubmittedByProject 项目内全部已提交标注（导出管线专用，带文件与标签）
func (r *AnnotationRepository) ListSubmittedByProject(ctx context.Context, projectID string) ([]entity.Annotation, error) {
	var annotations []entity.Annotation
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, entity.AnnotationStatusSubmitted).
		Preload("File").
		Preload("VehicleType").
		Order("created_at ASC").
		Find(&annotations).Error
	return annotations, err
}

// ListPendingReview 项目内待审核标注
func (r *AnnotationRepository) ListPendingReview(ctx context.Context, projectID string) ([]entity.Annotation, error) {
	var annotations []entity.Annotation
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, entity.AnnotationStatusSubmitted).
		Preload("Task").
		Preload("Annotator").
		Preload("VehicleType").
		Order("submitted_at ASC").
		Find(&annotations).Error
	return annotations, err
}

// CreateReview 追加审核记录
func (r *AnnotationRepository) CreateReview(ctx context.Context, review *entity.AnnotationReview) error {
	return r.db.WithContext(ctx).Create(review).Error
}

// CountByVehicleType 统计引用某标签的标注数
func (r *AnnotationRepository) CountByVehicleType(ctx context.Context, vehicleTypeID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Annotation{}).
		Where("vehicle_type_id = ?", vehicleTypeID).
		Count(&count).Error
	return count, err
}
