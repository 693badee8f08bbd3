package repository

import (
	"context"
	"errors"
	"time"

	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"gorm.io/gorm"
)

// TaskRepository 任务仓库
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓库
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID 根据ID查找任务（含文件关联）
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*entity.Task, error) {
	var task entity.Task
	err := r.db.WithContext(ctx).
		Preload("Files").
		Preload("Assignee").
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// Create 创建任务
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// CreateBatch 批量创建任务
func (r *TaskRepository) CreateBatch(ctx context.Context, tasks []entity.Task) error {
	return r.db.WithContext(ctx).Create(&tasks).Error
}

// Update 更新任务
func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// UpdateStatus 仅更新任务状态（聚合器专用，不触碰其他字段）
func (r *TaskRepository) UpdateStatus(ctx context.Context, taskID, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Task{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// AddFiles 关联文件到任务（显式中间表）
func (r *TaskRepository) AddFiles(ctx context.Context, taskID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	rows := make([]entity.TaskFile, 0, len(fileIDs))
	now := time.Now()
	for _, fid := range fileIDs {
		rows = append(rows, entity.TaskFile{
			TaskID:           taskID,
			PointCloudFileID: fid,
			CreatedAt:        now,
		})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// FileIDs 任务关联的文件ID列表（走中间表，避免整行加载）
func (r *TaskRepository) FileIDs(ctx context.Context, taskID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.TaskFile{}).
		Where("task_id = ?", taskID).
		Pluck("point_cloud_file_id", &ids).Error
	return ids, err
}

// ListByProject 项目任务列表（分页）
func (r *TaskRepository) ListByProject(ctx context.Context, projectID string, page, pageSize int, filters map[string]interface{}) ([]entity.Task, int64, error) {
	var tasks []entity.Task
	var total int64

	query := r.db.WithContext(ctx).
		Model(&entity.Task{}).
		Where("project_id = ?", projectID)

	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if assigneeID, ok := filters["assigned_to"].(string); ok && assigneeID != "" {
		query = query.Where("assigned_to = ?", assigneeID)
	}
	if priority, ok := filters["priority"].(string); ok && priority != "" {
		query = query.Where("priority = ?", priority)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Assignee").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&tasks).Error

	return tasks, total, err
}

// ListByAssignee 指派给用户的任务
func (r *TaskRepository) ListByAssignee(ctx context.Context, userID string) ([]entity.Task, error) {
	var tasks []entity.Task
	err := r.db.WithContext(ctx).
		Where("assigned_to = ?", userID).
		Preload("Files").
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, err
}
