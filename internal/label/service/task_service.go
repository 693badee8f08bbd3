package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"go.uber.org/zap"
)

// TaskService 标注任务服务
type TaskService struct {
	tasks    *repository.TaskRepository
	files    *repository.PointCloudRepository
	projects *repository.ProjectRepository
	logger   *zap.Logger
}

// NewTaskService 创建任务服务
func NewTaskService(repos *repository.Repositories, logger *zap.Logger) *TaskService {
	return &TaskService{
		tasks:    repos.Task,
		files:    repos.PointCloud,
		projects: repos.Project,
		logger:   logger,
	}
}

// BatchTaskOptions 批量建任务选项
type BatchTaskOptions struct {
	NamePrefix        string     `json:"name_prefix"`
	Priority          string     `json:"priority"`
	MaxAnnotations    int        `json:"max_annotations"`
	RequireReview     *bool      `json:"require_review"`
	DueDate           *time.Time `json:"due_date"`
	Instructions      string     `json:"instructions"`
	AssigneeIDs       []string   `json:"assignee_ids"`
	DistributeEqually bool       `json:"distribute_equally"`
}

// CreateBatchRequest 批量建任务请求
type CreateBatchRequest struct {
	FileIDs []string         `json:"file_ids" binding:"required"`
	Options BatchTaskOptions `json:"options"`
}

// CreateBatch 为一批点云文件批量创建任务，每个文件一个任务。
// 指定 distribute_equally 时按轮转把任务分给各标注员。
func (s *TaskService) CreateBatch(ctx context.Context, projectID, creatorID string, req *CreateBatchRequest) ([]entity.Task, error) {
	if len(req.FileIDs) == 0 {
		return nil, fmt.Errorf("%w: 文件列表为空", ErrValidation)
	}

	opts := req.Options
	if opts.NamePrefix == "" {
		opts.NamePrefix = "Task"
	}
	if opts.Priority == "" {
		opts.Priority = entity.TaskPriorityMedium
	}
	switch opts.Priority {
	case entity.TaskPriorityLow, entity.TaskPriorityMedium, entity.TaskPriorityHigh, entity.TaskPriorityUrgent:
	default:
		return nil, fmt.Errorf("%w: 无效的优先级 %q", ErrValidation, opts.Priority)
	}
	if opts.MaxAnnotations <= 0 {
		opts.MaxAnnotations = 3
	}
	requireReview := true
	if opts.RequireReview != nil {
		requireReview = *opts.RequireReview
	}

	// 文件必须存在、属于本项目且未删除
	found, err := s.files.FindByIDs(ctx, req.FileIDs)
	if err != nil {
		return nil, fmt.Errorf("查找文件失败: %w", err)
	}
	byID := make(map[string]entity.PointCloudFile, len(found))
	for _, f := range found {
		byID[f.ID] = f
	}
	for _, fid := range req.FileIDs {
		f, ok := byID[fid]
		if !ok || f.ProjectID != projectID {
			return nil, fmt.Errorf("%w: 文件 %s 不存在", ErrNotFound, fid)
		}
		if f.Status == entity.FileStatusDeleted {
			return nil, fmt.Errorf("%w: 文件 %s 已删除", ErrValidation, fid)
		}
	}

	// 指派人必须是项目成员
	for _, uid := range opts.AssigneeIDs {
		if _, err := s.projects.FindMember(ctx, projectID, uid); err != nil {
			return nil, fmt.Errorf("%w: 用户 %s 不是项目成员", ErrValidation, uid)
		}
	}

	tasks := make([]entity.Task, 0, len(req.FileIDs))
	for i := range req.FileIDs {
		task := entity.Task{
			ID:             uuid.New().String()[:32],
			ProjectID:      projectID,
			Name:           fmt.Sprintf("%s_%03d", opts.NamePrefix, i+1),
			Status:         entity.TaskStatusPending,
			Priority:       opts.Priority,
			Instructions:   opts.Instructions,
			MaxAnnotations: opts.MaxAnnotations,
			RequireReview:  requireReview,
			DueDate:        opts.DueDate,
			CreatedBy:      creatorID,
		}

		if len(opts.AssigneeIDs) > 0 {
			assignee := opts.AssigneeIDs[0]
			if opts.DistributeEqually {
				assignee = opts.AssigneeIDs[i%len(opts.AssigneeIDs)]
			}
			now := time.Now()
			task.AssignedTo = &assignee
			task.AssignedAt = &now
			task.Status = entity.TaskStatusAssigned
		}
		tasks = append(tasks, task)
	}

	if err := s.tasks.CreateBatch(ctx, tasks); err != nil {
		return nil, fmt.Errorf("批量创建任务失败: %w", err)
	}
	for i := range tasks {
		if err := s.tasks.AddFiles(ctx, tasks[i].ID, []string{req.FileIDs[i]}); err != nil {
			return nil, fmt.Errorf("关联任务文件失败: %w", err)
		}
	}
	return tasks, nil
}

// Get 获取任务详情
func (s *TaskService) Get(ctx context.Context, projectID, taskID string) (*entity.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 任务不存在", ErrNotFound)
		}
		return nil, err
	}
	if task.ProjectID != projectID {
		return nil, fmt.Errorf("%w: 任务不存在", ErrNotFound)
	}
	return task, nil
}

// List 项目任务列表
func (s *TaskService) List(ctx context.Context, projectID string, page, pageSize int, filters map[string]interface{}) ([]entity.Task, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return s.tasks.ListByProject(ctx, projectID, page, pageSize, filters)
}

// ListMine 指派给当前用户的任务
func (s *TaskService) ListMine(ctx context.Context, userID string) ([]entity.Task, error) {
	return s.tasks.ListByAssignee(ctx, userID)
}

// Assign 指派任务给项目成员
func (s *TaskService) Assign(ctx context.Context, projectID, taskID, userID string) (*entity.Task, error) {
	task, err := s.Get(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.FindMember(ctx, projectID, userID); err != nil {
		return nil, fmt.Errorf("%w: 用户不是项目成员", ErrValidation)
	}

	now := time.Now()
	task.AssignedTo = &userID
	task.AssignedAt = &now
	if task.Status == entity.TaskStatusPending {
		task.Status = entity.TaskStatusAssigned
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("指派任务失败: %w", err)
	}
	return task, nil
}
