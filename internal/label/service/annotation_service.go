package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AnnotationService 标注生命周期服务。
// 状态机：draft -> submitted -> {approved, rejected, needs_revision}，
// 编辑已提交的标注会退回 draft，审核记录只追加不删除。
type AnnotationService struct {
	db           *gorm.DB
	annotations  *repository.AnnotationRepository
	tasks        *repository.TaskRepository
	files        *repository.PointCloudRepository
	vehicleTypes *repository.VehicleTypeRepository
	projects     *repository.ProjectRepository
	logger       *zap.Logger
}

// NewAnnotationService 创建标注服务
func NewAnnotationService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger) *AnnotationService {
	return &AnnotationService{
		db:           db,
		annotations:  repos.Annotation,
		tasks:        repos.Task,
		files:        repos.PointCloud,
		vehicleTypes: repos.VehicleType,
		projects:     repos.Project,
		logger:       logger,
	}
}

// CreateAnnotationRequest 创建标注请求
type CreateAnnotationRequest struct {
	TaskID           string       `json:"task_id" binding:"required"`
	PointCloudFileID string       `json:"pointcloud_file_id" binding:"required"`
	VehicleTypeID    *string      `json:"vehicle_type_id"`
	Confidence       *float64     `json:"confidence"`
	Notes            string       `json:"notes"`
	ExtraData        entity.JSONB `json:"extra_data"`
}

// UpdateAnnotationRequest 更新标注请求
type UpdateAnnotationRequest struct {
	VehicleTypeID *string      `json:"vehicle_type_id"`
	Confidence    *float64     `json:"confidence"`
	Notes         *string      `json:"notes"`
	ExtraData     entity.JSONB `json:"extra_data"`
}

// ReviewRequest 审核请求
type ReviewRequest struct {
	Status   string `json:"status" binding:"required"`
	Comments string `json:"comments"`
	Rating   *int   `json:"rating"`
}

// Create 创建标注草稿。同一标注员在同一 (任务, 文件) 上只能有一条标注。
func (s *AnnotationService) Create(ctx context.Context, projectID, annotatorID string, req *CreateAnnotationRequest) (*entity.Annotation, error) {
	task, err := s.tasks.FindByID(ctx, req.TaskID)
	if err != nil || task.ProjectID != projectID {
		return nil, fmt.Errorf("%w: 任务不存在", ErrNotFound)
	}
	if task.AssignedTo == nil || *task.AssignedTo != annotatorID {
		return nil, fmt.Errorf("%w: 任务未指派给当前用户", ErrPermission)
	}

	file, err := s.files.FindByID(ctx, req.PointCloudFileID)
	if err != nil || file.ProjectID != projectID {
		return nil, fmt.Errorf("%w: 文件不存在", ErrNotFound)
	}
	if file.Status == entity.FileStatusDeleted {
		return nil, fmt.Errorf("%w: 文件已删除", ErrGone)
	}

	if req.VehicleTypeID != nil {
		if err := s.checkVehicleType(ctx, projectID, *req.VehicleTypeID); err != nil {
			return nil, fmt.Errorf("%w: 车种标签不存在", ErrNotFound)
		}
	}

	if _, err := s.annotations.FindByTaskFileAnnotator(ctx, req.TaskID, req.PointCloudFileID, annotatorID); err == nil {
		return nil, fmt.Errorf("%w: 该文件已有本人的标注", ErrConflict)
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	annotation := &entity.Annotation{
		ID:               uuid.New().String()[:32],
		ProjectID:        projectID,
		TaskID:           req.TaskID,
		PointCloudFileID: req.PointCloudFileID,
		AnnotatorID:      annotatorID,
		VehicleTypeID:    req.VehicleTypeID,
		Confidence:       req.Confidence,
		Notes:            req.Notes,
		ExtraData:        req.ExtraData,
		Status:           entity.AnnotationStatusDraft,
		StartedAt:        time.Now(),
	}
	if err := s.annotations.Create(ctx, annotation); err != nil {
		return nil, fmt.Errorf("创建标注失败: %w", err)
	}

	s.markVehicleTypeUsed(ctx, req.VehicleTypeID)
	s.refreshTaskProgress(ctx, req.TaskID)

	return s.annotations.FindByID(ctx, annotation.ID, projectID)
}

// Get 获取标注详情
func (s *AnnotationService) Get(ctx context.Context, projectID, id string) (*entity.Annotation, error) {
	annotation, err := s.annotations.FindByID(ctx, id, projectID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 标注不存在", ErrNotFound)
		}
		return nil, err
	}
	return annotation, nil
}

// ListByTask 任务下全部标注
func (s *AnnotationService) ListByTask(ctx context.Context, projectID, taskID string) ([]entity.Annotation, error) {
	return s.annotations.ListByTask(ctx, taskID, projectID)
}

// ListMine 当前用户的标注列表
func (s *AnnotationService) ListMine(ctx context.Context, projectID, annotatorID, status string, limit, offset int) ([]entity.Annotation, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.annotations.ListByAnnotator(ctx, annotatorID, projectID, status, limit, offset)
}

// ListPendingReview 项目内待审核标注
func (s *AnnotationService) ListPendingReview(ctx context.Context, projectID string) ([]entity.Annotation, error) {
	return s.annotations.ListPendingReview(ctx, projectID)
}

// Update 更新标注内容。编辑已提交的标注会退回 draft；
// 已通过审核的标注不可再编辑。
func (s *AnnotationService) Update(ctx context.Context, projectID, id, annotatorID string, req *UpdateAnnotationRequest) (*entity.Annotation, error) {
	annotation, err := s.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if annotation.AnnotatorID != annotatorID {
		return nil, fmt.Errorf("%w: 只能修改本人的标注", ErrPermission)
	}
	if annotation.Status == entity.AnnotationStatusApproved {
		return nil, fmt.Errorf("%w: 已通过审核的标注不可修改", ErrConflict)
	}

	if req.VehicleTypeID != nil {
		if err := s.checkVehicleType(ctx, projectID, *req.VehicleTypeID); err != nil {
			return nil, fmt.Errorf("%w: 车种标签不存在", ErrValidation)
		}
		annotation.VehicleTypeID = req.VehicleTypeID
	}
	if req.Confidence != nil {
		annotation.Confidence = req.Confidence
	}
	if req.Notes != nil {
		annotation.Notes = *req.Notes
	}
	if req.ExtraData != nil {
		annotation.ExtraData = req.ExtraData
	}

	// 编辑已提交的标注自动退回草稿
	reverted := false
	if annotation.Status == entity.AnnotationStatusSubmitted {
		annotation.Status = entity.AnnotationStatusDraft
		annotation.SubmittedAt = nil
		reverted = true
	}

	if err := s.annotations.Update(ctx, annotation); err != nil {
		return nil, fmt.Errorf("更新标注失败: %w", err)
	}

	s.markVehicleTypeUsed(ctx, req.VehicleTypeID)
	if reverted {
		s.refreshTaskProgress(ctx, annotation.TaskID)
	}

	return s.annotations.FindByID(ctx, id, projectID)
}

// Submit 提交标注进入审核。提交时必须已选定车种标签。
func (s *AnnotationService) Submit(ctx context.Context, projectID, id, annotatorID string) (*entity.Annotation, error) {
	annotation, err := s.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if annotation.AnnotatorID != annotatorID {
		return nil, fmt.Errorf("%w: 只能提交本人的标注", ErrPermission)
	}
	if annotation.Status != entity.AnnotationStatusDraft && annotation.Status != entity.AnnotationStatusNeedsRevision {
		return nil, fmt.Errorf("%w: 当前状态 %s 不可提交", ErrConflict, annotation.Status)
	}
	if annotation.VehicleTypeID == nil {
		return nil, fmt.Errorf("%w: 提交前必须选择车种标签", ErrValidation)
	}

	now := time.Now()
	annotation.Status = entity.AnnotationStatusSubmitted
	annotation.SubmittedAt = &now
	annotation.TimeSpent = int(now.Sub(annotation.StartedAt).Seconds())

	if err := s.annotations.Update(ctx, annotation); err != nil {
		return nil, fmt.Errorf("提交标注失败: %w", err)
	}

	s.refreshTaskProgress(ctx, annotation.TaskID)
	return s.annotations.FindByID(ctx, id, projectID)
}

// Review 审核已提交的标注。审核人必须是项目管理员或审核员，
// 审核记录与标注状态在同一事务内落库。
func (s *AnnotationService) Review(ctx context.Context, projectID, id, reviewerID string, req *ReviewRequest) (*entity.AnnotationReview, error) {
	switch req.Status {
	case entity.ReviewStatusApproved, entity.ReviewStatusRejected, entity.ReviewStatusNeedsRevision:
	default:
		return nil, fmt.Errorf("%w: 无效的审核结论 %q", ErrValidation, req.Status)
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return nil, fmt.Errorf("%w: 评分范围为 1-5", ErrValidation)
	}

	member, err := s.projects.FindMember(ctx, projectID, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("%w: 不是项目成员", ErrPermission)
	}
	if member.Role != entity.RoleProjectAdmin && member.Role != entity.RoleReviewer {
		return nil, fmt.Errorf("%w: 没有审核权限", ErrPermission)
	}

	annotation, err := s.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if annotation.Status != entity.AnnotationStatusSubmitted {
		return nil, fmt.Errorf("%w: 只能审核已提交的标注", ErrConflict)
	}

	review := &entity.AnnotationReview{
		ID:           uuid.New().String()[:32],
		ProjectID:    projectID,
		AnnotationID: annotation.ID,
		ReviewerID:   reviewerID,
		Status:       req.Status,
		Comments:     req.Comments,
		Rating:       req.Rating,
		ReviewedAt:   time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(review).Error; err != nil {
			return err
		}
		return tx.Model(&entity.Annotation{}).
			Where("id = ?", annotation.ID).
			Update("status", req.Status).Error
	})
	if err != nil {
		return nil, fmt.Errorf("保存审核结果失败: %w", err)
	}

	s.refreshTaskProgress(ctx, annotation.TaskID)
	return review, nil
}

// Delete 删除标注草稿。已提交或已审核的标注不可删除。
func (s *AnnotationService) Delete(ctx context.Context, projectID, id, userID string) error {
	annotation, err := s.Get(ctx, projectID, id)
	if err != nil {
		return err
	}
	if annotation.AnnotatorID != userID {
		return fmt.Errorf("%w: 只能删除本人的标注", ErrPermission)
	}
	if annotation.Status != entity.AnnotationStatusDraft {
		return fmt.Errorf("%w: 只能删除草稿状态的标注", ErrConflict)
	}

	if err := s.annotations.Delete(ctx, annotation.ID); err != nil {
		return fmt.Errorf("删除标注失败: %w", err)
	}
	s.refreshTaskProgress(ctx, annotation.TaskID)
	return nil
}

// RecomputeTaskProgress 根据标注状态推导任务进度。幂等：
// 对同一输入重复执行不会改变结果。
//
// 推导规则（按文件取最优标注状态）：
//   - 所有文件都有 submitted/approved 标注 => completed
//   - 任一文件有任意标注且任务处于 pending/assigned/completed => in_progress
//   - reviewed 状态只升不降
func (s *AnnotationService) RecomputeTaskProgress(ctx context.Context, taskID string) error {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}

	fileIDs, err := s.tasks.FileIDs(ctx, taskID)
	if err != nil {
		return err
	}
	total := len(fileIDs)
	if total == 0 {
		return nil
	}

	rows, err := s.annotations.ListStatusByTask(ctx, taskID)
	if err != nil {
		return err
	}

	// 每个文件取最优状态：submitted/approved 优于其他任何标注
	best := make(map[string]string, total)
	for _, row := range rows {
		switch row.Status {
		case entity.AnnotationStatusSubmitted, entity.AnnotationStatusApproved:
			best[row.PointCloudFileID] = "completed"
		default:
			if best[row.PointCloudFileID] != "completed" {
				best[row.PointCloudFileID] = "started"
			}
		}
	}

	completed := 0
	started := 0
	for _, fid := range fileIDs {
		switch best[fid] {
		case "completed":
			completed++
			started++
		case "started":
			started++
		}
	}

	newStatus := ""
	if completed == total {
		if task.Status != entity.TaskStatusCompleted && task.Status != entity.TaskStatusReviewed {
			newStatus = entity.TaskStatusCompleted
		}
	} else if started > 0 {
		switch task.Status {
		case entity.TaskStatusPending, entity.TaskStatusAssigned, entity.TaskStatusCompleted:
			newStatus = entity.TaskStatusInProgress
		}
	} else if task.Status == entity.TaskStatusCompleted {
		// 最后一条有效标注被删除或驳回，任务退回 in_progress
		newStatus = entity.TaskStatusInProgress
	}

	if newStatus == "" || newStatus == task.Status {
		return nil
	}
	return s.tasks.UpdateStatus(ctx, taskID, newStatus)
}

// refreshTaskProgress 进度推导失败只记日志，不影响主流程
func (s *AnnotationService) refreshTaskProgress(ctx context.Context, taskID string) {
	if err := s.RecomputeTaskProgress(ctx, taskID); err != nil {
		s.logger.Warn("recompute task progress",
			zap.String("task_id", taskID),
			zap.Error(err))
	}
}

func (s *AnnotationService) checkVehicleType(ctx context.Context, projectID, vehicleTypeID string) error {
	vt, err := s.vehicleTypes.FindByID(ctx, vehicleTypeID)
	if err != nil {
		return err
	}
	if vt.ProjectID != projectID {
		return repository.ErrNotFound
	}
	return nil
}

// markVehicleTypeUsed 使用标记失败只记日志
func (s *AnnotationService) markVehicleTypeUsed(ctx context.Context, vehicleTypeID *string) {
	if vehicleTypeID == nil {
		return
	}
	if err := s.vehicleTypes.MarkUsed(ctx, *vehicleTypeID, true); err != nil {
		s.logger.Warn("mark vehicle type used",
			zap.String("vehicle_type_id", *vehicleTypeID),
			zap.Error(err))
	}
}
