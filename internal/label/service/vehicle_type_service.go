package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"go.uber.org/zap"
)

// VehicleTypeService 项目级车种标签服务
type VehicleTypeService struct {
	vehicleTypes *repository.VehicleTypeRepository
	annotations  *repository.AnnotationRepository
	logger       *zap.Logger
}

// NewVehicleTypeService 创建车种标签服务
func NewVehicleTypeService(repos *repository.Repositories, logger *zap.Logger) *VehicleTypeService {
	return &VehicleTypeService{
		vehicleTypes: repos.VehicleType,
		annotations:  repos.Annotation,
		logger:       logger,
	}
}

// CreateVehicleTypeRequest 创建标签请求
type CreateVehicleTypeRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
}

// UpdateVehicleTypeRequest 更新标签请求
type UpdateVehicleTypeRequest struct {
	DisplayName *string `json:"display_name"`
	Color       *string `json:"color"`
	IsActive    *bool   `json:"is_active"`
}

// Create 创建车种标签，名称在项目内唯一
func (s *VehicleTypeService) Create(ctx context.Context, projectID, userID string, req *CreateVehicleTypeRequest) (*entity.ProjectVehicleType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: 标签名称不能为空", ErrValidation)
	}

	existing, err := s.vehicleTypes.ListByProject(ctx, projectID, false)
	if err != nil {
		return nil, fmt.Errorf("查找标签失败: %w", err)
	}
	for _, vt := range existing {
		if strings.EqualFold(vt.Name, name) {
			return nil, fmt.Errorf("%w: 标签 %q 已存在", ErrConflict, name)
		}
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = name
	}
	vt := &entity.ProjectVehicleType{
		ID:          uuid.New().String()[:32],
		ProjectID:   projectID,
		Name:        name,
		DisplayName: displayName,
		Color:       req.Color,
		IsActive:    true,
		CreatedBy:   userID,
	}
	if err := s.vehicleTypes.Create(ctx, vt); err != nil {
		return nil, fmt.Errorf("创建标签失败: %w", err)
	}
	return vt, nil
}

// Get 获取标签详情
func (s *VehicleTypeService) Get(ctx context.Context, projectID, id string) (*entity.ProjectVehicleType, error) {
	vt, err := s.vehicleTypes.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 标签不存在", ErrNotFound)
		}
		return nil, err
	}
	if vt.ProjectID != projectID {
		return nil, fmt.Errorf("%w: 标签不存在", ErrNotFound)
	}
	return vt, nil
}

// List 项目标签列表
func (s *VehicleTypeService) List(ctx context.Context, projectID string, activeOnly bool) ([]entity.ProjectVehicleType, error) {
	return s.vehicleTypes.ListByProject(ctx, projectID, activeOnly)
}

// Update 更新标签。名称不可改，改名会让历史导出无法对齐。
func (s *VehicleTypeService) Update(ctx context.Context, projectID, id string, req *UpdateVehicleTypeRequest) (*entity.ProjectVehicleType, error) {
	vt, err := s.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		vt.DisplayName = *req.DisplayName
	}
	if req.Color != nil {
		vt.Color = *req.Color
	}
	if req.IsActive != nil {
		vt.IsActive = *req.IsActive
	}
	if err := s.vehicleTypes.Update(ctx, vt); err != nil {
		return nil, fmt.Errorf("更新标签失败: %w", err)
	}
	return vt, nil
}

// Delete 删除标签。已被标注引用的标签不可删除，只能停用。
func (s *VehicleTypeService) Delete(ctx context.Context, projectID, id string) error {
	vt, err := s.Get(ctx, projectID, id)
	if err != nil {
		return err
	}
	if vt.IsUsed {
		return fmt.Errorf("%w: 标签已被标注引用，不可删除", ErrConflict)
	}
	// 使用标记可能落后于真实引用，删除前再查一次
	count, err := s.annotations.CountByVehicleType(ctx, id)
	if err != nil {
		return fmt.Errorf("检查标签引用失败: %w", err)
	}
	if count > 0 {
		if err := s.vehicleTypes.MarkUsed(ctx, id, true); err != nil {
			s.logger.Warn("mark vehicle type used", zap.String("vehicle_type_id", id), zap.Error(err))
		}
		return fmt.Errorf("%w: 标签已被标注引用，不可删除", ErrConflict)
	}

	if err := s.vehicleTypes.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除标签失败: %w", err)
	}
	return nil
}
