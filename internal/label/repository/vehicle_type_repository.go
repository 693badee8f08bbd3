package repository

import (
	"context"
	"errors"

	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"gorm.io/gorm"
)

// VehicleTypeRepository 车种标签仓库
type VehicleTypeRepository struct {
	db *gorm.DB
}

// NewVehicleTypeRepository 创建车种标签仓库
func NewVehicleTypeRepository(db *gorm.DB) *VehicleTypeRepository {
	return &VehicleTypeRepository{db: db}
}

// FindByID 根据ID查找标签
func (r *VehicleTypeRepository) FindByID(ctx context.Context, id string) (*entity.ProjectVehicleType, error) {
	var vt entity.ProjectVehicleType
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&vt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vt, nil
}

// Create 创建标签
func (r *VehicleTypeRepository) Create(ctx context.Context, vt *entity.ProjectVehicleType) error {
	return r.db.WithContext(ctx).Create(vt).Error
}

// Update 更新标签
func (r *VehicleTypeRepository) Update(ctx context.Context, vt *entity.ProjectVehicleType) error {
	return r.db.WithContext(ctx).Save(vt).Error
}

// Delete 删除标签
func (r *VehicleTypeRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.ProjectVehicleType{}).Error
}

// ListByProject 项目标签列表
func (r *VehicleTypeRepository) ListByProject(ctx context.Context, projectID string, activeOnly bool) ([]entity.ProjectVehicleType, error) {
	var vts []entity.ProjectVehicleType
	query := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if activeOnly {
		query = query.Where("is_active = true")
	}
	err := query.Order("name ASC").Find(&vts).Error
	return vts, err
}

// MarkUsed 更新标签使用标记
func (r *VehicleTypeRepository) MarkUsed(ctx context.Context, id string, used bool) error {
	return r.db.WithContext(ctx).
		Model(&entity.ProjectVehicleType{}).
		Where("id = ?", id).
		Update("is_used", used).Error
}
