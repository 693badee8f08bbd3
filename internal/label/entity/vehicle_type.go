package entity

import (
	"time"
)

// ProjectVehicleType 项目级车种标签
type ProjectVehicleType struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	ProjectID   string    `json:"project_id" gorm:"size:32;not null;index:idx_vehicle_types_pn,unique"`
	Name        string    `json:"name" gorm:"size:64;not null;index:idx_vehicle_types_pn,unique"`
	DisplayName string    `json:"display_name" gorm:"size:128"`
	Color       string    `json:"color" gorm:"size:16"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	IsUsed      bool      `json:"is_used" gorm:"not null;default:false"`
	CreatedBy   string    `json:"created_by" gorm:"size:32;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ProjectVehicleType) TableName() string {
	return "project_vehicle_types"
}
