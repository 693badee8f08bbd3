package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	User        *UserRepository
	Project     *ProjectRepository
	PointCloud  *PointCloudRepository
	Task        *TaskRepository
	Annotation  *AnnotationRepository
	VehicleType *VehicleTypeRepository
	Job         *JobRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Project:     NewProjectRepository(db),
		PointCloud:  NewPointCloudRepository(db),
		Task:        NewTaskRepository(db),
		Annotation:  NewAnnotationRepository(db),
		VehicleType: NewVehicleTypeRepository(db),
		Job:         NewJobRepository(db),
	}
}
