// Package service 标注平台业务逻辑层。所有可预期的失败都归入下面的
// 哨兵错误，handler 层据此映射 HTTP 状态码。
package service

import (
	"errors"

	"github.com/qwertyboy0325/etc-all/internal/config"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 业务错误哨兵
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("resource not found")
	ErrPermission = errors.New("permission denied")
	ErrConflict   = errors.New("state conflict")
	ErrStorage    = errors.New("storage failure")
	ErrAnalysis   = errors.New("analysis failure")
	ErrTimeout    = errors.New("operation timed out")
	ErrGone       = errors.New("resource deleted")
)

// Services 服务集合
type Services struct {
	Upload      *UploadService
	Annotation  *AnnotationService
	Task        *TaskService
	VehicleType *VehicleTypeService
	Export      *ExportService
	Train       *TrainService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, store storage.ObjectStore, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	annotationSvc := NewAnnotationService(db, repos, logger)

	return &Services{
		Upload:      NewUploadService(repos, store, rdb, cfg, logger),
		Annotation:  annotationSvc,
		Task:        NewTaskService(repos, logger),
		VehicleType: NewVehicleTypeService(repos, logger),
		Export:      NewExportService(repos, store, logger),
		Train:       NewTrainService(cfg, logger),
	}
}
