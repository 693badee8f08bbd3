package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/qwertyboy0325/etc-all/internal/config"
	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/handler"
	"github.com/qwertyboy0325/etc-all/internal/label/jobs"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
	"github.com/qwertyboy0325/etc-all/internal/label/storage"
	"github.com/qwertyboy0325/etc-all/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting labeld service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := autoMigrate(db); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	// 初始化 Redis
	rdb := initRedis(cfg.Redis)

	// 初始化对象存储
	store, err := storage.NewMinIOStore(
		cfg.MinIO.Endpoint,
		cfg.MinIO.AccessKey,
		cfg.MinIO.SecretKey,
		cfg.MinIO.Bucket,
		cfg.MinIO.UseSSL,
	)
	if err != nil {
		zapLogger.Fatal("Failed to connect to object storage", zap.Error(err))
	}

	// 组装各层
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, store, rdb, cfg, zapLogger)
	enqueuer := jobs.NewEnqueuer(repos.Job, cfg, zapLogger)
	defer enqueuer.Close()
	handlers := handler.NewHandlers(services, repos, enqueuer)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func registerRoutes(router *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": Version})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWT.Secret))

	// 跨项目
	api.GET("/tasks/mine", h.Task.ListMine)

	project := api.Group("/projects/:project_id")
	{
		// 点云文件
		files := project.Group("/files")
		{
			files.POST("", h.File.Upload)
			files.POST("/archive", h.File.UploadArchive)
			files.GET("", h.File.List)
			files.GET("/stats", h.File.Stats)
			files.GET("/:id", h.File.Get)
			files.GET("/:id/download", h.File.Download)
			files.GET("/:id/download-url", h.File.DownloadURL)
			files.POST("/:id/reprocess", h.File.Reprocess)
			files.DELETE("/:id", h.File.Delete)
		}

		// 任务
		tasks := project.Group("/tasks")
		{
			tasks.POST("/batch", h.Task.CreateBatch)
			tasks.GET("", h.Task.List)
			tasks.GET("/:id", h.Task.Get)
			tasks.POST("/:id/assign", h.Task.Assign)
			tasks.GET("/:id/annotations", h.Annotation.ListByTask)
		}

		// 标注
		annotations := project.Group("/annotations")
		{
			annotations.POST("", h.Annotation.Create)
			annotations.GET("/mine", h.Annotation.ListMine)
			annotations.GET("/pending-review", h.Annotation.PendingReview)
			annotations.GET("/:id", h.Annotation.Get)
			annotations.PUT("/:id", h.Annotation.Update)
			annotations.POST("/:id/submit", h.Annotation.Submit)
			annotations.POST("/:id/review", h.Annotation.Review)
			annotations.DELETE("/:id", h.Annotation.Delete)
		}

		// 车种标签
		vehicleTypes := project.Group("/vehicle-types")
		{
			vehicleTypes.POST("", h.VehicleType.Create)
			vehicleTypes.GET("", h.VehicleType.List)
			vehicleTypes.GET("/:id", h.VehicleType.Get)
			vehicleTypes.PUT("/:id", h.VehicleType.Update)
			vehicleTypes.DELETE("/:id", h.VehicleType.Delete)
		}

		// 后台作业
		project.POST("/export", h.Job.Export)
		project.POST("/import", h.Job.Import)
		project.POST("/train", h.Job.Train)
		project.GET("/jobs", h.Job.List)
		project.GET("/jobs/:id", h.Job.Get)
	}
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Project{},
		&entity.ProjectMember{},
		&entity.PointCloudFile{},
		&entity.Task{},
		&entity.TaskFile{},
		&entity.Annotation{},
		&entity.AnnotationReview{},
		&entity.ProjectVehicleType{},
		&entity.Job{},
	)
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
