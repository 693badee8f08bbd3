package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/qwertyboy0325/etc-all/internal/config"
	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
	"go.uber.org/zap"
)

// Worker 作业执行器，封装 asynq 服务端与各类型处理函数
type Worker struct {
	srv      *asynq.Server
	services *service.Services
	jobs     *repository.JobRepository
	cfg      *config.Config
	logger   *zap.Logger
}

// NewWorker 创建作业执行器
func NewWorker(services *service.Services, jobs *repository.JobRepository, cfg *config.Config, logger *zap.Logger) *Worker {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				QueueDefault: 5,
				// 训练任务长时间占用，单独低权重排队
				QueueTrain: 1,
			},
		},
	)
	return &Worker{srv: srv, services: services, jobs: jobs, cfg: cfg, logger: logger}
}

// Run 启动作业执行器，阻塞直到 Shutdown
func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeExportDataset, w.HandleExport)
	mux.HandleFunc(TypeImportDirectory, w.HandleImport)
	mux.HandleFunc(TypeTrainModel, w.HandleTrain)
	return w.srv.Run(mux)
}

// Shutdown 优雅停止
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

// HandleExport 执行数据集导出作业
func (w *Worker) HandleExport(ctx context.Context, t *asynq.Task) error {
	var p ExportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal export payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.jobs.MarkRunning(ctx, p.JobID); err != nil {
		return err
	}

	result, err := w.services.Export.Export(ctx, p.ProjectID, p.BasePath)
	if err != nil {
		w.finish(ctx, p.JobID, entity.JobStatusFailed, "", err.Error(), 0, nil)
		return err
	}

	w.finish(ctx, p.JobID, result.Status, result.ExportDir, "", result.Exported, result.Errors)
	w.logger.Info("export job done",
		zap.String("job_id", p.JobID),
		zap.String("project_id", p.ProjectID),
		zap.Int("exported", result.Exported),
		zap.Int("errors", len(result.Errors)))
	return nil
}

// HandleImport 执行目录导入作业：扫描本地目录逐个导入点云，
// 可选为导入成功的文件批量建任务。
func (w *Worker) HandleImport(ctx context.Context, t *asynq.Task) error {
	var p ImportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal import payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.jobs.MarkRunning(ctx, p.JobID); err != nil {
		return err
	}

	paths, err := w.scanDirectory(p.SourcePath, p.Recursive)
	if err != nil {
		w.finish(ctx, p.JobID, entity.JobStatusFailed, "", err.Error(), 0, nil)
		return fmt.Errorf("scan %s: %v: %w", p.SourcePath, err, asynq.SkipRetry)
	}

	var fileIDs []string
	var importErrs []string
	for _, path := range paths {
		file, err := w.services.Upload.ImportLocalFile(ctx, p.ProjectID, p.CreatorID, path)
		if err != nil {
			importErrs = append(importErrs, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		fileIDs = append(fileIDs, file.ID)
	}

	if p.CreateTasks && len(fileIDs) > 0 {
		_, err := w.services.Task.CreateBatch(ctx, p.ProjectID, p.CreatorID, &service.CreateBatchRequest{
			FileIDs: fileIDs,
			Options: p.TaskOptions,
		})
		if err != nil {
			importErrs = append(importErrs, fmt.Sprintf("create tasks: %v", err))
		}
	}

	status := entity.JobStatusCompleted
	switch {
	case len(fileIDs) == 0 && len(importErrs) > 0:
		status = entity.JobStatusFailed
	case len(importErrs) > 0:
		status = entity.JobStatusPartial
	}
	w.finish(ctx, p.JobID, status, p.SourcePath, "", len(fileIDs), importErrs)
	w.logger.Info("import job done",
		zap.String("job_id", p.JobID),
		zap.String("project_id", p.ProjectID),
		zap.Int("imported", len(fileIDs)),
		zap.Int("errors", len(importErrs)))
	return nil
}

// HandleTrain 执行模型训练作业
func (w *Worker) HandleTrain(ctx context.Context, t *asynq.Task) error {
	var p TrainPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal train payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.jobs.MarkRunning(ctx, p.JobID); err != nil {
		return err
	}

	result, err := w.services.Train.Run(ctx, &service.TrainOptions{
		DatasetPath: p.DatasetPath,
		Model:       p.Model,
		Epochs:      p.Epochs,
	})
	if err != nil {
		msg := err.Error()
		if errors.Is(err, service.ErrTimeout) {
			msg = "training timed out"
		}
		w.finish(ctx, p.JobID, entity.JobStatusFailed, "", msg, 0, nil)
		// 训练不重试，失败原因已经落库
		return fmt.Errorf("train: %v: %w", err, asynq.SkipRetry)
	}

	w.finish(ctx, p.JobID, entity.JobStatusCompleted, p.DatasetPath,
		fmt.Sprintf("exit code %d, took %s", result.ExitCode, result.Duration), 0, nil)
	return nil
}

// scanDirectory 按扩展名白名单收集目录下的点云文件，排序保证导入顺序稳定
func (w *Worker) scanDirectory(root string, recursive bool) ([]string, error) {
	allowed := make(map[string]bool, len(w.cfg.Upload.AllowedExtensions))
	for _, ext := range w.cfg.Upload.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if allowed[strings.ToLower(filepath.Ext(d.Name()))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// finish 落库失败只记日志，作业结果不再有别的去处
func (w *Worker) finish(ctx context.Context, jobID, status, resultPath, message string, itemCount int, errs []string) {
	if err := w.jobs.Finish(ctx, jobID, status, resultPath, message, itemCount, errs); err != nil {
		w.logger.Error("finish job record",
			zap.String("job_id", jobID),
			zap.Error(err))
	}
}
