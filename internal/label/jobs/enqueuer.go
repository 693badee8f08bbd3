package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/qwertyboy0325/etc-all/internal/config"
	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"go.uber.org/zap"
)

// Enqueuer 作业投递器。先落 jobs 表再入队，作业记录是进度查询的
// 唯一入口，队列丢消息时记录停在 queued 可被巡检发现。
type Enqueuer struct {
	client *asynq.Client
	jobs   *repository.JobRepository
	cfg    *config.Config
	logger *zap.Logger
}

// NewEnqueuer 创建作业投递器
func NewEnqueuer(jobs *repository.JobRepository, cfg *config.Config, logger *zap.Logger) *Enqueuer {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &Enqueuer{client: client, jobs: jobs, cfg: cfg, logger: logger}
}

// Close 关闭队列连接
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// EnqueueExport 投递数据集导出作业
func (e *Enqueuer) EnqueueExport(ctx context.Context, projectID, createdBy string) (*entity.Job, error) {
	job := &entity.Job{
		ID:        uuid.New().String()[:32],
		ProjectID: projectID,
		Type:      entity.JobTypeExport,
		Status:    entity.JobStatusQueued,
		CreatedBy: createdBy,
	}

	payload := &ExportPayload{
		JobID:     job.ID,
		ProjectID: projectID,
		BasePath:  e.cfg.Export.DataPath,
	}
	task, err := NewExportTask(payload)
	if err != nil {
		return nil, err
	}

	job.Payload = entity.JSONB{"base_path": payload.BasePath}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("创建作业记录失败: %w", err)
	}
	if err := e.enqueue(ctx, task); err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueImport 投递目录导入作业
func (e *Enqueuer) EnqueueImport(ctx context.Context, p *ImportPayload, createdBy string) (*entity.Job, error) {
	job := &entity.Job{
		ID:        uuid.New().String()[:32],
		ProjectID: p.ProjectID,
		Type:      entity.JobTypeImport,
		Status:    entity.JobStatusQueued,
		Payload: entity.JSONB{
			"source_path":  p.SourcePath,
			"recursive":    p.Recursive,
			"create_tasks": p.CreateTasks,
		},
		CreatedBy: createdBy,
	}
	p.JobID = job.ID
	p.CreatorID = createdBy

	task, err := NewImportTask(p)
	if err != nil {
		return nil, err
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("创建作业记录失败: %w", err)
	}
	if err := e.enqueue(ctx, task); err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueTrain 投递模型训练作业
func (e *Enqueuer) EnqueueTrain(ctx context.Context, p *TrainPayload, createdBy string) (*entity.Job, error) {
	job := &entity.Job{
		ID:        uuid.New().String()[:32],
		ProjectID: p.ProjectID,
		Type:      entity.JobTypeTrain,
		Status:    entity.JobStatusQueued,
		Payload: entity.JSONB{
			"dataset_path": p.DatasetPath,
			"model":        p.Model,
			"epochs":       p.Epochs,
		},
		CreatedBy: createdBy,
	}
	p.JobID = job.ID

	task, err := NewTrainTask(p, e.cfg.Export.TrainTimeout)
	if err != nil {
		return nil, err
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("创建作业记录失败: %w", err)
	}
	if err := e.enqueue(ctx, task); err != nil {
		return nil, err
	}
	return job, nil
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task) error {
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("投递作业失败: %w", err)
	}
	e.logger.Info("job enqueued",
		zap.String("type", task.Type()),
		zap.String("queue", info.Queue),
		zap.String("task_id", info.ID))
	return nil
}
