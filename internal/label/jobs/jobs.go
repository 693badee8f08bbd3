// Package jobs 基于 Redis 的后台作业队列。导出、目录导入和模型训练
// 都走队列异步执行，作业进度与结果落在 jobs 表里，队列只负责投递。
// 投递语义是至少一次，处理函数按可重入设计。
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
)

// 作业类型
const (
	TypeExportDataset   = "export:dataset"
	TypeImportDirectory = "import:directory"
	TypeTrainModel      = "train:model"
)

// 队列名称，训练任务单独排队避免饿死轻量作业
const (
	QueueDefault = "default"
	QueueTrain   = "train"
)

// ExportPayload 导出作业参数
type ExportPayload struct {
	JobID     string `json:"job_id"`
	ProjectID string `json:"project_id"`
	BasePath  string `json:"base_path"`
}

// ImportPayload 目录导入作业参数
type ImportPayload struct {
	JobID       string                   `json:"job_id"`
	ProjectID   string                   `json:"project_id"`
	CreatorID   string                   `json:"creator_id"`
	SourcePath  string                   `json:"source_path"`
	Recursive   bool                     `json:"recursive"`
	CreateTasks bool                     `json:"create_tasks"`
	TaskOptions service.BatchTaskOptions `json:"task_options"`
}

// TrainPayload 训练作业参数
type TrainPayload struct {
	JobID       string `json:"job_id"`
	ProjectID   string `json:"project_id"`
	DatasetPath string `json:"dataset_path"`
	Model       string `json:"model"`
	Epochs      int    `json:"epochs"`
}

// NewExportTask 构造导出任务
func NewExportTask(p *ExportPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return asynq.NewTask(TypeExportDataset, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute)), nil
}

// NewImportTask 构造目录导入任务
func NewImportTask(p *ImportPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal import payload: %w", err)
	}
	return asynq.NewTask(TypeImportDirectory, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(2),
		asynq.Timeout(time.Hour)), nil
}

// NewTrainTask 构造训练任务。队列层超时要比训练本身的硬超时宽松，
// 超时控制交给训练子进程管理。
func NewTrainTask(p *TrainPayload, trainTimeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal train payload: %w", err)
	}
	if trainTimeout <= 0 {
		trainTimeout = 4 * time.Hour
	}
	return asynq.NewTask(TypeTrainModel, payload,
		asynq.Queue(QueueTrain),
		asynq.MaxRetry(0),
		asynq.Timeout(trainTimeout+30*time.Minute)), nil
}
