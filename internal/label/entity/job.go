package entity

import (
	"time"
)

// Job 后台作业记录（导出/导入/训练），结果持久化为结构化状态
type Job struct {
	ID          string     `json:"id" gorm:"primaryKey;size:32"`
	ProjectID   string     `json:"project_id" gorm:"size:32;not null;index"`
	Type        string     `json:"type" gorm:"size:32;not null"`
	Status      string     `json:"status" gorm:"size:16;not null;default:queued;index"`
	Payload     JSONB      `json:"payload" gorm:"type:jsonb"`
	ResultPath  string     `json:"result_path" gorm:"size:512"`
	ItemCount   int        `json:"item_count" gorm:"not null;default:0"`
	Errors      StringList `json:"errors" gorm:"type:jsonb"`
	Message     string     `json:"message" gorm:"type:text"`
	CreatedBy   string     `json:"created_by" gorm:"size:32;not null"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// JobType 作业类型
const (
	JobTypeExport = "export_dataset"
	JobTypeImport = "import_directory"
	JobTypeTrain  = "train_model"
)

// JobStatus 作业状态
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusPartial   = "partial"
	JobStatusFailed    = "failed"
)
