package entity

import (
	"time"
)

// Task 标注任务实体，聚合一组点云文件
type Task struct {
	ID             string     `json:"id" gorm:"primaryKey;size:32"`
	ProjectID      string     `json:"project_id" gorm:"size:32;not null;index"`
	Name           string     `json:"name" gorm:"size:256;not null"`
	Description    string     `json:"description" gorm:"type:text"`
	Status         string     `json:"status" gorm:"size:16;not null;default:pending;index"`
	Priority       string     `json:"priority" gorm:"size:16;not null;default:medium"`
	Instructions   string     `json:"instructions" gorm:"type:text"`
	MaxAnnotations int        `json:"max_annotations" gorm:"not null;default:3"`
	RequireReview  bool       `json:"require_review" gorm:"not null;default:true"`
	AssignedTo     *string    `json:"assigned_to" gorm:"size:32;index"`
	AssignedAt     *time.Time `json:"assigned_at"`
	DueDate        *time.Time `json:"due_date"`
	CreatedBy      string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// 关联（task_files 显式中间表）
	Files    []PointCloudFile `json:"files,omitempty" gorm:"many2many:task_files;"`
	Assignee *User            `json:"assignee,omitempty" gorm:"foreignKey:AssignedTo"`
	Creator  *User            `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
}

func (Task) TableName() string {
	return "tasks"
}

// TaskFile 任务-文件中间表
type TaskFile struct {
	TaskID           string    `json:"task_id" gorm:"primaryKey;size:32"`
	PointCloudFileID string    `json:"point_cloud_file_id" gorm:"primaryKey;size:32"`
	CreatedAt        time.Time `json:"created_at"`
}

func (TaskFile) TableName() string {
	return "task_files"
}

// TaskStatus 任务状态（聚合器推导，不允许手工设置）
const (
	TaskStatusPending    = "pending"
	TaskStatusAssigned   = "assigned"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusReviewed   = "reviewed"
)

// TaskPriority 任务优先级
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)
