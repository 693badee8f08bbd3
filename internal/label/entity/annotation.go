package entity

import (
	"time"
)

// Annotation 单个标注员对单个 (任务, 文件) 的标注
type Annotation struct {
	ID               string     `json:"id" gorm:"primaryKey;size:32"`
	ProjectID        string     `json:"project_id" gorm:"size:32;not null;index"`
	TaskID           string     `json:"task_id" gorm:"size:32;not null;index"`
	PointCloudFileID string     `json:"pointcloud_file_id" gorm:"size:32;not null;index"`
	AnnotatorID      string     `json:"annotator_id" gorm:"size:32;not null;index"`
	VehicleTypeID    *string    `json:"vehicle_type_id" gorm:"size:32"`
	Confidence       *float64   `json:"confidence"`
	Notes            string     `json:"notes" gorm:"type:text"`
	ExtraData        JSONB      `json:"extra_data" gorm:"type:jsonb"`
	Status           string     `json:"status" gorm:"size:16;not null;default:draft;index"`
	StartedAt        time.Time  `json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	TimeSpent        int        `json:"time_spent" gorm:"not null;default:0"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// 关联
	Task        *Task               `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	File        *PointCloudFile     `json:"file,omitempty" gorm:"foreignKey:PointCloudFileID"`
	Annotator   *User               `json:"annotator,omitempty" gorm:"foreignKey:AnnotatorID"`
	VehicleType *ProjectVehicleType `json:"vehicle_type,omitempty" gorm:"foreignKey:VehicleTypeID"`
	Reviews     []AnnotationReview  `json:"reviews,omitempty" gorm:"foreignKey:AnnotationID"`
}

func (Annotation) TableName() string {
	return "annotations"
}

// AnnotationReview 审核记录（只追加，历史不可删）
type AnnotationReview struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	ProjectID    string    `json:"project_id" gorm:"size:32;not null;index"`
	AnnotationID string    `json:"annotation_id" gorm:"size:32;not null;index"`
	ReviewerID   string    `json:"reviewer_id" gorm:"size:32;not null"`
	Status       string    `json:"status" gorm:"size:16;not null"`
	Comments     string    `json:"comments" gorm:"type:text"`
	Rating       *int      `json:"rating"`
	ReviewedAt   time.Time `json:"reviewed_at"`
	CreatedAt    time.Time `json:"created_at"`

	// 关联
	Reviewer *User `json:"reviewer,omitempty" gorm:"foreignKey:ReviewerID"`
}

func (AnnotationReview) TableName() string {
	return "annotation_reviews"
}

// AnnotationStatus 标注状态
const (
	AnnotationStatusDraft         = "draft"
	AnnotationStatusSubmitted     = "submitted"
	AnnotationStatusApproved      = "approved"
	AnnotationStatusRejected      = "rejected"
	AnnotationStatusNeedsRevision = "needs_revision"
)

// ReviewStatus 审核结论，与标注状态 1:1 映射
const (
	ReviewStatusApproved      = "approved"
	ReviewStatusRejected      = "rejected"
	ReviewStatusNeedsRevision = "needs_revision"
)
