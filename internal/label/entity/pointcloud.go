package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// BoundingBox 点云包围盒（前三列 x/y/z 的逐轴极值）
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
	MinZ float64 `json:"min_z"`
	MaxZ float64 `json:"max_z"`
}

func (b BoundingBox) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *BoundingBox) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, b)
}

// PointCloudFile 点云文件实体
type PointCloudFile struct {
	ID               string       `json:"id" gorm:"primaryKey;size:32"`
	ProjectID        string       `json:"project_id" gorm:"size:32;not null;index"`
	Filename         string       `json:"filename" gorm:"size:256;not null"`
	OriginalFilename string       `json:"original_filename" gorm:"size:256;not null"`
	FilePath         string       `json:"file_path" gorm:"size:512;not null"`
	FileSize         int64        `json:"file_size" gorm:"not null"`
	FileExtension    string       `json:"file_extension" gorm:"size:16;not null"`
	MimeType         string       `json:"mime_type" gorm:"size:128"`
	Checksum         string       `json:"checksum" gorm:"size:64;index"`
	Status           string       `json:"status" gorm:"size:16;not null;default:uploading;index"`
	PointCount       *int         `json:"point_count"`
	Dimensions       *int         `json:"dimensions"`
	BoundingBox      *BoundingBox `json:"bounding_box" gorm:"type:jsonb"`
	ErrorMessage     string       `json:"error_message" gorm:"type:text"`
	UploadedBy       string       `json:"uploaded_by" gorm:"size:32;not null"`
	UploadStartedAt  *time.Time   `json:"upload_started_at"`
	UploadEndedAt    *time.Time   `json:"upload_ended_at"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`

	// 关联
	Uploader *User `json:"uploader,omitempty" gorm:"foreignKey:UploadedBy"`
}

func (PointCloudFile) TableName() string {
	return "pointcloud_files"
}

// FileStatus 文件状态
const (
	FileStatusUploading  = "uploading"
	FileStatusUploaded   = "uploaded"
	FileStatusProcessing = "processing"
	FileStatusProcessed  = "processed"
	FileStatusFailed     = "failed"
	FileStatusDeleted    = "deleted"
)

// MarkUploaded 上传完成
func (f *PointCloudFile) MarkUploaded() {
	now := time.Now()
	f.Status = FileStatusUploaded
	f.UploadEndedAt = &now
}

// MarkProcessed 解析完成
func (f *PointCloudFile) MarkProcessed() {
	f.Status = FileStatusProcessed
}

// MarkFailed 处理失败，保留错误信息
func (f *PointCloudFile) MarkFailed(msg string) {
	f.Status = FileStatusFailed
	f.ErrorMessage = msg
}

// MarkDeleted 软删除（记录保留供审计）
func (f *PointCloudFile) MarkDeleted() {
	f.Status = FileStatusDeleted
}
