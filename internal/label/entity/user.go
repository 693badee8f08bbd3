package entity

import (
	"time"
)

// User 用户实体
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Username  string    `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:64;not null"`
	Email     string    `json:"email" gorm:"size:128"`
	Status    string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// ProjectMember 项目成员（带项目内角色）
type ProjectMember struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	ProjectID string    `json:"project_id" gorm:"size:32;not null;index:idx_project_members_pu,unique"`
	UserID    string    `json:"user_id" gorm:"size:32;not null;index:idx_project_members_pu,unique"`
	Role      string    `json:"role" gorm:"size:32;not null;default:annotator"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	JoinedAt  time.Time `json:"joined_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}

// ProjectRole 项目角色
const (
	RoleProjectAdmin = "project_admin"
	RoleReviewer     = "reviewer"
	RoleAnnotator    = "annotator"
	RoleViewer       = "viewer"
)
