package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"type:varchar(128);uniqueIndex:idx_email;not null" json:"email"`
	PasswordHash string         `gorm:"type:varchar(128);not null" json:"-"`
	Name         string         `gorm:"type:varchar(64);not null" json:"name"`
	Role         string         `gorm:"type:varchar(16);not null;default:engineer;index:idx_role" json:"role"`
	IsAdmin      bool           `gorm:"default:false" json:"is_admin"`
	Status       int            `gorm:"default:1" json:"status"`
	LastLoginAt  *time.Time     `json:"last_login_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

// Roles. QC engineers review checkpoints and manage quality issues; site
// engineers record progress and raise inspection requests.
const (
	RoleQC       = "qc"
	RoleEngineer = "engineer"
	RoleForeman  = "foreman"
)

type UserBrief struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	IsAdmin bool   `json:"is_admin"`
	Email   string `json:"email,omitempty"`
}

func (u *User) Brief() UserBrief {
	return UserBrief{
		ID:      u.ID,
		Name:    u.Name,
		Role:    u.Role,
		IsAdmin: u.IsAdmin,
		Email:   u.Email,
	}
}
