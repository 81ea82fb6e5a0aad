package model

import (
	"time"

	"gorm.io/gorm"
)

type Project struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Code     string `gorm:"type:varchar(32);uniqueIndex:idx_project_code;not null" json:"code"`
	Name     string `gorm:"type:varchar(128);not null" json:"name"`
	Location string `gorm:"type:varchar(128)" json:"location"`
	Client   string `gorm:"type:varchar(128)" json:"client"`
	// WebhookURL/WebhookToken configure the project's notification endpoint.
	// The token is AES-GCM encrypted at rest.
	WebhookURL   string         `gorm:"type:varchar(512)" json:"webhook_url,omitempty"`
	WebhookToken string         `gorm:"type:varchar(512)" json:"-"`
	Status       string         `gorm:"type:varchar(16);default:active" json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }
