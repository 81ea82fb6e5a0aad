package model

import "time"

// Attachment owner kinds.
const (
	AttachmentOwnerCheckpoint = "checkpoint"
	AttachmentOwnerIssue      = "issue"
	AttachmentOwnerProgress   = "progress"
)

// Attachment holds image reference metadata only; the binary lives in the
// external blob store under StorageKey.
type Attachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerType   string    `gorm:"type:varchar(16);not null;index:idx_attachment_owner,priority:1" json:"owner_type"`
	OwnerID     uint      `gorm:"not null;index:idx_attachment_owner,priority:2" json:"owner_id"`
	StorageKey  string    `gorm:"type:varchar(64);uniqueIndex:idx_storage_key;not null" json:"storage_key"`
	URL         string    `gorm:"type:varchar(512)" json:"url"`
	FileName    string    `gorm:"type:varchar(256)" json:"file_name,omitempty"`
	ContentType string    `gorm:"type:varchar(64)" json:"content_type,omitempty"`
	Sequence    int       `gorm:"default:0" json:"sequence"`
	UploadedBy  uint      `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Attachment) TableName() string { return "attachments" }
