package model

import "time"

// ChecklistTemplateItem is a catalog entry. The catalog is a read-only
// library; checkpoints clone items out of it and the clones evolve
// independently afterwards.
type ChecklistTemplateItem struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	Category          string `gorm:"type:varchar(64);not null;index:idx_category" json:"category"`
	Sequence          int    `gorm:"not null" json:"sequence"`
	Description       string `gorm:"type:text;not null" json:"description"`
	ReferenceDocument string `gorm:"type:varchar(256)" json:"reference_document,omitempty"`
	// DefaultSeverity, when set, overrides the configured default severity
	// for issues auto-created from a Fail against this item.
	DefaultSeverity IssueSeverity `gorm:"type:varchar(16)" json:"default_severity,omitempty"`
	IsActive        bool          `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (ChecklistTemplateItem) TableName() string { return "checklist_template_items" }
