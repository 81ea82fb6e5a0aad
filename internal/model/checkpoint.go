package model

import "time"

// Checkpoint is one work inspection request (WIR) for one unit. The
// (unit_id, code) unique index doubles as the idempotency guard for
// gate-triggered auto-creation.
type Checkpoint struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	UnitID         uint             `gorm:"not null;uniqueIndex:idx_unit_checkpoint_code,priority:1" json:"unit_id"`
	ActivityID     *uint            `gorm:"index:idx_checkpoint_activity" json:"activity_id"`
	Code           string           `gorm:"type:varchar(32);not null;uniqueIndex:idx_unit_checkpoint_code,priority:2" json:"code"`
	Name           string           `gorm:"type:varchar(128);not null" json:"name"`
	Description    string           `gorm:"type:text" json:"description,omitempty"`
	RequestedDate  time.Time        `json:"requested_date"`
	RequestedBy    uint             `json:"requested_by"`
	InspectionDate *time.Time       `json:"inspection_date"`
	InspectorName  string           `gorm:"type:varchar(64)" json:"inspector_name,omitempty"`
	InspectorRole  string           `gorm:"type:varchar(32)" json:"inspector_role,omitempty"`
	Status         CheckpointStatus `gorm:"type:varchar(32);default:pending;index:idx_checkpoint_status" json:"status"`
	AutoCreated    bool             `gorm:"default:false" json:"auto_created"`
	ApprovalDate   *time.Time       `json:"approval_date"`
	Comments       string           `gorm:"type:text" json:"comments,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	Unit     *Unit                   `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Activity *Activity               `gorm:"foreignKey:ActivityID" json:"activity,omitempty"`
	Items    []ChecklistItemInstance `gorm:"foreignKey:CheckpointID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Checkpoint) TableName() string { return "checkpoints" }

// ChecklistItemInstance is a checkpoint-scoped clone of a catalog item.
// Description and reference document are copied at clone time and editable
// afterwards; TemplateItemID is kept for traceability only.
type ChecklistItemInstance struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	CheckpointID      uint       `gorm:"not null;index:idx_item_checkpoint" json:"checkpoint_id"`
	TemplateItemID    *uint      `json:"template_item_id"`
	Description       string     `gorm:"type:text;not null" json:"description"`
	ReferenceDocument string     `gorm:"type:varchar(256)" json:"reference_document,omitempty"`
	Status            ItemStatus `gorm:"type:varchar(16);default:pending" json:"status"`
	Remarks           string     `gorm:"type:text" json:"remarks,omitempty"`
	Sequence          int        `gorm:"not null" json:"sequence"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (ChecklistItemInstance) TableName() string { return "checklist_item_instances" }
