package model

import (
	"time"

	"gorm.io/gorm"
)

// Unit is a discrete precast deliverable (panel, beam, pod) tracked through
// the ordered activity sequence.
type Unit struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	ProjectID         uint           `gorm:"not null;uniqueIndex:idx_project_unit_code,priority:1" json:"project_id"`
	Code              string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_project_unit_code,priority:2" json:"code"`
	Name              string         `gorm:"type:varchar(128)" json:"name"`
	UnitType          string         `gorm:"type:varchar(32)" json:"unit_type"`
	Zone              string         `gorm:"type:varchar(64)" json:"zone"`
	CurrentActivityID *uint          `json:"current_activity_id"`
	OpenIssueCount    int            `gorm:"default:0" json:"open_issue_count"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	Project         *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	CurrentActivity *Activity `gorm:"foreignKey:CurrentActivityID" json:"current_activity,omitempty"`
}

func (Unit) TableName() string { return "units" }

// Activity is one step of the manufacturing sequence shared by all units.
// RequiresInspection marks the step a gate: completing it needs the
// checkpoint named by CheckpointCode approved for the unit.
type Activity struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Name               string    `gorm:"type:varchar(128);not null" json:"name"`
	Sequence           int       `gorm:"not null;uniqueIndex:idx_activity_seq" json:"sequence"`
	Discipline         string    `gorm:"type:varchar(32)" json:"discipline"`
	RequiresInspection bool      `gorm:"default:false" json:"requires_inspection"`
	CheckpointCode     string    `gorm:"type:varchar(32)" json:"checkpoint_code,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func (Activity) TableName() string { return "activities" }

// UnitProgress records one unit reaching (and eventually completing) one
// activity. Position carries optional casting-bed/stack location metadata
// supplied with the progress event.
type UnitProgress struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UnitID       uint           `gorm:"not null;uniqueIndex:idx_unit_activity,priority:1" json:"unit_id"`
	ActivityID   uint           `gorm:"not null;uniqueIndex:idx_unit_activity,priority:2" json:"activity_id"`
	Status       ProgressStatus `gorm:"type:varchar(16);default:in_progress" json:"status"`
	Position     string         `gorm:"type:varchar(64)" json:"position,omitempty"`
	RecordedBy   uint           `json:"recorded_by"`
	ProgressDate time.Time      `json:"progress_date"`
	CompletedAt  *time.Time     `json:"completed_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	Unit     *Unit     `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Activity *Activity `gorm:"foreignKey:ActivityID" json:"activity,omitempty"`
}

func (UnitProgress) TableName() string { return "unit_progress" }
