package model

import "time"

// QualityIssue is a tracked defect/non-conformance/observation. Issues are
// never deleted, only status-transitioned, and outlive the review event that
// may have spawned them.
type QualityIssue struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	UnitID       uint  `gorm:"not null;index:idx_issue_unit" json:"unit_id"`
	CheckpointID *uint `gorm:"index:idx_issue_checkpoint" json:"checkpoint_id"`
	// ChecklistItemID traces an auto-created issue back to the failing item.
	ChecklistItemID       *uint         `json:"checklist_item_id"`
	Type                  IssueType     `gorm:"type:varchar(32);not null" json:"type"`
	Severity              IssueSeverity `gorm:"type:varchar(16);not null" json:"severity"`
	Description           string        `gorm:"type:text;not null" json:"description"`
	ReportedBy            uint          `json:"reported_by"`
	AssignedTo            *uint         `gorm:"index:idx_issue_assignee" json:"assigned_to"`
	DueDate               *time.Time    `json:"due_date"`
	Status                IssueStatus   `gorm:"type:varchar(16);default:open;index:idx_issue_status" json:"status"`
	ResolutionDate        *time.Time    `json:"resolution_date"`
	ResolutionDescription string        `gorm:"type:text" json:"resolution_description,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`

	Unit       *Unit       `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Checkpoint *Checkpoint `gorm:"foreignKey:CheckpointID" json:"checkpoint,omitempty"`
	Reporter   *User       `gorm:"foreignKey:ReportedBy" json:"reporter,omitempty"`
	Assignee   *User       `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
}

func (QualityIssue) TableName() string { return "quality_issues" }

// IsOverdue is derived, never persisted.
func (i *QualityIssue) IsOverdue(now time.Time) bool {
	if i.DueDate == nil || i.Status.Terminal() {
		return false
	}
	return i.DueDate.Before(truncateToDay(now))
}

func (i *QualityIssue) OverdueDays(now time.Time) int {
	if !i.IsOverdue(now) {
		return 0
	}
	return int(truncateToDay(now).Sub(truncateToDay(*i.DueDate)).Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IssueComment is a threaded note on a quality issue. ParentCommentID forms
// the reply tree; a parent must belong to the same issue. Soft-deleted
// comments stay in place so replies remain traceable.
type IssueComment struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	IssueID         uint   `gorm:"not null;index:idx_comment_issue" json:"issue_id"`
	ParentCommentID *uint  `json:"parent_comment_id"`
	AuthorID        uint   `gorm:"not null" json:"author_id"`
	Text            string `gorm:"type:text;not null" json:"text"`
	// IsStatusUpdate marks comments generated alongside a status transition;
	// RelatedStatus records the status they accompanied.
	IsStatusUpdate bool        `gorm:"default:false" json:"is_status_update"`
	RelatedStatus  IssueStatus `gorm:"type:varchar(16)" json:"related_status,omitempty"`
	IsDeleted      bool        `gorm:"default:false;index:idx_comment_deleted" json:"is_deleted"`
	DeletedDate    *time.Time  `json:"deleted_date,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

func (IssueComment) TableName() string { return "issue_comments" }
