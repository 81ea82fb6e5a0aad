package notify

import "time"

// CheckpointCreatedEvent is sent when a checkpoint is raised, manually or by
// the progress gate.
type CheckpointCreatedEvent struct {
	ProjectID      uint   `json:"project_id"`
	UnitID         uint   `json:"unit_id"`
	UnitCode       string `json:"unit_code"`
	CheckpointID   uint   `json:"checkpoint_id"`
	CheckpointCode string `json:"checkpoint_code"`
	Name           string `json:"name"`
	AutoCreated    bool   `json:"auto_created"`
}

// CheckpointReviewedEvent is sent after a review transaction commits.
type CheckpointReviewedEvent struct {
	ProjectID      uint   `json:"project_id"`
	UnitID         uint   `json:"unit_id"`
	UnitCode       string `json:"unit_code"`
	CheckpointID   uint   `json:"checkpoint_id"`
	CheckpointCode string `json:"checkpoint_code"`
	Status         string `json:"status"`
	StatusCode     int    `json:"status_code"`
	InspectorName  string `json:"inspector_name"`
	FailedItems    int    `json:"failed_items"`
	IssuesCreated  int    `json:"issues_created"`
}

// IssueCreatedEvent is sent for both manual and auto-created issues.
type IssueCreatedEvent struct {
	ProjectID    uint       `json:"project_id"`
	UnitID       uint       `json:"unit_id"`
	UnitCode     string     `json:"unit_code"`
	IssueID      uint       `json:"issue_id"`
	CheckpointID *uint      `json:"checkpoint_id,omitempty"`
	Type         string     `json:"type"`
	Severity     string     `json:"severity"`
	Description  string     `json:"description"`
	AssignedTo   *uint      `json:"assigned_to,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

// IssueStatusChangedEvent is sent on every issue transition.
type IssueStatusChangedEvent struct {
	ProjectID  uint   `json:"project_id"`
	UnitID     uint   `json:"unit_id"`
	IssueID    uint   `json:"issue_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	StatusCode int    `json:"status_code"`
	ChangedBy  uint   `json:"changed_by"`
}
