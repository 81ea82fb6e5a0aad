package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/precasttrack/backend/internal/audit"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/internal/notify"
	"gorm.io/gorm"
)

// IssueService owns quality issues and their threaded discussion. The issue
// lifecycle is strictly forward (Open → InProgress → Resolved → Closed);
// re-opening means raising a new issue.
type IssueService struct {
	db       *gorm.DB
	auditor  *audit.Recorder
	notifier notify.Notifier
}

func NewIssueService(db *gorm.DB, auditor *audit.Recorder) *IssueService {
	return &IssueService{db: db, auditor: auditor, notifier: notify.NoopNotifier{}}
}

func (s *IssueService) SetNotifier(n notify.Notifier) {
	if n != nil {
		s.notifier = n
	}
}

type CreateIssueInput struct {
	UnitID       uint
	CheckpointID *uint
	Type         model.IssueType
	Severity     model.IssueSeverity
	Description  string
	ReportedBy   uint
	AssignedTo   *uint
	DueDate      *time.Time
	Attachments  []ReviewAttachmentInput
}

func (s *IssueService) CreateManualIssue(in CreateIssueInput) (*model.QualityIssue, error) {
	if in.Description == "" {
		return nil, Validationf(CodeBadInput, "description is required")
	}
	if !in.Type.Valid() {
		return nil, Validationf(CodeBadInput, "invalid issue type %q", in.Type)
	}
	if !in.Severity.Valid() {
		return nil, Validationf(CodeBadInput, "invalid severity %q", in.Severity)
	}

	var unit model.Unit
	if err := s.db.First(&unit, in.UnitID).Error; err != nil {
		return nil, NotFoundf(CodeUnitNotFound, "unit %d not found", in.UnitID)
	}
	if in.CheckpointID != nil {
		var cp model.Checkpoint
		if err := s.db.First(&cp, *in.CheckpointID).Error; err != nil {
			return nil, NotFoundf(CodeCheckpointNotFound, "checkpoint %d not found", *in.CheckpointID)
		}
		if cp.UnitID != in.UnitID {
			return nil, Validationf(CodeBadInput, "checkpoint %d belongs to a different unit", *in.CheckpointID)
		}
	}

	issue := &model.QualityIssue{
		UnitID:       in.UnitID,
		CheckpointID: in.CheckpointID,
		Type:         in.Type,
		Severity:     in.Severity,
		Description:  in.Description,
		ReportedBy:   in.ReportedBy,
		AssignedTo:   in.AssignedTo,
		DueDate:      in.DueDate,
		Status:       model.IssueOpen,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(issue).Error; err != nil {
			return err
		}
		for _, a := range in.Attachments {
			att := model.Attachment{
				OwnerType:   model.AttachmentOwnerIssue,
				OwnerID:     issue.ID,
				StorageKey:  uuid.NewString(),
				URL:         a.URL,
				FileName:    a.FileName,
				ContentType: a.ContentType,
				Sequence:    a.Sequence,
				UploadedBy:  in.ReportedBy,
			}
			if err := tx.Create(&att).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.Unit{}).Where("id = ?", in.UnitID).
			Update("open_issue_count", gorm.Expr("open_issue_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(in.ReportedBy, "issue.create", "quality_issue", issue.ID, nil, issue)
	go s.notifier.NotifyIssueCreated(context.Background(), notify.IssueCreatedEvent{
		ProjectID:    unit.ProjectID,
		UnitID:       unit.ID,
		UnitCode:     unit.Code,
		IssueID:      issue.ID,
		CheckpointID: issue.CheckpointID,
		Type:         string(issue.Type),
		Severity:     string(issue.Severity),
		Description:  issue.Description,
		AssignedTo:   issue.AssignedTo,
		DueDate:      issue.DueDate,
	})
	return issue, nil
}

type UpdateIssueStatusInput struct {
	IssueID               uint
	NewStatus             model.IssueStatus
	ResolutionDescription string
	ActorID               uint
	Attachments           []ReviewAttachmentInput
}

func (s *IssueService) UpdateStatus(in UpdateIssueStatusInput) (*model.QualityIssue, error) {
	if !in.NewStatus.Valid() {
		return nil, Validationf(CodeBadInput, "invalid status %q", in.NewStatus)
	}

	var issue model.QualityIssue
	if err := s.db.First(&issue, in.IssueID).Error; err != nil {
		return nil, NotFoundf(CodeIssueNotFound, "issue %d not found", in.IssueID)
	}
	from := issue.Status
	if !from.CanTransitionTo(in.NewStatus) {
		return nil, InvalidStatef(CodeIssueOutOfOrder, "cannot move issue from %s to %s", from, in.NewStatus)
	}
	if in.NewStatus == model.IssueResolved && in.ResolutionDescription == "" {
		return nil, Validationf(CodeBadInput, "resolution description is required to resolve an issue")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": in.NewStatus}
		if in.NewStatus == model.IssueResolved {
			updates["resolution_date"] = time.Now()
			updates["resolution_description"] = in.ResolutionDescription
		}
		// Same guarded-update shape as the review engine: the WHERE on the
		// old status serializes concurrent transitions.
		res := tx.Model(&model.QualityIssue{}).
			Where("id = ? AND status = ?", issue.ID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return Conflictf(CodeReviewConflict, "issue %d was updated concurrently", issue.ID)
		}

		if in.ResolutionDescription != "" {
			comment := model.IssueComment{
				IssueID:        issue.ID,
				AuthorID:       in.ActorID,
				Text:           in.ResolutionDescription,
				IsStatusUpdate: true,
				RelatedStatus:  in.NewStatus,
			}
			if err := tx.Create(&comment).Error; err != nil {
				return err
			}
		}
		for _, a := range in.Attachments {
			att := model.Attachment{
				OwnerType:   model.AttachmentOwnerIssue,
				OwnerID:     issue.ID,
				StorageKey:  uuid.NewString(),
				URL:         a.URL,
				FileName:    a.FileName,
				ContentType: a.ContentType,
				Sequence:    a.Sequence,
				UploadedBy:  in.ActorID,
			}
			if err := tx.Create(&att).Error; err != nil {
				return err
			}
		}

		if !from.Terminal() && in.NewStatus.Terminal() {
			if err := tx.Model(&model.Unit{}).
				Where("id = ? AND open_issue_count > 0", issue.UnitID).
				Update("open_issue_count", gorm.Expr("open_issue_count - 1")).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(in.ActorID, "issue.update_status", "quality_issue", issue.ID,
		map[string]interface{}{"status": from},
		map[string]interface{}{"status": in.NewStatus})
	go s.notifier.NotifyIssueStatusChanged(context.Background(), notify.IssueStatusChangedEvent{
		ProjectID:  s.projectIDForUnit(issue.UnitID),
		UnitID:     issue.UnitID,
		IssueID:    issue.ID,
		FromStatus: string(from),
		ToStatus:   string(in.NewStatus),
		StatusCode: in.NewStatus.Code(),
		ChangedBy:  in.ActorID,
	})

	return s.Get(issue.ID)
}

func (s *IssueService) Get(id uint) (*model.QualityIssue, error) {
	var issue model.QualityIssue
	err := s.db.Preload("Unit").Preload("Checkpoint").Preload("Reporter").Preload("Assignee").
		First(&issue, id).Error
	if err != nil {
		return nil, NotFoundf(CodeIssueNotFound, "issue %d not found", id)
	}
	return &issue, nil
}

func (s *IssueService) ListForUnit(unitID uint, status model.IssueStatus) ([]model.QualityIssue, error) {
	query := s.db.Where("unit_id = ?", unitID)
	if status != "" {
		if !status.Valid() {
			return nil, Validationf(CodeBadInput, "invalid status %q", status)
		}
		query = query.Where("status = ?", status)
	}
	var issues []model.QualityIssue
	if err := query.Preload("Assignee").Order("created_at desc").Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

type AddCommentInput struct {
	IssueID         uint
	ParentCommentID *uint
	AuthorID        uint
	Text            string
	IsStatusUpdate  bool
	RelatedStatus   model.IssueStatus
}

// AddComment appends to the issue's reply tree. A parent id, when given,
// must resolve to an existing comment on the same issue; because a comment
// can only ever point at one created before it, this insert-time check rules
// out cycles without any graph walking.
func (s *IssueService) AddComment(in AddCommentInput) (*model.IssueComment, error) {
	if in.Text == "" {
		return nil, Validationf(CodeBadInput, "comment text is required")
	}
	if in.RelatedStatus != "" && !in.RelatedStatus.Valid() {
		return nil, Validationf(CodeBadInput, "invalid related status %q", in.RelatedStatus)
	}

	var count int64
	s.db.Model(&model.QualityIssue{}).Where("id = ?", in.IssueID).Count(&count)
	if count == 0 {
		return nil, NotFoundf(CodeIssueNotFound, "issue %d not found", in.IssueID)
	}

	if in.ParentCommentID != nil {
		var parent model.IssueComment
		if err := s.db.First(&parent, *in.ParentCommentID).Error; err != nil {
			return nil, Validationf(CodeCrossIssueParent, "parent comment %d not found", *in.ParentCommentID)
		}
		if parent.IssueID != in.IssueID {
			return nil, Validationf(CodeCrossIssueParent, "parent comment %d belongs to issue %d, not %d", parent.ID, parent.IssueID, in.IssueID)
		}
	}

	comment := &model.IssueComment{
		IssueID:         in.IssueID,
		ParentCommentID: in.ParentCommentID,
		AuthorID:        in.AuthorID,
		Text:            in.Text,
		IsStatusUpdate:  in.IsStatusUpdate,
		RelatedStatus:   in.RelatedStatus,
	}
	if err := s.db.Create(comment).Error; err != nil {
		return nil, err
	}
	s.auditor.Record(in.AuthorID, "issue.add_comment", "issue_comment", comment.ID, nil, comment)
	return comment, nil
}

func (s *IssueService) EditComment(commentID, actorID uint, text string) (*model.IssueComment, error) {
	if text == "" {
		return nil, Validationf(CodeBadInput, "comment text is required")
	}
	var comment model.IssueComment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		return nil, NotFoundf(CodeCommentNotFound, "comment %d not found", commentID)
	}
	if comment.AuthorID != actorID {
		return nil, Validationf(CodeNotYourComment, "only the author can edit a comment")
	}
	if comment.IsDeleted {
		return nil, InvalidStatef(CodeCommentDeleted, "comment %d is deleted", commentID)
	}

	before := comment
	if err := s.db.Model(&comment).Update("text", text).Error; err != nil {
		return nil, err
	}
	s.auditor.Record(actorID, "issue.edit_comment", "issue_comment", comment.ID, before, comment)
	return &comment, nil
}

// SoftDeleteComment flags the comment deleted instead of removing the row,
// so replies stay traceable and the audit trail stays intact.
func (s *IssueService) SoftDeleteComment(commentID, actorID uint) error {
	var comment model.IssueComment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		return NotFoundf(CodeCommentNotFound, "comment %d not found", commentID)
	}
	if comment.AuthorID != actorID {
		return Validationf(CodeNotYourComment, "only the author can delete a comment")
	}
	if comment.IsDeleted {
		return nil
	}

	before := comment
	now := time.Now()
	if err := s.db.Model(&comment).Updates(map[string]interface{}{
		"is_deleted":   true,
		"deleted_date": now,
	}).Error; err != nil {
		return err
	}
	s.auditor.Record(actorID, "issue.delete_comment", "issue_comment", comment.ID, before, comment)
	return nil
}

// ListComments returns the issue's comments in creation order. Deleted
// comments are excluded by default but remain queryable for audit.
func (s *IssueService) ListComments(issueID uint, includeDeleted bool) ([]model.IssueComment, error) {
	var count int64
	s.db.Model(&model.QualityIssue{}).Where("id = ?", issueID).Count(&count)
	if count == 0 {
		return nil, NotFoundf(CodeIssueNotFound, "issue %d not found", issueID)
	}

	query := s.db.Where("issue_id = ?", issueID)
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	var comments []model.IssueComment
	if err := query.Preload("Author").Order("created_at asc, id asc").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *IssueService) projectIDForUnit(unitID uint) uint {
	var unit model.Unit
	if err := s.db.First(&unit, unitID).Error; err != nil {
		return 0
	}
	return unit.ProjectID
}
