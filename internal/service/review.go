package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/precasttrack/backend/internal/audit"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/internal/notify"
	"github.com/precasttrack/backend/internal/sse"
	"gorm.io/gorm"
)

// ReviewService executes the one-shot review of a pending checkpoint: item
// statuses, verdict derivation, auto-created issues for failing items and
// attachment metadata are committed in a single transaction. The pending →
// final status flip is a guarded UPDATE, so two concurrent reviews of the
// same checkpoint always yield one success and one conflict.
type ReviewService struct {
	db              *gorm.DB
	auditor         *audit.Recorder
	notifier        notify.Notifier
	hub             *sse.Hub
	defaultType     model.IssueType
	defaultSeverity model.IssueSeverity
}

func NewReviewService(db *gorm.DB, auditor *audit.Recorder, defaultType model.IssueType, defaultSeverity model.IssueSeverity) *ReviewService {
	if !defaultType.Valid() {
		defaultType = model.IssueNonConformance
	}
	if !defaultSeverity.Valid() {
		defaultSeverity = model.SeverityMinor
	}
	return &ReviewService{
		db:              db,
		auditor:         auditor,
		notifier:        notify.NoopNotifier{},
		defaultType:     defaultType,
		defaultSeverity: defaultSeverity,
	}
}

func (s *ReviewService) SetNotifier(n notify.Notifier) {
	if n != nil {
		s.notifier = n
	}
}

func (s *ReviewService) SetHub(h *sse.Hub) { s.hub = h }

type ReviewItemInput struct {
	ItemID  uint             `json:"item_id"`
	Status  model.ItemStatus `json:"status"`
	Remarks string           `json:"remarks"`
}

type ReviewAttachmentInput struct {
	URL         string `json:"url"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Sequence    int    `json:"sequence"`
}

type ReviewInput struct {
	CheckpointID   uint
	Items          []ReviewItemInput
	OverallComment string
	InspectorID    uint
	InspectorName  string
	InspectorRole  string
	// ForceStatus lets the reviewer override the mechanical verdict with
	// ConditionallyApproved. Forcing Approved over a failing item is not
	// honored; that combination resolves to Rejected.
	ForceStatus model.CheckpointStatus
	Attachments []ReviewAttachmentInput
}

type ReviewResult struct {
	Checkpoint    *model.Checkpoint
	CreatedIssues []model.QualityIssue
}

func (s *ReviewService) ReviewCheckpoint(in ReviewInput) (*ReviewResult, error) {
	if in.InspectorName == "" {
		return nil, Validationf(CodeBadInput, "inspector name is required")
	}
	switch in.ForceStatus {
	case "", model.CheckpointApproved, model.CheckpointRejected, model.CheckpointConditional:
	default:
		return nil, Validationf(CodeBadInput, "invalid forced status %q", in.ForceStatus)
	}

	var (
		unit    model.Unit
		cp      model.Checkpoint
		issues  []model.QualityIssue
		verdict model.CheckpointStatus
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&cp, in.CheckpointID).Error; err != nil {
			return NotFoundf(CodeCheckpointNotFound, "checkpoint %d not found", in.CheckpointID)
		}
		if cp.Status != model.CheckpointPending {
			return InvalidStatef(CodeCheckpointFinalized, "checkpoint %s already reviewed (%s)", cp.Code, cp.Status)
		}
		if err := tx.First(&unit, cp.UnitID).Error; err != nil {
			return NotFoundf(CodeUnitNotFound, "unit %d not found", cp.UnitID)
		}

		submitted, err := matchItemSets(cp.Items, in.Items)
		if err != nil {
			return err
		}

		failCount := 0
		for _, it := range in.Items {
			if it.Status == model.ItemFail {
				failCount++
			}
		}
		verdict = deriveVerdict(failCount, in.ForceStatus)

		now := time.Now()
		res := tx.Model(&model.Checkpoint{}).
			Where("id = ? AND status = ?", cp.ID, model.CheckpointPending).
			Updates(map[string]interface{}{
				"status":          verdict,
				"approval_date":   now,
				"inspection_date": now,
				"inspector_name":  in.InspectorName,
				"inspector_role":  in.InspectorRole,
				"comments":        in.OverallComment,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return Conflictf(CodeReviewConflict, "checkpoint %s was reviewed concurrently", cp.Code)
		}

		for i := range cp.Items {
			item := &cp.Items[i]
			sub := submitted[item.ID]
			if err := tx.Model(item).Updates(map[string]interface{}{
				"status":  sub.Status,
				"remarks": sub.Remarks,
			}).Error; err != nil {
				return err
			}
			item.Status = sub.Status
			item.Remarks = sub.Remarks
		}

		issues, err = s.createIssuesForFailures(tx, &unit, &cp, in)
		if err != nil {
			return err
		}

		for _, a := range in.Attachments {
			att := model.Attachment{
				OwnerType:   model.AttachmentOwnerCheckpoint,
				OwnerID:     cp.ID,
				StorageKey:  uuid.NewString(),
				URL:         a.URL,
				FileName:    a.FileName,
				ContentType: a.ContentType,
				Sequence:    a.Sequence,
				UploadedBy:  in.InspectorID,
			}
			if err := tx.Create(&att).Error; err != nil {
				return err
			}
		}

		if len(issues) > 0 {
			if err := tx.Model(&model.Unit{}).Where("id = ?", unit.ID).
				Update("open_issue_count", gorm.Expr("open_issue_count + ?", len(issues))).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(in.InspectorID, "checkpoint.review", "checkpoint", cp.ID,
		map[string]interface{}{"status": model.CheckpointPending},
		map[string]interface{}{"status": verdict, "issues_created": len(issues)})

	s.publishReviewed(&unit, &cp, verdict, in, issues)

	final, err := s.reload(cp.ID)
	if err != nil {
		return nil, err
	}
	return &ReviewResult{Checkpoint: final, CreatedIssues: issues}, nil
}

// matchItemSets enforces the no-partial-review rule: the submitted item-id
// set must exactly equal the checkpoint's item-id set, and every submitted
// status must be a final one (pass/fail/na).
func matchItemSets(existing []model.ChecklistItemInstance, submitted []ReviewItemInput) (map[uint]ReviewItemInput, error) {
	byID := make(map[uint]ReviewItemInput, len(submitted))
	for _, it := range submitted {
		if _, dup := byID[it.ItemID]; dup {
			return nil, Validationf(CodeItemSetMismatch, "item %d submitted twice", it.ItemID)
		}
		if it.Status == model.ItemPending || !it.Status.Valid() {
			return nil, Validationf(CodeBadInput, "item %d is missing a final status", it.ItemID)
		}
		byID[it.ItemID] = it
	}

	var missing, unexpected []uint
	known := make(map[uint]bool, len(existing))
	for _, it := range existing {
		known[it.ID] = true
		if _, ok := byID[it.ID]; !ok {
			missing = append(missing, it.ID)
		}
	}
	for id := range byID {
		if !known[id] {
			unexpected = append(unexpected, id)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		sort.Slice(unexpected, func(i, j int) bool { return unexpected[i] < unexpected[j] })
		return nil, Validationf(CodeItemSetMismatch,
			"item set mismatch: missing %v, unexpected %v", missing, unexpected)
	}
	return byID, nil
}

func deriveVerdict(failCount int, force model.CheckpointStatus) model.CheckpointStatus {
	if force == model.CheckpointConditional {
		return model.CheckpointConditional
	}
	if force == model.CheckpointRejected {
		return model.CheckpointRejected
	}
	if failCount > 0 {
		return model.CheckpointRejected
	}
	return model.CheckpointApproved
}

// createIssuesForFailures raises exactly one quality issue per failing item.
// Severity comes from the originating catalog item when it declares one,
// otherwise the configured default. Defects are never silently dropped:
// a forced ConditionallyApproved verdict still records its failures.
func (s *ReviewService) createIssuesForFailures(tx *gorm.DB, unit *model.Unit, cp *model.Checkpoint, in ReviewInput) ([]model.QualityIssue, error) {
	var failing []model.ChecklistItemInstance
	for _, it := range cp.Items {
		if it.Status == model.ItemFail {
			failing = append(failing, it)
		}
	}
	if len(failing) == 0 {
		return nil, nil
	}

	severityByTemplate := map[uint]model.IssueSeverity{}
	var templateIDs []uint
	for _, it := range failing {
		if it.TemplateItemID != nil {
			templateIDs = append(templateIDs, *it.TemplateItemID)
		}
	}
	if len(templateIDs) > 0 {
		var templates []model.ChecklistTemplateItem
		if err := tx.Where("id IN ?", templateIDs).Find(&templates).Error; err != nil {
			return nil, err
		}
		for _, t := range templates {
			if t.DefaultSeverity.Valid() {
				severityByTemplate[t.ID] = t.DefaultSeverity
			}
		}
	}

	issues := make([]model.QualityIssue, 0, len(failing))
	for _, it := range failing {
		severity := s.defaultSeverity
		if it.TemplateItemID != nil {
			if sv, ok := severityByTemplate[*it.TemplateItemID]; ok {
				severity = sv
			}
		}
		desc := fmt.Sprintf("Checklist item failed during %s: %s", cp.Code, it.Description)
		if it.Remarks != "" {
			desc += " (" + it.Remarks + ")"
		}
		itemID := it.ID
		cpID := cp.ID
		issue := model.QualityIssue{
			UnitID:          unit.ID,
			CheckpointID:    &cpID,
			ChecklistItemID: &itemID,
			Type:            s.defaultType,
			Severity:        severity,
			Description:     desc,
			ReportedBy:      in.InspectorID,
			Status:          model.IssueOpen,
		}
		if err := tx.Create(&issue).Error; err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func (s *ReviewService) publishReviewed(unit *model.Unit, cp *model.Checkpoint, verdict model.CheckpointStatus, in ReviewInput, issues []model.QualityIssue) {
	failCount := 0
	for _, it := range in.Items {
		if it.Status == model.ItemFail {
			failCount++
		}
	}

	go s.notifier.NotifyCheckpointReviewed(context.Background(), notify.CheckpointReviewedEvent{
		ProjectID:      unit.ProjectID,
		UnitID:         unit.ID,
		UnitCode:       unit.Code,
		CheckpointID:   cp.ID,
		CheckpointCode: cp.Code,
		Status:         string(verdict),
		StatusCode:     verdict.Code(),
		InspectorName:  in.InspectorName,
		FailedItems:    failCount,
		IssuesCreated:  len(issues),
	})
	for _, issue := range issues {
		ev := notify.IssueCreatedEvent{
			ProjectID:    unit.ProjectID,
			UnitID:       unit.ID,
			UnitCode:     unit.Code,
			IssueID:      issue.ID,
			CheckpointID: issue.CheckpointID,
			Type:         string(issue.Type),
			Severity:     string(issue.Severity),
			Description:  issue.Description,
		}
		go s.notifier.NotifyIssueCreated(context.Background(), ev)
	}

	if s.hub != nil {
		s.hub.Broadcast(int64(unit.ID), sse.Event{
			Type: "checkpoint.reviewed",
			Data: map[string]interface{}{
				"checkpoint_id":  cp.ID,
				"code":           cp.Code,
				"status":         verdict,
				"issues_created": len(issues),
			},
		})
	}
}

func (s *ReviewService) reload(id uint) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	err := s.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sequence asc, id asc") }).
		Preload("Unit").
		First(&cp, id).Error
	if err != nil {
		return nil, err
	}
	return &cp, nil
}
