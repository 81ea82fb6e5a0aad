package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/precasttrack/backend/internal/audit"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/internal/notify"
	"gorm.io/gorm"
)

// CheckpointService owns the checkpoint lifecycle: creation, checklist
// cloning, single-item edits while pending, and reinspection of rejected
// checkpoints. Review itself lives in ReviewService.
type CheckpointService struct {
	db       *gorm.DB
	auditor  *audit.Recorder
	notifier notify.Notifier
}

func NewCheckpointService(db *gorm.DB, auditor *audit.Recorder) *CheckpointService {
	return &CheckpointService{db: db, auditor: auditor, notifier: notify.NoopNotifier{}}
}

func (s *CheckpointService) SetNotifier(n notify.Notifier) {
	if n != nil {
		s.notifier = n
	}
}

type CreateCheckpointInput struct {
	UnitID      uint
	ActivityID  *uint
	Code        string
	Name        string
	Description string
	RequestedBy uint
	AutoCreated bool
}

func (s *CheckpointService) Create(in CreateCheckpointInput) (*model.Checkpoint, error) {
	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" || in.Name == "" {
		return nil, Validationf(CodeBadInput, "code and name are required")
	}

	var unit model.Unit
	if err := s.db.Preload("Project").First(&unit, in.UnitID).Error; err != nil {
		return nil, NotFoundf(CodeUnitNotFound, "unit %d not found", in.UnitID)
	}
	if in.ActivityID != nil {
		var activity model.Activity
		if err := s.db.First(&activity, *in.ActivityID).Error; err != nil {
			return nil, NotFoundf(CodeActivityNotFound, "activity %d not found", *in.ActivityID)
		}
	}

	var count int64
	s.db.Model(&model.Checkpoint{}).
		Where("unit_id = ? AND code = ?", in.UnitID, in.Code).
		Count(&count)
	if count > 0 {
		return nil, Validationf(CodeDuplicateCode, "checkpoint code %q already used for unit %d", in.Code, in.UnitID)
	}

	cp := &model.Checkpoint{
		UnitID:        in.UnitID,
		ActivityID:    in.ActivityID,
		Code:          in.Code,
		Name:          in.Name,
		Description:   in.Description,
		RequestedDate: time.Now(),
		RequestedBy:   in.RequestedBy,
		Status:        model.CheckpointPending,
		AutoCreated:   in.AutoCreated,
	}
	if err := s.db.Create(cp).Error; err != nil {
		// The unique index on (unit_id, code) closes the window between the
		// duplicate check and the insert.
		if isDuplicateKey(err) {
			return nil, Validationf(CodeDuplicateCode, "checkpoint code %q already used for unit %d", in.Code, in.UnitID)
		}
		return nil, err
	}

	s.auditor.Record(in.RequestedBy, "checkpoint.create", "checkpoint", cp.ID, nil, cp)
	go s.notifier.NotifyCheckpointCreated(context.Background(), notify.CheckpointCreatedEvent{
		ProjectID:      unit.ProjectID,
		UnitID:         unit.ID,
		UnitCode:       unit.Code,
		CheckpointID:   cp.ID,
		CheckpointCode: cp.Code,
		Name:           cp.Name,
		AutoCreated:    in.AutoCreated,
	})
	return cp, nil
}

// CloneItems copies the selected catalog items into checkpoint-scoped
// checklist instances. Catalog ordering (category, then sequence) is
// preserved; duplicate catalog ids in one call are rejected.
func (s *CheckpointService) CloneItems(checkpointID uint, templateIDs []uint, actorID uint) ([]model.ChecklistItemInstance, error) {
	if len(templateIDs) == 0 {
		return nil, Validationf(CodeBadInput, "no catalog items selected")
	}
	seen := make(map[uint]bool, len(templateIDs))
	for _, id := range templateIDs {
		if seen[id] {
			return nil, Validationf(CodeDuplicateCatalog, "duplicate catalog item id %d", id)
		}
		seen[id] = true
	}

	var cp model.Checkpoint
	if err := s.db.First(&cp, checkpointID).Error; err != nil {
		return nil, NotFoundf(CodeCheckpointNotFound, "checkpoint %d not found", checkpointID)
	}
	if cp.Status != model.CheckpointPending {
		return nil, InvalidStatef(CodeCheckpointFinalized, "checkpoint %s is %s; items can only be added while pending", cp.Code, cp.Status)
	}

	var templates []model.ChecklistTemplateItem
	if err := s.db.Where("id IN ?", templateIDs).Find(&templates).Error; err != nil {
		return nil, err
	}
	if len(templates) != len(templateIDs) {
		found := make(map[uint]bool, len(templates))
		for _, t := range templates {
			found[t.ID] = true
		}
		var missing []uint
		for _, id := range templateIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, Validationf(CodeBadInput, "unknown catalog item ids %v", missing)
	}

	sort.Slice(templates, func(i, j int) bool {
		if templates[i].Category != templates[j].Category {
			return templates[i].Category < templates[j].Category
		}
		return templates[i].Sequence < templates[j].Sequence
	})

	items := make([]model.ChecklistItemInstance, 0, len(templates))
	for _, t := range templates {
		tid := t.ID
		items = append(items, model.ChecklistItemInstance{
			CheckpointID:      cp.ID,
			TemplateItemID:    &tid,
			Description:       t.Description,
			ReferenceDocument: t.ReferenceDocument,
			Status:            model.ItemPending,
			Sequence:          t.Sequence,
		})
	}
	if err := s.db.Create(&items).Error; err != nil {
		return nil, err
	}

	s.auditor.Record(actorID, "checkpoint.clone_items", "checkpoint", cp.ID, nil, map[string]interface{}{
		"template_ids": templateIDs,
		"item_count":   len(items),
	})
	return items, nil
}

type UpdateItemInput struct {
	Description       *string
	ReferenceDocument *string
	Remarks           *string
}

// UpdateItem edits one checklist item's copied text while the checkpoint is
// still pending. Statuses change only through the review action.
func (s *CheckpointService) UpdateItem(itemID uint, in UpdateItemInput, actorID uint) (*model.ChecklistItemInstance, error) {
	var item model.ChecklistItemInstance
	if err := s.db.First(&item, itemID).Error; err != nil {
		return nil, NotFoundf(CodeItemNotFound, "checklist item %d not found", itemID)
	}
	var cp model.Checkpoint
	if err := s.db.First(&cp, item.CheckpointID).Error; err != nil {
		return nil, NotFoundf(CodeCheckpointNotFound, "checkpoint %d not found", item.CheckpointID)
	}
	if cp.Status != model.CheckpointPending {
		return nil, InvalidStatef(CodeCheckpointFinalized, "checkpoint %s is %s; items are read-only", cp.Code, cp.Status)
	}

	before := item
	updates := map[string]interface{}{}
	if in.Description != nil {
		if *in.Description == "" {
			return nil, Validationf(CodeBadInput, "item description cannot be empty")
		}
		updates["description"] = *in.Description
	}
	if in.ReferenceDocument != nil {
		updates["reference_document"] = *in.ReferenceDocument
	}
	if in.Remarks != nil {
		updates["remarks"] = *in.Remarks
	}
	if len(updates) == 0 {
		return &item, nil
	}
	if err := s.db.Model(&item).Updates(updates).Error; err != nil {
		return nil, err
	}

	s.auditor.Record(actorID, "checkpoint.update_item", "checklist_item", item.ID, before, item)
	return &item, nil
}

func (s *CheckpointService) Get(id uint) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	err := s.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sequence asc, id asc") }).
		Preload("Unit").Preload("Activity").
		First(&cp, id).Error
	if err != nil {
		return nil, NotFoundf(CodeCheckpointNotFound, "checkpoint %d not found", id)
	}
	return &cp, nil
}

func (s *CheckpointService) ListForUnit(unitID uint) ([]model.Checkpoint, error) {
	var count int64
	s.db.Model(&model.Unit{}).Where("id = ?", unitID).Count(&count)
	if count == 0 {
		return nil, NotFoundf(CodeUnitNotFound, "unit %d not found", unitID)
	}
	var cps []model.Checkpoint
	if err := s.db.Where("unit_id = ?", unitID).
		Preload("Activity").
		Order("created_at asc, id asc").
		Find(&cps).Error; err != nil {
		return nil, err
	}
	return cps, nil
}

// CreateReinspection opens a fresh pending checkpoint from a rejected one.
// Rejection is terminal, so a second inspection round is always a new
// checkpoint carrying an -R<n> code suffix with all items reset.
func (s *CheckpointService) CreateReinspection(checkpointID uint, requestedBy uint) (*model.Checkpoint, error) {
	src, err := s.Get(checkpointID)
	if err != nil {
		return nil, err
	}
	if src.Status != model.CheckpointRejected {
		return nil, InvalidStatef(CodeCheckpointFinalized, "checkpoint %s is %s; only rejected checkpoints can be reinspected", src.Code, src.Status)
	}

	base := reinspectionBase(src.Code)
	var round int64
	s.db.Model(&model.Checkpoint{}).
		Where("unit_id = ? AND (code = ? OR code LIKE ?)", src.UnitID, base, base+"-R%").
		Count(&round)

	cp, err := s.Create(CreateCheckpointInput{
		UnitID:      src.UnitID,
		ActivityID:  src.ActivityID,
		Code:        fmt.Sprintf("%s-R%d", base, round),
		Name:        src.Name,
		Description: src.Description,
		RequestedBy: requestedBy,
	})
	if err != nil {
		return nil, err
	}

	if len(src.Items) > 0 {
		items := make([]model.ChecklistItemInstance, 0, len(src.Items))
		for _, it := range src.Items {
			items = append(items, model.ChecklistItemInstance{
				CheckpointID:      cp.ID,
				TemplateItemID:    it.TemplateItemID,
				Description:       it.Description,
				ReferenceDocument: it.ReferenceDocument,
				Status:            model.ItemPending,
				Sequence:          it.Sequence,
			})
		}
		if err := s.db.Create(&items).Error; err != nil {
			return nil, err
		}
	}

	s.auditor.Record(requestedBy, "checkpoint.reinspect", "checkpoint", cp.ID, src, cp)
	return s.Get(cp.ID)
}

func reinspectionBase(code string) string {
	if i := strings.LastIndex(code, "-R"); i > 0 {
		round := code[i+2:]
		if round != "" && strings.IndexFunc(round, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
			return code[:i]
		}
	}
	return code
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
