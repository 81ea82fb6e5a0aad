package service

import (
	"github.com/precasttrack/backend/internal/audit"
	"github.com/precasttrack/backend/internal/model"
	"gorm.io/gorm"
)

// CatalogService manages the reusable checklist library. Catalog items are
// only ever read by the checkpoint workflow; edits here never touch clones
// already attached to checkpoints.
type CatalogService struct {
	db      *gorm.DB
	auditor *audit.Recorder
}

func NewCatalogService(db *gorm.DB, auditor *audit.Recorder) *CatalogService {
	return &CatalogService{db: db, auditor: auditor}
}

type CreateTemplateItemInput struct {
	Category          string
	Sequence          int
	Description       string
	ReferenceDocument string
	DefaultSeverity   model.IssueSeverity
}

func (s *CatalogService) Create(in CreateTemplateItemInput, actorID uint) (*model.ChecklistTemplateItem, error) {
	if in.Category == "" || in.Description == "" {
		return nil, Validationf(CodeBadInput, "category and description are required")
	}
	if in.DefaultSeverity != "" && !in.DefaultSeverity.Valid() {
		return nil, Validationf(CodeBadInput, "invalid default severity %q", in.DefaultSeverity)
	}

	item := &model.ChecklistTemplateItem{
		Category:          in.Category,
		Sequence:          in.Sequence,
		Description:       in.Description,
		ReferenceDocument: in.ReferenceDocument,
		DefaultSeverity:   in.DefaultSeverity,
		IsActive:          true,
	}
	if err := s.db.Create(item).Error; err != nil {
		return nil, err
	}
	s.auditor.Record(actorID, "catalog.create", "checklist_template_item", item.ID, nil, item)
	return item, nil
}

func (s *CatalogService) Get(id uint) (*model.ChecklistTemplateItem, error) {
	var item model.ChecklistTemplateItem
	if err := s.db.First(&item, id).Error; err != nil {
		return nil, NotFoundf(CodeTemplateNotFound, "catalog item %d not found", id)
	}
	return &item, nil
}

func (s *CatalogService) List(category string, activeOnly bool) ([]model.ChecklistTemplateItem, error) {
	query := s.db.Model(&model.ChecklistTemplateItem{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var items []model.ChecklistTemplateItem
	if err := query.Order("category asc, sequence asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Deactivate retires a catalog item from new checkpoints; existing clones
// are unaffected.
func (s *CatalogService) Deactivate(id uint, actorID uint) error {
	item, err := s.Get(id)
	if err != nil {
		return err
	}
	if !item.IsActive {
		return nil
	}
	before := *item
	if err := s.db.Model(item).Update("is_active", false).Error; err != nil {
		return err
	}
	s.auditor.Record(actorID, "catalog.deactivate", "checklist_template_item", item.ID, before, item)
	return nil
}
