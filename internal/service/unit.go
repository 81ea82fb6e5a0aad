package service

import (
	"github.com/precasttrack/backend/internal/audit"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/pkg/encrypt"
	"gorm.io/gorm"
)

// UnitService covers the supporting unit/activity/project data the gate and
// checkpoint workflows hang off. It stays deliberately thin: the inspection
// core is the interesting part, this is plumbing.
type UnitService struct {
	db      *gorm.DB
	auditor *audit.Recorder
	aesKey  string
}

func NewUnitService(db *gorm.DB, auditor *audit.Recorder, aesKey string) *UnitService {
	return &UnitService{db: db, auditor: auditor, aesKey: aesKey}
}

type CreateProjectInput struct {
	Code     string
	Name     string
	Location string
	Client   string
}

func (s *UnitService) CreateProject(in CreateProjectInput, actorID uint) (*model.Project, error) {
	if in.Code == "" || in.Name == "" {
		return nil, Validationf(CodeBadInput, "project code and name are required")
	}
	project := &model.Project{Code: in.Code, Name: in.Name, Location: in.Location, Client: in.Client, Status: "active"}
	if err := s.db.Create(project).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, Validationf(CodeDuplicateCode, "project code %q already exists", in.Code)
		}
		return nil, err
	}
	s.auditor.Record(actorID, "project.create", "project", project.ID, nil, project)
	return project, nil
}

// SetProjectWebhook stores the project's notification endpoint; the bearer
// token is AES-encrypted before it touches the database.
func (s *UnitService) SetProjectWebhook(projectID uint, url, token string, actorID uint) error {
	var project model.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		return NotFoundf(CodeProjectNotFound, "project %d not found", projectID)
	}

	encrypted := ""
	if token != "" {
		var err error
		encrypted, err = encrypt.AESEncrypt(s.aesKey, token)
		if err != nil {
			return err
		}
	}
	before := project
	if err := s.db.Model(&project).Updates(map[string]interface{}{
		"webhook_url":   url,
		"webhook_token": encrypted,
	}).Error; err != nil {
		return err
	}
	s.auditor.Record(actorID, "project.set_webhook", "project", project.ID,
		map[string]interface{}{"webhook_url": before.WebhookURL},
		map[string]interface{}{"webhook_url": url})
	return nil
}

type CreateUnitInput struct {
	ProjectID uint
	Code      string
	Name      string
	UnitType  string
	Zone      string
}

func (s *UnitService) CreateUnit(in CreateUnitInput, actorID uint) (*model.Unit, error) {
	if in.Code == "" {
		return nil, Validationf(CodeBadInput, "unit code is required")
	}
	var count int64
	s.db.Model(&model.Project{}).Where("id = ?", in.ProjectID).Count(&count)
	if count == 0 {
		return nil, NotFoundf(CodeProjectNotFound, "project %d not found", in.ProjectID)
	}

	unit := &model.Unit{
		ProjectID: in.ProjectID,
		Code:      in.Code,
		Name:      in.Name,
		UnitType:  in.UnitType,
		Zone:      in.Zone,
	}
	if err := s.db.Create(unit).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, Validationf(CodeDuplicateCode, "unit code %q already exists in project %d", in.Code, in.ProjectID)
		}
		return nil, err
	}
	s.auditor.Record(actorID, "unit.create", "unit", unit.ID, nil, unit)
	return unit, nil
}

func (s *UnitService) GetUnit(id uint) (*model.Unit, error) {
	var unit model.Unit
	if err := s.db.Preload("Project").Preload("CurrentActivity").First(&unit, id).Error; err != nil {
		return nil, NotFoundf(CodeUnitNotFound, "unit %d not found", id)
	}
	return &unit, nil
}

func (s *UnitService) ListUnits(projectID uint, page, pageSize int) ([]model.Unit, int64, error) {
	query := s.db.Model(&model.Unit{}).Where("project_id = ?", projectID)

	var total int64
	query.Count(&total)

	var units []model.Unit
	if err := query.Preload("CurrentActivity").
		Order("code asc").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&units).Error; err != nil {
		return nil, 0, err
	}
	return units, total, nil
}

func (s *UnitService) ListProgress(unitID uint) ([]model.UnitProgress, error) {
	var count int64
	s.db.Model(&model.Unit{}).Where("id = ?", unitID).Count(&count)
	if count == 0 {
		return nil, NotFoundf(CodeUnitNotFound, "unit %d not found", unitID)
	}
	var progress []model.UnitProgress
	if err := s.db.Where("unit_id = ?", unitID).
		Preload("Activity").
		Joins("JOIN activities ON activities.id = unit_progress.activity_id").
		Order("activities.sequence asc").
		Find(&progress).Error; err != nil {
		return nil, err
	}
	return progress, nil
}

type CreateActivityInput struct {
	Name               string
	Sequence           int
	Discipline         string
	RequiresInspection bool
	CheckpointCode     string
}

func (s *UnitService) CreateActivity(in CreateActivityInput, actorID uint) (*model.Activity, error) {
	if in.Name == "" || in.Sequence <= 0 {
		return nil, Validationf(CodeBadInput, "activity name and positive sequence are required")
	}
	if in.RequiresInspection && in.CheckpointCode == "" {
		return nil, Validationf(CodeBadInput, "an inspection-gating activity needs a checkpoint code")
	}

	activity := &model.Activity{
		Name:               in.Name,
		Sequence:           in.Sequence,
		Discipline:         in.Discipline,
		RequiresInspection: in.RequiresInspection,
		CheckpointCode:     in.CheckpointCode,
	}
	if err := s.db.Create(activity).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, Validationf(CodeDuplicateCode, "activity sequence %d already used", in.Sequence)
		}
		return nil, err
	}
	s.auditor.Record(actorID, "activity.create", "activity", activity.ID, nil, activity)
	return activity, nil
}

func (s *UnitService) ListActivities() ([]model.Activity, error) {
	var activities []model.Activity
	if err := s.db.Order("sequence asc").Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

// ListAttachments returns image metadata for a checkpoint, issue or
// progress record.
func (s *UnitService) ListAttachments(ownerType string, ownerID uint) ([]model.Attachment, error) {
	switch ownerType {
	case model.AttachmentOwnerCheckpoint, model.AttachmentOwnerIssue, model.AttachmentOwnerProgress:
	default:
		return nil, Validationf(CodeBadInput, "invalid attachment owner type %q", ownerType)
	}
	var attachments []model.Attachment
	if err := s.db.Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("sequence asc, id asc").
		Find(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}
