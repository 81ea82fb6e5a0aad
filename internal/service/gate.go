package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/precasttrack/backend/internal/audit"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/internal/sse"
	"gorm.io/gorm"
)

// GateService decides whether a unit may complete an activity and spawns
// checkpoints when progress reaches an inspection-gating step. Auto-creation
// is idempotent: a redis lock narrows the race window between concurrent
// progress events and the (unit, code) unique index closes it; a duplicate
// insert is detected and the existing checkpoint reused.
type GateService struct {
	db          *gorm.DB
	rdb         *redis.Client
	checkpoints *CheckpointService
	auditor     *audit.Recorder
	hub         *sse.Hub
}

func NewGateService(db *gorm.DB, rdb *redis.Client, checkpoints *CheckpointService, auditor *audit.Recorder) *GateService {
	return &GateService{db: db, rdb: rdb, checkpoints: checkpoints, auditor: auditor}
}

func (s *GateService) SetHub(h *sse.Hub) { s.hub = h }

// GateDecision is the normal, expected answer to "can this activity be
// completed" — a blocked gate is not an error.
type GateDecision struct {
	Allowed       bool     `json:"allowed"`
	BlockingCodes []string `json:"blocking_codes,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

// CanCompleteActivity is true iff every inspection gate at or before the
// activity's sequence is satisfied. A gate is satisfied when its most recent
// checkpoint (reinspections included) is Approved or ConditionallyApproved;
// a gate with no checkpoint at all blocks.
func (s *GateService) CanCompleteActivity(unitID, activityID uint) (GateDecision, error) {
	var unit model.Unit
	if err := s.db.First(&unit, unitID).Error; err != nil {
		return GateDecision{}, NotFoundf(CodeUnitNotFound, "unit %d not found", unitID)
	}
	var activity model.Activity
	if err := s.db.First(&activity, activityID).Error; err != nil {
		return GateDecision{}, NotFoundf(CodeActivityNotFound, "activity %d not found", activityID)
	}

	var gates []model.Activity
	if err := s.db.
		Where("requires_inspection = ? AND sequence <= ? AND checkpoint_code <> ''", true, activity.Sequence).
		Order("sequence asc").
		Find(&gates).Error; err != nil {
		return GateDecision{}, err
	}
	if len(gates) == 0 {
		return GateDecision{Allowed: true}, nil
	}

	var checkpoints []model.Checkpoint
	if err := s.db.Where("unit_id = ?", unitID).Order("created_at asc, id asc").Find(&checkpoints).Error; err != nil {
		return GateDecision{}, err
	}

	var blocking []string
	for _, gate := range gates {
		latest := latestForGate(checkpoints, gate.CheckpointCode)
		if latest == nil || !latest.Status.Passed() {
			blocking = append(blocking, gate.CheckpointCode)
		}
	}
	if len(blocking) > 0 {
		return GateDecision{
			Allowed:       false,
			BlockingCodes: blocking,
			Reason:        fmt.Sprintf("checkpoint(s) %s not approved", strings.Join(blocking, ", ")),
		}, nil
	}
	return GateDecision{Allowed: true}, nil
}

// latestForGate picks the newest checkpoint belonging to a gate code,
// counting reinspection rounds (code or code-R<n>).
func latestForGate(checkpoints []model.Checkpoint, gateCode string) *model.Checkpoint {
	var latest *model.Checkpoint
	for i := range checkpoints {
		cp := &checkpoints[i]
		if cp.Code != gateCode && reinspectionBase(cp.Code) != gateCode {
			continue
		}
		if latest == nil || cp.CreatedAt.After(latest.CreatedAt) || (cp.CreatedAt.Equal(latest.CreatedAt) && cp.ID > latest.ID) {
			latest = cp
		}
	}
	return latest
}

type ProgressInput struct {
	UnitID     uint
	ActivityID uint
	Position   string
	RecordedBy uint
}

type ProgressResult struct {
	Progress   *model.UnitProgress `json:"progress"`
	Checkpoint *model.Checkpoint   `json:"checkpoint,omitempty"`
	// CheckpointReused is true when a concurrent or earlier progress event
	// already created the gate's checkpoint.
	CheckpointReused bool `json:"checkpoint_reused"`
}

// OnProgressRecorded upserts the unit's progress record for the activity
// and, when the activity is an inspection gate, makes sure exactly one
// checkpoint exists for it. Re-recording progress at the same gate never
// creates a duplicate.
func (s *GateService) OnProgressRecorded(ctx context.Context, in ProgressInput) (*ProgressResult, error) {
	var unit model.Unit
	if err := s.db.First(&unit, in.UnitID).Error; err != nil {
		return nil, NotFoundf(CodeUnitNotFound, "unit %d not found", in.UnitID)
	}
	var activity model.Activity
	if err := s.db.First(&activity, in.ActivityID).Error; err != nil {
		return nil, NotFoundf(CodeActivityNotFound, "activity %d not found", in.ActivityID)
	}

	progress, err := s.upsertProgress(&unit, &activity, in)
	if err != nil {
		return nil, err
	}

	result := &ProgressResult{Progress: progress}
	if activity.RequiresInspection && activity.CheckpointCode != "" {
		cp, reused, err := s.ensureGateCheckpoint(ctx, &unit, &activity, in)
		if err != nil {
			return nil, err
		}
		result.Checkpoint = cp
		result.CheckpointReused = reused
	}

	if s.hub != nil {
		s.hub.Broadcast(int64(unit.ID), sse.Event{
			Type: "progress.recorded",
			Data: map[string]interface{}{
				"activity_id": activity.ID,
				"sequence":    activity.Sequence,
				"position":    in.Position,
			},
		})
	}
	return result, nil
}

func (s *GateService) upsertProgress(unit *model.Unit, activity *model.Activity, in ProgressInput) (*model.UnitProgress, error) {
	var progress model.UnitProgress
	err := s.db.Where("unit_id = ? AND activity_id = ?", unit.ID, activity.ID).First(&progress).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{"progress_date": time.Now()}
		if in.Position != "" {
			updates["position"] = in.Position
		}
		if progress.Status == model.ProgressNotStarted {
			updates["status"] = model.ProgressInProgress
		}
		if err := s.db.Model(&progress).Updates(updates).Error; err != nil {
			return nil, err
		}
	case err == gorm.ErrRecordNotFound:
		progress = model.UnitProgress{
			UnitID:       unit.ID,
			ActivityID:   activity.ID,
			Status:       model.ProgressInProgress,
			Position:     in.Position,
			RecordedBy:   in.RecordedBy,
			ProgressDate: time.Now(),
		}
		if err := s.db.Create(&progress).Error; err != nil {
			if !isDuplicateKey(err) {
				return nil, err
			}
			// lost the insert race to a concurrent progress event
			if err := s.db.Where("unit_id = ? AND activity_id = ?", unit.ID, activity.ID).First(&progress).Error; err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}

	// Track the furthest activity the unit has reached.
	if unit.CurrentActivityID == nil {
		s.db.Model(unit).Update("current_activity_id", activity.ID)
	} else {
		var current model.Activity
		if err := s.db.First(&current, *unit.CurrentActivityID).Error; err == nil && activity.Sequence > current.Sequence {
			s.db.Model(unit).Update("current_activity_id", activity.ID)
		}
	}

	s.auditor.Record(in.RecordedBy, "progress.record", "unit_progress", progress.ID, nil, progress)
	return &progress, nil
}

func (s *GateService) ensureGateCheckpoint(ctx context.Context, unit *model.Unit, activity *model.Activity, in ProgressInput) (*model.Checkpoint, bool, error) {
	if existing := s.findGateCheckpoint(unit.ID, activity.CheckpointCode); existing != nil {
		return existing, true, nil
	}

	// Best-effort lock so two simultaneous progress events don't both reach
	// the insert. The unique index is the real guarantee.
	if s.rdb != nil {
		key := fmt.Sprintf("gate:lock:%d:%s", unit.ID, activity.CheckpointCode)
		ok, err := s.rdb.SetNX(ctx, key, 1, 10*time.Second).Result()
		if err == nil && !ok {
			if existing := s.findGateCheckpoint(unit.ID, activity.CheckpointCode); existing != nil {
				return existing, true, nil
			}
		}
		defer s.rdb.Del(context.Background(), key)
	}

	activityID := activity.ID
	description := fmt.Sprintf("Auto-created when progress reached %s", activity.Name)
	if in.Position != "" {
		description += fmt.Sprintf(" (position %s)", in.Position)
	}
	cp, err := s.checkpoints.Create(CreateCheckpointInput{
		UnitID:      unit.ID,
		ActivityID:  &activityID,
		Code:        activity.CheckpointCode,
		Name:        fmt.Sprintf("%s inspection (%s)", activity.Name, unit.Code),
		Description: description,
		RequestedBy: in.RecordedBy,
		AutoCreated: true,
	})
	if err != nil {
		// Duplicate-code validation means another progress event won the
		// race; auto-creation is best-effort, so reuse what exists.
		if se, ok := AsError(err); ok && se.Code == CodeDuplicateCode {
			if existing := s.findGateCheckpoint(unit.ID, activity.CheckpointCode); existing != nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}
	return cp, false, nil
}

func (s *GateService) findGateCheckpoint(unitID uint, code string) *model.Checkpoint {
	var cp model.Checkpoint
	err := s.db.
		Where("unit_id = ? AND code = ?", unitID, code).
		Order("created_at desc, id desc").
		First(&cp).Error
	if err != nil {
		return nil
	}
	return &cp
}

// CompleteActivity marks the unit's progress record Completed, but only when
// every gate at or before the activity is satisfied.
func (s *GateService) CompleteActivity(unitID, activityID, actorID uint) (*model.UnitProgress, error) {
	decision, err := s.CanCompleteActivity(unitID, activityID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, InvalidStatef(CodeGateBlocked, "activity blocked: %s", decision.Reason)
	}

	var progress model.UnitProgress
	if err := s.db.Where("unit_id = ? AND activity_id = ?", unitID, activityID).First(&progress).Error; err != nil {
		return nil, NotFoundf(CodeActivityNotFound, "no progress recorded for unit %d activity %d", unitID, activityID)
	}
	if progress.Status == model.ProgressCompleted {
		return &progress, nil
	}

	before := progress
	now := time.Now()
	if err := s.db.Model(&progress).Updates(map[string]interface{}{
		"status":       model.ProgressCompleted,
		"completed_at": now,
	}).Error; err != nil {
		return nil, err
	}

	s.auditor.Record(actorID, "progress.complete", "unit_progress", progress.ID, before, progress)
	if s.hub != nil {
		s.hub.Broadcast(int64(unitID), sse.Event{
			Type: "activity.completed",
			Data: map[string]interface{}{"activity_id": activityID},
		})
	}
	return &progress, nil
}
