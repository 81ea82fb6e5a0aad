package audit

import (
	"encoding/json"
	"log"

	"github.com/precasttrack/backend/internal/model"
	"gorm.io/gorm"
)

// Recorder writes operation-log rows with before/after snapshots of every
// mutation. It is best-effort: a failed write is logged and never fails the
// mutation it describes.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(userID uint, action, entityType string, entityID uint, before, after interface{}) {
	entry := model.OperationLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     snapshot(before),
		After:      snapshot(after),
	}
	if err := r.db.Create(&entry).Error; err != nil {
		log.Printf("[audit] record %s %s/%d failed: %v", action, entityType, entityID, err)
	}
}

func snapshot(v interface{}) model.JSONMap {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m model.JSONMap
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
