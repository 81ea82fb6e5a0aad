package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type JSONMap map[string]interface{}

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	return string(b), err
}

func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	}
	return json.Unmarshal(bytes, j)
}

// OperationLog records before/after snapshots for every mutation so the
// audit collaborator can reconstruct diffs. Written out-of-band by
// internal/audit; this service never reads it back.
type OperationLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index:idx_oplog_user" json:"user_id"`
	Action     string    `gorm:"type:varchar(64);not null" json:"action"`
	EntityType string    `gorm:"type:varchar(32);not null;index:idx_oplog_entity,priority:1" json:"entity_type"`
	EntityID   uint      `gorm:"index:idx_oplog_entity,priority:2" json:"entity_id"`
	Before     JSONMap   `gorm:"type:json" json:"before"`
	After      JSONMap   `gorm:"type:json" json:"after"`
	CreatedAt  time.Time `gorm:"index:idx_oplog_created" json:"created_at"`
}

func (OperationLog) TableName() string { return "operation_logs" }
