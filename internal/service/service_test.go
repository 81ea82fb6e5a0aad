package service

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/precasttrack/backend/internal/audit"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/internal/notify"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection so every session sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Project{},
		&model.Unit{},
		&model.Activity{},
		&model.UnitProgress{},
		&model.ChecklistTemplateItem{},
		&model.Checkpoint{},
		&model.ChecklistItemInstance{},
		&model.QualityIssue{},
		&model.IssueComment{},
		&model.Attachment{},
		&model.OperationLog{},
	))
	return db
}

type fixture struct {
	db      *gorm.DB
	auditor *audit.Recorder
	project model.Project
	unit    model.Unit
	user    model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db, auditor: audit.NewRecorder(db)}

	f.project = model.Project{Code: "PRJ-1", Name: "Harbor Towers", Status: "active"}
	require.NoError(t, db.Create(&f.project).Error)

	f.unit = model.Unit{ProjectID: f.project.ID, Code: "PNL-001", Name: "Facade panel 1", UnitType: "panel"}
	require.NoError(t, db.Create(&f.unit).Error)

	f.user = model.User{Email: "qc@example.com", PasswordHash: "x", Name: "Dana", Role: model.RoleQC, Status: 1}
	require.NoError(t, db.Create(&f.user).Error)

	return f
}

func (f *fixture) seedTemplates(t *testing.T, n int) []uint {
	t.Helper()
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		item := model.ChecklistTemplateItem{
			Category:    "dimensional",
			Sequence:    i + 1,
			Description: "check " + string(rune('A'+i)),
			IsActive:    true,
		}
		require.NoError(t, f.db.Create(&item).Error)
		ids = append(ids, item.ID)
	}
	return ids
}

func (f *fixture) seedActivity(t *testing.T, seq int, gating bool, code string) model.Activity {
	t.Helper()
	a := model.Activity{
		Name:               "activity",
		Sequence:           seq,
		RequiresInspection: gating,
		CheckpointCode:     code,
	}
	require.NoError(t, f.db.Create(&a).Error)
	return a
}

// fakeNotifier records events for assertions. Services call it from
// goroutines, so everything is behind the mutex.
type fakeNotifier struct {
	mu            sync.Mutex
	reviewed      []notify.CheckpointReviewedEvent
	created       []notify.CheckpointCreatedEvent
	issues        []notify.IssueCreatedEvent
	statusChanges []notify.IssueStatusChangedEvent
}

func (f *fakeNotifier) NotifyCheckpointCreated(_ context.Context, e notify.CheckpointCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, e)
	return nil
}

func (f *fakeNotifier) NotifyCheckpointReviewed(_ context.Context, e notify.CheckpointReviewedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviewed = append(f.reviewed, e)
	return nil
}

func (f *fakeNotifier) NotifyIssueCreated(_ context.Context, e notify.IssueCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues = append(f.issues, e)
	return nil
}

func (f *fakeNotifier) NotifyIssueStatusChanged(_ context.Context, e notify.IssueStatusChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusChanges = append(f.statusChanges, e)
	return nil
}

func (f *fakeNotifier) reviewedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reviewed)
}
