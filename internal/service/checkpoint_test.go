package service

import (
	"testing"

	"github.com/precasttrack/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckpoint(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckpointService(f.db, f.auditor)

	cp, err := svc.Create(CreateCheckpointInput{
		UnitID:      f.unit.ID,
		Code:        "WIR-1",
		Name:        "Rebar inspection",
		RequestedBy: f.user.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CheckpointPending, cp.Status)
	assert.Equal(t, "WIR-1", cp.Code)
	assert.False(t, cp.RequestedDate.IsZero())

	// no items yet
	loaded, err := svc.Get(cp.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Items)
}

func TestCreateCheckpointUnknownUnit(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckpointService(f.db, f.auditor)

	_, err := svc.Create(CreateCheckpointInput{UnitID: 9999, Code: "WIR-1", Name: "x"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestCreateCheckpointDuplicateCode(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckpointService(f.db, f.auditor)

	_, err := svc.Create(CreateCheckpointInput{UnitID: f.unit.ID, Code: "WIR-1", Name: "first"})
	require.NoError(t, err)

	_, err = svc.Create(CreateCheckpointInput{UnitID: f.unit.ID, Code: "WIR-1", Name: "second"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))

	// same code on a different unit is fine
	other := model.Unit{ProjectID: f.project.ID, Code: "PNL-002"}
	require.NoError(t, f.db.Create(&other).Error)
	_, err = svc.Create(CreateCheckpointInput{UnitID: other.ID, Code: "WIR-1", Name: "other unit"})
	require.NoError(t, err)
}

func TestCloneItems(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckpointService(f.db, f.auditor)
	templateIDs := f.seedTemplates(t, 3)

	cp, err := svc.Create(CreateCheckpointInput{UnitID: f.unit.ID, Code: "WIR-1", Name: "x"})
	require.NoError(t, err)

	// submit out of catalog order; clone must restore it
	items, err := svc.CloneItems(cp.ID, []uint{templateIDs[2], templateIDs[0], templateIDs[1]}, f.user.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, item := range items {
		assert.Equal(t, i+1, item.Sequence)
		assert.Equal(t, model.ItemPending, item.Status)
		require.NotNil(t, item.TemplateItemID)
		assert.Equal(t, templateIDs[i], *item.TemplateItemID)
		assert.Equal(t, cp.ID, item.CheckpointID)
	}
}

func TestCloneItemsRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckpointService(f.db, f.auditor)
	templateIDs := f.seedTemplates(t, 2)

	cp, err := svc.Create(CreateCheckpointInput{UnitID: f.unit.ID, Code: "WIR-1", Name: "x"})
	require.NoError(t, err)

	_, err = svc.CloneItems(cp.ID, []uint{templateIDs[0], templateIDs[0]}, f.user.ID)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
}

func TestCloneItemsUnknownCatalogID(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckpointService(f.db, f.auditor)
	templateIDs := f.seedTemplates(t, 1)

	cp, err := svc.Create(CreateCheckpointInput{UnitID: f.unit.ID, Code: "WIR-1", Name: "x"})
	require.NoError(t, err)

	_, err = svc.CloneItems(cp.ID, []uint{templateIDs[0], 424242}, f.user.ID)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	assert.Contains(t, err.Error(), "424242")
}

func TestCloneItemsCheckpointMissingOrFinalized(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckpointService(f.db, f.auditor)
	templateIDs := f.seedTemplates(t, 1)

	_, err := svc.CloneItems(9999, templateIDs, f.user.ID)
	assert.True(t, IsKind(err, KindNotFound))

	cp, err := svc.Create(CreateCheckpointInput{UnitID: f.unit.ID, Code: "WIR-1", Name: "x"})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&model.Checkpoint{}).Where("id = ?", cp.ID).
		Update("status", model.CheckpointApproved).Error)

	_, err = svc.CloneItems(cp.ID, templateIDs, f.user.ID)
	assert.True(t, IsKind(err, KindInvalidState))
}

func TestUpdateItemOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckpointService(f.db, f.auditor)
	templateIDs := f.seedTemplates(t, 1)

	cp, err := svc.Create(CreateCheckpointInput{UnitID: f.unit.ID, Code: "WIR-1", Name: "x"})
	require.NoError(t, err)
	items, err := svc.CloneItems(cp.ID, templateIDs, f.user.ID)
	require.NoError(t, err)

	desc := "verify cover depth 25mm"
	updated, err := svc.UpdateItem(items[0].ID, UpdateItemInput{Description: &desc}, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)

	require.NoError(t, f.db.Model(&model.Checkpoint{}).Where("id = ?", cp.ID).
		Update("status", model.CheckpointRejected).Error)
	_, err = svc.UpdateItem(items[0].ID, UpdateItemInput{Description: &desc}, f.user.ID)
	assert.True(t, IsKind(err, KindInvalidState))
}

func TestListCheckpointsForUnit(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckpointService(f.db, f.auditor)

	_, err := svc.ListForUnit(9999)
	assert.True(t, IsKind(err, KindNotFound))

	_, err = svc.Create(CreateCheckpointInput{UnitID: f.unit.ID, Code: "WIR-1", Name: "a"})
	require.NoError(t, err)
	_, err = svc.Create(CreateCheckpointInput{UnitID: f.unit.ID, Code: "WIR-2", Name: "b"})
	require.NoError(t, err)

	cps, err := svc.ListForUnit(f.unit.ID)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, "WIR-1", cps[0].Code)
	assert.Equal(t, "WIR-2", cps[1].Code)
}

func TestCreateReinspection(t *testing.T) {
	f := newFixture(t)
	svc := NewCheckpointService(f.db, f.auditor)
	templateIDs := f.seedTemplates(t, 2)

	cp, err := svc.Create(CreateCheckpointInput{UnitID: f.unit.ID, Code: "WIR-3", Name: "Casting"})
	require.NoError(t, err)
	_, err = svc.CloneItems(cp.ID, templateIDs, f.user.ID)
	require.NoError(t, err)

	// only rejected checkpoints open a new round
	_, err = svc.CreateReinspection(cp.ID, f.user.ID)
	assert.True(t, IsKind(err, KindInvalidState))

	require.NoError(t, f.db.Model(&model.Checkpoint{}).Where("id = ?", cp.ID).
		Updates(map[string]interface{}{"status": model.CheckpointRejected}).Error)
	require.NoError(t, f.db.Model(&model.ChecklistItemInstance{}).
		Where("checkpoint_id = ?", cp.ID).
		Updates(map[string]interface{}{"status": model.ItemFail, "remarks": "cracked"}).Error)

	next, err := svc.CreateReinspection(cp.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "WIR-3-R1", next.Code)
	assert.Equal(t, model.CheckpointPending, next.Status)
	require.Len(t, next.Items, 2)
	for _, item := range next.Items {
		assert.Equal(t, model.ItemPending, item.Status)
		assert.Empty(t, item.Remarks)
	}

	// a second round counts up
	require.NoError(t, f.db.Model(&model.Checkpoint{}).Where("id = ?", next.ID).
		Update("status", model.CheckpointRejected).Error)
	third, err := svc.CreateReinspection(next.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "WIR-3-R2", third.Code)
}
