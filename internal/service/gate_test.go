package service

import (
	"context"
	"testing"

	"github.com/precasttrack/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateFixture struct {
	*fixture
	checkpoints *CheckpointService
	reviews     *ReviewService
	gates       *GateService
}

// newGateFixture seeds a three-step routing: rebar (gated by WIR-1),
// casting (gated by WIR-2), finishing (ungated).
func newGateFixture(t *testing.T) (*gateFixture, []model.Activity) {
	t.Helper()
	f := newFixture(t)
	checkpoints := NewCheckpointService(f.db, f.auditor)
	gf := &gateFixture{
		fixture:     f,
		checkpoints: checkpoints,
		reviews:     NewReviewService(f.db, f.auditor, model.IssueNonConformance, model.SeverityMinor),
		gates:       NewGateService(f.db, nil, checkpoints, f.auditor),
	}
	activities := []model.Activity{
		f.seedActivity(t, 1, true, "WIR-1"),
		f.seedActivity(t, 2, true, "WIR-2"),
		f.seedActivity(t, 3, false, ""),
	}
	return gf, activities
}

func (gf *gateFixture) approve(t *testing.T, cp *model.Checkpoint) {
	t.Helper()
	_, err := gf.reviews.ReviewCheckpoint(ReviewInput{CheckpointID: cp.ID, InspectorName: "Dana"})
	require.NoError(t, err)
}

func (gf *gateFixture) reject(t *testing.T, cp *model.Checkpoint) {
	t.Helper()
	_, err := gf.reviews.ReviewCheckpoint(ReviewInput{
		CheckpointID: cp.ID, ForceStatus: model.CheckpointRejected, InspectorName: "Dana",
	})
	require.NoError(t, err)
}

func TestGateBlocksWithoutCheckpoint(t *testing.T) {
	gf, acts := newGateFixture(t)

	decision, err := gf.gates.CanCompleteActivity(gf.unit.ID, acts[0].ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, []string{"WIR-1"}, decision.BlockingCodes)
	assert.Contains(t, decision.Reason, "WIR-1")
}

func TestGateCumulativeAcrossEarlierActivities(t *testing.T) {
	gf, acts := newGateFixture(t)

	cp1, err := gf.checkpoints.Create(CreateCheckpointInput{
		UnitID: gf.unit.ID, Code: "WIR-1", Name: "Rebar", RequestedBy: gf.user.ID,
	})
	require.NoError(t, err)
	gf.approve(t, cp1)

	// activity 2 still blocked: its own gate WIR-2 has no checkpoint
	decision, err := gf.gates.CanCompleteActivity(gf.unit.ID, acts[1].ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, []string{"WIR-2"}, decision.BlockingCodes)

	// activity 1 is clear
	decision, err = gf.gates.CanCompleteActivity(gf.unit.ID, acts[0].ID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.BlockingCodes)
}

func TestGateStatusMatrix(t *testing.T) {
	cases := []struct {
		force   model.CheckpointStatus
		allowed bool
	}{
		{"", true}, // zero items reviews to approved
		{model.CheckpointConditional, true},
		{model.CheckpointRejected, false},
	}
	for _, c := range cases {
		gf, acts := newGateFixture(t)
		cp, err := gf.checkpoints.Create(CreateCheckpointInput{
			UnitID: gf.unit.ID, Code: "WIR-1", Name: "Rebar", RequestedBy: gf.user.ID,
		})
		require.NoError(t, err)
		_, err = gf.reviews.ReviewCheckpoint(ReviewInput{
			CheckpointID: cp.ID, ForceStatus: c.force, InspectorName: "Dana",
		})
		require.NoError(t, err)

		decision, err := gf.gates.CanCompleteActivity(gf.unit.ID, acts[0].ID)
		require.NoError(t, err)
		assert.Equalf(t, c.allowed, decision.Allowed, "forced status %q", c.force)
	}
}

func TestGatePendingCheckpointBlocks(t *testing.T) {
	gf, acts := newGateFixture(t)

	_, err := gf.checkpoints.Create(CreateCheckpointInput{
		UnitID: gf.unit.ID, Code: "WIR-1", Name: "Rebar", RequestedBy: gf.user.ID,
	})
	require.NoError(t, err)

	decision, err := gf.gates.CanCompleteActivity(gf.unit.ID, acts[0].ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestGateReinspectionUnblocks(t *testing.T) {
	gf, acts := newGateFixture(t)

	cp, err := gf.checkpoints.Create(CreateCheckpointInput{
		UnitID: gf.unit.ID, Code: "WIR-1", Name: "Rebar", RequestedBy: gf.user.ID,
	})
	require.NoError(t, err)
	gf.reject(t, cp)

	decision, err := gf.gates.CanCompleteActivity(gf.unit.ID, acts[0].ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	redo, err := gf.checkpoints.CreateReinspection(cp.ID, gf.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "WIR-1-R1", redo.Code)

	// reinspection still pending, gate stays shut
	decision, err = gf.gates.CanCompleteActivity(gf.unit.ID, acts[0].ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	gf.approve(t, redo)
	decision, err = gf.gates.CanCompleteActivity(gf.unit.ID, acts[0].ID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestGateUngatedActivityNeedsEarlierGates(t *testing.T) {
	gf, acts := newGateFixture(t)

	// finishing has no gate of its own but inherits WIR-1 and WIR-2
	decision, err := gf.gates.CanCompleteActivity(gf.unit.ID, acts[2].ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, []string{"WIR-1", "WIR-2"}, decision.BlockingCodes)
}

func TestProgressAutoCreatesGateCheckpoint(t *testing.T) {
	gf, acts := newGateFixture(t)
	ctx := context.Background()

	result, err := gf.gates.OnProgressRecorded(ctx, ProgressInput{
		UnitID: gf.unit.ID, ActivityID: acts[0].ID, Position: "bed-3", RecordedBy: gf.user.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Checkpoint)
	assert.False(t, result.CheckpointReused)
	assert.Equal(t, "WIR-1", result.Checkpoint.Code)
	assert.Equal(t, model.CheckpointPending, result.Checkpoint.Status)
	assert.True(t, result.Checkpoint.AutoCreated)
	require.NotNil(t, result.Checkpoint.ActivityID)
	assert.Equal(t, acts[0].ID, *result.Checkpoint.ActivityID)
	assert.Equal(t, model.ProgressInProgress, result.Progress.Status)
	assert.Equal(t, "bed-3", result.Progress.Position)
}

func TestProgressAutoCreationIsIdempotent(t *testing.T) {
	gf, acts := newGateFixture(t)
	ctx := context.Background()

	first, err := gf.gates.OnProgressRecorded(ctx, ProgressInput{
		UnitID: gf.unit.ID, ActivityID: acts[0].ID, RecordedBy: gf.user.ID,
	})
	require.NoError(t, err)

	second, err := gf.gates.OnProgressRecorded(ctx, ProgressInput{
		UnitID: gf.unit.ID, ActivityID: acts[0].ID, Position: "bed-7", RecordedBy: gf.user.ID,
	})
	require.NoError(t, err)
	assert.True(t, second.CheckpointReused)
	assert.Equal(t, first.Checkpoint.ID, second.Checkpoint.ID)

	var count int64
	require.NoError(t, gf.db.Model(&model.Checkpoint{}).
		Where("unit_id = ? AND code = ?", gf.unit.ID, "WIR-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// one progress row per unit+activity, position refreshed in place
	var progresses []model.UnitProgress
	require.NoError(t, gf.db.Where("unit_id = ?", gf.unit.ID).Find(&progresses).Error)
	require.Len(t, progresses, 1)
	assert.Equal(t, "bed-7", progresses[0].Position)
}

func TestProgressUngatedActivityCreatesNoCheckpoint(t *testing.T) {
	gf, acts := newGateFixture(t)

	result, err := gf.gates.OnProgressRecorded(context.Background(), ProgressInput{
		UnitID: gf.unit.ID, ActivityID: acts[2].ID, RecordedBy: gf.user.ID,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Checkpoint)

	var count int64
	require.NoError(t, gf.db.Model(&model.Checkpoint{}).Where("unit_id = ?", gf.unit.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestProgressAdvancesCurrentActivity(t *testing.T) {
	gf, acts := newGateFixture(t)
	ctx := context.Background()

	_, err := gf.gates.OnProgressRecorded(ctx, ProgressInput{
		UnitID: gf.unit.ID, ActivityID: acts[1].ID, RecordedBy: gf.user.ID,
	})
	require.NoError(t, err)

	var unit model.Unit
	require.NoError(t, gf.db.First(&unit, gf.unit.ID).Error)
	require.NotNil(t, unit.CurrentActivityID)
	assert.Equal(t, acts[1].ID, *unit.CurrentActivityID)

	// recording an earlier step does not move the pointer back
	_, err = gf.gates.OnProgressRecorded(ctx, ProgressInput{
		UnitID: gf.unit.ID, ActivityID: acts[0].ID, RecordedBy: gf.user.ID,
	})
	require.NoError(t, err)
	require.NoError(t, gf.db.First(&unit, gf.unit.ID).Error)
	assert.Equal(t, acts[1].ID, *unit.CurrentActivityID)
}

func TestCompleteActivity(t *testing.T) {
	gf, acts := newGateFixture(t)
	ctx := context.Background()

	result, err := gf.gates.OnProgressRecorded(ctx, ProgressInput{
		UnitID: gf.unit.ID, ActivityID: acts[0].ID, RecordedBy: gf.user.ID,
	})
	require.NoError(t, err)

	_, err = gf.gates.CompleteActivity(gf.unit.ID, acts[0].ID, gf.user.ID)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidState))

	gf.approve(t, result.Checkpoint)

	progress, err := gf.gates.CompleteActivity(gf.unit.ID, acts[0].ID, gf.user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProgressCompleted, progress.Status)
	require.NotNil(t, progress.CompletedAt)

	// completing twice is a no-op
	again, err := gf.gates.CompleteActivity(gf.unit.ID, acts[0].ID, gf.user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProgressCompleted, again.Status)
}

func TestGateUnknownIDs(t *testing.T) {
	gf, acts := newGateFixture(t)

	_, err := gf.gates.CanCompleteActivity(9999, acts[0].ID)
	assert.True(t, IsKind(err, KindNotFound))

	_, err = gf.gates.CanCompleteActivity(gf.unit.ID, 9999)
	assert.True(t, IsKind(err, KindNotFound))

	_, err = gf.gates.OnProgressRecorded(context.Background(), ProgressInput{
		UnitID: gf.unit.ID, ActivityID: 9999, RecordedBy: gf.user.ID,
	})
	assert.True(t, IsKind(err, KindNotFound))
}
