package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
)

func float(v float64) *float64 { return &v }

func TestSummarize(t *testing.T) {
	p := model.Physician{PhysicianID: "doc-A", FullName: "Dr A"}

	row := summarize(p, 0.08, 0.04, 2, nil)
	assert.InDelta(t, 0.12, row.TotalCfte, 1e-9)
	assert.Nil(t, row.TargetCfte)
	assert.Nil(t, row.Headroom)
	assert.False(t, row.IsOverTarget)

	row = summarize(p, 0.08, 0.04, 2, float(0.1))
	require.NotNil(t, row.Headroom)
	assert.InDelta(t, -0.02, *row.Headroom, 1e-9)
	assert.True(t, row.IsOverTarget)

	// 恰好等于目标不算超出
	row = summarize(p, 0.06, 0.04, 2, float(0.1))
	assert.InDelta(t, 0, *row.Headroom, 1e-9)
	assert.False(t, row.IsOverTarget)
}

func TestClinicCfte(t *testing.T) {
	types := map[string]model.ClinicType{
		"gen":  {ClinicTypeID: "gen", CftePerHalfDay: 0.001},
		"pulm": {ClinicTypeID: "pulm", CftePerHalfDay: 0.0025},
	}
	got := clinicCfte([]model.PhysicianClinicAssignment{
		{ClinicTypeID: "gen", HalfDaysPerWeek: 2, ActiveWeeks: 40},
		{ClinicTypeID: "pulm", HalfDaysPerWeek: 1, ActiveWeeks: 20},
		{ClinicTypeID: "unknown", HalfDaysPerWeek: 5, ActiveWeeks: 50},
	}, types)
	assert.InDelta(t, 0.13, roundCfte(got), 1e-9)
}

func newCfteEnv(t *testing.T, status string) (*testEnv, model.Physician) {
	env := newTestEnv(t, status, 4)
	env.addRotation("MICU", 0.02, 4, 1)
	env.addClinicType("gen", 0.001)
	return env, env.addDoctor("Clark", "CC")
}

func TestCfteService_UpsertClinicAssignments(t *testing.T) {
	env, doc := newCfteEnv(t, model.FiscalYearCollecting)
	svc := env.cfteService()

	row, err := svc.UpsertClinicAssignments(bg, adminActor(), doc.PhysicianID, &dto.UpsertClinicAssignmentsRequest{
		Assignments: []dto.ClinicAssignmentItem{{ClinicTypeID: "gen", HalfDaysPerWeek: 2, ActiveWeeks: 40}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.08, row.ClinicCfte, 1e-9)
	assert.InDelta(t, 0.08, row.TotalCfte, 1e-9)

	// 任一数值为 0 即删除
	row, err = svc.UpsertClinicAssignments(bg, adminActor(), doc.PhysicianID, &dto.UpsertClinicAssignmentsRequest{
		Assignments: []dto.ClinicAssignmentItem{{ClinicTypeID: "gen", HalfDaysPerWeek: 0, ActiveWeeks: 40}},
	})
	require.NoError(t, err)
	assert.Zero(t, row.ClinicCfte)
	list, _ := env.store.toRepository().ClinicAssignment.ListByPhysician(bg, env.fy.FiscalYearID, doc.PhysicianID)
	assert.Empty(t, list)
}

func TestCfteService_UpsertClinicAssignments_Validation(t *testing.T) {
	env, doc := newCfteEnv(t, model.FiscalYearCollecting)
	svc := env.cfteService()
	upsert := func(items ...dto.ClinicAssignmentItem) error {
		_, err := svc.UpsertClinicAssignments(bg, adminActor(), doc.PhysicianID, &dto.UpsertClinicAssignmentsRequest{Assignments: items})
		return err
	}

	assert.ErrorIs(t, upsert(dto.ClinicAssignmentItem{ClinicTypeID: "gen", HalfDaysPerWeek: 11, ActiveWeeks: 1}), ErrHalfDaysOutOfRange)
	assert.ErrorIs(t, upsert(dto.ClinicAssignmentItem{ClinicTypeID: "gen", HalfDaysPerWeek: 1, ActiveWeeks: 53}), ErrActiveWeeksOutOfRange)
	assert.ErrorIs(t, upsert(dto.ClinicAssignmentItem{ClinicTypeID: "nope", HalfDaysPerWeek: 1, ActiveWeeks: 1}), ErrClinicTypeNotFound)
	assert.ErrorIs(t, upsert(
		dto.ClinicAssignmentItem{ClinicTypeID: "gen", HalfDaysPerWeek: 1, ActiveWeeks: 1},
		dto.ClinicAssignmentItem{ClinicTypeID: "gen", HalfDaysPerWeek: 2, ActiveWeeks: 1},
	), ErrDuplicateClinicType)

	_, err := svc.UpsertClinicAssignments(bg, doctorActor(doc.PhysicianID), doc.PhysicianID, &dto.UpsertClinicAssignmentsRequest{
		Assignments: []dto.ClinicAssignmentItem{{ClinicTypeID: "gen", HalfDaysPerWeek: 1, ActiveWeeks: 1}},
	})
	assert.ErrorIs(t, err, ErrForbidden, "医生不能修改自己的门诊量")

	env.setStatus(model.FiscalYearArchived)
	assert.ErrorIs(t, upsert(dto.ClinicAssignmentItem{ClinicTypeID: "gen", HalfDaysPerWeek: 1, ActiveWeeks: 1}), ErrPhaseNotAllowed)
}

func TestCfteService_SetTarget(t *testing.T) {
	env, doc := newCfteEnv(t, model.FiscalYearCollecting)
	svc := env.cfteService()

	row, err := svc.SetTarget(bg, adminActor(), doc.PhysicianID, &dto.SetCfteTargetRequest{TargetCfte: float(0.5)})
	require.NoError(t, err)
	require.NotNil(t, row.Headroom)
	assert.InDelta(t, 0.5, *row.Headroom, 1e-9)

	row, err = svc.SetTarget(bg, adminActor(), doc.PhysicianID, &dto.SetCfteTargetRequest{TargetCfte: nil})
	require.NoError(t, err)
	assert.Nil(t, row.TargetCfte)
	assert.Nil(t, row.Headroom)

	_, err = svc.SetTarget(bg, adminActor(), doc.PhysicianID, &dto.SetCfteTargetRequest{TargetCfte: float(-1)})
	assert.ErrorIs(t, err, ErrNegativeTarget)
}

func TestCfteService_RotationCfteFromDraftThenPublished(t *testing.T) {
	env, doc := newCfteEnv(t, model.FiscalYearBuilding)
	env.approve(doc.PhysicianID)
	env.setTarget(doc.PhysicianID, 0.05)
	svc := env.cfteService()

	cal := env.calendarService()
	_, err := cal.CreateDraft(bg, adminActor(), &dto.CreateDraftRequest{FiscalYearID: env.fy.FiscalYearID})
	require.NoError(t, err)
	for _, i := range []int{0, 1, 2} {
		_, err := cal.AssignCell(bg, adminActor(), &dto.AssignCellRequest{
			WeekID: env.weeks[i].WeekID, RotationID: "rot-MICU", PhysicianID: strPtr(doc.PhysicianID),
		})
		require.NoError(t, err)
	}

	row, err := svc.GetSummary(bg, doctorActor(doc.PhysicianID), doc.PhysicianID)
	require.NoError(t, err)
	assert.Equal(t, 3, row.RotationWeeks)
	assert.InDelta(t, 0.06, row.RotationCfte, 1e-9)
	assert.True(t, row.IsOverTarget)

	_, err = env.fiscalYearService().Transition(bg, adminActor(), env.fy.FiscalYearID, model.FiscalYearPublished)
	require.NoError(t, err)

	rows, err := svc.ListSummaries(bg, adminActor())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].RotationWeeks, "发布后统计已发布日历")
}

func TestCfteService_SummaryCache(t *testing.T) {
	env, doc := newCfteEnv(t, model.FiscalYearCollecting)
	svc := env.cfteService()

	rows, err := svc.ListSummaries(bg, adminActor())
	require.NoError(t, err)
	assert.Nil(t, rows[0].TargetCfte)

	// 绕过服务直接改数据：缓存仍返回旧值
	env.setTarget(doc.PhysicianID, 0.3)
	rows, err = svc.ListSummaries(bg, adminActor())
	require.NoError(t, err)
	assert.Nil(t, rows[0].TargetCfte)

	// 经由服务写入会使缓存失效
	_, err = svc.SetTarget(bg, adminActor(), doc.PhysicianID, &dto.SetCfteTargetRequest{TargetCfte: float(0.4)})
	require.NoError(t, err)
	rows, err = svc.ListSummaries(bg, adminActor())
	require.NoError(t, err)
	require.NotNil(t, rows[0].TargetCfte)
	assert.InDelta(t, 0.4, *rows[0].TargetCfte, 1e-9)

	_, err = svc.ListSummaries(bg, doctorActor(doc.PhysicianID))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMemorySummaryCache_StaleStoreDropped(t *testing.T) {
	cache := NewMemorySummaryCache()
	ctx := context.Background()

	_, epoch, hit := cache.Load(ctx, "fy")
	require.False(t, hit)
	cache.Invalidate(ctx, "fy")
	cache.Store(ctx, "fy", epoch, []dto.CfteSummaryRow{{PhysicianID: "stale"}})

	_, _, hit = cache.Load(ctx, "fy")
	assert.False(t, hit, "失效前计算的结果不得写入")

	_, epoch, _ = cache.Load(ctx, "fy")
	cache.Store(ctx, "fy", epoch, []dto.CfteSummaryRow{{PhysicianID: "fresh"}})
	rows, _, hit := cache.Load(ctx, "fy")
	require.True(t, hit)
	assert.Equal(t, "fresh", rows[0].PhysicianID)
}

func TestSummarize_HeadroomUnderTarget(t *testing.T) {
	p := model.Physician{PhysicianID: "doc-E", FullName: "Dr E"}

	row := summarize(p, 0.10, 3*0.02, 3, float(0.60))
	assert.InDelta(t, 0.06, row.RotationCfte, 1e-9)
	assert.InDelta(t, 0.16, row.TotalCfte, 1e-9)
	require.NotNil(t, row.Headroom)
	assert.InDelta(t, 0.44, *row.Headroom, 1e-9)
	assert.False(t, row.IsOverTarget)
	assert.Equal(t, 3, row.RotationWeeks)
}
