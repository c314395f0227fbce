package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
	pkgerrors "rota-planner/backend/pkg/errors"
)

func newPreferenceEnv(t *testing.T, status string) (*testEnv, model.Physician) {
	env := newTestEnv(t, status, 3)
	env.addRotation("MICU", 0.02, 2, 1)
	env.addRotation("Wards", 0.02, 2, 2)
	return env, env.addDoctor("Baker", "BB")
}

// ── 周可用性 ──

func TestPreferenceService_ListWeekPreferences_DefaultsYellow(t *testing.T) {
	env, doc := newPreferenceEnv(t, model.FiscalYearCollecting)
	env.setAvailability(doc.PhysicianID, 1, model.AvailabilityRed)

	rows, err := env.preferenceService().ListWeekPreferences(bg, doctorActor(doc.PhysicianID), doc.PhysicianID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, model.AvailabilityYellow, rows[0].Availability)
	assert.True(t, rows[0].IsDefault)
	assert.Equal(t, model.AvailabilityRed, rows[1].Availability)
	assert.False(t, rows[1].IsDefault)
	assert.Equal(t, 1, rows[0].WeekNumber)
}

func TestPreferenceService_UpsertWeekPreferences(t *testing.T) {
	env, doc := newPreferenceEnv(t, model.FiscalYearCollecting)
	svc := env.preferenceService()
	actor := doctorActor(doc.PhysicianID)

	rows, err := svc.UpsertWeekPreferences(bg, actor, doc.PhysicianID, &dto.UpsertWeekPreferencesRequest{
		Preferences: []dto.WeekPreferenceItem{
			{WeekID: env.weeks[0].WeekID, Availability: model.AvailabilityGreen},
			{WeekID: env.weeks[2].WeekID, Availability: model.AvailabilityRed, ReasonText: "会议"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilityGreen, rows[0].Availability)
	assert.Equal(t, model.AvailabilityYellow, rows[1].Availability)
	assert.Equal(t, "会议", rows[2].ReasonText)

	// 首次写入时自动创建 draft 状态的排班申请
	req, err := env.store.toRepository().ScheduleRequest.GetByPhysician(bg, env.fy.FiscalYearID, doc.PhysicianID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestDraft, req.Status)

	// 再次写入覆盖原值
	rows, err = svc.UpsertWeekPreferences(bg, actor, doc.PhysicianID, &dto.UpsertWeekPreferencesRequest{
		Preferences: []dto.WeekPreferenceItem{{WeekID: env.weeks[0].WeekID, Availability: model.AvailabilityRed}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilityRed, rows[0].Availability)
}

func TestPreferenceService_UpsertWeekPreferences_Errors(t *testing.T) {
	env, doc := newPreferenceEnv(t, model.FiscalYearCollecting)
	svc := env.preferenceService()
	actor := doctorActor(doc.PhysicianID)

	_, err := svc.UpsertWeekPreferences(bg, actor, doc.PhysicianID, &dto.UpsertWeekPreferencesRequest{
		Preferences: []dto.WeekPreferenceItem{
			{WeekID: env.weeks[0].WeekID, Availability: model.AvailabilityGreen},
			{WeekID: env.weeks[0].WeekID, Availability: model.AvailabilityRed},
		},
	})
	assert.ErrorIs(t, err, ErrDuplicateWeek)

	_, err = svc.UpsertWeekPreferences(bg, actor, doc.PhysicianID, &dto.UpsertWeekPreferencesRequest{
		Preferences: []dto.WeekPreferenceItem{{WeekID: "wk-other-year", Availability: model.AvailabilityGreen}},
	})
	assert.ErrorIs(t, err, ErrWeekNotFound)

	_, err = svc.UpsertWeekPreferences(bg, doctorActor("doc-ZZ"), doc.PhysicianID, &dto.UpsertWeekPreferencesRequest{
		Preferences: []dto.WeekPreferenceItem{{WeekID: env.weeks[0].WeekID, Availability: model.AvailabilityGreen}},
	})
	assert.ErrorIs(t, err, ErrForbidden)

	env.setStatus(model.FiscalYearBuilding)
	_, err = svc.UpsertWeekPreferences(bg, actor, doc.PhysicianID, &dto.UpsertWeekPreferencesRequest{
		Preferences: []dto.WeekPreferenceItem{{WeekID: env.weeks[0].WeekID, Availability: model.AvailabilityGreen}},
	})
	assert.ErrorIs(t, err, ErrPhaseNotAllowed)
	assert.Equal(t, model.FiscalYearBuilding, pkgerrors.DetailOf(err))
}

// ── 轮转意愿 ──

func TestValidateRotationPreference(t *testing.T) {
	cases := []struct {
		name string
		item dto.RotationPreferenceItem
		want error
	}{
		{"willing", dto.RotationPreferenceItem{}, nil},
		{"avoid 带原因", dto.RotationPreferenceItem{Avoid: true, AvoidReason: "夜班"}, nil},
		{"ranked", dto.RotationPreferenceItem{PreferenceRank: intPtr(1)}, nil},
		{"两种模式", dto.RotationPreferenceItem{Avoid: true, Deprioritize: true}, ErrRotationPrefModes},
		{"avoid 与排名", dto.RotationPreferenceItem{Avoid: true, PreferenceRank: intPtr(2)}, ErrRotationPrefModes},
		{"排名为 0", dto.RotationPreferenceItem{PreferenceRank: intPtr(0)}, ErrPreferenceRankInvalid},
		{"非 avoid 带原因", dto.RotationPreferenceItem{Deprioritize: true, AvoidReason: "x"}, ErrAvoidReasonWithoutAvoid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validateRotationPreference(c.item)
			if c.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, c.want)
			}
		})
	}
}

func TestPreferenceService_UpsertRotationPreferences_Matrix(t *testing.T) {
	env, doc := newPreferenceEnv(t, model.FiscalYearCollecting)
	svc := env.preferenceService()

	matrix, err := svc.UpsertRotationPreferences(bg, doctorActor(doc.PhysicianID), doc.PhysicianID, &dto.UpsertRotationPreferencesRequest{
		Preferences: []dto.RotationPreferenceItem{{RotationID: "rot-MICU", Avoid: true, AvoidReason: " 夜班 "}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, matrix.ConfiguredCount)
	assert.Equal(t, 2, matrix.RequiredCount)
	assert.Equal(t, []string{"Wards"}, matrix.MissingRotations)
	assert.False(t, matrix.IsComplete)

	require.Len(t, matrix.Preferences, 1)
	assert.Equal(t, modeAvoid, matrix.Preferences[0].Mode)
	assert.Equal(t, "夜班", matrix.Preferences[0].AvoidReason)

	_, err = env.store.toRepository().ScheduleRequest.GetByPhysician(bg, env.fy.FiscalYearID, doc.PhysicianID)
	assert.Error(t, err, "轮转意愿不创建排班申请")

	_, err = svc.UpsertRotationPreferences(bg, doctorActor(doc.PhysicianID), doc.PhysicianID, &dto.UpsertRotationPreferencesRequest{
		Preferences: []dto.RotationPreferenceItem{{RotationID: "rot-none"}},
	})
	assert.ErrorIs(t, err, ErrRotationNotFound)
}

func TestRotationSetProblem(t *testing.T) {
	micu := model.Rotation{RotationID: "1", Name: "MICU"}
	wards := model.Rotation{RotationID: "2", Name: "Wards"}
	dup := model.Rotation{RotationID: "3", Name: "micu "}

	assert.NotEmpty(t, rotationSetProblem(nil, nil))
	assert.Empty(t, rotationSetProblem([]model.Rotation{micu, wards}, nil))
	assert.Contains(t, rotationSetProblem([]model.Rotation{micu, dup}, nil), "micu")
	assert.Empty(t, rotationSetProblem([]model.Rotation{micu, wards}, []string{"micu", "WARDS"}))

	problem := rotationSetProblem([]model.Rotation{micu}, []string{"MICU", "Night Float"})
	assert.Contains(t, problem, "Night Float")
}

// ── 排班申请 ──

func TestPreferenceService_SubmitScheduleRequest(t *testing.T) {
	env, doc := newPreferenceEnv(t, model.FiscalYearCollecting)
	svc := env.preferenceService()
	actor := doctorActor(doc.PhysicianID)

	resp, err := svc.SubmitScheduleRequest(bg, actor, doc.PhysicianID, &dto.SubmitScheduleRequestRequest{SpecialRequests: "  12 月休假 "})
	require.NoError(t, err)
	assert.Equal(t, model.RequestSubmitted, resp.Status)
	assert.Equal(t, "12 月休假", resp.SpecialRequests)
	assert.NotNil(t, resp.SubmittedAt)

	resp, err = svc.SubmitScheduleRequest(bg, actor, doc.PhysicianID, &dto.SubmitScheduleRequestRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.RequestRevised, resp.Status)
}

// ── 审批 ──

func TestPreferenceService_ApproveForMapping_Gates(t *testing.T) {
	env, doc := newPreferenceEnv(t, model.FiscalYearCollecting)
	svc := env.preferenceService()
	admin := adminActor()

	// 未提交申请
	_, err := svc.ApproveForMapping(bg, admin, doc.PhysicianID)
	assert.ErrorIs(t, err, ErrScheduleRequestMissing)
	assert.ErrorIs(t, err, pkgerrors.ErrBlocked)

	_, err = svc.SubmitScheduleRequest(bg, doctorActor(doc.PhysicianID), doc.PhysicianID, &dto.SubmitScheduleRequestRequest{})
	require.NoError(t, err)

	// 意愿不完整
	env.setRotationPref(doc.PhysicianID, "MICU", nil)
	_, err = svc.ApproveForMapping(bg, admin, doc.PhysicianID)
	assert.ErrorIs(t, err, ErrPreferencesIncomplete)
	assert.Equal(t, "Wards", pkgerrors.DetailOf(err))

	panel, err := svc.GetApprovalPanel(bg, admin)
	require.NoError(t, err)
	require.Len(t, panel.Physicians, 1)
	assert.False(t, panel.Physicians[0].CanApprove)
	assert.Equal(t, 1, panel.Physicians[0].ConfiguredCount)

	env.setRotationPref(doc.PhysicianID, "Wards", func(p *model.RotationPreference) { p.PreferenceRank = intPtr(1) })
	panel, err = svc.GetApprovalPanel(bg, admin)
	require.NoError(t, err)
	assert.True(t, panel.Physicians[0].CanApprove)

	resp, err := svc.ApproveForMapping(bg, admin, doc.PhysicianID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, resp.ApprovalStatus)
	firstApprovedAt := resp.ApprovedAt

	// 幂等：再次批准不改变原记录
	again, err := svc.ApproveForMapping(bg, admin, doc.PhysicianID)
	require.NoError(t, err)
	assert.Equal(t, firstApprovedAt, again.ApprovedAt)

	count := 0
	for _, a := range env.store.auditActions() {
		if a == auditApprove {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPreferenceService_ApproveForMapping_RotationSetBlocked(t *testing.T) {
	env, doc := newPreferenceEnv(t, model.FiscalYearCollecting)
	env.sched.CanonicalRotations = []string{"MICU", "Wards", "Night Float"}
	svc := env.preferenceService()

	_, err := svc.ApproveForMapping(bg, adminActor(), doc.PhysicianID)
	assert.ErrorIs(t, err, ErrRotationSetInvalid)
	assert.Contains(t, pkgerrors.DetailOf(err), "Night Float")

	panel, err := svc.GetApprovalPanel(bg, adminActor())
	require.NoError(t, err)
	assert.NotEmpty(t, panel.BlockingReason)
}

func TestPreferenceService_ApproveForMapping_PhaseAndPermission(t *testing.T) {
	env, doc := newPreferenceEnv(t, model.FiscalYearSetup)
	svc := env.preferenceService()

	_, err := svc.ApproveForMapping(bg, adminActor(), doc.PhysicianID)
	assert.ErrorIs(t, err, ErrPhaseNotAllowed)

	_, err = svc.ApproveForMapping(bg, doctorActor(doc.PhysicianID), doc.PhysicianID)
	assert.ErrorIs(t, err, ErrForbidden)
}
