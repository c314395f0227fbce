package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"rota-planner/backend/config"
	"rota-planner/backend/internal/model"
	"rota-planner/backend/pkg/jwt"
)

// ── 测试脚手架 ──

type testEnv struct {
	store  *memStore
	locker Locker
	cache  SummaryCache
	sched  config.SchedulingConfig

	fy        *model.FiscalYear
	weeks     []model.Week
	rotations map[string]model.Rotation // 按名称
	doctors   map[string]model.Physician
}

var fyStart = time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC) // 周一

func adminActor() Actor {
	return Actor{UserID: "user-admin", Role: jwt.RoleAdmin}
}

func doctorActor(physicianID string) Actor {
	return Actor{UserID: "user-" + physicianID, Role: jwt.RolePhysician, PhysicianID: physicianID}
}

// newTestEnv 当前财年处于 status，含 weeks 个启用周，无轮转与医生
func newTestEnv(t *testing.T, status string, weeks int) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     newMemStore(),
		locker:    NewLocalLocker(2 * time.Second),
		cache:     NewMemorySummaryCache(),
		sched:     config.SchedulingConfig{},
		rotations: make(map[string]model.Rotation),
		doctors:   make(map[string]model.Physician),
	}

	fy := &model.FiscalYear{
		FiscalYearID: "fy-test",
		Label:        "FY2027",
		Status:       status,
		StartDate:    fyStart,
		EndDate:      fyStart.AddDate(0, 0, 7*weeks-1),
		IsCurrent:    true,
	}
	fy.Version = 1
	env.store.fiscalYears[fy.FiscalYearID] = fy
	env.fy = fy

	generated := generateWeeks(fy.FiscalYearID, fy.StartDate, fy.EndDate)
	for i := range generated {
		generated[i].WeekID = "wk-" + string(rune('a'+i))
		w := generated[i]
		env.store.weeks[w.WeekID] = &w
	}
	env.weeks = generated
	return env
}

func (e *testEnv) addRotation(name string, cftePerWeek float64, maxConsecutive, sortOrder int) model.Rotation {
	r := model.Rotation{
		RotationID:          "rot-" + name,
		Name:                name,
		Abbreviation:        name,
		CftePerWeek:         cftePerWeek,
		MinStaff:            1,
		MaxConsecutiveWeeks: maxConsecutive,
		IsActive:            true,
		SortOrder:           sortOrder,
	}
	e.store.rotations[r.RotationID] = &r
	e.rotations[name] = r
	return r
}

func (e *testEnv) addDoctor(lastName, initials string) model.Physician {
	p := model.Physician{
		PhysicianID: "doc-" + initials,
		FullName:    "Dr " + lastName,
		LastName:    lastName,
		Initials:    initials,
		IsActive:    true,
	}
	e.store.physicians[p.PhysicianID] = &p
	e.doctors[initials] = p
	return p
}

func (e *testEnv) addClinicType(id string, perHalfDay float64) {
	e.store.clinicTypes[id] = &model.ClinicType{ClinicTypeID: id, Name: id, CftePerHalfDay: perHalfDay, IsActive: true}
}

func (e *testEnv) approve(physicianID string) {
	e.store.approvals[key2(e.fy.FiscalYearID, physicianID)] = &model.PhysicianApproval{
		ApprovalID:   "ap-" + physicianID,
		FiscalYearID: e.fy.FiscalYearID,
		PhysicianID:  physicianID,
		Status:       model.ApprovalApproved,
	}
}

func (e *testEnv) setAvailability(physicianID string, weekIdx int, availability string) {
	w := e.weeks[weekIdx]
	e.store.weekPrefs[key3(e.fy.FiscalYearID, physicianID, w.WeekID)] = &model.WeekPreference{
		WeekPreferenceID: "wp-" + physicianID + w.WeekID,
		FiscalYearID:     e.fy.FiscalYearID,
		PhysicianID:      physicianID,
		WeekID:           w.WeekID,
		Availability:     availability,
	}
}

func (e *testEnv) setRotationPref(physicianID, rotation string, mutate func(*model.RotationPreference)) {
	r := e.rotations[rotation]
	p := &model.RotationPreference{
		RotationPreferenceID: "rp-" + physicianID + r.RotationID,
		FiscalYearID:         e.fy.FiscalYearID,
		PhysicianID:          physicianID,
		RotationID:           r.RotationID,
	}
	if mutate != nil {
		mutate(p)
	}
	e.store.rotationPrefs[key3(e.fy.FiscalYearID, physicianID, r.RotationID)] = p
}

func (e *testEnv) setTarget(physicianID string, target float64) {
	e.store.targets[key2(e.fy.FiscalYearID, physicianID)] = &model.CfteTarget{
		CfteTargetID: "tg-" + physicianID,
		FiscalYearID: e.fy.FiscalYearID,
		PhysicianID:  physicianID,
		TargetCfte:   &target,
	}
}

func (e *testEnv) setStatus(status string) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.store.fiscalYears[e.fy.FiscalYearID].Status = status
	e.fy.Status = status
}

// publish 直接写入已发布格子，返回 assignment id
func (e *testEnv) publish(weekIdx int, rotation, physicianID string) string {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	a := model.CalendarAssignment{
		AssignmentID: "asg-" + e.weeks[weekIdx].WeekID + "-" + rotation,
		FiscalYearID: e.fy.FiscalYearID,
		WeekID:       e.weeks[weekIdx].WeekID,
		RotationID:   e.rotations[rotation].RotationID,
		PhysicianID:  physicianID,
	}
	a.Version = 1
	e.store.assignments[a.AssignmentID] = &a
	return a.AssignmentID
}

func (e *testEnv) holderOf(assignmentID string) string {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return e.store.assignments[assignmentID].PhysicianID
}

// ── Service 构建 ──

func (e *testEnv) fiscalYearService() FiscalYearService {
	return NewFiscalYearService(e.store.toRepository(), e.locker, e.cache, zap.NewNop())
}

func (e *testEnv) preferenceService() PreferenceService {
	return NewPreferenceService(e.store.toRepository(), e.sched, e.locker, zap.NewNop())
}

func (e *testEnv) cfteService() CfteService {
	return NewCfteService(e.store.toRepository(), e.cache, zap.NewNop())
}

func (e *testEnv) calendarService() CalendarService {
	return NewCalendarService(e.store.toRepository(), e.sched, e.locker, e.cache, zap.NewNop())
}

func (e *testEnv) tradeService() TradeService {
	return NewTradeService(e.store.toRepository(), e.locker, e.cache, zap.NewNop())
}

func (e *testEnv) exportService() ExportService {
	return NewExportService(e.store.toRepository(), zap.NewNop())
}

func (e *testEnv) calendarEventService() CalendarEventService {
	return NewCalendarEventService(e.store.toRepository(), zap.NewNop())
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

var bg = context.Background()
