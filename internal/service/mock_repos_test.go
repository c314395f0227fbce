package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"rota-planner/backend/internal/model"
	"rota-planner/backend/internal/repository"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// ── 内存存储 ──
//
// 所有 mock repo 共享同一个 memStore，读写均复制结构体，
// 行为与数据库一致：调用方修改返回值不会影响已存储的数据。

type memStore struct {
	mu  sync.Mutex
	seq int

	fiscalYears   map[string]*model.FiscalYear
	weeks         map[string]*model.Week
	rotations     map[string]*model.Rotation
	clinicTypes   map[string]*model.ClinicType
	physicians    map[string]*model.Physician
	events        []model.CalendarEvent
	requests      map[string]*model.ScheduleRequest
	weekPrefs     map[string]*model.WeekPreference
	rotationPrefs map[string]*model.RotationPreference
	approvals     map[string]*model.PhysicianApproval
	clinics       map[string]*model.PhysicianClinicAssignment
	targets       map[string]*model.CfteTarget
	drafts        map[string]*model.MasterCalendarDraft
	cells         map[string]*model.DraftCell
	assignments   map[string]*model.CalendarAssignment
	trades        map[string]*model.TradeRequest
	audits        []model.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		fiscalYears:   make(map[string]*model.FiscalYear),
		weeks:         make(map[string]*model.Week),
		rotations:     make(map[string]*model.Rotation),
		clinicTypes:   make(map[string]*model.ClinicType),
		physicians:    make(map[string]*model.Physician),
		requests:      make(map[string]*model.ScheduleRequest),
		weekPrefs:     make(map[string]*model.WeekPreference),
		rotationPrefs: make(map[string]*model.RotationPreference),
		approvals:     make(map[string]*model.PhysicianApproval),
		clinics:       make(map[string]*model.PhysicianClinicAssignment),
		targets:       make(map[string]*model.CfteTarget),
		drafts:        make(map[string]*model.MasterCalendarDraft),
		cells:         make(map[string]*model.DraftCell),
		assignments:   make(map[string]*model.CalendarAssignment),
		trades:        make(map[string]*model.TradeRequest),
	}
}

// nextID 生成带前缀的自增 ID，调用方需持有锁
func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// stamp 单调递增的时间戳，保证按创建时间排序稳定
func (s *memStore) stamp() time.Time {
	s.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Millisecond)
}

func key2(a, b string) string    { return a + "|" + b }
func key3(a, b, c string) string { return a + "|" + b + "|" + c }

func (s *memStore) toRepository() *repository.Repository {
	return &repository.Repository{
		FiscalYear:         &mockFiscalYearRepo{s},
		Week:               &mockWeekRepo{s},
		Rotation:           &mockRotationRepo{s},
		ClinicType:         &mockClinicTypeRepo{s},
		Physician:          &mockPhysicianRepo{s},
		CalendarEvent:      &mockCalendarEventRepo{s},
		ScheduleRequest:    &mockScheduleRequestRepo{s},
		WeekPreference:     &mockWeekPreferenceRepo{s},
		RotationPreference: &mockRotationPreferenceRepo{s},
		Approval:           &mockApprovalRepo{s},
		ClinicAssignment:   &mockClinicAssignmentRepo{s},
		CfteTarget:         &mockCfteTargetRepo{s},
		Draft:              &mockDraftRepo{s},
		DraftCell:          &mockDraftCellRepo{s},
		Assignment:         &mockAssignmentRepo{s},
		Trade:              &mockTradeRepo{s},
		AuditLog:           &mockAuditLogRepo{s},
	}
}

// ── Mock FiscalYearRepository ──

type mockFiscalYearRepo struct{ s *memStore }

func (m *mockFiscalYearRepo) Create(_ context.Context, fy *model.FiscalYear) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.fiscalYears {
		if existing.Label == fy.Label {
			return fmt.Errorf("duplicate key value violates unique constraint")
		}
	}
	if fy.FiscalYearID == "" {
		fy.FiscalYearID = m.s.nextID("fy")
	}
	if fy.Version == 0 {
		fy.Version = 1
	}
	fy.CreatedAt = m.s.stamp()
	cp := *fy
	m.s.fiscalYears[fy.FiscalYearID] = &cp
	return nil
}

func (m *mockFiscalYearRepo) GetByID(_ context.Context, id string) (*model.FiscalYear, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if fy, ok := m.s.fiscalYears[id]; ok {
		cp := *fy
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFiscalYearRepo) GetCurrent(_ context.Context) (*model.FiscalYear, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, fy := range m.s.fiscalYears {
		if fy.IsCurrent {
			cp := *fy
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFiscalYearRepo) List(_ context.Context) ([]model.FiscalYear, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.FiscalYear
	for _, fy := range m.s.fiscalYears {
		result = append(result, *fy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.After(result[j].StartDate) })
	return result, nil
}

func (m *mockFiscalYearRepo) Update(_ context.Context, fy *model.FiscalYear) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.fiscalYears[fy.FiscalYearID]
	if !ok || stored.Version != fy.Version {
		return pkgerrors.ErrOptimisticLock
	}
	fy.Version++
	cp := *fy
	m.s.fiscalYears[fy.FiscalYearID] = &cp
	return nil
}

func (m *mockFiscalYearRepo) ClearCurrent(_ context.Context) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, fy := range m.s.fiscalYears {
		if fy.IsCurrent {
			fy.IsCurrent = false
			fy.Version++
		}
	}
	return nil
}

// ── Mock WeekRepository ──

type mockWeekRepo struct{ s *memStore }

func (m *mockWeekRepo) BatchCreate(_ context.Context, weeks []model.Week) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i := range weeks {
		if weeks[i].WeekID == "" {
			weeks[i].WeekID = m.s.nextID("wk")
		}
		cp := weeks[i]
		m.s.weeks[cp.WeekID] = &cp
	}
	return nil
}

func (m *mockWeekRepo) GetByID(_ context.Context, id string) (*model.Week, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if w, ok := m.s.weeks[id]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWeekRepo) ListByFiscalYear(_ context.Context, fiscalYearID string, activeOnly bool) ([]model.Week, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Week
	for _, w := range m.s.weeks {
		if w.FiscalYearID != fiscalYearID || (activeOnly && !w.IsActive) {
			continue
		}
		result = append(result, *w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WeekNumber < result[j].WeekNumber })
	return result, nil
}

// ── Mock 参考数据 Repository ──

type mockRotationRepo struct{ s *memStore }

func (m *mockRotationRepo) GetByID(_ context.Context, id string) (*model.Rotation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r, ok := m.s.rotations[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRotationRepo) List(_ context.Context, activeOnly bool) ([]model.Rotation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Rotation
	for _, r := range m.s.rotations {
		if activeOnly && !r.IsActive {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

type mockClinicTypeRepo struct{ s *memStore }

func (m *mockClinicTypeRepo) GetByID(_ context.Context, id string) (*model.ClinicType, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if ct, ok := m.s.clinicTypes[id]; ok {
		cp := *ct
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClinicTypeRepo) List(_ context.Context, activeOnly bool) ([]model.ClinicType, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.ClinicType
	for _, ct := range m.s.clinicTypes {
		if activeOnly && !ct.IsActive {
			continue
		}
		result = append(result, *ct)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type mockPhysicianRepo struct{ s *memStore }

func (m *mockPhysicianRepo) GetByID(_ context.Context, id string) (*model.Physician, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p, ok := m.s.physicians[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPhysicianRepo) List(_ context.Context, activeOnly bool) ([]model.Physician, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Physician
	for _, p := range m.s.physicians {
		if activeOnly && !p.IsActive {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastName != result[j].LastName {
			return result[i].LastName < result[j].LastName
		}
		return result[i].FullName < result[j].FullName
	})
	return result, nil
}

type mockCalendarEventRepo struct{ s *memStore }

func (m *mockCalendarEventRepo) ListByFiscalYear(_ context.Context, fiscalYearID string) ([]model.CalendarEvent, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.CalendarEvent
	for _, e := range m.s.events {
		if e.FiscalYearID == fiscalYearID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockCalendarEventRepo) ReplaceByCategory(_ context.Context, fiscalYearID, category string, events []model.CalendarEvent) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	kept := m.s.events[:0]
	for _, e := range m.s.events {
		if e.FiscalYearID == fiscalYearID && e.Category == category {
			continue
		}
		kept = append(kept, e)
	}
	for i := range events {
		if events[i].EventID == "" {
			events[i].EventID = m.s.nextID("event")
		}
		kept = append(kept, events[i])
	}
	m.s.events = kept
	return nil
}

// ── Mock 偏好 Repository ──

type mockScheduleRequestRepo struct{ s *memStore }

func (m *mockScheduleRequestRepo) Create(_ context.Context, req *model.ScheduleRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	k := key2(req.FiscalYearID, req.PhysicianID)
	if _, ok := m.s.requests[k]; ok {
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	if req.ScheduleRequestID == "" {
		req.ScheduleRequestID = m.s.nextID("req")
	}
	cp := *req
	m.s.requests[k] = &cp
	return nil
}

func (m *mockScheduleRequestRepo) GetByPhysician(_ context.Context, fiscalYearID, physicianID string) (*model.ScheduleRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r, ok := m.s.requests[key2(fiscalYearID, physicianID)]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRequestRepo) ListByFiscalYear(_ context.Context, fiscalYearID string) ([]model.ScheduleRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.ScheduleRequest
	for _, r := range m.s.requests {
		if r.FiscalYearID == fiscalYearID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockScheduleRequestRepo) Update(_ context.Context, req *model.ScheduleRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	k := key2(req.FiscalYearID, req.PhysicianID)
	if _, ok := m.s.requests[k]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *req
	m.s.requests[k] = &cp
	return nil
}

type mockWeekPreferenceRepo struct{ s *memStore }

func (m *mockWeekPreferenceRepo) ListByPhysician(_ context.Context, fiscalYearID, physicianID string) ([]model.WeekPreference, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.WeekPreference
	for _, p := range m.s.weekPrefs {
		if p.FiscalYearID == fiscalYearID && p.PhysicianID == physicianID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockWeekPreferenceRepo) ListByFiscalYear(_ context.Context, fiscalYearID string) ([]model.WeekPreference, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.WeekPreference
	for _, p := range m.s.weekPrefs {
		if p.FiscalYearID == fiscalYearID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockWeekPreferenceRepo) Upsert(_ context.Context, prefs []model.WeekPreference) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i := range prefs {
		k := key3(prefs[i].FiscalYearID, prefs[i].PhysicianID, prefs[i].WeekID)
		if existing, ok := m.s.weekPrefs[k]; ok {
			prefs[i].WeekPreferenceID = existing.WeekPreferenceID
		} else if prefs[i].WeekPreferenceID == "" {
			prefs[i].WeekPreferenceID = m.s.nextID("wp")
		}
		cp := prefs[i]
		m.s.weekPrefs[k] = &cp
	}
	return nil
}

func (m *mockWeekPreferenceRepo) ReplaceForPhysician(_ context.Context, fiscalYearID, physicianID string, prefs []model.WeekPreference) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for k, p := range m.s.weekPrefs {
		if p.FiscalYearID == fiscalYearID && p.PhysicianID == physicianID {
			delete(m.s.weekPrefs, k)
		}
	}
	for i := range prefs {
		prefs[i].WeekPreferenceID = m.s.nextID("wp")
		cp := prefs[i]
		m.s.weekPrefs[key3(cp.FiscalYearID, cp.PhysicianID, cp.WeekID)] = &cp
	}
	return nil
}

type mockRotationPreferenceRepo struct{ s *memStore }

func (m *mockRotationPreferenceRepo) ListByPhysician(_ context.Context, fiscalYearID, physicianID string) ([]model.RotationPreference, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.RotationPreference
	for _, p := range m.s.rotationPrefs {
		if p.FiscalYearID == fiscalYearID && p.PhysicianID == physicianID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockRotationPreferenceRepo) ListByFiscalYear(_ context.Context, fiscalYearID string) ([]model.RotationPreference, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.RotationPreference
	for _, p := range m.s.rotationPrefs {
		if p.FiscalYearID == fiscalYearID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockRotationPreferenceRepo) Upsert(_ context.Context, prefs []model.RotationPreference) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i := range prefs {
		k := key3(prefs[i].FiscalYearID, prefs[i].PhysicianID, prefs[i].RotationID)
		if existing, ok := m.s.rotationPrefs[k]; ok {
			prefs[i].RotationPreferenceID = existing.RotationPreferenceID
		} else if prefs[i].RotationPreferenceID == "" {
			prefs[i].RotationPreferenceID = m.s.nextID("rp")
		}
		cp := prefs[i]
		m.s.rotationPrefs[k] = &cp
	}
	return nil
}

type mockApprovalRepo struct{ s *memStore }

func (m *mockApprovalRepo) GetByPhysician(_ context.Context, fiscalYearID, physicianID string) (*model.PhysicianApproval, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a, ok := m.s.approvals[key2(fiscalYearID, physicianID)]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockApprovalRepo) ListByFiscalYear(_ context.Context, fiscalYearID string) ([]model.PhysicianApproval, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.PhysicianApproval
	for _, a := range m.s.approvals {
		if a.FiscalYearID == fiscalYearID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockApprovalRepo) Upsert(_ context.Context, approval *model.PhysicianApproval) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	k := key2(approval.FiscalYearID, approval.PhysicianID)
	if existing, ok := m.s.approvals[k]; ok {
		if existing.Status == model.ApprovalApproved {
			return nil
		}
		approval.ApprovalID = existing.ApprovalID
	} else if approval.ApprovalID == "" {
		approval.ApprovalID = m.s.nextID("ap")
	}
	cp := *approval
	m.s.approvals[k] = &cp
	return nil
}

// ── Mock cFTE Repository ──

type mockClinicAssignmentRepo struct{ s *memStore }

func (m *mockClinicAssignmentRepo) ListByPhysician(_ context.Context, fiscalYearID, physicianID string) ([]model.PhysicianClinicAssignment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.PhysicianClinicAssignment
	for _, c := range m.s.clinics {
		if c.FiscalYearID == fiscalYearID && c.PhysicianID == physicianID {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockClinicAssignmentRepo) ListByFiscalYear(_ context.Context, fiscalYearID string) ([]model.PhysicianClinicAssignment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.PhysicianClinicAssignment
	for _, c := range m.s.clinics {
		if c.FiscalYearID == fiscalYearID {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockClinicAssignmentRepo) Upsert(_ context.Context, a *model.PhysicianClinicAssignment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	k := key3(a.FiscalYearID, a.PhysicianID, a.ClinicTypeID)
	if existing, ok := m.s.clinics[k]; ok {
		a.ClinicAssignmentID = existing.ClinicAssignmentID
	} else if a.ClinicAssignmentID == "" {
		a.ClinicAssignmentID = m.s.nextID("ca")
	}
	cp := *a
	m.s.clinics[k] = &cp
	return nil
}

func (m *mockClinicAssignmentRepo) Delete(_ context.Context, fiscalYearID, physicianID, clinicTypeID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.clinics, key3(fiscalYearID, physicianID, clinicTypeID))
	return nil
}

type mockCfteTargetRepo struct{ s *memStore }

func (m *mockCfteTargetRepo) GetByPhysician(_ context.Context, fiscalYearID, physicianID string) (*model.CfteTarget, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t, ok := m.s.targets[key2(fiscalYearID, physicianID)]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCfteTargetRepo) ListByFiscalYear(_ context.Context, fiscalYearID string) ([]model.CfteTarget, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.CfteTarget
	for _, t := range m.s.targets {
		if t.FiscalYearID == fiscalYearID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockCfteTargetRepo) Upsert(_ context.Context, t *model.CfteTarget) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	k := key2(t.FiscalYearID, t.PhysicianID)
	if existing, ok := m.s.targets[k]; ok {
		t.CfteTargetID = existing.CfteTargetID
	} else if t.CfteTargetID == "" {
		t.CfteTargetID = m.s.nextID("tg")
	}
	cp := *t
	m.s.targets[k] = &cp
	return nil
}

// ── Mock 日历 Repository ──

type mockDraftRepo struct{ s *memStore }

func (m *mockDraftRepo) Create(_ context.Context, draft *model.MasterCalendarDraft) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, d := range m.s.drafts {
		if d.FiscalYearID == draft.FiscalYearID {
			return fmt.Errorf("duplicate key value violates unique constraint")
		}
	}
	if draft.DraftID == "" {
		draft.DraftID = m.s.nextID("draft")
	}
	cp := *draft
	m.s.drafts[draft.DraftID] = &cp
	return nil
}

func (m *mockDraftRepo) GetByFiscalYear(_ context.Context, fiscalYearID string) (*model.MasterCalendarDraft, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, d := range m.s.drafts {
		if d.FiscalYearID == fiscalYearID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDraftRepo) LockByID(_ context.Context, id string) (*model.MasterCalendarDraft, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if d, ok := m.s.drafts[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDraftRepo) BumpVersion(_ context.Context, id string, updatedBy string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.drafts[id]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	d.Version++
	d.UpdatedBy = &updatedBy
	return d.Version, nil
}

func (m *mockDraftRepo) MarkPublished(_ context.Context, id string, at time.Time, updatedBy string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.drafts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.PublishedAt = &at
	d.UpdatedBy = &updatedBy
	return nil
}

type mockDraftCellRepo struct{ s *memStore }

func (m *mockDraftCellRepo) BatchCreate(_ context.Context, cells []model.DraftCell) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i := range cells {
		if cells[i].CellID == "" {
			cells[i].CellID = m.s.nextID("cell")
		}
		cp := cells[i]
		m.s.cells[cp.CellID] = &cp
	}
	return nil
}

func (m *mockDraftCellRepo) ListByDraft(_ context.Context, draftID string) ([]model.DraftCell, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.DraftCell
	for _, c := range m.s.cells {
		if c.DraftID == draftID {
			cp := *c
			if c.PhysicianID != nil {
				id := *c.PhysicianID
				cp.PhysicianID = &id
			}
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CellID < result[j].CellID })
	return result, nil
}

func (m *mockDraftCellRepo) UpdatePhysician(_ context.Context, cellID string, physicianID *string, updatedBy string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.cells[cellID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if physicianID != nil {
		id := *physicianID
		// 同一草稿同一周同一医生只允许一个格子
		for _, other := range m.s.cells {
			if other.CellID != cellID && other.DraftID == c.DraftID && other.WeekID == c.WeekID &&
				other.PhysicianID != nil && *other.PhysicianID == id {
				return fmt.Errorf("duplicate key value violates unique constraint")
			}
		}
		c.PhysicianID = &id
	} else {
		c.PhysicianID = nil
	}
	c.UpdatedBy = &updatedBy
	return nil
}

type mockAssignmentRepo struct{ s *memStore }

func (m *mockAssignmentRepo) BatchCreate(_ context.Context, assignments []model.CalendarAssignment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i := range assignments {
		if assignments[i].AssignmentID == "" {
			assignments[i].AssignmentID = m.s.nextID("asg")
		}
		cp := assignments[i]
		m.s.assignments[cp.AssignmentID] = &cp
	}
	return nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.CalendarAssignment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a, ok := m.s.assignments[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) ListByFiscalYear(_ context.Context, fiscalYearID string) ([]model.CalendarAssignment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.CalendarAssignment
	for _, a := range m.s.assignments {
		if a.FiscalYearID == fiscalYearID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssignmentID < result[j].AssignmentID })
	return result, nil
}

func (m *mockAssignmentRepo) ListByPhysician(_ context.Context, fiscalYearID, physicianID string) ([]model.CalendarAssignment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.CalendarAssignment
	for _, a := range m.s.assignments {
		if a.FiscalYearID == fiscalYearID && a.PhysicianID == physicianID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAssignmentRepo) LockByIDs(_ context.Context, ids []string) ([]model.CalendarAssignment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.CalendarAssignment
	for _, id := range ids {
		if a, ok := m.s.assignments[id]; ok {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssignmentID < result[j].AssignmentID })
	return result, nil
}

func (m *mockAssignmentRepo) UpdatePhysician(_ context.Context, a *model.CalendarAssignment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.assignments[a.AssignmentID]
	if !ok || stored.Version != a.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.PhysicianID = a.PhysicianID
	stored.UpdatedBy = a.UpdatedBy
	stored.Version++
	a.Version = stored.Version
	return nil
}

// ── Mock TradeRequestRepository ──

type mockTradeRepo struct{ s *memStore }

func (m *mockTradeRepo) Create(_ context.Context, trade *model.TradeRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if trade.TradeRequestID == "" {
		trade.TradeRequestID = m.s.nextID("trade")
	}
	trade.CreatedAt = m.s.stamp()
	cp := *trade
	m.s.trades[trade.TradeRequestID] = &cp
	return nil
}

func (m *mockTradeRepo) GetByID(_ context.Context, id string) (*model.TradeRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t, ok := m.s.trades[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTradeRepo) List(_ context.Context, filter repository.TradeFilter, offset, limit int) ([]model.TradeRequest, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var filtered []model.TradeRequest
	for _, t := range m.s.trades {
		if filter.FiscalYearID != "" && t.FiscalYearID != filter.FiscalYearID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.PhysicianID != "" && t.RequesterPhysicianID != filter.PhysicianID && t.TargetPhysicianID != filter.PhysicianID {
			continue
		}
		filtered = append(filtered, *t)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].CreatedAt.After(filtered[j].CreatedAt) })
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

func (m *mockTradeRepo) Update(_ context.Context, trade *model.TradeRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.trades[trade.TradeRequestID]
	if !ok || stored.Version != trade.Version {
		return pkgerrors.ErrOptimisticLock
	}
	trade.Version++
	cp := *trade
	m.s.trades[trade.TradeRequestID] = &cp
	return nil
}

func (m *mockTradeRepo) CountLiveByAssignments(_ context.Context, assignmentIDs []string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ids := make(map[string]bool, len(assignmentIDs))
	for _, id := range assignmentIDs {
		ids[id] = true
	}
	var n int64
	for _, t := range m.s.trades {
		if t.IsTerminal() {
			continue
		}
		if ids[t.RequesterAssignmentID] || ids[t.TargetAssignmentID] {
			n++
		}
	}
	return n, nil
}

// ── Mock AuditLogRepository ──

type mockAuditLogRepo struct{ s *memStore }

func (m *mockAuditLogRepo) Create(_ context.Context, log *model.AuditLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	log.AuditLogID = m.s.nextID("audit")
	m.s.audits = append(m.s.audits, *log)
	return nil
}

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []string
	for _, a := range s.audits {
		result = append(result, a.Action)
	}
	return result
}
