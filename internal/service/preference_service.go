package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rota-planner/backend/config"
	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
	"rota-planner/backend/internal/repository"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// ── 偏好与审批模块业务错误 ──

var (
	ErrPhysicianNotFound       = pkgerrors.New(pkgerrors.ErrNotFound, "医生不存在")
	ErrWeekNotFound            = pkgerrors.New(pkgerrors.ErrNotFound, "周不属于当前财年")
	ErrRotationNotFound        = pkgerrors.New(pkgerrors.ErrNotFound, "轮转不存在")
	ErrDuplicateWeek           = pkgerrors.New(pkgerrors.ErrValidation, "同一周不能重复提交")
	ErrDuplicateRotation       = pkgerrors.New(pkgerrors.ErrValidation, "同一轮转不能重复提交")
	ErrRotationPrefModes       = pkgerrors.New(pkgerrors.ErrValidation, "avoid、deprioritize、preference_rank 至多设置一项")
	ErrPreferenceRankInvalid   = pkgerrors.New(pkgerrors.ErrValidation, "preference_rank 必须为正整数")
	ErrAvoidReasonWithoutAvoid = pkgerrors.New(pkgerrors.ErrValidation, "仅在 avoid 时可填写原因")
	ErrRotationSetInvalid      = pkgerrors.New(pkgerrors.ErrBlocked, "启用的轮转配置不合法")
	ErrScheduleRequestMissing  = pkgerrors.New(pkgerrors.ErrBlocked, "医生尚未提交排班申请")
	ErrPreferencesIncomplete   = pkgerrors.New(pkgerrors.ErrBlocked, "轮转意愿未填写完整")
)

// 轮转意愿生效模式
const (
	modeAvoid        = "avoid"
	modeDeprioritize = "deprioritize"
	modeRanked       = "ranked"
	modeWilling      = "willing"
)

// PreferenceService 偏好收集与排班映射审批业务接口
type PreferenceService interface {
	ListWeekPreferences(ctx context.Context, actor Actor, physicianID string) ([]dto.WeekPreferenceResponse, error)
	UpsertWeekPreferences(ctx context.Context, actor Actor, physicianID string, req *dto.UpsertWeekPreferencesRequest) ([]dto.WeekPreferenceResponse, error)
	ListRotationPreferences(ctx context.Context, actor Actor, physicianID string) (*dto.RotationPreferenceMatrix, error)
	UpsertRotationPreferences(ctx context.Context, actor Actor, physicianID string, req *dto.UpsertRotationPreferencesRequest) (*dto.RotationPreferenceMatrix, error)
	SubmitScheduleRequest(ctx context.Context, actor Actor, physicianID string, req *dto.SubmitScheduleRequestRequest) (*dto.ScheduleRequestResponse, error)

	GetApprovalPanel(ctx context.Context, actor Actor) (*dto.ApprovalPanelResponse, error)
	// ApproveForMapping 幂等；已批准的医生再次批准直接返回当前状态
	ApproveForMapping(ctx context.Context, actor Actor, physicianID string) (*dto.PhysicianApprovalResponse, error)

	// 导入：校验通过后整体替换该医生本财年的周可用性
	ImportWeekPreferences(ctx context.Context, actor Actor, physicianID string, payload *dto.ScheduleImportPayload) ([]dto.WeekPreferenceResponse, error)
	ImportWeekPreferencesWorkbook(ctx context.Context, actor Actor, physicianID string, r io.Reader) ([]dto.WeekPreferenceResponse, error)
	WeekPreferenceTemplate(ctx context.Context, actor Actor, physicianID string) ([]byte, string, error)
}

type preferenceService struct {
	repo       *repository.Repository
	scheduling config.SchedulingConfig
	locker     Locker
	logger     *zap.Logger
}

// NewPreferenceService 创建 PreferenceService 实例
func NewPreferenceService(repo *repository.Repository, scheduling config.SchedulingConfig, locker Locker, logger *zap.Logger) PreferenceService {
	return &preferenceService{repo: repo, scheduling: scheduling, locker: locker, logger: logger}
}

// ════════════════════════════════════════════════════════════
// 周可用性
// ════════════════════════════════════════════════════════════

func (s *preferenceService) ListWeekPreferences(ctx context.Context, actor Actor, physicianID string) ([]dto.WeekPreferenceResponse, error) {
	if err := authorize(actor, actPreferenceRead, physicianID); err != nil {
		return nil, err
	}
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	if _, err := s.getPhysician(ctx, physicianID); err != nil {
		return nil, err
	}
	return s.listWeekPreferences(ctx, fy.FiscalYearID, physicianID)
}

func (s *preferenceService) listWeekPreferences(ctx context.Context, fiscalYearID, physicianID string) ([]dto.WeekPreferenceResponse, error) {
	weeks, err := s.repo.Week.ListByFiscalYear(ctx, fiscalYearID, false)
	if err != nil {
		s.logger.Error("查询财年周失败", zap.Error(err))
		return nil, err
	}
	prefs, err := s.repo.WeekPreference.ListByPhysician(ctx, fiscalYearID, physicianID)
	if err != nil {
		s.logger.Error("查询周可用性失败", zap.String("physician_id", physicianID), zap.Error(err))
		return nil, err
	}
	byWeek := make(map[string]model.WeekPreference, len(prefs))
	for _, p := range prefs {
		byWeek[p.WeekID] = p
	}

	result := make([]dto.WeekPreferenceResponse, 0, len(weeks))
	for _, w := range weeks {
		row := dto.WeekPreferenceResponse{
			WeekID:       w.WeekID,
			WeekNumber:   w.WeekNumber,
			WeekStart:    dto.FormatDate(w.StartDate),
			Availability: model.AvailabilityYellow,
			IsDefault:    true,
		}
		if p, ok := byWeek[w.WeekID]; ok {
			row.Availability = p.Availability
			row.ReasonText = p.ReasonText
			row.IsDefault = false
		}
		result = append(result, row)
	}
	return result, nil
}

func (s *preferenceService) UpsertWeekPreferences(ctx context.Context, actor Actor, physicianID string, req *dto.UpsertWeekPreferencesRequest) ([]dto.WeekPreferenceResponse, error) {
	if err := authorize(actor, actPreferenceWrite, physicianID); err != nil {
		return nil, err
	}
	fy, err := currentFiscalYear(ctx, s.repo, model.FiscalYearSetup, model.FiscalYearCollecting)
	if err != nil {
		return nil, err
	}
	if _, err := s.getPhysician(ctx, physicianID); err != nil {
		return nil, err
	}

	weeks, err := s.repo.Week.ListByFiscalYear(ctx, fy.FiscalYearID, false)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(weeks))
	for _, w := range weeks {
		known[w.WeekID] = true
	}

	seen := make(map[string]bool, len(req.Preferences))
	for _, item := range req.Preferences {
		if !known[item.WeekID] {
			return nil, pkgerrors.WithDetail(ErrWeekNotFound, item.WeekID)
		}
		if seen[item.WeekID] {
			return nil, pkgerrors.WithDetail(ErrDuplicateWeek, item.WeekID)
		}
		seen[item.WeekID] = true
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		request, err := ensureScheduleRequest(ctx, txRepo, fy.FiscalYearID, physicianID, actor)
		if err != nil {
			return err
		}
		prefs := make([]model.WeekPreference, 0, len(req.Preferences))
		for _, item := range req.Preferences {
			p := model.WeekPreference{
				FiscalYearID:      fy.FiscalYearID,
				PhysicianID:       physicianID,
				WeekID:            item.WeekID,
				ScheduleRequestID: &request.ScheduleRequestID,
				Availability:      item.Availability,
				ReasonText:        item.ReasonText,
			}
			p.CreatedBy = &actor.UserID
			p.UpdatedBy = &actor.UserID
			prefs = append(prefs, p)
		}
		if err := txRepo.WeekPreference.Upsert(ctx, prefs); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditWeekPrefUpsert, "physician", physicianID, map[string]interface{}{
			"fiscal_year_id": fy.FiscalYearID,
			"count":          len(prefs),
		})
	})
	if err != nil {
		s.logger.Error("写入周可用性失败", zap.String("physician_id", physicianID), zap.Error(err))
		return nil, err
	}

	return s.listWeekPreferences(ctx, fy.FiscalYearID, physicianID)
}

// ensureScheduleRequest 获取医生本财年的排班申请，不存在时以 draft 状态创建
func ensureScheduleRequest(ctx context.Context, txRepo *repository.Repository, fiscalYearID, physicianID string, actor Actor) (*model.ScheduleRequest, error) {
	req, err := txRepo.ScheduleRequest.GetByPhysician(ctx, fiscalYearID, physicianID)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	req = &model.ScheduleRequest{
		FiscalYearID: fiscalYearID,
		PhysicianID:  physicianID,
		Status:       model.RequestDraft,
	}
	req.CreatedBy = &actor.UserID
	req.UpdatedBy = &actor.UserID
	if err := txRepo.ScheduleRequest.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ════════════════════════════════════════════════════════════
// 轮转意愿
// ════════════════════════════════════════════════════════════

func (s *preferenceService) ListRotationPreferences(ctx context.Context, actor Actor, physicianID string) (*dto.RotationPreferenceMatrix, error) {
	if err := authorize(actor, actPreferenceRead, physicianID); err != nil {
		return nil, err
	}
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	if _, err := s.getPhysician(ctx, physicianID); err != nil {
		return nil, err
	}
	return s.rotationMatrix(ctx, fy.FiscalYearID, physicianID)
}

func (s *preferenceService) rotationMatrix(ctx context.Context, fiscalYearID, physicianID string) (*dto.RotationPreferenceMatrix, error) {
	rotations, err := s.repo.Rotation.List(ctx, false)
	if err != nil {
		s.logger.Error("查询轮转失败", zap.Error(err))
		return nil, err
	}
	prefs, err := s.repo.RotationPreference.ListByPhysician(ctx, fiscalYearID, physicianID)
	if err != nil {
		s.logger.Error("查询轮转意愿失败", zap.String("physician_id", physicianID), zap.Error(err))
		return nil, err
	}

	byRotation := make(map[string]model.RotationPreference, len(prefs))
	for _, p := range prefs {
		byRotation[p.RotationID] = p
	}

	var active []model.Rotation
	matrix := &dto.RotationPreferenceMatrix{PhysicianID: physicianID, Preferences: []dto.RotationPreferenceResponse{}}
	for _, r := range rotations {
		if r.IsActive {
			active = append(active, r)
		}
		p, ok := byRotation[r.RotationID]
		if !ok {
			continue
		}
		matrix.Preferences = append(matrix.Preferences, dto.RotationPreferenceResponse{
			RotationID:     r.RotationID,
			RotationName:   r.Name,
			Mode:           preferenceMode(&p),
			AvoidReason:    p.AvoidReason,
			PreferenceRank: p.PreferenceRank,
		})
	}

	matrix.ConfiguredCount, matrix.MissingRotations = completeness(active, prefs)
	matrix.RequiredCount = len(active)
	matrix.IsComplete = len(matrix.MissingRotations) == 0 && matrix.ConfiguredCount == matrix.RequiredCount
	return matrix, nil
}

func (s *preferenceService) UpsertRotationPreferences(ctx context.Context, actor Actor, physicianID string, req *dto.UpsertRotationPreferencesRequest) (*dto.RotationPreferenceMatrix, error) {
	if err := authorize(actor, actPreferenceWrite, physicianID); err != nil {
		return nil, err
	}
	fy, err := currentFiscalYear(ctx, s.repo, model.FiscalYearSetup, model.FiscalYearCollecting)
	if err != nil {
		return nil, err
	}
	if _, err := s.getPhysician(ctx, physicianID); err != nil {
		return nil, err
	}

	rotations, err := s.repo.Rotation.List(ctx, false)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(rotations))
	for _, r := range rotations {
		known[r.RotationID] = true
	}

	seen := make(map[string]bool, len(req.Preferences))
	for _, item := range req.Preferences {
		if !known[item.RotationID] {
			return nil, pkgerrors.WithDetail(ErrRotationNotFound, item.RotationID)
		}
		if seen[item.RotationID] {
			return nil, pkgerrors.WithDetail(ErrDuplicateRotation, item.RotationID)
		}
		seen[item.RotationID] = true
		if err := validateRotationPreference(item); err != nil {
			return nil, err
		}
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		prefs := make([]model.RotationPreference, 0, len(req.Preferences))
		for _, item := range req.Preferences {
			p := model.RotationPreference{
				FiscalYearID:   fy.FiscalYearID,
				PhysicianID:    physicianID,
				RotationID:     item.RotationID,
				Avoid:          item.Avoid,
				AvoidReason:    strings.TrimSpace(item.AvoidReason),
				Deprioritize:   item.Deprioritize,
				PreferenceRank: item.PreferenceRank,
			}
			p.CreatedBy = &actor.UserID
			p.UpdatedBy = &actor.UserID
			prefs = append(prefs, p)
		}
		if err := txRepo.RotationPreference.Upsert(ctx, prefs); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditRotationPrefUpsert, "physician", physicianID, map[string]interface{}{
			"fiscal_year_id": fy.FiscalYearID,
			"count":          len(prefs),
		})
	})
	if err != nil {
		s.logger.Error("写入轮转意愿失败", zap.String("physician_id", physicianID), zap.Error(err))
		return nil, err
	}

	return s.rotationMatrix(ctx, fy.FiscalYearID, physicianID)
}

// validateRotationPreference 每行恰有一种生效模式
func validateRotationPreference(item dto.RotationPreferenceItem) error {
	modes := 0
	if item.Avoid {
		modes++
	}
	if item.Deprioritize {
		modes++
	}
	if item.PreferenceRank != nil {
		modes++
		if *item.PreferenceRank <= 0 {
			return ErrPreferenceRankInvalid
		}
	}
	if modes > 1 {
		return ErrRotationPrefModes
	}
	if !item.Avoid && strings.TrimSpace(item.AvoidReason) != "" {
		return ErrAvoidReasonWithoutAvoid
	}
	return nil
}

func preferenceMode(p *model.RotationPreference) string {
	switch {
	case p == nil:
		return modeWilling
	case p.Avoid:
		return modeAvoid
	case p.Deprioritize:
		return modeDeprioritize
	case p.PreferenceRank != nil:
		return modeRanked
	default:
		return modeWilling
	}
}

// completeness 统计已配置的启用轮转数量，并按排序返回缺失的轮转名称
func completeness(active []model.Rotation, prefs []model.RotationPreference) (int, []string) {
	configured := make(map[string]bool, len(prefs))
	for _, p := range prefs {
		configured[p.RotationID] = true
	}
	count := 0
	missing := []string{}
	for _, r := range active {
		if configured[r.RotationID] {
			count++
		} else {
			missing = append(missing, r.Name)
		}
	}
	return count, missing
}

// rotationSetProblem 检查启用轮转集合是否合法，合法时返回空串
func rotationSetProblem(active []model.Rotation, canonical []string) string {
	if len(active) == 0 {
		return "未配置任何启用的轮转"
	}
	names := make(map[string]string, len(active))
	var dups []string
	for _, r := range active {
		key := normalizeLabel(r.Name)
		if _, ok := names[key]; ok {
			dups = append(dups, r.Name)
			continue
		}
		names[key] = r.Name
	}
	if len(dups) > 0 {
		return "启用的轮转存在重名: " + strings.Join(dups, ", ")
	}
	if len(canonical) == 0 {
		return ""
	}

	want := make(map[string]string, len(canonical))
	for _, c := range canonical {
		want[normalizeLabel(c)] = c
	}
	var missing, unexpected []string
	for key, name := range want {
		if _, ok := names[key]; !ok {
			missing = append(missing, name)
		}
	}
	for key, name := range names {
		if _, ok := want[key]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(unexpected)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "缺少轮转: "+strings.Join(missing, ", "))
	}
	if len(unexpected) > 0 {
		parts = append(parts, "存在非预期轮转: "+strings.Join(unexpected, ", "))
	}
	return strings.Join(parts, "; ")
}

// ════════════════════════════════════════════════════════════
// 排班申请
// ════════════════════════════════════════════════════════════

func (s *preferenceService) SubmitScheduleRequest(ctx context.Context, actor Actor, physicianID string, req *dto.SubmitScheduleRequestRequest) (*dto.ScheduleRequestResponse, error) {
	if err := authorize(actor, actPreferenceWrite, physicianID); err != nil {
		return nil, err
	}
	fy, err := currentFiscalYear(ctx, s.repo, model.FiscalYearSetup, model.FiscalYearCollecting)
	if err != nil {
		return nil, err
	}
	if _, err := s.getPhysician(ctx, physicianID); err != nil {
		return nil, err
	}

	var request *model.ScheduleRequest
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		var err error
		request, err = ensureScheduleRequest(ctx, txRepo, fy.FiscalYearID, physicianID, actor)
		if err != nil {
			return err
		}
		from := request.Status
		if request.Status == model.RequestDraft {
			request.Status = model.RequestSubmitted
		} else {
			request.Status = model.RequestRevised
		}
		now := time.Now().UTC()
		request.SubmittedAt = &now
		request.SpecialRequests = strings.TrimSpace(req.SpecialRequests)
		request.UpdatedBy = &actor.UserID
		if err := txRepo.ScheduleRequest.Update(ctx, request); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditRequestSubmit, "schedule_request", request.ScheduleRequestID, map[string]interface{}{
			"from": from,
			"to":   request.Status,
		})
	})
	if err != nil {
		s.logger.Error("提交排班申请失败", zap.String("physician_id", physicianID), zap.Error(err))
		return nil, err
	}

	return &dto.ScheduleRequestResponse{
		ID:              request.ScheduleRequestID,
		PhysicianID:     request.PhysicianID,
		Status:          request.Status,
		SpecialRequests: request.SpecialRequests,
		SubmittedAt:     dto.FormatTimePtr(request.SubmittedAt),
	}, nil
}

// ════════════════════════════════════════════════════════════
// 审批面板
// ════════════════════════════════════════════════════════════

func (s *preferenceService) GetApprovalPanel(ctx context.Context, actor Actor) (*dto.ApprovalPanelResponse, error) {
	if err := authorize(actor, actApprovalRead, ""); err != nil {
		return nil, err
	}
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.Rotation.List(ctx, true)
	if err != nil {
		return nil, err
	}
	physicians, err := s.repo.Physician.List(ctx, true)
	if err != nil {
		return nil, err
	}
	prefs, err := s.repo.RotationPreference.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}
	requests, err := s.repo.ScheduleRequest.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}
	approvals, err := s.repo.Approval.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}

	prefsByPhysician := make(map[string][]model.RotationPreference)
	for _, p := range prefs {
		prefsByPhysician[p.PhysicianID] = append(prefsByPhysician[p.PhysicianID], p)
	}
	requestByPhysician := make(map[string]model.ScheduleRequest, len(requests))
	for _, r := range requests {
		requestByPhysician[r.PhysicianID] = r
	}
	approved := make(map[string]bool, len(approvals))
	for _, a := range approvals {
		approved[a.PhysicianID] = a.Status == model.ApprovalApproved
	}

	panel := &dto.ApprovalPanelResponse{
		FiscalYearID:   fy.FiscalYearID,
		RequiredCount:  len(active),
		BlockingReason: rotationSetProblem(active, s.scheduling.CanonicalRotations),
		Physicians:     make([]dto.PhysicianApprovalRow, 0, len(physicians)),
	}
	for _, p := range physicians {
		configured, missing := completeness(active, prefsByPhysician[p.PhysicianID])
		req, hasRequest := requestByPhysician[p.PhysicianID]
		row := dto.PhysicianApprovalRow{
			PhysicianID:        p.PhysicianID,
			FullName:           p.FullName,
			Initials:           p.Initials,
			ConfiguredCount:    configured,
			RequiredCount:      len(active),
			MissingRotations:   missing,
			HasScheduleRequest: hasRequest,
			ApprovalStatus:     model.ApprovalPending,
		}
		if hasRequest {
			row.ScheduleRequestStatus = req.Status
		}
		if approved[p.PhysicianID] {
			row.ApprovalStatus = model.ApprovalApproved
		}
		row.CanApprove = panel.BlockingReason == "" && hasRequest && len(missing) == 0 &&
			row.ApprovalStatus == model.ApprovalPending
		panel.Physicians = append(panel.Physicians, row)
	}
	return panel, nil
}

// ────────────────────── ApproveForMapping ──────────────────────

func (s *preferenceService) ApproveForMapping(ctx context.Context, actor Actor, physicianID string) (*dto.PhysicianApprovalResponse, error) {
	if err := authorize(actor, actApprove, physicianID); err != nil {
		return nil, err
	}
	fy, err := currentFiscalYear(ctx, s.repo, model.FiscalYearCollecting, model.FiscalYearBuilding)
	if err != nil {
		return nil, err
	}
	if _, err := s.getPhysician(ctx, physicianID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, approvalLockKey(fy.FiscalYearID+":"+physicianID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// (a) 轮转配置本身合法
	active, err := s.repo.Rotation.List(ctx, true)
	if err != nil {
		return nil, err
	}
	if reason := rotationSetProblem(active, s.scheduling.CanonicalRotations); reason != "" {
		return nil, pkgerrors.WithDetail(ErrRotationSetInvalid, reason)
	}

	// (b) 已有排班申请
	if _, err := s.repo.ScheduleRequest.GetByPhysician(ctx, fy.FiscalYearID, physicianID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleRequestMissing
		}
		return nil, err
	}

	// (c) 意愿覆盖所有启用轮转
	prefs, err := s.repo.RotationPreference.ListByPhysician(ctx, fy.FiscalYearID, physicianID)
	if err != nil {
		return nil, err
	}
	if configured, missing := completeness(active, prefs); len(missing) > 0 || configured != len(active) {
		return nil, pkgerrors.WithDetail(ErrPreferencesIncomplete, strings.Join(missing, ", "))
	}

	existing, err := s.repo.Approval.GetByPhysician(ctx, fy.FiscalYearID, physicianID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status == model.ApprovalApproved {
		return toApprovalResponse(existing), nil
	}

	now := time.Now().UTC()
	approval := &model.PhysicianApproval{
		FiscalYearID: fy.FiscalYearID,
		PhysicianID:  physicianID,
		Status:       model.ApprovalApproved,
		ApprovedAt:   &now,
		ApprovedBy:   &actor.UserID,
	}
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Approval.Upsert(ctx, approval); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditApprove, "physician", physicianID, map[string]interface{}{
			"fiscal_year_id": fy.FiscalYearID,
		})
	})
	if err != nil {
		s.logger.Error("批准排班映射失败", zap.String("physician_id", physicianID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("医生已批准进入排班", zap.String("physician_id", physicianID))
	return toApprovalResponse(approval), nil
}

// ── 内部辅助方法 ──

func (s *preferenceService) getPhysician(ctx context.Context, id string) (*model.Physician, error) {
	p, err := s.repo.Physician.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhysicianNotFound
		}
		s.logger.Error("查询医生失败", zap.String("physician_id", id), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func toApprovalResponse(a *model.PhysicianApproval) *dto.PhysicianApprovalResponse {
	return &dto.PhysicianApprovalResponse{
		PhysicianID:    a.PhysicianID,
		ApprovalStatus: a.Status,
		ApprovedAt:     dto.FormatTimePtr(a.ApprovedAt),
		ApprovedBy:     a.ApprovedBy,
	}
}
