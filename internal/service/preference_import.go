package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
	"rota-planner/backend/internal/repository"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// ── 导入模块业务错误 ──

var (
	ErrImportFileInvalid         = pkgerrors.New(pkgerrors.ErrValidation, "导入文件格式不正确")
	ErrImportFiscalYearMismatch  = pkgerrors.New(pkgerrors.ErrValidation, "导入文件的财年与当前财年不一致")
	ErrImportDoctorMismatch      = pkgerrors.New(pkgerrors.ErrValidation, "导入文件的医生标识与目标医生不一致")
	ErrImportWeekInvalid         = pkgerrors.New(pkgerrors.ErrValidation, "导入文件包含无法解析的周开始日期")
	ErrImportAvailabilityInvalid = pkgerrors.New(pkgerrors.ErrValidation, "导入文件包含非法的可用性取值")
	ErrImportWeekSetMismatch     = pkgerrors.New(pkgerrors.ErrValidation, "导入文件的周集合与财年不一致")
)

const (
	importSheetName  = "周可用性"
	importHeaderRows = 4 // 财年、医生、空行、表头
)

var validAvailability = map[string]bool{
	model.AvailabilityGreen:  true,
	model.AvailabilityYellow: true,
	model.AvailabilityRed:    true,
}

// normalizeLabel 统一大小写并去掉空白与标点，用于财年标签与医生标识比较
func normalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// doctorToken 医生标识为 姓 + 缩写
func doctorToken(p *model.Physician) string {
	return p.LastName + p.Initials
}

// validateImport 校验导入载荷，返回 weekID → availability
//
// 失败时不产生任何副作用；周集合必须与财年完全一致（无重复、无缺失、无多余）。
func validateImport(payload *dto.ScheduleImportPayload, fy *model.FiscalYear, physician *model.Physician, weeks []model.Week) (map[string]string, error) {
	if normalizeLabel(payload.SourceFiscalYearLabel) != normalizeLabel(fy.Label) {
		return nil, pkgerrors.WithDetail(ErrImportFiscalYearMismatch,
			fmt.Sprintf("文件: %q, 当前: %q", payload.SourceFiscalYearLabel, fy.Label))
	}
	if normalizeLabel(payload.SourceDoctorToken) != normalizeLabel(doctorToken(physician)) {
		return nil, pkgerrors.WithDetail(ErrImportDoctorMismatch,
			fmt.Sprintf("文件: %q, 目标: %q", payload.SourceDoctorToken, doctorToken(physician)))
	}

	byStart := make(map[string]string, len(weeks))
	for _, w := range weeks {
		byStart[dto.FormatDate(w.StartDate)] = w.WeekID
	}

	result := make(map[string]string, len(payload.Weeks))
	seen := make(map[string]bool, len(payload.Weeks))
	var dups, unknown []string
	for _, iw := range payload.Weeks {
		start, err := time.Parse(dto.DateLayout, strings.TrimSpace(iw.WeekStart))
		if err != nil {
			return nil, pkgerrors.WithDetail(ErrImportWeekInvalid, iw.WeekStart)
		}
		key := dto.FormatDate(start)
		availability := strings.ToLower(strings.TrimSpace(iw.Availability))
		if !validAvailability[availability] {
			return nil, pkgerrors.WithDetail(ErrImportAvailabilityInvalid, fmt.Sprintf("%s: %q", key, iw.Availability))
		}
		if seen[key] {
			dups = append(dups, key)
			continue
		}
		seen[key] = true
		weekID, ok := byStart[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		result[weekID] = availability
	}

	var missing []string
	for start := range byStart {
		if !seen[start] {
			missing = append(missing, start)
		}
	}

	if len(dups) > 0 || len(unknown) > 0 || len(missing) > 0 {
		sort.Strings(missing)
		var parts []string
		if len(dups) > 0 {
			parts = append(parts, "重复的周: "+strings.Join(dups, ", "))
		}
		if len(unknown) > 0 {
			parts = append(parts, "未知的周: "+strings.Join(unknown, ", "))
		}
		if len(missing) > 0 {
			parts = append(parts, "缺少的周: "+strings.Join(missing, ", "))
		}
		return nil, pkgerrors.WithDetail(ErrImportWeekSetMismatch, strings.Join(parts, "; "))
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// ImportWeekPreferences
// ════════════════════════════════════════════════════════════

func (s *preferenceService) ImportWeekPreferences(ctx context.Context, actor Actor, physicianID string, payload *dto.ScheduleImportPayload) ([]dto.WeekPreferenceResponse, error) {
	if err := authorize(actor, actPreferenceWrite, physicianID); err != nil {
		return nil, err
	}
	fy, err := currentFiscalYear(ctx, s.repo, model.FiscalYearSetup, model.FiscalYearCollecting)
	if err != nil {
		return nil, err
	}
	physician, err := s.getPhysician(ctx, physicianID)
	if err != nil {
		return nil, err
	}
	weeks, err := s.repo.Week.ListByFiscalYear(ctx, fy.FiscalYearID, false)
	if err != nil {
		return nil, err
	}

	values, err := validateImport(payload, fy, physician, weeks)
	if err != nil {
		s.logger.Info("导入周可用性被拒绝", zap.String("physician_id", physicianID), zap.Error(err))
		return nil, err
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		request, err := ensureScheduleRequest(ctx, txRepo, fy.FiscalYearID, physicianID, actor)
		if err != nil {
			return err
		}
		prefs := make([]model.WeekPreference, 0, len(values))
		for _, w := range weeks {
			p := model.WeekPreference{
				FiscalYearID:      fy.FiscalYearID,
				PhysicianID:       physicianID,
				WeekID:            w.WeekID,
				ScheduleRequestID: &request.ScheduleRequestID,
				Availability:      values[w.WeekID],
			}
			p.CreatedBy = &actor.UserID
			p.UpdatedBy = &actor.UserID
			prefs = append(prefs, p)
		}
		if err := txRepo.WeekPreference.ReplaceForPhysician(ctx, fy.FiscalYearID, physicianID, prefs); err != nil {
			return err
		}
		return recordAudit(ctx, txRepo, actor, auditWeekPrefImport, "physician", physicianID, map[string]interface{}{
			"fiscal_year_id": fy.FiscalYearID,
			"count":          len(prefs),
		})
	})
	if err != nil {
		s.logger.Error("导入周可用性失败", zap.String("physician_id", physicianID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("导入周可用性成功", zap.String("physician_id", physicianID), zap.Int("weeks", len(values)))
	return s.listWeekPreferences(ctx, fy.FiscalYearID, physicianID)
}

func (s *preferenceService) ImportWeekPreferencesWorkbook(ctx context.Context, actor Actor, physicianID string, r io.Reader) ([]dto.WeekPreferenceResponse, error) {
	payload, err := parsePreferenceWorkbook(r)
	if err != nil {
		return nil, err
	}
	return s.ImportWeekPreferences(ctx, actor, physicianID, payload)
}

// WeekPreferenceTemplate 生成带当前取值的导入模板，返回文件内容与建议文件名
func (s *preferenceService) WeekPreferenceTemplate(ctx context.Context, actor Actor, physicianID string) ([]byte, string, error) {
	if err := authorize(actor, actPreferenceRead, physicianID); err != nil {
		return nil, "", err
	}
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, "", err
	}
	physician, err := s.getPhysician(ctx, physicianID)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.listWeekPreferences(ctx, fy.FiscalYearID, physicianID)
	if err != nil {
		return nil, "", err
	}

	data, err := buildPreferenceWorkbook(fy.Label, doctorToken(physician), rows)
	if err != nil {
		s.logger.Error("生成导入模板失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	filename := fmt.Sprintf("availability_%s_%s.xlsx", normalizeLabel(fy.Label), normalizeLabel(doctorToken(physician)))
	return data, filename, nil
}

// ── 工作簿读写 ──
//
// 布局：
//   - A1 财年 / B1 标签
//   - A2 医生 / B2 标识
//   - 第 4 行表头：周次 | 周开始日期 | 可用性
//   - 第 5 行起每周一行

func buildPreferenceWorkbook(fiscalYearLabel, token string, rows []dto.WeekPreferenceResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(importSheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(importSheetName, "A", "A", 10)
	f.SetColWidth(importSheetName, "B", "B", 16)
	f.SetColWidth(importSheetName, "C", "C", 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellStr(importSheetName, "A1", "财年")
	f.SetCellStr(importSheetName, "B1", fiscalYearLabel)
	f.SetCellStr(importSheetName, "A2", "医生")
	f.SetCellStr(importSheetName, "B2", token)

	f.SetCellStr(importSheetName, cell("A", importHeaderRows), "周次")
	f.SetCellStr(importSheetName, cell("B", importHeaderRows), "周开始日期")
	f.SetCellStr(importSheetName, cell("C", importHeaderRows), "可用性")
	f.SetCellStyle(importSheetName, cell("A", importHeaderRows), cell("C", importHeaderRows), headerStyle)

	dv := excelize.NewDataValidation(true)
	dv.Sqref = fmt.Sprintf("C%d:C%d", importHeaderRows+1, importHeaderRows+len(rows))
	if err := dv.SetDropList([]string{model.AvailabilityGreen, model.AvailabilityYellow, model.AvailabilityRed}); err == nil && len(rows) > 0 {
		f.AddDataValidation(importSheetName, dv)
	}

	row := importHeaderRows + 1
	for _, r := range rows {
		f.SetCellValue(importSheetName, cell("A", row), r.WeekNumber)
		// 以文本写入，避免被识别为日期序列号
		f.SetCellStr(importSheetName, cell("B", row), r.WeekStart)
		f.SetCellStr(importSheetName, cell("C", row), r.Availability)
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parsePreferenceWorkbook(r io.Reader) (*dto.ScheduleImportPayload, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.WithDetail(ErrImportFileInvalid, err.Error())
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrImportFileInvalid
	}
	sheet := sheets[0]
	if idx, err := f.GetSheetIndex(importSheetName); err == nil && idx >= 0 {
		sheet = importSheetName
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, pkgerrors.WithDetail(ErrImportFileInvalid, err.Error())
	}
	if len(rows) < importHeaderRows || len(rows[0]) < 2 || len(rows[1]) < 2 {
		return nil, pkgerrors.WithDetail(ErrImportFileInvalid, "缺少财年或医生标识")
	}

	payload := &dto.ScheduleImportPayload{
		SourceFiscalYearLabel: strings.TrimSpace(rows[0][1]),
		SourceDoctorToken:     strings.TrimSpace(rows[1][1]),
	}
	for i := importHeaderRows; i < len(rows); i++ {
		cols := rows[i]
		if len(cols) < 3 {
			if isBlankRow(cols) {
				continue
			}
			return nil, pkgerrors.WithDetail(ErrImportFileInvalid, fmt.Sprintf("第 %d 行列数不足", i+1))
		}
		if strings.TrimSpace(cols[1]) == "" && strings.TrimSpace(cols[2]) == "" {
			continue
		}
		payload.Weeks = append(payload.Weeks, dto.ImportWeek{
			WeekStart:    strings.TrimSpace(cols[1]),
			Availability: strings.TrimSpace(cols[2]),
		})
	}
	return payload, nil
}

func isBlankRow(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
