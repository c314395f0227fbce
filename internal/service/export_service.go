package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
	"rota-planner/backend/internal/repository"
	pkgerrors "rota-planner/backend/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNotPublished = pkgerrors.New(pkgerrors.ErrInvalidTransition, "主日历尚未发布，无法导出")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

const icsProductID = "-//rota-planner//master calendar//CN"

// ExportService 已发布日历导出业务接口
//
// 导出只读取已发布日历（published / archived），草稿不可导出。
//   - 快照：JSON，供前端或外部系统使用
//   - Excel：周 × 轮转网格，另附日历事件
//   - ICS：单个医生的全天事件订阅
type ExportService interface {
	Snapshot(ctx context.Context, actor Actor) (*dto.ExportSnapshot, error)
	ExportWorkbook(ctx context.Context, actor Actor) (*bytes.Buffer, string, error)
	ExportPhysicianICS(ctx context.Context, actor Actor, physicianID string) ([]byte, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Snapshot
// ════════════════════════════════════════════════════════════

func (s *exportService) Snapshot(ctx context.Context, actor Actor) (*dto.ExportSnapshot, error) {
	if err := authorize(actor, actExportAll, ""); err != nil {
		return nil, err
	}
	fy, err := s.publishedFiscalYear(ctx)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(ctx, s.repo, fy)
}

func buildSnapshot(ctx context.Context, repo *repository.Repository, fy *model.FiscalYear) (*dto.ExportSnapshot, error) {
	weeks, err := repo.Week.ListByFiscalYear(ctx, fy.FiscalYearID, false)
	if err != nil {
		return nil, err
	}
	rotations, err := repo.Rotation.List(ctx, false)
	if err != nil {
		return nil, err
	}
	physicians, err := repo.Physician.List(ctx, false)
	if err != nil {
		return nil, err
	}
	assignments, err := repo.Assignment.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}
	events, err := repo.CalendarEvent.ListByFiscalYear(ctx, fy.FiscalYearID)
	if err != nil {
		return nil, err
	}

	weekByID := make(map[string]model.Week, len(weeks))
	snap := &dto.ExportSnapshot{
		FiscalYear:     *toFiscalYearResponse(fy, nil),
		Physicians:     make([]dto.ExportPhysician, 0, len(physicians)),
		Weeks:          make([]dto.WeekResponse, 0, len(weeks)),
		Rotations:      make([]dto.GridRotation, 0, len(rotations)),
		Assignments:    make([]dto.ExportAssignment, 0, len(assignments)),
	}
	for _, w := range weeks {
		weekByID[w.WeekID] = w
		snap.Weeks = append(snap.Weeks, toWeekResponse(w))
	}
	for _, r := range activeRotationsSorted(rotations) {
		snap.Rotations = append(snap.Rotations, toGridRotation(r))
	}
	for _, p := range physicians {
		snap.Physicians = append(snap.Physicians, dto.ExportPhysician{
			PhysicianID: p.PhysicianID,
			FullName:    p.FullName,
			Initials:    p.Initials,
			Email:       p.Email,
		})
	}
	for _, a := range assignments {
		w := weekByID[a.WeekID]
		snap.Assignments = append(snap.Assignments, dto.ExportAssignment{
			AssignmentID: a.AssignmentID,
			PhysicianID:  a.PhysicianID,
			WeekID:       a.WeekID,
			RotationID:   a.RotationID,
			WeekNumber:   w.WeekNumber,
			WeekStart:    dto.FormatDate(w.StartDate),
			WeekEnd:      dto.FormatDate(w.EndDate),
		})
	}
	sort.SliceStable(snap.Assignments, func(i, j int) bool {
		if snap.Assignments[i].WeekNumber != snap.Assignments[j].WeekNumber {
			return snap.Assignments[i].WeekNumber < snap.Assignments[j].WeekNumber
		}
		return snap.Assignments[i].RotationID < snap.Assignments[j].RotationID
	})
	snap.CalendarEvents = toEventResponses(events)
	return snap, nil
}

// ════════════════════════════════════════════════════════════
// ExportWorkbook
// ════════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "主日历"：行为周（周次、起止日期），列为启用轮转，单元格为医生姓名
//   - Sheet "日历事件"：节假日等只读事件

func (s *exportService) ExportWorkbook(ctx context.Context, actor Actor) (*bytes.Buffer, string, error) {
	if err := authorize(actor, actExportAll, ""); err != nil {
		return nil, "", err
	}
	fy, err := s.publishedFiscalYear(ctx)
	if err != nil {
		return nil, "", err
	}
	snap, err := buildSnapshot(ctx, s.repo, fy)
	if err != nil {
		s.logger.Error("读取导出快照失败", zap.Error(err))
		return nil, "", err
	}

	buf, err := renderWorkbook(snap)
	if err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf, fmt.Sprintf("master_calendar_%s.xlsx", normalizeLabel(fy.Label)), nil
}

func renderWorkbook(snap *dto.ExportSnapshot) (*bytes.Buffer, error) {
	names := make(map[string]string, len(snap.Physicians))
	for _, p := range snap.Physicians {
		names[p.PhysicianID] = p.FullName
	}
	holder := make(map[cellKey]string, len(snap.Assignments))
	for _, a := range snap.Assignments {
		holder[cellKey{a.WeekID, a.RotationID}] = names[a.PhysicianID]
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "主日历"
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "C", 12)
	for i := range snap.Rotations {
		col := colName(3 + i)
		f.SetColWidth(sheetName, col, col, 20)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 主日历", snap.FiscalYear.Label))
	f.MergeCell(sheetName, "A1", cell(colName(2+len(snap.Rotations)), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	row := 2
	f.SetCellValue(sheetName, cell("A", row), "周次")
	f.SetCellValue(sheetName, cell("B", row), "开始")
	f.SetCellValue(sheetName, cell("C", row), "结束")
	for i, r := range snap.Rotations {
		f.SetCellValue(sheetName, cell(colName(3+i), row), r.Name)
	}
	f.SetCellStyle(sheetName, cell("A", row), cell(colName(2+len(snap.Rotations)), row), headerStyle)

	// 数据行
	row = 3
	for _, w := range snap.Weeks {
		if !w.IsActive {
			continue
		}
		f.SetCellValue(sheetName, cell("A", row), w.WeekNumber)
		f.SetCellStr(sheetName, cell("B", row), w.StartDate)
		f.SetCellStr(sheetName, cell("C", row), w.EndDate)
		for i, r := range snap.Rotations {
			text, ok := holder[cellKey{w.ID, r.RotationID}]
			if !ok {
				text = "-"
			}
			f.SetCellValue(sheetName, cell(colName(3+i), row), text)
		}
		row++
	}

	if len(snap.CalendarEvents) > 0 {
		eventSheet := "日历事件"
		if _, err := f.NewSheet(eventSheet); err != nil {
			return nil, err
		}
		f.SetColWidth(eventSheet, "A", "A", 30)
		f.SetColWidth(eventSheet, "B", "D", 12)
		f.SetCellValue(eventSheet, "A1", "事件")
		f.SetCellValue(eventSheet, "B1", "类别")
		f.SetCellValue(eventSheet, "C1", "开始")
		f.SetCellValue(eventSheet, "D1", "结束")
		f.SetCellStyle(eventSheet, "A1", "D1", headerStyle)
		for i, e := range snap.CalendarEvents {
			r := i + 2
			f.SetCellValue(eventSheet, cell("A", r), e.Title)
			f.SetCellValue(eventSheet, cell("B", r), e.Category)
			f.SetCellStr(eventSheet, cell("C", r), e.StartDate)
			f.SetCellStr(eventSheet, cell("D", r), e.EndDate)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ════════════════════════════════════════════════════════════
// ExportPhysicianICS
// ════════════════════════════════════════════════════════════

func (s *exportService) ExportPhysicianICS(ctx context.Context, actor Actor, physicianID string) ([]byte, string, error) {
	if err := authorize(actor, actExportOwn, physicianID); err != nil {
		return nil, "", err
	}
	fy, err := s.publishedFiscalYear(ctx)
	if err != nil {
		return nil, "", err
	}
	physician, err := s.repo.Physician.GetByID(ctx, physicianID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrPhysicianNotFound
		}
		return nil, "", err
	}
	snap, err := buildSnapshot(ctx, s.repo, fy)
	if err != nil {
		s.logger.Error("读取导出快照失败", zap.Error(err))
		return nil, "", err
	}

	body := renderPhysicianICS(snap, physician, time.Now().UTC())
	filename := fmt.Sprintf("%s_%s.ics", normalizeLabel(fy.Label), normalizeLabel(doctorToken(physician)))
	return []byte(body), filename, nil
}

// renderPhysicianICS 每个已发布格子生成一个全天事件，DTEND 为周末次日（不含）
func renderPhysicianICS(snap *dto.ExportSnapshot, physician *model.Physician, stamp time.Time) string {
	rotationName := make(map[string]string, len(snap.Rotations))
	for _, r := range snap.Rotations {
		rotationName[r.RotationID] = r.Name
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(fmt.Sprintf("%s %s", snap.FiscalYear.Label, physician.FullName))

	for _, a := range snap.Assignments {
		if a.PhysicianID != physician.PhysicianID {
			continue
		}
		start, err := time.Parse(dto.DateLayout, a.WeekStart)
		if err != nil {
			continue
		}
		end, err := time.Parse(dto.DateLayout, a.WeekEnd)
		if err != nil {
			continue
		}
		name := rotationName[a.RotationID]
		if name == "" {
			name = a.RotationID
		}

		event := cal.AddEvent(a.AssignmentID + "@rota-planner")
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(start)
		event.SetAllDayEndAt(end.AddDate(0, 0, 1))
		event.SetSummary(name)
		event.SetDescription(fmt.Sprintf("%s 第 %d 周", snap.FiscalYear.Label, a.WeekNumber))
	}
	return cal.Serialize()
}

// ── 内部辅助方法 ──

func (s *exportService) publishedFiscalYear(ctx context.Context) (*model.FiscalYear, error) {
	fy, err := readableFiscalYear(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	if fy.Status != model.FiscalYearPublished && fy.Status != model.FiscalYearArchived {
		return nil, pkgerrors.WithDetail(ErrExportNotPublished, fy.Status)
	}
	return fy, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
