package service

import (
	"sort"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
)

// gridEntry 网格中一个已存在的格子（草稿格子或已发布 assignment）
type gridEntry struct {
	id          string
	physicianID *string
}

func activeWeeksSorted(weeks []model.Week) []model.Week {
	result := make([]model.Week, 0, len(weeks))
	for _, w := range weeks {
		if w.IsActive {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WeekNumber < result[j].WeekNumber })
	return result
}

func activeRotationsSorted(rotations []model.Rotation) []model.Rotation {
	result := make([]model.Rotation, 0, len(rotations))
	for _, r := range rotations {
		if r.IsActive {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// buildGrid 组装周 × 轮转视图；仅包含启用的周与轮转，空格子计入未排数量
func buildGrid(fiscalYearID string, weeks []model.Week, rotations []model.Rotation, entries map[cellKey]gridEntry, physicians []model.Physician) *dto.CalendarGrid {
	initials := make(map[string]string, len(physicians))
	for _, p := range physicians {
		initials[p.PhysicianID] = p.Initials
	}

	cols := activeRotationsSorted(rotations)
	grid := &dto.CalendarGrid{
		FiscalYearID: fiscalYearID,
		Rotations:    make([]dto.GridRotation, 0, len(cols)),
		Rows:         []dto.GridRow{},
	}
	for _, r := range cols {
		grid.Rotations = append(grid.Rotations, toGridRotation(r))
	}

	for _, w := range activeWeeksSorted(weeks) {
		row := dto.GridRow{
			WeekID:     w.WeekID,
			WeekNumber: w.WeekNumber,
			WeekStart:  dto.FormatDate(w.StartDate),
			WeekEnd:    dto.FormatDate(w.EndDate),
			Cells:      make([]dto.GridCell, 0, len(cols)),
		}
		for _, r := range cols {
			c := dto.GridCell{RotationID: r.RotationID}
			if e, ok := entries[cellKey{w.WeekID, r.RotationID}]; ok {
				c.CellID = e.id
				c.PhysicianID = e.physicianID
				if e.physicianID != nil {
					c.Initials = initials[*e.physicianID]
				}
			}
			if c.PhysicianID == nil {
				row.UnstaffedCount++
			}
			row.Cells = append(row.Cells, c)
		}
		grid.UnstaffedCount += row.UnstaffedCount
		grid.Rows = append(grid.Rows, row)
	}
	return grid
}

func toGridRotation(r model.Rotation) dto.GridRotation {
	return dto.GridRotation{
		RotationID:   r.RotationID,
		Name:         r.Name,
		Abbreviation: r.Abbreviation,
		SortOrder:    r.SortOrder,
	}
}
