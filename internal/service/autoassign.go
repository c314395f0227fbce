package service

import (
	"fmt"
	"sort"

	"rota-planner/backend/internal/dto"
	"rota-planner/backend/internal/model"
)

// ════════════════════════════════════════════════════════════
// 排班规划状态
// ════════════════════════════════════════════════════════════
//
// planState 是草稿在内存中的快照，手动排班的校验与自动排班共用。
// 只读数据在构建时一次性索引，占用关系随 place/unplace 更新。

type cellKey struct {
	weekID     string
	rotationID string
}

type planInput struct {
	Weeks         []model.Week
	Rotations     []model.Rotation // 全部轮转（含停用），用于 cFTE 计算
	Physicians    []model.Physician
	Approvals     []model.PhysicianApproval
	WeekPrefs     []model.WeekPreference
	RotationPrefs []model.RotationPreference
	ClinicCfte    map[string]float64
	Targets       []model.CfteTarget
	Cells         []model.DraftCell
}

type planState struct {
	weeks     []model.Week     // 启用周，按周次升序
	rotations []model.Rotation // 启用轮转，按 sort_order 升序

	rotationByID  map[string]model.Rotation
	physicianByID map[string]model.Physician
	weekByID      map[string]model.Week
	weekByNumber  map[int]string
	approved      map[string]bool
	availability  map[string]map[string]string
	prefs         map[string]map[string]model.RotationPreference
	targets       map[string]*float64

	cells     map[cellKey]model.DraftCell
	holder    map[cellKey]string
	busy      map[string]map[string]int // physician → week → 占用格子数
	totals    map[string]float64
	cellCount map[string]int
}

func newPlanState(in planInput) *planState {
	s := &planState{
		rotationByID:  make(map[string]model.Rotation, len(in.Rotations)),
		physicianByID: make(map[string]model.Physician, len(in.Physicians)),
		weekByID:      make(map[string]model.Week, len(in.Weeks)),
		weekByNumber:  make(map[int]string, len(in.Weeks)),
		approved:      make(map[string]bool, len(in.Approvals)),
		availability:  make(map[string]map[string]string),
		prefs:         make(map[string]map[string]model.RotationPreference),
		targets:       make(map[string]*float64, len(in.Targets)),
		cells:         make(map[cellKey]model.DraftCell, len(in.Cells)),
		holder:        make(map[cellKey]string),
		busy:          make(map[string]map[string]int),
		totals:        make(map[string]float64),
		cellCount:     make(map[string]int),
	}

	for _, w := range in.Weeks {
		s.weekByID[w.WeekID] = w
		s.weekByNumber[w.WeekNumber] = w.WeekID
		if w.IsActive {
			s.weeks = append(s.weeks, w)
		}
	}
	sort.Slice(s.weeks, func(i, j int) bool { return s.weeks[i].WeekNumber < s.weeks[j].WeekNumber })

	for _, r := range in.Rotations {
		s.rotationByID[r.RotationID] = r
		if r.IsActive {
			s.rotations = append(s.rotations, r)
		}
	}
	sort.SliceStable(s.rotations, func(i, j int) bool {
		if s.rotations[i].SortOrder != s.rotations[j].SortOrder {
			return s.rotations[i].SortOrder < s.rotations[j].SortOrder
		}
		return s.rotations[i].Name < s.rotations[j].Name
	})

	for _, p := range in.Physicians {
		s.physicianByID[p.PhysicianID] = p
	}
	for _, a := range in.Approvals {
		if a.Status == model.ApprovalApproved {
			s.approved[a.PhysicianID] = true
		}
	}
	for _, wp := range in.WeekPrefs {
		if s.availability[wp.PhysicianID] == nil {
			s.availability[wp.PhysicianID] = make(map[string]string)
		}
		s.availability[wp.PhysicianID][wp.WeekID] = wp.Availability
	}
	for _, rp := range in.RotationPrefs {
		if s.prefs[rp.PhysicianID] == nil {
			s.prefs[rp.PhysicianID] = make(map[string]model.RotationPreference)
		}
		s.prefs[rp.PhysicianID][rp.RotationID] = rp
	}
	for _, t := range in.Targets {
		s.targets[t.PhysicianID] = t.TargetCfte
	}
	for id, v := range in.ClinicCfte {
		s.totals[id] = v
	}

	for _, c := range in.Cells {
		key := cellKey{c.WeekID, c.RotationID}
		s.cells[key] = c
		if c.PhysicianID != nil {
			s.place(key, *c.PhysicianID)
		}
	}
	return s
}

// ── 占用关系 ──

func (s *planState) place(key cellKey, physicianID string) {
	s.holder[key] = physicianID
	if s.busy[physicianID] == nil {
		s.busy[physicianID] = make(map[string]int)
	}
	s.busy[physicianID][key.weekID]++
	s.totals[physicianID] += s.rotationByID[key.rotationID].CftePerWeek
	s.cellCount[physicianID]++
}

func (s *planState) unplace(key cellKey) {
	physicianID, ok := s.holder[key]
	if !ok {
		return
	}
	delete(s.holder, key)
	s.busy[physicianID][key.weekID]--
	s.totals[physicianID] -= s.rotationByID[key.rotationID].CftePerWeek
	s.cellCount[physicianID]--
}

func (s *planState) isBusy(physicianID, weekID string) bool {
	return s.busy[physicianID][weekID] > 0
}

func (s *planState) availabilityOf(physicianID, weekID string) string {
	if a, ok := s.availability[physicianID][weekID]; ok {
		return a
	}
	return model.AvailabilityYellow
}

func (s *planState) preferenceOf(physicianID, rotationID string) *model.RotationPreference {
	if p, ok := s.prefs[physicianID][rotationID]; ok {
		return &p
	}
	return nil
}

// runLength 假设 physicianID 担任该格子后，同一轮转上连续周的总长度
func (s *planState) runLength(physicianID, rotationID, weekID string) int {
	number := s.weekByID[weekID].WeekNumber
	run := 1
	for n := number - 1; ; n-- {
		w, ok := s.weekByNumber[n]
		if !ok || s.holder[cellKey{w, rotationID}] != physicianID {
			break
		}
		run++
	}
	for n := number + 1; ; n++ {
		w, ok := s.weekByNumber[n]
		if !ok || s.holder[cellKey{w, rotationID}] != physicianID {
			break
		}
		run++
	}
	return run
}

func (s *planState) exceedsConsecutive(physicianID string, key cellKey) bool {
	limit := s.rotationByID[key.rotationID].MaxConsecutiveWeeks
	return limit > 0 && s.runLength(physicianID, key.rotationID, key.weekID) > limit
}

func (s *planState) isOverTarget(physicianID string) bool {
	t := s.targets[physicianID]
	return t != nil && roundCfte(s.totals[physicianID]) > roundCfte(*t)
}

func (s *planState) unstaffedCount() int {
	n := 0
	for _, w := range s.weeks {
		for _, r := range s.rotations {
			key := cellKey{w.WeekID, r.RotationID}
			if _, ok := s.cells[key]; !ok {
				continue
			}
			if _, held := s.holder[key]; !held {
				n++
			}
		}
	}
	return n
}

// ════════════════════════════════════════════════════════════
// 手动排班告警
// ════════════════════════════════════════════════════════════

// assess 在 physicianID 已放入 key 后计算非阻断告警
func (s *planState) assess(key cellKey, physicianID string) []dto.CalendarWarning {
	warnings := []dto.CalendarWarning{}
	week := s.weekByID[key.weekID]
	rotation := s.rotationByID[key.rotationID]
	name := s.physicianByID[physicianID].FullName

	if s.availabilityOf(physicianID, key.weekID) == model.AvailabilityRed {
		warnings = append(warnings, s.warning(dto.WarnRedAvailability, key, physicianID,
			fmt.Sprintf("%s 在第 %d 周标记为不可用", name, week.WeekNumber)))
	}
	if s.exceedsConsecutive(physicianID, key) {
		warnings = append(warnings, s.warning(dto.WarnMaxConsecutive, key, physicianID,
			fmt.Sprintf("%s 连续 %d 周担任 %s，超过上限 %d 周", name,
				s.runLength(physicianID, key.rotationID, key.weekID), rotation.Name, rotation.MaxConsecutiveWeeks)))
	}
	if p := s.preferenceOf(physicianID, key.rotationID); p != nil && p.Avoid {
		warnings = append(warnings, s.warning(dto.WarnAvoidPreference, key, physicianID,
			fmt.Sprintf("%s 希望回避 %s", name, rotation.Name)))
	}
	if s.isOverTarget(physicianID) {
		warnings = append(warnings, s.overTargetWarning(key, physicianID))
	}
	return warnings
}

func (s *planState) warning(code string, key cellKey, physicianID, msg string) dto.CalendarWarning {
	return dto.CalendarWarning{
		Code:        code,
		Message:     msg,
		WeekID:      key.weekID,
		RotationID:  key.rotationID,
		PhysicianID: physicianID,
	}
}

func (s *planState) overTargetWarning(key cellKey, physicianID string) dto.CalendarWarning {
	return s.warning(dto.WarnOverTarget, key, physicianID,
		fmt.Sprintf("%s 的 cFTE 合计 %.6g 超过目标 %.6g", s.physicianByID[physicianID].FullName,
			roundCfte(s.totals[physicianID]), roundCfte(*s.targets[physicianID])))
}

// ════════════════════════════════════════════════════════════
// 自动排班
// ════════════════════════════════════════════════════════════
//
// 按周次升序、轮转 sort_order 升序逐格填充空格子，已排的格子保持不变。
// 候选人排序：
//   1. 可用性 green 优先于 yellow（red 不参与）
//   2. 有排名的按排名升序，其次无偏好，最后 deprioritize（avoid 不参与）
//   3. 有正余量的按余量降序，其次未设目标，最后余量非正的按余量降序
//   4. 已排格子数少者优先
//   5. physician_id 升序

type placement struct {
	CellID      string
	PhysicianID string
}

type planResult struct {
	Placements         []placement
	Warnings           []dto.CalendarWarning
	RemainingUnstaffed int
}

type candidate struct {
	physicianID  string
	availRank    int
	prefTier     int
	rank         int
	headroomTier int
	headroom     float64
	cells        int
}

func (s *planState) candidates(key cellKey) []candidate {
	var result []candidate
	for id, p := range s.physicianByID {
		if !p.IsActive || !s.approved[id] {
			continue
		}
		pref := s.preferenceOf(id, key.rotationID)
		if pref != nil && pref.Avoid {
			continue
		}
		avail := s.availabilityOf(id, key.weekID)
		if avail == model.AvailabilityRed {
			continue
		}
		if s.isBusy(id, key.weekID) {
			continue
		}
		if s.exceedsConsecutive(id, key) {
			continue
		}

		c := candidate{physicianID: id, cells: s.cellCount[id], prefTier: 1, headroomTier: 1}
		if avail == model.AvailabilityYellow {
			c.availRank = 1
		}
		switch preferenceMode(pref) {
		case modeRanked:
			c.prefTier = 0
			c.rank = *pref.PreferenceRank
		case modeDeprioritize:
			c.prefTier = 2
		}
		if t := s.targets[id]; t != nil {
			c.headroom = roundCfte(*t - s.totals[id])
			// 恰好达标与未设目标同档，只有超出目标才排到最后
			switch {
			case c.headroom > 0:
				c.headroomTier = 0
			case c.headroom < 0:
				c.headroomTier = 2
			}
		}
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.availRank != b.availRank {
			return a.availRank < b.availRank
		}
		if a.prefTier != b.prefTier {
			return a.prefTier < b.prefTier
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.headroomTier != b.headroomTier {
			return a.headroomTier < b.headroomTier
		}
		if a.headroom != b.headroom {
			return a.headroom > b.headroom
		}
		if a.cells != b.cells {
			return a.cells < b.cells
		}
		return a.physicianID < b.physicianID
	})
	return result
}

func (s *planState) autoAssign() planResult {
	result := planResult{Warnings: []dto.CalendarWarning{}}
	for _, w := range s.weeks {
		for _, r := range s.rotations {
			key := cellKey{w.WeekID, r.RotationID}
			cell, ok := s.cells[key]
			if !ok {
				continue
			}
			if _, held := s.holder[key]; held {
				continue
			}

			cands := s.candidates(key)
			if len(cands) == 0 {
				result.RemainingUnstaffed++
				result.Warnings = append(result.Warnings, dto.CalendarWarning{
					Code:       dto.WarnUnstaffed,
					Message:    fmt.Sprintf("第 %d 周 %s 无可排医生", w.WeekNumber, r.Name),
					WeekID:     w.WeekID,
					RotationID: r.RotationID,
				})
				continue
			}

			chosen := cands[0].physicianID
			wasOver := s.isOverTarget(chosen)
			s.place(key, chosen)
			result.Placements = append(result.Placements, placement{CellID: cell.CellID, PhysicianID: chosen})
			if !wasOver && s.isOverTarget(chosen) {
				result.Warnings = append(result.Warnings, s.overTargetWarning(key, chosen))
			}
		}
	}
	return result
}
