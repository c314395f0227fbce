package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	ics "github.com/arran4/golang-ical"

	"rota-planner/backend/internal/model"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：将标准 iCalendar (RFC 5545) 内容解析为财年内的 CalendarEvent 列表。
//
//   - 日历事件只关心日期：全天事件的 DTEND 不含当天，定时事件取所在时区的日期
//   - RRULE 支持 DAILY / WEEKLY / MONTHLY / YEARLY 及 INTERVAL、COUNT、UNTIL
//   - EXDATE 按日期排除单次重复
//   - 仅保留与财年日期范围有交集的事件，同名同日期的重复事件合并为一条
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize    = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout   = 30 * time.Second
	icsMaxOccurrences = 1000
	icsTitleMaxRunes  = 200
)

// parsedEvent ICS 解析中间结构，日期为 UTC 零点，End 含当天
type parsedEvent struct {
	Title string
	Start time.Time
	End   time.Time
}

// FetchICSContent 从订阅地址获取 ICS 内容
func FetchICSContent(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}
	if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
		return nil, fmt.Errorf("不支持的订阅地址: %s", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, icsFetchTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小，防止超大内容导致 OOM
	return &limitedBody{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		body:   resp.Body,
		cancel: cancel,
	}, nil
}

type limitedBody struct {
	io.Reader
	body   io.Closer
	cancel context.CancelFunc
}

func (b *limitedBody) Close() error {
	defer b.cancel()
	return b.body.Close()
}

// ParseEventsICS 解析 ICS 内容，返回与 [fyStart, fyEnd] 有交集的日历事件
func ParseEventsICS(reader io.Reader, fiscalYearID, category string, fyStart, fyEnd time.Time) ([]model.CalendarEvent, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}
	fyStart, fyEnd = dateOnly(fyStart), dateOnly(fyEnd)

	// 阶段 1: 解析 VEVENT 并展开重复
	var events []parsedEvent
	for _, comp := range cal.Events() {
		first, ok := parseVEvent(comp)
		if !ok {
			continue
		}
		for _, o := range expandOccurrences(comp, first, fyEnd) {
			if o.End.Before(fyStart) || o.Start.After(fyEnd) {
				continue
			}
			events = append(events, o)
		}
	}

	// 阶段 2: 去重并按日期排序
	merged := dedupeEvents(events)

	// 阶段 3: 转为 model.CalendarEvent
	result := make([]model.CalendarEvent, 0, len(merged))
	for _, e := range merged {
		result = append(result, model.CalendarEvent{
			FiscalYearID: fiscalYearID,
			Title:        e.Title,
			Category:     category,
			StartDate:    e.Start,
			EndDate:      e.End,
		})
	}
	return result, nil
}

// parseVEvent 解析单个 VEVENT 的标题与首次发生的日期范围
func parseVEvent(evt *ics.VEvent) (parsedEvent, bool) {
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return parsedEvent{}, false
	}
	title := truncateRunes(strings.TrimSpace(summary.Value), icsTitleMaxRunes)

	start, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart)
	if err != nil {
		return parsedEvent{}, false
	}
	startDate := dateOnly(start)
	endDate := startDate

	if end, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd); err == nil {
		if allDay {
			// 全天事件 DTEND 为结束次日
			endDate = dateOnly(end).AddDate(0, 0, -1)
		} else {
			endDate = dateOnly(end.Add(-time.Second))
		}
	} else if dur := evt.GetProperty(ics.ComponentPropertyDuration); dur != nil {
		if days := durationDays(dur.Value); days > 0 {
			endDate = startDate.AddDate(0, 0, days-1)
		}
	}
	if endDate.Before(startDate) {
		endDate = startDate
	}

	return parsedEvent{Title: title, Start: startDate, End: endDate}, true
}

// expandOccurrences 根据 RRULE / EXDATE 展开所有发生日期，超过 until 的不再生成
func expandOccurrences(evt *ics.VEvent, first parsedEvent, until time.Time) []parsedEvent {
	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		return []parsedEvent{first}
	}
	rule := parseRRule(rruleProp.Value)
	step := rule.step()
	if step == nil {
		// 不支持的频率按单次事件处理
		return []parsedEvent{first}
	}

	exDates := parseExDates(evt)
	span := first.End.Sub(first.Start)
	limit := until
	if !rule.until.IsZero() && rule.until.Before(limit) {
		limit = rule.until
	}

	var result []parsedEvent
	current := first.Start
	for n := 0; n < icsMaxOccurrences; n++ {
		if rule.count > 0 && n >= rule.count {
			break
		}
		if current.After(limit) {
			break
		}
		if !exDates[current.Format("20060102")] {
			result = append(result, parsedEvent{Title: first.Title, Start: current, End: current.Add(span)})
		}
		current = step(current)
	}
	return result
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// step 返回推进到下一次发生的函数，不支持的频率返回 nil
func (r rruleParams) step() func(time.Time) time.Time {
	n := r.interval
	switch r.freq {
	case "DAILY":
		return func(t time.Time) time.Time { return t.AddDate(0, 0, n) }
	case "WEEKLY":
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 7*n) }
	case "MONTHLY":
		return func(t time.Time) time.Time { return t.AddDate(0, n, 0) }
	case "YEARLY":
		return func(t time.Time) time.Time { return t.AddDate(n, 0, 0) }
	}
	return nil
}

// parseRRule 解析 RRULE 字符串（如 FREQ=YEARLY;COUNT=5;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			if n, err := strconv.Atoi(kv[1]); err == nil && n > 0 {
				r.interval = n
			}
		case "COUNT":
			if n, err := strconv.Atoi(kv[1]); err == nil {
				r.count = n
			}
		case "UNTIL":
			for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
				if t, err := time.Parse(layout, kv[1]); err == nil {
					r.until = dateOnly(t)
					break
				}
			}
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE，返回 yyyymmdd 集合
func parseExDates(evt *ics.VEvent) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		// 一行 EXDATE 可包含逗号分隔的多个日期
		for _, v := range strings.Split(prop.Value, ",") {
			v = strings.TrimSpace(v)
			if len(v) >= 8 {
				exDates[v[:8]] = true
			}
		}
	}
	return exDates
}

// dedupeEvents 合并标题与日期完全相同的事件，按开始日期、标题排序
func dedupeEvents(events []parsedEvent) []parsedEvent {
	seen := make(map[parsedEvent]bool, len(events))
	result := make([]parsedEvent, 0, len(events))
	for _, e := range events {
		if seen[e] {
			continue
		}
		seen[e] = true
		result = append(result, e)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Start.Equal(result[j].Start) {
			return result[i].Start.Before(result[j].Start)
		}
		return result[i].Title < result[j].Title
	})
	return result
}

// ── 辅助函数 ──

// parseICSDateTime 从 VEVENT 中解析日期时间属性，第二个返回值表示是否为全天日期
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", propName)
	}
	val := strings.TrimSpace(prop.Value)

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			tzid = v[0]
		}
	}

	if t, err := time.Parse("20060102", val); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse("20060102T150405", val); err == nil {
		// 浮动时间或带 TZID：按该时区的墙上时间解释
		if tzid != "" {
			if loc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), false, nil
			}
		}
		return t, false, nil
	}
	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}

// dateOnly 取 t 在自身时区的日期，返回 UTC 零点
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// durationDays 解析 P<n>D / P<n>W 形式的持续时间，其他形式返回 0
func durationDays(value string) int {
	v := strings.ToUpper(strings.TrimSpace(value))
	if !strings.HasPrefix(v, "P") || strings.Contains(v, "T") {
		return 0
	}
	v = strings.TrimPrefix(v, "P")
	mult := 1
	switch {
	case strings.HasSuffix(v, "W"):
		mult = 7
		v = strings.TrimSuffix(v, "W")
	case strings.HasSuffix(v, "D"):
		v = strings.TrimSuffix(v, "D")
	default:
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n * mult
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
