package schedule

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// WorkWindow 是单次任务的标准执行时长
const WorkWindow = 8 * time.Hour

const epsilon = 1e-9

// Calendar 描述对象的工作时间配置
type Calendar struct {
	Location    *time.Location
	WorkStart   time.Duration // 距零点的偏移
	WorkEnd     time.Duration
	WorkingDays map[time.Weekday]bool // 为空表示每天工作
}

// Occurrence 是某技术卡在某日的一次执行窗口
type Occurrence struct {
	Slot  int
	Start time.Time
	End   time.Time
}

// ParseClock 解析当天内的时刻 "HH:MM"（00:00–23:59）
func ParseClock(value string) (time.Duration, error) {
	return parseClock(value, false)
}

// ParseClosingTime 与 ParseClock 相同，但允许 "24:00" 表示营业到午夜
func ParseClosingTime(value string) (time.Duration, error) {
	return parseClock(value, true)
}

func parseClock(value string, allowMidnight bool) (time.Duration, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", value)
	}
	maxHour := 23
	if allowMidnight {
		maxHour = 24
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > maxHour {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// ParseWorkingDays 解析 ISO 星期列表 "1,2,3,4,5"（7 为周日）
func ParseWorkingDays(value string) (map[time.Weekday]bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	days := make(map[time.Weekday]bool, 7)
	for _, raw := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 1 || n > 7 {
			return nil, fmt.Errorf("invalid working day %q", raw)
		}
		days[time.Weekday(n%7)] = true
	}
	return days, nil
}

// IsWorkingDay 判断日历日是否为工作日
func (c Calendar) IsWorkingDay(day time.Time) bool {
	if len(c.WorkingDays) == 0 {
		return true
	}
	return c.WorkingDays[day.Weekday()]
}

// At 返回对象时区内 day 当天 offset 时刻
func (c Calendar) At(day time.Time, offset time.Duration) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, int(offset/time.Minute), 0, 0, loc)
}

// CivilDay 将 t 截断为所在时区的日历日（零点）
func CivilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween 返回两个日历日之间相差的天数，与时区和夏令时无关
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// IsEligible 判断 day 是否落在以 anchor 为起点、间隔 freqDays 的序列上。
// 分数间隔（如 3.5 天）按 floor(k*freqDays) 取整落日。
func IsEligible(anchor, day time.Time, freqDays float64) bool {
	d := DaysBetween(anchor, day)
	if d < 0 {
		return false
	}
	if freqDays <= 1 {
		return true
	}
	k := math.Ceil(float64(d)/freqDays - epsilon)
	return k*freqDays < float64(d)+1-epsilon
}

// OccurrencesPerDay 返回一天内的执行次数
func OccurrencesPerDay(freqDays float64) int {
	if freqDays <= 0 || freqDays >= 1 {
		return 1
	}
	n := int(math.Round(1 / freqDays))
	if n < 1 {
		n = 1
	}
	return n
}

// Occurrences 计算 day 当天的执行窗口。
// 首次从 preferred 开始；一天多次时，剩余工作时间被均分。
// 窗口长度为 WorkWindow，并截断到工作结束时间；截断后为空时保留完整窗口。
func (c Calendar) Occurrences(day time.Time, freqDays float64, preferred time.Duration) []Occurrence {
	n := OccurrencesPerDay(freqDays)
	workEnd := c.At(day, c.WorkEnd)

	window := WorkWindow
	var step time.Duration
	if n > 1 {
		span := c.WorkEnd - preferred
		if span <= 0 {
			span = 24*time.Hour - preferred
		}
		step = span / time.Duration(n)
		if step < window {
			window = step
		}
	}

	occurrences := make([]Occurrence, 0, n)
	for i := 0; i < n; i++ {
		start := c.At(day, preferred+time.Duration(i)*step)
		end := start.Add(window)
		if end.After(workEnd) && workEnd.After(start) {
			end = workEnd
		}
		occurrences = append(occurrences, Occurrence{Slot: i, Start: start, End: end})
	}
	return occurrences
}
