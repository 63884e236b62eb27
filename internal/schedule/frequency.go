package schedule

import (
	"regexp"
	"strconv"
	"strings"
)

// Outcome 标记频率文本是否被成功识别
type Outcome int

const (
	// Fallback 表示文本未匹配任何已知模式，按每日一次处理
	Fallback Outcome = iota
	// Parsed 表示文本匹配到了已知模式
	Parsed
)

func (o Outcome) String() string {
	if o == Parsed {
		return "parsed"
	}
	return "fallback"
}

const (
	// DefaultTime 在工种无法归类时使用
	DefaultTime = "09:00"

	daysPerWeek    = 7
	daysPerMonth   = 30
	daysPerQuarter = 90
	daysPerYear    = 365
)

// Frequency 是频率解析结果，Days 可能小于 1（一天多次）。
type Frequency struct {
	Days          float64
	DefaultTime   string
	MaxDelayHours int
	Outcome       Outcome
}

// IsFallback 供数据质量审计使用
func (f Frequency) IsFallback() bool {
	return f.Outcome == Fallback
}

var (
	timesPerUnitPattern = regexp.MustCompile(`(\d+)\s*раз[а]?\s+в\s+(день|сутки|неделю|месяц|квартал|год)`)
	everyNUnitsPattern  = regexp.MustCompile(`(?:каждые|каждых|раз\s+в)\s+(\d+)\s+(дн[а-я]*|день|недел[а-я]*|месяц[а-я]*)`)
)

type keyword struct {
	phrase string
	days   float64
}

// 顺序敏感："через день" 必须先于 "день" 相关短语
var keywords = []keyword{
	{"через день", 2},
	{"ежедневно", 1},
	{"каждый день", 1},
	{"раз в день", 1},
	{"раз в сутки", 1},
	{"еженедельно", daysPerWeek},
	{"раз в неделю", daysPerWeek},
	{"каждую неделю", daysPerWeek},
	{"ежемесячно", daysPerMonth},
	{"раз в месяц", daysPerMonth},
	{"каждый месяц", daysPerMonth},
	{"ежеквартально", daysPerQuarter},
	{"раз в квартал", daysPerQuarter},
	{"ежегодно", daysPerYear},
	{"раз в год", daysPerYear},
	{"каждый год", daysPerYear},
}

// ParseFrequency 将自由文本频率（俄语）转换为间隔天数、默认时间与最大延迟。
// 未识别的文本回退为每日一次，不返回错误；调用方通过 Outcome 区分。
func ParseFrequency(text, workType string) Frequency {
	days, ok := parseDays(text)
	outcome := Parsed
	if !ok {
		days = 1
		outcome = Fallback
	}

	return Frequency{
		Days:          days,
		DefaultTime:   DefaultTimeFor(workType),
		MaxDelayHours: MaxDelayHoursFor(days),
		Outcome:       outcome,
	}
}

func parseDays(text string) (float64, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.ReplaceAll(normalized, "ё", "е")
	normalized = strings.Join(strings.Fields(normalized), " ")
	if normalized == "" {
		return 0, false
	}

	if m := timesPerUnitPattern.FindStringSubmatch(normalized); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return 0, false
		}
		return unitDays(m[2]) / float64(n), true
	}

	if m := everyNUnitsPattern.FindStringSubmatch(normalized); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return 0, false
		}
		return unitDays(m[2]) * float64(n), true
	}

	for _, kw := range keywords {
		if strings.Contains(normalized, kw.phrase) {
			return kw.days, true
		}
	}

	return 0, false
}

func unitDays(unit string) float64 {
	switch {
	case strings.HasPrefix(unit, "недел"):
		return daysPerWeek
	case strings.HasPrefix(unit, "месяц"):
		return daysPerMonth
	case unit == "квартал":
		return daysPerQuarter
	case unit == "год":
		return daysPerYear
	default:
		return 1
	}
}

var (
	morningWork = []string{"уборк", "протир", "мыть", "мойк", "влажн", "пылесос", "дезинф"}
	eveningWork = []string{"мусор", "вынос", "закрыт"}
	middayWork  = []string{"провер", "осмотр", "контрол", "инспек", "обход"}
)

// DefaultTimeFor 依据工种名称给出展示用的默认时间，技术卡上的 PreferredTime 优先。
func DefaultTimeFor(workType string) string {
	label := strings.ToLower(workType)
	switch {
	case containsAny(label, eveningWork):
		return "18:00"
	case containsAny(label, middayWork):
		return "12:00"
	case containsAny(label, morningWork):
		return "08:00"
	default:
		return DefaultTime
	}
}

// MaxDelayHoursFor 返回与频率相称的宽限时长（小时）。
// 长周期任务同样以小时表示：周 24h、月 72h、季度及以上 168h。
func MaxDelayHoursFor(days float64) int {
	switch {
	case days < 1:
		return 2
	case days < 2:
		return 4
	case days <= daysPerWeek:
		return 24
	case days <= 31:
		return 72
	default:
		return 168
	}
}

func containsAny(s string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Band 将间隔天数归入日历展示用的频率档位
func Band(days float64) string {
	switch {
	case days <= 0:
		return "daily"
	case days < 1:
		return "multiple_daily"
	case days < 2:
		return "daily"
	case days <= daysPerWeek:
		return "weekly"
	case days <= 31:
		return "monthly"
	case days <= 92:
		return "quarterly"
	default:
		return "yearly"
	}
}
