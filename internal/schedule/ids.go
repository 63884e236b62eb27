package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout 是任务与清单 ID 中使用的日期格式
const DateLayout = "2006-01-02"

// ErrMalformedID 在任务 ID 无法解析时返回
var ErrMalformedID = errors.New("malformed task id")

var taskIDPattern = regexp.MustCompile(`^(.+)-(\d{4}-\d{2}-\d{2})(?:-(\d{1,2}))?$`)

// TaskRef 是解析后的任务 ID
type TaskRef struct {
	TechCardID string
	Date       time.Time // UTC 零点，仅表示日历日
	Slot       int
}

// DateKey 返回 YYYY-MM-DD
func (r TaskRef) DateKey() string {
	return r.Date.Format(DateLayout)
}

// ID 还原为规范形式
func (r TaskRef) ID() string {
	return TaskID(r.TechCardID, r.Date, r.Slot)
}

// TaskID 生成 "{techCardId}-{YYYY-MM-DD}"，一天多次的第 2 次起追加 "-{slot}"。
func TaskID(techCardID string, day time.Time, slot int) string {
	id := techCardID + "-" + day.Format(DateLayout)
	if slot > 0 {
		id += "-" + strconv.Itoa(slot)
	}
	return id
}

// ChecklistID 生成 "checklist-{objectId}-{YYYY-MM-DD}"
func ChecklistID(objectID string, day time.Time) string {
	return "checklist-" + objectID + "-" + day.Format(DateLayout)
}

// ParseTaskID 将任务 ID 拆解为技术卡 ID、日期与当日序号
func ParseTaskID(id string) (TaskRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return TaskRef{}, fmt.Errorf("%w: empty id", ErrMalformedID)
	}
	if strings.HasPrefix(id, "checklist-") {
		return TaskRef{}, fmt.Errorf("%w: %q is a checklist id", ErrMalformedID, id)
	}

	m := taskIDPattern.FindStringSubmatch(id)
	if m == nil {
		return TaskRef{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}

	date, err := time.Parse(DateLayout, m[2])
	if err != nil {
		return TaskRef{}, fmt.Errorf("%w: bad date %q", ErrMalformedID, m[2])
	}

	ref := TaskRef{TechCardID: m[1], Date: date}
	if m[3] != "" {
		slot, err := strconv.Atoi(m[3])
		if err != nil || slot == 0 {
			return TaskRef{}, fmt.Errorf("%w: bad slot %q", ErrMalformedID, m[3])
		}
		ref.Slot = slot
	}

	return ref, nil
}
