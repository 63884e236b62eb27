package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cleanops/internal/clock"
	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/schedule"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxRangeDays 限制单次生成的日期跨度
const MaxRangeDays = 93

// GenerateRequest 描述生成区间与可见范围
// ManagerID 为调用方显式筛选；ManagerIDs 为可见范围，nil 表示不限制
type GenerateRequest struct {
	DateFrom   time.Time
	DateTo     time.Time
	ManagerID  *uint
	ManagerIDs []uint
	ObjectIDs  []string
}

// VirtualTask 是技术卡在某日的一次执行，未物化时仅存在于内存中
type VirtualTask struct {
	ID                string          `json:"id"`
	TechCardID        string          `json:"tech_card_id"`
	ObjectID          string          `json:"object_id"`
	ObjectName        string          `json:"object_name"`
	ManagerID         uint            `json:"manager_id"`
	RoomName          string          `json:"room_name,omitempty"`
	WorkType          string          `json:"work_type"`
	FrequencyText     string          `json:"frequency_text"`
	FrequencyDays     float64         `json:"frequency_days"`
	Band              string          `json:"band"`
	Date              string          `json:"date"`
	Slot              int             `json:"slot"`
	ScheduledStart    time.Time       `json:"scheduled_start"`
	ScheduledEnd      time.Time       `json:"scheduled_end"`
	MaxDelayHours     int             `json:"max_delay_hours"`
	Status            schedule.Status `json:"status"`
	Materialized      bool            `json:"materialized"`
	ChecklistID       string          `json:"checklist_id,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CompletedByID     *uint           `json:"completed_by_id,omitempty"`
	CompletionComment string          `json:"completion_comment,omitempty"`
	CompletionPhotos  []string        `json:"completion_photos,omitempty"`
}

// Generator 根据技术卡计算虚拟任务，只读存储
type Generator struct {
	db     *gorm.DB
	cards  *TechCardService
	clock  clock.Clock
	logger *zap.Logger
}

// NewGenerator 构造 Generator
func NewGenerator(gdb *gorm.DB, clk clock.Clock, logger *zap.Logger) *Generator {
	return &Generator{db: gdb, cards: NewTechCardService(gdb), clock: clk, logger: logger}
}

// Generate 计算 [DateFrom, DateTo]（含）内的全部执行，并以已物化任务覆盖状态。
// 没有技术卡或区间为空时返回空切片，不返回错误。
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) ([]VirtualTask, error) {
	from := civilDate(req.DateFrom)
	to := civilDate(req.DateTo)
	if to.Before(from) {
		return []VirtualTask{}, nil
	}
	if days := schedule.DaysBetween(from, to) + 1; days > MaxRangeDays {
		return nil, fmt.Errorf("%w: range of %d days exceeds %d", ErrMalformedInput, days, MaxRangeDays)
	}

	scope := req.ManagerIDs
	if req.ManagerID != nil {
		if scope != nil && !slices.Contains(scope, *req.ManagerID) {
			return []VirtualTask{}, nil
		}
		scope = []uint{*req.ManagerID}
	}

	objects, err := g.loadObjects(ctx, req.ObjectIDs, scope)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return []VirtualTask{}, nil
	}
	objectIDs := make([]string, 0, len(objects))
	for id := range objects {
		objectIDs = append(objectIDs, id)
	}
	slices.Sort(objectIDs)

	cards, err := g.cards.List(ctx, TechCardFilter{ObjectIDs: objectIDs})
	if err != nil {
		return nil, err
	}

	// 按对象而非技术卡加载，技术卡删除后已物化的任务仍然可见
	persisted, err := g.loadPersisted(ctx, objectIDs, from, to)
	if err != nil {
		return nil, err
	}

	now := g.clock.Now()
	tasks := make([]VirtualTask, 0, len(cards))
	seen := make(map[string]bool, len(persisted))

	for _, card := range cards {
		object, ok := objects[card.ObjectID]
		if !ok {
			g.logger.Warn("tech card references missing object",
				zap.String("tech_card_id", card.ID),
				zap.String("object_id", card.ObjectID),
			)
			continue
		}
		if !card.Active {
			continue
		}

		cal := CalendarFor(object)
		sched := scheduleFor(card, cal)

		for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
			local := cal.At(day, 0)
			if !cal.IsWorkingDay(local) || !schedule.IsEligible(sched.anchor, local, sched.freqDays) {
				continue
			}

			for _, occ := range cal.Occurrences(local, sched.freqDays, sched.preferred) {
				vt := newVirtualTask(card, object, sched, local, occ)
				vt.Status = schedule.ComputeStatus(now, occ.Start, occ.End, sched.maxDelay)

				if row, ok := persisted[vt.ID]; ok {
					overlayPersisted(&vt, row)
					seen[vt.ID] = true
				}
				tasks = append(tasks, vt)
			}
		}
	}

	// 已物化但不再由当前排程产生的任务（频率、工作日被修改或技术卡已删除）仍须展示
	for id, row := range persisted {
		if seen[id] {
			continue
		}
		object := objects[row.ObjectID]
		vt := VirtualTask{
			ID:         row.ID,
			TechCardID: row.TechCardID,
			ObjectID:   row.ObjectID,
			ObjectName: row.ObjectName,
			ManagerID:  object.ManagerID,
			Date:       row.ScheduledDate,
			Band:       schedule.Band(1),
		}
		if card, ok := findCard(cards, row.TechCardID); ok {
			vt.FrequencyText = card.FrequencyText
			vt.FrequencyDays = card.FrequencyDays
			vt.Band = schedule.Band(card.FrequencyDays)
		}
		if ref, err := schedule.ParseTaskID(row.ID); err == nil {
			vt.Slot = ref.Slot
		}
		overlayPersisted(&vt, row)
		tasks = append(tasks, vt)
	}

	slices.SortFunc(tasks, func(a, b VirtualTask) int {
		if c := a.ScheduledStart.Compare(b.ScheduledStart); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return tasks, nil
}

func newVirtualTask(card db.TechCard, object db.Object, sched cardSchedule, day time.Time, occ schedule.Occurrence) VirtualTask {
	return VirtualTask{
		ID:             schedule.TaskID(card.ID, day, occ.Slot),
		TechCardID:     card.ID,
		ObjectID:       object.ID,
		ObjectName:     object.Name,
		ManagerID:      object.ManagerID,
		RoomName:       card.RoomName,
		WorkType:       card.WorkType,
		FrequencyText:  card.FrequencyText,
		FrequencyDays:  sched.freqDays,
		Band:           schedule.Band(sched.freqDays),
		Date:           day.Format(schedule.DateLayout),
		Slot:           occ.Slot,
		ScheduledStart: occ.Start,
		ScheduledEnd:   occ.End,
		MaxDelayHours:  int(sched.maxDelay / time.Hour),
	}
}

// overlayPersisted 以存储行为准覆盖状态与完成信息
func overlayPersisted(vt *VirtualTask, row db.Task) {
	vt.Materialized = true
	vt.Status = row.Status
	vt.ChecklistID = row.ChecklistID
	vt.CompletedAt = row.CompletedAt
	vt.CompletedByID = row.CompletedByID
	vt.CompletionComment = row.CompletionComment
	vt.CompletionPhotos = row.CompletionPhotos
	if row.ScheduledStart != nil {
		vt.ScheduledStart = *row.ScheduledStart
	}
	if row.ScheduledEnd != nil {
		vt.ScheduledEnd = *row.ScheduledEnd
	}
	if row.MaxDelayHours > 0 {
		vt.MaxDelayHours = row.MaxDelayHours
	}
	if vt.RoomName == "" {
		vt.RoomName = row.RoomName
	}
	if vt.WorkType == "" {
		vt.WorkType = row.WorkType
	}
}

func (g *Generator) loadObjects(ctx context.Context, objectIDs []string, managerIDs []uint) (map[string]db.Object, error) {
	if managerIDs != nil && len(managerIDs) == 0 {
		return map[string]db.Object{}, nil
	}

	query := g.db.WithContext(ctx).Model(&db.Object{})
	if managerIDs != nil {
		query = query.Where("manager_id IN ?", managerIDs)
	}
	if len(objectIDs) > 0 {
		query = query.Where("id IN ?", objectIDs)
	}

	var objects []db.Object
	if err := query.Find(&objects).Error; err != nil {
		return nil, fmt.Errorf("load objects: %w", err)
	}

	byID := make(map[string]db.Object, len(objects))
	for _, object := range objects {
		byID[object.ID] = object
	}
	return byID, nil
}

func (g *Generator) loadPersisted(ctx context.Context, objectIDs []string, from, to time.Time) (map[string]db.Task, error) {
	var rows []db.Task
	if err := g.db.WithContext(ctx).
		Where("object_id IN ?", objectIDs).
		Where("scheduled_date BETWEEN ? AND ?", from.Format(schedule.DateLayout), to.Format(schedule.DateLayout)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load materialized tasks: %w", err)
	}

	byID := make(map[string]db.Task, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}

func findCard(cards []db.TechCard, id string) (db.TechCard, bool) {
	for _, card := range cards {
		if card.ID == id {
			return card, true
		}
	}
	return db.TechCard{}, false
}

// civilDate 取 t 的年月日，按 UTC 零点表示日历日
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
