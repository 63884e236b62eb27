package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/schedule"
	"gorm.io/gorm"
)

var bandOrder = []string{"multiple_daily", "daily", "weekly", "monthly", "quarterly", "yearly"}

// StatusCounts 按状态统计任务数
type StatusCounts struct {
	Total    int                     `json:"total"`
	ByStatus map[schedule.Status]int `json:"by_status"`
}

func newStatusCounts() StatusCounts {
	counts := StatusCounts{ByStatus: make(map[schedule.Status]int, len(schedule.AllStatuses))}
	for _, status := range schedule.AllStatuses {
		counts.ByStatus[status] = 0
	}
	return counts
}

func (c *StatusCounts) add(status schedule.Status) {
	c.Total++
	c.ByStatus[status]++
}

// BandGroup 是对象下某一频率档位的任务
type BandGroup struct {
	Band   string        `json:"band"`
	Counts StatusCounts  `json:"counts"`
	Tasks  []VirtualTask `json:"tasks"`
}

// ObjectGroup 是经理名下的一个对象
type ObjectGroup struct {
	ObjectID   string       `json:"object_id"`
	ObjectName string       `json:"object_name"`
	Counts     StatusCounts `json:"counts"`
	Bands      []BandGroup  `json:"bands"`
}

// ManagerGroup 是一位经理的全部对象
type ManagerGroup struct {
	ManagerID   uint          `json:"manager_id"`
	ManagerName string        `json:"manager_name"`
	Counts      StatusCounts  `json:"counts"`
	Objects     []ObjectGroup `json:"objects"`
}

// CalendarView 是日历的分组视图
type CalendarView struct {
	DateFrom string         `json:"date_from"`
	DateTo   string         `json:"date_to"`
	Counts   StatusCounts   `json:"counts"`
	Managers []ManagerGroup `json:"managers"`
}

// ViewRequest 描述日历查询，ManagerID 为可选的显式筛选
type ViewRequest struct {
	DateFrom  time.Time
	DateTo    time.Time
	Requester db.User
	ManagerID *uint
}

// CalendarAggregator 组合生成器输出与可见范围，只读
type CalendarAggregator struct {
	db        *gorm.DB
	generator *Generator
}

// NewCalendarAggregator 构造 CalendarAggregator
func NewCalendarAggregator(gdb *gorm.DB, generator *Generator) *CalendarAggregator {
	return &CalendarAggregator{db: gdb, generator: generator}
}

// Scope 返回请求者可见的经理 ID 集合，nil 表示全部可见
func (a *CalendarAggregator) Scope(ctx context.Context, requester db.User, requested *uint) ([]uint, error) {
	switch requester.Role {
	case db.RoleAdmin:
		if requested != nil {
			return []uint{*requested}, nil
		}
		return nil, nil
	case db.RoleDeputy:
		var assigned []uint
		if err := a.db.WithContext(ctx).Model(&db.DeputyAssignment{}).
			Where("deputy_id = ?", requester.ID).
			Pluck("manager_id", &assigned).Error; err != nil {
			return nil, fmt.Errorf("load deputy assignments: %w", err)
		}
		if assigned == nil {
			assigned = []uint{}
		}
		if requested != nil {
			if !slices.Contains(assigned, *requested) {
				return nil, fmt.Errorf("%w: manager %d is not assigned", ErrForbidden, *requested)
			}
			return []uint{*requested}, nil
		}
		return assigned, nil
	default:
		if requested != nil && *requested != requester.ID {
			return nil, fmt.Errorf("%w: managers see only their own objects", ErrForbidden)
		}
		return []uint{requester.ID}, nil
	}
}

// Tasks 返回请求者可见的扁平任务列表
func (a *CalendarAggregator) Tasks(ctx context.Context, req ViewRequest) ([]VirtualTask, error) {
	scope, err := a.Scope(ctx, req.Requester, req.ManagerID)
	if err != nil {
		return nil, err
	}
	return a.generator.Generate(ctx, GenerateRequest{
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		ManagerIDs: scope,
	})
}

// View 按 经理 → 对象 → 频率档位 分组并统计各状态数量
func (a *CalendarAggregator) View(ctx context.Context, req ViewRequest) (*CalendarView, error) {
	tasks, err := a.Tasks(ctx, req)
	if err != nil {
		return nil, err
	}

	names, err := a.managerNames(ctx, tasks)
	if err != nil {
		return nil, err
	}

	view := &CalendarView{
		DateFrom: req.DateFrom.Format(schedule.DateLayout),
		DateTo:   req.DateTo.Format(schedule.DateLayout),
		Counts:   newStatusCounts(),
		Managers: []ManagerGroup{},
	}

	managers := make(map[uint]*ManagerGroup)
	objects := make(map[string]*ObjectGroup)
	bands := make(map[string]*BandGroup)

	for _, task := range tasks {
		view.Counts.add(task.Status)

		manager, ok := managers[task.ManagerID]
		if !ok {
			manager = &ManagerGroup{ManagerID: task.ManagerID, ManagerName: names[task.ManagerID], Counts: newStatusCounts()}
			managers[task.ManagerID] = manager
		}
		manager.Counts.add(task.Status)

		object, ok := objects[task.ObjectID]
		if !ok {
			object = &ObjectGroup{ObjectID: task.ObjectID, ObjectName: task.ObjectName, Counts: newStatusCounts()}
			objects[task.ObjectID] = object
		}
		object.Counts.add(task.Status)

		key := task.ObjectID + "|" + task.Band
		band, ok := bands[key]
		if !ok {
			band = &BandGroup{Band: task.Band, Counts: newStatusCounts()}
			bands[key] = band
		}
		band.Counts.add(task.Status)
		band.Tasks = append(band.Tasks, task)
	}

	objectManager := make(map[string]uint, len(objects))
	for _, task := range tasks {
		objectManager[task.ObjectID] = task.ManagerID
	}

	for key, band := range bands {
		objectID := key[:strings.LastIndex(key, "|")]
		objects[objectID].Bands = append(objects[objectID].Bands, *band)
	}
	for id, object := range objects {
		slices.SortFunc(object.Bands, func(x, y BandGroup) int {
			return cmp.Compare(slices.Index(bandOrder, x.Band), slices.Index(bandOrder, y.Band))
		})
		manager := managers[objectManager[id]]
		manager.Objects = append(manager.Objects, *object)
	}
	for _, manager := range managers {
		slices.SortFunc(manager.Objects, func(x, y ObjectGroup) int {
			if c := cmp.Compare(x.ObjectName, y.ObjectName); c != 0 {
				return c
			}
			return cmp.Compare(x.ObjectID, y.ObjectID)
		})
		view.Managers = append(view.Managers, *manager)
	}
	slices.SortFunc(view.Managers, func(x, y ManagerGroup) int {
		if c := cmp.Compare(x.ManagerName, y.ManagerName); c != 0 {
			return c
		}
		return cmp.Compare(x.ManagerID, y.ManagerID)
	})

	return view, nil
}

func (a *CalendarAggregator) managerNames(ctx context.Context, tasks []VirtualTask) (map[uint]string, error) {
	ids := make([]uint, 0)
	for _, task := range tasks {
		ids = append(ids, task.ManagerID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var users []db.User
	if err := a.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load managers: %w", err)
	}
	for _, user := range users {
		name := strings.TrimSpace(user.DisplayName)
		if name == "" {
			name = user.Username
		}
		names[user.ID] = name
	}
	return names, nil
}
