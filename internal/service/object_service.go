package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // 对象时区不依赖宿主机的 zoneinfo

	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/schedule"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultWorkStart   = "08:00"
	defaultWorkEnd     = "20:00"
	defaultWorkingDays = "1,2,3,4,5,6,7"
	defaultTimezone    = "Europe/Moscow"
)

// ObjectService 负责对象的增删改查
type ObjectService struct {
	db *gorm.DB
}

// ObjectFilter 描述对象列表过滤条件，ManagerIDs 为 nil 表示不限制
type ObjectFilter struct {
	ManagerIDs []uint
	Search     string
}

// ObjectInput 定义创建/更新对象时可配置字段
type ObjectInput struct {
	Name                        string
	Address                     string
	ManagerID                   uint
	WorkingHoursStart           string
	WorkingHoursEnd             string
	WorkingDays                 string
	Timezone                    string
	RequirePhotoForCompletion   bool
	RequireCommentForCompletion bool
	TelegramChatID              string
}

// NewObjectService 构造 ObjectService
func NewObjectService(gdb *gorm.DB) *ObjectService {
	return &ObjectService{db: gdb}
}

// List 返回对象集合
func (s *ObjectService) List(ctx context.Context, filter ObjectFilter) ([]db.Object, error) {
	var objects []db.Object

	query := s.db.WithContext(ctx).Model(&db.Object{})
	if filter.ManagerIDs != nil {
		if len(filter.ManagerIDs) == 0 {
			return []db.Object{}, nil
		}
		query = query.Where("manager_id IN ?", filter.ManagerIDs)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := fmt.Sprintf("%%%s%%", search)
		query = query.Where("name LIKE ? OR address LIKE ?", like, like)
	}

	if err := query.Order("name ASC").Find(&objects).Error; err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return objects, nil
}

// Get 根据 ID 获取对象
func (s *ObjectService) Get(ctx context.Context, id string) (*db.Object, error) {
	return findObject(s.db.WithContext(ctx), id)
}

// Create 新建对象
func (s *ObjectService) Create(ctx context.Context, input ObjectInput) (*db.Object, error) {
	input, err := normalizeObjectInput(input)
	if err != nil {
		return nil, err
	}

	object := db.Object{ID: uuid.NewString()}
	applyObjectInput(&object, input)

	if err := s.db.WithContext(ctx).Create(&object).Error; err != nil {
		return nil, fmt.Errorf("create object: %w", err)
	}
	return &object, nil
}

// Update 更新对象
func (s *ObjectService) Update(ctx context.Context, id string, input ObjectInput) (*db.Object, error) {
	input, err := normalizeObjectInput(input)
	if err != nil {
		return nil, err
	}

	existing, err := findObject(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}

	applyObjectInput(existing, input)
	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, fmt.Errorf("update object: %w", err)
	}
	return existing, nil
}

// Delete 删除对象及其技术卡，已物化的任务保留用于历史
func (s *ObjectService) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("object_id = ?", id).Delete(&db.TechCard{}).Error; err != nil {
			return fmt.Errorf("delete object tech cards: %w", err)
		}
		res := tx.Delete(&db.Object{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete object: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: object %s", ErrNotFound, id)
		}
		return nil
	})
}

func findObject(tx *gorm.DB, id string) (*db.Object, error) {
	var object db.Object
	if err := tx.First(&object, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: object %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return &object, nil
}

func normalizeObjectInput(input ObjectInput) (ObjectInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return input, fmt.Errorf("%w: object name is required", ErrMalformedInput)
	}

	input.WorkingHoursStart = orDefault(input.WorkingHoursStart, defaultWorkStart)
	input.WorkingHoursEnd = orDefault(input.WorkingHoursEnd, defaultWorkEnd)
	input.WorkingDays = orDefault(input.WorkingDays, defaultWorkingDays)
	input.Timezone = orDefault(input.Timezone, defaultTimezone)

	start, err := schedule.ParseClock(input.WorkingHoursStart)
	if err != nil {
		return input, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	end, err := schedule.ParseClosingTime(input.WorkingHoursEnd)
	if err != nil {
		return input, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if end <= start {
		return input, fmt.Errorf("%w: working hours end must be after start", ErrMalformedInput)
	}
	if _, err := schedule.ParseWorkingDays(input.WorkingDays); err != nil {
		return input, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if _, err := time.LoadLocation(input.Timezone); err != nil {
		return input, fmt.Errorf("%w: unknown timezone %q", ErrMalformedInput, input.Timezone)
	}

	return input, nil
}

func applyObjectInput(object *db.Object, input ObjectInput) {
	object.Name = input.Name
	object.Address = strings.TrimSpace(input.Address)
	object.ManagerID = input.ManagerID
	object.WorkingHoursStart = input.WorkingHoursStart
	object.WorkingHoursEnd = input.WorkingHoursEnd
	object.WorkingDays = input.WorkingDays
	object.Timezone = input.Timezone
	object.RequirePhotoForCompletion = input.RequirePhotoForCompletion
	object.RequireCommentForCompletion = input.RequireCommentForCompletion
	object.TelegramChatID = strings.TrimSpace(input.TelegramChatID)
}

// CalendarFor 将对象的工作时间配置转换为排程日历。
// 存储中的非法值回退到默认配置，不中断生成。
func CalendarFor(object db.Object) schedule.Calendar {
	loc, err := time.LoadLocation(orDefault(object.Timezone, defaultTimezone))
	if err != nil {
		loc = time.UTC
	}

	start, err := schedule.ParseClock(orDefault(object.WorkingHoursStart, defaultWorkStart))
	if err != nil {
		start = 8 * time.Hour
	}
	end, err := schedule.ParseClosingTime(orDefault(object.WorkingHoursEnd, defaultWorkEnd))
	if err != nil || end <= start {
		end = 20 * time.Hour
	}
	days, err := schedule.ParseWorkingDays(object.WorkingDays)
	if err != nil {
		days = nil
	}

	return schedule.Calendar{Location: loc, WorkStart: start, WorkEnd: end, WorkingDays: days}
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
