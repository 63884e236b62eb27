package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/schedule"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TechCardService 负责技术卡的增删改查
// 保存时调用频率解析器，把间隔天数、默认时间与宽限时长缓存到卡片上
type TechCardService struct {
	db *gorm.DB
}

// TechCardFilter 描述技术卡过滤条件
// ManagerIDs 为 nil 表示不限制，空切片表示不可见任何对象
type TechCardFilter struct {
	ObjectIDs  []string
	ManagerIDs []uint
	ActiveOnly bool
}

// TechCardInput 定义创建/更新技术卡时可配置字段，数值为 0 / 空串表示由解析器推导
type TechCardInput struct {
	ObjectID      string
	RoomID        *string
	RoomName      string
	WorkType      string
	Description   string
	FrequencyText string
	FrequencyDays float64
	PreferredTime string
	MaxDelayHours int
	StartDate     *time.Time
	Active        *bool
}

// FrequencyAuditEntry 是频率文本未被识别的技术卡
type FrequencyAuditEntry struct {
	TechCardID    string
	ObjectID      string
	WorkType      string
	FrequencyText string
	FrequencyDays float64
}

// NewTechCardService 构造 TechCardService
func NewTechCardService(gdb *gorm.DB) *TechCardService {
	return &TechCardService{db: gdb}
}

// List 返回技术卡集合
func (s *TechCardService) List(ctx context.Context, filter TechCardFilter) ([]db.TechCard, error) {
	var cards []db.TechCard

	query := s.db.WithContext(ctx).Model(&db.TechCard{})
	if filter.ManagerIDs != nil {
		if len(filter.ManagerIDs) == 0 {
			return []db.TechCard{}, nil
		}
		query = query.Where("object_id IN (?)",
			s.db.Model(&db.Object{}).Select("id").Where("manager_id IN ?", filter.ManagerIDs))
	}
	if len(filter.ObjectIDs) > 0 {
		query = query.Where("object_id IN ?", filter.ObjectIDs)
	}
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}

	if err := query.Order("object_id ASC, work_type ASC, id ASC").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("list tech cards: %w", err)
	}
	return cards, nil
}

// Get 根据 ID 获取技术卡
func (s *TechCardService) Get(ctx context.Context, id string) (*db.TechCard, error) {
	return findTechCard(s.db.WithContext(ctx), id)
}

// Create 新建技术卡
func (s *TechCardService) Create(ctx context.Context, input TechCardInput) (*db.TechCard, error) {
	if err := validateTechCardInput(input); err != nil {
		return nil, err
	}
	if _, err := findObject(s.db.WithContext(ctx), input.ObjectID); err != nil {
		return nil, err
	}

	card := db.TechCard{ID: uuid.NewString(), Active: true}
	applyTechCardInput(&card, input)

	if err := s.db.WithContext(ctx).Create(&card).Error; err != nil {
		return nil, fmt.Errorf("create tech card: %w", err)
	}
	return &card, nil
}

// Update 更新技术卡，频率相关字段重新推导
func (s *TechCardService) Update(ctx context.Context, id string, input TechCardInput) (*db.TechCard, error) {
	if err := validateTechCardInput(input); err != nil {
		return nil, err
	}

	existing, err := findTechCard(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if input.ObjectID != existing.ObjectID {
		if _, err := findObject(s.db.WithContext(ctx), input.ObjectID); err != nil {
			return nil, err
		}
	}

	applyTechCardInput(existing, input)
	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, fmt.Errorf("update tech card: %w", err)
	}
	return existing, nil
}

// Delete 删除技术卡
func (s *TechCardService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&db.TechCard{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete tech card: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: tech card %s", ErrNotFound, id)
	}
	return nil
}

// FrequencyAudit 列出频率文本回退为每日一次的技术卡
func (s *TechCardService) FrequencyAudit(ctx context.Context, filter TechCardFilter) ([]FrequencyAuditEntry, error) {
	cards, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]FrequencyAuditEntry, 0)
	for _, card := range cards {
		if card.FrequencyParsed {
			continue
		}
		entries = append(entries, FrequencyAuditEntry{
			TechCardID:    card.ID,
			ObjectID:      card.ObjectID,
			WorkType:      card.WorkType,
			FrequencyText: card.FrequencyText,
			FrequencyDays: card.FrequencyDays,
		})
	}
	return entries, nil
}

func findTechCard(tx *gorm.DB, id string) (*db.TechCard, error) {
	var card db.TechCard
	if err := tx.First(&card, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tech card %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get tech card: %w", err)
	}
	return &card, nil
}

func validateTechCardInput(input TechCardInput) error {
	if strings.TrimSpace(input.ObjectID) == "" {
		return fmt.Errorf("%w: object id is required", ErrMalformedInput)
	}
	if strings.TrimSpace(input.WorkType) == "" {
		return fmt.Errorf("%w: work type is required", ErrMalformedInput)
	}
	if input.FrequencyDays < 0 {
		return fmt.Errorf("%w: frequency days must not be negative", ErrMalformedInput)
	}
	if input.MaxDelayHours < 0 {
		return fmt.Errorf("%w: max delay must not be negative", ErrMalformedInput)
	}
	if t := strings.TrimSpace(input.PreferredTime); t != "" {
		if _, err := schedule.ParseClock(t); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
	}
	return nil
}

func applyTechCardInput(card *db.TechCard, input TechCardInput) {
	freq := schedule.ParseFrequency(input.FrequencyText, input.WorkType)

	card.ObjectID = strings.TrimSpace(input.ObjectID)
	card.RoomID = input.RoomID
	card.RoomName = strings.TrimSpace(input.RoomName)
	card.WorkType = strings.TrimSpace(input.WorkType)
	card.Description = strings.TrimSpace(input.Description)
	card.FrequencyText = strings.TrimSpace(input.FrequencyText)
	card.StartDate = input.StartDate

	card.FrequencyDays = freq.Days
	card.FrequencyParsed = !freq.IsFallback()
	if input.FrequencyDays > 0 {
		card.FrequencyDays = input.FrequencyDays
		card.FrequencyParsed = true
	}

	card.PreferredTime = strings.TrimSpace(input.PreferredTime)
	if card.PreferredTime == "" {
		card.PreferredTime = freq.DefaultTime
	}

	card.MaxDelayHours = input.MaxDelayHours
	if card.MaxDelayHours == 0 {
		card.MaxDelayHours = schedule.MaxDelayHoursFor(card.FrequencyDays)
	}

	if input.Active != nil {
		card.Active = *input.Active
	}
}

// cardSchedule 汇总生成器与物化器共用的排程参数，缺失字段按文档回退为每日一次
type cardSchedule struct {
	freqDays  float64
	preferred time.Duration
	maxDelay  time.Duration
	anchor    time.Time
}

func scheduleFor(card db.TechCard, cal schedule.Calendar) cardSchedule {
	freqDays := card.FrequencyDays
	if freqDays <= 0 {
		freqDays = 1
	}

	preferredText := strings.TrimSpace(card.PreferredTime)
	if preferredText == "" {
		preferredText = schedule.DefaultTimeFor(card.WorkType)
	}
	preferred, err := schedule.ParseClock(preferredText)
	if err != nil {
		preferred = cal.WorkStart
	}

	maxDelay := card.MaxDelayHours
	if maxDelay <= 0 {
		maxDelay = schedule.MaxDelayHoursFor(freqDays)
	}

	// StartDate 是日历日，按原样取年月日；CreatedAt 是时刻，需换算到对象时区
	anchor := card.CreatedAt
	if cal.Location != nil {
		anchor = anchor.In(cal.Location)
	}
	if card.StartDate != nil {
		anchor = *card.StartDate
	}

	return cardSchedule{
		freqDays:  freqDays,
		preferred: preferred,
		maxDelay:  time.Duration(maxDelay) * time.Hour,
		anchor:    anchor,
	}
}
