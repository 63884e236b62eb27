package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleanops/internal/clock"
	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/notify"
	"github.com/cleanops/internal/schedule"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var terminalStatuses = []schedule.Status{schedule.StatusCompleted, schedule.StatusClosedWithPhoto}

// MaterializeRequest 是用户对某个（虚拟或已物化）任务的一次操作
type MaterializeRequest struct {
	TaskID       string
	ActingUserID uint
	TargetStatus schedule.Status
	Comment      string
	Photos       []string
}

// Materializer 是写路径：首次操作时持久化任务与当日清单，并执行状态迁移。
// 幂等性依赖确定性 ID 的主键冲突，而不是进程内锁。
type Materializer struct {
	db        *gorm.DB
	clock     clock.Clock
	notifier  notify.Notifier
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
}

// NewMaterializer 构造 Materializer
func NewMaterializer(gdb *gorm.DB, clk clock.Clock, notifier notify.Notifier, logger *zap.Logger) *Materializer {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Materializer{
		db:        gdb,
		clock:     clk,
		notifier:  notifier,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// materializeResult 记录事务内发生的变化，用于提交后的通知
type materializeResult struct {
	task              db.Task
	object            db.Object
	changed           bool
	checklistComplete bool
}

// Materialize 对任务执行状态迁移，必要时先创建任务行与清单。
// 终态任务以相同状态重复提交时原样返回；改为其他状态返回 ErrConflict。
func (m *Materializer) Materialize(ctx context.Context, req MaterializeRequest) (*db.Task, error) {
	ref, err := schedule.ParseTaskID(req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if !req.TargetStatus.UserSettable() {
		return nil, fmt.Errorf("%w: status %q cannot be set by a user", ErrMalformedInput, req.TargetStatus)
	}
	if req.ActingUserID == 0 {
		return nil, fmt.Errorf("%w: acting user is required", ErrMalformedInput)
	}

	req.Comment = strings.TrimSpace(m.sanitizer.Sanitize(req.Comment))
	req.Photos = cleanPhotos(req.Photos)

	var result materializeResult
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = m.materializeTx(tx, ref, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if result.changed {
		m.logger.Info("task status changed",
			zap.String("task_id", result.task.ID),
			zap.String("status", string(result.task.Status)),
			zap.Uint("user_id", req.ActingUserID),
			zap.Bool("checklist_completed", result.checklistComplete),
		)
		if result.task.Status.Terminal() {
			m.notifyCompletion(ctx, result)
		}
	}

	return &result.task, nil
}

// Owner 返回任务所属对象：已物化时取任务行，否则经技术卡查找
func (m *Materializer) Owner(ctx context.Context, taskID string) (*db.Object, error) {
	ref, err := schedule.ParseTaskID(taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	tx := m.db.WithContext(ctx)
	task, found, err := loadTask(tx, ref.ID())
	if err != nil {
		return nil, err
	}
	if found {
		return findObject(tx, task.ObjectID)
	}

	card, err := findTechCard(tx, ref.TechCardID)
	if err != nil {
		return nil, err
	}
	return findObject(tx, card.ObjectID)
}

func (m *Materializer) materializeTx(tx *gorm.DB, ref schedule.TaskRef, req MaterializeRequest) (materializeResult, error) {
	id := ref.ID()

	task, found, err := loadTask(tx, id)
	if err != nil {
		return materializeResult{}, err
	}

	var object *db.Object
	var card *db.TechCard
	if found {
		object, err = findObject(tx, task.ObjectID)
	} else {
		card, err = findTechCard(tx, ref.TechCardID)
		if err == nil {
			object, err = findObject(tx, card.ObjectID)
		}
	}
	if err != nil {
		return materializeResult{}, err
	}

	// 校验在任何写入之前完成
	if found {
		if done, err := checkTerminal(task, req.TargetStatus); done || err != nil {
			return materializeResult{task: task, object: *object}, err
		}
	}
	current := task
	if !found {
		// 排程不会产生的执行不允许物化
		if current, err = m.newTaskRow(*card, *object, ref); err != nil {
			return materializeResult{}, err
		}
	}
	if err := checkRequirements(*object, current, req); err != nil {
		return materializeResult{}, err
	}

	if !found {
		fresh := current
		if err := ensureChecklist(tx, fresh.ChecklistID, object.ID, fresh.ScheduledDate); err != nil {
			return materializeResult{}, err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
			return materializeResult{}, fmt.Errorf("insert task: %w", err)
		}
		// 并发请求可能先插入，重新读取获胜的行
		if task, _, err = loadTask(tx, id); err != nil {
			return materializeResult{}, err
		}
		if done, err := checkTerminal(task, req.TargetStatus); done || err != nil {
			return materializeResult{task: task, object: *object}, err
		}
	}

	now := m.clock.Now()
	updates := map[string]any{"status": req.TargetStatus}
	if req.Comment != "" {
		updates["completion_comment"] = req.Comment
	}
	if len(req.Photos) > 0 {
		encoded, err := json.Marshal(req.Photos)
		if err != nil {
			return materializeResult{}, fmt.Errorf("encode photos: %w", err)
		}
		updates["completion_photos"] = string(encoded)
	}
	if req.TargetStatus.Terminal() {
		updates["completed_at"] = now
		updates["completed_by_id"] = req.ActingUserID
	}

	res := tx.Model(&db.Task{ID: id}).
		Where("status NOT IN ?", terminalStatuses).
		Updates(updates)
	if res.Error != nil {
		return materializeResult{}, fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// 其他写入者已将任务置为终态
		task, _, err = loadTask(tx, id)
		if err != nil {
			return materializeResult{}, err
		}
		_, err = checkTerminal(task, req.TargetStatus)
		return materializeResult{task: task, object: *object}, err
	}

	if task, _, err = loadTask(tx, id); err != nil {
		return materializeResult{}, err
	}

	result := materializeResult{task: task, object: *object, changed: true}
	if task.ChecklistID == "" {
		return result, nil
	}

	if req.TargetStatus.Terminal() {
		result.checklistComplete, err = completeChecklistIfDone(tx, task.ChecklistID, req.ActingUserID, now)
	} else {
		err = reopenChecklist(tx, task.ChecklistID)
	}
	return result, err
}

func (m *Materializer) newTaskRow(card db.TechCard, object db.Object, ref schedule.TaskRef) (db.Task, error) {
	if !card.Active {
		return db.Task{}, fmt.Errorf("%w: tech card %s is inactive", ErrNotFound, card.ID)
	}

	cal := CalendarFor(object)
	sched := scheduleFor(card, cal)
	day := cal.At(ref.Date, 0)
	if !cal.IsWorkingDay(day) || !schedule.IsEligible(sched.anchor, day, sched.freqDays) {
		return db.Task{}, fmt.Errorf("%w: tech card %s has no occurrence on %s", ErrNotFound, card.ID, ref.DateKey())
	}

	occurrences := cal.Occurrences(day, sched.freqDays, sched.preferred)
	if ref.Slot >= len(occurrences) {
		return db.Task{}, fmt.Errorf("%w: tech card %s has no occurrence %d on %s", ErrNotFound, card.ID, ref.Slot, ref.DateKey())
	}
	occ := occurrences[ref.Slot]

	start, end := occ.Start, occ.End
	return db.Task{
		ID:             ref.ID(),
		TechCardID:     card.ID,
		ObjectID:       object.ID,
		ObjectName:     object.Name,
		RoomName:       card.RoomName,
		WorkType:       card.WorkType,
		Status:         schedule.ComputeStatus(m.clock.Now(), start, end, sched.maxDelay),
		ScheduledDate:  ref.DateKey(),
		ScheduledStart: &start,
		ScheduledEnd:   &end,
		MaxDelayHours:  int(sched.maxDelay / time.Hour),
		ChecklistID:    schedule.ChecklistID(object.ID, ref.Date),
	}, nil
}

func loadTask(tx *gorm.DB, id string) (db.Task, bool, error) {
	var task db.Task
	if err := tx.First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.Task{}, false, nil
		}
		return db.Task{}, false, fmt.Errorf("get task: %w", err)
	}
	return task, true, nil
}

// checkTerminal 处理终态任务：相同状态视为幂等重放，其余为冲突
func checkTerminal(task db.Task, target schedule.Status) (bool, error) {
	if !task.Status.Terminal() {
		return false, nil
	}
	if task.Status == target {
		return true, nil
	}
	return true, fmt.Errorf("%w: task %s is already %s", ErrConflict, task.ID, task.Status)
}

func checkRequirements(object db.Object, existing db.Task, req MaterializeRequest) error {
	if !req.TargetStatus.Terminal() {
		return nil
	}

	label := existing.WorkType
	if label == "" {
		label = "задача"
	}

	hasPhoto := len(req.Photos) > 0 || len(existing.CompletionPhotos) > 0
	if !hasPhoto && (object.RequirePhotoForCompletion || req.TargetStatus == schedule.StatusClosedWithPhoto) {
		return &ValidationError{
			Requirement: RequirementPhoto,
			Message:     fmt.Sprintf("для завершения (%s) на объекте «%s» требуется фото", label, object.Name),
		}
	}

	hasComment := req.Comment != "" || existing.CompletionComment != ""
	if !hasComment && object.RequireCommentForCompletion {
		return &ValidationError{
			Requirement: RequirementComment,
			Message:     fmt.Sprintf("для завершения (%s) на объекте «%s» требуется комментарий", label, object.Name),
		}
	}

	return nil
}

// ensureChecklist 以确定性 ID 插入或复用当日清单
func ensureChecklist(tx *gorm.DB, id, objectID, date string) error {
	checklist := db.Checklist{ID: id, ObjectID: objectID, Date: date, Status: db.ChecklistOpen}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&checklist).Error; err != nil {
		return fmt.Errorf("ensure checklist: %w", err)
	}
	return nil
}

// completeChecklistIfDone 当清单下所有任务均为终态时标记清单完成
func completeChecklistIfDone(tx *gorm.DB, checklistID string, userID uint, now time.Time) (bool, error) {
	var open int64
	if err := tx.Model(&db.Task{}).
		Where("checklist_id = ? AND status NOT IN ?", checklistID, terminalStatuses).
		Count(&open).Error; err != nil {
		return false, fmt.Errorf("count open tasks: %w", err)
	}
	if open > 0 {
		return false, nil
	}

	res := tx.Model(&db.Checklist{}).
		Where("id = ? AND status <> ?", checklistID, db.ChecklistCompleted).
		Updates(map[string]any{
			"status":          db.ChecklistCompleted,
			"completed_at":    now,
			"completed_by_id": userID,
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete checklist: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// reopenChecklist 新增未完成任务时撤销清单的完成标记
func reopenChecklist(tx *gorm.DB, checklistID string) error {
	if err := tx.Model(&db.Checklist{}).
		Where("id = ? AND status = ?", checklistID, db.ChecklistCompleted).
		Updates(map[string]any{
			"status":          db.ChecklistOpen,
			"completed_at":    nil,
			"completed_by_id": nil,
		}).Error; err != nil {
		return fmt.Errorf("reopen checklist: %w", err)
	}
	return nil
}

func (m *Materializer) notifyCompletion(ctx context.Context, result materializeResult) {
	text := fmt.Sprintf("✅ Выполнено: %s — %s", result.object.Name, result.task.WorkType)
	if result.task.RoomName != "" {
		text += " (" + result.task.RoomName + ")"
	}
	if result.checklistComplete {
		text += fmt.Sprintf("\nЧек-лист за %s закрыт полностью", result.task.ScheduledDate)
	}

	if err := m.notifier.Send(ctx, result.object.TelegramChatID, text); err != nil {
		m.logger.Warn("completion notification failed",
			zap.String("task_id", result.task.ID),
			zap.Error(err),
		)
	}
}

func cleanPhotos(photos []string) []string {
	cleaned := make([]string, 0, len(photos))
	for _, photo := range photos {
		if trimmed := strings.TrimSpace(photo); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
