package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cleanops/internal/clock"
	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/notify"
	"github.com/cleanops/internal/schedule"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reconcileBatchSize = 200

var reconcilableStatuses = []schedule.Status{
	schedule.StatusNew,
	schedule.StatusAvailable,
	schedule.StatusInProgress,
}

// Transition 记录一次状态推进
type Transition struct {
	TaskID string          `json:"task_id"`
	From   schedule.Status `json:"from"`
	To     schedule.Status `json:"to"`
}

// ReconcileFailure 记录单行失败，扫描不会因此中断
type ReconcileFailure struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// ReconcileResult 汇总一次扫描
type ReconcileResult struct {
	Scanned      int                `json:"scanned"`
	UpdatedCount int                `json:"updated_count"`
	Transitions  []Transition       `json:"transitions"`
	Failures     []ReconcileFailure `json:"failures"`
}

// Reconciler 按时间推进已物化任务的状态
// 虚拟任务每次读取都会重新计算，而物化后的状态被冻结在存储中，需要定期扫描
type Reconciler struct {
	db       *gorm.DB
	clock    clock.Clock
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewReconciler 构造 Reconciler
func NewReconciler(gdb *gorm.DB, clk clock.Clock, notifier notify.Notifier, logger *zap.Logger) *Reconciler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Reconciler{db: gdb, clock: clk, notifier: notifier, logger: logger}
}

// Reconcile 扫描非终态且带排程窗口的任务，只向前推进状态。
// 仅在无法读取任务时返回错误；单行失败记录在 Failures 中。
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	result := ReconcileResult{Transitions: []Transition{}, Failures: []ReconcileFailure{}}
	now := r.clock.Now()
	objects := make(map[string]*db.Object)
	var overdue []db.Task

	var batch []db.Task
	err := r.db.WithContext(ctx).
		Where("status IN ?", reconcilableStatuses).
		Where("scheduled_start IS NOT NULL AND scheduled_end IS NOT NULL").
		FindInBatches(&batch, reconcileBatchSize, func(tx *gorm.DB, _ int) error {
			for _, task := range batch {
				result.Scanned++
				transition, err := r.reconcileTask(ctx, task, now)
				if err != nil {
					r.logger.Warn("reconcile task failed", zap.String("task_id", task.ID), zap.Error(err))
					result.Failures = append(result.Failures, ReconcileFailure{TaskID: task.ID, Error: err.Error()})
					continue
				}
				if transition == nil {
					continue
				}
				result.UpdatedCount++
				result.Transitions = append(result.Transitions, *transition)
				if transition.To == schedule.StatusOverdue {
					task.Status = transition.To
					overdue = append(overdue, task)
				}
			}
			return nil
		}).Error
	if err != nil {
		return result, fmt.Errorf("scan tasks: %w", err)
	}

	for _, task := range overdue {
		r.notifyOverdue(ctx, task, objects)
	}

	r.logger.Info("reconcile finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.UpdatedCount),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

func (r *Reconciler) reconcileTask(ctx context.Context, task db.Task, now time.Time) (*Transition, error) {
	if task.ScheduledStart == nil || task.ScheduledEnd == nil {
		return nil, nil
	}
	if task.ScheduledEnd.Before(*task.ScheduledStart) {
		return nil, fmt.Errorf("scheduled end %s before start %s", task.ScheduledEnd, task.ScheduledStart)
	}

	grace := time.Duration(task.MaxDelayHours) * time.Hour
	computed := schedule.ComputeStatus(now, *task.ScheduledStart, *task.ScheduledEnd, grace)
	next, changed := schedule.Advance(task.Status, computed)
	if !changed {
		return nil, nil
	}

	// 以旧状态为条件更新，避免覆盖并发物化写入的结果
	res := r.db.WithContext(ctx).Model(&db.Task{}).
		Where("id = ? AND status = ?", task.ID, task.Status).
		Update("status", next)
	if res.Error != nil {
		return nil, fmt.Errorf("update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	return &Transition{TaskID: task.ID, From: task.Status, To: next}, nil
}

func (r *Reconciler) notifyOverdue(ctx context.Context, task db.Task, cache map[string]*db.Object) {
	object, ok := cache[task.ObjectID]
	if !ok {
		found, err := findObject(r.db.WithContext(ctx), task.ObjectID)
		if err != nil {
			r.logger.Warn("overdue notification skipped", zap.String("task_id", task.ID), zap.Error(err))
			cache[task.ObjectID] = nil
			return
		}
		object = found
		cache[task.ObjectID] = object
	}
	if object == nil || object.TelegramChatID == "" {
		return
	}

	// 通知中的时间按对象时区展示
	cal := CalendarFor(*object)
	end := task.ScheduledEnd.In(cal.Location).Format("15:04")
	text := fmt.Sprintf("⚠️ Просрочено: %s — %s, %s до %s", object.Name, task.WorkType, task.ScheduledDate, end)
	if task.RoomName != "" {
		text += " (" + task.RoomName + ")"
	}

	if err := r.notifier.Send(ctx, object.TelegramChatID, text); err != nil {
		r.logger.Warn("overdue notification failed", zap.String("task_id", task.ID), zap.Error(err))
	}
}
