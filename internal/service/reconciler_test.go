package service

import (
	"context"
	"testing"
	"time"

	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/schedule"
	"github.com/stretchr/testify/require"
)

func insertTask(t *testing.T, f *fixture, id string, status schedule.Status, start, end time.Time) {
	t.Helper()
	task := db.Task{
		ID:             id,
		TechCardID:     f.card.ID,
		ObjectID:       f.object.ID,
		ObjectName:     f.object.Name,
		WorkType:       f.card.WorkType,
		Status:         status,
		ScheduledDate:  start.In(moscow).Format(schedule.DateLayout),
		ScheduledStart: &start,
		ScheduledEnd:   &end,
		MaxDelayHours:  4,
	}
	require.NoError(t, f.db.Create(&task).Error)
}

func storedStatus(t *testing.T, f *fixture, id string) schedule.Status {
	t.Helper()
	var task db.Task
	require.NoError(t, f.db.First(&task, "id = ?", id).Error)
	return task.Status
}

func TestReconcileAdvancesStatuses(t *testing.T) {
	f := newFixture(t, ObjectInput{TelegramChatID: "-42"})
	ctx := context.Background()

	insertTask(t, f, "a-2025-03-10", schedule.StatusNew, msk(testDay, 8, 0), msk(testDay, 16, 0))
	insertTask(t, f, "b-2025-03-10", schedule.StatusNew, msk(testDay, 9, 0), msk(testDay, 17, 0))
	insertTask(t, f, "c-2025-03-10", schedule.StatusInProgress, msk(testDay, 8, 0), msk(testDay, 16, 0))
	insertTask(t, f, "d-2025-03-10", schedule.StatusCompleted, msk(testDay, 8, 0), msk(testDay, 16, 0))

	f.clock.Set(msk(testDay, 8, 30))
	result, err := f.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, result.Scanned, "terminal rows are not scanned")
	require.Equal(t, 1, result.UpdatedCount)
	require.Equal(t, []Transition{{TaskID: "a-2025-03-10", From: schedule.StatusNew, To: schedule.StatusAvailable}}, result.Transitions)
	require.Empty(t, result.Failures)

	f.clock.Set(msk(testDay, 22, 0))
	result, err = f.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, result.UpdatedCount)
	require.Equal(t, schedule.StatusOverdue, storedStatus(t, f, "a-2025-03-10"))
	require.Equal(t, schedule.StatusOverdue, storedStatus(t, f, "b-2025-03-10"))
	require.Equal(t, schedule.StatusOverdue, storedStatus(t, f, "c-2025-03-10"))
	require.Equal(t, schedule.StatusCompleted, storedStatus(t, f, "d-2025-03-10"))

	require.Len(t, f.notifier.sent(), 3)
	require.Contains(t, f.notifier.sent()[0].text, "Просрочено")
}

func TestReconcileNeverMovesBackward(t *testing.T) {
	f := newFixture(t, ObjectInput{})
	ctx := context.Background()

	insertTask(t, f, "a-2025-03-10", schedule.StatusOverdue, msk(testDay, 8, 0), msk(testDay, 16, 0))
	insertTask(t, f, "b-2025-03-10", schedule.StatusAvailable, msk(testDay, 8, 0), msk(testDay, 16, 0))
	insertTask(t, f, "c-2025-03-10", schedule.StatusInProgress, msk(testDay, 8, 0), msk(testDay, 16, 0))

	// 时钟回拨到窗口之前
	f.clock.Set(msk(testDay, 6, 0))
	result, err := f.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	require.Zero(t, result.UpdatedCount)
	require.Equal(t, schedule.StatusOverdue, storedStatus(t, f, "a-2025-03-10"))
	require.Equal(t, schedule.StatusAvailable, storedStatus(t, f, "b-2025-03-10"))
	require.Equal(t, schedule.StatusInProgress, storedStatus(t, f, "c-2025-03-10"))
}

func TestReconcileReportsBrokenRows(t *testing.T) {
	f := newFixture(t, ObjectInput{})
	ctx := context.Background()

	insertTask(t, f, "broken-2025-03-10", schedule.StatusNew, msk(testDay, 16, 0), msk(testDay, 8, 0))
	insertTask(t, f, "ok-2025-03-10", schedule.StatusNew, msk(testDay, 8, 0), msk(testDay, 16, 0))

	f.clock.Set(msk(testDay, 9, 0))
	result, err := f.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Scanned)
	require.Equal(t, 1, result.UpdatedCount)
	require.Len(t, result.Failures, 1)
	require.Equal(t, "broken-2025-03-10", result.Failures[0].TaskID)
	require.Equal(t, schedule.StatusAvailable, storedStatus(t, f, "ok-2025-03-10"))
	require.Equal(t, schedule.StatusNew, storedStatus(t, f, "broken-2025-03-10"))
}

func TestReconcileMatchesGenerator(t *testing.T) {
	f := newFixture(t, ObjectInput{})
	ctx := context.Background()
	id := f.card.ID + "-2025-03-10"

	f.clock.Set(msk(testDay, 7, 0))
	_, err := f.materializer.Materialize(ctx, MaterializeRequest{TaskID: id, ActingUserID: f.manager.ID, TargetStatus: schedule.StatusInProgress})
	require.NoError(t, err)

	f.clock.Set(msk(testDay.AddDate(0, 0, 1), 1, 0))
	_, err = f.reconciler.Reconcile(ctx)
	require.NoError(t, err)

	tasks, err := f.generator.Generate(ctx, dayRequest(testDay))
	require.NoError(t, err)
	vt, ok := findVirtual(tasks, id)
	require.True(t, ok)
	require.Equal(t, schedule.StatusOverdue, vt.Status)
}
