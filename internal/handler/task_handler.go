package handler

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/schedule"
	"github.com/cleanops/internal/service"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type taskStatusPayload struct {
	Status  string   `json:"status"`
	Comment string   `json:"comment"`
	Photos  []string `json:"photos"`
}

// ListTasks 返回可见范围内的任务，view=grouped 时按经理/对象/频率分组
func (a *API) ListTasks(c *gin.Context) {
	req, ok := a.viewRequest(c)
	if !ok {
		return
	}

	if c.DefaultQuery("view", "flat") == "grouped" {
		view, err := a.calendar.View(c.Request.Context(), req)
		if err != nil {
			a.handleServiceError(c, err, "Не удалось построить календарь")
			return
		}
		c.JSON(http.StatusOK, gin.H{"calendar": view})
		return
	}

	tasks, err := a.calendar.Tasks(c.Request.Context(), req)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось получить задачи")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"range": gin.H{"from": req.DateFrom.Format(schedule.DateLayout), "to": req.DateTo.Format(schedule.DateLayout)},
	})
}

// UpdateTaskStatus 物化任务并执行状态迁移
func (a *API) UpdateTaskStatus(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("id"))

	var payload taskStatusPayload
	if !bindJSON(c, &payload, "Некорректный запрос") {
		return
	}

	user := currentUser(c)
	if !a.authorizeTask(c, user, taskID) {
		return
	}

	task, err := a.materializer.Materialize(c.Request.Context(), service.MaterializeRequest{
		TaskID:       taskID,
		ActingUserID: user.ID,
		TargetStatus: schedule.Status(strings.ToUpper(strings.TrimSpace(payload.Status))),
		Comment:      payload.Comment,
		Photos:       payload.Photos,
	})
	if err != nil {
		a.handleServiceError(c, err, "Не удалось обновить задачу")
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// Reconcile 手动触发一次状态推进扫描
func (a *API) Reconcile(c *gin.Context) {
	result, err := a.reconciler.Reconcile(c.Request.Context())
	if err != nil {
		a.handleServiceError(c, err, "Не удалось обновить статусы")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportCalendar 以 xlsx 导出分组日历
func (a *API) ExportCalendar(c *gin.Context) {
	req, ok := a.viewRequest(c)
	if !ok {
		return
	}

	data, err := a.calendar.Export(c.Request.Context(), req)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось сформировать файл")
		return
	}

	filename := fmt.Sprintf("calendar-%s-%s.xlsx", req.DateFrom.Format(schedule.DateLayout), req.DateTo.Format(schedule.DateLayout))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (a *API) viewRequest(c *gin.Context) (service.ViewRequest, bool) {
	from, to, ok := parseDateRange(c, a.clock.Now())
	if !ok {
		return service.ViewRequest{}, false
	}

	managerID, err := parseOptionalUintQuery(c, "managerId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Некорректный managerId")
		return service.ViewRequest{}, false
	}

	return service.ViewRequest{
		DateFrom:  from,
		DateTo:    to,
		Requester: currentUser(c),
		ManagerID: managerID,
	}, true
}

// authorizeTask 校验任务所属对象在调用者可见范围内
func (a *API) authorizeTask(c *gin.Context, user db.User, taskID string) bool {
	object, err := a.materializer.Owner(c.Request.Context(), taskID)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось загрузить задачу")
		return false
	}
	return a.authorizeManager(c, user, object.ManagerID)
}

func (a *API) authorizeManager(c *gin.Context, user db.User, managerID uint) bool {
	scope, err := a.calendar.Scope(c.Request.Context(), user, nil)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось проверить доступ")
		return false
	}
	if scope != nil && !slices.Contains(scope, managerID) {
		respondError(c, http.StatusForbidden, "Нет доступа")
		return false
	}
	return true
}

func taskToPayload(task db.Task) gin.H {
	payload := gin.H{
		"id":                 task.ID,
		"tech_card_id":       task.TechCardID,
		"object_id":          task.ObjectID,
		"object_name":        task.ObjectName,
		"room_name":          task.RoomName,
		"work_type":          task.WorkType,
		"status":             task.Status,
		"scheduled_date":     task.ScheduledDate,
		"max_delay_hours":    task.MaxDelayHours,
		"checklist_id":       task.ChecklistID,
		"completion_comment": task.CompletionComment,
		"completion_photos":  task.CompletionPhotos,
		"completed_by_id":    task.CompletedByID,
	}
	if task.ScheduledStart != nil {
		payload["scheduled_start"] = task.ScheduledStart.Format(time.RFC3339)
	}
	if task.ScheduledEnd != nil {
		payload["scheduled_end"] = task.ScheduledEnd.Format(time.RFC3339)
	}
	if task.CompletedAt != nil {
		payload["completed_at"] = task.CompletedAt.Format(time.RFC3339)
	}
	return payload
}
