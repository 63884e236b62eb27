package handler

import (
	"net/http"
	"strings"

	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/service"
	"github.com/gin-gonic/gin"
)

type objectPayload struct {
	Name                        string `json:"name"`
	Address                     string `json:"address"`
	ManagerID                   uint   `json:"manager_id"`
	WorkingHoursStart           string `json:"working_hours_start"`
	WorkingHoursEnd             string `json:"working_hours_end"`
	WorkingDays                 string `json:"working_days"`
	Timezone                    string `json:"timezone"`
	RequirePhotoForCompletion   bool   `json:"require_photo_for_completion"`
	RequireCommentForCompletion bool   `json:"require_comment_for_completion"`
	TelegramChatID              string `json:"telegram_chat_id"`
}

// ListObjects 返回可见范围内的对象
func (a *API) ListObjects(c *gin.Context) {
	scope, err := a.calendar.Scope(c.Request.Context(), currentUser(c), nil)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось получить объекты")
		return
	}

	objects, err := a.objects.List(c.Request.Context(), service.ObjectFilter{
		ManagerIDs: scope,
		Search:     c.Query("search"),
	})
	if err != nil {
		a.handleServiceError(c, err, "Не удалось получить объекты")
		return
	}

	items := make([]gin.H, 0, len(objects))
	for _, object := range objects {
		items = append(items, objectToPayload(object))
	}
	c.JSON(http.StatusOK, gin.H{"objects": items})
}

// GetObject 返回单个对象
func (a *API) GetObject(c *gin.Context) {
	object, err := a.objects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.handleServiceError(c, err, "Не удалось загрузить объект")
		return
	}
	if !a.authorizeManager(c, currentUser(c), object.ManagerID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"object": objectToPayload(*object)})
}

// CreateObject 新建对象（仅管理员）
func (a *API) CreateObject(c *gin.Context) {
	var payload objectPayload
	if !bindJSON(c, &payload, "Некорректный запрос") {
		return
	}

	object, err := a.objects.Create(c.Request.Context(), payload.toInput())
	if err != nil {
		a.handleServiceError(c, err, "Не удалось создать объект")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"object": objectToPayload(*object)})
}

// UpdateObject 更新对象（仅管理员）
func (a *API) UpdateObject(c *gin.Context) {
	var payload objectPayload
	if !bindJSON(c, &payload, "Некорректный запрос") {
		return
	}

	object, err := a.objects.Update(c.Request.Context(), c.Param("id"), payload.toInput())
	if err != nil {
		a.handleServiceError(c, err, "Не удалось обновить объект")
		return
	}
	c.JSON(http.StatusOK, gin.H{"object": objectToPayload(*object)})
}

// DeleteObject 删除对象及其技术卡（仅管理员）
func (a *API) DeleteObject(c *gin.Context) {
	if err := a.objects.Delete(c.Request.Context(), c.Param("id")); err != nil {
		a.handleServiceError(c, err, "Не удалось удалить объект")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (p objectPayload) toInput() service.ObjectInput {
	return service.ObjectInput{
		Name:                        p.Name,
		Address:                     p.Address,
		ManagerID:                   p.ManagerID,
		WorkingHoursStart:           p.WorkingHoursStart,
		WorkingHoursEnd:             p.WorkingHoursEnd,
		WorkingDays:                 p.WorkingDays,
		Timezone:                    p.Timezone,
		RequirePhotoForCompletion:   p.RequirePhotoForCompletion,
		RequireCommentForCompletion: p.RequireCommentForCompletion,
		TelegramChatID:              strings.TrimSpace(p.TelegramChatID),
	}
}

func objectToPayload(object db.Object) gin.H {
	return gin.H{
		"id":                             object.ID,
		"name":                           object.Name,
		"address":                        object.Address,
		"manager_id":                     object.ManagerID,
		"working_hours_start":            object.WorkingHoursStart,
		"working_hours_end":              object.WorkingHoursEnd,
		"working_days":                   object.WorkingDays,
		"timezone":                       object.Timezone,
		"require_photo_for_completion":   object.RequirePhotoForCompletion,
		"require_comment_for_completion": object.RequireCommentForCompletion,
		"telegram_chat_id":               object.TelegramChatID,
	}
}
