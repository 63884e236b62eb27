package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/schedule"
	"github.com/cleanops/internal/service"
	"github.com/gin-gonic/gin"
)

type techCardPayload struct {
	ObjectID      string  `json:"object_id"`
	RoomID        *string `json:"room_id"`
	RoomName      string  `json:"room_name"`
	WorkType      string  `json:"work_type"`
	Description   string  `json:"description"`
	FrequencyText string  `json:"frequency_text"`
	FrequencyDays float64 `json:"frequency_days"`
	PreferredTime string  `json:"preferred_time"`
	MaxDelayHours int     `json:"max_delay_hours"`
	StartDate     string  `json:"start_date"`
	Active        *bool   `json:"active"`
}

// ListTechCards 返回可见范围内的技术卡，可按 objectId 过滤
func (a *API) ListTechCards(c *gin.Context) {
	filter, ok := a.techCardFilter(c)
	if !ok {
		return
	}

	cards, err := a.cards.List(c.Request.Context(), filter)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось получить техкарты")
		return
	}

	items := make([]gin.H, 0, len(cards))
	for _, card := range cards {
		items = append(items, techCardToPayload(card))
	}
	c.JSON(http.StatusOK, gin.H{"tech_cards": items})
}

// FrequencyAudit 列出频率文本未被识别的技术卡
func (a *API) FrequencyAudit(c *gin.Context) {
	filter, ok := a.techCardFilter(c)
	if !ok {
		return
	}

	entries, err := a.cards.FrequencyAudit(c.Request.Context(), filter)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось выполнить проверку")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, gin.H{
			"tech_card_id":   entry.TechCardID,
			"object_id":      entry.ObjectID,
			"work_type":      entry.WorkType,
			"frequency_text": entry.FrequencyText,
			"frequency_days": entry.FrequencyDays,
		})
	}
	c.JSON(http.StatusOK, gin.H{"unparsed": items, "count": len(items)})
}

// GetTechCard 返回单个技术卡
func (a *API) GetTechCard(c *gin.Context) {
	card, ok := a.loadOwnedTechCard(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"tech_card": techCardToPayload(*card)})
}

// CreateTechCard 新建技术卡，经理只能在自己的对象上创建
func (a *API) CreateTechCard(c *gin.Context) {
	input, ok := a.parseTechCardInput(c)
	if !ok {
		return
	}
	if !a.authorizeObject(c, input.ObjectID) {
		return
	}

	card, err := a.cards.Create(c.Request.Context(), input)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось создать техкарту")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tech_card": techCardToPayload(*card)})
}

// UpdateTechCard 更新技术卡
func (a *API) UpdateTechCard(c *gin.Context) {
	if _, ok := a.loadOwnedTechCard(c); !ok {
		return
	}
	input, ok := a.parseTechCardInput(c)
	if !ok {
		return
	}
	if !a.authorizeObject(c, input.ObjectID) {
		return
	}

	card, err := a.cards.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось обновить техкарту")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tech_card": techCardToPayload(*card)})
}

// DeleteTechCard 删除技术卡，已物化的任务保留
func (a *API) DeleteTechCard(c *gin.Context) {
	if _, ok := a.loadOwnedTechCard(c); !ok {
		return
	}
	if err := a.cards.Delete(c.Request.Context(), c.Param("id")); err != nil {
		a.handleServiceError(c, err, "Не удалось удалить техкарту")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (a *API) techCardFilter(c *gin.Context) (service.TechCardFilter, bool) {
	scope, err := a.calendar.Scope(c.Request.Context(), currentUser(c), nil)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось проверить доступ")
		return service.TechCardFilter{}, false
	}

	filter := service.TechCardFilter{ManagerIDs: scope, ActiveOnly: c.Query("active") == "true"}
	if objectID := strings.TrimSpace(c.Query("objectId")); objectID != "" {
		filter.ObjectIDs = []string{objectID}
	}
	return filter, true
}

func (a *API) loadOwnedTechCard(c *gin.Context) (*db.TechCard, bool) {
	card, err := a.cards.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.handleServiceError(c, err, "Не удалось загрузить техкарту")
		return nil, false
	}
	if !a.authorizeObject(c, card.ObjectID) {
		return nil, false
	}
	return card, true
}

func (a *API) authorizeObject(c *gin.Context, objectID string) bool {
	object, err := a.objects.Get(c.Request.Context(), objectID)
	if err != nil {
		a.handleServiceError(c, err, "Не удалось загрузить объект")
		return false
	}
	return a.authorizeManager(c, currentUser(c), object.ManagerID)
}

func (a *API) parseTechCardInput(c *gin.Context) (service.TechCardInput, bool) {
	var payload techCardPayload
	if !bindJSON(c, &payload, "Некорректный запрос") {
		return service.TechCardInput{}, false
	}

	input := service.TechCardInput{
		ObjectID:      payload.ObjectID,
		RoomID:        payload.RoomID,
		RoomName:      payload.RoomName,
		WorkType:      payload.WorkType,
		Description:   payload.Description,
		FrequencyText: payload.FrequencyText,
		FrequencyDays: payload.FrequencyDays,
		PreferredTime: payload.PreferredTime,
		MaxDelayHours: payload.MaxDelayHours,
		Active:        payload.Active,
	}

	if raw := strings.TrimSpace(payload.StartDate); raw != "" {
		start, err := time.Parse(schedule.DateLayout, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Некорректная дата начала, ожидается ГГГГ-ММ-ДД")
			return service.TechCardInput{}, false
		}
		input.StartDate = &start
	}

	return input, true
}

func techCardToPayload(card db.TechCard) gin.H {
	payload := gin.H{
		"id":               card.ID,
		"object_id":        card.ObjectID,
		"room_id":          card.RoomID,
		"room_name":        card.RoomName,
		"work_type":        card.WorkType,
		"description":      card.Description,
		"frequency_text":   card.FrequencyText,
		"frequency_days":   card.FrequencyDays,
		"frequency_parsed": card.FrequencyParsed,
		"band":             schedule.Band(card.FrequencyDays),
		"preferred_time":   card.PreferredTime,
		"max_delay_hours":  card.MaxDelayHours,
		"active":           card.Active,
	}
	if card.StartDate != nil {
		payload["start_date"] = card.StartDate.Format(schedule.DateLayout)
	}
	return payload
}
