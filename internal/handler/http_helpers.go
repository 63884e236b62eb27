package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cleanops/internal/schedule"
	"github.com/cleanops/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// defaultRangeDays 是未指定结束日期时的查询跨度
const defaultRangeDays = 7

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseOptionalUintQuery(c *gin.Context, key string) (*uint, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, err
	}
	id := uint(parsed)
	return &id, nil
}

// parseDateRange 解析 from/to，缺省时从今天起取一周
func parseDateRange(c *gin.Context, now time.Time) (time.Time, time.Time, bool) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		parsed, err := time.Parse(schedule.DateLayout, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Некорректная дата начала, ожидается ГГГГ-ММ-ДД")
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}

	to := from.AddDate(0, 0, defaultRangeDays-1)
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		parsed, err := time.Parse(schedule.DateLayout, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Некорректная дата окончания, ожидается ГГГГ-ММ-ДД")
			return time.Time{}, time.Time{}, false
		}
		to = parsed
	}

	return from, to, true
}

// handleServiceError 将服务层错误映射为 HTTP 状态码
func (a *API) handleServiceError(c *gin.Context, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Message, "requirement": verr.Requirement})
	case errors.Is(err, service.ErrMalformedInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, "Не найдено")
	case errors.Is(err, service.ErrConflict):
		respondError(c, http.StatusConflict, "Задача уже закрыта")
	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, "Нет доступа")
	default:
		a.logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, fallback)
	}
}
