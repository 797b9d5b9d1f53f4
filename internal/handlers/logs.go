package handlers

import (
	"net/http"
	"strconv"

	"DF-FIDELITY/internal/models"
	"DF-FIDELITY/internal/services"

	"github.com/gin-gonic/gin"
)

type LogsHandler struct {
	activityLogService *services.ActivityLogService
}

func NewLogsHandler(activityLogService *services.ActivityLogService) *LogsHandler {
	return &LogsHandler{activityLogService: activityLogService}
}

type LogsResponse struct {
	Logs       []models.ActivityLog `json:"logs"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	TotalPages int                  `json:"total_pages"`
}

// GetAllLogs returns activity logs with pagination, optionally filtered
// by method or path.
func (h *LogsHandler) GetAllLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	var logs []models.ActivityLog
	var total int64

	switch {
	case c.Query("method") != "":
		logs, total, err = h.activityLogService.GetLogsByMethod(c.Query("method"), limit, offset)
	case c.Query("path") != "":
		logs, total, err = h.activityLogService.GetLogsByPath(c.Query("path"), limit, offset)
	default:
		logs, total, err = h.activityLogService.GetAllLogs(limit, offset)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch logs"})
		return
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	c.JSON(http.StatusOK, LogsResponse{
		Logs:       logs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	})
}
