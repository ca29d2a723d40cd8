package handlers

import (
	"net/http"

	"bulkedit-admin/pkg/services"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	Service *services.MonitoringService
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
func NewMonitoringHandler(service *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{
		Service: service,
	}
}

// periodHours は 1h / 24h / 7d を時間数に変換します。
func periodHours(period string) (int, bool) {
	switch period {
	case "1h":
		return 1, true
	case "24h":
		return 24, true
	case "7d":
		return 24 * 7, true
	}
	return 0, false
}

// GetLogs は集計されたログデータを返します。
// ?scope=backend の場合はバックエンド呼び出しの集計だけを返します。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	hours, ok := periodHours(c.DefaultQuery("period", "24h"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "period must be one of 1h, 24h, 7d"})
		return
	}

	switch c.DefaultQuery("scope", "all") {
	case "all":
		c.JSON(http.StatusOK, h.Service.GetDashboardData(hours))
	case "backend":
		c.JSON(http.StatusOK, h.Service.GetBackendHealth(hours))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "scope must be one of all, backend"})
	}
}
