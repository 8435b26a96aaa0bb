package api

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"forumchat/services"
)

// MonitorController 监控控制器
type MonitorController struct {
	Notifier     *services.Notifier
	KafkaService *services.KafkaService
}

// NewMonitorController 创建监控控制器
func NewMonitorController(notifier *services.Notifier, kafkaService *services.KafkaService) *MonitorController {
	return &MonitorController{
		Notifier:     notifier,
		KafkaService: kafkaService,
	}
}

// GetSystemStatus 获取系统状态
func (c *MonitorController) GetSystemStatus(ctx *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status := gin.H{
		"goroutines":     runtime.NumGoroutine(),
		"memory_alloc":   m.Alloc,
		"ws_connections": c.Notifier.ConnectionCount(),
		"kafka_enabled":  c.KafkaService != nil,
	}

	if c.KafkaService != nil {
		published, consumed, errCount := c.KafkaService.GetMetrics()
		status["kafka_events_published"] = published
		status["kafka_events_consumed"] = consumed
		status["kafka_errors"] = errCount
	}

	ctx.JSON(http.StatusOK, status)
}
