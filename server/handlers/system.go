package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/calder-vision/framewatch/server/processor"
)

// StatsHandler serves service, processor, and host statistics.
type StatsHandler struct {
	processor *processor.FrameProcessor
	logger    *zap.Logger
}

// NewStatsHandler creates the handler.
func NewStatsHandler(p *processor.FrameProcessor, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{processor: p, logger: logger}
}

// GetStats handles GET /api/v1/stats.
func (h *StatsHandler) GetStats(c *gin.Context) {
	processorStats := h.processor.GetStats()

	response := gin.H{
		"processor":      processorStats,
		"system":         h.systemStats(),
		"uptime_seconds": time.Since(processorStats.StartTime).Seconds(),
	}

	if cacheStats, err := h.processor.CacheStats(); err == nil {
		response["cache"] = cacheStats
	}

	c.JSON(http.StatusOK, response)
}

// systemStats samples host CPU and memory. Failures degrade to partial
// output rather than failing the request.
func (h *StatsHandler) systemStats() gin.H {
	stats := gin.H{}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		stats["cpu_percent"] = percentages[0]
	} else if err != nil {
		h.logger.Debug("cpu stats unavailable", zap.Error(err))
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats["memory_used_percent"] = vm.UsedPercent
		stats["memory_total_bytes"] = vm.Total
	} else {
		h.logger.Debug("memory stats unavailable", zap.Error(err))
	}

	return stats
}

// HealthCheck handles /health.
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"service":   "framewatch",
		})
	}
}
