// Package handlers exposes the frame analysis engine over HTTP and
// WebSocket.
package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/calder-vision/framewatch/server/cache"
	"github.com/calder-vision/framewatch/server/models"
	"github.com/calder-vision/framewatch/server/processor"
)

// FrameHandler serves the per-frame analysis endpoints.
type FrameHandler struct {
	processor      *processor.FrameProcessor
	logger         *zap.Logger
	maxVideoUpload int64
}

// FrameUploadRequest is the HTTP ingest shape: a base64 data URL plus the
// optional per-call engine parameters. Unknown fields are ignored.
type FrameUploadRequest struct {
	ImageData       string  `json:"image_data" binding:"required"`
	Timestamp       int64   `json:"timestamp"`
	Threshold       float32 `json:"threshold"`
	MinAreaFraction float32 `json:"min_area_fraction"`
	BlurKernelSize  uint32  `json:"blur_kernel_size"`
	ForceRebaseline bool    `json:"force_rebaseline"`
}

// NewFrameHandler creates the handler.
func NewFrameHandler(p *processor.FrameProcessor, maxVideoUpload int64, logger *zap.Logger) *FrameHandler {
	return &FrameHandler{
		processor:      p,
		logger:         logger,
		maxVideoUpload: maxVideoUpload,
	}
}

// AnalyzeFrame handles POST /api/v1/analyze-frame.
func (h *FrameHandler) AnalyzeFrame(c *gin.Context) {
	startTime := time.Now()

	var request FrameUploadRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Warn("invalid frame request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	imageData, err := decodeDataURL(request.ImageData)
	if err != nil {
		h.logger.Warn("invalid image payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image data"})
		return
	}

	frameRequest := &models.FrameRequest{
		ImageData:       imageData,
		Timestamp:       request.Timestamp,
		ClientID:        c.ClientIP(),
		Threshold:       request.Threshold,
		MinAreaFraction: request.MinAreaFraction,
		BlurKernelSize:  request.BlurKernelSize,
		ForceRebaseline: request.ForceRebaseline,
	}

	result, err := h.processor.ProcessFrame(frameRequest)
	if err != nil {
		h.logger.Error("frame processing failed",
			zap.Error(err),
			zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analysis":           result,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
		"timestamp":          time.Now().Unix(),
	})
}

// LastResult handles GET /api/v1/last-result.
func (h *FrameHandler) LastResult(c *gin.Context) {
	result, err := h.processor.LastResult(c.ClientIP())
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no analysis recorded for this client"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ResetDetector handles POST /api/v1/reset-detector. The client's next
// frame establishes a fresh baseline.
func (h *FrameHandler) ResetDetector(c *gin.Context) {
	h.processor.ResetDetector(c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// MotionHistory handles GET /api/v1/motion-history.
func (h *FrameHandler) MotionHistory(c *gin.Context) {
	events := h.processor.MotionHistory(c.ClientIP())
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// UploadVideo handles POST /api/v1/upload-video (multipart form, field
// "video") and kicks off an asynchronous analysis job.
func (h *FrameHandler) UploadVideo(c *gin.Context) {
	file, header, err := c.Request.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}
	defer file.Close()

	if !isVideoFilename(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file type"})
		return
	}
	if header.Size > h.maxVideoUpload {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "file too large",
			"max_size": h.maxVideoUpload,
		})
		return
	}

	videoData, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read uploaded video", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}

	jobID, err := h.processor.CreateVideoJob(videoData, header.Filename, c.ClientIP())
	if err != nil {
		h.logger.Error("failed to create video job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start analysis"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": jobID,
		"status": "processing",
	})
}

// VideoJobStatus handles GET /api/v1/video-job/:job_id.
func (h *FrameHandler) VideoJobStatus(c *gin.Context) {
	job, err := h.processor.JobStatus(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// decodeDataURL strips the "data:image/...;base64," prefix when present
// and decodes the payload.
func decodeDataURL(dataURL string) ([]byte, error) {
	payload := dataURL
	if idx := strings.IndexByte(dataURL, ','); idx >= 0 {
		payload = dataURL[idx+1:]
	}
	if payload == "" {
		return nil, fmt.Errorf("empty image payload")
	}
	return base64.StdEncoding.DecodeString(payload)
}

func isVideoFilename(filename string) bool {
	filename = strings.ToLower(filename)
	for _, ext := range []string{".mp4", ".avi", ".mov", ".mkv", ".webm"} {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}
