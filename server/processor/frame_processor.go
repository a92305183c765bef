// Package processor owns the per-stream detector registry and the worker
// pool that feeds frames through the detection engine.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calder-vision/framewatch/server/cache"
	"github.com/calder-vision/framewatch/server/detection"
	"github.com/calder-vision/framewatch/server/models"
)

// FrameSource turns an uploaded video file into a sequence of frame image
// files on disk, ordered by frame index.
type FrameSource interface {
	ExtractFrames(videoPath string) ([]string, error)
}

// Config tunes the processor.
type Config struct {
	MaxQueueSize      int
	MaxWorkers        int
	ProcessingTimeout time.Duration
	VideoTempDir      string
	Detection         DetectionDefaults
}

// DetectionDefaults fill the engine option fields a request leaves unset.
// Zero values fall through to the engine's own documented defaults.
type DetectionDefaults struct {
	Threshold       float32
	MinAreaFraction float32
	BlurKernelSize  uint32
}

// Stats is a snapshot of processor counters.
type Stats struct {
	StartTime      time.Time `json:"start_time"`
	TotalProcessed int64     `json:"total_processed"`
	MotionFrames   int64     `json:"motion_frames"`
	DecodeFailures int64     `json:"decode_failures"`
	AverageLatency float64   `json:"average_latency_ms"`
	QueueSize      int       `json:"queue_size"`
	ActiveStreams  int       `json:"active_streams"`
	ActiveWorkers  int       `json:"active_workers"`
}

// VideoJob tracks the asynchronous analysis of an uploaded clip.
type VideoJob struct {
	ID           string                  `json:"id"`
	Filename     string                  `json:"filename"`
	Status       string                  `json:"status"`
	Progress     float64                 `json:"progress"`
	StartTime    time.Time               `json:"start_time"`
	TotalFrames  int                     `json:"total_frames"`
	MotionFrames int                     `json:"motion_frames"`
	PeakScore    float64                 `json:"peak_score"`
	Results      []models.AnalysisResult `json:"results,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// streamDetector serializes engine calls for one stream. The engine has no
// internal locking, so every Analyze/Reset goes through this mutex.
type streamDetector struct {
	mu  sync.Mutex
	det *detection.Detector
}

// FrameProcessor routes each stream's frames to its own detector instance
// and runs the analysis on a bounded worker pool.
type FrameProcessor struct {
	logger *zap.Logger
	cache  cache.Cache
	queue  *ProcessingQueue
	config Config
	frames FrameSource

	detectors map[string]*streamDetector
	jobs      map[string]*VideoJob
	mu        sync.RWMutex

	stats   Stats
	statsMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewFrameProcessor wires the registry, cache, and worker pool together.
func NewFrameProcessor(cfg Config, frames FrameSource, cacheInstance cache.Cache, logger *zap.Logger) *FrameProcessor {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	fp := &FrameProcessor{
		logger:    logger,
		cache:     cacheInstance,
		config:    cfg,
		frames:    frames,
		detectors: make(map[string]*streamDetector),
		jobs:      make(map[string]*VideoJob),
		stats:     Stats{StartTime: time.Now(), ActiveWorkers: cfg.MaxWorkers},
		ctx:       ctx,
		cancel:    cancel,
	}
	fp.queue = NewProcessingQueue(cfg.MaxQueueSize, cfg.MaxWorkers, fp.processFrame)
	return fp
}

// ProcessFrame queues the frame and waits for its result. A decode failure
// is not a transport error: it comes back inside the result's Error field.
func (fp *FrameProcessor) ProcessFrame(request *models.FrameRequest) (*models.AnalysisResult, error) {
	startTime := time.Now()

	resultChan := make(chan *ProcessingResult, 1)
	item := &QueueItem{
		Request:    request,
		ResultChan: resultChan,
		StartTime:  startTime,
	}

	if !fp.queue.Enqueue(item) {
		return nil, fmt.Errorf("processing queue full, try again later")
	}

	select {
	case result := <-resultChan:
		if result.Error != nil {
			return nil, result.Error
		}
		fp.recordLatency(time.Since(startTime))
		return result.Analysis, nil
	case <-time.After(fp.config.ProcessingTimeout):
		return nil, fmt.Errorf("processing timeout")
	}
}

func (fp *FrameProcessor) processFrame(item *QueueItem) {
	stream := fp.detectorFor(item.Request.ClientID)

	stream.mu.Lock()
	result := stream.det.Analyze(item.Request.ImageData, fp.optionsFromRequest(item.Request))
	stream.mu.Unlock()

	fp.statsMu.Lock()
	fp.stats.TotalProcessed++
	if result.MotionDetected {
		fp.stats.MotionFrames++
	}
	if result.Error != nil {
		fp.stats.DecodeFailures++
	}
	fp.statsMu.Unlock()

	if fp.cache != nil {
		if err := fp.cache.Set(fp.ctx, cache.Key("last-result", item.Request.ClientID), result); err != nil {
			fp.logger.Warn("failed to cache result", zap.Error(err))
		}
		if _, err := fp.cache.Increment(fp.ctx, cache.Key("frames", item.Request.ClientID)); err != nil {
			fp.logger.Warn("failed to increment frame counter", zap.Error(err))
		}
	}

	item.ResultChan <- &ProcessingResult{Analysis: &result}
}

// LastResult returns the most recent cached result for a stream.
func (fp *FrameProcessor) LastResult(clientID string) (*models.AnalysisResult, error) {
	if fp.cache == nil {
		return nil, fmt.Errorf("cache not configured")
	}
	value, err := fp.cache.Get(fp.ctx, cache.Key("last-result", clientID))
	if err != nil {
		return nil, err
	}
	result, ok := value.(models.AnalysisResult)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value for stream %q", clientID)
	}
	return &result, nil
}

// ResetDetector discards a stream's baseline and history. Unknown streams
// are a no-op: the next frame starts fresh either way.
func (fp *FrameProcessor) ResetDetector(clientID string) {
	fp.mu.RLock()
	stream, exists := fp.detectors[clientID]
	fp.mu.RUnlock()
	if !exists {
		return
	}
	stream.mu.Lock()
	stream.det.Reset()
	stream.mu.Unlock()
	fp.logger.Info("detector reset", zap.String("client_id", clientID))
}

// MotionHistory returns a stream's retained motion events, oldest first.
func (fp *FrameProcessor) MotionHistory(clientID string) []models.MotionEvent {
	fp.mu.RLock()
	stream, exists := fp.detectors[clientID]
	fp.mu.RUnlock()
	if !exists {
		return []models.MotionEvent{}
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	return stream.det.History()
}

// CreateVideoJob stores the clip to disk and analyzes its frames in the
// background through a job-dedicated detector.
func (fp *FrameProcessor) CreateVideoJob(videoData []byte, filename, clientID string) (string, error) {
	if fp.frames == nil {
		return "", fmt.Errorf("video analysis not configured")
	}

	jobID := uuid.New().String()
	job := &VideoJob{
		ID:        jobID,
		Filename:  filename,
		Status:    "processing",
		StartTime: time.Now(),
	}

	videoPath := filepath.Join(fp.config.VideoTempDir, jobID+filepath.Ext(filename))
	if err := os.WriteFile(videoPath, videoData, 0o644); err != nil {
		return "", fmt.Errorf("store uploaded video: %w", err)
	}

	fp.mu.Lock()
	fp.jobs[jobID] = job
	fp.mu.Unlock()

	go fp.processVideo(job, videoPath, clientID)
	return jobID, nil
}

// JobStatus returns a copy of the job record.
func (fp *FrameProcessor) JobStatus(jobID string) (*VideoJob, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	job, exists := fp.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found")
	}
	snapshot := *job
	return &snapshot, nil
}

func (fp *FrameProcessor) processVideo(job *VideoJob, videoPath, clientID string) {
	defer os.Remove(videoPath)

	fp.logger.Info("video analysis started",
		zap.String("job_id", job.ID),
		zap.String("filename", job.Filename),
		zap.String("client_id", clientID))

	framePaths, err := fp.frames.ExtractFrames(videoPath)
	if err != nil {
		fp.failJob(job, fmt.Errorf("extract frames: %w", err))
		return
	}

	detector := detection.NewDetector(fp.logger)
	motionFrames := 0
	peak := 0.0
	var motionResults []models.AnalysisResult

	for i, framePath := range framePaths {
		data, err := os.ReadFile(framePath)
		if err != nil {
			fp.failJob(job, fmt.Errorf("read frame %d: %w", i+1, err))
			return
		}
		result := detector.Analyze(data, fp.defaultOptions())
		if result.MotionDetected {
			motionFrames++
			motionResults = append(motionResults, result)
		}
		if result.MotionScore > peak {
			peak = result.MotionScore
		}

		fp.mu.Lock()
		job.Progress = float64(i+1) / float64(len(framePaths)) * 100
		fp.mu.Unlock()

		os.Remove(framePath)
	}

	fp.mu.Lock()
	job.Status = "completed"
	job.Progress = 100
	job.TotalFrames = len(framePaths)
	job.MotionFrames = motionFrames
	job.PeakScore = peak
	job.Results = motionResults
	fp.mu.Unlock()

	fp.logger.Info("video analysis completed",
		zap.String("job_id", job.ID),
		zap.Int("frames", len(framePaths)),
		zap.Int("motion_frames", motionFrames),
		zap.Float64("peak_score", peak))
}

func (fp *FrameProcessor) failJob(job *VideoJob, err error) {
	fp.mu.Lock()
	job.Status = "failed"
	job.Error = err.Error()
	fp.mu.Unlock()
	fp.logger.Error("video analysis failed", zap.String("job_id", job.ID), zap.Error(err))
}

// GetStats returns a counters snapshot.
func (fp *FrameProcessor) GetStats() Stats {
	fp.statsMu.Lock()
	stats := fp.stats
	fp.statsMu.Unlock()

	stats.QueueSize = fp.queue.Size()
	fp.mu.RLock()
	stats.ActiveStreams = len(fp.detectors)
	fp.mu.RUnlock()
	return stats
}

// CacheStats exposes the underlying cache's occupancy.
func (fp *FrameProcessor) CacheStats() (*cache.Stats, error) {
	if fp.cache == nil {
		return nil, fmt.Errorf("cache not configured")
	}
	return fp.cache.Stats(fp.ctx)
}

// Shutdown drains the worker pool and releases the cache.
func (fp *FrameProcessor) Shutdown() error {
	fp.logger.Info("shutting down frame processor")
	fp.cancel()
	if err := fp.queue.Shutdown(30 * time.Second); err != nil {
		return err
	}
	if fp.cache != nil {
		return fp.cache.Close()
	}
	return nil
}

func (fp *FrameProcessor) detectorFor(clientID string) *streamDetector {
	fp.mu.RLock()
	stream, exists := fp.detectors[clientID]
	fp.mu.RUnlock()
	if exists {
		return stream
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()
	if stream, exists = fp.detectors[clientID]; exists {
		return stream
	}
	stream = &streamDetector{det: detection.NewDetector(fp.logger)}
	fp.detectors[clientID] = stream
	fp.logger.Info("stream detector created", zap.String("client_id", clientID))
	return stream
}

func (fp *FrameProcessor) recordLatency(latency time.Duration) {
	fp.statsMu.Lock()
	defer fp.statsMu.Unlock()

	ms := float64(latency.Milliseconds())
	if fp.stats.AverageLatency == 0 {
		fp.stats.AverageLatency = ms
	} else {
		const alpha = 0.1
		fp.stats.AverageLatency = alpha*ms + (1-alpha)*fp.stats.AverageLatency
	}
}

// defaultOptions returns the configured engine defaults.
func (fp *FrameProcessor) defaultOptions() detection.Options {
	return detection.Options{
		Threshold:       fp.config.Detection.Threshold,
		MinAreaFraction: fp.config.Detection.MinAreaFraction,
		BlurKernelSize:  fp.config.Detection.BlurKernelSize,
	}
}

func (fp *FrameProcessor) optionsFromRequest(req *models.FrameRequest) detection.Options {
	opts := fp.defaultOptions()
	opts.ForceRebaseline = req.ForceRebaseline
	if req.Threshold != 0 {
		opts.Threshold = req.Threshold
	}
	if req.MinAreaFraction != 0 {
		opts.MinAreaFraction = req.MinAreaFraction
	}
	if req.BlurKernelSize != 0 {
		opts.BlurKernelSize = req.BlurKernelSize
	}
	return opts
}
