// Package video extracts still frames from uploaded clips so they can be
// fed through the detection engine one by one.
package video

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xfrr/goffmpeg/transcoder"
	"go.uber.org/zap"
)

// FrameExtractor decodes a video file into a JPEG frame sequence via
// ffmpeg. Each extraction gets its own temp directory; callers remove the
// frame files as they consume them.
type FrameExtractor struct {
	tempDir   string
	frameRate int
	logger    *zap.Logger
}

// NewFrameExtractor ensures the temp directory exists and returns the
// extractor. frameRate is the sampling rate in frames per second of video
// time.
func NewFrameExtractor(tempDir string, frameRate int, logger *zap.Logger) (*FrameExtractor, error) {
	if frameRate <= 0 {
		frameRate = 5
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	return &FrameExtractor{
		tempDir:   tempDir,
		frameRate: frameRate,
		logger:    logger,
	}, nil
}

// ExtractFrames transcodes the clip into numbered JPEG files and returns
// their paths in frame order.
func (e *FrameExtractor) ExtractFrames(videoPath string) ([]string, error) {
	outDir, err := os.MkdirTemp(e.tempDir, "frames-")
	if err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}

	pattern := filepath.Join(outDir, "frame_%05d.jpg")

	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(videoPath, pattern); err != nil {
		return nil, fmt.Errorf("initialize transcoder: %w", err)
	}

	trans.MediaFile().SetSkipAudio(true)
	trans.MediaFile().SetOutputFormat("image2")
	trans.MediaFile().SetVideoFilter(fmt.Sprintf("fps=%d", e.frameRate))

	done := trans.Run(false)
	if err := <-done; err != nil {
		return nil, fmt.Errorf("extract frames: %w", err)
	}

	frames, err := filepath.Glob(filepath.Join(outDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(frames)

	e.logger.Debug("frames extracted",
		zap.String("video", videoPath),
		zap.Int("count", len(frames)))

	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted from %s", filepath.Base(videoPath))
	}
	return frames, nil
}
