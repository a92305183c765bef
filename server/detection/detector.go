// Package detection implements the adaptive motion detection engine: an
// exponential-moving-average reference model, frame differencing with
// Gaussian noise reduction, single-region extraction, and a bounded
// history of motion events.
package detection

import (
	"time"

	"go.uber.org/zap"

	"github.com/calder-vision/framewatch/server/imaging"
	"github.com/calder-vision/framewatch/server/models"
)

// Detector compares each incoming frame against an adaptive baseline and
// reports whether motion occurred, how strong it was, and where.
//
// A Detector is stateful and not safe for concurrent use: Analyze reads
// and rewrites the reference grid and the event history without internal
// locking. Callers needing concurrency must serialize calls per instance
// or run one detector per stream.
type Detector struct {
	reference  *imaging.Grid
	frameCount uint64
	lastMotion time.Time
	history    *eventRing
	logger     *zap.Logger
	nowFn      func() time.Time
}

// NewDetector creates a detector with no baseline. The first successfully
// decoded frame establishes it.
func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		history: newEventRing(historyCapacity),
		logger:  logger,
		nowFn:   time.Now,
	}
}

// Analyze decodes the frame, compares it against the adaptive baseline,
// folds the frame into the baseline, and returns the structured result.
//
// The frame counter advances on every call, successful or not, so callers
// can align results to a frame index even when frames are occasionally
// corrupt. Decode failures are reported in the result's Error field and
// leave the baseline untouched.
func (d *Detector) Analyze(imageBytes []byte, opts Options) models.AnalysisResult {
	d.frameCount++
	now := d.nowFn()
	opts = opts.normalized()

	grid, err := imaging.DecodeLuminance(imageBytes)
	if err != nil {
		reason := err.Error()
		d.logger.Debug("frame decode failed",
			zap.Uint64("frame", d.frameCount),
			zap.Error(err))
		res := d.baseResult(now)
		res.Error = &reason
		return res
	}

	if opts.BlurKernelSize > 1 {
		grid = imaging.GaussianBlur(grid, int(opts.BlurKernelSize))
	}

	if d.reference == nil || opts.ForceRebaseline || !d.reference.SameShape(grid) {
		d.reference = grid
		d.logger.Debug("baseline established",
			zap.Uint64("frame", d.frameCount),
			zap.Int("width", grid.Width),
			zap.Int("height", grid.Height),
			zap.Bool("forced", opts.ForceRebaseline))
		res := d.baseResult(now)
		res.ImageSize = models.ImageSize{Width: grid.Width, Height: grid.Height}
		return res
	}

	// Differencing against the baseline.
	total := grid.Width * grid.Height
	mask := make([]bool, total)
	flagged := 0
	for i, v := range grid.Pix {
		diff := v - d.reference.Pix[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > opts.Threshold {
			mask[i] = true
			flagged++
		}
	}

	fraction := float64(flagged) / float64(total)
	detected := fraction >= float64(opts.MinAreaFraction)

	// The baseline always absorbs the current frame, motion or not: slow
	// lighting drift is tracked, and a change that stays put is gradually
	// assimilated instead of flagging forever.
	for i := range d.reference.Pix {
		d.reference.Pix[i] = referenceAlpha*grid.Pix[i] + (1-referenceAlpha)*d.reference.Pix[i]
	}

	regions := []models.MotionRegion{}
	if detected {
		if region, ok := extractRegion(mask, grid.Width, grid.Height); ok {
			regions = append(regions, region)
		}
		d.history.push(models.MotionEvent{Timestamp: now, FrameNumber: d.frameCount})
		d.lastMotion = now
		d.logger.Debug("motion detected",
			zap.Uint64("frame", d.frameCount),
			zap.Float64("score", fraction*100),
			zap.Int("regions", len(regions)))
	}

	res := d.baseResult(now)
	res.MotionDetected = detected
	res.MotionScore = fraction * 100
	res.Regions = regions
	res.ImageSize = models.ImageSize{Width: grid.Width, Height: grid.Height}
	return res
}

// Reset discards the baseline, frame counter, motion timestamp, and event
// history; the detector behaves exactly like a freshly constructed one.
func (d *Detector) Reset() {
	d.reference = nil
	d.frameCount = 0
	d.lastMotion = time.Time{}
	d.history.clear()
}

// FrameCount returns the number of Analyze calls since construction or the
// last Reset.
func (d *Detector) FrameCount() uint64 {
	return d.frameCount
}

// History returns a copy of the retained motion events, oldest first.
func (d *Detector) History() []models.MotionEvent {
	return d.history.snapshot()
}

// baseResult assembles the fields every outcome shares: the frame number,
// the time since the last motion event, and the trailing-window count.
func (d *Detector) baseResult(now time.Time) models.AnalysisResult {
	res := models.AnalysisResult{
		Regions:            []models.MotionRegion{},
		FrameNumber:        d.frameCount,
		RecentMotionEvents: d.history.countSince(now.Add(-recentEventWindow * time.Second)),
	}
	if !d.lastMotion.IsZero() {
		since := now.Sub(d.lastMotion).Seconds()
		res.TimeSinceLastMotion = &since
	}
	return res
}

// extractRegion computes the single axis-aligned bounding box covering
// every flagged pixel via row and column projections. Regions whose raw
// extent product falls below the absolute pixel floor are discarded.
func extractRegion(mask []bool, width, height int) (models.MotionRegion, bool) {
	rowHas := make([]bool, height)
	colHas := make([]bool, width)
	for y := 0; y < height; y++ {
		base := y * width
		for x := 0; x < width; x++ {
			if mask[base+x] {
				rowHas[y] = true
				colHas[x] = true
			}
		}
	}

	yMin, yMax, ok := firstLast(rowHas)
	if !ok {
		return models.MotionRegion{}, false
	}
	xMin, xMax, _ := firstLast(colHas)

	if (xMax-xMin)*(yMax-yMin) < minRegionExtentArea {
		return models.MotionRegion{}, false
	}

	bw := xMax - xMin + 1
	bh := yMax - yMin + 1
	return models.MotionRegion{
		BBox:   models.BoundingBox{X: xMin, Y: yMin, Width: bw, Height: bh},
		Area:   int64(bw) * int64(bh),
		Center: models.RegionCenter{X: xMin + bw/2, Y: yMin + bh/2},
	}, true
}

func firstLast(flags []bool) (first, last int, ok bool) {
	first, last = -1, -1
	for i, f := range flags {
		if f {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last, first >= 0
}
